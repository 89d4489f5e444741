package ports

import "context"

// Logger is the structured, leveled logger used by the application layer and
// the adapters. Fields are attached as a single key/value map.
//
// Core components (fetcher, decoder, tabulator) never log errors; they return
// them and leave reporting to the caller.
type Logger interface {
	// Debug logs a message at Debug level.
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	// Info logs a message at Info level.
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	// Warn logs a message at Warning level.
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs an error message at Error level.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
