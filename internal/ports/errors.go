package ports

import "errors"

// Pipeline error kinds. Every pipeline failure wraps exactly one of these.
var (
	// ErrFetchFailed covers any failure reaching or reading the remote source:
	// connection, timeout, non-2xx status or a body that is not valid JSON.
	ErrFetchFailed = errors.New("kline fetch failed")
	// ErrMalformedRow means a raw row did not match the 12-field positional layout.
	ErrMalformedRow = errors.New("malformed kline row")
	// ErrTableBuildFailed means columns could not be assembled into a consistent table.
	ErrTableBuildFailed = errors.New("kline table build failed")
)

// Classification errors, wrapped alongside ErrFetchFailed so callers can
// distinguish why a fetch failed.
var (
	ErrUnknown             = errors.New("unknown error occurred")
	ErrInvalidRequest      = errors.New("invalid request parameters or format")
	ErrTimeout             = errors.New("operation timed out")
	ErrContextCanceled     = errors.New("operation canceled via context")
	ErrExchangeUnavailable = errors.New("exchange API is unavailable")
	ErrConnectionFailed    = errors.New("failed to connect to the exchange")
	ErrRateLimited         = errors.New("API rate limit exceeded")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
