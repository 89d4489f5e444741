package ports

import (
	"context"
	"time"

	"klinefetch/internal/domain"
)

// KlineFetcher retrieves raw kline history from an exchange.
type KlineFetcher interface {
	// FetchKlines issues one request for at most limit klines and returns the
	// body untransformed. Failures wrap ErrFetchFailed.
	FetchKlines(ctx context.Context, symbol, interval string, limit int) (domain.RawResponse, error)
}

// ExchangeClient is a KlineFetcher that can also probe the exchange.
type ExchangeClient interface {
	KlineFetcher

	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error

	// ServerTime retrieves the current server time from the exchange.
	ServerTime(ctx context.Context) (time.Time, error)
}
