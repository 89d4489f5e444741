package binanceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"klinefetch/internal/domain"
	"klinefetch/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	klinesEndpoint = "/api/v3/klines"

	// Non-2xx bodies are read up to this size when looking for an API error.
	maxErrorBodySize = 4096
)

// Client implements ports.ExchangeClient against the Binance spot REST API.
// Klines are fetched as raw JSON so that decoding stays with the caller; ping
// and server time go through the go-binance services.
type Client struct {
	api    *binance.Client
	logger ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	BaseURL    string        // Overrides the production/testnet URL when set
	UseTestnet bool          // Ignored when BaseURL is set
	Timeout    time.Duration // Per-request HTTP timeout, 0 disables it
	Logger     ports.Logger
}

// New creates a new Binance client adapter. Only public endpoints are used,
// so no API keys are needed.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative: %s", cfg.Timeout)
	}

	api := binance.NewClient("", "")
	switch {
	case cfg.BaseURL != "":
		api.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.UseTestnet:
		api.BaseURL = baseURLTestnet
	default:
		api.BaseURL = baseURLProduction
	}
	api.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": api.BaseURL, "timeout": cfg.Timeout.String()})

	return &Client{api: api, logger: cfg.Logger}, nil
}

// BaseURL returns the REST endpoint root the client talks to.
func (c *Client) BaseURL() string {
	return c.api.BaseURL
}

// FetchKlines issues one GET against the klines endpoint and returns the body
// as decoded, untyped JSON. Every failure wraps ports.ErrFetchFailed together
// with a classification error.
func (c *Client) FetchKlines(ctx context.Context, symbol, interval string, limit int) (domain.RawResponse, error) {
	op := "FetchKlines"
	if limit <= 0 {
		return nil, fetchError(op, ports.ErrInvalidRequest, fmt.Errorf("limit must be positive, got %d", limit))
	}

	reqURL := c.klinesURL(symbol, interval, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fetchError(op, ports.ErrInvalidRequest, err)
	}

	resp, err := c.api.HTTPClient.Do(req)
	if err != nil {
		return nil, fetchError(op, classify(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := responseError(resp)
		return nil, fetchError(op, classify(statusErr), statusErr)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber() // keep epoch millis exact
	var rows domain.RawResponse
	if err := dec.Decode(&rows); err != nil {
		return nil, fetchError(op, classify(err), fmt.Errorf("decode klines body: %w", err))
	}
	if rows == nil {
		return nil, fetchError(op, ports.ErrUnknown, errors.New("klines body is not a JSON array"))
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fetchError(op, ports.ErrUnknown, errors.New("unexpected data after klines body"))
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "interval": interval, "limit": limit, "rows": len(rows)})
	return rows, nil
}

func (c *Client) klinesURL(symbol, interval string, limit int) string {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("limit", strconv.Itoa(limit))
	return c.api.BaseURL + klinesEndpoint + "?" + query.Encode()
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.api.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, classify(err), err)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// ServerTime retrieves the current server time from the exchange.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	op := "ServerTime"
	serverTimeMs, err := c.api.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s failed: %w: %w", op, classify(err), err)
	}
	return time.UnixMilli(serverTimeMs).UTC(), nil
}

// --- Error Helpers ---

func fetchError(op string, class, err error) error {
	return fmt.Errorf("%s failed: %w: %w: %w", op, ports.ErrFetchFailed, class, err)
}

// httpStatusError is a non-2xx response whose body was not a Binance API error.
type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// responseError builds the error for a non-2xx response. Binance reports
// failures as {"code":-1121,"msg":"Invalid symbol."}; that shape is returned as
// a *common.APIError, anything else as an *httpStatusError.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	apiErr := new(common.APIError)
	if err := json.Unmarshal(body, apiErr); err == nil && apiErr.Code != 0 {
		return fmt.Errorf("status %d: %w", resp.StatusCode, apiErr)
	}
	return &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// classify maps an underlying error onto one of the ports classification errors.
func classify(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == -1003: // Too many requests
			return ports.ErrRateLimited
		case apiErr.Code == -1021: // Timestamp outside of recvWindow
			return ports.ErrTimeout
		case apiErr.Code <= -1100 && apiErr.Code >= -1199: // Parameter/request format errors, e.g. -1121 invalid symbol
			return ports.ErrInvalidRequest
		case apiErr.Code == -1000 || apiErr.Code == -1001 || apiErr.Code == -1006 || apiErr.Code == -1007: // Unknown, disconnected, unexpected response, timeout
			return ports.ErrExchangeUnavailable
		default:
			return ports.ErrUnknown
		}
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode == http.StatusTeapot: // 418: IP banned after repeated 429s
			return ports.ErrRateLimited
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return ports.ErrExchangeUnavailable
		case statusErr.StatusCode >= http.StatusBadRequest:
			return ports.ErrInvalidRequest
		default:
			return ports.ErrUnknown
		}
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ports.ErrTimeout
	case errors.Is(err, context.Canceled):
		return ports.ErrContextCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		return ports.ErrTimeout
	case strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer"):
		return ports.ErrConnectionFailed
	default:
		return ports.ErrUnknown
	}
}
