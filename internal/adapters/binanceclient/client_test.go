package binanceclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klinefetch/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

const klinesBody = `[
	[1700000000000, "100.5", "101.0", "99.8", "100.9", "10.0", 1700003599999, "1005.0", 42, "5.0", "502.5", "0"],
	[1700003600000, "100.9", "102.0", "100.1", "101.7", "12.5", 1700007199999, "1270.0", 57, "6.0", "610.2", "0"]
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL, Timeout: 5 * time.Second, Logger: &mockLogger{}})
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantURL string
		wantErr bool
	}{
		{name: "production", cfg: Config{Logger: &mockLogger{}}, wantURL: baseURLProduction},
		{name: "testnet", cfg: Config{UseTestnet: true, Logger: &mockLogger{}}, wantURL: baseURLTestnet},
		{name: "explicit base url wins", cfg: Config{BaseURL: "http://localhost:9000/", UseTestnet: true, Logger: &mockLogger{}}, wantURL: "http://localhost:9000"},
		{name: "missing logger", cfg: Config{}, wantErr: true},
		{name: "negative timeout", cfg: Config{Timeout: -time.Second, Logger: &mockLogger{}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, client.BaseURL())
		})
	}
}

func TestFetchKlines_Success(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{
			"symbol":   r.URL.Query().Get("symbol"),
			"interval": r.URL.Query().Get("interval"),
			"limit":    r.URL.Query().Get("limit"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(klinesBody))
	})

	rows, err := client.FetchKlines(context.Background(), "ETHUSDT", "1h", 1000)
	require.NoError(t, err)

	assert.Equal(t, "/api/v3/klines", gotPath)
	assert.Equal(t, map[string]string{"symbol": "ETHUSDT", "interval": "1h", "limit": "1000"}, gotQuery)

	require.Len(t, rows, 2)
	require.Len(t, rows[0], 12)
	assert.Equal(t, json.Number("1700000000000"), rows[0][0])
	assert.Equal(t, "100.5", rows[0][1])
	assert.Equal(t, json.Number("42"), rows[0][8])
	assert.Equal(t, json.Number("1700003600000"), rows[1][0])
}

func TestFetchKlines_EmptyArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	rows, err := client.FetchKlines(context.Background(), "ETHUSDT", "1h", 10)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestFetchKlines_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantClass error
	}{
		{name: "invalid symbol", status: http.StatusBadRequest, body: `{"code":-1121,"msg":"Invalid symbol."}`, wantClass: ports.ErrInvalidRequest},
		{name: "api rate limit", status: http.StatusTooManyRequests, body: `{"code":-1003,"msg":"Too many requests."}`, wantClass: ports.ErrRateLimited},
		{name: "plain 429", status: http.StatusTooManyRequests, body: ``, wantClass: ports.ErrRateLimited},
		{name: "server error", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantClass: ports.ErrExchangeUnavailable},
		{name: "not found", status: http.StatusNotFound, body: `not here`, wantClass: ports.ErrInvalidRequest},
		{name: "malformed json", status: http.StatusOK, body: `[[1700000000000, "1"`, wantClass: ports.ErrUnknown},
		{name: "object body", status: http.StatusOK, body: `{"rows":[]}`, wantClass: ports.ErrUnknown},
		{name: "null body", status: http.StatusOK, body: `null`, wantClass: ports.ErrUnknown},
		{name: "trailing garbage", status: http.StatusOK, body: `[] garbage`, wantClass: ports.ErrUnknown},
		{name: "trailing value", status: http.StatusOK, body: `[[1,"1"]] {`, wantClass: ports.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			rows, err := client.FetchKlines(context.Background(), "ETHUSDT", "1h", 10)
			require.ErrorIs(t, err, ports.ErrFetchFailed)
			assert.ErrorIs(t, err, tt.wantClass)
			assert.Nil(t, rows)
		})
	}
}

func TestFetchKlines_InvalidLimit(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.FetchKlines(context.Background(), "ETHUSDT", "1h", 0)
	require.ErrorIs(t, err, ports.ErrFetchFailed)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	assert.False(t, called, "no request should be issued")
}

func TestFetchKlines_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client, err := New(Config{BaseURL: baseURL, Logger: &mockLogger{}})
	require.NoError(t, err)

	_, err = client.FetchKlines(context.Background(), "ETHUSDT", "1h", 10)
	require.ErrorIs(t, err, ports.ErrFetchFailed)
	assert.ErrorIs(t, err, ports.ErrConnectionFailed)
}

func TestFetchKlines_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := New(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond, Logger: &mockLogger{}})
	require.NoError(t, err)

	_, err = client.FetchKlines(context.Background(), "ETHUSDT", "1h", 10)
	require.ErrorIs(t, err, ports.ErrFetchFailed)
	assert.ErrorIs(t, err, ports.ErrTimeout)
}

func TestFetchKlines_ContextCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchKlines(ctx, "ETHUSDT", "1h", 10)
	require.ErrorIs(t, err, ports.ErrFetchFailed)
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}

func TestPingAndServerTime(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v3/ping":
			_, _ = w.Write([]byte(`{}`))
		case "/api/v3/time":
			_, _ = w.Write([]byte(`{"serverTime":1700000000000}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, client.Ping(context.Background()))

	serverTime, err := client.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), serverTime)
}

func TestPing_Failure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":-1001,"msg":"Internal error; unable to process your request. Please try again."}`))
	})

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrExchangeUnavailable)
}
