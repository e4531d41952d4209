package ccxt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/crossover-go/internal/config"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewClient(t *testing.T) {
	client := NewClient(&config.CCXTConfig{ServiceURL: "http://localhost:3001/", Timeout: 5}, newTestLogger())

	assert.Equal(t, "http://localhost:3001", client.BaseURL())
	assert.Equal(t, 5*time.Second, client.HTTPClient.Timeout)

	client = NewClient(&config.CCXTConfig{ServiceURL: "http://localhost:3001"}, newTestLogger())
	assert.Equal(t, 30*time.Second, client.HTTPClient.Timeout)
}

func TestClient_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Version: "1.0.0"})
	}))
	defer server.Close()

	client := NewClient(&config.CCXTConfig{ServiceURL: server.URL}, newTestLogger())
	resp, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestClient_GetOHLCV(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ohlcv/binance/BTCUSDT", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("timeframe"))
		assert.Equal(t, "30", r.URL.Query().Get("limit"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(OHLCVResponse{
			Exchange:  "binance",
			Symbol:    "BTC/USDT",
			Timeframe: "1d",
			OHLCV: []OHLCV{{
				Timestamp: ts,
				Open:      decimal.NewFromFloat(42000),
				High:      decimal.NewFromFloat(43000),
				Low:       decimal.NewFromFloat(41000),
				Close:     decimal.NewFromFloat(42500.5),
				Volume:    decimal.NewFromInt(1200),
			}},
		})
	}))
	defer server.Close()

	client := NewClient(&config.CCXTConfig{ServiceURL: server.URL}, newTestLogger())
	resp, err := client.GetOHLCV(context.Background(), "binance", "BTC/USDT", "1d", 30)
	require.NoError(t, err)
	require.Len(t, resp.OHLCV, 1)
	assert.True(t, resp.OHLCV[0].Timestamp.Equal(ts))
	assert.True(t, resp.OHLCV[0].Close.Equal(decimal.NewFromFloat(42500.5)))
}

func TestClient_GetOHLCV_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "exchange unavailable"})
	}))
	defer server.Close()

	client := NewClient(&config.CCXTConfig{ServiceURL: server.URL}, newTestLogger())
	_, err := client.GetOHLCV(context.Background(), "binance", "BTC/USDT", "1d", 30)
	require.Error(t, err)

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusBadGateway, svcErr.StatusCode)
	assert.Contains(t, err.Error(), "exchange unavailable")
}

func TestClient_FormatSymbolForExchange(t *testing.T) {
	client := NewClient(&config.CCXTConfig{ServiceURL: "http://x"}, newTestLogger())

	assert.Equal(t, "BTCUSDT", client.formatSymbolForExchange("binance", "BTC/USDT"))
	assert.Equal(t, "BTC-USDT", client.formatSymbolForExchange("coinbase", "BTC/USDT"))
	assert.Equal(t, "BTC%2FUSDT", client.formatSymbolForExchange("kraken", "BTC/USDT"))
}
