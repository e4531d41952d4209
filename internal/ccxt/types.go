package ccxt

import (
	"time"

	"github.com/shopspring/decimal"
)

// HealthResponse represents the response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
}

// OHLCV represents OHLCV (candlestick) data.
type OHLCV struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// OHLCVResponse represents the response from the OHLCV endpoint.
type OHLCVResponse struct {
	Exchange  string  `json:"exchange"`
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	OHLCV     []OHLCV `json:"ohlcv"`
	Timestamp string  `json:"timestamp"`
}

// ErrorResponse represents an error returned by the CCXT service.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}
