package models

import (
	"fmt"
	"math"
	"time"

	"github.com/irfndi/crossover-go/internal/utils"
	"github.com/shopspring/decimal"
)

// Recommended parameter ranges. Values outside them produce advisory warnings only.
const (
	MinRecommendedShortWindow = 2
	MaxRecommendedShortWindow = 50
	MinRecommendedLongWindow  = 10
	MaxRecommendedLongWindow  = 200

	DefaultShortWindow    = 10
	DefaultLongWindow     = 40
	DefaultInitialBalance = 10000.0
)

// Position transitions.
const (
	PositionExit  = -1
	PositionHold  = 0
	PositionEnter = 1
)

// SignalPoint is the crossover state at one observation.
type SignalPoint struct {
	Timestamp time.Time `json:"timestamp"`
	ShortAvg  float64   `json:"short"`
	LongAvg   float64   `json:"long"`
	Signal    int       `json:"signal"`   // 1 = invested, 0 = cash
	Position  int       `json:"position"` // 1 = enter, -1 = exit, 0 = no change
}

// TrajectoryPoint holds both portfolio balances at one observation.
type TrajectoryPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	AssetReturn     float64   `json:"asset_return"`
	StrategyReturn  float64   `json:"strategy_return"`
	StrategyBalance float64   `json:"strategy_balance"`
	BuyHoldBalance  float64   `json:"buy_hold_balance"`
}

// Trade is a reconstructed entry/exit pair.
type Trade struct {
	EntryTime      time.Time `json:"entry_time"`
	ExitTime       time.Time `json:"exit_time"`
	EntryPrice     float64   `json:"entry_price"`
	ExitPrice      float64   `json:"exit_price"`
	RealizedReturn float64   `json:"realized_return"`
	ForceClosed    bool      `json:"force_closed"` // closed at the final observation, not by an exit signal
}

// TradeStats summarizes realized trades. WinRatePct and AvgReturnPct are nil
// when there are no trades.
type TradeStats struct {
	TradeCount   int      `json:"trade_count"`
	WinRatePct   *float64 `json:"win_rate_pct"`
	AvgReturnPct *float64 `json:"avg_return_pct"`
	Trades       []Trade  `json:"trades"`
}

// DrawdownPoint is the running peak and drawdown at one observation.
type DrawdownPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	Balance          float64   `json:"balance"`
	RunningPeak      float64   `json:"running_peak"`
	DrawdownFraction float64   `json:"drawdown_fraction"`
}

// DrawdownResult is the drawdown series plus its maximum.
type DrawdownResult struct {
	Series              []DrawdownPoint `json:"series"`
	MaxDrawdownFraction float64         `json:"max_drawdown_fraction"`
	MaxDrawdownIndex    int             `json:"max_drawdown_index"` // -1 when the series is empty
	MaxDrawdownAt       time.Time       `json:"max_drawdown_at"`
}

// StrategyParams configures one crossover backtest.
type StrategyParams struct {
	ShortWindow    int     `json:"short_window" form:"short"`
	LongWindow     int     `json:"long_window" form:"long"`
	InitialBalance float64 `json:"initial_balance" form:"balance"`
}

// DefaultStrategyParams returns the 10/40 crossover with a 10,000 starting balance.
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		ShortWindow:    DefaultShortWindow,
		LongWindow:     DefaultLongWindow,
		InitialBalance: DefaultInitialBalance,
	}
}

// Validate returns advisory warnings for unusual but runnable parameters, and an
// InvalidInputError for parameters the engines cannot run with.
func (p StrategyParams) Validate() ([]string, error) {
	if p.ShortWindow < 1 {
		return nil, utils.NewInvalidInputErrorf("short_window", "must be at least 1, got %d", p.ShortWindow)
	}
	if p.LongWindow < 1 {
		return nil, utils.NewInvalidInputErrorf("long_window", "must be at least 1, got %d", p.LongWindow)
	}
	if math.IsNaN(p.InitialBalance) || math.IsInf(p.InitialBalance, 0) || p.InitialBalance <= 0 {
		return nil, utils.NewInvalidInputErrorf("initial_balance", "must be positive, got %v", p.InitialBalance)
	}

	var warnings []string
	if p.ShortWindow >= p.LongWindow {
		warnings = append(warnings, fmt.Sprintf("short window (%d) should be smaller than long window (%d)", p.ShortWindow, p.LongWindow))
	}
	if p.ShortWindow < MinRecommendedShortWindow || p.ShortWindow > MaxRecommendedShortWindow {
		warnings = append(warnings, fmt.Sprintf("short window %d is outside the recommended range %d-%d",
			p.ShortWindow, MinRecommendedShortWindow, MaxRecommendedShortWindow))
	}
	if p.LongWindow < MinRecommendedLongWindow || p.LongWindow > MaxRecommendedLongWindow {
		warnings = append(warnings, fmt.Sprintf("long window %d is outside the recommended range %d-%d",
			p.LongWindow, MinRecommendedLongWindow, MaxRecommendedLongWindow))
	}
	return warnings, nil
}

// BacktestSummary is the metrics panel: every figure rounded to two decimals.
type BacktestSummary struct {
	InitialBalance       decimal.Decimal  `json:"initial_balance"`
	FinalBuyHoldBalance  decimal.Decimal  `json:"final_buy_hold_balance"`
	FinalStrategyBalance decimal.Decimal  `json:"final_strategy_balance"`
	BuyHoldReturnPct     decimal.Decimal  `json:"buy_hold_return_pct"`
	StrategyReturnPct    decimal.Decimal  `json:"strategy_return_pct"`
	TradeCount           int              `json:"trade_count"`
	WinRatePct           *decimal.Decimal `json:"win_rate_pct"`
	AvgReturnPct         *decimal.Decimal `json:"avg_return_pct"`
	MaxDrawdownPct       decimal.Decimal  `json:"max_drawdown_pct"`
}

// BacktestReport is everything a presentation layer needs for one run.
type BacktestReport struct {
	RunID       string            `json:"run_id,omitempty"`
	Symbol      string            `json:"symbol,omitempty"`
	Exchange    string            `json:"exchange,omitempty"`
	Timeframe   string            `json:"timeframe,omitempty"`
	Params      StrategyParams    `json:"params"`
	Warnings    []string          `json:"warnings,omitempty"`
	Signals     []SignalPoint     `json:"signals"`
	Trajectory  []TrajectoryPoint `json:"trajectory"`
	Drawdown    DrawdownResult    `json:"drawdown"`
	TradeStats  TradeStats        `json:"trade_stats"`
	Summary     BacktestSummary   `json:"summary"`
	SeriesStart time.Time         `json:"series_start"`
	SeriesEnd   time.Time         `json:"series_end"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// BacktestRequest asks for a fetched-data backtest of one symbol.
type BacktestRequest struct {
	Symbol       string         `json:"symbol" form:"symbol"`
	Exchange     string         `json:"exchange" form:"exchange"`
	Timeframe    string         `json:"timeframe" form:"timeframe"`
	LookbackDays int            `json:"lookback_days" form:"lookback_days"`
	Params       StrategyParams `json:"params"`
	Notify       bool           `json:"notify" form:"notify"`
}

// BacktestRun is the persisted summary of a completed backtest.
type BacktestRun struct {
	ID                   string           `json:"id" db:"id"`
	Symbol               string           `json:"symbol" db:"symbol"`
	Exchange             string           `json:"exchange" db:"exchange"`
	Timeframe            string           `json:"timeframe" db:"timeframe"`
	ShortWindow          int              `json:"short_window" db:"short_window"`
	LongWindow           int              `json:"long_window" db:"long_window"`
	InitialBalance       decimal.Decimal  `json:"initial_balance" db:"initial_balance"`
	FinalStrategyBalance decimal.Decimal  `json:"final_strategy_balance" db:"final_strategy_balance"`
	FinalBuyHoldBalance  decimal.Decimal  `json:"final_buy_hold_balance" db:"final_buy_hold_balance"`
	TradeCount           int              `json:"trade_count" db:"trade_count"`
	WinRatePct           *decimal.Decimal `json:"win_rate_pct" db:"win_rate_pct"`
	AvgReturnPct         *decimal.Decimal `json:"avg_return_pct" db:"avg_return_pct"`
	MaxDrawdownPct       decimal.Decimal  `json:"max_drawdown_pct" db:"max_drawdown_pct"`
	SeriesStart          time.Time        `json:"series_start" db:"series_start"`
	SeriesEnd            time.Time        `json:"series_end" db:"series_end"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
}

// NewBacktestRun builds the persisted form of a report.
func NewBacktestRun(report *BacktestReport) BacktestRun {
	return BacktestRun{
		ID:                   report.RunID,
		Symbol:               report.Symbol,
		Exchange:             report.Exchange,
		Timeframe:            report.Timeframe,
		ShortWindow:          report.Params.ShortWindow,
		LongWindow:           report.Params.LongWindow,
		InitialBalance:       report.Summary.InitialBalance,
		FinalStrategyBalance: report.Summary.FinalStrategyBalance,
		FinalBuyHoldBalance:  report.Summary.FinalBuyHoldBalance,
		TradeCount:           report.Summary.TradeCount,
		WinRatePct:           report.Summary.WinRatePct,
		AvgReturnPct:         report.Summary.AvgReturnPct,
		MaxDrawdownPct:       report.Summary.MaxDrawdownPct,
		SeriesStart:          report.SeriesStart,
		SeriesEnd:            report.SeriesEnd,
		CreatedAt:            report.GeneratedAt,
	}
}
