package services

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/irfndi/crossover-go/internal/ccxt"
	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/telemetry"
	"github.com/irfndi/crossover-go/internal/utils"
)

// MaxSweepParams bounds the parameter sets evaluated by one Sweep call.
const MaxSweepParams = 64

// PriceSeriesProvider fetches the closing-price history for a query.
type PriceSeriesProvider interface {
	FetchSeries(ctx context.Context, query models.SeriesQuery) (models.PriceSeries, error)
}

// RunStore persists completed backtests.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.BacktestRun) error
}

// Notifier delivers a finished report somewhere outside the service.
type Notifier interface {
	NotifyBacktest(ctx context.Context, report *models.BacktestReport) error
}

// AnalysisDefaults fill in whatever a BacktestRequest leaves unset.
type AnalysisDefaults struct {
	Exchange     string
	Symbol       string
	Timeframe    string
	LookbackDays int
	Params       models.StrategyParams
}

// SweepResult is the outcome of one parameter set in a Sweep.
type SweepResult struct {
	Params   models.StrategyParams   `json:"params"`
	Warnings []string                `json:"warnings,omitempty"`
	Summary  *models.BacktestSummary `json:"summary,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// CrossoverService runs the crossover pipeline and its I/O around it.
type CrossoverService struct {
	provider PriceSeriesProvider
	runs     RunStore
	notifier Notifier
	recovery *ErrorRecoveryManager
	defaults AnalysisDefaults
	tracer   *telemetry.BusinessTracer
	logger   *logrus.Logger
	now      func() time.Time
}

// NewCrossoverService wires the pipeline. runs and notifier may be nil.
func NewCrossoverService(
	provider PriceSeriesProvider,
	runs RunStore,
	notifier Notifier,
	recovery *ErrorRecoveryManager,
	defaults AnalysisDefaults,
	logger *logrus.Logger,
) *CrossoverService {
	return &CrossoverService{
		provider: provider,
		runs:     runs,
		notifier: notifier,
		recovery: recovery,
		defaults: defaults,
		tracer:   telemetry.NewBusinessTracer(),
		logger:   logger,
		now:      time.Now,
	}
}

// Evaluate runs the pure pipeline on series: signals, both trajectories,
// trade statistics, drawdown and the rounded summary.
func (s *CrossoverService) Evaluate(series models.PriceSeries, params models.StrategyParams) (*models.BacktestReport, error) {
	report, err := evaluate(series, params)
	if err != nil {
		return nil, err
	}
	report.GeneratedAt = s.now().UTC()
	return report, nil
}

func evaluate(series models.PriceSeries, params models.StrategyParams) (*models.BacktestReport, error) {
	warnings, err := params.Validate()
	if err != nil {
		return nil, err
	}
	if series.Len() < 2 {
		return nil, utils.NewInsufficientDataError("backtest", 2, series.Len())
	}

	signals, err := ComputeSignals(series, params.ShortWindow, params.LongWindow)
	if err != nil {
		return nil, err
	}
	trajectory, err := RunBacktest(series, signals, params.InitialBalance)
	if err != nil {
		return nil, err
	}
	stats, err := ComputeTradeStats(signals, series)
	if err != nil {
		return nil, err
	}
	drawdown := ComputeTrajectoryDrawdown(trajectory)

	first, _ := series.First()
	last, _ := series.Last()

	return &models.BacktestReport{
		Params:      params,
		Warnings:    warnings,
		Signals:     signals,
		Trajectory:  trajectory,
		Drawdown:    drawdown,
		TradeStats:  stats,
		Summary:     Summarize(params.InitialBalance, trajectory, stats, drawdown),
		SeriesStart: first.Timestamp,
		SeriesEnd:   last.Timestamp,
	}, nil
}

// Summarize rounds the headline figures of a run to two decimals. Undefined
// trade statistics stay nil.
func Summarize(initialBalance float64, trajectory []models.TrajectoryPoint, stats models.TradeStats, drawdown models.DrawdownResult) models.BacktestSummary {
	hundred := decimal.NewFromInt(100)
	initial := decimal.NewFromFloat(initialBalance)

	summary := models.BacktestSummary{
		InitialBalance: initial.Round(2),
		TradeCount:     stats.TradeCount,
		MaxDrawdownPct: decimal.NewFromFloat(drawdown.MaxDrawdownFraction).Mul(hundred).Round(2),
	}

	if n := len(trajectory); n > 0 {
		finalStrategy := decimal.NewFromFloat(trajectory[n-1].StrategyBalance)
		finalBuyHold := decimal.NewFromFloat(trajectory[n-1].BuyHoldBalance)

		summary.FinalStrategyBalance = finalStrategy.Round(2)
		summary.FinalBuyHoldBalance = finalBuyHold.Round(2)
		summary.StrategyReturnPct = finalStrategy.Div(initial).Sub(decimal.NewFromInt(1)).Mul(hundred).Round(2)
		summary.BuyHoldReturnPct = finalBuyHold.Div(initial).Sub(decimal.NewFromInt(1)).Mul(hundred).Round(2)
	}

	summary.WinRatePct = roundedPtr(stats.WinRatePct)
	summary.AvgReturnPct = roundedPtr(stats.AvgReturnPct)
	return summary
}

func roundedPtr(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v).Round(2)
	return &d
}

// Analyze fetches the requested series, evaluates it and records the result.
// Persistence and notification failures are logged and do not fail the run.
func (s *CrossoverService) Analyze(ctx context.Context, req models.BacktestRequest) (*models.BacktestReport, error) {
	query, params := s.resolve(req)

	query, err := ccxt.NormalizeQuery(query)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.TraceBacktest(ctx, query.Exchange, query.Symbol, params.ShortWindow, params.LongWindow)
	defer span.End()

	log := s.logger.WithFields(logrus.Fields{
		"exchange":     query.Exchange,
		"symbol":       query.Symbol,
		"timeframe":    query.Timeframe,
		"short_window": params.ShortWindow,
		"long_window":  params.LongWindow,
	})

	if _, err := params.Validate(); err != nil {
		s.tracer.RecordError(span, err)
		return nil, err
	}

	series, err := s.fetch(ctx, query)
	if err != nil {
		s.tracer.RecordError(span, err)
		log.WithError(err).Warn("Failed to fetch price series")
		return nil, err
	}

	report, err := s.Evaluate(series, params)
	if err != nil {
		s.tracer.RecordError(span, err)
		return nil, err
	}

	report.RunID = uuid.New().String()
	report.Exchange = query.Exchange
	report.Symbol = query.Symbol
	report.Timeframe = query.Timeframe

	for _, w := range report.Warnings {
		log.WithField("warning", w).Warn("Unusual strategy parameters")
	}

	strategyReturn, _ := report.Summary.StrategyReturnPct.Float64()
	maxDrawdown, _ := report.Summary.MaxDrawdownPct.Float64()
	s.tracer.RecordBacktestResult(span, series.Len(), report.TradeStats.TradeCount, strategyReturn, maxDrawdown)

	s.persist(ctx, report, log)

	if req.Notify && s.notifier != nil {
		if err := s.notifier.NotifyBacktest(ctx, report); err != nil {
			log.WithError(err).Warn("Failed to send backtest notification")
		}
	}

	log.WithFields(logrus.Fields{
		"run_id":       report.RunID,
		"points":       series.Len(),
		"trades":       report.TradeStats.TradeCount,
		"strategy_pct": report.Summary.StrategyReturnPct.String(),
		"buy_hold_pct": report.Summary.BuyHoldReturnPct.String(),
	}).Info("Backtest completed")

	return report, nil
}

func (s *CrossoverService) resolve(req models.BacktestRequest) (models.SeriesQuery, models.StrategyParams) {
	query := models.SeriesQuery{
		Exchange:     req.Exchange,
		Symbol:       req.Symbol,
		Timeframe:    req.Timeframe,
		LookbackDays: req.LookbackDays,
	}
	if query.Exchange == "" {
		query.Exchange = s.defaults.Exchange
	}
	if query.Symbol == "" {
		query.Symbol = s.defaults.Symbol
	}
	if query.Timeframe == "" {
		query.Timeframe = s.defaults.Timeframe
	}
	if query.LookbackDays == 0 {
		query.LookbackDays = s.defaults.LookbackDays
	}

	return query, s.ApplyDefaults(req.Params)
}

// ApplyDefaults fills the unset (zero) fields of params from the configured
// defaults. Explicit invalid values are kept so validation reports them.
func (s *CrossoverService) ApplyDefaults(params models.StrategyParams) models.StrategyParams {
	if params.ShortWindow == 0 {
		params.ShortWindow = s.defaults.Params.ShortWindow
	}
	if params.LongWindow == 0 {
		params.LongWindow = s.defaults.Params.LongWindow
	}
	if params.InitialBalance == 0 {
		params.InitialBalance = s.defaults.Params.InitialBalance
	}
	return params
}

func (s *CrossoverService) fetch(ctx context.Context, query models.SeriesQuery) (models.PriceSeries, error) {
	ctx, span := s.tracer.TraceMarketDataFetch(ctx, query.Exchange, query.Symbol, query.Timeframe)
	defer span.End()

	var series models.PriceSeries
	operation := func() error {
		var err error
		series, err = s.provider.FetchSeries(ctx, query)
		return err
	}

	var err error
	if s.recovery != nil {
		err = s.recovery.ExecuteWithRetry(ctx, OperationMarketDataFetch, operation)
	} else {
		err = operation()
	}
	if err != nil {
		s.tracer.RecordError(span, err)
		return models.PriceSeries{}, err
	}
	return series, nil
}

func (s *CrossoverService) persist(ctx context.Context, report *models.BacktestReport, log *logrus.Entry) {
	if s.runs == nil {
		return
	}

	run := models.NewBacktestRun(report)
	save := func() error { return s.runs.SaveRun(ctx, &run) }

	var err error
	if s.recovery != nil {
		err = s.recovery.ExecuteWithRetry(ctx, OperationDatabase, save)
	} else {
		err = save()
	}
	if err != nil {
		log.WithError(err).WithField("run_id", report.RunID).Error("Failed to persist backtest run")
	}
}

// Sweep evaluates every parameter set against the same series in parallel.
// A failing set is reported in its result and does not stop the others.
func (s *CrossoverService) Sweep(ctx context.Context, series models.PriceSeries, paramSets []models.StrategyParams) ([]SweepResult, error) {
	if len(paramSets) == 0 {
		return nil, utils.NewInvalidInputError("params", "at least one parameter set is required")
	}
	if len(paramSets) > MaxSweepParams {
		return nil, utils.NewInvalidInputErrorf("params", "at most %d parameter sets are allowed, got %d", MaxSweepParams, len(paramSets))
	}
	if series.Len() < 2 {
		return nil, utils.NewInsufficientDataError("sweep", 2, series.Len())
	}

	results := make([]SweepResult, len(paramSets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency(ctx))

	for i, params := range paramSets {
		i, params := i, params
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result := SweepResult{Params: params}
			report, err := evaluate(series, params)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Warnings = report.Warnings
				result.Summary = &report.Summary
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"points": series.Len(),
		"sets":   len(paramSets),
	}).Debug("Parameter sweep completed")

	return results, nil
}

func sweepConcurrency(ctx context.Context) int {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}
