package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessTracer opens spans around domain operations.
type BusinessTracer struct {
	tracer trace.Tracer
}

// NewBusinessTracer creates a tracer backed by the global provider.
func NewBusinessTracer() *BusinessTracer {
	return &BusinessTracer{tracer: Tracer()}
}

// TraceBacktest starts a span for one backtest run.
func (bt *BusinessTracer) TraceBacktest(ctx context.Context, exchange, symbol string, shortWindow, longWindow int) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "backtest.analyze", trace.WithAttributes(
		attribute.String("backtest.exchange", exchange),
		attribute.String("backtest.symbol", symbol),
		attribute.Int("backtest.short_window", shortWindow),
		attribute.Int("backtest.long_window", longWindow),
	))
}

// TraceMarketDataFetch starts a span for a series fetch.
func (bt *BusinessTracer) TraceMarketDataFetch(ctx context.Context, exchange, symbol, timeframe string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "market_data.fetch", trace.WithAttributes(
		attribute.String("market_data.exchange", exchange),
		attribute.String("market_data.symbol", symbol),
		attribute.String("market_data.timeframe", timeframe),
	))
}

// RecordBacktestResult annotates span with the headline figures of a run.
func (bt *BusinessTracer) RecordBacktestResult(span trace.Span, points, trades int, strategyReturnPct, maxDrawdownPct float64) {
	span.SetAttributes(
		attribute.Int("backtest.points", points),
		attribute.Int("backtest.trades", trades),
		attribute.Float64("backtest.strategy_return_pct", strategyReturnPct),
		attribute.Float64("backtest.max_drawdown_pct", maxDrawdownPct),
	)
}

// RecordError marks span as failed.
func (bt *BusinessTracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
