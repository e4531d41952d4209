package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/utils"
)

// withPositions returns hand-built signal points aligned to series.
func withPositions(series models.PriceSeries, positions ...int) []models.SignalPoint {
	points := make([]models.SignalPoint, len(positions))
	for i, pos := range positions {
		points[i] = models.SignalPoint{Timestamp: series.At(i).Timestamp, Position: pos}
	}
	return points
}

func TestComputeTradeStats_Scenario(t *testing.T) {
	series := dailySeries(t, 100, 110, 90, 95, 120)
	signals, err := ComputeSignals(series, 1, 2)
	require.NoError(t, err)

	stats, err := ComputeTradeStats(signals, series)
	require.NoError(t, err)

	require.Equal(t, 2, stats.TradeCount)
	require.Len(t, stats.Trades, 2)

	first := stats.Trades[0]
	assert.Equal(t, 110.0, first.EntryPrice)
	assert.Equal(t, 90.0, first.ExitPrice)
	assert.InDelta(t, -0.181818, first.RealizedReturn, 1e-6)
	assert.False(t, first.ForceClosed)

	second := stats.Trades[1]
	assert.Equal(t, 95.0, second.EntryPrice)
	assert.Equal(t, 120.0, second.ExitPrice)
	assert.InDelta(t, 0.263158, second.RealizedReturn, 1e-6)
	assert.True(t, second.ForceClosed)
	assert.Equal(t, series.At(4).Timestamp, second.ExitTime)

	require.NotNil(t, stats.WinRatePct)
	require.NotNil(t, stats.AvgReturnPct)
	assert.InDelta(t, 50.0, *stats.WinRatePct, 1e-9)
	assert.InDelta(t, 4.0670, *stats.AvgReturnPct, 1e-3)
}

func TestComputeTradeStats_NoTrades(t *testing.T) {
	series := dailySeries(t, 100, 90, 80)
	signals, err := ComputeSignals(series, 1, 3)
	require.NoError(t, err)

	stats, err := ComputeTradeStats(signals, series)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TradeCount)
	assert.NotNil(t, stats.Trades)
	assert.Empty(t, stats.Trades)
	assert.Nil(t, stats.WinRatePct)
	assert.Nil(t, stats.AvgReturnPct)
}

func TestComputeTradeStats_OrphanExitIsIgnored(t *testing.T) {
	series := dailySeries(t, 100, 105, 110, 120)
	signals := withPositions(series, 0, -1, 1, -1)

	stats, err := ComputeTradeStats(signals, series)
	require.NoError(t, err)

	require.Equal(t, 1, stats.TradeCount)
	assert.Equal(t, 110.0, stats.Trades[0].EntryPrice)
	assert.Equal(t, 120.0, stats.Trades[0].ExitPrice)
	assert.InDelta(t, 100.0, *stats.WinRatePct, 1e-9)
}

func TestComputeTradeStats_RepeatEntryIsRejected(t *testing.T) {
	series := dailySeries(t, 100, 105, 110)
	signals := withPositions(series, 0, 1, 1)

	_, err := ComputeTradeStats(signals, series)
	require.Error(t, err)
	assert.True(t, utils.IsInvalidInput(err))
}

func TestComputeTradeStats_BreakEvenIsNotAWin(t *testing.T) {
	series := dailySeries(t, 100, 100, 100)
	signals := withPositions(series, 0, 1, -1)

	stats, err := ComputeTradeStats(signals, series)
	require.NoError(t, err)

	require.Equal(t, 1, stats.TradeCount)
	assert.Equal(t, 0.0, *stats.WinRatePct)
	assert.Equal(t, 0.0, *stats.AvgReturnPct)
}

func TestComputeTradeStats_EntryOnLastPointIsForceClosedFlat(t *testing.T) {
	series := dailySeries(t, 100, 101, 102)
	signals := withPositions(series, 0, 0, 1)

	stats, err := ComputeTradeStats(signals, series)
	require.NoError(t, err)

	require.Equal(t, 1, stats.TradeCount)
	assert.True(t, stats.Trades[0].ForceClosed)
	assert.Equal(t, 0.0, stats.Trades[0].RealizedReturn)
}

func TestComputeTradeStats_InvalidInput(t *testing.T) {
	series := dailySeries(t, 100, 105, 110)

	t.Run("position out of range", func(t *testing.T) {
		_, err := ComputeTradeStats(withPositions(series, 0, 2, 0), series)
		assert.True(t, utils.IsInvalidInput(err))
	})

	t.Run("timestamp without price", func(t *testing.T) {
		signals := withPositions(series, 0, 1, 0)
		signals[1].Timestamp = signals[1].Timestamp.Add(1)
		_, err := ComputeTradeStats(signals, series)
		assert.True(t, utils.IsInvalidInput(err))
	})
}

func TestComputeTradeStats_InsufficientData(t *testing.T) {
	series := dailySeries(t, 100)

	_, err := ComputeTradeStats(withPositions(series, 0), series)
	require.Error(t, err)
	assert.True(t, utils.IsInsufficientData(err))
}
