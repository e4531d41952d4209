package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oscillatingCloses is a trending sine wave, long enough to cross many times.
func oscillatingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 20*math.Sin(float64(i)/5) + 0.1*float64(i)
	}
	return closes
}

func TestEngines_RepeatedRunsAreIdentical(t *testing.T) {
	series := dailySeries(t, oscillatingCloses(250)...)

	run := func() ([]float64, []float64, int, []float64) {
		signals, err := ComputeSignals(series, 5, 20)
		require.NoError(t, err)
		trajectory, err := RunBacktest(series, signals, 10000)
		require.NoError(t, err)
		stats, err := ComputeTradeStats(signals, series)
		require.NoError(t, err)

		strategy, buyHold := balances(trajectory)
		returns := make([]float64, len(stats.Trades))
		for i, tr := range stats.Trades {
			returns[i] = tr.RealizedReturn
		}
		return strategy, buyHold, stats.TradeCount, returns
	}

	s1, b1, n1, r1 := run()
	s2, b2, n2, r2 := run()
	require.Equal(t, s1, s2)
	require.Equal(t, b1, b2)
	require.Equal(t, n1, n2)
	require.Equal(t, r1, r2)
	assert.Greater(t, n1, 1)

	signalsA, err := ComputeSignals(series, 5, 20)
	require.NoError(t, err)
	signalsB, err := ComputeSignals(series, 5, 20)
	require.NoError(t, err)
	require.Equal(t, signalsA, signalsB)
}

func TestRunBacktest_BalancesNeverNegative(t *testing.T) {
	series := dailySeries(t, oscillatingCloses(250)...)

	for _, windows := range [][2]int{{1, 2}, {5, 20}, {20, 5}, {10, 40}} {
		signals, err := ComputeSignals(series, windows[0], windows[1])
		require.NoError(t, err)
		trajectory, err := RunBacktest(series, signals, 1000)
		require.NoError(t, err)

		for i, p := range trajectory {
			require.GreaterOrEqual(t, p.StrategyBalance, 0.0, "windows %v index %d", windows, i)
			require.GreaterOrEqual(t, p.BuyHoldBalance, 0.0, "windows %v index %d", windows, i)
		}
	}
}

func TestComputeSignals_PositionIsSignalDifference(t *testing.T) {
	series := dailySeries(t, oscillatingCloses(250)...)

	points, err := ComputeSignals(series, 3, 12)
	require.NoError(t, err)
	require.Len(t, points, series.Len())

	signals, positions := signalValues(points)
	assert.Equal(t, 0, positions[0])

	enters, exits := 0, 0
	for i := 1; i < len(points); i++ {
		require.Equal(t, signals[i]-signals[i-1], positions[i], "index %d", i)
		require.Contains(t, []int{-1, 0, 1}, positions[i])
		require.Equal(t, series.At(i).Timestamp, points[i].Timestamp)
		switch positions[i] {
		case 1:
			enters++
		case -1:
			exits++
		}
	}
	assert.Greater(t, enters, 2)
	assert.Greater(t, exits, 2)
}
