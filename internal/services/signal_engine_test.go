package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/utils"
)

var seriesStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// dailySeries builds a series of daily closes starting at seriesStart.
func dailySeries(t *testing.T, closes ...float64) models.PriceSeries {
	t.Helper()
	points := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = models.PricePoint{Timestamp: seriesStart.AddDate(0, 0, i), Close: c}
	}
	series, err := models.NewPriceSeries(points)
	require.NoError(t, err)
	return series
}

func signalValues(points []models.SignalPoint) (signals, positions []int) {
	for _, p := range points {
		signals = append(signals, p.Signal)
		positions = append(positions, p.Position)
	}
	return signals, positions
}

func TestComputeSignals_Scenario(t *testing.T) {
	series := dailySeries(t, 100, 110, 90, 95, 120)

	points, err := ComputeSignals(series, 1, 2)
	require.NoError(t, err)
	require.Len(t, points, 5)

	signals, positions := signalValues(points)
	assert.Equal(t, []int{0, 1, 0, 1, 1}, signals)
	assert.Equal(t, []int{0, 1, -1, 1, 0}, positions)

	// Long average uses a partial window on the first point.
	assert.InDelta(t, 100.0, points[0].LongAvg, 1e-12)
	assert.InDelta(t, 105.0, points[1].LongAvg, 1e-12)
	assert.InDelta(t, 92.5, points[3].LongAvg, 1e-12)
	assert.InDelta(t, 120.0, points[4].ShortAvg, 1e-12)

	for i, p := range points {
		assert.Equal(t, series.At(i).Timestamp, p.Timestamp)
	}
}

func TestComputeSignals_FirstPositionIsAlwaysHold(t *testing.T) {
	// Short above long from the very first point once the windows differ.
	series := dailySeries(t, 10, 20, 30, 40)

	points, err := ComputeSignals(series, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, points[0].Position)

	signals, positions := signalValues(points)
	assert.Equal(t, []int{0, 1, 1, 1}, signals)
	assert.Equal(t, []int{0, 1, 0, 0}, positions)
}

func TestComputeSignals_EqualAveragesAreNotASignal(t *testing.T) {
	series := dailySeries(t, 50, 50, 50, 50, 50)

	points, err := ComputeSignals(series, 2, 4)
	require.NoError(t, err)

	signals, positions := signalValues(points)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, signals)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, positions)
}

func TestComputeSignals_WindowLongerThanSeries(t *testing.T) {
	series := dailySeries(t, 1, 2, 3)

	points, err := ComputeSignals(series, 2, 10)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.InDelta(t, 1.0, points[0].LongAvg, 1e-12)
	assert.InDelta(t, 1.5, points[1].LongAvg, 1e-12)
	assert.InDelta(t, 2.0, points[2].LongAvg, 1e-12)
	assert.InDelta(t, 2.5, points[2].ShortAvg, 1e-12)
}

func TestComputeSignals_ShortNotSmallerThanLongIsAccepted(t *testing.T) {
	series := dailySeries(t, 100, 101, 102, 103)

	points, err := ComputeSignals(series, 3, 3)
	require.NoError(t, err)
	signals, _ := signalValues(points)
	assert.Equal(t, []int{0, 0, 0, 0}, signals)
}

func TestComputeSignals_EmptySeries(t *testing.T) {
	series := dailySeries(t)

	points, err := ComputeSignals(series, 2, 5)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestComputeSignals_InvalidWindows(t *testing.T) {
	series := dailySeries(t, 1, 2, 3)

	tests := []struct {
		name        string
		short, long int
	}{
		{"zero short", 0, 5},
		{"negative long", 2, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeSignals(series, tt.short, tt.long)
			require.Error(t, err)
			assert.True(t, utils.IsInvalidInput(err))
		})
	}
}

func TestRollingMean(t *testing.T) {
	values := []float64{2, 4, 6, 8, 10}

	assert.InDeltaSlice(t, []float64{2, 3, 4, 6, 8}, rollingMean(values, 3), 1e-12)
	assert.InDeltaSlice(t, values, rollingMean(values, 1), 1e-12)
	assert.InDeltaSlice(t, []float64{2, 3, 4, 5, 6}, rollingMean(values, 5), 1e-12)
	assert.Empty(t, rollingMean(nil, 3))
}

func TestComputeSignals_FlatSeriesNeverInvests(t *testing.T) {
	for _, price := range []float64{0.1, 1.7, 100.1} {
		closes := make([]float64, 365)
		for i := range closes {
			closes[i] = price
		}
		series := dailySeries(t, closes...)

		points, err := ComputeSignals(series, 3, 7)
		require.NoError(t, err)
		for i, p := range points {
			require.Equal(t, 0, p.Signal, "price %v index %d: short %v long %v", price, i, p.ShortAvg, p.LongAvg)
			require.Equal(t, price, p.ShortAvg)
			require.Equal(t, price, p.LongAvg)
		}

		stats, err := ComputeTradeStats(points, series)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TradeCount)
		assert.Nil(t, stats.WinRatePct)
	}
}

func TestRollingMean_ConstantWindowsAreExact(t *testing.T) {
	values := []float64{0.3, 0.1, 0.1, 0.1, 0.1, 0.2}

	got := rollingMean(values, 3)
	assert.InDelta(t, 0.3, got[0], 1e-12)
	assert.InDelta(t, 0.2, got[1], 1e-12)
	assert.InDelta(t, (0.3+0.1+0.1)/3, got[2], 1e-12)
	assert.Equal(t, 0.1, got[3])
	assert.Equal(t, 0.1, got[4])
	assert.InDelta(t, (0.1+0.1+0.2)/3, got[5], 1e-12)

	head := rollingMean([]float64{0.1, 0.1, 0.1}, 5)
	assert.Equal(t, []float64{0.1, 0.1, 0.1}, head)
}
