package services

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/utils"
)

// ComputeSignals derives the short/long moving averages, the binary crossover
// signal and its transitions for every observation in series.
//
// The signal is 1 when the short average is strictly above the long average.
// Position is the first difference of the signal, with the first observation
// fixed at 0 since there is no prior state. shortWindow >= longWindow is
// accepted; callers surface it as a configuration warning.
func ComputeSignals(series models.PriceSeries, shortWindow, longWindow int) ([]models.SignalPoint, error) {
	if shortWindow < 1 {
		return nil, utils.NewInvalidInputErrorf("short_window", "must be at least 1, got %d", shortWindow)
	}
	if longWindow < 1 {
		return nil, utils.NewInvalidInputErrorf("long_window", "must be at least 1, got %d", longWindow)
	}

	closes := series.Closes()
	shortAvg := rollingMean(closes, shortWindow)
	longAvg := rollingMean(closes, longWindow)

	signals := make([]models.SignalPoint, len(closes))
	for i := range closes {
		signal := 0
		if shortAvg[i] > longAvg[i] {
			signal = 1
		}

		position := models.PositionHold
		if i > 0 {
			position = signal - signals[i-1].Signal
		}

		signals[i] = models.SignalPoint{
			Timestamp: series.At(i).Timestamp,
			ShortAvg:  shortAvg[i],
			LongAvg:   longAvg[i],
			Signal:    signal,
			Position:  position,
		}
	}

	return signals, nil
}

// rollingMean returns the trailing mean of values over window, using a
// shrinking window for the first window-1 observations so that no index is
// left undefined.
func rollingMean(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)

	head := window - 1
	if head > n {
		head = n
	}

	// Partial windows: expanding mean over [0, i].
	sum := 0.0
	for i := 0; i < head; i++ {
		sum += values[i]
		out[i] = sum / float64(i+1)
	}

	if n < window {
		pinConstantWindows(values, out, window)
		return out
	}

	sma := trend.NewSmaWithPeriod[float64](window)
	full := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	copy(out[window-1:], full)

	pinConstantWindows(values, out, window)
	return out
}

// pinConstantWindows replaces the mean with the close itself wherever the
// whole window holds one repeated value, so equal averages compare equal
// instead of differing by accumulated rounding.
func pinConstantWindows(values, out []float64, window int) {
	run := 0
	for i, v := range values {
		if i > 0 && v == values[i-1] {
			run++
		} else {
			run = 1
		}
		if run >= window || run == i+1 {
			out[i] = v
		}
	}
}
