package services

import (
	"math"
	"time"

	"github.com/irfndi/crossover-go/internal/models"
)

// maxDrawdownFraction keeps drawdown in [0, 1).
var maxDrawdownFraction = math.Nextafter(1, 0)

// ComputeDrawdown measures the decline of each balance from its running peak.
// Timestamps in the result are left zero; use ComputeTrajectoryDrawdown to
// attach them.
func ComputeDrawdown(balances []float64) models.DrawdownResult {
	return computeDrawdown(balances, nil)
}

// ComputeTrajectoryDrawdown measures drawdown of the strategy balance.
func ComputeTrajectoryDrawdown(trajectory []models.TrajectoryPoint) models.DrawdownResult {
	balances := make([]float64, len(trajectory))
	timestamps := make([]time.Time, len(trajectory))
	for i, p := range trajectory {
		balances[i] = p.StrategyBalance
		timestamps[i] = p.Timestamp
	}
	return computeDrawdown(balances, timestamps)
}

func computeDrawdown(balances []float64, timestamps []time.Time) models.DrawdownResult {
	result := models.DrawdownResult{
		Series:           make([]models.DrawdownPoint, len(balances)),
		MaxDrawdownIndex: -1,
	}
	if len(balances) == 0 {
		return result
	}

	peak := balances[0]
	for i, balance := range balances {
		if balance > peak {
			peak = balance
		}

		dd := 0.0
		if peak != 0 {
			dd = (peak - balance) / peak
		}
		if dd < 0 || math.IsNaN(dd) {
			dd = 0
		}
		if dd > maxDrawdownFraction {
			dd = maxDrawdownFraction
		}

		point := models.DrawdownPoint{
			Balance:          balance,
			RunningPeak:      peak,
			DrawdownFraction: dd,
		}
		if timestamps != nil {
			point.Timestamp = timestamps[i]
		}
		result.Series[i] = point

		if result.MaxDrawdownIndex < 0 || dd > result.MaxDrawdownFraction {
			result.MaxDrawdownFraction = dd
			result.MaxDrawdownIndex = i
			result.MaxDrawdownAt = point.Timestamp
		}
	}

	return result
}
