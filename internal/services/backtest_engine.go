package services

import (
	"math"

	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/utils"
)

// RunBacktest simulates the crossover strategy and a buy-and-hold baseline.
//
// Both balances are initialBalance times a single left-to-right running
// product of per-period multipliers. The strategy compounds the asset's
// period return only where signal is 1 and stays flat otherwise. The first
// observation has no prior close and contributes a multiplier of 1.
func RunBacktest(series models.PriceSeries, signals []models.SignalPoint, initialBalance float64) ([]models.TrajectoryPoint, error) {
	if math.IsNaN(initialBalance) || math.IsInf(initialBalance, 0) || initialBalance <= 0 {
		return nil, utils.NewInvalidInputErrorf("initial_balance", "must be positive, got %v", initialBalance)
	}
	if series.Len() < 2 {
		return nil, utils.NewInsufficientDataError("backtest", 2, series.Len())
	}
	if len(signals) != series.Len() {
		return nil, utils.NewInvalidInputErrorf("signals", "expected %d signal points, got %d", series.Len(), len(signals))
	}

	trajectory := make([]models.TrajectoryPoint, series.Len())
	strategyCum := 1.0
	buyHoldCum := 1.0

	for i := 0; i < series.Len(); i++ {
		point := series.At(i)
		sig := signals[i]

		if !sig.Timestamp.Equal(point.Timestamp) {
			return nil, utils.NewInvalidInputErrorf("signals", "signal %d is at %s, price is at %s",
				i, sig.Timestamp.Format("2006-01-02"), point.Timestamp.Format("2006-01-02"))
		}
		if sig.Signal != 0 && sig.Signal != 1 {
			return nil, utils.NewInvalidInputErrorf("signals", "signal %d has value %d, want 0 or 1", i, sig.Signal)
		}

		assetReturn := 1.0
		if i > 0 {
			assetReturn = point.Close / series.At(i-1).Close
		}

		strategyReturn := 1.0
		if sig.Signal == 1 {
			strategyReturn = assetReturn
		}

		strategyCum *= strategyReturn
		buyHoldCum *= assetReturn

		trajectory[i] = models.TrajectoryPoint{
			Timestamp:       point.Timestamp,
			AssetReturn:     assetReturn,
			StrategyReturn:  strategyReturn,
			StrategyBalance: initialBalance * strategyCum,
			BuyHoldBalance:  initialBalance * buyHoldCum,
		}
	}

	return trajectory, nil
}
