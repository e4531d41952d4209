package services

import (
	"time"

	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/utils"
)

// ComputeTradeStats reconstructs entry/exit pairs from signal transitions and
// summarizes them.
//
// At most one entry is open at a time. An exit with nothing open is ignored.
// An entry while one is already open cannot come out of ComputeSignals and is
// rejected as malformed input. A position still open after the last
// observation is closed at the final close so unrealized exposure is counted.
// Win rate and average return are nil when no trades were made.
func ComputeTradeStats(signals []models.SignalPoint, series models.PriceSeries) (models.TradeStats, error) {
	if len(signals) < 2 {
		return models.TradeStats{}, utils.NewInsufficientDataError("trade_stats", 2, len(signals))
	}
	last, ok := series.Last()
	if !ok || series.Len() < 2 {
		return models.TradeStats{}, utils.NewInsufficientDataError("trade_stats", 2, series.Len())
	}

	trades := make([]models.Trade, 0)
	var open *models.Trade

	for i, sig := range signals {
		switch sig.Position {
		case models.PositionHold:
			continue
		case models.PositionEnter, models.PositionExit:
		default:
			return models.TradeStats{}, utils.NewInvalidInputErrorf("signals", "point %d has position %d, want -1, 0 or 1", i, sig.Position)
		}

		price, found := series.PriceAt(sig.Timestamp)
		if !found {
			return models.TradeStats{}, utils.NewInvalidInputErrorf("signals", "point %d at %s has no matching price",
				i, sig.Timestamp.Format("2006-01-02"))
		}

		if sig.Position == models.PositionEnter {
			if open != nil {
				return models.TradeStats{}, utils.NewInvalidInputErrorf("signals",
					"point %d enters while the position opened at %s is still open", i, open.EntryTime.Format("2006-01-02"))
			}
			open = &models.Trade{EntryTime: sig.Timestamp, EntryPrice: price}
			continue
		}

		if open == nil {
			continue
		}
		trades = append(trades, closeTrade(*open, sig.Timestamp, price, false))
		open = nil
	}

	if open != nil {
		trades = append(trades, closeTrade(*open, last.Timestamp, last.Close, true))
	}

	return summarizeTrades(trades), nil
}

func closeTrade(t models.Trade, exitTime time.Time, exitPrice float64, forced bool) models.Trade {
	t.ExitTime = exitTime
	t.ExitPrice = exitPrice
	t.RealizedReturn = exitPrice/t.EntryPrice - 1
	t.ForceClosed = forced
	return t
}

func summarizeTrades(trades []models.Trade) models.TradeStats {
	stats := models.TradeStats{TradeCount: len(trades), Trades: trades}
	if len(trades) == 0 {
		return stats
	}

	wins := 0
	sum := 0.0
	for _, t := range trades {
		if t.RealizedReturn > 0 {
			wins++
		}
		sum += t.RealizedReturn
	}

	n := float64(len(trades))
	winRate := 100 * float64(wins) / n
	avgReturn := 100 * sum / n
	stats.WinRatePct = &winRate
	stats.AvgReturnPct = &avgReturn
	return stats
}
