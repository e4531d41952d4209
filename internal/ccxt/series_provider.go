package ccxt

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/irfndi/crossover-go/internal/models"
	"github.com/irfndi/crossover-go/internal/utils"
)

// maxCandles caps a single OHLCV request.
const maxCandles = 5000

// OHLCVFetcher is the subset of Client the provider needs.
type OHLCVFetcher interface {
	GetOHLCV(ctx context.Context, exchange, symbol, timeframe string, limit int) (*OHLCVResponse, error)
}

// SeriesProvider turns CCXT candles into a clean closing-price series.
type SeriesProvider struct {
	client OHLCVFetcher
	logger *logrus.Logger
	now    func() time.Time
}

// NewSeriesProvider creates a provider over client.
func NewSeriesProvider(client OHLCVFetcher, logger *logrus.Logger) *SeriesProvider {
	return &SeriesProvider{client: client, logger: logger, now: time.Now}
}

// NormalizeQuery canonicalises exchange and symbol spelling and validates the
// timeframe and lookback.
func NormalizeQuery(q models.SeriesQuery) (models.SeriesQuery, error) {
	q.Exchange = cases.Lower(language.Und).String(strings.TrimSpace(q.Exchange))
	q.Symbol = cases.Upper(language.Und).String(strings.TrimSpace(q.Symbol))
	q.Timeframe = strings.TrimSpace(q.Timeframe)

	if q.Exchange == "" {
		return q, utils.NewInvalidInputError("exchange", "is required")
	}
	if q.Symbol == "" {
		return q, utils.NewInvalidInputError("symbol", "is required")
	}
	if _, err := ParseTimeframe(q.Timeframe); err != nil {
		return q, err
	}
	if q.LookbackDays < 1 {
		return q, utils.NewInvalidInputErrorf("lookback_days", "must be at least 1, got %d", q.LookbackDays)
	}
	return q, nil
}

// ParseTimeframe converts a CCXT timeframe such as "15m", "4h" or "1d" to a
// duration. Months are treated as 30 days.
func ParseTimeframe(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, utils.NewInvalidInputErrorf("timeframe", "unsupported timeframe %q", tf)
	}

	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n < 1 {
		return 0, utils.NewInvalidInputErrorf("timeframe", "unsupported timeframe %q", tf)
	}

	var unit time.Duration
	switch tf[len(tf)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'M':
		unit = 30 * 24 * time.Hour
	default:
		return 0, utils.NewInvalidInputErrorf("timeframe", "unsupported timeframe %q", tf)
	}
	return time.Duration(n) * unit, nil
}

// FetchSeries downloads enough candles to cover the lookback window and
// returns them as a PriceSeries. Candles with non-positive closes and
// repeated timestamps are dropped, keeping the latest copy.
func (p *SeriesProvider) FetchSeries(ctx context.Context, query models.SeriesQuery) (models.PriceSeries, error) {
	query, err := NormalizeQuery(query)
	if err != nil {
		return models.PriceSeries{}, err
	}

	step, _ := ParseTimeframe(query.Timeframe)
	lookback := time.Duration(query.LookbackDays) * 24 * time.Hour
	limit := int(lookback/step) + 1
	if limit > maxCandles {
		limit = maxCandles
	}

	resp, err := p.client.GetOHLCV(ctx, query.Exchange, query.Symbol, query.Timeframe, limit)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("failed to fetch OHLCV for %s on %s: %w", query.Symbol, query.Exchange, err)
	}

	cutoff := p.now().Add(-lookback)
	points, dropped := cleanCandles(resp.OHLCV, cutoff)

	if dropped > 0 {
		p.logger.WithFields(logrus.Fields{
			"exchange": query.Exchange,
			"symbol":   query.Symbol,
			"dropped":  dropped,
		}).Warn("Dropped unusable candles")
	}

	if len(points) == 0 {
		return models.PriceSeries{}, utils.NewInsufficientDataError("market_data", 1, 0)
	}

	return models.NewPriceSeries(points)
}

func cleanCandles(candles []OHLCV, cutoff time.Time) ([]models.PricePoint, int) {
	byTime := make(map[int64]models.PricePoint, len(candles))
	dropped := 0

	for _, c := range candles {
		if c.Timestamp.IsZero() || !c.Close.IsPositive() {
			dropped++
			continue
		}
		if c.Timestamp.Before(cutoff) {
			continue
		}
		key := c.Timestamp.UnixNano()
		if _, seen := byTime[key]; seen {
			dropped++
		}
		byTime[key] = models.PricePoint{Timestamp: c.Timestamp.UTC(), Close: c.Close.InexactFloat64()}
	}

	points := make([]models.PricePoint, 0, len(byTime))
	for _, p := range byTime {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points, dropped
}
