package models

import (
	"fmt"
	"math"
	"time"

	"github.com/irfndi/crossover-go/internal/utils"
)

// PricePoint is a single closing price observation.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
}

// PriceSeries is an immutable, strictly time-ordered sequence of closing prices
// for one symbol. Construct it with NewPriceSeries.
type PriceSeries struct {
	points []PricePoint
	index  map[int64]int
}

// NewPriceSeries validates and copies points into a PriceSeries.
// Closes must be finite and positive; timestamps must be strictly increasing.
// An empty slice is accepted; components that need data report InsufficientDataError.
func NewPriceSeries(points []PricePoint) (PriceSeries, error) {
	copied := make([]PricePoint, len(points))
	index := make(map[int64]int, len(points))

	for i, p := range points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return PriceSeries{}, utils.NewInvalidInputErrorf("close", "point %d has non-positive or non-finite close %v", i, p.Close)
		}
		if p.Timestamp.IsZero() {
			return PriceSeries{}, utils.NewInvalidInputErrorf("timestamp", "point %d has no timestamp", i)
		}
		if i > 0 && !p.Timestamp.After(points[i-1].Timestamp) {
			return PriceSeries{}, utils.NewInvalidInputErrorf("timestamp",
				"point %d (%s) is not after point %d (%s)", i, p.Timestamp.Format(time.RFC3339), i-1, points[i-1].Timestamp.Format(time.RFC3339))
		}
		copied[i] = p
		index[p.Timestamp.UnixNano()] = i
	}

	return PriceSeries{points: copied, index: index}, nil
}

// Len returns the number of observations.
func (s PriceSeries) Len() int {
	return len(s.points)
}

// At returns the i-th observation.
func (s PriceSeries) At(i int) PricePoint {
	return s.points[i]
}

// Points returns a copy of the observations.
func (s PriceSeries) Points() []PricePoint {
	out := make([]PricePoint, len(s.points))
	copy(out, s.points)
	return out
}

// Closes returns the closing prices in order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Close
	}
	return out
}

// Timestamps returns the observation times in order.
func (s PriceSeries) Timestamps() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Timestamp
	}
	return out
}

// PriceAt looks up the close recorded at exactly ts.
func (s PriceSeries) PriceAt(ts time.Time) (float64, bool) {
	i, ok := s.index[ts.UnixNano()]
	if !ok {
		return 0, false
	}
	return s.points[i].Close, true
}

// First returns the first observation. ok is false for an empty series.
func (s PriceSeries) First() (PricePoint, bool) {
	if len(s.points) == 0 {
		return PricePoint{}, false
	}
	return s.points[0], true
}

// Last returns the final observation. ok is false for an empty series.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s.points) == 0 {
		return PricePoint{}, false
	}
	return s.points[len(s.points)-1], true
}

// SeriesQuery identifies a fetched price series.
type SeriesQuery struct {
	Exchange     string `json:"exchange"`
	Symbol       string `json:"symbol"`
	Timeframe    string `json:"timeframe"`
	LookbackDays int    `json:"lookback_days"`
}

// CacheKey is a stable identifier for the query.
func (q SeriesQuery) CacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%d", q.Exchange, q.Symbol, q.Timeframe, q.LookbackDays)
}
