package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/crossover-go/internal/models"
)

// SeriesProvider fetches a price series for a query.
type SeriesProvider interface {
	FetchSeries(ctx context.Context, query models.SeriesQuery) (models.PriceSeries, error)
}

// SeriesStore is the cache surface CachedSeriesProvider needs.
type SeriesStore interface {
	Get(ctx context.Context, key string) (models.PriceSeries, bool)
	Set(ctx context.Context, key string, series models.PriceSeries) error
}

// CachedSeriesProvider serves repeated queries from a SeriesStore.
type CachedSeriesProvider struct {
	next   SeriesProvider
	store  SeriesStore
	logger *logrus.Logger
}

// NewCachedSeriesProvider wraps next with store.
func NewCachedSeriesProvider(next SeriesProvider, store SeriesStore, logger *logrus.Logger) *CachedSeriesProvider {
	return &CachedSeriesProvider{next: next, store: store, logger: logger}
}

// FetchSeries returns a cached series when present, otherwise fetches and
// caches it. A failed cache write does not fail the fetch.
func (p *CachedSeriesProvider) FetchSeries(ctx context.Context, query models.SeriesQuery) (models.PriceSeries, error) {
	key := query.CacheKey()
	if series, ok := p.store.Get(ctx, key); ok {
		return series, nil
	}

	series, err := p.next.FetchSeries(ctx, query)
	if err != nil {
		return models.PriceSeries{}, err
	}

	if err := p.store.Set(ctx, key, series); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Failed to cache price series")
	}
	return series, nil
}
