package cache

import (
	"context"

	"go.uber.org/zap"

	"pricewatch/internal/domain"
	"pricewatch/internal/monitoring"
)

const maxSearchResults = 50

// Store is the two-tier result cache the search service reads through.
type Store interface {
	Get(ctx context.Context, query string) ([]domain.Product, bool)
	GetStale(ctx context.Context, query string) ([]domain.Product, bool)
	Put(ctx context.Context, query string, products []domain.Product)
}

// Searcher is the live product search backed by the database.
type Searcher interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error)
}

// SearchService answers product searches from the cache, falling back to the
// live store and, when that fails, to the stale tier.
type SearchService struct {
	cache    Store
	searcher Searcher
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

func NewSearchService(cache Store, searcher Searcher, m *monitoring.Metrics, logger *zap.Logger) *SearchService {
	return &SearchService{cache: cache, searcher: searcher, metrics: m, logger: logger}
}

// Search never fails: a backing-store outage degrades to stale results if a
// stale entry was ever populated for the query, else to an empty list.
func (s *SearchService) Search(ctx context.Context, query string) ([]domain.Product, error) {
	if products, ok := s.cache.Get(ctx, query); ok {
		s.metrics.IncCache("hit")
		s.logger.Info("returning cached results", zap.String("query", query))
		return products, nil
	}

	products, err := s.searcher.SearchProducts(ctx, query, maxSearchResults)
	if err != nil {
		s.logger.Error("live search failed, trying stale cache",
			zap.String("query", query), zap.Error(err))
		if stale, ok := s.cache.GetStale(ctx, query); ok {
			s.metrics.IncCache("stale")
			return stale, nil
		}
		s.metrics.IncCache("empty")
		return []domain.Product{}, nil
	}

	s.metrics.IncCache("miss")
	s.cache.Put(ctx, query, products)
	return products, nil
}
