package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pricewatch/internal/domain"
)

type memCache struct {
	primary map[string][]domain.Product
	stale   map[string][]domain.Product
}

func newMemCache() *memCache {
	return &memCache{
		primary: make(map[string][]domain.Product),
		stale:   make(map[string][]domain.Product),
	}
}

func (m *memCache) Get(_ context.Context, q string) ([]domain.Product, bool) {
	p, ok := m.primary[q]
	return p, ok
}

func (m *memCache) GetStale(_ context.Context, q string) ([]domain.Product, bool) {
	p, ok := m.stale[q]
	return p, ok
}

func (m *memCache) Put(_ context.Context, q string, products []domain.Product) {
	m.primary[q] = products
	m.stale[q] = products
}

type fakeSearcher struct {
	products []domain.Product
	err      error
	calls    int
}

func (f *fakeSearcher) SearchProducts(_ context.Context, _ string, _ int) ([]domain.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func TestSearchFillsBothTiersOnMiss(t *testing.T) {
	mc := newMemCache()
	searcher := &fakeSearcher{products: []domain.Product{{ID: 1, Name: "sandals"}}}
	svc := NewSearchService(mc, searcher, nil, zap.NewNop())

	got, err := svc.Search(context.Background(), "sandals")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, mc.primary, "sandals")
	assert.Contains(t, mc.stale, "sandals")
}

func TestSearchServesPrimaryWithoutLiveCall(t *testing.T) {
	mc := newMemCache()
	mc.primary["sandals"] = []domain.Product{{ID: 7, Name: "cached sandals"}}
	searcher := &fakeSearcher{}
	svc := NewSearchService(mc, searcher, nil, zap.NewNop())

	got, err := svc.Search(context.Background(), "sandals")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Zero(t, searcher.calls)
}

func TestSearchFallsBackToStaleOnStoreFailure(t *testing.T) {
	mc := newMemCache()
	searcher := &fakeSearcher{products: []domain.Product{{ID: 1, Name: "sandals"}}}
	svc := NewSearchService(mc, searcher, nil, zap.NewNop())

	// one successful fetch populates the stale tier
	_, err := svc.Search(context.Background(), "sandals")
	require.NoError(t, err)

	// primary expires, then the backing store goes down
	delete(mc.primary, "sandals")
	searcher.err = errors.New("connection refused")

	got, err := svc.Search(context.Background(), "sandals")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestSearchReturnsEmptyWhenNothingCached(t *testing.T) {
	mc := newMemCache()
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	svc := NewSearchService(mc, searcher, nil, zap.NewNop())

	got, err := svc.Search(context.Background(), "sandals")
	require.NoError(t, err)
	assert.Empty(t, got)
}
