package history

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pricewatch/internal/domain"
)

// memStore is an in-memory SampleStore for engine tests.
type memStore struct {
	nextID   int64
	samples  map[int64][]domain.PriceSample
	products []domain.Product
}

func newMemStore() *memStore {
	return &memStore{samples: make(map[int64][]domain.PriceSample)}
}

func (m *memStore) sorted(productID int64) []domain.PriceSample {
	out := append([]domain.PriceSample(nil), m.samples[productID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out
}

func (m *memStore) LatestSamples(_ context.Context, productID int64, limit int) ([]domain.PriceSample, error) {
	out := m.sorted(productID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) InsertSample(_ context.Context, s domain.PriceSample) error {
	m.nextID++
	s.ID = m.nextID
	m.samples[s.ProductID] = append(m.samples[s.ProductID], s)
	return nil
}

func (m *memStore) SamplesBetween(_ context.Context, productID int64, start, end *time.Time) ([]domain.PriceSample, error) {
	all := m.sorted(productID)
	var out []domain.PriceSample
	for i := len(all) - 1; i >= 0; i-- { // oldest first
		s := all[i]
		if start != nil && s.RecordedAt.Before(*start) {
			continue
		}
		if end != nil && s.RecordedAt.After(*end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) SampleStats(_ context.Context, productID int64) (*domain.PriceStats, error) {
	all := m.samples[productID]
	if len(all) == 0 {
		return nil, nil
	}
	stats := &domain.PriceStats{Lowest: all[0].Price, Highest: all[0].Price, Count: len(all)}
	sum := decimal.Zero
	for _, s := range all {
		if s.Price.LessThan(stats.Lowest) {
			stats.Lowest = s.Price
		}
		if s.Price.GreaterThan(stats.Highest) {
			stats.Highest = s.Price
		}
		sum = sum.Add(s.Price)
	}
	stats.Average = sum.Div(decimal.NewFromInt(int64(len(all)))).Round(2)
	return stats, nil
}

func (m *memStore) ProductsUpdatedSince(_ context.Context, cutoff time.Time) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range m.products {
		if p.LastUpdated.After(cutoff) {
			out = append(out, p)
		}
	}
	return out, nil
}

// addSample writes a sample with an explicit timestamp so ordering is
// deterministic.
func (m *memStore) addSample(productID int64, price string, at time.Time) {
	m.nextID++
	m.samples[productID] = append(m.samples[productID], domain.PriceSample{
		ID:         m.nextID,
		ProductID:  productID,
		Price:      decimal.RequireFromString(price),
		RecordedAt: at,
	})
}

func newTestEngine(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewEngine(store, nil, zap.NewNop()), store
}

func TestRecordIfChangedFirstSample(t *testing.T) {
	engine, store := newTestEngine(t)

	recorded, err := engine.RecordIfChanged(context.Background(), 1, decimal.RequireFromString("19.99"), "scraper")
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.Len(t, store.samples[1], 1)
}

func TestRecordIfChangedIsIdempotentForSamePrice(t *testing.T) {
	engine, store := newTestEngine(t)
	price := decimal.RequireFromString("42.00")

	for i := 0; i < 5; i++ {
		_, err := engine.RecordIfChanged(context.Background(), 1, price, "scraper")
		require.NoError(t, err)
	}
	assert.Len(t, store.samples[1], 1, "repeated identical prices must append exactly one sample")
}

func TestRecordIfChangedAppendsOnChange(t *testing.T) {
	engine, store := newTestEngine(t)

	_, err := engine.RecordIfChanged(context.Background(), 1, decimal.RequireFromString("100.00"), "scraper")
	require.NoError(t, err)
	recorded, err := engine.RecordIfChanged(context.Background(), 1, decimal.RequireFromString("80.00"), "scraper")
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.Len(t, store.samples[1], 2)
}

func TestIsPriceDrop(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	threshold := decimal.NewFromInt(10)

	cases := []struct {
		name   string
		prices []string // oldest first
		want   bool
	}{
		{"twenty percent drop", []string{"100.00", "80.00"}, true},
		{"five percent drop", []string{"100.00", "95.00"}, false},
		{"single sample", []string{"100.00"}, false},
		{"no samples", nil, false},
		{"price increase", []string{"100.00", "110.00"}, false},
		{"exactly threshold", []string{"100.00", "90.00"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, store := newTestEngine(t)
			for i, p := range tc.prices {
				store.addSample(1, p, base.Add(time.Duration(i)*time.Hour))
			}
			got, err := engine.IsPriceDrop(context.Background(), 1, threshold)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestProductsWithDrops(t *testing.T) {
	engine, store := newTestEngine(t)
	now := time.Now().UTC()

	store.products = []domain.Product{
		{ID: 1, Name: "dropped sandals", LastUpdated: now},
		{ID: 2, Name: "steady slides", LastUpdated: now},
		{ID: 3, Name: "stale thongs", LastUpdated: now.AddDate(0, 0, -30)},
	}
	store.addSample(1, "100.00", now.Add(-2*time.Hour))
	store.addSample(1, "70.00", now.Add(-time.Hour))
	store.addSample(2, "50.00", now.Add(-2*time.Hour))
	store.addSample(2, "49.00", now.Add(-time.Hour))
	// product 3 also dropped, but is outside the lookback window
	store.addSample(3, "100.00", now.AddDate(0, 0, -31))
	store.addSample(3, "10.00", now.AddDate(0, 0, -30))

	out, err := engine.ProductsWithDrops(context.Background(), decimal.NewFromInt(10), 7)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].ID)
}

func TestStatsAggregates(t *testing.T) {
	engine, store := newTestEngine(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store.addSample(1, "10.00", base)
	store.addSample(1, "30.00", base.Add(time.Hour))
	store.addSample(1, "20.00", base.Add(2*time.Hour))

	stats, err := engine.Stats(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.True(t, stats.Lowest.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, stats.Highest.Equal(decimal.RequireFromString("30.00")))
	assert.True(t, stats.Average.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, 3, stats.Count)

	lowest, err := engine.Lowest(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, lowest)
	assert.True(t, lowest.Equal(decimal.RequireFromString("10.00")))
}

func TestStatsNoSamples(t *testing.T) {
	engine, _ := newTestEngine(t)

	stats, err := engine.Stats(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, stats)

	lowest, err := engine.Lowest(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, lowest)
}
