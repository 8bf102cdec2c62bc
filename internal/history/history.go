// Package history maintains the sparse, append-only price time series: a new
// sample is recorded only when a product's price actually changed.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pricewatch/internal/domain"
	"pricewatch/internal/monitoring"
)

var oneHundred = decimal.NewFromInt(100)

// SampleStore is the persistence surface the engine runs on. The per-product
// aggregate lives behind it so it can later be swapped for a single SQL
// aggregate without touching callers.
type SampleStore interface {
	LatestSamples(ctx context.Context, productID int64, limit int) ([]domain.PriceSample, error)
	InsertSample(ctx context.Context, sample domain.PriceSample) error
	SamplesBetween(ctx context.Context, productID int64, start, end *time.Time) ([]domain.PriceSample, error)
	SampleStats(ctx context.Context, productID int64) (*domain.PriceStats, error)
	ProductsUpdatedSince(ctx context.Context, cutoff time.Time) ([]domain.Product, error)
}

type Engine struct {
	store   SampleStore
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func NewEngine(store SampleStore, m *monitoring.Metrics, logger *zap.Logger) *Engine {
	return &Engine{store: store, metrics: m, logger: logger}
}

// RecordIfChanged appends a price sample only when the price differs from the
// most recent sample for the product. Returns whether a sample was written.
func (e *Engine) RecordIfChanged(ctx context.Context, productID int64, price decimal.Decimal, source string) (bool, error) {
	latest, err := e.store.LatestSamples(ctx, productID, 1)
	if err != nil {
		return false, fmt.Errorf("latest price for product %d: %w", productID, err)
	}
	if len(latest) > 0 && latest[0].Price.Equal(price) {
		return false, nil
	}

	sample := domain.PriceSample{
		ProductID:  productID,
		Price:      price,
		RecordedAt: time.Now().UTC(),
		Source:     source,
	}
	if err := e.store.InsertSample(ctx, sample); err != nil {
		return false, fmt.Errorf("record price for product %d: %w", productID, err)
	}
	e.metrics.IncPriceSample()

	old := "none"
	if len(latest) > 0 {
		old = latest[0].Price.String()
	}
	e.logger.Info("price changed",
		zap.Int64("product_id", productID),
		zap.String("old", old),
		zap.String("new", price.String()))
	return true, nil
}

// History returns a product's samples within [start, end], oldest first. Nil
// bounds are open.
func (e *Engine) History(ctx context.Context, productID int64, start, end *time.Time) ([]domain.PriceSample, error) {
	return e.store.SamplesBetween(ctx, productID, start, end)
}

// Stats returns min/max/average over all samples, or nil when the product has
// none.
func (e *Engine) Stats(ctx context.Context, productID int64) (*domain.PriceStats, error) {
	return e.store.SampleStats(ctx, productID)
}

func (e *Engine) Lowest(ctx context.Context, productID int64) (*decimal.Decimal, error) {
	stats, err := e.Stats(ctx, productID)
	if err != nil || stats == nil {
		return nil, err
	}
	return &stats.Lowest, nil
}

func (e *Engine) Highest(ctx context.Context, productID int64) (*decimal.Decimal, error) {
	stats, err := e.Stats(ctx, productID)
	if err != nil || stats == nil {
		return nil, err
	}
	return &stats.Highest, nil
}

func (e *Engine) Average(ctx context.Context, productID int64) (*decimal.Decimal, error) {
	stats, err := e.Stats(ctx, productID)
	if err != nil || stats == nil {
		return nil, err
	}
	return &stats.Average, nil
}

// IsPriceDrop compares the two most recent samples and reports whether the
// price dropped by at least threshold percent. A price increase yields a
// negative drop and is never a hit. Fewer than two samples is never a hit.
func (e *Engine) IsPriceDrop(ctx context.Context, productID int64, threshold decimal.Decimal) (bool, error) {
	recent, err := e.store.LatestSamples(ctx, productID, 2)
	if err != nil {
		return false, fmt.Errorf("recent prices for product %d: %w", productID, err)
	}
	if len(recent) < 2 {
		return false, nil
	}

	current, previous := recent[0].Price, recent[1].Price
	if previous.IsZero() {
		return false, nil
	}
	dropPercent := previous.Sub(current).Div(previous).Mul(oneHundred)
	return dropPercent.GreaterThanOrEqual(threshold), nil
}

// ProductsWithDrops returns the products updated within the last daysBack
// days whose latest two samples show a drop of at least threshold percent.
// One history lookup per candidate; fine at current batch sizes.
func (e *Engine) ProductsWithDrops(ctx context.Context, threshold decimal.Decimal, daysBack int) ([]domain.Product, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	candidates, err := e.store.ProductsUpdatedSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("drop candidates: %w", err)
	}

	var out []domain.Product
	for _, p := range candidates {
		drop, err := e.IsPriceDrop(ctx, p.ID, threshold)
		if err != nil {
			return nil, err
		}
		if drop {
			out = append(out, p)
		}
	}
	return out, nil
}
