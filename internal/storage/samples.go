package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pricewatch/internal/domain"
)

func scanSamples(rows pgx.Rows) ([]domain.PriceSample, error) {
	defer rows.Close()
	var out []domain.PriceSample
	for rows.Next() {
		var s domain.PriceSample
		if err := rows.Scan(&s.ID, &s.ProductID, &s.Price, &s.RecordedAt, &s.Source); err != nil {
			return nil, fmt.Errorf("scan price sample: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestSamples returns up to limit samples for a product, most recent first.
func (s *Store) LatestSamples(ctx context.Context, productID int64, limit int) ([]domain.PriceSample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, price, recorded_at, COALESCE(source, '')
		 FROM price_samples
		 WHERE product_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`,
		productID, limit)
	if err != nil {
		return nil, fmt.Errorf("latest samples for product %d: %w", productID, err)
	}
	return scanSamples(rows)
}

// InsertSample appends one price sample. Samples are never updated or
// individually deleted.
func (s *Store) InsertSample(ctx context.Context, sample domain.PriceSample) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_samples (product_id, price, recorded_at, source)
		 VALUES ($1, $2, $3, $4)`,
		sample.ProductID, sample.Price, sample.RecordedAt, sample.Source)
	if err != nil {
		return fmt.Errorf("insert price sample for product %d: %w", sample.ProductID, err)
	}
	return nil
}

// SamplesBetween returns a product's samples within [start, end], oldest
// first. Nil bounds are open.
func (s *Store) SamplesBetween(ctx context.Context, productID int64, start, end *time.Time) ([]domain.PriceSample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, price, recorded_at, COALESCE(source, '')
		 FROM price_samples
		 WHERE product_id = $1
		   AND ($2::timestamptz IS NULL OR recorded_at >= $2)
		   AND ($3::timestamptz IS NULL OR recorded_at <= $3)
		 ORDER BY recorded_at ASC`,
		productID, start, end)
	if err != nil {
		return nil, fmt.Errorf("samples for product %d: %w", productID, err)
	}
	return scanSamples(rows)
}

// SampleStats aggregates over all samples of a product. Returns nil when the
// product has no samples.
func (s *Store) SampleStats(ctx context.Context, productID int64) (*domain.PriceStats, error) {
	var stats domain.PriceStats
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MIN(price), 0), COALESCE(MAX(price), 0), COALESCE(ROUND(AVG(price), 2), 0), COUNT(*)
		 FROM price_samples
		 WHERE product_id = $1`,
		productID,
	).Scan(&stats.Lowest, &stats.Highest, &stats.Average, &stats.Count)
	if err != nil {
		return nil, fmt.Errorf("sample stats for product %d: %w", productID, err)
	}
	if stats.Count == 0 {
		return nil, nil
	}
	return &stats, nil
}

// ProductsUpdatedSince returns products touched after the cutoff, the
// candidate set for drop detection.
func (s *Store) ProductsUpdatedSince(ctx context.Context, cutoff time.Time) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE last_updated > $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("products updated since %s: %w", cutoff, err)
	}
	return scanProducts(rows)
}
