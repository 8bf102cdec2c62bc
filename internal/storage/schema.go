package storage

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id           BIGSERIAL PRIMARY KEY,
	name         TEXT NOT NULL,
	product_url  TEXT NOT NULL UNIQUE,
	price        NUMERIC(10,2) NOT NULL,
	retailer     TEXT NOT NULL,
	brand        TEXT,
	image_url    TEXT,
	last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS price_samples (
	id          BIGSERIAL PRIMARY KEY,
	product_id  BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	price       NUMERIC(10,2) NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	source      TEXT
);

CREATE INDEX IF NOT EXISTS idx_products_retailer ON products (retailer);
CREATE INDEX IF NOT EXISTS idx_products_price ON products (price);
CREATE INDEX IF NOT EXISTS idx_products_last_updated ON products (last_updated);
CREATE INDEX IF NOT EXISTS idx_samples_product ON price_samples (product_id);
CREATE INDEX IF NOT EXISTS idx_samples_recorded_at ON price_samples (recorded_at);
CREATE INDEX IF NOT EXISTS idx_samples_product_recorded_at ON price_samples (product_id, recorded_at);
`

// EnsureSchema creates the tables and indexes if they do not exist. The
// unique constraint on product_url is what makes the dedup check-then-insert
// race benign.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
