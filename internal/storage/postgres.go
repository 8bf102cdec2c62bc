package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pricewatch/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store handles interactions with the PostgreSQL database.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewStore(ctx context.Context, connStr string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// UnitOfWork is a pool connection scoped to one logical unit of ingestion
// work. Callers must Release it when the unit is done so overlapping runs do
// not contend on a single long-lived connection.
type UnitOfWork struct {
	conn   *pgxpool.Conn
	logger *zap.Logger
}

// Begin acquires a connection for one unit of work.
func (s *Store) Begin(ctx context.Context) (*UnitOfWork, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &UnitOfWork{conn: conn, logger: s.logger}, nil
}

func (u *UnitOfWork) Release() {
	u.conn.Release()
}

// Products returns the dedup-and-persist gateway bound to this unit of work.
func (u *UnitOfWork) Products() *Products {
	return &Products{conn: u.conn, logger: u.logger}
}

// Products filters candidate products against already-known canonical URLs
// and persists the remainder.
type Products struct {
	conn   *pgxpool.Conn
	logger *zap.Logger
}

// InsertNew persists the candidates whose product URL is not yet known and
// returns the number actually inserted. The batch is committed in a single
// transaction; a concurrent insert of the same URL is treated as "already
// exists" rather than an error. Each new product gets its first price sample
// in the same transaction.
func (g *Products) InsertNew(ctx context.Context, candidates []domain.Product) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.ProductURL)
	}

	existing := make(map[string]bool, len(candidates))
	rows, err := g.conn.Query(ctx, `SELECT product_url FROM products WHERE product_url = ANY($1)`, urls)
	if err != nil {
		return 0, fmt.Errorf("query existing urls: %w", err)
	}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan existing url: %w", err)
		}
		existing[u] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("read existing urls: %w", err)
	}

	fresh := filterFresh(existing, candidates)
	if len(fresh) == 0 {
		return 0, nil
	}

	tx, err := g.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, c := range fresh {
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO products (name, product_url, price, retailer, brand, image_url, last_updated)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 ON CONFLICT (product_url) DO NOTHING
			 RETURNING id`,
			c.Name, c.ProductURL, c.Price, c.Retailer, c.Brand, c.ImageURL,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			// lost a check-then-insert race to a concurrent run; skip
			g.logger.Info("product inserted concurrently, skipping", zap.String("url", c.ProductURL))
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("insert product: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO price_samples (product_id, price, recorded_at, source)
			 VALUES ($1, $2, NOW(), $3)`,
			id, c.Price, c.Retailer,
		); err != nil {
			return 0, fmt.Errorf("record initial price sample: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// filterFresh drops every candidate whose URL is already known. A re-scraped
// URL never updates the stored row; price movement is tracked through price
// samples, not by rewriting products.
func filterFresh(existing map[string]bool, candidates []domain.Product) []domain.Product {
	fresh := make([]domain.Product, 0, len(candidates))
	for _, c := range candidates {
		if !existing[c.ProductURL] {
			fresh = append(fresh, c)
		}
	}
	return fresh
}

const productColumns = `id, name, product_url, price, retailer, brand, image_url, last_updated`

func scanProducts(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()
	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.ProductURL, &p.Price, &p.Retailer, &p.Brand, &p.ImageURL, &p.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SearchProducts is the live read path behind the result cache: cheapest
// matches on name or brand, capped at limit.
func (s *Store) SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE name ILIKE '%' || $1 || '%' OR brand ILIKE '%' || $1 || '%'
		 ORDER BY price ASC
		 LIMIT $2`,
		query, limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return scanProducts(rows)
}

func (s *Store) ListProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY last_updated DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return scanProducts(rows)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.ProductURL, &p.Price, &p.Retailer, &p.Brand, &p.ImageURL, &p.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

// DeleteProduct removes a product; its price samples go with it via the
// cascade constraint.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
