// Package scraper holds the per-retailer source adapters and the orchestrator
// that runs them with independent failure isolation.
package scraper

import (
	"context"

	"pricewatch/internal/domain"
)

// ProductGateway persists candidate products, skipping already-known URLs.
// It is handed to a Source per call so persistence stays scoped to one unit
// of work.
type ProductGateway interface {
	InsertNew(ctx context.Context, candidates []domain.Product) (int, error)
}

// Source is the capability implemented once per retailer.
//
// Name is stable and non-empty. Scrape fetches and parses a retailer's search
// results for term and persists the new ones through gw, returning the count
// actually inserted; it fails only on fetch, render or persistence errors.
// A malformed individual record is skipped, never fatal. HealthCheck is a
// reachability probe and never fails: internal errors convert to false.
type Source interface {
	Name() string
	Scrape(ctx context.Context, gw ProductGateway, term string, maxItems int) (int, error)
	HealthCheck(ctx context.Context) bool
}
