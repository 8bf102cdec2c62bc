package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a deduplicated product record. ProductURL is the business key
// and is unique across all retailers. Price is the price observed at first
// discovery; later observations land in the price history, the product row
// itself is never price-mutated by a re-scrape.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	ProductURL  string          `json:"product_url"`
	Price       decimal.Decimal `json:"price"`
	Retailer    string          `json:"retailer"`
	Brand       *string         `json:"brand,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

// PriceSample is one timestamped price observation belonging to a product.
// Samples are append-only and are deleted together with their product.
type PriceSample struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"product_id"`
	Price      decimal.Decimal `json:"price"`
	RecordedAt time.Time       `json:"recorded_at"`
	Source     string          `json:"source,omitempty"`
}

// PriceStats aggregates all samples of one product.
type PriceStats struct {
	Lowest  decimal.Decimal `json:"lowest"`
	Highest decimal.Decimal `json:"highest"`
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}

// Terminal states of one ingestion run. A run that reaches the end of the
// source list is complete even if every source failed.
const (
	RunCompleted       = "completed"
	RunPartiallyFailed = "partially_failed"
)

// RunReport is the per-source outcome of one multi-source ingestion run.
// Failed sources are reported with a zero count, never omitted.
type RunReport struct {
	SearchTerm     string         `json:"search_term"`
	Counts         map[string]int `json:"counts"`
	Total          int            `json:"total"`
	Status         string         `json:"status"`
	StartedAt      time.Time      `json:"started_at"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
}
