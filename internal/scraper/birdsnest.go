package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"pricewatch/internal/domain"
	"pricewatch/internal/render"
)

const (
	birdsNestBaseURL    = "https://www.birdsnest.com.au"
	birdsNestAPIPattern = "/search.php"
)

// BirdsNest renders search pages in the shared headless browser and captures
// the site's internal search API response instead of scraping the DOM.
type BirdsNest struct {
	browser *render.Browser
	logger  *zap.Logger
}

func NewBirdsNest(browser *render.Browser, logger *zap.Logger) *BirdsNest {
	return &BirdsNest{browser: browser, logger: logger}
}

func (s *BirdsNest) Name() string { return "Birds Nest" }

func (s *BirdsNest) Scrape(ctx context.Context, gw ProductGateway, term string, maxItems int) (int, error) {
	searchURL := fmt.Sprintf("%s/search.php?search_query=%s&section=content",
		birdsNestBaseURL, url.QueryEscape(term))
	s.logger.Info("starting scrape", zap.String("source", s.Name()), zap.String("term", term))

	payload, err := s.browser.FetchAPIResponse(ctx, searchURL, birdsNestAPIPattern)
	if err != nil {
		return 0, fmt.Errorf("render %s: %w", searchURL, err)
	}

	candidates := s.parse(payload, maxItems)
	if len(candidates) == 0 {
		s.logger.Warn("no products found", zap.String("source", s.Name()), zap.String("term", term))
		return 0, nil
	}

	inserted, err := gw.InsertNew(ctx, candidates)
	if err != nil {
		return 0, fmt.Errorf("persist candidates: %w", err)
	}
	s.logger.Info("scrape finished",
		zap.String("source", s.Name()),
		zap.String("term", term),
		zap.Int("parsed", len(candidates)),
		zap.Int("new", inserted))
	return inserted, nil
}

func (s *BirdsNest) HealthCheck(ctx context.Context) bool {
	if _, err := s.browser.FetchPage(ctx, birdsNestBaseURL); err != nil {
		s.logger.Warn("health probe failed", zap.String("source", s.Name()), zap.Error(err))
		return false
	}
	return true
}

type birdsNestPayload struct {
	Products []struct {
		Name  string `json:"name"`
		URL   string `json:"url"`
		Price string `json:"price"`
		Brand string `json:"brand"`
		Image string `json:"image"`
	} `json:"products"`
}

func (s *BirdsNest) parse(payload string, maxItems int) []domain.Product {
	var body birdsNestPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		s.logger.Warn("unreadable search payload", zap.String("source", s.Name()), zap.Error(err))
		return nil
	}

	var products []domain.Product
	for _, item := range body.Products {
		if len(products) >= maxItems {
			break
		}
		if item.Name == "" || item.URL == "" {
			s.logger.Warn("skipping malformed product record", zap.String("source", s.Name()))
			continue
		}
		price, err := ParsePrice(item.Price)
		if err != nil {
			s.logger.Warn("skipping product with invalid price",
				zap.String("source", s.Name()),
				zap.String("name", item.Name),
				zap.Error(err))
			continue
		}

		p := domain.Product{
			Name:        item.Name,
			ProductURL:  absoluteURL(birdsNestBaseURL, item.URL),
			Price:       price,
			Retailer:    s.Name(),
			LastUpdated: time.Now().UTC(),
		}
		if item.Brand != "" {
			brand := item.Brand
			p.Brand = &brand
		}
		if item.Image != "" {
			img := item.Image
			p.ImageURL = &img
		}
		products = append(products, p)
	}
	return products
}
