package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"pricewatch/internal/domain"
	"pricewatch/internal/fetch"
)

const amazonBaseURL = "https://www.amazon.com.au"

// Amazon scrapes Amazon AU search result pages.
type Amazon struct {
	client *fetch.Client
	logger *zap.Logger
}

func NewAmazon(client *fetch.Client, logger *zap.Logger) *Amazon {
	return &Amazon{client: client, logger: logger}
}

func (s *Amazon) Name() string { return "Amazon AU" }

func (s *Amazon) Scrape(ctx context.Context, gw ProductGateway, term string, maxItems int) (int, error) {
	searchURL := fmt.Sprintf("%s/s?k=%s", amazonBaseURL, url.QueryEscape(term))
	s.logger.Info("starting scrape", zap.String("source", s.Name()), zap.String("term", term))

	html, err := s.client.FetchHTML(ctx, searchURL)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", searchURL, err)
	}

	candidates := s.parse(html, maxItems)
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

func (s *Amazon) HealthCheck(ctx context.Context) bool {
	return s.client.Probe(ctx, amazonBaseURL)
}

func (s *Amazon) parse(html string, maxItems int) []domain.Product {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.logger.Warn("unreadable page", zap.String("source", s.Name()), zap.Error(err))
		return nil
	}

	var products []domain.Product
	doc.Find(`div[data-component-type="s-search-result"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(products) >= maxItems {
			return false
		}
		p, err := s.extract(sel)
		if err != nil {
			s.logger.Warn("skipping malformed product node",
				zap.String("source", s.Name()), zap.Error(err))
			return true
		}
		products = append(products, *p)
		return true
	})
	return products
}

func (s *Amazon) extract(sel *goquery.Selection) (*domain.Product, error) {
	name := strings.TrimSpace(sel.Find("h2 span").First().Text())
	if name == "" {
		return nil, fmt.Errorf("missing product name")
	}

	href, ok := sel.Find("a.a-link-normal").First().Attr("href")
	if !ok || href == "" {
		return nil, fmt.Errorf("missing product url for %q", name)
	}

	priceText := strings.TrimSpace(sel.Find("span.a-price span.a-offscreen").First().Text())
	price, err := ParsePrice(priceText)
	if err != nil {
		return nil, fmt.Errorf("invalid price for %q: %w", name, err)
	}

	p := &domain.Product{
		Name:        name,
		ProductURL:  absoluteURL(amazonBaseURL, href),
		Price:       price,
		Retailer:    s.Name(),
		LastUpdated: time.Now().UTC(),
	}
	if brand := strings.TrimSpace(sel.Find("span.a-size-base-plus.a-color-base").First().Text()); brand != "" {
		p.Brand = &brand
	}
	if img, ok := sel.Find("img.s-image").First().Attr("src"); ok && img != "" {
		p.ImageURL = &img
	}
	return p, nil
}
