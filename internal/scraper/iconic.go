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

const iconicBaseURL = "https://www.theiconic.com.au"

// Iconic scrapes The Iconic's server-rendered catalog search.
type Iconic struct {
	client *fetch.Client
	logger *zap.Logger
}

func NewIconic(client *fetch.Client, logger *zap.Logger) *Iconic {
	return &Iconic{client: client, logger: logger}
}

func (s *Iconic) Name() string { return "The Iconic" }

func (s *Iconic) Scrape(ctx context.Context, gw ProductGateway, term string, maxItems int) (int, error) {
	searchURL := fmt.Sprintf("%s/catalog/?q=%s", iconicBaseURL, url.QueryEscape(term))
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

func (s *Iconic) HealthCheck(ctx context.Context) bool {
	return s.client.Probe(ctx, iconicBaseURL)
}

// parse extracts candidate products, best-effort per node: a malformed node
// is logged and skipped, never aborts the page.
func (s *Iconic) parse(html string, maxItems int) []domain.Product {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.logger.Warn("unreadable page", zap.String("source", s.Name()), zap.Error(err))
		return nil
	}

	var products []domain.Product
	doc.Find("div.product-card").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
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

func (s *Iconic) extract(sel *goquery.Selection) (*domain.Product, error) {
	name := strings.TrimSpace(sel.Find("span.product-name").First().Text())
	if name == "" {
		return nil, fmt.Errorf("missing product name")
	}

	href, ok := sel.Find("a.product-link").First().Attr("href")
	if !ok || href == "" {
		return nil, fmt.Errorf("missing product url for %q", name)
	}

	priceText := strings.TrimSpace(sel.Find("span.price").First().Text())
	price, err := ParsePrice(priceText)
	if err != nil {
		return nil, fmt.Errorf("invalid price for %q: %w", name, err)
	}

	p := &domain.Product{
		Name:        name,
		ProductURL:  absoluteURL(iconicBaseURL, href),
		Price:       price,
		Retailer:    s.Name(),
		LastUpdated: time.Now().UTC(),
	}
	if brand := strings.TrimSpace(sel.Find("span.product-brand").First().Text()); brand != "" {
		p.Brand = &brand
	}
	if img, ok := sel.Find("img").First().Attr("src"); ok && img != "" {
		p.ImageURL = &img
	}
	return p, nil
}
