package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var priceRe = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// ParsePrice extracts a positive decimal price from retailer price text,
// e.g. "$25.88" or "1,299.00".
func ParsePrice(text string) (decimal.Decimal, error) {
	m := priceRe.FindString(strings.ReplaceAll(text, ",", ""))
	if m == "" {
		return decimal.Zero, fmt.Errorf("no price in %q", text)
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", m, err)
	}
	if d.IsZero() {
		return decimal.Zero, errors.New("zero price")
	}
	return d.Round(2), nil
}

// absoluteURL resolves a possibly relative href against a retailer base URL.
func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return base + href
}
