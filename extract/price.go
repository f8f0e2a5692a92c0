package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pricePattern is one way of recognising a price in text. Every pattern is
// anchored on a currency symbol or code; bare-number patterns are forbidden
// because they match flight numbers, years, and UI counters.
type pricePattern struct {
	name       string
	re         *regexp.Regexp
	confidence float64
}

var pricePatterns = []pricePattern{
	{
		name:       "symbol-prefixed",
		re:         regexp.MustCompile(`(?:NZ\$|A\$|US\$|CA\$|S\$|HK\$|\$|€|£|¥|₹)\s*([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{2})?)`),
		confidence: 0.95,
	},
	{
		name:       "code-suffixed",
		re:         regexp.MustCompile(`([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{2})?)\s*(?:NZD|AUD|USD|EUR|GBP|JPY|SGD|CAD)\b`),
		confidence: 0.90,
	},
	{
		name:       "code-prefixed",
		re:         regexp.MustCompile(`(?:NZD|AUD|USD|EUR|GBP|JPY|SGD|CAD)\s*([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{2})?)`),
		confidence: 0.90,
	},
	{
		name:       "from-phrase",
		re:         regexp.MustCompile(`(?i)from\s+(?:NZ\$|\$|€|£)\s*([0-9]{1,3}(?:,[0-9]{3})*)`),
		confidence: 0.85,
	},
}

// priceSelectors are ranked element selectors tried before falling back to
// regex over the row's full text.
var priceSelectors = []struct {
	name       string
	selector   string
	confidence float64
}{
	{"gf-price-span", "span[data-gs] span[aria-label*='dollar']", 0.95},
	{"aria-price", "span[aria-label*='New Zealand dollars'], span[aria-label*='dollars']", 0.95},
	{"price-class", "div.YMlIz span, span.YMlIz", 0.90},
	{"bold-price", "span[role='text']", 0.75},
}

// PriceValidator rejects values that parse as prices but cannot be fares.
type PriceValidator struct {
	Min        float64
	Max        float64
	Suspicious map[int]bool
}

// NewPriceValidator returns a validator with the default fare envelope.
func NewPriceValidator() *PriceValidator {
	return &PriceValidator{
		Min: 20,
		Max: 50000,
		// Round thousands show up as UI counters and ad figures.
		Suspicious: map[int]bool{
			1000:  true,
			2000:  true,
			5000:  true,
			10000: true,
		},
	}
}

// Valid reports whether the price passes the envelope and constant checks.
func (v *PriceValidator) Valid(price float64) bool {
	if price < v.Min || price > v.Max {
		return false
	}
	if price == float64(int(price)) && v.Suspicious[int(price)] {
		return false
	}
	return true
}

// extractPrice finds the first valid price in a row, preferring dedicated
// price elements over raw text.
func (e *Extractor) extractPrice(row *goquery.Selection) (float64, float64, string) {
	for _, ps := range priceSelectors {
		found := false
		var price float64
		var conf float64
		var strategy string
		row.Find(ps.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := s.Text()
			if label, ok := s.Attr("aria-label"); ok {
				text = text + " " + label
			}
			if p, pconf, pname, ok := e.matchPrice(text); ok {
				// Element confidence caps the pattern confidence.
				price, conf, strategy = p, min(ps.confidence, pconf), ps.name+"/"+pname
				found = true
				return false
			}
			return true
		})
		if found {
			return price, conf, strategy
		}
	}

	if p, conf, name, ok := e.matchPrice(row.Text()); ok {
		return p, conf * 0.9, "row-text/" + name
	}
	return 0, 0, ""
}

// matchPrice runs the ranked regex patterns over a text fragment.
func (e *Extractor) matchPrice(text string) (float64, float64, string, bool) {
	for _, p := range pricePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if !e.validator.Valid(price) {
			continue
		}
		return price, p.confidence, p.name, true
	}
	return 0, 0, "", false
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
