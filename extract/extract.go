package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jesposito/walkabout/pkg/logger"
)

// rowStrategy locates candidate flight result rows. Strategies are ordered
// from the most Google-specific to generic DOM traversal; each carries the
// correlation confidence attached to rows it finds.
type rowStrategy struct {
	name        string
	selector    string
	correlation float64
}

var rowStrategies = []rowStrategy{
	// L0: structural selectors tied to the current Google Flights markup.
	{"gf-result-list", "ul.Rk10dc li.pIav2d", CorrelationStructural},
	{"gf-best-list", "div.Lp1Fgd ul li", CorrelationStructural},
	{"gf-itinerary", "div[jsname='IWWDBc'] ul li, div[jsname='YdtKid'] ul li", CorrelationStructural},

	// L1: category-scoped class and role heuristics.
	{"listitem-class", "li[class*='result'], li[class*='flight'], div[class*='flight-row']", CorrelationCategory},
	{"offer-card", "div[class*='offer'] li, div[class*='itinerary']", CorrelationCategory},

	// L2: ARIA roles survive cosmetic redesigns longer than class names.
	{"aria-listitem", "ul[role='list'] li[role='listitem'], li[role='listitem']", CorrelationAria},
	{"aria-option", "div[role='listbox'] div[role='option']", CorrelationAria},
	{"aria-button-row", "li div[role='button'][aria-label]", CorrelationAria},
}

// Extractor turns rendered HTML into FlightData rows.
type Extractor struct {
	validator *PriceValidator
	log       *logger.Logger
}

// New returns an Extractor with the default price validator.
func New(log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Default()
	}
	return &Extractor{validator: NewPriceValidator(), log: log}
}

// Validator exposes the price validator so callers can tune the envelope.
func (e *Extractor) Validator() *PriceValidator {
	return e.validator
}

// Extract parses the page and returns every flight it can find. An empty
// slice with a nil error means the page rendered but no strategy matched,
// which callers treat as a layout change.
func (e *Extractor) Extract(html string) ([]FlightData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return e.ExtractFromDocument(doc), nil
}

// ExtractFromDocument runs the strategy ladder: ranked row selectors first,
// then anchored DOM traversal, then a whole-page scan.
func (e *Extractor) ExtractFromDocument(doc *goquery.Document) []FlightData {
	for _, strat := range rowStrategies {
		rows := doc.Find(strat.selector)
		if rows.Length() == 0 {
			continue
		}
		flights := e.extractRows(rows, strat.correlation)
		if len(flights) > 0 {
			e.log.Debug("row extraction succeeded",
				"strategy", strat.name, "rows", rows.Length(), "flights", len(flights))
			return flights
		}
	}

	if flights := e.extractByTraversal(doc); len(flights) > 0 {
		e.log.Debug("traversal extraction succeeded", "flights", len(flights))
		return flights
	}

	if flight, ok := e.extractPageLevel(doc); ok {
		e.log.Debug("page-level extraction only", "price", flight.Price)
		return []FlightData{flight}
	}

	return nil
}

func (e *Extractor) extractRows(rows *goquery.Selection, correlation float64) []FlightData {
	var flights []FlightData
	rows.Each(func(_ int, row *goquery.Selection) {
		if f, ok := e.extractRow(row, correlation); ok {
			flights = append(flights, f)
		}
	})
	return flights
}

// extractRow runs the attribute extractors over one candidate row. A row
// without a valid price yields nothing.
func (e *Extractor) extractRow(row *goquery.Selection, correlation float64) (FlightData, bool) {
	price, priceConf, strategy := e.extractPrice(row)
	if price == 0 {
		return FlightData{}, false
	}

	f := FlightData{
		Price:                 price,
		PriceConfidence:       priceConf,
		PriceStrategy:         strategy,
		CorrelationConfidence: correlation,
		ExtractionMethod:      MethodPerRow,
	}
	f.Airline, f.AirlineConfidence = e.extractAirline(row)
	f.Stops, f.StopsConfidence = e.extractStops(row)
	f.DurationMinutes, f.DurationConfidence = e.extractDuration(row)
	f.LayoverAirports = e.extractLayovers(row)

	penalty := crossValidate(&f)
	f.OverallConfidence = overallConfidence(&f, penalty)
	return f, true
}

// extractByTraversal anchors on elements whose text contains a price and
// climbs to the nearest ancestor that also carries a duration or stop count.
// That ancestor is treated as the row.
func (e *Extractor) extractByTraversal(doc *goquery.Document) []FlightData {
	var flights []FlightData
	seen := make(map[string]bool)

	doc.Find("span, div").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if len(text) > 40 {
			return
		}
		if _, _, _, ok := e.matchPrice(text); !ok {
			return
		}

		row := s
		for depth := 0; depth < 5; depth++ {
			parent := row.Parent()
			if parent.Length() == 0 {
				break
			}
			row = parent
			ptext := row.Text()
			if _, hasDur := parseDuration(ptext); hasDur {
				break
			}
			if _, hasStops := parseStops(ptext); hasStops {
				break
			}
		}

		key := row.Text()
		if len(key) > 200 {
			key = key[:200]
		}
		if seen[key] {
			return
		}
		seen[key] = true

		if f, ok := e.extractRow(row, CorrelationTraversal); ok {
			flights = append(flights, f)
		}
	})
	return flights
}

// extractPageLevel scans the whole document for any valid price. Without row
// locality the value is nearly uncorrelated with airline or stops, so it
// carries the floor correlation confidence.
func (e *Extractor) extractPageLevel(doc *goquery.Document) (FlightData, bool) {
	price, conf, name, ok := e.matchPrice(doc.Text())
	if !ok {
		return FlightData{}, false
	}
	f := FlightData{
		Price:                 price,
		PriceConfidence:       conf,
		PriceStrategy:         "page-level/" + name,
		CorrelationConfidence: CorrelationPageLevel,
		ExtractionMethod:      MethodPageLevel,
	}
	f.OverallConfidence = overallConfidence(&f, 0)
	return f, true
}
