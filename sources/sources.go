// Package sources contains the price-source adapters and the cascading
// fetcher that tries them in order. All adapters speak the same interface;
// availability is driven purely by configured credentials.
package sources

import (
	"context"
	"errors"
	"time"
)

// ErrTransient marks upstream failures worth retrying: 429, 502, 503, 504,
// connection errors, timeouts. Adapters wrap these so the retry loop can
// tell them apart from hard failures.
var ErrTransient = errors.New("transient upstream error")

// ErrUnavailable is returned by adapters that have no credentials.
var ErrUnavailable = errors.New("source not configured")

// Spec is the canonical price query every adapter understands.
type Spec struct {
	SearchDefinitionID int64
	Origin             string
	Destination        string
	DepartureDate      time.Time
	ReturnDate         *time.Time

	Adults        int
	Children      int
	InfantsInSeat int
	InfantsOnLap  int

	CabinClass string // economy, premium_economy, business, first
	Stops      int    // -1 any, 0 nonstop, 1 up to one stop, 2 up to two
	Bags       int
	Currency   string
}

// IsRoundTrip reports whether a return date is set.
func (s *Spec) IsRoundTrip() bool {
	return s.ReturnDate != nil
}

// StopsName renders the numeric stops filter as the stored vocabulary.
func (s *Spec) StopsName() string {
	switch s.Stops {
	case 0:
		return "nonstop"
	case 1:
		return "one_or_fewer"
	case 2:
		return "two_or_fewer"
	default:
		return "any"
	}
}

// Price is one priced option from an adapter.
type Price struct {
	Amount          float64
	Currency        string
	Airline         string
	Stops           int
	DurationMinutes int
	LayoverAirports []string
	BookingURL      string
	SourceTag       string

	// Confidence is 1.0 for structured API responses; the browser adapter
	// carries the extractor's per-row overall confidence.
	Confidence float64
}

// PriceInsights is the vendor-supplied price context some adapters return.
type PriceInsights struct {
	LowestPrice       float64
	PriceLevel        string // low, typical, high
	TypicalPriceLow   float64
	TypicalPriceHigh  float64
	PriceHistoryDays  int
	PriceHistoryNotes string
}

// Result is one adapter's answer to a Spec.
type Result struct {
	Success   bool
	Prices    []Price
	SourceTag string
	Status    string // scrape failure classification, empty for API adapters
	Insights  *PriceInsights

	// Artifact paths written by the browser adapter on failure.
	ScreenshotPath string
	HTMLPath       string
}

// Source is the adapter interface. Fetch returns an error for upstream
// failures; a nil error with Success=false means the adapter ran but found
// nothing usable (the browser adapter's classified outcomes).
type Source interface {
	Name() string
	IsAvailable() bool
	Fetch(ctx context.Context, spec Spec) (*Result, error)
}

// countryOfSale maps origin airports to the storefront country sent to
// Google-backed sources. Unlisted origins sell from the default storefront.
var countryOfSale = map[string]string{
	"AKL": "nz", "WLG": "nz", "CHC": "nz", "ZQN": "nz", "DUD": "nz",
	"SYD": "au", "MEL": "au", "BNE": "au", "PER": "au", "ADL": "au", "OOL": "au",
	"NAN": "fj",
	"LAX": "us", "SFO": "us", "JFK": "us", "SEA": "us", "HNL": "us",
	"LHR": "uk", "LGW": "uk",
	"SIN": "sg",
}

// CountryOfSale returns the storefront country for an origin, defaulting nz.
func CountryOfSale(origin string) string {
	if cc, ok := countryOfSale[origin]; ok {
		return cc
	}
	return "nz"
}
