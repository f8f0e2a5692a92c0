// Package flighturl builds Google Flights search URLs from trip parameters.
// Every component that needs a Google Flights link goes through Build so the
// URL format lives in exactly one place.
package flighturl

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Params describes a single flight search to link to.
type Params struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    time.Time // zero for one-way
	Adults        int
	Children      int
	InfantsInSeat int
	InfantsOnLap  int
	CabinClass    string // economy, premium_economy, business, first
	Stops         string // any, nonstop, one_or_fewer, two_or_fewer
	Currency      string
	CountryOfSale string // gl parameter, defaults to nz
}

// Build assembles the Google Flights URL for the given parameters. It is a
// pure function of its arguments.
func Build(p Params) string {
	var q strings.Builder
	fmt.Fprintf(&q, "Flights from %s to %s on %s",
		strings.ToUpper(p.Origin),
		strings.ToUpper(p.Destination),
		p.DepartureDate.Format("2006-01-02"))

	if !p.ReturnDate.IsZero() {
		fmt.Fprintf(&q, " returning %s", p.ReturnDate.Format("2006-01-02"))
	}

	switch p.CabinClass {
	case "business":
		q.WriteString(" business class")
	case "first":
		q.WriteString(" first class")
	case "premium_economy":
		q.WriteString(" premium economy")
	}

	switch p.Stops {
	case "nonstop":
		q.WriteString(" nonstop")
	case "one_or_fewer":
		q.WriteString(" 1 stop or fewer")
	case "two_or_fewer":
		q.WriteString(" 2 stops or fewer")
	}

	writePassengerPhrases(&q, p)

	currency := p.Currency
	if currency == "" {
		currency = "NZD"
	}
	gl := p.CountryOfSale
	if gl == "" {
		gl = "nz"
	}

	return "https://www.google.com/travel/flights?q=" + url.QueryEscape(q.String()) +
		"&curr=" + currency +
		"&hl=en&gl=" + gl
}

// writePassengerPhrases appends passenger counts, but only when they differ
// from the single-adult default.
func writePassengerPhrases(q *strings.Builder, p Params) {
	if p.Adults > 1 {
		fmt.Fprintf(q, " %d adults", p.Adults)
	}
	if p.Children == 1 {
		q.WriteString(" 1 child")
	} else if p.Children > 1 {
		fmt.Fprintf(q, " %d children", p.Children)
	}
	infants := p.InfantsInSeat + p.InfantsOnLap
	if infants == 1 {
		q.WriteString(" 1 infant")
	} else if infants > 1 {
		fmt.Fprintf(q, " %d infants", infants)
	}
}
