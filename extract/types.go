// Package extract pulls structured flight data out of rendered Google
// Flights pages. Layouts change without notice, so every value carries a
// confidence score and the caller decides what to keep.
package extract

// Method records whether a flight came from a located result row or from a
// whole-page fallback scan.
type Method string

const (
	MethodPerRow    Method = "per_row"
	MethodPageLevel Method = "page_level"
)

// Correlation confidences by row-selector level. Locality of price, airline,
// and stops inside one DOM subtree is the strongest evidence the values
// belong together, so row-level extraction dominates the overall score.
const (
	CorrelationStructural = 0.95
	CorrelationCategory   = 0.90
	CorrelationAria       = 0.90
	CorrelationTraversal  = 0.80
	CorrelationUnknown    = 0.70
	CorrelationPageLevel  = 0.30
)

// FlightData is one extracted flight with per-field and overall confidences.
type FlightData struct {
	Price           float64
	PriceConfidence float64
	PriceStrategy   string

	Airline           string
	AirlineConfidence float64

	Stops           int
	StopsConfidence float64

	DurationMinutes    int
	DurationConfidence float64

	LayoverAirports []string

	CorrelationConfidence float64
	OverallConfidence     float64
	ExtractionMethod      Method
}

// HasDuration reports whether a duration was extracted.
func (f *FlightData) HasDuration() bool {
	return f.DurationConfidence > 0 && f.DurationMinutes > 0
}

// HasStops reports whether a stop count was extracted. Zero stops is a valid
// extraction, so the confidence is the signal.
func (f *FlightData) HasStops() bool {
	return f.StopsConfidence > 0
}
