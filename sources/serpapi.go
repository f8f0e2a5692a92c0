package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jesposito/walkabout/config"
	"github.com/jesposito/walkabout/pkg/logger"
)

const serpAPITag = "serpapi"

// SerpAPI queries Google Flights through the SerpAPI proxy.
type SerpAPI struct {
	cfg    config.SerpAPIConfig
	client *http.Client
	log    *logger.Logger
}

// NewSerpAPI returns the adapter. It is safe to construct without a key; the
// fetcher skips unavailable adapters.
func NewSerpAPI(cfg config.SerpAPIConfig, log *logger.Logger) *SerpAPI {
	if log == nil {
		log = logger.Default()
	}
	return &SerpAPI{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

func (s *SerpAPI) Name() string { return serpAPITag }

func (s *SerpAPI) IsAvailable() bool { return s.cfg.APIKey != "" }

// travelClass maps cabin names to the numeric codes the upstream expects.
var travelClass = map[string]string{
	"economy":         "1",
	"premium_economy": "2",
	"business":        "3",
	"first":           "4",
}

// serpStopsCode maps the canonical stops filter onto the upstream encoding,
// where 0 means any.
func serpStopsCode(stops int) string {
	switch stops {
	case 0:
		return "1"
	case 1:
		return "2"
	case 2:
		return "3"
	default:
		return "0"
	}
}

type serpFlight struct {
	Flights []struct {
		Airline  string `json:"airline"`
		Duration int    `json:"duration"`
	} `json:"flights"`
	Layovers []struct {
		ID string `json:"id"`
	} `json:"layovers"`
	TotalDuration int     `json:"total_duration"`
	Price         float64 `json:"price"`
}

type serpResponse struct {
	Error         string       `json:"error"`
	BestFlights   []serpFlight `json:"best_flights"`
	OtherFlights  []serpFlight `json:"other_flights"`
	PriceInsights *struct {
		LowestPrice       float64   `json:"lowest_price"`
		PriceLevel        string    `json:"price_level"`
		TypicalPriceRange []float64 `json:"typical_price_range"`
	} `json:"price_insights"`
	SearchMetadata struct {
		GoogleFlightsURL string `json:"google_flights_url"`
	} `json:"search_metadata"`
}

// Fetch runs one price query.
func (s *SerpAPI) Fetch(ctx context.Context, spec Spec) (*Result, error) {
	if !s.IsAvailable() {
		return nil, ErrUnavailable
	}

	q := url.Values{}
	q.Set("engine", "google_flights")
	q.Set("api_key", s.cfg.APIKey)
	q.Set("departure_id", spec.Origin)
	q.Set("arrival_id", spec.Destination)
	q.Set("outbound_date", spec.DepartureDate.Format("2006-01-02"))
	if spec.ReturnDate != nil {
		q.Set("return_date", spec.ReturnDate.Format("2006-01-02"))
		q.Set("type", "1")
	} else {
		q.Set("type", "2")
	}
	q.Set("adults", strconv.Itoa(spec.Adults))
	if spec.Children > 0 {
		q.Set("children", strconv.Itoa(spec.Children))
	}
	if spec.InfantsInSeat > 0 {
		q.Set("infants_in_seat", strconv.Itoa(spec.InfantsInSeat))
	}
	if spec.InfantsOnLap > 0 {
		q.Set("infants_on_lap", strconv.Itoa(spec.InfantsOnLap))
	}
	if tc, ok := travelClass[spec.CabinClass]; ok {
		q.Set("travel_class", tc)
	}
	q.Set("stops", serpStopsCode(spec.Stops))
	if spec.Bags > 0 {
		q.Set("bags", strconv.Itoa(spec.Bags))
	}
	q.Set("currency", spec.Currency)
	q.Set("hl", "en")
	q.Set("gl", CountryOfSale(spec.Origin))
	q.Set("deep_search", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build serpapi request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request failed: %w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, serpAPITag); err != nil {
		return nil, err
	}

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode serpapi response: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("serpapi error: %s", body.Error)
	}

	result := &Result{Success: true, SourceTag: serpAPITag}
	for _, f := range append(body.BestFlights, body.OtherFlights...) {
		if f.Price <= 0 {
			continue
		}
		p := Price{
			Amount:          f.Price,
			Currency:        spec.Currency,
			Stops:           len(f.Flights) - 1,
			DurationMinutes: f.TotalDuration,
			BookingURL:      body.SearchMetadata.GoogleFlightsURL,
			SourceTag:       serpAPITag,
			Confidence:      1.0,
		}
		if len(f.Flights) > 0 {
			p.Airline = f.Flights[0].Airline
		}
		for _, l := range f.Layovers {
			p.LayoverAirports = append(p.LayoverAirports, l.ID)
		}
		result.Prices = append(result.Prices, p)
	}

	if pi := body.PriceInsights; pi != nil {
		ins := &PriceInsights{
			LowestPrice: pi.LowestPrice,
			PriceLevel:  pi.PriceLevel,
		}
		if len(pi.TypicalPriceRange) == 2 {
			ins.TypicalPriceLow = pi.TypicalPriceRange[0]
			ins.TypicalPriceHigh = pi.TypicalPriceRange[1]
		}
		result.Insights = ins
	}

	s.log.Debug("serpapi fetch complete",
		"origin", spec.Origin, "destination", spec.Destination,
		"prices", len(result.Prices))
	return result, nil
}

// classifyStatus turns an HTTP status into transient or hard failure.
func classifyStatus(status int, tag string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout ||
		status >= 500:
		return fmt.Errorf("%s returned HTTP %d: %w", tag, status, ErrTransient)
	default:
		return fmt.Errorf("%s returned HTTP %d", tag, status)
	}
}
