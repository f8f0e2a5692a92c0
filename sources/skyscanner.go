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

const skyscannerTag = "skyscanner"

// Skyscanner queries flight prices through a RapidAPI gateway.
type Skyscanner struct {
	cfg      config.SkyscannerConfig
	endpoint string
	client   *http.Client
	log      *logger.Logger
}

func NewSkyscanner(cfg config.SkyscannerConfig, log *logger.Logger) *Skyscanner {
	if log == nil {
		log = logger.Default()
	}
	return &Skyscanner{
		cfg:      cfg,
		endpoint: fmt.Sprintf("https://%s/search", cfg.APIHost),
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

func (s *Skyscanner) Name() string { return skyscannerTag }

func (s *Skyscanner) IsAvailable() bool { return s.cfg.APIKey != "" }

type skyscannerResponse struct {
	Itineraries struct {
		Results []struct {
			PricingOptions []struct {
				Price struct {
					Amount float64 `json:"amount"`
				} `json:"price"`
				Items []struct {
					URL string `json:"url"`
				} `json:"items"`
			} `json:"pricing_options"`
			Legs []struct {
				DurationInMinutes int `json:"durationInMinutes"`
				StopCount         int `json:"stopCount"`
				Carriers          struct {
					Marketing []struct {
						Name string `json:"name"`
					} `json:"marketing"`
				} `json:"carriers"`
				Stops []struct {
					DisplayCode string `json:"displayCode"`
				} `json:"stops"`
			} `json:"legs"`
		} `json:"results"`
	} `json:"itineraries"`
}

// Fetch runs one price query. Only the first pricing option per itinerary is
// taken; the rest are agent duplicates of the same flight.
func (s *Skyscanner) Fetch(ctx context.Context, spec Spec) (*Result, error) {
	if !s.IsAvailable() {
		return nil, ErrUnavailable
	}

	q := url.Values{}
	q.Set("origin", spec.Origin)
	q.Set("destination", spec.Destination)
	q.Set("departureDate", spec.DepartureDate.Format("2006-01-02"))
	if spec.ReturnDate != nil {
		q.Set("returnDate", spec.ReturnDate.Format("2006-01-02"))
	}
	q.Set("adults", strconv.Itoa(spec.Adults))
	if spec.Children > 0 {
		q.Set("children", strconv.Itoa(spec.Children))
	}
	q.Set("cabinClass", spec.CabinClass)
	q.Set("currency", spec.Currency)
	q.Set("market", CountryOfSale(spec.Origin))
	q.Set("locale", "en-US")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build skyscanner request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", s.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", s.cfg.APIHost)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("skyscanner request failed: %w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, skyscannerTag); err != nil {
		return nil, err
	}

	var body skyscannerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode skyscanner response: %w", err)
	}

	result := &Result{Success: true, SourceTag: skyscannerTag}
	for _, it := range body.Itineraries.Results {
		if len(it.PricingOptions) == 0 {
			continue
		}
		opt := it.PricingOptions[0]
		if opt.Price.Amount <= 0 {
			continue
		}
		p := Price{
			Amount:     opt.Price.Amount,
			Currency:   spec.Currency,
			SourceTag:  skyscannerTag,
			Confidence: 1.0,
		}
		if len(opt.Items) > 0 {
			p.BookingURL = opt.Items[0].URL
		}
		for _, leg := range it.Legs {
			p.DurationMinutes += leg.DurationInMinutes
			p.Stops += leg.StopCount
			if p.Airline == "" && len(leg.Carriers.Marketing) > 0 {
				p.Airline = leg.Carriers.Marketing[0].Name
			}
			for _, stop := range leg.Stops {
				p.LayoverAirports = append(p.LayoverAirports, stop.DisplayCode)
			}
		}
		// The gateway has no stops parameter, so the filter is applied here.
		if spec.Stops >= 0 && p.Stops > spec.Stops {
			continue
		}
		result.Prices = append(result.Prices, p)
	}

	s.log.Debug("skyscanner fetch complete",
		"origin", spec.Origin, "destination", spec.Destination,
		"prices", len(result.Prices))
	return result, nil
}
