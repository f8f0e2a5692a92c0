package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jesposito/walkabout/config"
	"github.com/jesposito/walkabout/pkg/logger"
)

const amadeusTag = "amadeus"

// Amadeus queries the Amadeus Self-Service flight-offers API. OAuth tokens
// are cached until shortly before expiry.
type Amadeus struct {
	cfg        config.AmadeusConfig
	authClient *http.Client
	client     *http.Client
	log        *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewAmadeus(cfg config.AmadeusConfig, log *logger.Logger) *Amadeus {
	if log == nil {
		log = logger.Default()
	}
	return &Amadeus{
		cfg:        cfg,
		authClient: &http.Client{Timeout: 10 * time.Second},
		client:     &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

func (a *Amadeus) Name() string { return amadeusTag }

func (a *Amadeus) IsAvailable() bool {
	return a.cfg.ClientID != "" && a.cfg.ClientSecret != ""
}

// accessToken returns a cached token or runs the client-credentials flow.
// Tokens are considered expired 60 seconds early.
func (a *Amadeus) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Now().Before(a.tokenExpiry) {
		return a.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.BaseURL+"/v1/security/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build amadeus token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.authClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("amadeus auth failed: %w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("amadeus auth returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode amadeus token: %w", err)
	}

	a.token = body.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn-60) * time.Second)
	return a.token, nil
}

var iso8601DurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?$`)

// parseISO8601Duration converts PT12H30M to minutes.
func parseISO8601Duration(s string) (int, error) {
	m := iso8601DurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unparseable duration %q", s)
	}
	hours := 0
	minutes := 0
	if m[1] != "" {
		hours, _ = strconv.Atoi(m[1])
	}
	if m[2] != "" {
		minutes, _ = strconv.Atoi(m[2])
	}
	return hours*60 + minutes, nil
}

type amadeusOffersResponse struct {
	Data []struct {
		Price struct {
			GrandTotal string `json:"grandTotal"`
			Currency   string `json:"currency"`
		} `json:"price"`
		Itineraries []struct {
			Duration string `json:"duration"`
			Segments []struct {
				CarrierCode string `json:"carrierCode"`
				Arrival     struct {
					IataCode string `json:"iataCode"`
				} `json:"arrival"`
			} `json:"segments"`
		} `json:"itineraries"`
	} `json:"data"`
	Dictionaries struct {
		Carriers map[string]string `json:"carriers"`
	} `json:"dictionaries"`
}

// Fetch runs one flight-offers search.
func (a *Amadeus) Fetch(ctx context.Context, spec Spec) (*Result, error) {
	if !a.IsAvailable() {
		return nil, ErrUnavailable
	}

	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("originLocationCode", spec.Origin)
	q.Set("destinationLocationCode", spec.Destination)
	q.Set("departureDate", spec.DepartureDate.Format("2006-01-02"))
	if spec.ReturnDate != nil {
		q.Set("returnDate", spec.ReturnDate.Format("2006-01-02"))
	}
	q.Set("adults", strconv.Itoa(spec.Adults))
	if spec.Children > 0 {
		q.Set("children", strconv.Itoa(spec.Children))
	}
	if spec.InfantsInSeat+spec.InfantsOnLap > 0 {
		q.Set("infants", strconv.Itoa(spec.InfantsInSeat+spec.InfantsOnLap))
	}
	q.Set("travelClass", strings.ToUpper(spec.CabinClass))
	q.Set("currencyCode", spec.Currency)
	// nonStop is always sent explicitly; the upstream default is ambiguous.
	q.Set("nonStop", strconv.FormatBool(spec.Stops == 0))
	q.Set("max", "20")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.cfg.BaseURL+"/v2/shopping/flight-offers?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build amadeus request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("amadeus request failed: %w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, amadeusTag); err != nil {
		return nil, err
	}

	var body amadeusOffersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode amadeus response: %w", err)
	}

	result := &Result{Success: true, SourceTag: amadeusTag}
	for _, offer := range body.Data {
		amount, err := strconv.ParseFloat(offer.Price.GrandTotal, 64)
		if err != nil || amount <= 0 {
			continue
		}
		p := Price{
			Amount:     amount,
			Currency:   offer.Price.Currency,
			SourceTag:  amadeusTag,
			Confidence: 1.0,
		}
		for _, itin := range offer.Itineraries {
			if minutes, err := parseISO8601Duration(itin.Duration); err == nil {
				p.DurationMinutes += minutes
			}
			if len(itin.Segments) > 0 {
				p.Stops += len(itin.Segments) - 1
				if p.Airline == "" {
					code := itin.Segments[0].CarrierCode
					if name, ok := body.Dictionaries.Carriers[code]; ok {
						p.Airline = name
					} else {
						p.Airline = code
					}
				}
				// Intermediate arrivals are the layover points.
				for i := 0; i < len(itin.Segments)-1; i++ {
					p.LayoverAirports = append(p.LayoverAirports, itin.Segments[i].Arrival.IataCode)
				}
			}
		}
		result.Prices = append(result.Prices, p)
	}

	if ins, err := a.priceMetrics(ctx, token, spec); err == nil {
		result.Insights = ins
	}

	a.log.Debug("amadeus fetch complete",
		"origin", spec.Origin, "destination", spec.Destination,
		"prices", len(result.Prices))
	return result, nil
}

// priceMetrics asks the analytics endpoint for route quartiles. Best-effort;
// failures never affect the price result.
func (a *Amadeus) priceMetrics(ctx context.Context, token string, spec Spec) (*PriceInsights, error) {
	q := url.Values{}
	q.Set("originIataCode", spec.Origin)
	q.Set("destinationIataCode", spec.Destination)
	q.Set("departureDate", spec.DepartureDate.Format("2006-01-02"))
	q.Set("currencyCode", spec.Currency)
	q.Set("oneWay", strconv.FormatBool(spec.ReturnDate == nil))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.cfg.BaseURL+"/v1/analytics/itinerary-price-metrics?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price metrics returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Data []struct {
			PriceMetrics []struct {
				Amount        string `json:"amount"`
				QuartileRank  string `json:"quartileRanking"`
			} `json:"priceMetrics"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("no price metrics")
	}

	ins := &PriceInsights{}
	for _, m := range body.Data[0].PriceMetrics {
		amount, err := strconv.ParseFloat(m.Amount, 64)
		if err != nil {
			continue
		}
		switch m.QuartileRank {
		case "MINIMUM":
			ins.LowestPrice = amount
		case "FIRST":
			ins.TypicalPriceLow = amount
		case "THIRD":
			ins.TypicalPriceHigh = amount
		}
	}
	return ins, nil
}
