// Package currency converts amounts between currencies using a cached rate
// table with a hard-coded fallback.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/jesposito/walkabout/pkg/logger"
)

// baseCurrency is the pivot every rate is expressed against.
const baseCurrency = "NZD"

// fallbackRates are approximate NZD-per-unit rates used when the upstream
// rate feed is unreachable. Stale is better than nothing for match scoring.
var fallbackRates = map[string]float64{
	"NZD": 1.0,
	"AUD": 1.09,
	"USD": 1.65,
	"EUR": 1.79,
	"GBP": 2.09,
	"JPY": 0.0112,
	"SGD": 1.23,
	"FJD": 0.73,
	"CAD": 1.21,
	"THB": 0.047,
	"INR": 0.019,
	"CNY": 0.23,
	"KRW": 0.0012,
	"HKD": 0.21,
}

// Service converts between currencies. Rates are cached process-wide with a
// TTL and refreshed by at most one goroutine at a time.
type Service struct {
	rateURL    string
	ttl        time.Duration
	httpClient *http.Client

	mu        sync.RWMutex
	rates     map[string]float64 // NZD per one unit of currency
	fetchedAt time.Time

	group singleflight.Group
}

// Config holds currency service configuration.
type Config struct {
	RateURL string
	TTL     time.Duration
}

// NewService creates a currency service. With an empty RateURL the service
// runs purely on the fallback table.
func NewService(cfg Config) *Service {
	if cfg.TTL == 0 {
		cfg.TTL = 6 * time.Hour
	}
	rates := make(map[string]float64, len(fallbackRates))
	for code, rate := range fallbackRates {
		rates[code] = rate
	}
	return &Service{
		rateURL:    cfg.RateURL,
		ttl:        cfg.TTL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		rates:      rates,
	}
}

// Convert converts amount from one currency to another. Returns an error if
// either currency has no known rate.
func (s *Service) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return amount, nil
	}

	s.refreshIfStale(ctx)

	s.mu.RLock()
	fromRate, fromOK := s.rates[from]
	toRate, toOK := s.rates[to]
	s.mu.RUnlock()

	if !fromOK {
		return 0, fmt.Errorf("no rate for currency %s", from)
	}
	if !toOK {
		return 0, fmt.Errorf("no rate for currency %s", to)
	}

	return amount * fromRate / toRate, nil
}

// refreshIfStale fetches fresh rates when the cache has expired. Concurrent
// callers share one upstream request; failures keep the old table.
func (s *Service) refreshIfStale(ctx context.Context) {
	if s.rateURL == "" {
		return
	}
	s.mu.RLock()
	stale := time.Since(s.fetchedAt) > s.ttl
	s.mu.RUnlock()
	if !stale {
		return
	}

	_, _, _ = s.group.Do("refresh", func() (interface{}, error) {
		fresh, err := s.fetchRates(ctx)
		if err != nil {
			logger.Warn("currency rate refresh failed, keeping cached table", "error", err)
			s.mu.Lock()
			// Back off for a tenth of the TTL so a dead feed is not hammered.
			s.fetchedAt = time.Now().Add(-s.ttl + s.ttl/10)
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Lock()
		for code, rate := range fresh {
			if rate > 0 {
				s.rates[code] = rate
			}
		}
		s.fetchedAt = time.Now()
		s.mu.Unlock()
		return nil, nil
	})
}

// rateResponse matches the open.er-api.com payload shape: rates are
// base-currency units per NZD, so they are inverted on the way in.
type rateResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

func (s *Service) fetchRates(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.rateURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rate fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate feed returned status %d", resp.StatusCode)
	}

	var payload rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("rate feed decode failed: %w", err)
	}
	if payload.Result != "" && payload.Result != "success" {
		return nil, fmt.Errorf("rate feed result %q", payload.Result)
	}

	rates := make(map[string]float64, len(payload.Rates))
	rates[baseCurrency] = 1.0
	for code, perNZD := range payload.Rates {
		if perNZD > 0 {
			rates[strings.ToUpper(code)] = 1.0 / perNZD
		}
	}
	return rates, nil
}

// KnownCurrencies returns the currency codes the service can currently convert.
func (s *Service) KnownCurrencies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, 0, len(s.rates))
	for code := range s.rates {
		codes = append(codes, code)
	}
	return codes
}

// ForCountry returns the currency code for an ISO 3166-1 alpha-2 country
// code, defaulting to NZD when the country is unknown.
func ForCountry(countryCode string) string {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		return baseCurrency
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return baseCurrency
	}
	cur, ok := currency.FromRegion(region)
	if !ok {
		return baseCurrency
	}
	return cur.String()
}
