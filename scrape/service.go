// Package scrape runs one price scrape per search definition: circuit
// check, date sampling, fetch cascade, confidence gates, anomaly guard,
// persistence, and deal detection.
package scrape

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jesposito/walkabout/analyze"
	"github.com/jesposito/walkabout/config"
	"github.com/jesposito/walkabout/db"
	"github.com/jesposito/walkabout/pkg/logger"
	"github.com/jesposito/walkabout/sources"
)

// Outcome statuses beyond the classified failure reasons.
const (
	StatusSuccess = "success"
	StatusBlocked = "blocked"
)

// Store is the persistence surface the service needs.
type Store interface {
	GetSearchDefinition(ctx context.Context, id int64) (*db.SearchDefinition, error)
	GetScrapeHealth(ctx context.Context, id int64) (*db.ScrapeHealth, error)
	// InsertFlightPrices records the scrape success in the same transaction,
	// so a separate success call is not part of this surface.
	InsertFlightPrices(ctx context.Context, prices []db.FlightPrice) error
	RecordScrapeFailure(ctx context.Context, id int64, reason, message, screenshotPath, htmlPath string) error
	MedianPrice(ctx context.Context, id int64, windowDays int) (float64, bool, error)
	PriceHistory(ctx context.Context, id int64, windowDays int) ([]float64, error)
}

// PriceFetcher is the fetch cascade surface.
type PriceFetcher interface {
	Fetch(ctx context.Context, spec sources.Spec, preferred string) (*sources.FetchResult, error)
}

// DealEvent is handed to the notifier when a stored price qualifies.
type DealEvent struct {
	Definition     *db.SearchDefinition
	Price          db.FlightPrice
	Analysis       analyze.Result
	Insights       *sources.PriceInsights
	Recommendation string
}

// DealNotifier receives qualifying deals. Delivery failures are logged, not
// propagated; a lost notification must not fail the scrape.
type DealNotifier interface {
	NotifyDeal(ctx context.Context, event DealEvent) error
}

// Outcome summarizes one scrape invocation.
type Outcome struct {
	Status     string
	Stored     int
	Dropped    int
	Suspicious int
	Deal       *analyze.Result
}

// Service orchestrates scrapes.
type Service struct {
	store    Store
	fetcher  PriceFetcher
	notifier DealNotifier
	cfg      config.ScrapeConfig
	dealCfg  config.DealConfig
	log      *logger.Logger
}

func NewService(store Store, fetcher PriceFetcher, notifier DealNotifier,
	cfg config.ScrapeConfig, dealCfg config.DealConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		store: store, fetcher: fetcher, notifier: notifier,
		cfg: cfg, dealCfg: dealCfg, log: log,
	}
}

// ScrapeSearch runs one scrape for a definition.
func (s *Service) ScrapeSearch(ctx context.Context, searchDefinitionID int64) (*Outcome, error) {
	def, err := s.store.GetSearchDefinition(ctx, searchDefinitionID)
	if err != nil {
		return nil, err
	}

	health, err := s.store.GetScrapeHealth(ctx, searchDefinitionID)
	if err != nil {
		return nil, err
	}
	if health.CircuitOpen {
		s.log.Warn("circuit open, skipping scrape",
			"search_definition_id", searchDefinitionID,
			"consecutive_failures", health.ConsecutiveFailures)
		return &Outcome{Status: StatusBlocked}, nil
	}

	departure, ret := GenerateTravelDates(def, time.Now())
	spec := sources.Spec{
		SearchDefinitionID: def.ID,
		Origin:             def.Origin,
		Destination:        def.Destination,
		DepartureDate:      departure,
		ReturnDate:         ret,
		Adults:             def.Adults,
		Children:           def.Children,
		InfantsInSeat:      def.InfantsInSeat,
		InfantsOnLap:       def.InfantsOnLap,
		CabinClass:         def.CabinClass,
		Stops:              stopsFilter(def.Stops),
		Bags:               def.CheckedBags,
		Currency:           def.Currency,
	}

	fr, err := s.fetcher.Fetch(ctx, spec, def.PreferredSource)
	if err != nil {
		reason, shot, html := classifyFetchFailure(fr)
		if recErr := s.store.RecordScrapeFailure(ctx, def.ID, reason, err.Error(), shot, html); recErr != nil {
			s.log.Error(recErr, "failed to record scrape failure", "search_definition_id", def.ID)
		}
		return &Outcome{Status: reason}, err
	}

	return s.persist(ctx, def, departure, ret, fr)
}

func (s *Service) persist(ctx context.Context, def *db.SearchDefinition,
	departure time.Time, ret *time.Time, fr *sources.FetchResult) (*Outcome, error) {

	median, hasMedian, err := s.store.MedianPrice(ctx, def.ID, s.cfg.AnomalyWindowDays)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Status: StatusSuccess}
	now := time.Now()
	var rows []db.FlightPrice

	for _, p := range fr.Prices {
		if p.Confidence < s.cfg.StoreMinConfidence {
			outcome.Dropped++
			continue
		}

		row := db.FlightPrice{
			SearchDefinitionID: def.ID,
			ScrapedAt:          now,
			DepartureDate:      departure,
			PricePerPassenger:  p.Amount,
			TotalPrice:         p.Amount * float64(def.PassengerCount()),
			PassengerCount:     def.PassengerCount(),
			TripType:           def.TripType,
			Source:             p.SourceTag,
			Confidence:         p.Confidence,
		}
		if ret != nil {
			row.ReturnDate = sql.NullTime{Time: *ret, Valid: true}
		}
		if p.Airline != "" {
			row.Airline = sql.NullString{String: p.Airline, Valid: true}
		}
		row.Stops = sql.NullInt32{Int32: int32(p.Stops), Valid: true}
		if p.DurationMinutes > 0 {
			row.DurationMinutes = sql.NullInt32{Int32: int32(p.DurationMinutes), Valid: true}
		}
		if len(p.LayoverAirports) > 0 {
			row.LayoverAirports = sql.NullString{
				String: strings.Join(p.LayoverAirports, ","), Valid: true,
			}
		}

		if s.isSuspicious(p.Amount, median, hasMedian, now) {
			row.IsSuspicious = true
			outcome.Suspicious++
		}
		rows = append(rows, row)
	}

	if outcome.Dropped > 0 {
		s.log.Info("low-confidence prices dropped",
			"search_definition_id", def.ID,
			"dropped", outcome.Dropped, "threshold", s.cfg.StoreMinConfidence)
	}

	if len(rows) == 0 {
		msg := "no extraction above store threshold"
		if err := s.store.RecordScrapeFailure(ctx, def.ID, db.FailureLayoutChange, msg, "", ""); err != nil {
			s.log.Error(err, "failed to record scrape failure", "search_definition_id", def.ID)
		}
		return &Outcome{Status: db.FailureLayoutChange, Dropped: outcome.Dropped}, nil
	}

	// Persisting the rows also records the health success in the same
	// transaction.
	if err := s.store.InsertFlightPrices(ctx, rows); err != nil {
		return nil, err
	}
	outcome.Stored = len(rows)

	s.evaluateDeal(ctx, def, rows, fr, outcome)
	return outcome, nil
}

// evaluateDeal picks the cheapest stored row that is deal-eligible and runs
// the detector on it.
func (s *Service) evaluateDeal(ctx context.Context, def *db.SearchDefinition,
	rows []db.FlightPrice, fr *sources.FetchResult, outcome *Outcome) {

	var best *db.FlightPrice
	for i := range rows {
		r := &rows[i]
		if r.IsSuspicious || r.Confidence < s.cfg.DealMinConfidence {
			continue
		}
		if best == nil || r.PricePerPassenger < best.PricePerPassenger {
			best = r
		}
	}
	if best == nil {
		return
	}

	history, err := s.store.PriceHistory(ctx, def.ID, s.dealCfg.HistoryWindowDays)
	if err != nil {
		s.log.Error(err, "failed to load price history", "search_definition_id", def.ID)
		return
	}

	result := analyze.Analyze(best.PricePerPassenger, history, analyze.Config{
		MinHistorySamples: s.dealCfg.MinHistorySamples,
		RobustZThreshold:  s.dealCfg.RobustZThreshold,
		NewLowMarginPct:   s.dealCfg.NewLowMarginPct,
	})

	// A marginal saving gets promoted when the upstream's own price model
	// agrees the route is cheap right now.
	if !result.IsDeal && s.dealCfg.PriceInsightsBonus && fr.Insights != nil &&
		fr.Insights.PriceLevel == "low" &&
		result.RobustZ <= s.dealCfg.RobustZThreshold+0.5 {
		result.IsDeal = true
		result.Reason += "; upstream rates this price level low"
	}
	outcome.Deal = &result

	if !result.IsDeal || s.notifier == nil {
		return
	}
	event := DealEvent{
		Definition:     def,
		Price:          *best,
		Analysis:       result,
		Insights:       fr.Insights,
		Recommendation: fr.Recommendation,
	}
	if err := s.notifier.NotifyDeal(ctx, event); err != nil {
		s.log.Error(err, "deal notification failed", "search_definition_id", def.ID)
	}
}

// isSuspicious applies the anomaly guard: calendar years misread as prices,
// and prices wildly above or below the recent median. The bounds are
// asymmetric on purpose; the failure modes they catch are asymmetric.
func (s *Service) isSuspicious(price, median float64, hasMedian bool, now time.Time) bool {
	if price == float64(int(price)) {
		year := now.Year()
		p := int(price)
		if p >= year-1 && p <= year+2 {
			return true
		}
	}
	if !hasMedian || median <= 0 {
		return false
	}
	if price > median*(1+s.cfg.AnomalyUpperPct/100) {
		return true
	}
	if price < median*s.cfg.AnomalyLowerFraction {
		return true
	}
	return false
}

// stopsFilter converts the stored stops preference to the canonical filter.
func stopsFilter(stops string) int {
	switch stops {
	case "nonstop":
		return 0
	case "one_or_fewer":
		return 1
	case "two_or_fewer":
		return 2
	default:
		return -1
	}
}

// classifyFetchFailure maps a failed cascade to a health failure reason and
// any artifacts the browser adapter saved.
func classifyFetchFailure(fr *sources.FetchResult) (string, string, string) {
	if fr != nil && fr.LastFailure != nil {
		lf := fr.LastFailure
		return lf.Status, lf.ScreenshotPath, lf.HTMLPath
	}
	return db.FailureNetworkError, "", ""
}
