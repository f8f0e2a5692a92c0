package tripplan

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jesposito/walkabout/airports"
	"github.com/jesposito/walkabout/config"
	"github.com/jesposito/walkabout/db"
	"github.com/jesposito/walkabout/pkg/logger"
	"github.com/jesposito/walkabout/pkg/macros"
	"github.com/jesposito/walkabout/sources"
)

// Search-window bounds relative to today. Nothing inside two weeks is worth
// booking on a flexible plan, and airlines rarely publish fares past ten
// months.
const (
	windowMinDaysOut = 14
	windowMaxDaysOut = 300
)

// Bogus-result floors in NZD.
const (
	minInternationalPrice = 200
	minZeroInfoPrice      = 500
)

// Store is the persistence surface the searcher needs.
type Store interface {
	TryLockTripPlanSearch(ctx context.Context, planID int64, staleAfter time.Duration) (bool, error)
	UnlockTripPlanSearch(ctx context.Context, planID int64) error
	UpsertTripPlanMatch(ctx context.Context, m *db.TripPlanMatch) (int64, error)
	ListTripPlanMatches(ctx context.Context, planID int64) ([]db.TripPlanMatch, error)
	UpdateMatchScore(ctx context.Context, matchID int64, score float64) error
	DeleteTripPlanMatch(ctx context.Context, matchID int64) error
	GetUserSettings(ctx context.Context) (*db.UserSettings, error)
}

// PriceFetcher is the fetch cascade surface.
type PriceFetcher interface {
	Fetch(ctx context.Context, spec sources.Spec, preferred string) (*sources.FetchResult, error)
}

// Summary reports what one plan search did.
type Summary struct {
	Searches int
	Stored   int
	Deleted  int
	Message  string
}

// Searcher expands a trip plan into concrete searches and persists the best
// matches.
type Searcher struct {
	store   Store
	fetcher PriceFetcher
	conv    Converter
	catalog *airports.Catalog
	cfg     config.TripPlanConfig
	log     *logger.Logger

	sleep func(context.Context, time.Duration)
}

func NewSearcher(store Store, fetcher PriceFetcher, conv Converter,
	catalog *airports.Catalog, cfg config.TripPlanConfig, log *logger.Logger) *Searcher {
	if log == nil {
		log = logger.Default()
	}
	return &Searcher{
		store: store, fetcher: fetcher, conv: conv, catalog: catalog,
		cfg: cfg, log: log,
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		},
	}
}

// candidate is one priced option before persistence.
type candidate struct {
	origin      string
	destination string
	departure   time.Time
	ret         time.Time
	priceNZD    float64
	original    sources.Price
}

// Run executes one search pass for a plan, guarded by the plan's advisory
// lock. A plan whose lock is held by a fresh search is skipped.
func (s *Searcher) Run(ctx context.Context, plan *db.TripPlan) (*Summary, error) {
	locked, err := s.store.TryLockTripPlanSearch(ctx, plan.ID, s.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	if !locked {
		return &Summary{Message: "search already in progress"}, nil
	}
	defer func() {
		if err := s.store.UnlockTripPlanSearch(ctx, plan.ID); err != nil {
			s.log.Error(err, "failed to unlock trip plan", "trip_plan_id", plan.ID)
		}
	}()

	origins, err := s.resolveOrigins(ctx, plan)
	if err != nil {
		return nil, err
	}
	destinations, err := resolveDestinations(plan)
	if err != nil {
		return &Summary{Message: err.Error()}, nil
	}
	if len(destinations) == 0 {
		return &Summary{Message: "plan has no destinations"}, nil
	}

	combos, msg := dateCombos(plan, time.Now())
	if msg != "" {
		return &Summary{Message: msg}, nil
	}

	summary := &Summary{}
	byDestination := make(map[string][]candidate)
	primaryOrigin := origins[0]

	for _, destination := range destinations {
		for _, combo := range combos {
			if summary.Searches >= s.cfg.MaxSearchesPerRun {
				break
			}
			if summary.Searches > 0 {
				s.sleep(ctx, s.cfg.SearchSpacing)
			}
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Searches++

			found := s.searchOne(ctx, plan, primaryOrigin, destination, combo)
			byDestination[destination] = append(byDestination[destination], found...)
		}
	}

	stored, err := s.persistMatches(ctx, plan, byDestination)
	if err != nil {
		return summary, err
	}
	summary.Stored = stored

	deleted, err := s.rescore(ctx, plan)
	if err != nil {
		return summary, err
	}
	summary.Deleted = deleted
	return summary, nil
}

func (s *Searcher) resolveOrigins(ctx context.Context, plan *db.TripPlan) ([]string, error) {
	if len(plan.Origins) > 0 {
		return plan.Origins, nil
	}
	settings, err := s.store.GetUserSettings(ctx)
	if err != nil {
		return nil, err
	}
	if len(settings.HomeAirports) > 0 {
		return settings.HomeAirports, nil
	}
	return []string{s.cfg.DefaultOrigin}, nil
}

func resolveDestinations(plan *db.TripPlan) ([]string, error) {
	inputs := make([]string, 0, len(plan.Destinations)+len(plan.DestinationTypes))
	inputs = append(inputs, plan.Destinations...)
	inputs = append(inputs, plan.DestinationTypes...)
	return macros.ExpandDestinations(inputs)
}

type dateCombo struct {
	departure time.Time
	ret       time.Time
}

// dateCombos synthesizes up to five (departure, return) pairs across the
// plan's effective window using the duration midpoint. A window too narrow
// for the minimum duration returns an explanatory message.
func dateCombos(plan *db.TripPlan, now time.Time) ([]dateCombo, string) {
	today := now.Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, windowMinDaysOut)
	to := today.AddDate(0, 0, windowMaxDaysOut)

	if plan.AvailableFrom.Valid && plan.AvailableFrom.Time.After(from) {
		from = plan.AvailableFrom.Time
	}
	if plan.AvailableTo.Valid && plan.AvailableTo.Time.Before(to) {
		to = plan.AvailableTo.Time
	}

	durMin := plan.DurationMinDays
	if durMin < 1 {
		durMin = 1
	}
	durMax := plan.DurationMaxDays
	if durMax < durMin {
		durMax = durMin
	}
	tripDays := (durMin + durMax) / 2

	windowDays := int(to.Sub(from).Hours() / 24)
	if windowDays < durMin {
		return nil, fmt.Sprintf(
			"available window of %d days cannot fit a %d-day trip", windowDays, durMin)
	}

	usable := windowDays - tripDays
	if usable < 0 {
		tripDays = durMin
		usable = windowDays - tripDays
		if usable < 0 {
			usable = 0
		}
	}

	n := 5
	if usable/7+1 < n {
		n = usable/7 + 1
	}
	if n < 1 {
		n = 1
	}

	var combos []dateCombo
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		offset := 0
		if n > 1 {
			offset = usable * i / (n - 1)
		}
		dep := from.AddDate(0, 0, offset)
		key := dep.Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		combos = append(combos, dateCombo{departure: dep, ret: dep.AddDate(0, 0, tripDays)})
	}
	return combos, ""
}

// searchOne runs one fetch and filters its prices. The pseudo search id keys
// browser artifacts without colliding with real search definitions.
func (s *Searcher) searchOne(ctx context.Context, plan *db.TripPlan,
	origin, destination string, combo dateCombo) []candidate {

	ret := combo.ret
	spec := sources.Spec{
		SearchDefinitionID: -plan.ID,
		Origin:             origin,
		Destination:        destination,
		DepartureDate:      combo.departure,
		ReturnDate:         &ret,
		Adults:             plan.Adults,
		Children:           plan.Children,
		CabinClass:         firstCabin(plan),
		Stops:              -1,
		Currency:           plan.BudgetCurrency,
	}

	fr, err := s.fetcher.Fetch(ctx, spec, sources.PreferredAuto)
	if err != nil {
		s.log.Warn("trip plan search failed",
			"trip_plan_id", plan.ID, "origin", origin,
			"destination", destination, "error", err)
		return nil
	}

	var found []candidate
	for _, p := range fr.Prices {
		priceNZD := s.toNZD(ctx, p.Amount, p.Currency)
		if s.isBogus(origin, destination, priceNZD, p) {
			continue
		}
		if plan.BudgetMax > 0 {
			inBudgetCCY := p.Amount
			if p.Currency != plan.BudgetCurrency {
				inBudgetCCY = s.convert(ctx, p.Amount, p.Currency, plan.BudgetCurrency)
			}
			if inBudgetCCY > plan.BudgetMax {
				continue
			}
		}
		found = append(found, candidate{
			origin:      origin,
			destination: destination,
			departure:   combo.departure,
			ret:         combo.ret,
			priceNZD:    priceNZD,
			original:    p,
		})
	}
	return found
}

// isBogus drops results that are plausibly scrape noise: an international
// fare under 200 NZD, or a row with no duration and no stops under 500.
func (s *Searcher) isBogus(origin, destination string, priceNZD float64, p sources.Price) bool {
	if priceNZD <= 0 {
		return true
	}
	if s.isInternational(origin, destination) && priceNZD < minInternationalPrice {
		return true
	}
	if p.DurationMinutes == 0 && p.Stops == 0 && priceNZD < minZeroInfoPrice {
		return true
	}
	return false
}

// isInternational assumes international when either airport is unknown.
func (s *Searcher) isInternational(origin, destination string) bool {
	if s.catalog == nil {
		return true
	}
	a, b := s.catalog.Lookup(origin), s.catalog.Lookup(destination)
	if a == nil || b == nil {
		return true
	}
	return a.Country != b.Country
}

func (s *Searcher) toNZD(ctx context.Context, amount float64, currency string) float64 {
	if currency == "" || currency == "NZD" {
		return amount
	}
	return s.convert(ctx, amount, currency, "NZD")
}

func (s *Searcher) convert(ctx context.Context, amount float64, from, to string) float64 {
	if s.conv == nil || from == to {
		return amount
	}
	converted, err := s.conv.Convert(ctx, amount, from, to)
	if err != nil {
		s.log.Warn("currency conversion failed", "from", from, "to", to, "error", err)
		return amount
	}
	return converted
}

// persistMatches keeps the cheapest options per destination and upserts
// them. The upsert keeps the lower price when the same route and dates are
// already stored.
func (s *Searcher) persistMatches(ctx context.Context, plan *db.TripPlan,
	byDestination map[string][]candidate) (int, error) {

	stored := 0
	for _, found := range byDestination {
		sort.Slice(found, func(i, j int) bool {
			return found[i].priceNZD < found[j].priceNZD
		})
		top := found
		if len(top) > s.cfg.TopPerDestination {
			top = top[:s.cfg.TopPerDestination]
		}
		for _, c := range top {
			m := &db.TripPlanMatch{
				TripPlanID:    plan.ID,
				Source:        db.MatchSourceGoogleFlights,
				Origin:        c.origin,
				Destination:   c.destination,
				DepartureDate: c.departure,
				ReturnDate:    sql.NullTime{Time: c.ret, Valid: true},
				PriceNZD:      c.priceNZD,
			}
			if c.original.Currency != "" && c.original.Currency != "NZD" {
				m.OriginalPrice = sql.NullFloat64{Float64: c.original.Amount, Valid: true}
				m.OriginalCurrency = sql.NullString{String: c.original.Currency, Valid: true}
			}
			if c.original.Airline != "" {
				m.Airline = sql.NullString{String: c.original.Airline, Valid: true}
			}
			m.Stops = sql.NullInt32{Int32: int32(c.original.Stops), Valid: true}
			if c.original.DurationMinutes > 0 {
				m.DurationMinutes = sql.NullInt32{Int32: int32(c.original.DurationMinutes), Valid: true}
			}
			if c.original.BookingURL != "" {
				m.BookingURL = sql.NullString{String: c.original.BookingURL, Valid: true}
			}
			if _, err := s.store.UpsertTripPlanMatch(ctx, m); err != nil {
				return stored, err
			}
			stored++
		}
	}
	return stored, nil
}

// rescore ranks the plan's stored matches by price, trims past the per-plan
// cap, and rewrites scores: base 90 minus 3 per rank, with budget bonuses.
func (s *Searcher) rescore(ctx context.Context, plan *db.TripPlan) (int, error) {
	matches, err := s.store.ListTripPlanMatches(ctx, plan.ID)
	if err != nil {
		return 0, err
	}

	budgetNZD := plan.BudgetMax
	if plan.BudgetCurrency != "" && plan.BudgetCurrency != "NZD" {
		budgetNZD = s.convert(ctx, plan.BudgetMax, plan.BudgetCurrency, "NZD")
	}

	deleted := 0
	for rank, m := range matches {
		if rank >= s.cfg.MaxMatchesPerPlan {
			if err := s.store.DeleteTripPlanMatch(ctx, m.ID); err != nil {
				return deleted, err
			}
			deleted++
			continue
		}

		score := 90 - 3*float64(rank)
		if budgetNZD > 0 {
			switch {
			case m.PriceNZD < budgetNZD*0.5:
				score += 10
			case m.PriceNZD < budgetNZD*0.75:
				score += 5
			}
		}
		if err := s.store.UpdateMatchScore(ctx, m.ID, score); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func firstCabin(plan *db.TripPlan) string {
	if len(plan.CabinClasses) > 0 {
		return plan.CabinClasses[0]
	}
	return "economy"
}
