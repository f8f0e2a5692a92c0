package db

import (
	"database/sql"
	"time"
)

// Trip types stored on search definitions and price rows.
const (
	TripTypeRoundTrip = "round_trip"
	TripTypeOneWay    = "one_way"
)

// Failure reasons recorded on scrape health.
const (
	FailureCaptcha      = "captcha"
	FailureTimeout      = "timeout"
	FailureLayoutChange = "layout_change"
	FailureNoResults    = "no_results"
	FailureBlocked      = "blocked"
	FailureNetworkError = "network_error"
	FailureUnknown      = "unknown"
)

// Match sources for trip plan matches.
const (
	MatchSourceGoogleFlights = "google_flights"
	MatchSourceRSSDeal       = "rss_deal"
	MatchSourceSeatsAero     = "seats_aero"
	MatchSourceAmadeus       = "amadeus"
)

// SearchDefinition is the versioned bundle of parameters that makes two
// prices comparable. Any change that can affect price semantics creates a
// new row with an incremented version pointing back at the old one.
type SearchDefinition struct {
	ID                int64
	Origin            string
	Destination       string
	TripType          string
	DepartureStart    sql.NullTime // fixed window; null for rolling searches
	DepartureEnd      sql.NullTime
	DaysFromNowMin    sql.NullInt32 // rolling window
	DaysFromNowMax    sql.NullInt32
	TripDurationMin   sql.NullInt32
	TripDurationMax   sql.NullInt32
	Adults            int
	Children          int
	InfantsInSeat     int
	InfantsOnLap      int
	CabinClass        string
	Stops             string
	Currency          string
	Locale            string
	CarryOnBags       int
	CheckedBags       int
	AirlinesInclude   []string
	AirlinesExclude   []string
	Active            bool
	ScrapeFrequencyHr int
	PreferredSource   string
	Version           int
	PreviousVersionID sql.NullInt64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PassengerCount returns the total seated passenger count used to derive the
// total price from a per-passenger price.
func (d *SearchDefinition) PassengerCount() int {
	n := d.Adults + d.Children + d.InfantsInSeat
	if n < 1 {
		n = 1
	}
	return n
}

// IsRolling reports whether the definition samples dates from a rolling
// horizon rather than a fixed departure window.
func (d *SearchDefinition) IsRolling() bool {
	return !d.DepartureStart.Valid
}

// FlightPrice is a single observed price tied to a search definition.
type FlightPrice struct {
	ID                 int64
	SearchDefinitionID int64
	ScrapedAt          time.Time
	DepartureDate      time.Time
	ReturnDate         sql.NullTime
	PricePerPassenger  float64
	TotalPrice         float64
	PassengerCount     int
	TripType           string
	Airline            sql.NullString
	Stops              sql.NullInt32
	DurationMinutes    sql.NullInt32
	LayoverAirports    sql.NullString // comma-joined IATA codes
	Source             string
	RawPayload         sql.NullString
	Confidence         float64
	IsSuspicious       bool
}

// ScrapeHealth tracks per-definition scraping outcomes, 1:1 with
// SearchDefinition.
type ScrapeHealth struct {
	SearchDefinitionID  int64
	TotalAttempts       int
	TotalSuccesses      int
	TotalFailures       int
	ConsecutiveFailures int
	LastAttemptAt       sql.NullTime
	LastSuccessAt       sql.NullTime
	LastFailureAt       sql.NullTime
	LastFailureReason   sql.NullString
	LastFailureMessage  sql.NullString
	LastScreenshotPath  sql.NullString
	LastHTMLPath        sql.NullString
	CircuitOpen         bool
	CircuitOpenedAt     sql.NullTime
	StaleAlertSentAt    sql.NullTime
}

// SuccessRate returns successes/attempts, or 1.0 before any attempt.
func (h *ScrapeHealth) SuccessRate() float64 {
	if h.TotalAttempts == 0 {
		return 1.0
	}
	return float64(h.TotalSuccesses) / float64(h.TotalAttempts)
}

// IsHealthy applies the health rule: circuit closed, fewer than 3
// consecutive failures, and at least a 50% success rate once there is a
// meaningful sample.
func (h *ScrapeHealth) IsHealthy() bool {
	if h.CircuitOpen {
		return false
	}
	if h.ConsecutiveFailures >= 3 {
		return false
	}
	if h.TotalAttempts >= 10 && h.SuccessRate() < 0.5 {
		return false
	}
	return true
}

// TripPlan is a flexible search spec expanded into concrete searches.
type TripPlan struct {
	ID               int64
	Name             string
	Origins          []string
	Destinations     []string
	DestinationTypes []string
	AvailableFrom    sql.NullTime
	AvailableTo      sql.NullTime
	DurationMinDays  int
	DurationMaxDays  int
	BudgetMax        float64
	BudgetCurrency   string
	CabinClasses     []string
	Adults           int
	Children         int
	CheckFrequencyHr int
	Active           bool
	SearchInProgress bool
	SearchStartedAt  sql.NullTime
	LastSearchAt     sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TripPlanMatch is a concrete flight result attached to a plan.
type TripPlanMatch struct {
	ID               int64
	TripPlanID       int64
	Source           string
	DealID           sql.NullInt64
	Origin           string
	Destination      string
	DepartureDate    time.Time
	ReturnDate       sql.NullTime
	PriceNZD         float64
	OriginalPrice    sql.NullFloat64
	OriginalCurrency sql.NullString
	Airline          sql.NullString
	Stops            sql.NullInt32
	DurationMinutes  sql.NullInt32
	BookingURL       sql.NullString
	MatchScore       float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TrackedAwardSearch is a saved award-availability search.
type TrackedAwardSearch struct {
	ID           int64
	Origin       string
	Destination  string
	Programs     []string
	DateFrom     time.Time
	DateTo       time.Time
	CabinClass   string
	MinSeats     int
	DirectOnly   bool
	Active       bool
	LastCheckAt  sql.NullTime
	CreatedAt    time.Time
}

// AwardObservation is one snapshot of award availability for a tracked
// search. ResultHash covers the normalized result set for change detection.
type AwardObservation struct {
	ID                 int64
	TrackedSearchID    int64
	ObservedAt         time.Time
	ResultHash         string
	EconomyBestMiles   sql.NullInt64
	EconomyMaxSeats    sql.NullInt32
	BusinessBestMiles  sql.NullInt64
	BusinessMaxSeats   sql.NullInt32
	FirstBestMiles     sql.NullInt64
	FirstMaxSeats      sql.NullInt32
	Programs           []string
	RawPayload         sql.NullString
}

// Deal is a parsed deal from the RSS ingestion collaborator, consumed by the
// trip-plan matcher.
type Deal struct {
	ID          int64
	RawTitle    string
	Origin      sql.NullString
	Destination sql.NullString
	Price       sql.NullFloat64
	Currency    sql.NullString
	CabinClass  sql.NullString
	Airline     sql.NullString
	TravelFrom  sql.NullTime
	TravelTo    sql.NullTime
	ParseStatus string
	Confidence  float64
	Relevant    bool
	URL         sql.NullString
	CreatedAt   time.Time
}

// UserSettings is the singleton (id=1) user configuration row.
type UserSettings struct {
	ID                  int64
	HomeAirports        []string
	WatchedDestinations []string
	PreferredCurrency   string
	NotifyProvider      string // ntfy_self_hosted, ntfy_sh, discord, none
	NtfyServerURL       string
	NtfyTopic           string
	DiscordWebhookURL   string
	QuietHoursStart     int
	QuietHoursEnd       int
	Timezone            string
	DealCooldownMin     int
	SystemCooldownMin   int
	NotificationsOn     bool
	NotifyDeals         bool
	NotifySystem        bool
	NotifyTripMatches   bool
	UpdatedAt           time.Time
}
