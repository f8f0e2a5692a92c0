package api

import (
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jesposito/walkabout/airports"
	"github.com/jesposito/walkabout/db"
)

var iataRe = regexp.MustCompile(`^[A-Z]{3}$`)

const dateLayout = "2006-01-02"

// Health reports process health: DB reachability, queue backlog, and the
// per-search circuit summary.
func Health(store Store, q Queue, started time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		status := http.StatusOK
		body := gin.H{
			"status":    "ok",
			"uptime":    time.Since(started).Round(time.Second).String(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if err := store.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		} else {
			body["database"] = "ok"
		}

		if q != nil {
			if pending, err := q.Pending(ctx); err != nil {
				body["queue"] = "unreachable"
			} else {
				body["queue_pending"] = pending
			}
		}

		if healths, err := store.ListScrapeHealth(ctx); err == nil {
			var open int
			for _, h := range healths {
				if h.CircuitOpen {
					open++
				}
			}
			body["searches_tracked"] = len(healths)
			body["circuits_open"] = open
		}

		c.JSON(status, body)
	}
}

// SearchRequest is the create/revise payload for a search definition.
type SearchRequest struct {
	Origin            string   `json:"origin" binding:"required"`
	Destination       string   `json:"destination" binding:"required"`
	TripType          string   `json:"trip_type" binding:"required,oneof=one_way round_trip"`
	DepartureStart    string   `json:"departure_start,omitempty"`
	DepartureEnd      string   `json:"departure_end,omitempty"`
	DaysFromNowMin    int      `json:"days_from_now_min,omitempty" binding:"min=0"`
	DaysFromNowMax    int      `json:"days_from_now_max,omitempty" binding:"min=0"`
	TripDurationMin   int      `json:"trip_duration_min,omitempty" binding:"min=0"`
	TripDurationMax   int      `json:"trip_duration_max,omitempty" binding:"min=0"`
	Adults            int      `json:"adults" binding:"required,min=1"`
	Children          int      `json:"children" binding:"min=0"`
	InfantsInSeat     int      `json:"infants_in_seat" binding:"min=0"`
	InfantsOnLap      int      `json:"infants_on_lap" binding:"min=0"`
	CabinClass        string   `json:"cabin_class" binding:"required,oneof=economy premium_economy business first"`
	Stops             string   `json:"stops" binding:"required,oneof=any nonstop one_or_fewer two_or_fewer"`
	Currency          string   `json:"currency" binding:"required,len=3"`
	CarryOnBags       int      `json:"carry_on_bags" binding:"min=0"`
	CheckedBags       int      `json:"checked_bags" binding:"min=0"`
	AirlinesInclude   []string `json:"airlines_include,omitempty"`
	AirlinesExclude   []string `json:"airlines_exclude,omitempty"`
	ScrapeFrequencyHr int      `json:"scrape_frequency_hr" binding:"min=0"`
	PreferredSource   string   `json:"preferred_source,omitempty"`
}

func (r *SearchRequest) toDefinition() (*db.SearchDefinition, error) {
	if !iataRe.MatchString(r.Origin) || !iataRe.MatchString(r.Destination) {
		return nil, errors.New("origin and destination must be 3-letter IATA codes")
	}

	d := &db.SearchDefinition{
		Origin:            r.Origin,
		Destination:       r.Destination,
		TripType:          r.TripType,
		Adults:            r.Adults,
		Children:          r.Children,
		InfantsInSeat:     r.InfantsInSeat,
		InfantsOnLap:      r.InfantsOnLap,
		CabinClass:        r.CabinClass,
		Stops:             r.Stops,
		Currency:          r.Currency,
		CarryOnBags:       r.CarryOnBags,
		CheckedBags:       r.CheckedBags,
		AirlinesInclude:   r.AirlinesInclude,
		AirlinesExclude:   r.AirlinesExclude,
		Active:            true,
		ScrapeFrequencyHr: r.ScrapeFrequencyHr,
		PreferredSource:   r.PreferredSource,
	}

	// Either a fixed departure window or a rolling horizon, never both.
	if r.DepartureStart != "" {
		start, err := time.Parse(dateLayout, r.DepartureStart)
		if err != nil {
			return nil, errors.New("departure_start must be YYYY-MM-DD")
		}
		end, err := time.Parse(dateLayout, r.DepartureEnd)
		if err != nil {
			return nil, errors.New("departure_end must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return nil, errors.New("departure_end is before departure_start")
		}
		d.DepartureStart = sql.NullTime{Time: start, Valid: true}
		d.DepartureEnd = sql.NullTime{Time: end, Valid: true}
	} else {
		if r.DaysFromNowMax > 0 && r.DaysFromNowMax < r.DaysFromNowMin {
			return nil, errors.New("days_from_now_max is below days_from_now_min")
		}
		if r.DaysFromNowMin > 0 {
			d.DaysFromNowMin = sql.NullInt32{Int32: int32(r.DaysFromNowMin), Valid: true}
		}
		if r.DaysFromNowMax > 0 {
			d.DaysFromNowMax = sql.NullInt32{Int32: int32(r.DaysFromNowMax), Valid: true}
		}
	}
	if r.TripDurationMin > 0 {
		d.TripDurationMin = sql.NullInt32{Int32: int32(r.TripDurationMin), Valid: true}
	}
	if r.TripDurationMax > 0 {
		d.TripDurationMax = sql.NullInt32{Int32: int32(r.TripDurationMax), Valid: true}
	}
	return d, nil
}

func ListSearches(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		defs, err := store.ListActiveSearchDefinitions(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list searches: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, defs)
	}
}

func CreateSearch(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		def, err := req.toDefinition()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := store.CreateSearchDefinition(c.Request.Context(), def)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create search: " + err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func GetSearch(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		def, err := store.GetSearchDefinition(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Search not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get search: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, def)
	}
}

// ReviseSearch creates a new definition version; prices stay attached to the
// old version so histories never mix.
func ReviseSearch(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		def, err := req.toDefinition()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		newID, err := store.ReviseSearchDefinition(c.Request.Context(), id, def)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revise search: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": newID, "previous_version_id": id})
	}
}

func DeactivateSearch(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := store.DeactivateSearchDefinition(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate search: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "active": false})
	}
}

func GetSearchPrices(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 500 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-500"})
				return
			}
			limit = n
		}
		prices, err := store.LatestPrices(c.Request.Context(), id, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get prices: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, prices)
	}
}

// TripPlanRequest is the create payload for a trip plan.
type TripPlanRequest struct {
	Name             string   `json:"name" binding:"required"`
	Origins          []string `json:"origins,omitempty"`
	Destinations     []string `json:"destinations,omitempty"`
	DestinationTypes []string `json:"destination_types,omitempty"`
	AvailableFrom    string   `json:"available_from,omitempty"`
	AvailableTo      string   `json:"available_to,omitempty"`
	DurationMinDays  int      `json:"duration_min_days" binding:"required,min=1"`
	DurationMaxDays  int      `json:"duration_max_days" binding:"required,min=1"`
	BudgetMax        float64  `json:"budget_max" binding:"required,gt=0"`
	BudgetCurrency   string   `json:"budget_currency" binding:"required,len=3"`
	CabinClasses     []string `json:"cabin_classes,omitempty"`
	Adults           int      `json:"adults" binding:"min=0"`
	Children         int      `json:"children" binding:"min=0"`
	CheckFrequencyHr int      `json:"check_frequency_hr" binding:"min=0"`
}

func (r *TripPlanRequest) toPlan() (*db.TripPlan, error) {
	if r.DurationMaxDays < r.DurationMinDays {
		return nil, errors.New("duration_max_days is below duration_min_days")
	}
	for _, code := range append(append([]string{}, r.Origins...), r.Destinations...) {
		if !iataRe.MatchString(code) {
			return nil, errors.New("airport codes must be 3-letter IATA codes")
		}
	}

	p := &db.TripPlan{
		Name:             r.Name,
		Origins:          r.Origins,
		Destinations:     r.Destinations,
		DestinationTypes: r.DestinationTypes,
		DurationMinDays:  r.DurationMinDays,
		DurationMaxDays:  r.DurationMaxDays,
		BudgetMax:        r.BudgetMax,
		BudgetCurrency:   r.BudgetCurrency,
		CabinClasses:     r.CabinClasses,
		Adults:           r.Adults,
		Children:         r.Children,
		CheckFrequencyHr: r.CheckFrequencyHr,
		Active:           true,
	}
	if p.Adults == 0 {
		p.Adults = 1
	}
	if r.AvailableFrom != "" {
		from, err := time.Parse(dateLayout, r.AvailableFrom)
		if err != nil {
			return nil, errors.New("available_from must be YYYY-MM-DD")
		}
		p.AvailableFrom = sql.NullTime{Time: from, Valid: true}
	}
	if r.AvailableTo != "" {
		to, err := time.Parse(dateLayout, r.AvailableTo)
		if err != nil {
			return nil, errors.New("available_to must be YYYY-MM-DD")
		}
		if p.AvailableFrom.Valid && to.Before(p.AvailableFrom.Time) {
			return nil, errors.New("available_to is before available_from")
		}
		p.AvailableTo = sql.NullTime{Time: to, Valid: true}
	}
	return p, nil
}

func ListTripPlans(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		plans, err := store.ListActiveTripPlans(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list trip plans: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, plans)
	}
}

func CreateTripPlan(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TripPlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		plan, err := req.toPlan()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := store.CreateTripPlan(c.Request.Context(), plan)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create trip plan: " + err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func GetTripPlan(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		plan, err := store.GetTripPlan(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Trip plan not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get trip plan: " + err.Error()})
			return
		}
		matches, err := store.ListTripPlanMatches(ctx, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list matches: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"plan": plan, "matches": matches})
	}
}

// TriggerTripSearch queues a background search for the plan.
func TriggerTripSearch(store Store, q Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if q == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue is not configured"})
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}
		if _, err := store.GetTripPlan(c.Request.Context(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Trip plan not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get trip plan: " + err.Error()})
			return
		}
		jobID, err := q.EnqueueTripSearch(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue search: " + err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
	}
}

func GetSettings(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := store.GetUserSettings(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get settings: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// SettingsRequest carries the updatable user settings.
type SettingsRequest struct {
	HomeAirports        []string `json:"home_airports,omitempty"`
	WatchedDestinations []string `json:"watched_destinations,omitempty"`
	PreferredCurrency   string   `json:"preferred_currency" binding:"required,len=3"`
	NotifyProvider      string   `json:"notify_provider" binding:"required,oneof=ntfy_self_hosted ntfy_sh discord none"`
	NtfyServerURL       string   `json:"ntfy_server_url,omitempty"`
	NtfyTopic           string   `json:"ntfy_topic,omitempty"`
	DiscordWebhookURL   string   `json:"discord_webhook_url,omitempty"`
	QuietHoursStart     int      `json:"quiet_hours_start" binding:"min=0,max=23"`
	QuietHoursEnd       int      `json:"quiet_hours_end" binding:"min=0,max=23"`
	Timezone            string   `json:"timezone" binding:"required"`
	DealCooldownMin     int      `json:"deal_cooldown_min" binding:"min=0"`
	SystemCooldownMin   int      `json:"system_cooldown_min" binding:"min=0"`
	NotificationsOn     bool     `json:"notifications_on"`
	NotifyDeals         bool     `json:"notify_deals"`
	NotifySystem        bool     `json:"notify_system"`
	NotifyTripMatches   bool     `json:"notify_trip_matches"`
}

func UpdateSettings(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown timezone: " + req.Timezone})
			return
		}
		for _, code := range req.HomeAirports {
			if !iataRe.MatchString(code) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "home_airports must be 3-letter IATA codes"})
				return
			}
		}

		s := &db.UserSettings{
			ID:                  1,
			HomeAirports:        req.HomeAirports,
			WatchedDestinations: req.WatchedDestinations,
			PreferredCurrency:   req.PreferredCurrency,
			NotifyProvider:      req.NotifyProvider,
			NtfyServerURL:       req.NtfyServerURL,
			NtfyTopic:           req.NtfyTopic,
			DiscordWebhookURL:   req.DiscordWebhookURL,
			QuietHoursStart:     req.QuietHoursStart,
			QuietHoursEnd:       req.QuietHoursEnd,
			Timezone:            req.Timezone,
			DealCooldownMin:     req.DealCooldownMin,
			SystemCooldownMin:   req.SystemCooldownMin,
			NotificationsOn:     req.NotificationsOn,
			NotifyDeals:         req.NotifyDeals,
			NotifySystem:        req.NotifySystem,
			NotifyTripMatches:   req.NotifyTripMatches,
		}
		if err := store.UpdateUserSettings(c.Request.Context(), s); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update settings: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func SearchAirports(catalog *airports.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
			return
		}
		limit := 10
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 50 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-50"})
				return
			}
			limit = n
		}
		c.JSON(http.StatusOK, catalog.Search(query, limit))
	}
}

// pathID parses the :id path parameter, replying 400 itself on garbage.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}
