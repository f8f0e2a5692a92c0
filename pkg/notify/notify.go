// Package notify delivers deal, trip-match, and system alerts through the
// provider configured in user settings.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/jesposito/walkabout/db"
	"github.com/jesposito/walkabout/pkg/flighturl"
	"github.com/jesposito/walkabout/pkg/logger"
	"github.com/jesposito/walkabout/scrape"
)

// Priority levels as ntfy spells them.
type Priority string

const (
	PriorityMin     Priority = "min"
	PriorityLow     Priority = "low"
	PriorityDefault Priority = "default"
	PriorityHigh    Priority = "high"
	PriorityUrgent  Priority = "urgent"
)

// Providers.
const (
	ProviderNtfySelfHosted = "ntfy_self_hosted"
	ProviderNtfySh         = "ntfy_sh"
	ProviderDiscord        = "discord"
	ProviderNone           = "none"
)

const (
	defaultDealCooldown   = 180 * time.Minute
	defaultSystemCooldown = 60 * time.Minute
)

// Settings supplies the current user settings row.
type Settings interface {
	GetUserSettings(ctx context.Context) (*db.UserSettings, error)
}

// Notifier dispatches alerts. Cooldown state is in-memory; a restart resets
// it, which at worst repeats one alert per route.
type Notifier struct {
	store Settings
	http  *retryablehttp.Client
	log   *logger.Logger

	mu         sync.Mutex
	lastDeal   map[string]time.Time
	lastSystem map[string]time.Time

	now func() time.Time
}

func New(store Settings, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Default()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil
	return &Notifier{
		store:      store,
		http:       client,
		log:        log,
		lastDeal:   make(map[string]time.Time),
		lastSystem: make(map[string]time.Time),
		now:        time.Now,
	}
}

// NotifyDeal sends a deal alert unless toggles, quiet hours, or the per-route
// cooldown suppress it. Suppression is not an error.
func (n *Notifier) NotifyDeal(ctx context.Context, event scrape.DealEvent) error {
	s, err := n.store.GetUserSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if !s.NotificationsOn || !s.NotifyDeals || s.NotifyProvider == ProviderNone {
		return nil
	}
	if n.inQuietHours(s) {
		n.log.Debug("deal alert suppressed by quiet hours",
			"origin", event.Definition.Origin, "destination", event.Definition.Destination)
		return nil
	}

	route := event.Definition.Origin + "-" + event.Definition.Destination
	cooldown := defaultDealCooldown
	if s.DealCooldownMin > 0 {
		cooldown = time.Duration(s.DealCooldownMin) * time.Minute
	}
	n.mu.Lock()
	if last, ok := n.lastDeal[route]; ok && n.now().Sub(last) < cooldown {
		n.mu.Unlock()
		n.log.Debug("deal alert suppressed by cooldown", "route", route)
		return nil
	}
	n.lastDeal[route] = n.now()
	n.mu.Unlock()

	title, body := composeDeal(event)
	msg := message{
		Title:    title,
		Body:     body,
		Priority: dealPriority(event),
		Tags:     []string{"airplane", "moneybag"},
		URL:      dealURL(event),
		Label:    "Open flight search",
	}
	return n.send(ctx, s, msg)
}

// NotifyTripMatch announces a newly stored trip-plan match.
func (n *Notifier) NotifyTripMatch(ctx context.Context, plan *db.TripPlan, match *db.TripPlanMatch) error {
	s, err := n.store.GetUserSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if !s.NotificationsOn || !s.NotifyTripMatches || s.NotifyProvider == ProviderNone {
		return nil
	}
	if n.inQuietHours(s) {
		return nil
	}
	dates := match.DepartureDate.Format("Jan 2")
	if match.ReturnDate.Valid {
		dates += " to " + match.ReturnDate.Time.Format("Jan 2")
	}
	msg := message{
		Title: fmt.Sprintf("Trip match: %s", plan.Name),
		Body: fmt.Sprintf("%s to %s, %s: %.0f NZD",
			match.Origin, match.Destination, dates, match.PriceNZD),
		Priority: PriorityDefault,
		Tags:     []string{"airplane", "calendar"},
		URL:      match.BookingURL.String,
		Label:    "Open flight search",
	}
	return n.send(ctx, s, msg)
}

// NotifySystem sends an operational alert. Urgent alerts bypass quiet hours;
// everything else respects them. Alerts are deduplicated per key by the
// system cooldown.
func (n *Notifier) NotifySystem(ctx context.Context, key, title, body string, priority Priority) error {
	s, err := n.store.GetUserSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if !s.NotificationsOn || !s.NotifySystem || s.NotifyProvider == ProviderNone {
		return nil
	}
	if priority != PriorityUrgent && n.inQuietHours(s) {
		return nil
	}

	cooldown := defaultSystemCooldown
	if s.SystemCooldownMin > 0 {
		cooldown = time.Duration(s.SystemCooldownMin) * time.Minute
	}
	n.mu.Lock()
	if last, ok := n.lastSystem[key]; ok && n.now().Sub(last) < cooldown {
		n.mu.Unlock()
		return nil
	}
	n.lastSystem[key] = n.now()
	n.mu.Unlock()

	return n.send(ctx, s, message{
		Title:    title,
		Body:     body,
		Priority: priority,
		Tags:     []string{"warning"},
	})
}

// inQuietHours reports whether the current local hour falls in
// [quiet_hours_start, quiet_hours_end), wrapping across midnight.
func (n *Notifier) inQuietHours(s *db.UserSettings) bool {
	start, end := s.QuietHoursStart, s.QuietHoursEnd
	if start == end {
		return false
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}
	hour := n.now().In(loc).Hour()
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func dealPriority(event scrape.DealEvent) Priority {
	switch {
	case event.Analysis.IsNewLow, event.Analysis.RobustZ < -2.0:
		return PriorityUrgent
	case event.Analysis.RobustZ < -1.5:
		return PriorityHigh
	default:
		return PriorityDefault
	}
}

func composeDeal(event scrape.DealEvent) (title, body string) {
	def := event.Definition
	price := event.Price
	title = fmt.Sprintf("Deal: %s to %s %.0f %s",
		def.Origin, def.Destination, price.TotalPrice, def.Currency)

	var b strings.Builder
	fmt.Fprintf(&b, "%.0f %s total for %d pax, departing %s",
		price.TotalPrice, def.Currency, price.PassengerCount,
		price.DepartureDate.Format("Mon Jan 2"))
	if event.Analysis.Median > 0 {
		savings := (event.Analysis.Median - price.PricePerPassenger) / event.Analysis.Median * 100
		fmt.Fprintf(&b, ". %.0f%% below the median %.0f, %.0f percentile",
			savings, event.Analysis.Median, event.Analysis.Percentile)
	}
	b.WriteString(". ")
	b.WriteString(event.Analysis.Reason)
	if event.Recommendation != "" {
		b.WriteString(" ")
		b.WriteString(event.Recommendation)
	}
	return title, b.String()
}

func dealURL(event scrape.DealEvent) string {
	def := event.Definition
	p := flighturl.Params{
		Origin:        def.Origin,
		Destination:   def.Destination,
		DepartureDate: event.Price.DepartureDate,
		Adults:        def.Adults,
		Children:      def.Children,
		InfantsInSeat: def.InfantsInSeat,
		InfantsOnLap:  def.InfantsOnLap,
		CabinClass:    def.CabinClass,
		Stops:         def.Stops,
		Currency:      def.Currency,
	}
	if event.Price.ReturnDate.Valid {
		p.ReturnDate = event.Price.ReturnDate.Time
	}
	return flighturl.Build(p)
}
