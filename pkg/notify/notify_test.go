package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jesposito/walkabout/analyze"
	"github.com/jesposito/walkabout/db"
	"github.com/jesposito/walkabout/scrape"
)

type fakeSettings struct {
	s db.UserSettings
}

func (f *fakeSettings) GetUserSettings(context.Context) (*db.UserSettings, error) {
	s := f.s
	return &s, nil
}

func baseSettings() db.UserSettings {
	return db.UserSettings{
		NotifyProvider:  ProviderNtfySelfHosted,
		NtfyTopic:       "walkabout",
		Timezone:        "Pacific/Auckland",
		DealCooldownMin: 180,
		NotificationsOn: true,
		NotifyDeals:     true,
		NotifySystem:    true,
	}
}

type captured struct {
	title    string
	priority string
	tags     string
	actions  string
	body     string
}

func ntfyServer(t *testing.T) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			priority: r.Header.Get("Priority"),
			tags:     r.Header.Get("Tags"),
			actions:  r.Header.Get("Actions"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func dealEvent() scrape.DealEvent {
	return scrape.DealEvent{
		Definition: &db.SearchDefinition{
			ID: 1, Origin: "AKL", Destination: "NRT",
			Adults: 1, CabinClass: "economy", Currency: "NZD",
		},
		Price: db.FlightPrice{
			DepartureDate:     time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
			ReturnDate:        sql.NullTime{Time: time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC), Valid: true},
			PricePerPassenger: 489,
			TotalPrice:        489,
			PassengerCount:    1,
		},
		Analysis: analyze.Result{
			IsDeal:  true,
			RobustZ: -1.8,
			Median:  780,
			Reason:  "Well below typical: robust z -1.80 (median 780.00)",
		},
	}
}

// fixedClock pins the notifier at a given local hour for quiet-hours checks.
func fixedClock(hour int) func() time.Time {
	loc, _ := time.LoadLocation("Pacific/Auckland")
	at := time.Date(2026, 8, 24, hour, 30, 0, 0, loc)
	return func() time.Time { return at }
}

func TestDealAlertHeadersAndBody(t *testing.T) {
	srv, got := ntfyServer(t)
	settings := baseSettings()
	settings.NtfyServerURL = srv.URL
	n := New(&fakeSettings{s: settings}, nil)
	n.now = fixedClock(12)

	require.NoError(t, n.NotifyDeal(context.Background(), dealEvent()))
	require.Len(t, *got, 1)

	msg := (*got)[0]
	assert.Equal(t, "Deal: AKL to NRT 489 NZD", msg.title)
	assert.Equal(t, "high", msg.priority)
	assert.Equal(t, "airplane,moneybag", msg.tags)
	assert.Contains(t, msg.actions, "view, Open flight search, https://www.google.com/travel/flights")
	assert.Contains(t, msg.body, "37% below the median 780")
}

func TestDealPrioritySelection(t *testing.T) {
	ev := dealEvent()

	ev.Analysis.IsNewLow = true
	assert.Equal(t, PriorityUrgent, dealPriority(ev))

	ev.Analysis.IsNewLow = false
	ev.Analysis.RobustZ = -2.3
	assert.Equal(t, PriorityUrgent, dealPriority(ev))

	ev.Analysis.RobustZ = -1.7
	assert.Equal(t, PriorityHigh, dealPriority(ev))

	ev.Analysis.RobustZ = -1.2
	assert.Equal(t, PriorityDefault, dealPriority(ev))
}

func TestQuietHoursBlockAndRelease(t *testing.T) {
	srv, got := ntfyServer(t)
	settings := baseSettings()
	settings.NtfyServerURL = srv.URL
	settings.QuietHoursStart = 22
	settings.QuietHoursEnd = 7
	n := New(&fakeSettings{s: settings}, nil)

	// 23:30 local: inside the wrapped window, suppressed.
	n.now = fixedClock(23)
	require.NoError(t, n.NotifyDeal(context.Background(), dealEvent()))
	assert.Empty(t, *got)

	// 08:00 local: outside, delivered.
	n.now = fixedClock(8)
	require.NoError(t, n.NotifyDeal(context.Background(), dealEvent()))
	assert.Len(t, *got, 1)
}

func TestDealCooldownPerRoute(t *testing.T) {
	srv, got := ntfyServer(t)
	settings := baseSettings()
	settings.NtfyServerURL = srv.URL
	n := New(&fakeSettings{s: settings}, nil)
	n.now = fixedClock(12)

	require.NoError(t, n.NotifyDeal(context.Background(), dealEvent()))
	require.NoError(t, n.NotifyDeal(context.Background(), dealEvent()))
	assert.Len(t, *got, 1, "second alert for the same route inside cooldown")

	// A different route is not blocked.
	other := dealEvent()
	other.Definition.Destination = "HND"
	require.NoError(t, n.NotifyDeal(context.Background(), other))
	assert.Len(t, *got, 2)
}

func TestTogglesSuppress(t *testing.T) {
	srv, got := ntfyServer(t)

	for _, mutate := range []func(*db.UserSettings){
		func(s *db.UserSettings) { s.NotificationsOn = false },
		func(s *db.UserSettings) { s.NotifyDeals = false },
		func(s *db.UserSettings) { s.NotifyProvider = ProviderNone },
	} {
		settings := baseSettings()
		settings.NtfyServerURL = srv.URL
		mutate(&settings)
		n := New(&fakeSettings{s: settings}, nil)
		n.now = fixedClock(12)

		require.NoError(t, n.NotifyDeal(context.Background(), dealEvent()))
	}
	assert.Empty(t, *got)
}

func TestSystemUrgentBypassesQuietHours(t *testing.T) {
	srv, got := ntfyServer(t)
	settings := baseSettings()
	settings.NtfyServerURL = srv.URL
	settings.QuietHoursStart = 22
	settings.QuietHoursEnd = 7
	n := New(&fakeSettings{s: settings}, nil)
	n.now = fixedClock(23)

	require.NoError(t, n.NotifySystem(context.Background(), "stale:1", "Scrape stale", "no data in 25h", PriorityHigh))
	assert.Empty(t, *got, "high priority respects quiet hours")

	require.NoError(t, n.NotifySystem(context.Background(), "down:db", "Database down", "cannot connect", PriorityUrgent))
	assert.Len(t, *got, 1, "urgent bypasses quiet hours")
}

func TestSystemCooldownPerKey(t *testing.T) {
	srv, got := ntfyServer(t)
	settings := baseSettings()
	settings.NtfyServerURL = srv.URL
	settings.SystemCooldownMin = 60
	n := New(&fakeSettings{s: settings}, nil)
	n.now = fixedClock(12)

	require.NoError(t, n.NotifySystem(context.Background(), "stale:1", "Scrape stale", "x", PriorityDefault))
	require.NoError(t, n.NotifySystem(context.Background(), "stale:1", "Scrape stale", "x", PriorityDefault))
	require.NoError(t, n.NotifySystem(context.Background(), "stale:2", "Scrape stale", "x", PriorityDefault))
	assert.Len(t, *got, 2)
}

func TestDiscordPayload(t *testing.T) {
	var payload discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	settings := baseSettings()
	settings.NotifyProvider = ProviderDiscord
	settings.DiscordWebhookURL = srv.URL
	n := New(&fakeSettings{s: settings}, nil)
	n.now = fixedClock(12)

	require.NoError(t, n.NotifyDeal(context.Background(), dealEvent()))
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, "Deal: AKL to NRT 489 NZD", payload.Embeds[0].Title)
	assert.Equal(t, 0xE67E22, payload.Embeds[0].Color, "high priority color")
	assert.Contains(t, payload.Embeds[0].URL, "google.com/travel/flights")
}

func TestInQuietHoursWindowMath(t *testing.T) {
	n := New(&fakeSettings{}, nil)
	s := &db.UserSettings{Timezone: "UTC", QuietHoursStart: 22, QuietHoursEnd: 7}

	cases := []struct {
		hour int
		want bool
	}{
		{21, false}, {22, true}, {23, true}, {0, true}, {6, true}, {7, false}, {12, false},
	}
	for _, c := range cases {
		n.now = func() time.Time {
			return time.Date(2026, 8, 24, c.hour, 0, 0, 0, time.UTC)
		}
		assert.Equal(t, c.want, n.inQuietHours(s), "hour %d", c.hour)
	}

	// start == end means no quiet window.
	s.QuietHoursStart, s.QuietHoursEnd = 0, 0
	n.now = func() time.Time { return time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC) }
	assert.False(t, n.inQuietHours(s))
}
