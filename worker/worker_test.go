package worker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jesposito/walkabout/config"
	"github.com/jesposito/walkabout/db"
	"github.com/jesposito/walkabout/pkg/notify"
	"github.com/jesposito/walkabout/queue"
	"github.com/jesposito/walkabout/scrape"
	"github.com/jesposito/walkabout/tripplan"
)

type fakeWorkerStore struct {
	defs    []*db.SearchDefinition
	healths []db.ScrapeHealth
	plans   []*db.TripPlan
	deals   []db.Deal
	tracked []db.TrackedAwardSearch
	hashes  map[int64]string

	staleMarked []int64
	upserted    []db.TripPlanMatch
	matches     []db.TripPlanMatch
}

func (f *fakeWorkerStore) ListActiveSearchDefinitions(context.Context) ([]*db.SearchDefinition, error) {
	return f.defs, nil
}

func (f *fakeWorkerStore) ListScrapeHealth(context.Context) ([]db.ScrapeHealth, error) {
	return f.healths, nil
}

func (f *fakeWorkerStore) MarkStaleAlertSent(_ context.Context, id int64, _ time.Time) error {
	f.staleMarked = append(f.staleMarked, id)
	return nil
}

func (f *fakeWorkerStore) ListActiveTripPlans(context.Context) ([]*db.TripPlan, error) {
	return f.plans, nil
}

func (f *fakeWorkerStore) GetTripPlan(_ context.Context, id int64) (*db.TripPlan, error) {
	for _, p := range f.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeWorkerStore) ListTripPlanMatches(context.Context, int64) ([]db.TripPlanMatch, error) {
	return f.matches, nil
}

func (f *fakeWorkerStore) UpsertTripPlanMatch(_ context.Context, m *db.TripPlanMatch) (int64, error) {
	f.upserted = append(f.upserted, *m)
	return int64(len(f.upserted)), nil
}

func (f *fakeWorkerStore) ListRecentRelevantDeals(context.Context, time.Time) ([]db.Deal, error) {
	return f.deals, nil
}

func (f *fakeWorkerStore) PurgeExpiredMatches(context.Context) (int64, error) { return 0, nil }

func (f *fakeWorkerStore) TrimPriceHistory(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeWorkerStore) ListActiveTrackedAwardSearches(context.Context) ([]db.TrackedAwardSearch, error) {
	return f.tracked, nil
}

func (f *fakeWorkerStore) LatestAwardHash(_ context.Context, id int64) (string, error) {
	return f.hashes[id], nil
}

type sentAlert struct {
	key      string
	priority notify.Priority
}

type fakeWorkerNotifier struct {
	system  []sentAlert
	matches []int64
}

func (f *fakeWorkerNotifier) NotifySystem(_ context.Context, key, _, _ string, p notify.Priority) error {
	f.system = append(f.system, sentAlert{key: key, priority: p})
	return nil
}

func (f *fakeWorkerNotifier) NotifyTripMatch(_ context.Context, plan *db.TripPlan, _ *db.TripPlanMatch) error {
	f.matches = append(f.matches, plan.ID)
	return nil
}

type fakeTripQueue struct {
	enqueued []int64
	acked    []string
	nacked   []string
}

func (f *fakeTripQueue) EnqueueTripSearch(_ context.Context, planID int64) (string, error) {
	f.enqueued = append(f.enqueued, planID)
	return "job-1", nil
}

func (f *fakeTripQueue) Dequeue(context.Context, time.Duration) (*queue.Job, error) {
	return nil, queue.ErrEmpty
}

func (f *fakeTripQueue) Ack(_ context.Context, job *queue.Job) error {
	f.acked = append(f.acked, job.ID)
	return nil
}

func (f *fakeTripQueue) Nack(_ context.Context, job *queue.Job) (bool, error) {
	f.nacked = append(f.nacked, job.ID)
	return true, nil
}

type fakeScraper struct{ outcomes map[int64]*scrape.Outcome }

func (f *fakeScraper) ScrapeSearch(_ context.Context, id int64) (*scrape.Outcome, error) {
	return f.outcomes[id], nil
}

type fakeSearcher struct {
	summary *tripplan.Summary
	err     error
	ran     []int64
}

func (f *fakeSearcher) Run(_ context.Context, plan *db.TripPlan) (*tripplan.Summary, error) {
	f.ran = append(f.ran, plan.ID)
	return f.summary, f.err
}

func newTestWorker(t *testing.T, store *fakeWorkerStore, notifier *fakeWorkerNotifier,
	q TripQueue, searcher PlanSearcher) *Worker {
	t.Helper()
	cfg := &config.Config{
		Scrape: config.ScrapeConfig{
			StaleAfter:       25 * time.Hour,
			StaleResendAfter: 24 * time.Hour,
		},
	}
	w, err := New(store, &fakeScraper{}, searcher, q, notifier, nil, cfg, nil)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	return w
}

func nullTime(t time.Time) sql.NullTime { return sql.NullTime{Time: t, Valid: true} }

func TestShouldAlertStale(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	staleAfter := 25 * time.Hour
	resendAfter := 24 * time.Hour

	cases := []struct {
		name string
		h    db.ScrapeHealth
		want bool
	}{
		{"fresh", db.ScrapeHealth{LastSuccessAt: nullTime(now.Add(-2 * time.Hour))}, false},
		{"stale", db.ScrapeHealth{LastSuccessAt: nullTime(now.Add(-26 * time.Hour))}, true},
		{"never succeeded", db.ScrapeHealth{}, false},
		{"stale but recently alerted", db.ScrapeHealth{
			LastSuccessAt:    nullTime(now.Add(-30 * time.Hour)),
			StaleAlertSentAt: nullTime(now.Add(-2 * time.Hour)),
		}, false},
		{"stale and alert expired", db.ScrapeHealth{
			LastSuccessAt:    nullTime(now.Add(-50 * time.Hour)),
			StaleAlertSentAt: nullTime(now.Add(-25 * time.Hour)),
		}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, shouldAlertStale(&c.h, now, staleAfter, resendAfter))
		})
	}
}

func TestHealthCheckAlertsAndMarks(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	store := &fakeWorkerStore{
		defs: []*db.SearchDefinition{
			{ID: 1, Origin: "AKL", Destination: "NRT"},
			{ID: 2, Origin: "AKL", Destination: "SYD"},
		},
		healths: []db.ScrapeHealth{
			{SearchDefinitionID: 1, LastSuccessAt: nullTime(now.Add(-26 * time.Hour))},
			{SearchDefinitionID: 2, CircuitOpen: true, ConsecutiveFailures: 5,
				LastSuccessAt: nullTime(now.Add(-time.Hour))},
			// Health row for a definition no longer active: ignored.
			{SearchDefinitionID: 9, LastSuccessAt: nullTime(now.Add(-90 * time.Hour))},
		},
	}
	notifier := &fakeWorkerNotifier{}
	w := newTestWorker(t, store, notifier, &fakeTripQueue{}, &fakeSearcher{})

	w.runHealthCheck(context.Background())

	require.Len(t, notifier.system, 2)
	assert.Equal(t, "stale:1", notifier.system[0].key)
	assert.Equal(t, notify.PriorityHigh, notifier.system[0].priority)
	assert.Equal(t, "circuit:2", notifier.system[1].key)
	assert.Equal(t, []int64{1}, store.staleMarked)
}

func TestPlanDue(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	assert.True(t, planDue(&db.TripPlan{CheckFrequencyHr: 24}, now), "never searched")
	assert.True(t, planDue(&db.TripPlan{
		CheckFrequencyHr: 24, LastSearchAt: nullTime(now.Add(-25 * time.Hour)),
	}, now))
	assert.False(t, planDue(&db.TripPlan{
		CheckFrequencyHr: 24, LastSearchAt: nullTime(now.Add(-3 * time.Hour)),
	}, now))
	assert.False(t, planDue(&db.TripPlan{CheckFrequencyHr: 0}, now), "zero frequency never due")
}

func TestEnqueueTripSearchesOnlyDuePlans(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	store := &fakeWorkerStore{
		plans: []*db.TripPlan{
			{ID: 1, Active: true, CheckFrequencyHr: 24},
			{ID: 2, Active: true, CheckFrequencyHr: 24, LastSearchAt: nullTime(now.Add(-time.Hour))},
		},
	}
	q := &fakeTripQueue{}
	w := newTestWorker(t, store, &fakeWorkerNotifier{}, q, &fakeSearcher{})

	w.enqueueTripSearches(context.Background())
	assert.Equal(t, []int64{1}, q.enqueued)
}

func tripSearchJob(t *testing.T, planID int64) *queue.Job {
	t.Helper()
	return &queue.Job{
		ID:          "j1",
		Type:        "trip_search",
		Payload:     []byte(fmt.Sprintf(`{"trip_plan_id":%d}`, planID)),
		Attempts:    1,
		MaxAttempts: 3,
	}
}

func TestHandleTripSearchAcksOnSuccess(t *testing.T) {
	store := &fakeWorkerStore{
		plans:   []*db.TripPlan{{ID: 7, Active: true}},
		matches: []db.TripPlanMatch{{ID: 1, TripPlanID: 7, PriceNZD: 900}},
	}
	q := &fakeTripQueue{}
	searcher := &fakeSearcher{summary: &tripplan.Summary{Searches: 4, Stored: 2}}
	notifier := &fakeWorkerNotifier{}
	w := newTestWorker(t, store, notifier, q, searcher)

	w.handleTripSearch(context.Background(), tripSearchJob(t, 7))

	assert.Equal(t, []int64{7}, searcher.ran)
	assert.Equal(t, []string{"j1"}, q.acked)
	assert.Empty(t, q.nacked)
	assert.Equal(t, []int64{7}, notifier.matches, "best match announced")
}

func TestHandleTripSearchNacksOnFailure(t *testing.T) {
	store := &fakeWorkerStore{plans: []*db.TripPlan{{ID: 7, Active: true}}}
	q := &fakeTripQueue{}
	searcher := &fakeSearcher{err: assert.AnError}
	w := newTestWorker(t, store, &fakeWorkerNotifier{}, q, searcher)

	w.handleTripSearch(context.Background(), tripSearchJob(t, 7))

	assert.Equal(t, []string{"j1"}, q.nacked)
	assert.Empty(t, q.acked)
}

func TestHandleTripSearchAcksInactivePlan(t *testing.T) {
	store := &fakeWorkerStore{plans: []*db.TripPlan{{ID: 7, Active: false}}}
	q := &fakeTripQueue{}
	searcher := &fakeSearcher{}
	w := newTestWorker(t, store, &fakeWorkerNotifier{}, q, searcher)

	w.handleTripSearch(context.Background(), tripSearchJob(t, 7))

	assert.Empty(t, searcher.ran)
	assert.Equal(t, []string{"j1"}, q.acked)
}

func TestDealRatingStoresQualifyingMatches(t *testing.T) {
	travelFrom := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)
	store := &fakeWorkerStore{
		plans: []*db.TripPlan{{
			ID: 1, Active: true,
			Origins: []string{"AKL"}, Destinations: []string{"NRT"},
			BudgetMax: 1500, BudgetCurrency: "NZD",
			CabinClasses: []string{"economy"},
		}},
		deals: []db.Deal{
			{
				ID:          10,
				Origin:      sql.NullString{String: "AKL", Valid: true},
				Destination: sql.NullString{String: "NRT", Valid: true},
				Price:       sql.NullFloat64{Float64: 750, Valid: true},
				Currency:    sql.NullString{String: "NZD", Valid: true},
				CabinClass:  sql.NullString{String: "economy", Valid: true},
				TravelFrom:  nullTime(travelFrom),
			},
			// Wrong origin: scores zero, never stored.
			{
				ID:          11,
				Origin:      sql.NullString{String: "LAX", Valid: true},
				Destination: sql.NullString{String: "NRT", Valid: true},
				Price:       sql.NullFloat64{Float64: 400, Valid: true},
				Currency:    sql.NullString{String: "NZD", Valid: true},
				TravelFrom:  nullTime(travelFrom),
			},
			// Qualifying score but no travel dates: cannot be anchored.
			{
				ID:          12,
				Origin:      sql.NullString{String: "AKL", Valid: true},
				Destination: sql.NullString{String: "NRT", Valid: true},
				Price:       sql.NullFloat64{Float64: 750, Valid: true},
				Currency:    sql.NullString{String: "NZD", Valid: true},
				CabinClass:  sql.NullString{String: "economy", Valid: true},
			},
		},
	}
	w := newTestWorker(t, store, &fakeWorkerNotifier{}, &fakeTripQueue{}, &fakeSearcher{})

	w.runDealRating(context.Background())

	require.Len(t, store.upserted, 1)
	m := store.upserted[0]
	assert.Equal(t, db.MatchSourceRSSDeal, m.Source)
	assert.Equal(t, int64(10), m.DealID.Int64)
	assert.Equal(t, "NRT", m.Destination)
	assert.Equal(t, travelFrom, m.DepartureDate)
	assert.InDelta(t, 100, m.MatchScore, 1e-9)
}

func TestCheckAwardChangesAlertsOnChangeOnly(t *testing.T) {
	store := &fakeWorkerStore{
		tracked: []db.TrackedAwardSearch{{ID: 3, Origin: "AKL", Destination: "SFO", CabinClass: "business"}},
		hashes:  map[int64]string{3: "aaa"},
	}
	notifier := &fakeWorkerNotifier{}
	w := newTestWorker(t, store, notifier, &fakeTripQueue{}, &fakeSearcher{})

	// First observation establishes the baseline silently.
	w.checkAwardChanges(context.Background())
	assert.Empty(t, notifier.system)

	// Same hash again: still quiet.
	w.checkAwardChanges(context.Background())
	assert.Empty(t, notifier.system)

	store.hashes[3] = "bbb"
	w.checkAwardChanges(context.Background())
	require.Len(t, notifier.system, 1)
	assert.Equal(t, "award:3", notifier.system[0].key)
}

func TestPurgeArtifacts(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "1_20260601_120000_captcha.png")
	fresh := filepath.Join(dir, "2_20260824_090000_timeout.png")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	stale := time.Now().Add(-60 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	removed := purgeArtifacts(dir, time.Now().Add(-30*24*time.Hour))
	assert.Equal(t, 1, removed)

	_, err := os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))

	assert.Zero(t, purgeArtifacts(filepath.Join(dir, "missing"), time.Now()))
}
