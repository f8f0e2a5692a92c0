package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jesposito/walkabout/db"
	"github.com/jesposito/walkabout/pkg/notify"
	"github.com/jesposito/walkabout/queue"
	"github.com/jesposito/walkabout/tripplan"
)

const (
	dequeueBlock      = 5 * time.Second
	dealRatingWindow  = 48 * time.Hour
	dealMatchMinScore = 60.0
)

// runScrapeSweep scrapes every active search definition sequentially. One
// failing definition never stops the sweep.
func (w *Worker) runScrapeSweep(ctx context.Context) {
	defs, err := w.store.ListActiveSearchDefinitions(ctx)
	if err != nil {
		w.log.Error(err, "failed to list search definitions for sweep")
		return
	}

	var deals, failures int
	for _, def := range defs {
		outcome, err := w.scraper.ScrapeSearch(ctx, def.ID)
		if err != nil {
			failures++
			w.log.Error(err, "scrape failed",
				"search_definition_id", def.ID,
				"origin", def.Origin, "destination", def.Destination)
			continue
		}
		if outcome.Deal != nil && outcome.Deal.IsDeal {
			deals++
		}
	}
	w.log.Info("scrape sweep complete",
		"definitions", len(defs), "failures", failures, "deals", deals)
}

// runHealthCheck raises alerts for stale and circuit-open definitions and
// detects award-availability changes.
func (w *Worker) runHealthCheck(ctx context.Context) {
	defs, err := w.store.ListActiveSearchDefinitions(ctx)
	if err != nil {
		w.log.Error(err, "failed to list search definitions for health check")
		return
	}
	routes := make(map[int64]string, len(defs))
	for _, def := range defs {
		routes[def.ID] = def.Origin + "-" + def.Destination
	}

	healths, err := w.store.ListScrapeHealth(ctx)
	if err != nil {
		w.log.Error(err, "failed to list scrape health")
		return
	}

	now := w.now()
	for _, h := range healths {
		route, active := routes[h.SearchDefinitionID]
		if !active {
			continue
		}

		if h.CircuitOpen {
			key := fmt.Sprintf("circuit:%d", h.SearchDefinitionID)
			body := fmt.Sprintf("%s has failed %d times in a row (last: %s). Scraping is paused.",
				route, h.ConsecutiveFailures, h.LastFailureReason.String)
			if err := w.notifier.NotifySystem(ctx, key, "Scraper circuit open", body, notify.PriorityHigh); err != nil {
				w.log.Error(err, "failed to send circuit alert", "search_definition_id", h.SearchDefinitionID)
			}
		}

		if shouldAlertStale(&h, now, w.scrape.StaleAfter, w.scrape.StaleResendAfter) {
			key := fmt.Sprintf("stale:%d", h.SearchDefinitionID)
			body := fmt.Sprintf("%s has no successful scrape since %s.",
				route, h.LastSuccessAt.Time.Format(time.RFC3339))
			if err := w.notifier.NotifySystem(ctx, key, "Price data stale", body, notify.PriorityHigh); err != nil {
				w.log.Error(err, "failed to send stale alert", "search_definition_id", h.SearchDefinitionID)
				continue
			}
			if err := w.store.MarkStaleAlertSent(ctx, h.SearchDefinitionID, now); err != nil {
				w.log.Error(err, "failed to mark stale alert", "search_definition_id", h.SearchDefinitionID)
			}
		}
	}

	w.checkAwardChanges(ctx)
}

// shouldAlertStale: no success within staleAfter, and no alert already sent
// within resendAfter. Definitions that have never succeeded stay silent; the
// failure path alerts for those.
func shouldAlertStale(h *db.ScrapeHealth, now time.Time, staleAfter, resendAfter time.Duration) bool {
	if !h.LastSuccessAt.Valid {
		return false
	}
	if now.Sub(h.LastSuccessAt.Time) < staleAfter {
		return false
	}
	if h.StaleAlertSentAt.Valid && now.Sub(h.StaleAlertSentAt.Time) < resendAfter {
		return false
	}
	return true
}

// checkAwardChanges compares the latest observation hash per tracked award
// search against the last one seen and announces changes.
func (w *Worker) checkAwardChanges(ctx context.Context) {
	tracked, err := w.store.ListActiveTrackedAwardSearches(ctx)
	if err != nil {
		w.log.Error(err, "failed to list tracked award searches")
		return
	}
	for _, t := range tracked {
		hash, err := w.store.LatestAwardHash(ctx, t.ID)
		if err != nil || hash == "" {
			continue
		}
		prev, seen := w.awardHashes[t.ID]
		w.awardHashes[t.ID] = hash
		if !seen || prev == hash {
			continue
		}
		key := fmt.Sprintf("award:%d", t.ID)
		body := fmt.Sprintf("Award availability changed for %s to %s (%s).",
			t.Origin, t.Destination, t.CabinClass)
		if err := w.notifier.NotifySystem(ctx, key, "Award availability changed", body, notify.PriorityDefault); err != nil {
			w.log.Error(err, "failed to send award alert", "tracked_search_id", t.ID)
		}
	}
}

// enqueueTripSearches queues a search job for every plan that is due.
func (w *Worker) enqueueTripSearches(ctx context.Context) {
	plans, err := w.store.ListActiveTripPlans(ctx)
	if err != nil {
		w.log.Error(err, "failed to list trip plans")
		return
	}
	now := w.now()
	var queued int
	for _, plan := range plans {
		if !planDue(plan, now) {
			continue
		}
		if _, err := w.queue.EnqueueTripSearch(ctx, plan.ID); err != nil {
			w.log.Error(err, "failed to enqueue trip search", "trip_plan_id", plan.ID)
			continue
		}
		queued++
	}
	w.log.Info("trip searches queued", "plans", len(plans), "queued", queued)
}

// planDue: never searched, or last search older than the plan's check
// frequency.
func planDue(plan *db.TripPlan, now time.Time) bool {
	if plan.CheckFrequencyHr <= 0 {
		return false
	}
	if !plan.LastSearchAt.Valid {
		return true
	}
	return now.Sub(plan.LastSearchAt.Time) >= time.Duration(plan.CheckFrequencyHr)*time.Hour
}

// consumeTripSearches is the queue consumer loop. It runs until the worker
// stops.
func (w *Worker) consumeTripSearches(ctx context.Context) {
	defer close(w.done)
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Dequeue(ctx, dequeueBlock)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error(err, "failed to dequeue trip search")
			time.Sleep(time.Second)
			continue
		}
		w.handleTripSearch(ctx, job)
	}
}

func (w *Worker) handleTripSearch(ctx context.Context, job *queue.Job) {
	payload, err := job.TripSearch()
	if err != nil {
		w.log.Error(err, "dropping undecodable trip search job", "job_id", job.ID)
		w.queue.Ack(ctx, job)
		return
	}

	plan, err := w.store.GetTripPlan(ctx, payload.TripPlanID)
	if err != nil || plan == nil || !plan.Active {
		// Gone or deactivated since it was queued.
		w.queue.Ack(ctx, job)
		return
	}

	summary, err := w.searcher.Run(ctx, plan)
	if err != nil {
		w.log.Error(err, "trip plan search failed", "trip_plan_id", plan.ID, "attempt", job.Attempts)
		if _, nackErr := w.queue.Nack(ctx, job); nackErr != nil {
			w.log.Error(nackErr, "failed to nack trip search job", "job_id", job.ID)
		}
		return
	}
	w.queue.Ack(ctx, job)

	w.log.Info("trip plan search complete", "trip_plan_id", plan.ID,
		"searches", summary.Searches, "stored", summary.Stored, "deleted", summary.Deleted)

	if summary.Stored > 0 {
		w.announceBestMatch(ctx, plan)
	}
}

func (w *Worker) announceBestMatch(ctx context.Context, plan *db.TripPlan) {
	matches, err := w.store.ListTripPlanMatches(ctx, plan.ID)
	if err != nil || len(matches) == 0 {
		return
	}
	if err := w.notifier.NotifyTripMatch(ctx, plan, &matches[0]); err != nil {
		w.log.Error(err, "failed to send trip match alert", "trip_plan_id", plan.ID)
	}
}

// runDealRating scores recent RSS deals against every active plan and stores
// qualifying ones as matches.
func (w *Worker) runDealRating(ctx context.Context) {
	deals, err := w.store.ListRecentRelevantDeals(ctx, w.now().Add(-dealRatingWindow))
	if err != nil {
		w.log.Error(err, "failed to list recent deals")
		return
	}
	plans, err := w.store.ListActiveTripPlans(ctx)
	if err != nil {
		w.log.Error(err, "failed to list trip plans for deal rating")
		return
	}

	var stored int
	for i := range deals {
		deal := &deals[i]
		for _, plan := range plans {
			r := tripplan.ScoreDeal(ctx, deal, plan, w.conv)
			if r.Score < dealMatchMinScore {
				continue
			}
			match := dealMatch(deal, plan, r)
			if match == nil {
				continue
			}
			if _, err := w.store.UpsertTripPlanMatch(ctx, match); err != nil {
				w.log.Error(err, "failed to store deal match",
					"deal_id", deal.ID, "trip_plan_id", plan.ID)
				continue
			}
			stored++
		}
	}
	w.log.Info("deal rating complete", "deals", len(deals), "plans", len(plans), "matches", stored)
}

// dealMatch builds a trip-plan match row from a scored deal. Deals without a
// travel-from date cannot be anchored and are skipped.
func dealMatch(deal *db.Deal, plan *db.TripPlan, r tripplan.MatchResult) *db.TripPlanMatch {
	if !deal.TravelFrom.Valid {
		return nil
	}
	m := &db.TripPlanMatch{
		TripPlanID:    plan.ID,
		Source:        db.MatchSourceRSSDeal,
		DealID:        sql.NullInt64{Int64: deal.ID, Valid: true},
		Origin:        deal.Origin.String,
		Destination:   deal.Destination.String,
		DepartureDate: deal.TravelFrom.Time,
		ReturnDate:    deal.TravelTo,
		PriceNZD:      r.PriceInBudgetCCY,
		Airline:       deal.Airline,
		BookingURL:    deal.URL,
		MatchScore:    r.Score,
	}
	if deal.Price.Valid {
		m.OriginalPrice = deal.Price
		m.OriginalCurrency = deal.Currency
	}
	return m
}

// runMaintenance trims old price rows, purges expired matches, and deletes
// old failure artifacts.
func (w *Worker) runMaintenance(ctx context.Context) {
	purged, err := w.store.PurgeExpiredMatches(ctx)
	if err != nil {
		w.log.Error(err, "failed to purge expired matches")
	}

	var trimmed int64
	if w.cfg.PriceRetention > 0 {
		trimmed, err = w.store.TrimPriceHistory(ctx, w.now().Add(-w.cfg.PriceRetention))
		if err != nil {
			w.log.Error(err, "failed to trim price history")
		}
	}

	var artifacts int
	if w.cfg.ArtifactMaxAge > 0 && w.dataDir != "" {
		artifacts = purgeArtifacts(filepath.Join(w.dataDir, "screenshots"), w.now().Add(-w.cfg.ArtifactMaxAge))
	}

	w.log.Info("maintenance complete",
		"matches_purged", purged, "prices_trimmed", trimmed, "artifacts_deleted", artifacts)
}

// purgeArtifacts removes files older than cutoff. Best effort; a missing
// directory or an undeletable file is not an error.
func purgeArtifacts(dir string, cutoff time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var removed int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			removed++
		}
	}
	return removed
}
