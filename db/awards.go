package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// AwardResultHash produces a stable hash over normalized award results so a
// new observation can be compared to the previous one for change detection.
// Entries are "program:cabin:miles:seats" strings; order does not matter.
func AwardResultHash(entries []string) string {
	normalized := make([]string, len(entries))
	for i, e := range entries {
		normalized[i] = strings.ToLower(strings.TrimSpace(e))
	}
	sort.Strings(normalized)
	h := sha256.Sum256([]byte(strings.Join(normalized, "\n")))
	return hex.EncodeToString(h[:])
}

// ListActiveTrackedAwardSearches returns active award searches.
func (p *Postgres) ListActiveTrackedAwardSearches(ctx context.Context) ([]TrackedAwardSearch, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, origin, destination, programs, date_from, date_to,
			cabin_class, min_seats, direct_only, active, last_check_at, created_at
		FROM tracked_award_searches WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked award searches: %w", err)
	}
	defer rows.Close()

	var searches []TrackedAwardSearch
	for rows.Next() {
		var s TrackedAwardSearch
		err := rows.Scan(
			&s.ID, &s.Origin, &s.Destination, pq.Array(&s.Programs),
			&s.DateFrom, &s.DateTo, &s.CabinClass, &s.MinSeats, &s.DirectOnly,
			&s.Active, &s.LastCheckAt, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked award search: %w", err)
		}
		searches = append(searches, s)
	}
	return searches, rows.Err()
}

// InsertAwardObservation stores one availability snapshot and stamps the
// parent search's last check time.
func (p *Postgres) InsertAwardObservation(ctx context.Context, o *AwardObservation) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO award_observations
		(tracked_search_id, observed_at, result_hash, economy_best_miles,
		 economy_max_seats, business_best_miles, business_max_seats,
		 first_best_miles, first_max_seats, programs, raw_payload)
		VALUES ($1, NOW(), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		o.TrackedSearchID, o.ResultHash, o.EconomyBestMiles, o.EconomyMaxSeats,
		o.BusinessBestMiles, o.BusinessMaxSeats, o.FirstBestMiles,
		o.FirstMaxSeats, pq.Array(o.Programs), o.RawPayload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert award observation: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tracked_award_searches SET last_check_at = NOW() WHERE id = $1`,
		o.TrackedSearchID)
	if err != nil {
		return 0, fmt.Errorf("failed to stamp award search check: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit award observation: %w", err)
	}
	return id, nil
}

// LatestAwardHash returns the most recent observation hash for a search, or
// empty when none exists.
func (p *Postgres) LatestAwardHash(ctx context.Context, trackedSearchID int64) (string, error) {
	var hash string
	err := p.db.QueryRowContext(ctx,
		`SELECT result_hash FROM award_observations
		WHERE tracked_search_id = $1
		ORDER BY observed_at DESC LIMIT 1`,
		trackedSearchID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest award hash: %w", err)
	}
	return hash, nil
}
