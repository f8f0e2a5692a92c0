package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const tripPlanColumns = `
	id, name, origins, destinations, destination_types, available_from,
	available_to, duration_min_days, duration_max_days, budget_max,
	budget_currency, cabin_classes, adults, children, check_frequency_hours,
	active, search_in_progress, search_started_at, last_search_at,
	created_at, updated_at`

func scanTripPlan(row interface{ Scan(...interface{}) error }) (*TripPlan, error) {
	var t TripPlan
	err := row.Scan(
		&t.ID, &t.Name, pq.Array(&t.Origins), pq.Array(&t.Destinations),
		pq.Array(&t.DestinationTypes), &t.AvailableFrom, &t.AvailableTo,
		&t.DurationMinDays, &t.DurationMaxDays, &t.BudgetMax,
		&t.BudgetCurrency, pq.Array(&t.CabinClasses), &t.Adults, &t.Children,
		&t.CheckFrequencyHr, &t.Active, &t.SearchInProgress,
		&t.SearchStartedAt, &t.LastSearchAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTripPlan fetches a trip plan by id.
func (p *Postgres) GetTripPlan(ctx context.Context, id int64) (*TripPlan, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+tripPlanColumns+` FROM trip_plans WHERE id = $1`, id)
	t, err := scanTripPlan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip plan %d not found: %w", id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip plan: %w", err)
	}
	return t, nil
}

// ListActiveTripPlans returns active plans ordered by id.
func (p *Postgres) ListActiveTripPlans(ctx context.Context) ([]*TripPlan, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+tripPlanColumns+` FROM trip_plans WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip plans: %w", err)
	}
	defer rows.Close()

	var plans []*TripPlan
	for rows.Next() {
		t, err := scanTripPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip plan: %w", err)
		}
		plans = append(plans, t)
	}
	return plans, rows.Err()
}

// CreateTripPlan inserts a trip plan.
func (p *Postgres) CreateTripPlan(ctx context.Context, t *TripPlan) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO trip_plans
		(name, origins, destinations, destination_types, available_from,
		 available_to, duration_min_days, duration_max_days, budget_max,
		 budget_currency, cabin_classes, adults, children,
		 check_frequency_hours, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		t.Name, pq.Array(t.Origins), pq.Array(t.Destinations),
		pq.Array(t.DestinationTypes), t.AvailableFrom, t.AvailableTo,
		t.DurationMinDays, t.DurationMaxDays, t.BudgetMax, t.BudgetCurrency,
		pq.Array(t.CabinClasses), t.Adults, t.Children, t.CheckFrequencyHr,
		t.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create trip plan: %w", err)
	}
	return id, nil
}

// TryLockTripPlanSearch acquires the advisory search lock for a plan. A lock
// older than staleAfter is treated as abandoned and stolen. Returns false
// when another search holds a fresh lock.
func (p *Postgres) TryLockTripPlanSearch(ctx context.Context, planID int64, staleAfter time.Duration) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE trip_plans SET search_in_progress = TRUE, search_started_at = NOW()
		WHERE id = $1
		  AND (NOT search_in_progress
		       OR search_started_at IS NULL
		       OR search_started_at < NOW() - ($2 || ' seconds')::INTERVAL)`,
		planID, int(staleAfter.Seconds()))
	if err != nil {
		return false, fmt.Errorf("failed to lock trip plan search: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UnlockTripPlanSearch releases the search lock and stamps last_search_at.
func (p *Postgres) UnlockTripPlanSearch(ctx context.Context, planID int64) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE trip_plans SET search_in_progress = FALSE,
			search_started_at = NULL, last_search_at = NOW(), updated_at = NOW()
		WHERE id = $1`, planID)
	if err != nil {
		return fmt.Errorf("failed to unlock trip plan search: %w", err)
	}
	return nil
}

// UpsertTripPlanMatch inserts a match or, when one exists for the same
// (plan, route, dates), keeps the lower price and refreshes metadata.
// Returns the match id.
func (p *Postgres) UpsertTripPlanMatch(ctx context.Context, m *TripPlanMatch) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO trip_plan_matches
		(trip_plan_id, source, deal_id, origin, destination, departure_date,
		 return_date, price_nzd, original_price, original_currency, airline,
		 stops, duration_minutes, booking_url, match_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (trip_plan_id, origin, destination, departure_date, return_date)
		DO UPDATE SET
			price_nzd = LEAST(trip_plan_matches.price_nzd, EXCLUDED.price_nzd),
			original_price = CASE
				WHEN EXCLUDED.price_nzd < trip_plan_matches.price_nzd
				THEN EXCLUDED.original_price ELSE trip_plan_matches.original_price END,
			original_currency = CASE
				WHEN EXCLUDED.price_nzd < trip_plan_matches.price_nzd
				THEN EXCLUDED.original_currency ELSE trip_plan_matches.original_currency END,
			airline = COALESCE(EXCLUDED.airline, trip_plan_matches.airline),
			booking_url = COALESCE(EXCLUDED.booking_url, trip_plan_matches.booking_url),
			updated_at = NOW()
		RETURNING id`,
		m.TripPlanID, m.Source, m.DealID, m.Origin, m.Destination,
		m.DepartureDate, m.ReturnDate, m.PriceNZD, m.OriginalPrice,
		m.OriginalCurrency, m.Airline, m.Stops, m.DurationMinutes,
		m.BookingURL, m.MatchScore,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert trip plan match: %w", err)
	}
	return id, nil
}

// ListTripPlanMatches returns a plan's matches cheapest first.
func (p *Postgres) ListTripPlanMatches(ctx context.Context, planID int64) ([]TripPlanMatch, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, trip_plan_id, source, deal_id, origin, destination,
			departure_date, return_date, price_nzd, original_price,
			original_currency, airline, stops, duration_minutes, booking_url,
			match_score, created_at, updated_at
		FROM trip_plan_matches
		WHERE trip_plan_id = $1
		ORDER BY price_nzd`,
		planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip plan matches: %w", err)
	}
	defer rows.Close()

	var matches []TripPlanMatch
	for rows.Next() {
		var m TripPlanMatch
		err := rows.Scan(
			&m.ID, &m.TripPlanID, &m.Source, &m.DealID, &m.Origin,
			&m.Destination, &m.DepartureDate, &m.ReturnDate, &m.PriceNZD,
			&m.OriginalPrice, &m.OriginalCurrency, &m.Airline, &m.Stops,
			&m.DurationMinutes, &m.BookingURL, &m.MatchScore, &m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip plan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// UpdateMatchScore rewrites a match score after rescoring.
func (p *Postgres) UpdateMatchScore(ctx context.Context, matchID int64, score float64) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE trip_plan_matches SET match_score = $2, updated_at = NOW()
		WHERE id = $1`, matchID, score)
	if err != nil {
		return fmt.Errorf("failed to update match score: %w", err)
	}
	return nil
}

// DeleteTripPlanMatch removes a match by id.
func (p *Postgres) DeleteTripPlanMatch(ctx context.Context, matchID int64) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM trip_plan_matches WHERE id = $1`, matchID)
	if err != nil {
		return fmt.Errorf("failed to delete trip plan match: %w", err)
	}
	return nil
}

// PurgeExpiredMatches deletes matches whose departure date has passed.
func (p *Postgres) PurgeExpiredMatches(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM trip_plan_matches WHERE departure_date < CURRENT_DATE`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired matches: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
