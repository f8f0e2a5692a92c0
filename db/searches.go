package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

const searchDefinitionColumns = `
	id, origin, destination, trip_type, departure_start, departure_end,
	days_from_now_min, days_from_now_max, trip_duration_min, trip_duration_max,
	adults, children, infants_in_seat, infants_on_lap, cabin_class, stops,
	currency, locale, carry_on_bags, checked_bags, airlines_include,
	airlines_exclude, active, scrape_frequency_hours, preferred_source,
	version, previous_version_id, created_at, updated_at`

func scanSearchDefinition(row interface{ Scan(...interface{}) error }) (*SearchDefinition, error) {
	var d SearchDefinition
	err := row.Scan(
		&d.ID, &d.Origin, &d.Destination, &d.TripType, &d.DepartureStart,
		&d.DepartureEnd, &d.DaysFromNowMin, &d.DaysFromNowMax,
		&d.TripDurationMin, &d.TripDurationMax, &d.Adults, &d.Children,
		&d.InfantsInSeat, &d.InfantsOnLap, &d.CabinClass, &d.Stops,
		&d.Currency, &d.Locale, &d.CarryOnBags, &d.CheckedBags,
		pq.Array(&d.AirlinesInclude), pq.Array(&d.AirlinesExclude), &d.Active,
		&d.ScrapeFrequencyHr, &d.PreferredSource, &d.Version,
		&d.PreviousVersionID, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetSearchDefinition fetches a single definition by id.
func (p *Postgres) GetSearchDefinition(ctx context.Context, id int64) (*SearchDefinition, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+searchDefinitionColumns+` FROM search_definitions WHERE id = $1`, id)
	d, err := scanSearchDefinition(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("search definition %d not found: %w", id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search definition: %w", err)
	}
	return d, nil
}

// ListActiveSearchDefinitions returns every active definition, oldest first
// so the scrape sweep order is stable.
func (p *Postgres) ListActiveSearchDefinitions(ctx context.Context) ([]*SearchDefinition, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+searchDefinitionColumns+` FROM search_definitions
		WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list search definitions: %w", err)
	}
	defer rows.Close()

	var defs []*SearchDefinition
	for rows.Next() {
		d, err := scanSearchDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// CreateSearchDefinition inserts a new definition at version 1.
func (p *Postgres) CreateSearchDefinition(ctx context.Context, d *SearchDefinition) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO search_definitions
		(origin, destination, trip_type, departure_start, departure_end,
		 days_from_now_min, days_from_now_max, trip_duration_min, trip_duration_max,
		 adults, children, infants_in_seat, infants_on_lap, cabin_class, stops,
		 currency, locale, carry_on_bags, checked_bags, airlines_include,
		 airlines_exclude, active, scrape_frequency_hours, preferred_source,
		 version, previous_version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,1,NULL)
		RETURNING id`,
		d.Origin, d.Destination, d.TripType, d.DepartureStart, d.DepartureEnd,
		d.DaysFromNowMin, d.DaysFromNowMax, d.TripDurationMin, d.TripDurationMax,
		d.Adults, d.Children, d.InfantsInSeat, d.InfantsOnLap, d.CabinClass,
		d.Stops, d.Currency, d.Locale, d.CarryOnBags, d.CheckedBags,
		pq.Array(d.AirlinesInclude), pq.Array(d.AirlinesExclude), d.Active,
		d.ScrapeFrequencyHr, d.PreferredSource,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create search definition: %w", err)
	}
	return id, nil
}

// ReviseSearchDefinition deactivates the old version and inserts a new row
// with an incremented version pointing back at it, in one transaction.
// Existing prices stay tied to the prior version's id, which keeps price
// history comparable.
func (p *Postgres) ReviseSearchDefinition(ctx context.Context, oldID int64, d *SearchDefinition) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldVersion int
	err = tx.QueryRowContext(ctx,
		`UPDATE search_definitions SET active = FALSE, updated_at = NOW()
		WHERE id = $1 RETURNING version`, oldID).Scan(&oldVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate search definition %d: %w", oldID, err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO search_definitions
		(origin, destination, trip_type, departure_start, departure_end,
		 days_from_now_min, days_from_now_max, trip_duration_min, trip_duration_max,
		 adults, children, infants_in_seat, infants_on_lap, cabin_class, stops,
		 currency, locale, carry_on_bags, checked_bags, airlines_include,
		 airlines_exclude, active, scrape_frequency_hours, preferred_source,
		 version, previous_version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
		RETURNING id`,
		d.Origin, d.Destination, d.TripType, d.DepartureStart, d.DepartureEnd,
		d.DaysFromNowMin, d.DaysFromNowMax, d.TripDurationMin, d.TripDurationMax,
		d.Adults, d.Children, d.InfantsInSeat, d.InfantsOnLap, d.CabinClass,
		d.Stops, d.Currency, d.Locale, d.CarryOnBags, d.CheckedBags,
		pq.Array(d.AirlinesInclude), pq.Array(d.AirlinesExclude), d.Active,
		d.ScrapeFrequencyHr, d.PreferredSource, oldVersion+1, oldID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert revised search definition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit revision: %w", err)
	}
	return id, nil
}

// DeactivateSearchDefinition soft-deactivates a definition. Rows are never
// hard-deleted while prices reference them.
func (p *Postgres) DeactivateSearchDefinition(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE search_definitions SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate search definition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("search definition %d not found: %w", id, sql.ErrNoRows)
	}
	return nil
}
