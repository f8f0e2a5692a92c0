package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertFlightPrices stores a batch of observed prices and records the
// scrape success on health in the same transaction, so counters never drift
// from observations.
func (p *Postgres) InsertFlightPrices(ctx context.Context, prices []FlightPrice) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, fp := range prices {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO flight_prices
			(search_definition_id, scraped_at, departure_date, return_date,
			 price_per_passenger, total_price, passenger_count, trip_type,
			 airline, stops, duration_minutes, layover_airports, source,
			 raw_payload, confidence, is_suspicious)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			fp.SearchDefinitionID, fp.ScrapedAt, fp.DepartureDate, fp.ReturnDate,
			fp.PricePerPassenger, fp.TotalPrice, fp.PassengerCount, fp.TripType,
			fp.Airline, fp.Stops, fp.DurationMinutes, fp.LayoverAirports,
			fp.Source, fp.RawPayload, fp.Confidence, fp.IsSuspicious,
		)
		if err != nil {
			return fmt.Errorf("failed to insert flight price: %w", err)
		}
	}

	if len(prices) > 0 {
		if err := recordHealthSuccessTx(ctx, tx, prices[0].SearchDefinitionID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flight prices: %w", err)
	}
	return nil
}

// PriceHistory returns per-passenger prices for a definition scraped within
// the window, newest first.
func (p *Postgres) PriceHistory(ctx context.Context, searchDefinitionID int64, windowDays int) ([]float64, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT price_per_passenger FROM flight_prices
		WHERE search_definition_id = $1
		  AND scraped_at >= NOW() - ($2 || ' days')::INTERVAL
		  AND NOT is_suspicious
		ORDER BY scraped_at DESC`,
		searchDefinitionID, windowDays)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, v)
	}
	return prices, rows.Err()
}

// MedianPrice returns the median non-suspicious per-passenger price over the
// window, or false when there is no history. The scraping service uses it as
// the anomaly-guard baseline.
func (p *Postgres) MedianPrice(ctx context.Context, searchDefinitionID int64, windowDays int) (float64, bool, error) {
	var median sql.NullFloat64
	err := p.db.QueryRowContext(ctx,
		`SELECT PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY price_per_passenger)
		FROM flight_prices
		WHERE search_definition_id = $1
		  AND scraped_at >= NOW() - ($2 || ' days')::INTERVAL
		  AND NOT is_suspicious`,
		searchDefinitionID, windowDays).Scan(&median)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query median price: %w", err)
	}
	if !median.Valid {
		return 0, false, nil
	}
	return median.Float64, true, nil
}

// LatestPrices returns the most recent price rows for a definition.
func (p *Postgres) LatestPrices(ctx context.Context, searchDefinitionID int64, limit int) ([]FlightPrice, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, search_definition_id, scraped_at, departure_date, return_date,
			price_per_passenger, total_price, passenger_count, trip_type, airline,
			stops, duration_minutes, layover_airports, source, raw_payload,
			confidence, is_suspicious
		FROM flight_prices
		WHERE search_definition_id = $1
		ORDER BY scraped_at DESC
		LIMIT $2`,
		searchDefinitionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest prices: %w", err)
	}
	defer rows.Close()

	var prices []FlightPrice
	for rows.Next() {
		var fp FlightPrice
		err := rows.Scan(
			&fp.ID, &fp.SearchDefinitionID, &fp.ScrapedAt, &fp.DepartureDate,
			&fp.ReturnDate, &fp.PricePerPassenger, &fp.TotalPrice,
			&fp.PassengerCount, &fp.TripType, &fp.Airline, &fp.Stops,
			&fp.DurationMinutes, &fp.LayoverAirports, &fp.Source, &fp.RawPayload,
			&fp.Confidence, &fp.IsSuspicious,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight price: %w", err)
		}
		prices = append(prices, fp)
	}
	return prices, rows.Err()
}

// TrimPriceHistory deletes price rows older than the retention horizon.
// Used by the maintenance job only; normal operation is append-only.
func (p *Postgres) TrimPriceHistory(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM flight_prices WHERE scraped_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to trim price history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
