package db

import (
	"context"
	"fmt"
	"time"
)

// ListRecentRelevantDeals returns parsed, relevant RSS deals from the last
// window for the deal-rating job.
func (p *Postgres) ListRecentRelevantDeals(ctx context.Context, since time.Time) ([]Deal, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, raw_title, origin, destination, price, currency,
			cabin_class, airline, travel_from, travel_to, parse_status,
			confidence, relevant, url, created_at
		FROM deals
		WHERE relevant = TRUE AND parse_status = 'parsed' AND created_at >= $1
		ORDER BY created_at DESC`,
		since)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	var deals []Deal
	for rows.Next() {
		var d Deal
		err := rows.Scan(
			&d.ID, &d.RawTitle, &d.Origin, &d.Destination, &d.Price,
			&d.Currency, &d.CabinClass, &d.Airline, &d.TravelFrom,
			&d.TravelTo, &d.ParseStatus, &d.Confidence, &d.Relevant, &d.URL,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}
