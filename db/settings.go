package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// GetUserSettings loads the singleton settings row.
func (p *Postgres) GetUserSettings(ctx context.Context) (*UserSettings, error) {
	var s UserSettings
	err := p.db.QueryRowContext(ctx,
		`SELECT id, home_airports, watched_destinations, preferred_currency,
			notify_provider, ntfy_server_url, ntfy_topic, discord_webhook_url,
			quiet_hours_start, quiet_hours_end, timezone,
			deal_cooldown_minutes, system_cooldown_minutes, notifications_on,
			notify_deals, notify_system, notify_trip_matches, updated_at
		FROM user_settings WHERE id = 1`).Scan(
		&s.ID, pq.Array(&s.HomeAirports), pq.Array(&s.WatchedDestinations),
		&s.PreferredCurrency, &s.NotifyProvider, &s.NtfyServerURL,
		&s.NtfyTopic, &s.DiscordWebhookURL, &s.QuietHoursStart,
		&s.QuietHoursEnd, &s.Timezone, &s.DealCooldownMin,
		&s.SystemCooldownMin, &s.NotificationsOn, &s.NotifyDeals,
		&s.NotifySystem, &s.NotifyTripMatches, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}
	return &s, nil
}

// UpdateUserSettings rewrites the singleton settings row.
func (p *Postgres) UpdateUserSettings(ctx context.Context, s *UserSettings) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE user_settings SET
			home_airports = $1, watched_destinations = $2,
			preferred_currency = $3, notify_provider = $4,
			ntfy_server_url = $5, ntfy_topic = $6, discord_webhook_url = $7,
			quiet_hours_start = $8, quiet_hours_end = $9, timezone = $10,
			deal_cooldown_minutes = $11, system_cooldown_minutes = $12,
			notifications_on = $13, notify_deals = $14, notify_system = $15,
			notify_trip_matches = $16, updated_at = NOW()
		WHERE id = 1`,
		pq.Array(s.HomeAirports), pq.Array(s.WatchedDestinations),
		s.PreferredCurrency, s.NotifyProvider, s.NtfyServerURL, s.NtfyTopic,
		s.DiscordWebhookURL, s.QuietHoursStart, s.QuietHoursEnd, s.Timezone,
		s.DealCooldownMin, s.SystemCooldownMin, s.NotificationsOn,
		s.NotifyDeals, s.NotifySystem, s.NotifyTripMatches,
	)
	if err != nil {
		return fmt.Errorf("failed to update user settings: %w", err)
	}
	return nil
}
