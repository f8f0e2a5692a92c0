package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// circuitOpenThreshold is the consecutive-failure count that opens the
// per-definition circuit breaker.
const circuitOpenThreshold = 5

// GetScrapeHealth fetches the health row for a definition, creating a zeroed
// row on first access.
func (p *Postgres) GetScrapeHealth(ctx context.Context, searchDefinitionID int64) (*ScrapeHealth, error) {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO scrape_health (search_definition_id) VALUES ($1)
		ON CONFLICT (search_definition_id) DO NOTHING`,
		searchDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure scrape health row: %w", err)
	}

	var h ScrapeHealth
	err = p.db.QueryRowContext(ctx,
		`SELECT search_definition_id, total_attempts, total_successes,
			total_failures, consecutive_failures, last_attempt_at,
			last_success_at, last_failure_at, last_failure_reason,
			last_failure_message, last_screenshot_path, last_html_path,
			circuit_open, circuit_opened_at, stale_alert_sent_at
		FROM scrape_health WHERE search_definition_id = $1`,
		searchDefinitionID).Scan(
		&h.SearchDefinitionID, &h.TotalAttempts, &h.TotalSuccesses,
		&h.TotalFailures, &h.ConsecutiveFailures, &h.LastAttemptAt,
		&h.LastSuccessAt, &h.LastFailureAt, &h.LastFailureReason,
		&h.LastFailureMessage, &h.LastScreenshotPath, &h.LastHTMLPath,
		&h.CircuitOpen, &h.CircuitOpenedAt, &h.StaleAlertSentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape health: %w", err)
	}
	return &h, nil
}

// ListScrapeHealth returns every health row, joined order by definition id.
func (p *Postgres) ListScrapeHealth(ctx context.Context) ([]ScrapeHealth, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT search_definition_id, total_attempts, total_successes,
			total_failures, consecutive_failures, last_attempt_at,
			last_success_at, last_failure_at, last_failure_reason,
			last_failure_message, last_screenshot_path, last_html_path,
			circuit_open, circuit_opened_at, stale_alert_sent_at
		FROM scrape_health ORDER BY search_definition_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape health: %w", err)
	}
	defer rows.Close()

	var all []ScrapeHealth
	for rows.Next() {
		var h ScrapeHealth
		err := rows.Scan(
			&h.SearchDefinitionID, &h.TotalAttempts, &h.TotalSuccesses,
			&h.TotalFailures, &h.ConsecutiveFailures, &h.LastAttemptAt,
			&h.LastSuccessAt, &h.LastFailureAt, &h.LastFailureReason,
			&h.LastFailureMessage, &h.LastScreenshotPath, &h.LastHTMLPath,
			&h.CircuitOpen, &h.CircuitOpenedAt, &h.StaleAlertSentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scrape health: %w", err)
		}
		all = append(all, h)
	}
	return all, rows.Err()
}

// recordHealthSuccessTx applies a success inside an existing transaction:
// counters bump, the failure streak resets, and the circuit closes.
func recordHealthSuccessTx(ctx context.Context, tx *sql.Tx, searchDefinitionID int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO scrape_health (search_definition_id, total_attempts,
			total_successes, consecutive_failures, last_attempt_at,
			last_success_at, circuit_open, circuit_opened_at)
		VALUES ($1, 1, 1, 0, NOW(), NOW(), FALSE, NULL)
		ON CONFLICT (search_definition_id) DO UPDATE SET
			total_attempts = scrape_health.total_attempts + 1,
			total_successes = scrape_health.total_successes + 1,
			consecutive_failures = 0,
			last_attempt_at = NOW(),
			last_success_at = NOW(),
			circuit_open = FALSE,
			circuit_opened_at = NULL`,
		searchDefinitionID)
	if err != nil {
		return fmt.Errorf("failed to record scrape success: %w", err)
	}
	return nil
}

// RecordScrapeSuccess records a successful scrape outside a price-insert
// transaction (used when a scrape succeeds but stores no rows).
func (p *Postgres) RecordScrapeSuccess(ctx context.Context, searchDefinitionID int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := recordHealthSuccessTx(ctx, tx, searchDefinitionID); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordScrapeFailure records a classified failure, keeps artifact paths,
// and opens the circuit at the consecutive-failure threshold.
func (p *Postgres) RecordScrapeFailure(ctx context.Context, searchDefinitionID int64, reason, message, screenshotPath, htmlPath string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO scrape_health (search_definition_id, total_attempts,
			total_failures, consecutive_failures, last_attempt_at,
			last_failure_at, last_failure_reason, last_failure_message,
			last_screenshot_path, last_html_path)
		VALUES ($1, 1, 1, 1, NOW(), NOW(), $2, $3, NULLIF($4,''), NULLIF($5,''))
		ON CONFLICT (search_definition_id) DO UPDATE SET
			total_attempts = scrape_health.total_attempts + 1,
			total_failures = scrape_health.total_failures + 1,
			consecutive_failures = scrape_health.consecutive_failures + 1,
			last_attempt_at = NOW(),
			last_failure_at = NOW(),
			last_failure_reason = $2,
			last_failure_message = $3,
			last_screenshot_path = COALESCE(NULLIF($4,''), scrape_health.last_screenshot_path),
			last_html_path = COALESCE(NULLIF($5,''), scrape_health.last_html_path),
			circuit_open = scrape_health.circuit_open OR
				scrape_health.consecutive_failures + 1 >= $6,
			circuit_opened_at = CASE
				WHEN NOT scrape_health.circuit_open AND
					scrape_health.consecutive_failures + 1 >= $6 THEN NOW()
				ELSE scrape_health.circuit_opened_at
			END`,
		searchDefinitionID, reason, message, screenshotPath, htmlPath,
		circuitOpenThreshold)
	if err != nil {
		return fmt.Errorf("failed to record scrape failure: %w", err)
	}
	return nil
}

// MarkStaleAlertSent stamps stale_alert_sent_at so the staleness alert is
// not repeated within its suppression window.
func (p *Postgres) MarkStaleAlertSent(ctx context.Context, searchDefinitionID int64, at time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE scrape_health SET stale_alert_sent_at = $2
		WHERE search_definition_id = $1`,
		searchDefinitionID, at)
	if err != nil {
		return fmt.Errorf("failed to mark stale alert: %w", err)
	}
	return nil
}
