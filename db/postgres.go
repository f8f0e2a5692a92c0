package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jesposito/walkabout/config"
	"github.com/jesposito/walkabout/pkg/logger"
	_ "github.com/lib/pq"
)

// Postgres wraps the relational store holding every Walkabout table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a PostgreSQL connection and verifies it.
func NewPostgres(cfg config.PostgresConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	return &Postgres{db: db}, nil
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// DB returns the underlying connection pool.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

// Ping verifies connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// InitSchema creates all tables and indexes if they do not exist. When
// useTimescale is set, flight_prices is converted into a hypertable chunked
// by week; failure to convert degrades to a plain table.
func (p *Postgres) InitSchema(useTimescale bool) error {
	_, err := p.db.Exec(`
		-- Versioned search definitions; prices reference exactly one version.
		CREATE TABLE IF NOT EXISTS search_definitions (
			id BIGSERIAL PRIMARY KEY,
			origin VARCHAR(3) NOT NULL,
			destination VARCHAR(3) NOT NULL,
			trip_type VARCHAR(20) NOT NULL DEFAULT 'round_trip',
			departure_start DATE,
			departure_end DATE,
			days_from_now_min INT,
			days_from_now_max INT,
			trip_duration_min INT,
			trip_duration_max INT,
			adults INT NOT NULL DEFAULT 1,
			children INT NOT NULL DEFAULT 0,
			infants_in_seat INT NOT NULL DEFAULT 0,
			infants_on_lap INT NOT NULL DEFAULT 0,
			cabin_class VARCHAR(20) NOT NULL DEFAULT 'economy',
			stops VARCHAR(30) NOT NULL DEFAULT 'any',
			currency VARCHAR(3) NOT NULL DEFAULT 'NZD',
			locale VARCHAR(10) NOT NULL DEFAULT 'en',
			carry_on_bags INT NOT NULL DEFAULT 0,
			checked_bags INT NOT NULL DEFAULT 0,
			airlines_include TEXT[] NOT NULL DEFAULT '{}',
			airlines_exclude TEXT[] NOT NULL DEFAULT '{}',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			scrape_frequency_hours INT NOT NULL DEFAULT 12,
			preferred_source VARCHAR(30) NOT NULL DEFAULT 'auto',
			version INT NOT NULL DEFAULT 1,
			previous_version_id BIGINT REFERENCES search_definitions(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_search_definitions_route
			ON search_definitions (origin, destination);

		CREATE TABLE IF NOT EXISTS flight_prices (
			id BIGSERIAL PRIMARY KEY,
			search_definition_id BIGINT NOT NULL REFERENCES search_definitions(id),
			scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			departure_date DATE NOT NULL,
			return_date DATE,
			price_per_passenger NUMERIC(10,2) NOT NULL CHECK (price_per_passenger > 0),
			total_price NUMERIC(10,2) NOT NULL,
			passenger_count INT NOT NULL DEFAULT 1,
			trip_type VARCHAR(20) NOT NULL,
			airline VARCHAR(100),
			stops INT,
			duration_minutes INT,
			layover_airports TEXT,
			source VARCHAR(30) NOT NULL,
			raw_payload TEXT,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0
				CHECK (confidence >= 0 AND confidence <= 1),
			is_suspicious BOOLEAN NOT NULL DEFAULT FALSE,
			CHECK (return_date IS NULL OR departure_date <= return_date)
		);

		CREATE INDEX IF NOT EXISTS idx_flight_prices_def_departure
			ON flight_prices (search_definition_id, departure_date);
		CREATE INDEX IF NOT EXISTS idx_flight_prices_scraped_at
			ON flight_prices (scraped_at);

		CREATE TABLE IF NOT EXISTS scrape_health (
			search_definition_id BIGINT PRIMARY KEY REFERENCES search_definitions(id),
			total_attempts INT NOT NULL DEFAULT 0,
			total_successes INT NOT NULL DEFAULT 0,
			total_failures INT NOT NULL DEFAULT 0,
			consecutive_failures INT NOT NULL DEFAULT 0,
			last_attempt_at TIMESTAMPTZ,
			last_success_at TIMESTAMPTZ,
			last_failure_at TIMESTAMPTZ,
			last_failure_reason VARCHAR(30),
			last_failure_message TEXT,
			last_screenshot_path TEXT,
			last_html_path TEXT,
			circuit_open BOOLEAN NOT NULL DEFAULT FALSE,
			circuit_opened_at TIMESTAMPTZ,
			stale_alert_sent_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS trip_plans (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			origins TEXT[] NOT NULL DEFAULT '{}',
			destinations TEXT[] NOT NULL DEFAULT '{}',
			destination_types TEXT[] NOT NULL DEFAULT '{}',
			available_from DATE,
			available_to DATE,
			duration_min_days INT NOT NULL DEFAULT 5,
			duration_max_days INT NOT NULL DEFAULT 14,
			budget_max NUMERIC(10,2) NOT NULL,
			budget_currency VARCHAR(3) NOT NULL DEFAULT 'NZD',
			cabin_classes TEXT[] NOT NULL DEFAULT '{economy}',
			adults INT NOT NULL DEFAULT 1,
			children INT NOT NULL DEFAULT 0,
			check_frequency_hours INT NOT NULL DEFAULT 24,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			search_in_progress BOOLEAN NOT NULL DEFAULT FALSE,
			search_started_at TIMESTAMPTZ,
			last_search_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS trip_plan_matches (
			id BIGSERIAL PRIMARY KEY,
			trip_plan_id BIGINT NOT NULL REFERENCES trip_plans(id) ON DELETE CASCADE,
			source VARCHAR(30) NOT NULL,
			deal_id BIGINT,
			origin VARCHAR(3) NOT NULL,
			destination VARCHAR(3) NOT NULL,
			departure_date DATE NOT NULL,
			return_date DATE,
			price_nzd NUMERIC(10,2) NOT NULL,
			original_price NUMERIC(10,2),
			original_currency VARCHAR(3),
			airline VARCHAR(100),
			stops INT,
			duration_minutes INT,
			booking_url TEXT,
			match_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (trip_plan_id, origin, destination, departure_date, return_date)
		);

		CREATE TABLE IF NOT EXISTS tracked_award_searches (
			id BIGSERIAL PRIMARY KEY,
			origin VARCHAR(3) NOT NULL,
			destination VARCHAR(3) NOT NULL,
			programs TEXT[] NOT NULL DEFAULT '{}',
			date_from DATE NOT NULL,
			date_to DATE NOT NULL,
			cabin_class VARCHAR(20) NOT NULL DEFAULT 'economy',
			min_seats INT NOT NULL DEFAULT 1,
			direct_only BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_check_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS award_observations (
			id BIGSERIAL PRIMARY KEY,
			tracked_search_id BIGINT NOT NULL REFERENCES tracked_award_searches(id) ON DELETE CASCADE,
			observed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			result_hash VARCHAR(64) NOT NULL,
			economy_best_miles BIGINT,
			economy_max_seats INT,
			business_best_miles BIGINT,
			business_max_seats INT,
			first_best_miles BIGINT,
			first_max_seats INT,
			programs TEXT[] NOT NULL DEFAULT '{}',
			raw_payload TEXT
		);

		CREATE TABLE IF NOT EXISTS deals (
			id BIGSERIAL PRIMARY KEY,
			raw_title TEXT NOT NULL,
			origin VARCHAR(3),
			destination VARCHAR(3),
			price NUMERIC(10,2),
			currency VARCHAR(3),
			cabin_class VARCHAR(20),
			airline VARCHAR(100),
			travel_from DATE,
			travel_to DATE,
			parse_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			relevant BOOLEAN NOT NULL DEFAULT FALSE,
			url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_deals_route ON deals (origin, destination);

		CREATE TABLE IF NOT EXISTS user_settings (
			id BIGINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			home_airports TEXT[] NOT NULL DEFAULT '{AKL}',
			watched_destinations TEXT[] NOT NULL DEFAULT '{}',
			preferred_currency VARCHAR(3) NOT NULL DEFAULT 'NZD',
			notify_provider VARCHAR(30) NOT NULL DEFAULT 'none',
			ntfy_server_url TEXT NOT NULL DEFAULT '',
			ntfy_topic TEXT NOT NULL DEFAULT '',
			discord_webhook_url TEXT NOT NULL DEFAULT '',
			quiet_hours_start INT NOT NULL DEFAULT 22,
			quiet_hours_end INT NOT NULL DEFAULT 7,
			timezone VARCHAR(64) NOT NULL DEFAULT 'Pacific/Auckland',
			deal_cooldown_minutes INT NOT NULL DEFAULT 240,
			system_cooldown_minutes INT NOT NULL DEFAULT 60,
			notifications_on BOOLEAN NOT NULL DEFAULT TRUE,
			notify_deals BOOLEAN NOT NULL DEFAULT TRUE,
			notify_system BOOLEAN NOT NULL DEFAULT TRUE,
			notify_trip_matches BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		INSERT INTO user_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if useTimescale {
		_, err := p.db.Exec(`
			SELECT create_hypertable('flight_prices', 'scraped_at',
				chunk_time_interval => INTERVAL '7 days',
				if_not_exists => TRUE, migrate_data => TRUE);
		`)
		if err != nil {
			logger.Warn("timescale hypertable setup failed, using plain table", "error", err)
		}
	}

	return nil
}

// BeginTx starts a transaction.
func (p *Postgres) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return p.db.BeginTx(ctx, nil)
}
