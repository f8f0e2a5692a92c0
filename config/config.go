package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port           string
	Environment    string
	DataDir        string
	APIEnabled     bool
	WorkerEnabled  bool
	InitSchema     bool
	UseTimescale   bool
	LoggingConfig  LoggingConfig
	PostgresConfig PostgresConfig
	RedisConfig    RedisConfig
	SerpAPIConfig  SerpAPIConfig
	Skyscanner     SkyscannerConfig
	Amadeus        AmadeusConfig
	Browser        BrowserConfig
	Scrape         ScrapeConfig
	Deal           DealConfig
	TripPlan       TripPlanConfig
	Scheduler      SchedulerConfig
	Currency       CurrencyConfig
	AI             AIConfig
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	URL          string // full DATABASE_URL; wins over the discrete fields
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the connection string for lib/pq.
func (c PostgresConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis connection configuration for the trip-search queue
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
}

// SerpAPIConfig holds SerpAPI (Google Flights proxy) configuration
type SerpAPIConfig struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
}

// SkyscannerConfig holds the RapidAPI Skyscanner gateway configuration
type SkyscannerConfig struct {
	APIKey     string
	APIHost    string
	MaxRetries int
}

// AmadeusConfig holds Amadeus Self-Service API configuration
type AmadeusConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	MaxRetries   int
}

// BrowserConfig holds headless-browser scraper configuration
type BrowserConfig struct {
	Enabled           bool
	NavigationTimeout time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	Locale            string
}

// ScrapeConfig holds scraping-service thresholds
type ScrapeConfig struct {
	StoreMinConfidence   float64
	DealMinConfidence    float64
	AnomalyUpperPct      float64 // price > median * (1 + pct/100) is suspicious
	AnomalyLowerFraction float64 // price < median * fraction is suspicious
	AnomalyWindowDays    int
	StaleAfter           time.Duration
	StaleResendAfter     time.Duration
}

// DealConfig holds price-analyzer configuration
type DealConfig struct {
	HistoryWindowDays  int
	MinHistorySamples  int
	RobustZThreshold   float64
	NewLowMarginPct    float64
	PriceInsightsBonus bool // promote marginal savings when upstream says price_level=low
}

// TripPlanConfig holds trip-plan search configuration
type TripPlanConfig struct {
	MaxSearchesPerRun int
	SearchSpacing     time.Duration
	TopPerDestination int
	MaxMatchesPerPlan int
	LockTimeout       time.Duration
	DefaultOrigin     string
}

// SchedulerConfig holds cron schedules and timezone
type SchedulerConfig struct {
	Timezone         string
	MorningScrape    string
	EveningScrape    string
	HealthCheck      string
	TripPlanSearch   string
	DealRating       string
	Maintenance      string
	ArtifactMaxAge   time.Duration
	PriceRetention   time.Duration
}

// CurrencyConfig holds currency service configuration
type CurrencyConfig struct {
	RateURL string
	TTL     time.Duration
}

// AIConfig holds optional AI enrichment configuration
type AIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	CacheTTL time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	loggingConfig := LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	postgresConfig := PostgresConfig{
		URL:          getEnv("DATABASE_URL", ""),
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnv("DB_PORT", "5432"),
		User:         getEnv("DB_USER", "walkabout"),
		Password:     getEnv("DB_PASSWORD", ""),
		DBName:       getEnv("DB_NAME", "walkabout"),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
	}

	redisConfig := RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		Stream:   getEnv("REDIS_QUEUE_STREAM", "walkabout:trip_searches"),
		Group:    getEnv("REDIS_QUEUE_GROUP", "walkabout_workers"),
	}

	serpConfig := SerpAPIConfig{
		APIKey:     getEnv("SERPAPI_KEY", ""),
		BaseURL:    getEnv("SERPAPI_BASE_URL", "https://serpapi.com/search"),
		MaxRetries: getEnvInt("SERPAPI_MAX_RETRIES", 2),
	}

	skyscannerConfig := SkyscannerConfig{
		APIKey:     getEnv("RAPIDAPI_KEY", ""),
		APIHost:    getEnv("RAPIDAPI_SKYSCANNER_HOST", "skyscanner-api.p.rapidapi.com"),
		MaxRetries: getEnvInt("SKYSCANNER_MAX_RETRIES", 2),
	}

	amadeusConfig := AmadeusConfig{
		ClientID:     getEnv("AMADEUS_CLIENT_ID", ""),
		ClientSecret: getEnv("AMADEUS_CLIENT_SECRET", ""),
		BaseURL:      getEnv("AMADEUS_BASE_URL", "https://test.api.amadeus.com"),
		MaxRetries:   getEnvInt("AMADEUS_MAX_RETRIES", 2),
	}

	browserConfig := BrowserConfig{
		Enabled:           getEnvBool("BROWSER_SCRAPER_ENABLED", true),
		NavigationTimeout: getEnvDuration("BROWSER_NAV_TIMEOUT", 30*time.Second),
		UserAgent: getEnv("BROWSER_USER_AGENT",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		ViewportWidth:  getEnvInt("BROWSER_VIEWPORT_WIDTH", 1366),
		ViewportHeight: getEnvInt("BROWSER_VIEWPORT_HEIGHT", 900),
		Locale:         getEnv("BROWSER_LOCALE", "en-NZ"),
	}

	scrapeConfig := ScrapeConfig{
		StoreMinConfidence:   getEnvFloat("SCRAPE_STORE_MIN_CONFIDENCE", 0.5),
		DealMinConfidence:    getEnvFloat("SCRAPE_DEAL_MIN_CONFIDENCE", 0.6),
		AnomalyUpperPct:      getEnvFloat("SCRAPE_ANOMALY_UPPER_PCT", 300),
		AnomalyLowerFraction: getEnvFloat("SCRAPE_ANOMALY_LOWER_FRACTION", 0.2),
		AnomalyWindowDays:    getEnvInt("SCRAPE_ANOMALY_WINDOW_DAYS", 30),
		StaleAfter:           getEnvDuration("SCRAPE_STALE_AFTER", 25*time.Hour),
		StaleResendAfter:     getEnvDuration("SCRAPE_STALE_RESEND_AFTER", 24*time.Hour),
	}

	dealConfig := DealConfig{
		HistoryWindowDays:  getEnvInt("DEAL_HISTORY_WINDOW_DAYS", 90),
		MinHistorySamples:  getEnvInt("DEAL_MIN_HISTORY_SAMPLES", 10),
		RobustZThreshold:   getEnvFloat("DEAL_ROBUST_Z_THRESHOLD", -1.5),
		NewLowMarginPct:    getEnvFloat("DEAL_NEW_LOW_MARGIN_PCT", 2),
		PriceInsightsBonus: getEnvBool("DEAL_PRICE_INSIGHTS_BONUS", true),
	}

	tripPlanConfig := TripPlanConfig{
		MaxSearchesPerRun: getEnvInt("TRIP_PLAN_MAX_SEARCHES", 6),
		SearchSpacing:     getEnvDuration("TRIP_PLAN_SEARCH_SPACING", 3*time.Second),
		TopPerDestination: getEnvInt("TRIP_PLAN_TOP_PER_DESTINATION", 3),
		MaxMatchesPerPlan: getEnvInt("TRIP_PLAN_MAX_MATCHES", 10),
		LockTimeout:       getEnvDuration("TRIP_PLAN_LOCK_TIMEOUT", 10*time.Minute),
		DefaultOrigin:     getEnv("TRIP_PLAN_DEFAULT_ORIGIN", "AKL"),
	}

	schedulerConfig := SchedulerConfig{
		Timezone:       getEnv("TZ", "UTC"),
		MorningScrape:  getEnv("SCHEDULE_MORNING_SCRAPE", "0 7 * * *"),
		EveningScrape:  getEnv("SCHEDULE_EVENING_SCRAPE", "0 19 * * *"),
		HealthCheck:    getEnv("SCHEDULE_HEALTH_CHECK", "0 * * * *"),
		TripPlanSearch: getEnv("SCHEDULE_TRIP_PLAN_SEARCH", "0 */6 * * *"),
		DealRating:     getEnv("SCHEDULE_DEAL_RATING", "0 */2 * * *"),
		Maintenance:    getEnv("SCHEDULE_MAINTENANCE", "30 3 * * *"),
		ArtifactMaxAge: getEnvDuration("ARTIFACT_MAX_AGE", 14*24*time.Hour),
		PriceRetention: getEnvDuration("PRICE_RETENTION", 365*24*time.Hour),
	}

	currencyConfig := CurrencyConfig{
		RateURL: getEnv("CURRENCY_RATE_URL", "https://open.er-api.com/v6/latest/NZD"),
		TTL:     getEnvDuration("CURRENCY_TTL", 6*time.Hour),
	}

	aiConfig := AIConfig{
		APIKey:   getEnv("AI_API_KEY", ""),
		BaseURL:  getEnv("AI_BASE_URL", ""),
		Model:    getEnv("AI_MODEL", ""),
		CacheTTL: getEnvDuration("AI_CACHE_TTL", 24*time.Hour),
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		DataDir:        getEnv("DATA_DIR", "./data"),
		APIEnabled:     getEnvBool("API_ENABLED", true),
		WorkerEnabled:  getEnvBool("WORKER_ENABLED", true),
		InitSchema:     getEnvBool("INIT_SCHEMA", true),
		UseTimescale:   getEnvBool("USE_TIMESCALE", false),
		LoggingConfig:  loggingConfig,
		PostgresConfig: postgresConfig,
		RedisConfig:    redisConfig,
		SerpAPIConfig:  serpConfig,
		Skyscanner:     skyscannerConfig,
		Amadeus:        amadeusConfig,
		Browser:        browserConfig,
		Scrape:         scrapeConfig,
		Deal:           dealConfig,
		TripPlan:       tripPlanConfig,
		Scheduler:      schedulerConfig,
		Currency:       currencyConfig,
		AI:             aiConfig,
	}, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}
