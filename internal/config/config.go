// Package config centralises configuration parsing for the mirror jobs and the journal API.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration values.
type Config struct {
	GarminBaseURL  string
	GarminTokenURL string
	GarminClientID string
	GarminEmail    string
	GarminPassword string

	NotionBaseURL  string
	NotionToken    string
	NotionVersion  string
	ActivitiesDBID string
	GearDBID       string
	HealthDBID     string
	CoachDBID      string
	PropertiesFile string
	ActivityWindow int
	GearWindow     int
	CoachLookback  time.Duration
	ChartLookback  time.Duration
	HTTPTimeout    time.Duration
	GeminiAPIKey   string
	GeminiModel    string
	ChartBaseURL   string
	ChartWidth     int
	ChartHeight    int
	PostgresURL    string
	KafkaBrokers   []string
	EventsTopic    string
	PushgatewayURL string
	SentryDSN      string
	Environment    string
	LogLevel       string
	LogFormat      string
	HTTPAddress    string
	JWTSecret      string
	JWTIssuer      string
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
// Optional integrations (Postgres, Kafka, Pushgateway, Sentry, the gear/health/coach databases)
// stay disabled while their variable is empty.
func Load() Config {
	cfg := Config{
		GarminBaseURL:  getEnv("GARMIN_BASE_URL", "https://connectapi.garmin.com"),
		GarminTokenURL: getEnv("GARMIN_TOKEN_URL", "https://connectapi.garmin.com/oauth-service/oauth/token"),
		GarminClientID: getEnv("GARMIN_CLIENT_ID", "garmin-connect-mobile"),
		GarminEmail:    os.Getenv("GARMIN_EMAIL"),
		GarminPassword: os.Getenv("GARMIN_PASSWORD"),

		NotionBaseURL:  getEnv("NOTION_BASE_URL", "https://api.notion.com/v1"),
		NotionToken:    os.Getenv("NOTION_TOKEN"),
		NotionVersion:  getEnv("NOTION_VERSION", "2022-06-28"),
		ActivitiesDBID: os.Getenv("NOTION_DB_ID"),
		GearDBID:       os.Getenv("NOTION_GEAR_DB_ID"),
		HealthDBID:     os.Getenv("NOTION_HEALTH_DB_ID"),
		CoachDBID:      os.Getenv("NOTION_COACH_DB_ID"),
		PropertiesFile: os.Getenv("PROPERTIES_FILE"),

		ActivityWindow: getIntEnv("ACTIVITY_WINDOW", 10),
		GearWindow:     getIntEnv("GEAR_WINDOW", 5),
		CoachLookback:  getDurationEnv("COACH_LOOKBACK", 7*24*time.Hour),
		ChartLookback:  getDurationEnv("CHART_LOOKBACK", 30*24*time.Hour),
		HTTPTimeout:    getDurationEnv("HTTP_TIMEOUT", 30*time.Second),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		ChartBaseURL: getEnv("CHART_BASE_URL", "https://quickchart.io/chart"),
		ChartWidth:   getIntEnv("CHART_WIDTH", 600),
		ChartHeight:  getIntEnv("CHART_HEIGHT", 300),

		PostgresURL:    os.Getenv("POSTGRES_URL"),
		EventsTopic:    getEnv("EVENTS_TOPIC", "garmin.mirror.v1"),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),

		HTTPAddress: getEnv("HTTP_ADDRESS", ":8080"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:   getEnv("JWT_ISSUER", "garmin-to-notion"),
	}

	cfg.KafkaBrokers = splitAndTrim(os.Getenv("KAFKA_BROKERS"))
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
