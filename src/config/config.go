package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ExpiryCutoffPolicy decides which period an expired-worthless option group
// counts in when the premium was collected in a different period than the
// expiration. The reference data leaves this ambiguous, so it is
// configurable rather than hard-coded.
type ExpiryCutoffPolicy string

const (
	// CutoffPremium buckets the group in the period its premium was
	// collected (the last sell execution).
	CutoffPremium ExpiryCutoffPolicy = "premium"
	// CutoffExpiration buckets the group in the period of the expiration
	// date itself.
	CutoffExpiration ExpiryCutoffPolicy = "expiration"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port          string
	DatabasePath  string
	MigrationsDir string
	LogLevel      string

	// Broker API settings
	BrokerAPIToken       string
	BrokerBaseURL        string
	TokenValidityMinutes int
	HistoryPageSize      int

	// Engine settings
	RefreshSchedule       string
	ExpiryCutoff          ExpiryCutoffPolicy
	ReconcileBoundaryDays int
	// LookbackDays bounds the history fetch window. Zero means year-to-date.
	LookbackDays int

	// Optional reference totals for reconciliation. Nil disables it.
	ReferenceShortTerm *decimal.Decimal
	ReferenceLongTerm  *decimal.Decimal

	// HTTP settings
	RateLimitInterval time.Duration
	RateLimitBurst    int
	AllowedOrigins    []string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// Try the current directory first, then the parent (common when running
	// from /backend).
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}
	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	brokerToken := getRequiredEnv("PUBLIC_API_TOKEN")

	cutoff := ExpiryCutoffPolicy(strings.ToLower(getEnv("EXPIRY_CUTOFF_POLICY", string(CutoffPremium))))
	if cutoff != CutoffPremium && cutoff != CutoffExpiration {
		log.Printf("Invalid EXPIRY_CUTOFF_POLICY '%s', using default: %s", cutoff, CutoffPremium)
		cutoff = CutoffPremium
	}

	Cfg = &AppConfig{
		// Core
		Port:          getEnv("PORT", "8080"),
		DatabasePath:  getEnv("DATABASE_PATH", "./tradefolio.db"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "db/migrations"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		// Broker
		BrokerAPIToken:       brokerToken,
		BrokerBaseURL:        getEnv("PUBLIC_API_BASE_URL", "https://api.public.com"),
		TokenValidityMinutes: getEnvAsInt("TOKEN_VALIDITY_MINUTES", 120),
		HistoryPageSize:      getEnvAsInt("HISTORY_PAGE_SIZE", 1000),

		// Engine
		RefreshSchedule:       getEnv("REFRESH_SCHEDULE", "@every 5m"),
		ExpiryCutoff:          cutoff,
		ReconcileBoundaryDays: getEnvAsInt("RECONCILE_BOUNDARY_DAYS", 3),
		LookbackDays:          getEnvAsInt("LOOKBACK_DAYS", 0),
		ReferenceShortTerm:    getEnvAsDecimal("REFERENCE_SHORT_TERM"),
		ReferenceLongTerm:     getEnvAsDecimal("REFERENCE_LONG_TERM"),

		// HTTP
		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 100*time.Millisecond),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 30),
		AllowedOrigins:    getEnvAsList("ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, RefreshSchedule=%s, ExpiryCutoff=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.RefreshSchedule, Cfg.ExpiryCutoff)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start.", key)
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getEnvAsDecimal retrieves an optional environment variable as a decimal.
// Missing or malformed values return nil.
func getEnvAsDecimal(key string) *decimal.Decimal {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return nil
	}
	value, err := decimal.NewFromString(strings.TrimSpace(valueStr))
	if err != nil {
		log.Printf("Invalid decimal value for %s ('%s'), ignoring", key, valueStr)
		return nil
	}
	return &value
}

// getEnvAsList retrieves a comma-separated environment variable as a slice.
func getEnvAsList(key, fallback string) []string {
	valueStr := getEnv(key, fallback)
	parts := strings.Split(valueStr, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
