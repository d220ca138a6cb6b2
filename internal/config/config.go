package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Supabase
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string
	StripeTestClockID   string

	// Workflow engine
	WorkflowWebhookURL string
	// WorkflowCallbackToken guards POST /progress when set.
	WorkflowCallbackToken string

	// Database
	DatabaseURL string

	// Redis (optional, webhook de-duplication)
	RedisURL string

	// Quota
	FreeLimit    int
	ReauthWindow time.Duration

	// Background jobs
	ReconcileSchedule string

	// Server
	Port               string
	Environment        string
	FrontendURL        string
	CORSAllowedOrigins []string
	LogLevel           string
}

func Load() (*Config, error) {
	cfg := &Config{
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "estimate-drafts"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceID:       getEnv("STRIPE_PRICE_ID", ""),
		StripeTestClockID:   getEnv("STRIPE_TEST_CLOCK_ID", ""),

		WorkflowWebhookURL:    getEnv("WORKFLOW_WEBHOOK_URL", ""),
		WorkflowCallbackToken: getEnv("WORKFLOW_CALLBACK_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		FreeLimit:    getEnvInt("FREE_LIMIT", 3),
		ReauthWindow: getEnvDuration("REAUTH_WINDOW", 5*time.Minute),

		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 1h"),

		Port:        getEnv("PORT", "4000"),
		Environment: getEnv("ENVIRONMENT", "development"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:5174",
			"http://localhost:3000",
			"https://ai-estimate-frontend.vercel.app",
		}),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceRoleKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.StripePriceID == "" {
		return fmt.Errorf("STRIPE_PRICE_ID is required")
	}
	if c.IsProduction() && c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
	}
	if c.WorkflowWebhookURL == "" {
		return fmt.Errorf("WORKFLOW_WEBHOOK_URL is required")
	}
	if c.FreeLimit < 0 {
		return fmt.Errorf("FREE_LIMIT must not be negative")
	}
	return nil
}

// IsProduction reports whether webhook payloads must carry a valid signature.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// StripeEnvTag is stored in customer metadata so test and live customers can be told apart.
func (c *Config) StripeEnvTag() string {
	if c.IsProduction() {
		return "prod"
	}
	return "stg"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
