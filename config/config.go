package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultJWTSecret     = "storefront-dev-access-secret-change-me"
	defaultRefreshSecret = "storefront-dev-refresh-secret-change-me"
)

// Config holds all configuration for the application
type Config struct {
	Environment string
	Port        string

	// Optional TLS; both must be set
	TLSCertFile string
	TLSKeyFile  string

	// MongoDB
	ConnectionString string
	DatabaseName     string
	DBHealthInterval time.Duration

	// Tokens
	JWTSecret          string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	// Email Configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	AdminEmail   string

	// Seed admin used by cmd/init_server
	AdminPassword string

	// Push provider credentials (service account JSON)
	FirebaseServiceAccount string

	// Frontend links embedded in emails and allowed by CORS
	ClientURL     string
	AdminPanelURL string

	// Optional retry queue for failed notification sends
	RedisURL string

	// Rate Limiting Configuration
	RateLimitRequests int
	RateLimitBurst    int

	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "5000"),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		ConnectionString: getEnv("CONNECTION_STRING", "mongodb://localhost:27017"),
		DatabaseName:     getEnv("DB_NAME", "storefront"),
		DBHealthInterval: getEnvAsDuration("DB_HEALTH_INTERVAL", 5*time.Minute),

		JWTSecret:          getEnv("JWT_SECRET", defaultJWTSecret),
		RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", defaultRefreshSecret),
		AccessTokenTTL:     getEnvAsDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getEnvAsDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("EMAIL_USER", ""),
		SMTPPassword: getEnv("EMAIL_PASS", ""),
		AdminEmail:   getEnv("ADMIN_EMAIL", ""),

		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		FirebaseServiceAccount: getEnv("FIREBASE_SERVICE_ACCOUNT", ""),

		ClientURL:     strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:3000"), "/"),
		AdminPanelURL: strings.TrimRight(getEnv("ADMIN_PANEL_URL", "http://localhost:3001"), "/"),

		RedisURL: getEnv("REDIS_URL", ""),

		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 50),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15m") or plain seconds ("900").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins lists the frontends allowed by CORS. EXTRA_ORIGINS
// appends comma-separated origins.
func (c *Config) AllowedOrigins() []string {
	origins := []string{}
	for _, o := range []string{c.ClientURL, c.AdminPanelURL} {
		if o != "" {
			origins = append(origins, o)
		}
	}
	return append(origins, getEnvAsStringSlice("EXTRA_ORIGINS", nil)...)
}

// DebugErrors controls whether 500 responses carry stack traces.
func (c *Config) DebugErrors() bool {
	return getEnvAsBool("DEBUG_ERRORS", !c.IsProduction())
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}
	if c.ConnectionString == "" {
		return fmt.Errorf("CONNECTION_STRING is required")
	}
	if c.JWTSecret == "" || c.RefreshTokenSecret == "" {
		return fmt.Errorf("JWT_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if c.JWTSecret == c.RefreshTokenSecret {
		return fmt.Errorf("JWT_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.IsProduction() && (c.JWTSecret == defaultJWTSecret || c.RefreshTokenSecret == defaultRefreshSecret) {
		return fmt.Errorf("default token secrets are not allowed in production")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Environment: %s, Port: %s, Database: %s}", c.Environment, c.Port, c.DatabaseName)
}
