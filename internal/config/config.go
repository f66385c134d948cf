package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSessionSecret is the development fallback for SESSION_SECRET.
const DefaultSessionSecret = "dev-session-secret"

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// POI backend
	APIURL       string
	FetchTimeout time.Duration
	LocationsTTL time.Duration

	// Map
	MapboxToken    string
	SearchDebounce time.Duration

	// Sessions
	SessionTTL    time.Duration
	SessionSecret string

	// Operator login for the proposal log. Local login needs both the
	// email and a bcrypt hash; LDAP login needs a server.
	OperatorEmail        string
	OperatorPasswordHash string
	OperatorTokenTTL     time.Duration
	LDAPServer           string
	LDAPDomain           string
	LDAPBaseDN           string

	// Proposal log, optional
	DatabaseURL string
	BunDebug    bool

	AllowedOrigins []string
}

// Load loads environment variables and returns a Config struct
func Load() *Config {
	_ = godotenv.Load()

	// Parse allowed origins from env (comma-separated)
	allowedOrigins := strings.Split(
		getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		",",
	)

	return &Config{
		Port:           getEnv("APP_PORT", "8780"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", ""),
		APIURL:         strings.TrimRight(getEnv("API_URL", "http://localhost:8000"), "/"),
		FetchTimeout:   getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second),
		LocationsTTL:   getEnvAsDuration("LOCATIONS_TTL", time.Minute),
		MapboxToken:    getEnv("MAPBOX_TOKEN", ""),
		SearchDebounce: time.Duration(getEnvAsInt("SEARCH_DEBOUNCE_MS", 600)) * time.Millisecond,
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		SessionSecret:  getEnv("SESSION_SECRET", DefaultSessionSecret),

		OperatorEmail:        getEnv("OPERATOR_EMAIL", ""),
		OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
		OperatorTokenTTL:     getEnvAsDuration("OPERATOR_TOKEN_TTL", 8*time.Hour),
		LDAPServer:           getEnv("LDAP_SERVER", ""),
		LDAPDomain:           getEnv("LDAP_DOMAIN", ""),
		LDAPBaseDN:           getEnv("LDAP_BASE_DN", ""),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		BunDebug:       getEnvAsBool("BUNDEBUG", false),
		AllowedOrigins: allowedOrigins,
	}
}

// IsProduction reports whether ENVIRONMENT is "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects settings that must not reach production.
func (c *Config) Validate() error {
	if !c.IsProduction() {
		return nil
	}
	if c.SessionSecret == DefaultSessionSecret {
		return errors.New("SESSION_SECRET must be set in production")
	}
	if len(c.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters in production")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("invalid bool for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}

func getEnvAsInt(key string, fallback int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		log.Printf("invalid int for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}

// getEnvAsDuration accepts Go duration strings ("90s", "5m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val < 0 {
		log.Printf("invalid duration for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}
