package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// PlaceholderURL and PlaceholderAnonKey are used when the backend is not configured
	PlaceholderURL     = "YOUR_SUPABASE_URL_PLACEHOLDER"
	PlaceholderAnonKey = "YOUR_SUPABASE_ANON_KEY_PLACEHOLDER"

	ProfileStoreREST     = "rest"
	ProfileStorePostgres = "postgres"
)

// Config holds the application configuration
type Config struct {
	BackendURL     string
	AnonKey        string
	BackendTimeout time.Duration
	Port           string
	CountryPrefix  string
	SessionFile    string
	ProfileStore   string
	DatabaseURL    string
	LogLevel       string
	LogDev         bool
	LogFile        string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           "8080",
		CountryPrefix:  "+40",
		SessionFile:    ".promovista/session.json",
		BackendTimeout: 15 * time.Second,
		ProfileStore:   ProfileStoreREST,
	}

	// Load backend URL and anon key; the EXPO_PUBLIC_* names are accepted so an
	// existing mobile .env can be reused as-is
	cfg.BackendURL = firstEnv("SUPABASE_URL", "EXPO_PUBLIC_SUPABASE_URL")
	if cfg.BackendURL == "" {
		cfg.BackendURL = PlaceholderURL
	}
	cfg.AnonKey = firstEnv("SUPABASE_ANON_KEY", "EXPO_PUBLIC_SUPABASE_ANON_KEY")
	if cfg.AnonKey == "" {
		cfg.AnonKey = PlaceholderAnonKey
	}
	if !cfg.UsesPlaceholders() {
		u, err := url.Parse(cfg.BackendURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("SUPABASE_URL must be an absolute URL, got %q", cfg.BackendURL)
		}
		cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	}

	if timeout := os.Getenv("BACKEND_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("BACKEND_TIMEOUT must be a positive duration, got %q", timeout)
		}
		cfg.BackendTimeout = d
	}

	// Load PORT (optional, defaults to 8080)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if prefix := os.Getenv("COUNTRY_PREFIX"); prefix != "" {
		if !strings.HasPrefix(prefix, "+") {
			return nil, fmt.Errorf("COUNTRY_PREFIX must start with '+', got %q", prefix)
		}
		cfg.CountryPrefix = prefix
	}

	// SESSION_FILE="" keeps the session in memory only
	if file, ok := os.LookupEnv("SESSION_FILE"); ok {
		cfg.SessionFile = file
	}

	if store := os.Getenv("PROFILE_STORE"); store != "" {
		cfg.ProfileStore = strings.ToLower(store)
	}
	switch cfg.ProfileStore {
	case ProfileStoreREST:
	case ProfileStorePostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required when PROFILE_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("PROFILE_STORE must be %q or %q, got %q", ProfileStoreREST, ProfileStorePostgres, cfg.ProfileStore)
	}

	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	cfg.LogDev = os.Getenv("LOG_DEV") == "1" || os.Getenv("LOG_DEV") == "true"
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

// UsesPlaceholders reports whether the backend URL or key was left unconfigured
func (c *Config) UsesPlaceholders() bool {
	return c.BackendURL == PlaceholderURL || c.AnonKey == PlaceholderAnonKey
}

// PlaceholderWarning returns the operator-facing warning for an unconfigured
// backend, or "" when both values are set.
func (c *Config) PlaceholderWarning() string {
	if !c.UsesPlaceholders() {
		return ""
	}
	return "Supabase URL or anon key is not configured. " +
		"Create a .env file next to the binary with:\n" +
		"SUPABASE_URL=your-project-url\n" +
		"SUPABASE_ANON_KEY=your-anon-key\n" +
		"and restart. Every backend call will fail until then."
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
