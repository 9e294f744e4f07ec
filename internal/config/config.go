package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process-wide settings. It is read once at startup.
type Config struct {
	Port           string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	TMDbAPIKey     string
	TMDbBaseURL    string
	DBPath         string
	LogFile        string
	RequestTimeout time.Duration
	SessionTTL     time.Duration
}

const (
	defaultPort           = "8080"
	defaultDBPath         = "./moviegpt.db"
	defaultRequestTimeout = 30 * time.Second
	defaultSessionTTL     = 30 * time.Minute
)

// Load reads the configuration from the environment. Both API keys are
// required.
func Load() (*Config, error) {
	cfg, err := LoadWithoutKeys()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithoutKeys is Load minus API key validation, for tools that only read
// local state.
func LoadWithoutKeys() (*Config, error) {
	cfg := &Config{
		Port:          envOr("PORT", defaultPort),
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:   strings.TrimSpace(os.Getenv("OPENAI_MODEL")),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		TMDbAPIKey:    strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDbBaseURL:   strings.TrimSpace(os.Getenv("TMDB_BASE_URL")),
		DBPath:        envOr("DB_PATH", defaultDBPath),
		LogFile:       strings.TrimSpace(os.Getenv("LOG_FILE")),
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", defaultRequestTimeout); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", defaultSessionTTL); err != nil {
		return nil, err
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.TMDbAPIKey == "" {
		missing = append(missing, "TMDB_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// HistoryEnabled reports whether search cycles should be recorded.
func (c *Config) HistoryEnabled() bool {
	return c.DBPath != "" && !strings.EqualFold(c.DBPath, "off")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, errors.New(key + " must be positive")
	}
	return d, nil
}
