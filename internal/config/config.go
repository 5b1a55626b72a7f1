package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	APIURL         string        `env:"XAI_API_URL" default:"https://api.xai-community.dev"`
	RequestTimeout time.Duration `env:"XAI_REQUEST_TIMEOUT" default:"15s"`

	SessionStore string `env:"XAI_SESSION_STORE" default:"file"` // "file" or "redis"
	SessionFile  string `env:"XAI_SESSION_FILE"`                 // defaults to ~/.config/xai-community/session.json
	SessionKey   string `env:"XAI_SESSION_KEY"`                  // optional 64-char hex AES-256 key for the session file
	RedisURL     string `env:"XAI_REDIS_URL"`

	SessionMaxAge      time.Duration `env:"XAI_SESSION_MAX_AGE" default:"24h"`
	SessionMaxRefresh  int           `env:"XAI_SESSION_MAX_REFRESHES" default:"24"`
	SessionCheckEvery  time.Duration `env:"XAI_SESSION_CHECK_INTERVAL" default:"1m"`
	SessionRefreshSkew time.Duration `env:"XAI_SESSION_REFRESH_SKEW" default:"60s"`

	CacheTTL          time.Duration `env:"XAI_CACHE_TTL" default:"30s"`
	RequestsPerSecond float64       `env:"XAI_REQUESTS_PER_SECOND" default:"0"` // 0 disables client-side rate limiting

	LogLevel  string `env:"XAI_LOG_LEVEL" default:"info"`
	LogFormat string `env:"XAI_LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if cfg.SessionFile == "" {
		path, err := defaultSessionFile()
		if err != nil {
			return nil, err
		}
		cfg.SessionFile = path
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("XAI_API_URL must be an absolute URL, got %q", cfg.APIURL)
	}

	switch cfg.SessionStore {
	case "file":
	case "redis":
		if cfg.RedisURL == "" {
			return fmt.Errorf("XAI_REDIS_URL is required when XAI_SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("XAI_SESSION_STORE must be \"file\" or \"redis\", got %q", cfg.SessionStore)
	}

	if cfg.SessionKey != "" {
		keyBytes, err := hex.DecodeString(cfg.SessionKey)
		if err != nil {
			return fmt.Errorf("XAI_SESSION_KEY must be valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("XAI_SESSION_KEY must be exactly 64 hex characters (32 bytes), got %d bytes", len(keyBytes))
		}
	}

	if cfg.SessionMaxRefresh < 1 {
		return fmt.Errorf("XAI_SESSION_MAX_REFRESHES must be at least 1, got %d", cfg.SessionMaxRefresh)
	}

	return nil
}

func defaultSessionFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory, set XAI_SESSION_FILE explicitly: %w", err)
	}
	return filepath.Join(dir, "xai-community", "session.json"), nil
}
