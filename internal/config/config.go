package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config aggregates every runtime setting, loaded from the environment.
type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	DataDir        string        `envconfig:"DATA_DIR" default:"./data"`
	JWTSecret      string        `envconfig:"JWT_SECRET" default:"converse-dev-secret-change-me"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	PingInterval   time.Duration `envconfig:"WS_PING_INTERVAL" default:"54s"`
	PongWait       time.Duration `envconfig:"WS_PONG_WAIT" default:"60s"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.PingInterval >= cfg.PongWait {
		return nil, fmt.Errorf("WS_PING_INTERVAL (%s) must be shorter than WS_PONG_WAIT (%s)",
			cfg.PingInterval, cfg.PongWait)
	}
	return &cfg, nil
}

// Addr normalizes the listen address. Both "8080" and ":8080" are accepted.
func (c *Config) Addr() string {
	port := strings.TrimSpace(c.Port)
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

// SlogLevel maps the configured level name onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
