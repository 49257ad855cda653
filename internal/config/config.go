package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig
	Graph    GraphConfig
	Ledger   LedgerConfig
	Logging  LoggingConfig
	Auth     AuthConfig
	Payments PaymentsConfig
	Pricing  PricingConfig
	Rewards  RewardsConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MetricsEnabled    bool
	AllowedOriginsCSV string
}

// GraphConfig describes connectivity to the graph database holding the referral network.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
	TxTimeout      time.Duration
}

// LedgerConfig describes connectivity to the PostgreSQL token ledger.
type LedgerConfig struct {
	DSN            string
	MaxConnections int
	AutoMigrate    bool
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	Colored       bool
	IncludeCaller bool
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	JWTSecret          string
	Issuer             string
	AllowDevUserHeader bool
}

// PaymentsConfig holds the credential shared with the payment gateway. The
// confirmation webhook is disabled while WebhookSecret is empty.
type PaymentsConfig struct {
	WebhookSecret string
}

// PricingConfig controls how often the stored token price is re-read.
// Zero disables periodic reloads.
type PricingConfig struct {
	ReloadInterval time.Duration
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
	defaultLedgerMaxConns   = 10
	defaultIssuer           = "icorewards"
	defaultPriceReload      = time.Minute
)

// ErrMissingJWTSecret is returned when no signing secret is configured and the
// development header bypass is disabled.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required unless AUTH_ALLOW_DEV_HEADER is enabled")

// Load reads configuration from environment variables, applying defaults.
// A .env file in the working directory is honoured but never overrides
// variables that are already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			Colored:       parseBoolWithDefault("LOG_COLOR", false),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: defaultGraphMaxSessions,
		},
		Ledger: LedgerConfig{
			DSN:            os.Getenv("LEDGER_DSN"),
			MaxConnections: defaultLedgerMaxConns,
			AutoMigrate:    parseBoolWithDefault("LEDGER_AUTO_MIGRATE", true),
		},
		Auth: AuthConfig{
			JWTSecret:          os.Getenv("JWT_SECRET"),
			Issuer:             valueOrDefault("JWT_ISSUER", defaultIssuer),
			AllowDevUserHeader: parseBoolWithDefault("AUTH_ALLOW_DEV_HEADER", false),
		},
		Payments: PaymentsConfig{
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		},
		Pricing: PricingConfig{
			ReloadInterval: defaultPriceReload,
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	if err := parseInts([]intSetting{
		{"GRAPH_MAX_CONNECTIONS", &cfg.Graph.MaxConnections},
		{"LEDGER_MAX_CONNECTIONS", &cfg.Ledger.MaxConnections},
	}); err != nil {
		return Config{}, err
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout},
		{"GRAPH_TX_TIMEOUT", &cfg.Graph.TxTimeout},
		{"PRICE_RELOAD_INTERVAL", &cfg.Pricing.ReloadInterval},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.target = parsed
		}
	}

	cfg.HTTP.MetricsEnabled = parseBoolWithDefault("SERVER_METRICS_ENABLED", false)
	cfg.HTTP.AllowedOriginsCSV = os.Getenv("SERVER_ALLOWED_ORIGINS")

	rewards, err := loadRewards()
	if err != nil {
		return Config{}, err
	}
	cfg.Rewards = rewards

	if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowDevUserHeader {
		return Config{}, ErrMissingJWTSecret
	}

	return cfg, nil
}

// AllowedOrigins splits the configured CSV of CORS origins.
func (c HTTPConfig) AllowedOrigins() []string {
	if c.AllowedOriginsCSV == "" {
		return nil
	}
	var origins []string
	for _, part := range strings.Split(c.AllowedOriginsCSV, ",") {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

type intSetting struct {
	key    string
	target *int
}

// parseInts overwrites each target whose variable is set. Values that are not
// integers are errors.
func parseInts(settings []intSetting) error {
	for _, s := range settings {
		v := os.Getenv(s.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", s.key, v, err)
		}
		*s.target = parsed
	}
	return nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
