package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	BackendURL          string        `mapstructure:"BACKEND_URL"`
	BackendTimeout      time.Duration `mapstructure:"BACKEND_TIMEOUT"`
	PathStyle           string        `mapstructure:"PATH_STYLE"`
	LoadPolicy          string        `mapstructure:"LOAD_POLICY"`
	SnapshotTTL         time.Duration `mapstructure:"SNAPSHOT_TTL"`
	SnapshotMaxEntries  int           `mapstructure:"SNAPSHOT_MAX_ENTRIES"`
	SnapshotDatabaseURL string        `mapstructure:"SNAPSHOT_DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	MountIdleTTL        time.Duration `mapstructure:"MOUNT_IDLE_TTL"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	ChatSocketURL       string        `mapstructure:"CHAT_SOCKET_URL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("BACKEND_TIMEOUT", "0s") // no timeout unless configured
	v.SetDefault("PATH_STYLE", "legacy")
	v.SetDefault("LOAD_POLICY", "settle")
	v.SetDefault("SNAPSHOT_TTL", "10m")
	v.SetDefault("SNAPSHOT_MAX_ENTRIES", 256)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("MOUNT_IDLE_TTL", "30m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("BACKEND_URL")
	v.BindEnv("BACKEND_TIMEOUT")
	v.BindEnv("PATH_STYLE")
	v.BindEnv("LOAD_POLICY")
	v.BindEnv("SNAPSHOT_TTL")
	v.BindEnv("SNAPSHOT_MAX_ENTRIES")
	v.BindEnv("SNAPSHOT_DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("MOUNT_IDLE_TTL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("CHAT_SOCKET_URL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); requests without a token get the dev session.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// LegacyPaths reports whether resource clients keep the backend's
// per-resource path conventions (/update/, /delete/ suffixes).
func (c *Config) LegacyPaths() bool {
	return c.PathStyle != "rest"
}

// FailBatch reports whether multi-resource screens use the all-or-nothing
// load policy instead of settling each slot independently.
func (c *Config) FailBatch() bool {
	return c.LoadPolicy == "fail-batch"
}

// Validate checks that the configuration is usable before the server starts.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("BACKEND_URL is not a valid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BACKEND_URL scheme must be http or https, got %q", u.Scheme)
	}
	if c.PathStyle != "legacy" && c.PathStyle != "rest" {
		return fmt.Errorf("PATH_STYLE must be \"legacy\" or \"rest\", got %q", c.PathStyle)
	}
	if c.LoadPolicy != "settle" && c.LoadPolicy != "fail-batch" {
		return fmt.Errorf("LOAD_POLICY must be \"settle\" or \"fail-batch\", got %q", c.LoadPolicy)
	}
	if c.BackendTimeout < 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must not be negative")
	}
	if c.SnapshotMaxEntries <= 0 {
		return fmt.Errorf("SNAPSHOT_MAX_ENTRIES must be positive, got %d", c.SnapshotMaxEntries)
	}
	if c.ChatSocketURL != "" {
		cu, err := url.Parse(c.ChatSocketURL)
		if err != nil || (cu.Scheme != "ws" && cu.Scheme != "wss") {
			return fmt.Errorf("CHAT_SOCKET_URL must be a ws:// or wss:// url")
		}
	}
	return nil
}
