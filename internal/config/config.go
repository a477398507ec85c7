package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName  = "linktrack"
	defaultServicePort  = 8094
	defaultVersion      = "0.1.0"
	defaultBufferSize   = 1000
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"
	defaultDBHost       = "localhost"
	defaultDBPort       = 5432
	defaultDBName       = "linktrack"
	defaultDBUser       = "postgres"
	defaultDBSSLMode    = "disable"

	defaultMaxClicksPerMinute = 30
	defaultWindowSeconds      = 60

	defaultMaxHops          = 8
	defaultHopTimeoutS      = 5
	defaultSettlingDelayMs  = 2500
	defaultDedupWindowHours = 720

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Follower  FollowerConfig  `yaml:"follower"`
	Dedup     DedupConfig     `yaml:"dedup"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	Port       int    `env:"LINKTRACK_PORT"   yaml:"port"`
	Debug      bool   `env:"APP_DEBUG"        yaml:"debug"`
	HMACSecret string `env:"LINKTRACK_SECRET" yaml:"hmac_secret"`
	// BaseURL is the externally visible origin used to build tracking links.
	BaseURL string `env:"LINKTRACK_BASE_URL" yaml:"base_url"`
	// FallbackURL is where visitors are sent when redirect resolution fails.
	FallbackURL string `env:"LINKTRACK_FALLBACK_URL" yaml:"fallback_url"`
	// RequireSignature rejects unsigned /redirect requests when true.
	RequireSignature bool `yaml:"require_signature"`
	// BufferSize is the capacity of the attribution recorder queue.
	BufferSize int `yaml:"buffer_size"`
	// SettlingDelay is how long the bridge page waits before reading the
	// browser URL. A heuristic, not a readiness signal.
	SettlingDelay time.Duration `yaml:"settling_delay"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_LINKTRACK_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_LINKTRACK_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_LINKTRACK_USER"     yaml:"user"`
	Password string `env:"POSTGRES_LINKTRACK_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_LINKTRACK_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_LINKTRACK_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the optional Redis session-index configuration.
// When Address is empty the dedup policy falls back to Postgres lookups.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// FollowerConfig holds redirect-chain follower configuration.
type FollowerConfig struct {
	// MaxHops is the hop ceiling for a single chain.
	MaxHops int `yaml:"max_hops"`
	// HopTimeout bounds each individual hop fetch.
	HopTimeout time.Duration `yaml:"hop_timeout"`
	// UserAgent is sent on every hop request. Some ad servers refuse
	// requests with empty or default Go user agents.
	UserAgent string `yaml:"user_agent"`
	// RetryHops enables a single bounded retry per failed hop.
	RetryHops bool `yaml:"retry_hops"`
}

// DedupConfig holds click deduplication configuration.
type DedupConfig struct {
	// Window is how far back an IP+campaign pair is considered the same
	// visitor. Beyond it a fresh click identifier is minted.
	Window time.Duration `yaml:"window"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	MaxClicksPerMinute int `yaml:"max_clicks_per_minute"`
	WindowSeconds      int `yaml:"window_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path and applies defaults.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	setDefaults(cfg)

	// Re-apply env overrides after defaults (env always wins)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setFollowerDefaults(&cfg.Follower)
	setDedupDefaults(&cfg.Dedup)
	setRateLimitDefaults(&cfg.RateLimit)
	setLoggingDefaults(&cfg.Logging)
}

// setServiceDefaults applies default values to ServiceConfig.
func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if svc.BufferSize == 0 {
		svc.BufferSize = defaultBufferSize
	}
	if svc.SettlingDelay == 0 {
		svc.SettlingDelay = defaultSettlingDelayMs * time.Millisecond
	}
}

// setDatabaseDefaults applies default values to DatabaseConfig.
func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

// setFollowerDefaults applies default values to FollowerConfig.
func setFollowerDefaults(f *FollowerConfig) {
	if f.MaxHops == 0 {
		f.MaxHops = defaultMaxHops
	}
	if f.HopTimeout == 0 {
		f.HopTimeout = defaultHopTimeoutS * time.Second
	}
	if f.UserAgent == "" {
		f.UserAgent = defaultUserAgent
	}
}

// setDedupDefaults applies default values to DedupConfig.
func setDedupDefaults(d *DedupConfig) {
	if d.Window == 0 {
		d.Window = defaultDedupWindowHours * time.Hour
	}
}

// setRateLimitDefaults applies default values to RateLimitConfig.
func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.MaxClicksPerMinute == 0 {
		rl.MaxClicksPerMinute = defaultMaxClicksPerMinute
	}
	if rl.WindowSeconds == 0 {
		rl.WindowSeconds = defaultWindowSeconds
	}
}

// setLoggingDefaults applies default values to LoggingConfig.
func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if c.Service.FallbackURL == "" {
		return &ValidationError{
			Field:   "service.fallback_url",
			Message: "is required",
		}
	}
	if c.Service.RequireSignature && c.Service.HMACSecret == "" {
		return &ValidationError{
			Field:   "service.hmac_secret",
			Message: "is required when require_signature is set",
		}
	}
	return nil
}
