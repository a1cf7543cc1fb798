package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

// AppConfig holds the complete configuration for the player client and the mirror.
type AppConfig struct {
	Environment  string             `mapstructure:"environment"`
	LogLevel     string             `mapstructure:"log_level"`
	ServiceName  string             `mapstructure:"service_name"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Leaderboard  LeaderboardConfig  `mapstructure:"leaderboard"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Server       ServerConfig       `mapstructure:"server"`
	Events       EventsConfig       `mapstructure:"events"`
	Postgres     PostgresConfig     `mapstructure:"postgres"`
	Mirror       MirrorConfig       `mapstructure:"mirror"`
}

type RemoteConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type CacheConfig struct {
	Backend       string `mapstructure:"backend"`
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

type RegistrationConfig struct {
	ProceedDelay time.Duration `mapstructure:"proceed_delay"`
	Timezone     string        `mapstructure:"timezone"`
}

type LeaderboardConfig struct {
	Limit int `mapstructure:"limit"`
}

type ConnectivityConfig struct {
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type EventsConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type PostgresConfig struct {
	URI      string `mapstructure:"uri"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

type MirrorConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	WorkerCount   int           `mapstructure:"worker_count"`
}

// Load reads defaults, then the optional config file, then environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "player")
	v.SetDefault("remote.timeout", time.Duration(0))
	v.SetDefault("remote.max_attempts", 1)
	v.SetDefault("cache.backend", CacheBackendFile)
	v.SetDefault("cache.path", "player_cache.json")
	v.SetDefault("cache.key_prefix", "quest:")
	v.SetDefault("registration.proceed_delay", 1500*time.Millisecond)
	v.SetDefault("registration.timezone", "Asia/Kolkata")
	v.SetDefault("leaderboard.limit", 10)
	v.SetDefault("connectivity.probe_interval", 5*time.Second)
	v.SetDefault("server.addr", ":8081")
	v.SetDefault("events.topic", "player-events")
	v.SetDefault("events.group_id", "mirror-group")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("mirror.batch_size", 500)
	v.SetDefault("mirror.flush_interval", 500*time.Millisecond)
	v.SetDefault("mirror.worker_count", 4)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Nested keys are not picked up by Unmarshal unless bound explicitly.
	for key, env := range map[string]string{
		"service_name":                "SERVICE_NAME",
		"environment":                 "ENVIRONMENT",
		"log_level":                   "LOG_LEVEL",
		"remote.base_url":             "REMOTE_BASE_URL",
		"remote.api_key":              "REMOTE_API_KEY",
		"remote.timeout":              "REMOTE_TIMEOUT",
		"remote.max_attempts":         "REMOTE_MAX_ATTEMPTS",
		"cache.backend":               "CACHE_BACKEND",
		"cache.path":                  "CACHE_PATH",
		"cache.redis_addr":            "CACHE_REDIS_ADDR",
		"cache.redis_password":        "CACHE_REDIS_PASSWORD",
		"cache.redis_db":              "CACHE_REDIS_DB",
		"cache.key_prefix":            "CACHE_KEY_PREFIX",
		"registration.proceed_delay":  "REGISTRATION_PROCEED_DELAY",
		"registration.timezone":       "REGISTRATION_TIMEZONE",
		"leaderboard.limit":           "LEADERBOARD_LIMIT",
		"connectivity.probe_interval": "CONNECTIVITY_PROBE_INTERVAL",
		"server.addr":                 "SERVER_ADDR",
		"events.brokers":              "EVENTS_BROKERS",
		"events.topic":                "EVENTS_TOPIC",
		"events.group_id":             "EVENTS_GROUP_ID",
		"postgres.uri":                "POSTGRES_URI",
		"postgres.max_conns":          "POSTGRES_MAX_CONNS",
		"postgres.min_conns":          "POSTGRES_MIN_CONNS",
		"mirror.batch_size":           "MIRROR_BATCH_SIZE",
		"mirror.flush_interval":       "MIRROR_FLUSH_INTERVAL",
		"mirror.worker_count":         "MIRROR_WORKER_COUNT",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// A comma separated EVENTS_BROKERS arrives as a single string.
	brokers := v.GetString("events.brokers")
	if brokers != "" && (len(config.Events.Brokers) <= 1) {
		config.Events.Brokers = splitList(brokers)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings every binary needs.
func (c *AppConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	return nil
}

// ValidatePlayer checks the settings of the player client.
func (c *AppConfig) ValidatePlayer() error {
	if c.Remote.BaseURL == "" {
		return errors.New("remote.base_url is required")
	}
	if c.Remote.MaxAttempts < 1 {
		return errors.New("remote.max_attempts must be at least 1")
	}
	switch c.Cache.Backend {
	case CacheBackendFile:
		if c.Cache.Path == "" {
			return errors.New("cache.path is required for the file backend")
		}
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q", CacheBackendFile, CacheBackendRedis)
	}
	if c.Leaderboard.Limit < 1 {
		return errors.New("leaderboard.limit must be positive")
	}
	if c.Connectivity.ProbeInterval <= 0 {
		return errors.New("connectivity.probe_interval must be positive")
	}
	return nil
}

// ValidateMirror checks the extra settings the event mirror needs.
func (c *AppConfig) ValidateMirror() error {
	if len(c.Events.Brokers) == 0 {
		return errors.New("events.brokers is required")
	}
	if c.Events.Topic == "" {
		return errors.New("events.topic is required")
	}
	if c.Postgres.URI == "" {
		return errors.New("postgres.uri is required")
	}
	if c.Mirror.BatchSize < 1 || c.Mirror.WorkerCount < 1 {
		return errors.New("mirror.batch_size and mirror.worker_count must be positive")
	}
	return nil
}

// EventsEnabled reports whether player events should be published.
func (c *AppConfig) EventsEnabled() bool {
	return len(c.Events.Brokers) > 0 && c.Events.Topic != ""
}
