package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Snapshots SnapshotConfig  `yaml:"snapshots" mapstructure:"snapshots"`
	Stats     StatsConfig     `yaml:"stats" mapstructure:"stats"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// PrivacyConfig controls which detection rules are active.
// Patterns lists the enabled rule keys; "all" enables every rule.
type PrivacyConfig struct {
	Enabled        bool            `yaml:"enabled" mapstructure:"enabled"`
	Patterns       []string        `yaml:"patterns" mapstructure:"patterns"`
	CustomPatterns []CustomPattern `yaml:"custom_patterns" mapstructure:"custom_patterns"`
}

// CustomPattern is a user-defined detection rule.
type CustomPattern struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Matcher     string `yaml:"matcher" mapstructure:"matcher"`
	Label       string `yaml:"label" mapstructure:"label"`
	Description string `yaml:"description" mapstructure:"description"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// SnapshotConfig configures persistence of mapping-table snapshots.
type SnapshotConfig struct {
	Backend      string        `yaml:"backend" mapstructure:"backend"` // memory or redis
	RedisURL     string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	MaxSnapshots int           `yaml:"max_snapshots" mapstructure:"max_snapshots"`
	TTL          time.Duration `yaml:"ttl" mapstructure:"ttl"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
}

// StatsConfig configures the cumulative detection statistics store.
type StatsConfig struct {
	Backend         string        `yaml:"backend" mapstructure:"backend"` // memory or postgres
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Path     string `yaml:"path" mapstructure:"path"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Events   struct {
		BroadcastMasks       bool `yaml:"broadcast_masks" mapstructure:"broadcast_masks"`
		BroadcastRestores    bool `yaml:"broadcast_restores" mapstructure:"broadcast_restores"`
		BroadcastPatterns    bool `yaml:"broadcast_patterns" mapstructure:"broadcast_patterns"`
		BroadcastSnapshots   bool `yaml:"broadcast_snapshots" mapstructure:"broadcast_snapshots"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// RateLimitConfig contains per-client request rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// BatchConfig controls offline dataset masking
type BatchConfig struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`
	Workers        int `yaml:"workers" mapstructure:"workers"`
	MaxTextBytes   int `yaml:"max_text_bytes" mapstructure:"max_text_bytes"`
	ProgressReport int `yaml:"progress_report" mapstructure:"progress_report"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Privacy: PrivacyConfig{
			Enabled:  true,
			Patterns: []string{"all"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Snapshots: SnapshotConfig{
			Backend:      "memory",
			RedisURL:     "redis://localhost:6379/0",
			KeyPrefix:    "mask-sentinel",
			MaxSnapshots: 10,
			PoolSize:     10,
		},
		Stats: StatsConfig{
			Backend:         "memory",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			Enabled: true,
			Path:    "/ws",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 600,
			Burst:          50,
		},
		Batch: BatchConfig{
			BatchSize:      500,
			Workers:        4,
			MaxTextBytes:   1 << 20,
			ProgressReport: 10000,
		},
	}
	cfg.Logging.File.Path = "logs/sentinel.log"
	cfg.WebSocket.Events.BroadcastMasks = true
	cfg.WebSocket.Events.BroadcastRestores = true
	cfg.WebSocket.Events.BroadcastPatterns = true
	cfg.WebSocket.Events.BroadcastSnapshots = true
	cfg.WebSocket.Events.BroadcastConnections = true
	return cfg
}
