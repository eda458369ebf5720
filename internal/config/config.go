package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	activeMu sync.Mutex
	active   *viper.Viper
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/mask-sentinel/")
	v.AddConfigPath("$HOME/.mask-sentinel/")

	// Environment variable overrides, e.g. MASK_SENTINEL_SERVER_PORT.
	// AutomaticEnv only applies to keys viper knows, so register them all.
	v.SetEnvPrefix("MASK_SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v, "", reflect.ValueOf(config).Elem())

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	activeMu.Lock()
	active = v
	activeMu.Unlock()

	return config, nil
}

// registerDefaults walks a config struct by its mapstructure tags and
// registers every leaf as a viper default.
func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			registerDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid max body bytes: %d", config.Server.MaxBodyBytes)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Snapshots.Backend != "memory" && config.Snapshots.Backend != "redis" {
		return fmt.Errorf("invalid snapshot backend: %s (must be memory or redis)", config.Snapshots.Backend)
	}

	if config.Snapshots.MaxSnapshots <= 0 {
		return fmt.Errorf("invalid max snapshots: %d", config.Snapshots.MaxSnapshots)
	}

	if config.Stats.Backend != "memory" && config.Stats.Backend != "postgres" {
		return fmt.Errorf("invalid stats backend: %s (must be memory or postgres)", config.Stats.Backend)
	}

	if config.Stats.Backend == "postgres" && config.Stats.DatabaseURL == "" {
		return fmt.Errorf("stats.database_url is required for the postgres backend")
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.RateLimit.RequestsPerMin)
	}

	if config.Batch.BatchSize <= 0 || config.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch settings: batch_size and workers must be positive")
	}

	seen := make(map[string]bool, len(config.Privacy.CustomPatterns))
	for i, p := range config.Privacy.CustomPatterns {
		if p.Key == "" || p.Matcher == "" || p.Label == "" {
			return fmt.Errorf("custom pattern %d: key, matcher and label are required", i)
		}
		if seen[p.Key] {
			return fmt.Errorf("custom pattern %d: duplicate key %q", i, p.Key)
		}
		seen[p.Key] = true
	}

	return nil
}

// Watch starts watching the configuration file for changes. The callback
// only receives configurations that pass validation.
func Watch(callback func(*Config), onError func(error)) error {
	activeMu.Lock()
	v := active
	activeMu.Unlock()

	if v == nil {
		return fmt.Errorf("configuration has not been loaded")
	}
	if v.ConfigFileUsed() == "" {
		return fmt.Errorf("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		newConfig := GetDefaults()
		if err := v.Unmarshal(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to unmarshal config: %w", err))
			}
			return
		}

		if err := validateConfig(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("invalid configuration: %w", err))
			}
			return
		}

		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}

// patternFile is the on-disk layout read by LoadPatternFile.
type patternFile struct {
	Patterns []CustomPattern `yaml:"patterns"`
}

// LoadPatternFile reads a standalone YAML file of custom patterns:
//
//	patterns:
//	  - key: order_id
//	    matcher: 'ORD-\d{6}'
//	    label: Order
//	    description: order id
func LoadPatternFile(path string) ([]CustomPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}

	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file: %w", err)
	}

	for i, p := range file.Patterns {
		if p.Key == "" || p.Matcher == "" || p.Label == "" {
			return nil, fmt.Errorf("pattern %d in %s: key, matcher and label are required", i, path)
		}
	}

	return file.Patterns, nil
}
