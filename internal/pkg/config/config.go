package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Rectify RectifyConfig `mapstructure:"rectify"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	CORSOrigins string `mapstructure:"cors_origins"`
}

type StoreConfig struct {
	Kind    string `mapstructure:"kind"`
	DataDir string `mapstructure:"data_dir"`
}

type CacheConfig struct {
	Kind       string `mapstructure:"kind"`
	SQLitePath string `mapstructure:"sqlite_path"`
	PoolSize   int    `mapstructure:"pool_size"`
	MaxEntries int64  `mapstructure:"max_entries"`
	ValkeyAddr string `mapstructure:"valkey_addr"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type RectifyConfig struct {
	Delta        float64 `mapstructure:"delta"`
	Workers      int     `mapstructure:"workers"`
	Oversampling float64 `mapstructure:"oversampling"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. If file is
// empty, config.yaml is looked up in the working directory and ./configs.
func Load(file string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", "")
	v.SetDefault("store.kind", "netcdf")
	v.SetDefault("store.data_dir", "./data")
	v.SetDefault("cache.kind", "none")
	v.SetDefault("cache.sqlite_path", "./data/pixelmaps.db")
	v.SetDefault("cache.pool_size", 4)
	v.SetDefault("cache.max_entries", 64)
	v.SetDefault("cache.valkey_addr", "localhost:6379")
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("rectify.delta", 1e-3)
	v.SetDefault("rectify.workers", 4)
	v.SetDefault("rectify.oversampling", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	// Environment variables: RECTIFY_STORE_DATA_DIR → store.data_dir
	v.SetEnvPrefix("RECTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}

	switch c.Store.Kind {
	case "netcdf":
		if c.Store.DataDir == "" {
			errs = append(errs, "store.data_dir is required for the netcdf store")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("store.kind must be netcdf or memory, got %q", c.Store.Kind))
	}

	switch c.Cache.Kind {
	case "none":
	case "sqlite":
		if c.Cache.SQLitePath == "" {
			errs = append(errs, "cache.sqlite_path is required for the sqlite cache")
		}
		if c.Cache.PoolSize <= 0 {
			errs = append(errs, "cache.pool_size must be positive")
		}
	case "memory":
		if c.Cache.MaxEntries <= 0 {
			errs = append(errs, "cache.max_entries must be positive")
		}
	case "valkey":
		if c.Cache.ValkeyAddr == "" {
			errs = append(errs, "cache.valkey_addr is required for the valkey cache")
		}
		if c.Cache.TTLSeconds < 0 {
			errs = append(errs, "cache.ttl_seconds must not be negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.kind must be none, memory, sqlite or valkey, got %q", c.Cache.Kind))
	}

	if c.Rectify.Delta < 0 {
		errs = append(errs, "rectify.delta must not be negative")
	}
	if c.Rectify.Workers <= 0 {
		errs = append(errs, "rectify.workers must be positive")
	}
	if c.Rectify.Oversampling <= 0 {
		errs = append(errs, "rectify.oversampling must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
