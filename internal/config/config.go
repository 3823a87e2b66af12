// Package config loads rosterdb configuration from file, environment, and
// flags via Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	Tenant        string              `mapstructure:"tenant"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Aggregation   AggregationConfig   `mapstructure:"aggregation"`
	Legacy        LegacyConfig        `mapstructure:"legacy"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type StorageConfig struct {
	Backend string            `mapstructure:"backend"`
	Config  map[string]string `mapstructure:"config"`
}

type CacheConfig struct {
	RecentCapacity int `mapstructure:"recent_capacity"`
}

type AggregationConfig struct {
	TTL string `mapstructure:"ttl"`
}

type LegacyConfig struct {
	Path string `mapstructure:"path"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// DefaultDataDir returns the base directory for store data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rosterdb"
	}
	return filepath.Join(home, ".rosterdb")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("storage.backend", "badger")
	v.SetDefault("cache.recent_capacity", 100)
	v.SetDefault("aggregation.ttl", "60s")
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "text")
	v.SetDefault("observability.service_name", "rosterdb")
}

// BindFlags binds the standard CLI flags to Viper.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()

	f.String("data-dir", "", "data directory (default ~/.rosterdb)")
	f.String("tenant", "", "tenant identifier (required for store commands)")
	f.String("config", "", "config file path")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text)")

	_ = v.BindPFlag("data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("tenant", f.Lookup("tenant"))
	_ = v.BindPFlag("config_file", f.Lookup("config"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
}

// Load resolves the effective configuration. A config file is optional; when
// none is given the defaults plus environment and flags apply.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("ROSTERDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Legacy.Path == "" {
		cfg.Legacy.Path = filepath.Join(cfg.DataDir, "roster-legacy.db")
	}
	return &cfg, nil
}
