// Package config provides configuration management for xrmkit.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like METADATA_SOURCE_DIR, SERVER_PORT)
// 3. Default values
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins      []string      `mapstructure:"cors_origins"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// MetadataConfig controls where entity metadata comes from.
type MetadataConfig struct {
	// SourceDir holds one <logicalname>.xml RetrieveEntity response per kind.
	SourceDir string `mapstructure:"source_dir"`
	// Prefetch lists logical names whose schemas are warmed at startup, in
	// addition to every kind in the kinds catalog.
	Prefetch     []string      `mapstructure:"prefetch"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// CatalogConfig points at the static catalogs.
type CatalogConfig struct {
	KindsFile     string `mapstructure:"kinds_file"`
	OptionSetsDir string `mapstructure:"option_sets_dir"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	PrefetchPoolSize int `mapstructure:"prefetch_pool_size"`
}

// Load reads configuration from the default search paths and environment.
func Load() (*Config, error) {
	return load("")
}

// LoadFile reads configuration from an explicit file path and environment.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/xrmkit")
	}

	// No prefix: metadata.source_dir → METADATA_SOURCE_DIR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Metadata.SourceDir) == "" {
		return fmt.Errorf("metadata.source_dir must not be empty")
	}
	if c.Worker.PrefetchPoolSize <= 0 {
		return fmt.Errorf("worker.prefetch_pool_size must be positive, got %d", c.Worker.PrefetchPoolSize)
	}
	if c.Metadata.FetchTimeout < 0 {
		return fmt.Errorf("metadata.fetch_timeout must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.allow_credentials", false)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metadata
	v.SetDefault("metadata.source_dir", "./metadata")
	v.SetDefault("metadata.prefetch", []string{})
	v.SetDefault("metadata.fetch_timeout", "10s")

	// Catalog
	v.SetDefault("catalog.kinds_file", "")
	v.SetDefault("catalog.option_sets_dir", "")

	// Worker Pool
	v.SetDefault("worker.prefetch_pool_size", 8)
}
