package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// MaxBusyRetries bounds how often the store retries a locked write.
const MaxBusyRetries = 3

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Relations RelationsConfig `mapstructure:"relations"`
}

// ServerConfig holds the local HTTP adapter configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the embedded store configuration
type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	BusyRetries int           `mapstructure:"busy_retries"`
	BusyBackoff time.Duration `mapstructure:"busy_backoff"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// RelationsConfig holds orchestrator behavior.
type RelationsConfig struct {
	LotCreateStrategy string `mapstructure:"lot_create_strategy"`
	// DefaultFilters maps an entity name to a JSON filter document.
	DefaultFilters map[string]string `mapstructure:"default_filters"`
}

// Load reads .env, then defaults, the optional inventory.yaml and
// INVENTORY_* environment variables. configPath, when set, names the yaml
// file explicitly.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("INVENTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("inventory")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/inventory")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})

	v.SetDefault("database.path", "inventory.db")
	v.SetDefault("database.busy_timeout", 250*time.Millisecond)
	v.SetDefault("database.busy_retries", MaxBusyRetries)
	v.SetDefault("database.busy_backoff", 50*time.Millisecond)

	v.SetDefault("log.level", "info")

	v.SetDefault("relations.lot_create_strategy", "single")
	v.SetDefault("relations.default_filters", map[string]string{})
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Database.BusyRetries < 1 || c.Database.BusyRetries > MaxBusyRetries {
		return fmt.Errorf("database.busy_retries must be between 1 and %d, got %d", MaxBusyRetries, c.Database.BusyRetries)
	}
	if c.Database.BusyTimeout < 0 || c.Database.BusyBackoff < 0 {
		return errors.New("database busy durations must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Relations.LotCreateStrategy {
	case "single", "expand_quantity":
	default:
		return fmt.Errorf("relations.lot_create_strategy must be single or expand_quantity, got %q", c.Relations.LotCreateStrategy)
	}
	for entity, doc := range c.Relations.DefaultFilters {
		if !json.Valid([]byte(doc)) {
			return fmt.Errorf("relations.default_filters.%s is not valid JSON", entity)
		}
	}
	return nil
}

// IsDevelopment reports whether demo endpoints and console logging are on.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, EnvDevelopment)
}
