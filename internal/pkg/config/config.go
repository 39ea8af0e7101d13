package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreValkey   = "valkey"
	StoreMemory   = "memory"
)

// Resolver kinds.
const (
	ResolverOverpass  = "overpass"
	ResolverAnalytics = "analytics"
	ResolverAnthropic = "anthropic"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Overpass  OverpassConfig  `mapstructure:"overpass"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	ReadTimeout    int    `mapstructure:"read_timeout"`
	WriteTimeout   int    `mapstructure:"write_timeout"`
	RequestTimeout int    `mapstructure:"request_timeout"`
	CORSOrigins    string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Driver       string  `mapstructure:"driver"`
	RadiusMeters float64 `mapstructure:"radius_meters"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type ResolverConfig struct {
	Kind    string        `mapstructure:"kind"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type OverpassConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	UserAgent     string  `mapstructure:"user_agent"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

type AnalyticsConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 15)
	v.SetDefault("server.cors_origins", "http://localhost:5173")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", StorePostgres)
	v.SetDefault("store.radius_meters", 100.0)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "aquaripple")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "aquaripple")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "aquaripple")
	v.SetDefault("mongo.collection", "location_cache")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.key_prefix", "aquaripple:location_cache")
	v.SetDefault("resolver.kind", ResolverOverpass)
	v.SetDefault("resolver.timeout", 10*time.Second)
	v.SetDefault("overpass.base_url", "https://overpass-api.de/api")
	v.SetDefault("overpass.user_agent", "AquaRipple/1.0")
	v.SetDefault("overpass.rate_per_second", 1.0)
	v.SetDefault("analytics.base_url", "http://localhost:8000")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: AQUARIPPLE_STORE_DRIVER → store.driver
	v.SetEnvPrefix("AQUARIPPLE")
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
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "server.request_timeout must be positive")
	}
	if c.Store.RadiusMeters <= 0 {
		errs = append(errs, "store.radius_meters must be positive")
	}

	switch c.Store.Driver {
	case StorePostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case StoreMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, "mongo.uri is required")
		}
		if c.Mongo.Database == "" || c.Mongo.Collection == "" {
			errs = append(errs, "mongo.database and mongo.collection are required")
		}
	case StoreValkey:
		if c.Valkey.Addr == "" {
			errs = append(errs, "valkey.addr is required")
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be one of postgres, mongo, valkey, memory, got %q", c.Store.Driver))
	}

	if c.Resolver.Timeout <= 0 {
		errs = append(errs, "resolver.timeout must be positive")
	}
	switch c.Resolver.Kind {
	case ResolverOverpass:
		if c.Overpass.BaseURL == "" {
			errs = append(errs, "overpass.base_url is required")
		}
	case ResolverAnalytics:
		if c.Analytics.BaseURL == "" {
			errs = append(errs, "analytics.base_url is required")
		}
	case ResolverAnthropic:
		if c.Anthropic.APIKey == "" {
			errs = append(errs, "anthropic.api_key is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("resolver.kind must be one of overpass, analytics, anthropic, got %q", c.Resolver.Kind))
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats.enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
