// Package config generalizes the teacher's three-layer configuration
// priority (defaults -> environment -> functional options) and its env-tag
// struct convention to the keys spec.md §6 recognizes.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host" env:"GATEWAY_SERVER_HOST"`
	Port int    `yaml:"port" env:"GATEWAY_SERVER_PORT"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"GATEWAY_LOGGING_LEVEL"`
	Format string `yaml:"format" env:"GATEWAY_LOGGING_FORMAT"` // pretty | json
}

type AuthConfig struct {
	JWTSecret           string `yaml:"jwt_secret" env:"GATEWAY_AUTH_JWT_SECRET"`
	JWTExpirationHours  int    `yaml:"jwt_expiration_hours" env:"GATEWAY_AUTH_JWT_EXPIRATION_HOURS"`
}

type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" env:"GATEWAY_TRACING_ENABLED"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint" env:"GATEWAY_TRACING_OTLP_ENDPOINT"`
	SamplingRatio  float64 `yaml:"sampling_ratio" env:"GATEWAY_TRACING_SAMPLING_RATIO"`
}

type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" env:"GATEWAY_STORAGE_BACKEND"` // memory | postgres
	DSN     string `yaml:"dsn" env:"GATEWAY_STORAGE_DSN"`
}

type SemanticCacheConfig struct {
	Enabled                 bool    `yaml:"enabled" env:"GATEWAY_SEMANTIC_CACHE_ENABLED"`
	SimilarityThreshold     float64 `yaml:"similarity_threshold" env:"GATEWAY_SEMANTIC_CACHE_SIMILARITY_THRESHOLD"`
	TTLSeconds              int64   `yaml:"ttl_seconds" env:"GATEWAY_SEMANTIC_CACHE_TTL_SECONDS"`
	EmbeddingModel          string  `yaml:"embedding_model" env:"GATEWAY_SEMANTIC_CACHE_EMBEDDING_MODEL"`
	IncludeModelInKey       bool    `yaml:"include_model_in_key" env:"GATEWAY_SEMANTIC_CACHE_INCLUDE_MODEL_IN_KEY"`
	IncludeTemperatureInKey bool    `yaml:"include_temperature_in_key" env:"GATEWAY_SEMANTIC_CACHE_INCLUDE_TEMPERATURE_IN_KEY"`
	CacheStreaming          bool    `yaml:"cache_streaming" env:"GATEWAY_SEMANTIC_CACHE_CACHE_STREAMING"`
}

type PluginConfig struct {
	Enabled bool `yaml:"enabled"`
}

type PluginsConfig struct {
	SettingsEnabled bool                    `yaml:"settings_enabled" env:"GATEWAY_PLUGINS_SETTINGS_ENABLED"`
	Providers       map[string]PluginConfig `yaml:"providers"`
}

// Config is the root configuration object. The core reads no environment
// variables directly (spec.md §6); it is always driven by one of these.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Storage       StorageConfig       `yaml:"storage"`
	SemanticCache SemanticCacheConfig `yaml:"semantic_cache"`
	Plugins       PluginsConfig       `yaml:"plugins"`
}

// Option mutates a Config, applied after defaults and environment
// overrides — the functional-options layer, highest priority.
type Option func(*Config)

func WithServerAddr(host string, port int) Option {
	return func(c *Config) { c.Server.Host = host; c.Server.Port = port }
}

func WithLogging(level, format string) Option {
	return func(c *Config) { c.Logging.Level = level; c.Logging.Format = format }
}

func WithStorageBackend(backend, dsn string) Option {
	return func(c *Config) { c.Storage.Backend = backend; c.Storage.DSN = dsn }
}

func WithSemanticCache(enabled bool, threshold float64) Option {
	return func(c *Config) {
		c.SemanticCache.Enabled = enabled
		c.SemanticCache.SimilarityThreshold = threshold
	}
}

// DefaultConfig returns the gateway's baked-in defaults, matching spec.md
// §4.3's documented default similarity threshold and the teacher's
// pattern of a fully-populated zero-env Config.
func DefaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "pretty"},
		Auth:    AuthConfig{JWTExpirationHours: 24},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{Enabled: false, SamplingRatio: 1.0},
		},
		Storage: StorageConfig{Backend: "memory"},
		SemanticCache: SemanticCacheConfig{
			Enabled:             true,
			SimilarityThreshold: 0.95,
			TTLSeconds:          3600,
		},
		Plugins: PluginsConfig{
			SettingsEnabled: true,
			Providers: map[string]PluginConfig{
				"openai":    {Enabled: true},
				"anthropic": {Enabled: true},
				"azure_openai": {Enabled: false},
				"bedrock":   {Enabled: false},
			},
		},
	}
}

// LoadFromFile overlays a YAML document onto DefaultConfig, mirroring
// core/config.go's LoadFromFile.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// New builds a Config by layering defaults, then environment variables,
// then the supplied functional options, matching the teacher's three-layer
// priority order.
func New(opts ...Option) *Config {
	cfg := DefaultConfig()
	applyEnv(cfg)
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// applyEnv overlays the environment variables read below. The env tags on
// the auth fields, tracing sampling_ratio, the semantic-cache ttl_seconds,
// embedding_model, include_model_in_key, include_temperature_in_key and
// cache_streaming fields, and plugins.settings_enabled are not read.
func applyEnv(c *Config) {
	if v, ok := lookupEnv("GATEWAY_SERVER_HOST"); ok {
		c.Server.Host = v
	}
	if v, ok := lookupEnvInt("GATEWAY_SERVER_PORT"); ok {
		c.Server.Port = v
	}
	if v, ok := lookupEnv("GATEWAY_LOGGING_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := lookupEnv("GATEWAY_LOGGING_FORMAT"); ok {
		c.Logging.Format = v
	}
	if v, ok := lookupEnv("GATEWAY_STORAGE_BACKEND"); ok {
		c.Storage.Backend = v
	}
	if v, ok := lookupEnv("GATEWAY_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := lookupEnvBool("GATEWAY_SEMANTIC_CACHE_ENABLED"); ok {
		c.SemanticCache.Enabled = v
	}
	if v, ok := lookupEnvFloat("GATEWAY_SEMANTIC_CACHE_SIMILARITY_THRESHOLD"); ok {
		c.SemanticCache.SimilarityThreshold = v
	}
	if v, ok := lookupEnvBool("GATEWAY_TRACING_ENABLED"); ok {
		c.Observability.Tracing.Enabled = v
	}
	if v, ok := lookupEnv("GATEWAY_TRACING_OTLP_ENDPOINT"); ok {
		c.Observability.Tracing.OTLPEndpoint = v
	}
}

func lookupEnv(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func lookupEnvInt(key string) (int, bool) {
	v, ok := lookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	return n, err == nil
}

func lookupEnvBool(key string) (bool, bool) {
	v, ok := lookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return b, err == nil
}

func lookupEnvFloat(key string) (float64, bool) {
	v, ok := lookupEnv(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f, err == nil
}
