// Package config loads the ragchat YAML configuration. ${VAR} references are
// expanded from the environment and durations are written as strings
// ("60s", "2s").
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"RagChat/internal/backend"
)

// Responder kinds
const (
	ResponderSimulator = "simulator"
	ResponderLLM       = "llm"
	ResponderMCP       = "mcp"
)

// Store drivers
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Cache drivers
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Store     StoreConfig     `yaml:"store"`
	Responder ResponderConfig `yaml:"responder"`
	LLM       LLMConfig       `yaml:"llm"`
	MCP       MCPConfig       `yaml:"mcp"`
	Cache     CacheConfig     `yaml:"cache"`
	Catalog   CatalogConfig   `yaml:"catalog"`

	// SeedDemo loads the sample conversations at startup
	SeedDemo bool `yaml:"seed_demo"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// TelemetryConfig controls the OpenTelemetry file exporters
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// StoreConfig selects the conversation backend
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ResponderConfig selects what answers messages
type ResponderConfig struct {
	Kind    string        `yaml:"kind"`
	Timeout time.Duration `yaml:"-"`
	Delay   time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
	DelayRaw   string `yaml:"delay"`
}

// LLMConfig addresses a chat-completion provider
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens"`
}

// MCPConfig lists document servers. Entries are ws(s):// or http(s):// URLs
// or local commands.
type MCPConfig struct {
	Servers []string `yaml:"servers"`
	Tool    string   `yaml:"tool"`
}

// CacheConfig controls the reply cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Driver  string        `yaml:"driver"`
	URL     string        `yaml:"url"`
	Prefix  string        `yaml:"prefix"`
	TTL     time.Duration `yaml:"-"`

	TTLRaw string `yaml:"ttl"`
}

// CatalogConfig lists the tenants and entities a new chat can target
type CatalogConfig struct {
	Tenants  []string `yaml:"tenants"`
	Entities []string `yaml:"entities"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Logging:   LoggingConfig{Level: "info", Dir: "logs"},
		Telemetry: TelemetryConfig{Enabled: false, ServiceName: "ragchat"},
		Store:     StoreConfig{Driver: StoreMemory},
		Responder: ResponderConfig{
			Kind:       ResponderSimulator,
			Timeout:    60 * time.Second,
			Delay:      2 * time.Second,
			TimeoutRaw: "60s",
			DelayRaw:   "2s",
		},
		LLM:   LLMConfig{Provider: backend.ProviderOllama},
		Cache: CacheConfig{Driver: CacheMemory, Prefix: "ragchat:reply:", TTL: time.Hour, TTLRaw: "1h"},
		Catalog: CatalogConfig{
			Tenants:  []string{"tenant-1", "tenant-2", "tenant-3"},
			Entities: []string{"entity-1", "entity-2", "entity-3"},
		},
	}
}

// Load reads a configuration file on top of Default.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of Default
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize parses raw durations and validates. Call it after changing raw
// fields by hand.
func (c *Config) Finalize() error {
	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks enumerated fields and the settings each choice requires
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q (memory|sqlite)", c.Store.Driver)
	}

	switch c.Responder.Kind {
	case ResponderSimulator:
	case ResponderLLM:
		if !backend.IsProvider(c.LLM.Provider) {
			return fmt.Errorf("unknown llm.provider %q (%s)", c.LLM.Provider, strings.Join(backend.Providers, "|"))
		}
	case ResponderMCP:
		if len(c.MCP.Servers) == 0 {
			return fmt.Errorf("mcp.servers is required for the mcp responder")
		}
	default:
		return fmt.Errorf("unknown responder.kind %q (simulator|llm|mcp)", c.Responder.Kind)
	}

	if c.Responder.Timeout < 0 {
		return fmt.Errorf("responder.timeout must not be negative")
	}

	if c.Cache.Enabled {
		switch c.Cache.Driver {
		case CacheMemory:
		case CacheRedis:
			if c.Cache.URL == "" {
				return fmt.Errorf("cache.url is required for the redis driver")
			}
		default:
			return fmt.Errorf("unknown cache.driver %q (memory|redis)", c.Cache.Driver)
		}
	}

	if len(c.Catalog.Tenants) == 0 {
		return fmt.Errorf("catalog.tenants must not be empty")
	}
	if len(c.Catalog.Entities) == 0 {
		return fmt.Errorf("catalog.entities must not be empty")
	}
	return nil
}

// ParseLevel maps debug|info|warn|error to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown logging.level %q (debug|info|warn|error)", level)
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Responder.TimeoutRaw != "" {
		cfg.Responder.Timeout, err = time.ParseDuration(cfg.Responder.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing responder.timeout %q: %w", cfg.Responder.TimeoutRaw, err)
		}
	}

	if cfg.Responder.DelayRaw != "" {
		cfg.Responder.Delay, err = time.ParseDuration(cfg.Responder.DelayRaw)
		if err != nil {
			return fmt.Errorf("parsing responder.delay %q: %w", cfg.Responder.DelayRaw, err)
		}
	}

	if cfg.Cache.TTLRaw != "" {
		cfg.Cache.TTL, err = time.ParseDuration(cfg.Cache.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.ttl %q: %w", cfg.Cache.TTLRaw, err)
		}
	}

	return nil
}
