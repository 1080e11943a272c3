package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all intentgate configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Resolver  ResolverConfig  `yaml:"resolver"`
	LLM       LLMConfig       `yaml:"llm"`
	Session   SessionConfig   `yaml:"session"`
	Registry  RegistryConfig  `yaml:"registry"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Usage     UsageConfig     `yaml:"usage"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ResolverConfig holds the acceptance and correction thresholds.
type ResolverConfig struct {
	Tier2Threshold  float64 `yaml:"tier2_threshold"`
	Tier3Threshold  float64 `yaml:"tier3_threshold"`
	MinConfidence   float64 `yaml:"min_confidence"`
	FuzzyThreshold  float64 `yaml:"fuzzy_threshold"`
	FuzzyMargin     float64 `yaml:"fuzzy_margin"`
	SuggestionFloor float64 `yaml:"suggestion_floor"`
	MaxCandidates   int     `yaml:"max_candidates"`
	MaxRankingLimit int     `yaml:"max_ranking_limit"`
}

// LLMConfig configures the Tier-3 generative parser.
type LLMConfig struct {
	Provider     string `yaml:"provider"` // ollama, gemini, none
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	Timeout      string `yaml:"timeout"`
	HistoryTurns int    `yaml:"history_turns"`
}

// SessionConfig configures the session store.
type SessionConfig struct {
	TTL                  string `yaml:"ttl"`
	SweepInterval        string `yaml:"sweep_interval"`
	ClarificationTimeout string `yaml:"clarification_timeout"`
	HistoryLimit         int    `yaml:"history_limit"`
	Shards               int    `yaml:"shards"`
}

// RegistryConfig configures where the entity whitelist comes from.
type RegistryConfig struct {
	Source  string `yaml:"source"` // file, sqlite
	Path    string `yaml:"path"`
	Refresh string `yaml:"refresh"` // cron spec
	Watch   bool   `yaml:"watch"`
}

// TelemetryConfig configures per-turn diagnostic events.
type TelemetryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SQLitePath string `yaml:"sqlite_path"`
	QueueSize  int    `yaml:"queue_size"`
}

// UsageConfig configures persisted resolution statistics.
type UsageConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "intentgate",
		Version: "0.3.0",

		Resolver: ResolverConfig{
			Tier2Threshold:  Tier2AcceptThreshold,
			Tier3Threshold:  Tier3AcceptThreshold,
			MinConfidence:   MinConfidence,
			FuzzyThreshold:  FuzzyAcceptThreshold,
			FuzzyMargin:     FuzzyAmbiguityMargin,
			SuggestionFloor: SuggestionFloor,
			MaxCandidates:   MaxCandidates,
			MaxRankingLimit: MaxRankingLimit,
		},

		LLM: LLMConfig{
			Provider:     "ollama",
			BaseURL:      "http://localhost:11434",
			Model:        "qwen2.5:3b-instruct",
			Timeout:      Tier3Timeout.String(),
			HistoryTurns: HistoryTurnsForModel,
		},

		Session: SessionConfig{
			TTL:                  SessionTTL.String(),
			SweepInterval:        SweepInterval.String(),
			ClarificationTimeout: ClarificationTimeout.String(),
			HistoryLimit:         HistoryLimit,
			Shards:               SessionShards,
		},

		Registry: RegistryConfig{
			Source:  "file",
			Path:    "data/registry.yaml",
			Refresh: RegistryRefreshSpec,
			Watch:   true,
		},

		Telemetry: TelemetryConfig{
			Enabled:    true,
			SQLitePath: "data/telemetry.db",
			QueueSize:  1024,
		},

		Usage: UsageConfig{
			Path: "data/usage.json",
		},

		Server: ServerConfig{
			Addr:            ":8088",
			ShutdownTimeout: "10s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("INTENTGATE_LLM_PROVIDER"); p != "" {
		c.LLM.Provider = p
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.LLM.BaseURL = host
	}
	if model := os.Getenv("INTENTGATE_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	// A Gemini key switches the provider unless one was chosen explicitly.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if os.Getenv("INTENTGATE_LLM_PROVIDER") == "" {
			c.LLM.Provider = "gemini"
		}
	}

	if path := os.Getenv("INTENTGATE_REGISTRY_PATH"); path != "" {
		c.Registry.Path = path
	}
	if src := os.Getenv("INTENTGATE_REGISTRY_SOURCE"); src != "" {
		c.Registry.Source = src
	}
	if addr := os.Getenv("INTENTGATE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("INTENTGATE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := os.Getenv("INTENTGATE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
	if path := os.Getenv("INTENTGATE_TELEMETRY_DB"); path != "" {
		c.Telemetry.SQLitePath = path
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetLLMTimeout returns the Tier-3 deadline.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, Tier3Timeout)
}

// GetSessionTTL returns the session inactivity timeout.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Session.TTL, SessionTTL)
}

// GetSweepInterval returns the session sweep period.
func (c *Config) GetSweepInterval() time.Duration {
	return parseDuration(c.Session.SweepInterval, SweepInterval)
}

// GetClarificationTimeout returns how long a clarification stays open.
func (c *Config) GetClarificationTimeout() time.Duration {
	return parseDuration(c.Session.ClarificationTimeout, ClarificationTimeout)
}

// GetShutdownTimeout returns the HTTP graceful shutdown budget.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// ValidProviders lists all supported Tier-3 providers.
var ValidProviders = []string{"ollama", "gemini", "none"}

// ValidRegistrySources lists all supported whitelist sources.
var ValidRegistrySources = []string{"file", "sqlite"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		return fmt.Errorf("gemini provider requires an API key (set GEMINI_API_KEY)")
	}
	if !contains(ValidRegistrySources, c.Registry.Source) {
		return fmt.Errorf("invalid registry source: %s (valid: %v)", c.Registry.Source, ValidRegistrySources)
	}
	if c.Registry.Path == "" {
		return fmt.Errorf("registry path cannot be empty")
	}

	r := c.Resolver
	for name, v := range map[string]float64{
		"tier2_threshold":  r.Tier2Threshold,
		"tier3_threshold":  r.Tier3Threshold,
		"min_confidence":   r.MinConfidence,
		"fuzzy_threshold":  r.FuzzyThreshold,
		"fuzzy_margin":     r.FuzzyMargin,
		"suggestion_floor": r.SuggestionFloor,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("resolver.%s must be within [0,1], got %v", name, v)
		}
	}
	if r.SuggestionFloor > r.FuzzyThreshold {
		return fmt.Errorf("resolver.suggestion_floor (%v) must not exceed fuzzy_threshold (%v)", r.SuggestionFloor, r.FuzzyThreshold)
	}
	if r.MaxCandidates <= 0 {
		return fmt.Errorf("resolver.max_candidates must be > 0")
	}
	if r.MaxRankingLimit <= 0 {
		return fmt.Errorf("resolver.max_ranking_limit must be > 0")
	}
	if c.Session.HistoryLimit <= 0 {
		return fmt.Errorf("session.history_limit must be > 0")
	}
	if c.Telemetry.Enabled && c.Telemetry.QueueSize <= 0 {
		return fmt.Errorf("telemetry.queue_size must be > 0")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
