// Package loreconfig loads and hot-reloads loreforge's on-disk
// configuration: data paths, embedding provider settings, retrieval
// limits, travel/trade tuning constants, and logging level. It follows
// the teacher's config package shape (DefaultConfig/Load/Save plus
// environment-variable overrides applied after parse) generalized from
// codeNERD's LLM/memory/shard settings to loreforge's own domain.
package loreconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StorageConfig locates the on-disk memory store and vector index.
type StorageConfig struct {
	MemoryRoot string `yaml:"memory_root"`
	IndexRoot  string `yaml:"index_root"`
}

// EmbeddingConfig mirrors the teacher's EmbeddingConfig shape, narrowed
// to loreforge's two backends (remote-http and a genai-backed local
// model) plus the forced-mode override spec §6 calls MEMORY_EMBED_MODE.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"`       // "remote-http", "local-model", or "disabled"
	RemoteBaseURL string `yaml:"remote_base_url"`
	GenAIModel    string `yaml:"genai_model"`
	GenAIAPIKey   string `yaml:"-"` // never persisted to disk; env-only
	CachePath     string `yaml:"cache_path"`
	Dimension     int    `yaml:"dimension"`
	ForcedMode    string `yaml:"forced_mode"` // set from MEMORY_EMBED_MODE; embedding.Provider reads that env var itself and does not consult this field
}

// RetrievalConfig bounds the hybrid retrieval query.
type RetrievalConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// TravelTuning exposes the travel engine's magic numbers so they can be
// tuned per campaign without touching internal/travel.
type TravelTuning struct {
	BaseSpeed    int            `yaml:"base_speed"`
	EventWeights map[string]int `yaml:"event_weights,omitempty"`
}

// TradeTuning exposes trade's tunable defaults.
type TradeTuning struct {
	DefaultStackMax int `yaml:"default_stack_max"`
	CarriedCapacity int `yaml:"carried_capacity"` // bounds Inventory.Carried slot count on buy
}

// ReputationConfig points at the rule-table override file loreconfig's
// watcher keeps hot-reloaded into a reputation.RuleStore.
type ReputationConfig struct {
	RulesPath  string `yaml:"rules_path"`
	LedgerPath string `yaml:"ledger_path"`
}

// LoggingConfig feeds obslog.Initialize directly.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"`
}

// Config holds all loreforge configuration.
type Config struct {
	Name       string           `yaml:"name"`
	Version    string           `yaml:"version"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Travel     TravelTuning     `yaml:"travel"`
	Trade      TradeTuning      `yaml:"trade"`
	Reputation ReputationConfig `yaml:"reputation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DefaultConfig returns loreforge's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "loreforge",
		Version: "0.1.0",

		Storage: StorageConfig{
			MemoryRoot: "data/memory",
			IndexRoot:  "data/index",
		},

		Embedding: EmbeddingConfig{
			Provider:      "remote-http",
			RemoteBaseURL: "http://localhost:8090",
			GenAIModel:    "gemini-embedding-001",
			CachePath:     "data/index/embedding_cache.json",
			Dimension:     768,
		},

		Retrieval: RetrievalConfig{
			DefaultLimit: 8,
			MaxLimit:     40,
		},

		Travel: TravelTuning{
			BaseSpeed: 12,
		},

		Trade: TradeTuning{
			DefaultStackMax: 99,
			CarriedCapacity: 20,
		},

		Reputation: ReputationConfig{
			RulesPath:  "data/world/reputation_rules.json",
			LedgerPath: "data/world/reputation_ledger.json",
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to
// DefaultConfig (with env overrides still applied) when the file does
// not exist — mirroring the teacher's Load.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("loreconfig: read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("loreconfig: parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration back to a YAML file, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("loreconfig: create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("loreconfig: marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("loreconfig: write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides, following
// the teacher's priority-ordered API-key precedence pattern.
func (c *Config) applyEnvOverrides() {
	if mode := os.Getenv("MEMORY_EMBED_MODE"); mode != "" {
		c.Embedding.ForcedMode = mode
	}
	if key := os.Getenv("GENAI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" {
			c.Embedding.Provider = "local-model"
		}
	}
	if url := os.Getenv("LOREFORGE_EMBED_URL"); url != "" {
		c.Embedding.RemoteBaseURL = url
	}
	if root := os.Getenv("LOREFORGE_DATA_ROOT"); root != "" {
		c.Storage.MemoryRoot = filepath.Join(root, "memory")
		c.Storage.IndexRoot = filepath.Join(root, "index")
	}
	if debug := os.Getenv("LOREFORGE_DEBUG"); debug != "" {
		c.Logging.DebugMode = debug == "1" || debug == "true"
	}
	if level := os.Getenv("LOREFORGE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the configuration is usable before wiring components.
func (c *Config) Validate() error {
	if c.Storage.MemoryRoot == "" || c.Storage.IndexRoot == "" {
		return fmt.Errorf("loreconfig: storage.memory_root and storage.index_root are required")
	}
	switch c.Embedding.Provider {
	case "remote-http", "local-model", "disabled", "":
	default:
		return fmt.Errorf("loreconfig: invalid embedding provider: %s", c.Embedding.Provider)
	}
	if c.Retrieval.DefaultLimit <= 0 || c.Retrieval.MaxLimit < c.Retrieval.DefaultLimit {
		return fmt.Errorf("loreconfig: retrieval.default_limit/max_limit are inconsistent")
	}
	return nil
}
