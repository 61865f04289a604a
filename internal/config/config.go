// Package config holds all compact-mcp configuration, loaded from a
// YAML file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all compact-mcp configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Compiler configures the external compactc toolchain.
	Compiler CompilerConfig `yaml:"compiler"`

	// GitHub configures documentation/example retrieval.
	GitHub GitHubConfig `yaml:"github"`

	// Index configures the offline repository indexer.
	Index IndexConfig `yaml:"index"`

	// Store configures the SQLite vector store.
	Store StoreConfig `yaml:"store"`

	// Embedding configures the embedding engine.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Logging configures categorized debug logging.
	Logging LoggingConfig `yaml:"logging"`
}

// CompilerConfig configures location and limits for compactc.
type CompilerConfig struct {
	// Binary is the executable name searched on PATH.
	Binary string `yaml:"binary"`

	// MinVersion is the minimum supported major.minor version.
	MinVersion string `yaml:"min_version"`

	// Timeout bounds a single compile invocation.
	Timeout string `yaml:"timeout"`

	// MaxOutputBytes bounds captured compiler output.
	MaxOutputBytes int `yaml:"max_output_bytes"`
}

// GitHubConfig configures the docs/examples retrieval client.
type GitHubConfig struct {
	Token        string `yaml:"token"`
	DocsRepo     string `yaml:"docs_repo"`     // owner/repo for language docs
	ExamplesRepo string `yaml:"examples_repo"` // owner/repo for example contracts
	CompilerRepo string `yaml:"compiler_repo"` // owner/repo whose releases track the compiler
	BaseURL      string `yaml:"base_url"`
	CacheTTL     string `yaml:"cache_ttl"`
	Timeout      string `yaml:"timeout"`
}

// IndexConfig configures the offline repository indexer.
type IndexConfig struct {
	// ChunkMaxBytes caps a single indexed chunk.
	ChunkMaxBytes int `yaml:"chunk_max_bytes"`

	// Concurrency bounds parallel embedding calls.
	Concurrency int `yaml:"concurrency"`

	// WatchDebounce coalesces rapid file events in watch mode.
	WatchDebounce string `yaml:"watch_debounce"`
}

// StoreConfig configures the SQLite vector store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama or genai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
}

// LoggingConfig configures debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Directory  string          `yaml:"directory"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "compact-mcp",
		Version: "0.3.0",

		Compiler: CompilerConfig{
			Binary:         "compact",
			MinVersion:     "0.14",
			Timeout:        "60s",
			MaxOutputBytes: 1 << 20,
		},

		GitHub: GitHubConfig{
			DocsRepo:     "midnightntwrk/compact-docs",
			ExamplesRepo: "midnightntwrk/example-contracts",
			CompilerRepo: "midnightntwrk/compact",
			BaseURL:      "https://api.github.com",
			CacheTTL:     "15m",
			Timeout:      "30s",
		},

		Index: IndexConfig{
			ChunkMaxBytes: 8192,
			Concurrency:   4,
			WatchDebounce: "500ms",
		},

		Store: StoreConfig{
			DatabasePath: "data/compact-index.db",
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},

		Logging: LoggingConfig{
			Level:     "info",
			Directory: "logs",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields
// defaults, not an error.
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
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		c.GitHub.Token = tok
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" {
			c.Embedding.Provider = "genai"
		}
	}
	if bin := os.Getenv("COMPACTC_BINARY"); bin != "" {
		c.Compiler.Binary = bin
	}
	if path := os.Getenv("COMPACT_MCP_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if ep := os.Getenv("OLLAMA_HOST"); ep != "" {
		c.Embedding.OllamaEndpoint = ep
	}
}

// CompilerTimeout returns the compiler timeout as a duration.
func (c *Config) CompilerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Compiler.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// GitHubCacheTTL returns the retrieval cache TTL as a duration.
func (c *Config) GitHubCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.GitHub.CacheTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// WatchDebounce returns the watch-mode debounce as a duration.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Index.WatchDebounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}
