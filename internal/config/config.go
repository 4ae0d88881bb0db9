package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all openElara configuration.
type Config struct {
	// Retrieval backend subprocess
	Backend BackendConfig `yaml:"backend"`

	// Context assembly knobs
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Provider endpoints and keys
	Providers ProvidersConfig `yaml:"providers"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig configures the out-of-process RAG backend.
type BackendConfig struct {
	Interpreter string `yaml:"interpreter"`
	ScriptPath  string `yaml:"script_path"`
	StoragePath string `yaml:"storage_path"`
}

// RetrievalConfig configures history trimming and retrieval sizing.
type RetrievalConfig struct {
	// VerbatimShare is the fraction of the history budget spent on
	// verbatim recent turns (0 < share <= 1).
	VerbatimShare float64 `yaml:"verbatim_share"`

	// TokensPerChunk is the estimated size of one retrieved chunk,
	// used to derive the semantic search result count.
	TokensPerChunk int `yaml:"tokens_per_chunk"`

	// RecentTurnsCount is how many recent turns to fetch verbatim.
	RecentTurnsCount int `yaml:"recent_turns_count"`
}

// ProvidersConfig configures the model backends.
type ProvidersConfig struct {
	OllamaBaseURL  string `yaml:"ollama_base_url"`
	TogetherAPIKey string `yaml:"together_api_key"`

	// StorePath is the JSON file holding custom provider definitions.
	StorePath string `yaml:"store_path"`

	// PersonasPath is the YAML file holding persona definitions.
	PersonasPath string `yaml:"personas_path"`
}

// LoggingConfig configures logging output.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Interpreter: "python",
			ScriptPath:  "rag_backend.py",
			StoragePath: "./elara_data",
		},
		Retrieval: RetrievalConfig{
			VerbatimShare:    0.7,
			TokensPerChunk:   150,
			RecentTurnsCount: 5,
		},
		Providers: ProvidersConfig{
			OllamaBaseURL: "http://localhost:11434",
			StorePath:     "providers.json",
			PersonasPath:  "personas.yaml",
		},
		Logging: LoggingConfig{
			Debug: false,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
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
	if key := os.Getenv("TOGETHER_API_KEY"); key != "" {
		c.Providers.TogetherAPIKey = key
	}
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		c.Providers.OllamaBaseURL = url
	}
	if path := os.Getenv("ELARA_STORAGE"); path != "" {
		c.Backend.StoragePath = path
	}
}
