// Package config handles persistent application configuration,
// including the active data-backend selection.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ProviderKind selects the active data backend. The set is closed; the
// provider factory is a total switch over it.
type ProviderKind string

const (
	ProviderGemini  ProviderKind = "gemini"
	ProviderOpenAI  ProviderKind = "openai"
	ProviderOllama  ProviderKind = "ollama"
	ProviderNewsRSS ProviderKind = "newsrss"
)

// Config is the persistent application configuration
type Config struct {
	// Active data backend and per-backend settings
	Provider ProviderConfig `json:"provider"`

	// Scheduler preferences
	Schedule ScheduleConfig `json:"schedule"`

	// Storage paths (empty = defaults under ~/.polipulse)
	Storage StorageConfig `json:"storage"`
}

// ProviderConfig holds the discriminated backend selection plus one
// settings sub-block per backend kind. Changing any field invalidates
// the provider factory's cached instance (it caches by serialized form).
type ProviderConfig struct {
	Provider ProviderKind    `json:"provider"`
	Gemini   ModelSettings   `json:"gemini"`
	OpenAI   ModelSettings   `json:"openai"`
	Ollama   ModelSettings   `json:"ollama"`
	NewsRSS  NewsRSSSettings `json:"newsrss"`
}

// ModelSettings for a single AI backend
type ModelSettings struct {
	APIKey   string `json:"api_key,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // For Ollama or custom endpoints
	Model    string `json:"model,omitempty"`    // Specific model to use
}

// NewsRSSSettings for the keyless news-search backend
type NewsRSSSettings struct {
	FeedURL  string `json:"feed_url,omitempty"` // Query-feed base URL
	MaxItems int    `json:"max_items,omitempty"`
}

// ScheduleConfig holds polling preferences applied on first run.
type ScheduleConfig struct {
	IntervalMinutes int  `json:"interval_minutes"`
	Enabled         bool `json:"enabled"`
}

// StorageConfig holds storage tier locations.
type StorageConfig struct {
	DatabasePath string `json:"database_path,omitempty"`
	LegacyPath   string `json:"legacy_path,omitempty"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Provider: ProviderGemini,
			Gemini: ModelSettings{
				Model: "gemini-2.5-flash",
			},
			OpenAI: ModelSettings{
				Model: "gpt-4o",
			},
			Ollama: ModelSettings{
				Endpoint: "http://localhost:11434",
				// Model auto-detected from Ollama if not specified
			},
			NewsRSS: NewsRSSSettings{
				FeedURL:  "https://news.google.com/rss/search",
				MaxItems: 25,
			},
		},
		Schedule: ScheduleConfig{
			IntervalMinutes: 60,
			Enabled:         false,
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".polipulse", "config.json")
}

// DataDir returns the directory holding durable state.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".polipulse")
}

// DatabasePath returns the primary-tier sqlite path.
func (c *Config) DatabasePath() string {
	if c.Storage.DatabasePath != "" {
		return c.Storage.DatabasePath
	}
	return filepath.Join(DataDir(), "polipulse.db")
}

// LegacyPath returns the legacy flat-tier blob path.
func (c *Config) LegacyPath() string {
	if c.Storage.LegacyPath != "" {
		return c.Storage.LegacyPath
	}
	return filepath.Join(DataDir(), "polipulse.json")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults and try to auto-populate from environment
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}

	cfg.AutoPopulateFromEnv()
	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// AutoPopulateFromEnv fills in API keys from environment variables
// without overwriting values already present in the file.
func (c *Config) AutoPopulateFromEnv() {
	if c.Provider.Gemini.APIKey == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.Provider.Gemini.APIKey = key
		} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			c.Provider.Gemini.APIKey = key
		}
	}
	if c.Provider.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.Provider.OpenAI.APIKey = key
		}
	}
	if c.Provider.Ollama.Endpoint == "" {
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			c.Provider.Ollama.Endpoint = host
		}
	}
}
