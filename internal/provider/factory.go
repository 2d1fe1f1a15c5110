package provider

import (
	"encoding/json"
	"sync"

	"github.com/nvaughn/polipulse/internal/config"
	"github.com/nvaughn/polipulse/internal/logging"
)

// Factory builds and caches the active backend. The cache is keyed by
// the serialized configuration, so changing any field - provider
// choice, endpoint, model, any API key - invalidates the cached
// instance and constructs a fresh one. Guarded by a mutex: the cached
// instance is shared mutable state reached from multiple call sites.
type Factory struct {
	mu     sync.Mutex
	key    string
	active Provider
}

func NewFactory() *Factory {
	return &Factory{}
}

// Get returns a singleton per distinct serialized configuration.
func (f *Factory) Get(cfg config.ProviderConfig) Provider {
	data, err := json.Marshal(cfg)
	if err != nil {
		// Marshal of a plain struct cannot fail; treat as cache miss
		data = nil
	}
	key := string(data)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.active != nil && f.key == key {
		return f.active
	}

	f.active = build(cfg)
	f.key = key
	logging.Info("provider selected", "provider", f.active.Name(), "configured", f.active.IsConfigured())
	return f.active
}

// build is a total switch over the backend enum.
func build(cfg config.ProviderConfig) Provider {
	switch cfg.Provider {
	case config.ProviderGemini:
		return newAIProvider(geminiWire(cfg.Gemini))
	case config.ProviderOpenAI:
		return newAIProvider(openAIWire(cfg.OpenAI))
	case config.ProviderOllama:
		return newAIProvider(ollamaWire(cfg.Ollama))
	case config.ProviderNewsRSS:
		return newNewsProvider(cfg.NewsRSS)
	}
	logging.Warn("unknown provider kind, falling back to newsrss", "kind", cfg.Provider)
	return newNewsProvider(cfg.NewsRSS)
}
