// Package embedder turns text into embedding vectors for the semantic index.
package embedder

import (
	"context"
	"fmt"

	"github.com/bowerhall/conductor/internal/config"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New returns the configured embedder, or nil when embeddings are disabled.
// A nil embedder leaves retrieval in keyword-only mode.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	var base Embedder

	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		base = newOllama(baseURL, model)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", cfg.Provider)
	}

	if cfg.CacheBytes <= 0 {
		return base, nil
	}

	return NewCached(base, cfg.Model, cfg.CacheBytes, cfg.CacheTTL)
}
