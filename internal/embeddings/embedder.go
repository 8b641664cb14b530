// Package embeddings turns research text into vectors for semantic search.
package embeddings

import (
	"context"
	"fmt"
	"os"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// Embedding providers accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const defaultOllamaDimensions = 768

// New builds the embedder for provider. An empty provider means embeddings
// are disabled and New returns nil, nil.
func New(provider, model, baseURL string) (Embedder, error) {
	switch provider {
	case "":
		return nil, nil
	case ProviderOpenAI:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for openai embeddings")
		}
		if model == "" {
			model = string(ModelTextEmbedding3Small)
		}
		return NewOpenAIEmbedder(key, OpenAIModel(model), baseURL), nil
	case ProviderOllama:
		if model == "" {
			model = "nomic-embed-text"
		}
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_HOST")
		}
		return NewOllamaEmbedder(model, defaultOllamaDimensions, baseURL), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
