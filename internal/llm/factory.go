package llm

import (
	"fmt"
	"os"
)

// Backend kinds accepted by New.
const (
	KindOpenAI     = "openai"
	KindOpenRouter = "openrouter"
	KindAnthropic  = "anthropic"
	KindOllama     = "ollama"
	KindLlamaCpp   = "llamacpp"
)

// BackendSpec describes one configured generation backend.
type BackendSpec struct {
	Kind      string
	Model     string
	Name      string // llama.cpp registry name
	BaseURL   string
	ModelPath string
	APIKey    string // falls back to the kind's conventional env var
	RPM       int
	Options   Options
}

// APIKeyEnvVar returns the conventional environment variable holding the API
// key for a hosted backend kind, or "".
func APIKeyEnvVar(kind string) string {
	switch kind {
	case KindOpenAI:
		return "OPENAI_API_KEY"
	case KindOpenRouter:
		return "OPENROUTER_API_KEY"
	case KindAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// New creates an adapter for spec, wrapped with a rate limiter when RPM > 0.
// A missing API key is not an error: the adapter is built and reports itself
// unavailable.
func New(spec BackendSpec) (Adapter, error) {
	if spec.Model == "" && spec.Kind != KindLlamaCpp {
		return nil, fmt.Errorf("backend %s: model is required", spec.Kind)
	}

	apiKey := spec.APIKey
	if apiKey == "" {
		if env := APIKeyEnvVar(spec.Kind); env != "" {
			apiKey = os.Getenv(env)
		}
	}

	opts := spec.Options
	if spec.BaseURL != "" {
		opts.BaseURL = spec.BaseURL
	}

	var a Adapter
	switch spec.Kind {
	case KindOpenAI:
		a = NewOpenAIAdapter(apiKey, spec.Model, opts)
	case KindOpenRouter:
		a = NewOpenRouterAdapter(apiKey, spec.Model, opts)
	case KindAnthropic:
		a = NewAnthropicAdapter(apiKey, spec.Model, opts)
	case KindOllama:
		host := spec.BaseURL
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		a = NewOllamaAdapter(host, spec.Model, opts)
	case KindLlamaCpp:
		if spec.ModelPath == "" {
			return nil, fmt.Errorf("backend llamacpp: model_path is required")
		}
		a = NewLlamaCppAdapter(spec.BaseURL, spec.ModelPath, spec.Name, opts)
	default:
		return nil, fmt.Errorf("unsupported backend kind: %s", spec.Kind)
	}

	return NewRateLimited(a, spec.RPM), nil
}
