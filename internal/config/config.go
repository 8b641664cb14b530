package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const envPrefix = "INSIGHTD_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. A double underscore separates nesting
// levels: INSIGHTD_SERVER__PORT sets server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := baseConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.fillDefaults()

	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validKinds = map[string]bool{
	"openai":     true,
	"openrouter": true,
	"anthropic":  true,
	"ollama":     true,
	"llamacpp":   true,
}

var validEmbeddingProviders = map[string]bool{
	"":       true,
	"openai": true,
	"ollama": true,
}

var validComplexities = map[string]bool{
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("server.request_timeout_seconds must be non-negative")
	}

	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log.format %q: must be json or console", c.Log.Format)
	}

	if c.Context.CacheTTLSeconds < 0 {
		return fmt.Errorf("context.cache_ttl_seconds must be non-negative")
	}

	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if !validKinds[b.Kind] {
			return fmt.Errorf("backends[%d]: invalid kind %q: must be one of openai, openrouter, anthropic, ollama, llamacpp", i, b.Kind)
		}
		if b.Kind == "llamacpp" {
			if b.Name == "" || b.ModelPath == "" {
				return fmt.Errorf("backends[%d]: llamacpp requires name and model_path", i)
			}
		} else if b.Model == "" {
			return fmt.Errorf("backends[%d]: model is required", i)
		}
		if b.RPM < 0 || b.MaxTokens < 0 || b.TimeoutSeconds < 0 {
			return fmt.Errorf("backends[%d]: rpm, max_tokens and timeout_seconds must be non-negative", i)
		}
		if seen[b.ID()] {
			return fmt.Errorf("backends[%d]: duplicate backend %s", i, b.ID())
		}
		seen[b.ID()] = true
	}

	for level := range c.Policies {
		if !validComplexities[level] {
			return fmt.Errorf("policies: unknown complexity %q", level)
		}
	}

	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("market_data.base_url is required")
	}

	if !validEmbeddingProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding.provider %q: must be openai or ollama", c.Embedding.Provider)
	}
	if c.Notes.TopK < 0 {
		return fmt.Errorf("notes.top_k must be non-negative")
	}

	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}

	return nil
}
