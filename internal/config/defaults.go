package config

// DefaultBackends returns the backends registered when the config file
// declares none: two hosted OpenAI models, three Ollama models and two
// quantized llama.cpp models.
func DefaultBackends() []BackendConfig {
	return []BackendConfig{
		{Kind: "openai", Model: "gpt-4", RPM: 60, MaxTokens: 2000, Temperature: float64Ptr(0.7)},
		{Kind: "openai", Model: "gpt-3.5-turbo", RPM: 60, MaxTokens: 1500, Temperature: float64Ptr(0.7)},
		{Kind: "ollama", Model: "llama2:7b", BaseURL: "http://localhost:11434"},
		{Kind: "ollama", Model: "llama2:13b", BaseURL: "http://localhost:11434"},
		{Kind: "ollama", Model: "codellama", BaseURL: "http://localhost:11434"},
		{Kind: "llamacpp", Name: "quantized-7b", BaseURL: "http://localhost:8080", ModelPath: "./models/llama-2-7b-chat.Q4_K_M.gguf"},
		{Kind: "llamacpp", Name: "quantized-13b", BaseURL: "http://localhost:8081", ModelPath: "./models/llama-2-13b-chat.Q4_K_M.gguf", TimeoutSeconds: 60},
	}
}

func float64Ptr(v float64) *float64 { return &v }

// baseConfig carries every scalar default. Slice defaults are applied after
// unmarshalling so a configured list replaces the default instead of being
// merged element by element.
func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  8090,
			RequestTimeoutSeconds: 120,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Context: ContextConfig{
			CacheTTLSeconds: 300,
		},
		MarketData: MarketDataConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 10,
		},
		Notes: NotesConfig{
			Dir:  ".insightd/notes",
			TopK: 3,
		},
		DBPath: ".insightd/insightd.db",
		Audit:  true,
	}
}

func (c *Config) fillDefaults() {
	if len(c.Backends) == 0 {
		c.Backends = DefaultBackends()
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	c := baseConfig()
	c.fillDefaults()
	return c
}
