package config

// DefaultPath is where the CLI looks for configuration.
const DefaultPath = ".insightd.yml"

// Config is the top-level insightd configuration, corresponding to .insightd.yml.
type Config struct {
	Server     ServerConfig            `yaml:"server" koanf:"server"`
	Log        LogConfig               `yaml:"log" koanf:"log"`
	Context    ContextConfig           `yaml:"context" koanf:"context"`
	Backends   []BackendConfig         `yaml:"backends" koanf:"backends"`
	Policies   map[string]PolicyConfig `yaml:"policies,omitempty" koanf:"policies"`
	MarketData MarketDataConfig        `yaml:"market_data" koanf:"market_data"`
	Embedding  EmbeddingConfig         `yaml:"embedding" koanf:"embedding"`
	Notes      NotesConfig             `yaml:"notes" koanf:"notes"`
	DBPath     string                  `yaml:"db_path" koanf:"db_path"`
	Audit      bool                    `yaml:"audit" koanf:"audit"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host                  string   `yaml:"host" koanf:"host"`
	Port                  int      `yaml:"port" koanf:"port"`
	CORSOrigins           []string `yaml:"cors_origins" koanf:"cors_origins"`
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds" koanf:"request_timeout_seconds"`
}

// LogConfig mirrors logging.Options.
type LogConfig struct {
	Level      string `yaml:"level" koanf:"level"`
	Format     string `yaml:"format" koanf:"format"`
	File       string `yaml:"file,omitempty" koanf:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" koanf:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" koanf:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" koanf:"max_age_days"`
	Compress   bool   `yaml:"compress" koanf:"compress"`
}

// ContextConfig tunes the context server.
type ContextConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" koanf:"cache_ttl_seconds"`
	// FallbackChain lists adapter ids tried after a policy's preferred
	// models. Empty means the built-in chain.
	FallbackChain []string `yaml:"fallback_chain,omitempty" koanf:"fallback_chain"`
}

// BackendConfig declares one generation backend.
type BackendConfig struct {
	Kind           string   `yaml:"kind" koanf:"kind"`
	Model          string   `yaml:"model,omitempty" koanf:"model"`
	Name           string   `yaml:"name,omitempty" koanf:"name"`
	BaseURL        string   `yaml:"base_url,omitempty" koanf:"base_url"`
	ModelPath      string   `yaml:"model_path,omitempty" koanf:"model_path"`
	RPM            int      `yaml:"rpm,omitempty" koanf:"rpm"`
	MaxTokens      int      `yaml:"max_tokens,omitempty" koanf:"max_tokens"`
	Temperature    *float64 `yaml:"temperature,omitempty" koanf:"temperature"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" koanf:"timeout_seconds"`
}

// ID returns the adapter id the backend registers under.
func (b BackendConfig) ID() string {
	switch b.Kind {
	case "llamacpp":
		return "llama-cpp-" + b.Name
	default:
		return b.Kind + "-" + b.Model
	}
}

// PolicyConfig overrides the built-in policy for one complexity level.
type PolicyConfig struct {
	Preferred   []string `yaml:"preferred" koanf:"preferred"`
	MaxTokens   int      `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature float64  `yaml:"temperature" koanf:"temperature"`
}

// MarketDataConfig points the market data provider at its upstreams.
type MarketDataConfig struct {
	BaseURL        string `yaml:"base_url" koanf:"base_url"`
	AnalysisURL    string `yaml:"analysis_url,omitempty" koanf:"analysis_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" koanf:"timeout_seconds"`
}

// EmbeddingConfig selects the embedder for research notes. An empty
// provider disables the notes provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider,omitempty" koanf:"provider"`
	Model    string `yaml:"model,omitempty" koanf:"model"`
	BaseURL  string `yaml:"base_url,omitempty" koanf:"base_url"`
}

// NotesConfig holds research note storage settings.
type NotesConfig struct {
	Dir  string `yaml:"dir" koanf:"dir"`
	TopK int    `yaml:"top_k" koanf:"top_k"`
}
