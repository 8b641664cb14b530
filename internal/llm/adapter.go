// Package llm wraps heterogeneous generation backends behind one contract.
//
// Every backend (hosted API, local daemon, local quantized model) is exposed
// as an Adapter. Adapters differ only in transport, latency and how they decide
// they are available; callers never see backend-specific types.
package llm

import (
	"context"
	"net/http"
	"time"
)

// Identity is static adapter metadata. Producing it never performs I/O.
type Identity struct {
	ID        string `json:"id"`
	ModelName string `json:"model_name"`
	Provider  string `json:"provider"`
}

// Adapter is the uniform contract over one generation backend.
type Adapter interface {
	// Identity returns the adapter's registry id, model and provider name.
	Identity() Identity
	// IsAvailable is a quick liveness/configuration check. It never panics and
	// reports false on any internal error.
	IsAvailable(ctx context.Context) bool
	// Generate issues exactly one backend call. Callers must only invoke it on
	// an adapter that reported itself available.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error)
}

// Prober is implemented by adapters that can explain why they are
// unavailable. Probe returns nil exactly when IsAvailable would return true.
type Prober interface {
	Probe(ctx context.Context) error
}

// Options are the per-adapter defaults applied when a request leaves a
// parameter unset.
type Options struct {
	// BaseURL overrides the backend endpoint.
	BaseURL string
	// Timeout bounds a single backend call. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxTokens is used when the request carries none. Zero means 2000.
	MaxTokens int
	// Temperature is used when the request carries none. Nil means 0.7.
	Temperature *float64
}

const (
	DefaultTimeout     = 30 * time.Second
	defaultMaxTokens   = 2000
	defaultTemperature = 0.7
	probeTimeout       = 3 * time.Second
)

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return o.MaxTokens
}

func (o Options) temperature() float64 {
	if o.Temperature == nil {
		return defaultTemperature
	}
	return *o.Temperature
}

func (o Options) baseURL(def string) string {
	if o.BaseURL == "" {
		return def
	}
	return o.BaseURL
}

func (o Options) httpClient() *http.Client {
	return &http.Client{Timeout: o.timeout()}
}

// systemPrompt frames hosted chat models for investment analysis.
const systemPrompt = "You are a professional financial analyst providing investment recommendations. " +
	"Be objective, data-driven, and consider risk management."
