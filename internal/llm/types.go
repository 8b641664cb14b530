package llm

import (
	"time"

	"github.com/trii-invest/insightd/internal/resource"
)

// GenerationRequest is one call to a generation backend.
type GenerationRequest struct {
	Prompt           string            `json:"prompt"`
	Context          *resource.Context `json:"context"`
	ModelPreferences []string          `json:"model_preferences"`
	MaxTokens        *int              `json:"max_tokens,omitempty"`
	Temperature      *float64          `json:"temperature,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// SessionID returns the session of the attached context, or "".
func (r GenerationRequest) SessionID() string {
	if r.Context == nil {
		return ""
	}
	return r.Context.SessionID
}

func (r GenerationRequest) maxTokensOr(def int) int {
	if r.MaxTokens != nil && *r.MaxTokens > 0 {
		return *r.MaxTokens
	}
	return def
}

func (r GenerationRequest) temperatureOr(def float64) float64 {
	if r.Temperature != nil {
		return *r.Temperature
	}
	return def
}

// GenerationResponse is what an adapter produced.
type GenerationResponse struct {
	Content         string         `json:"content"`
	ModelUsed       string         `json:"model_used"`
	TokensUsed      *int           `json:"tokens_used,omitempty"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
	Metadata        map[string]any `json:"metadata"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func newResponse(id, content string, tokens int, metadata map[string]any) *GenerationResponse {
	if metadata == nil {
		metadata = map[string]any{}
	}
	resp := &GenerationResponse{
		Content:     content,
		ModelUsed:   id,
		Metadata:    metadata,
		GeneratedAt: time.Now().UTC(),
	}
	if tokens > 0 {
		resp.TokensUsed = Int(tokens)
	}
	return resp
}
