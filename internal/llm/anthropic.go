package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const anthropicBaseURL = "https://api.anthropic.com"

// AnthropicAdapter implements Adapter using the Anthropic Messages API via direct HTTP.
type AnthropicAdapter struct {
	apiKey  string
	model   string
	baseURL string
	opts    Options
	client  *http.Client
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter(apiKey string, model string, opts Options) *AnthropicAdapter {
	return &AnthropicAdapter{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(opts.baseURL(anthropicBaseURL), "/"),
		opts:    opts,
		client:  opts.httpClient(),
	}
}

func (a *AnthropicAdapter) Identity() Identity {
	return Identity{ID: "anthropic-" + a.model, ModelName: a.model, Provider: "anthropic"}
}

func (a *AnthropicAdapter) Probe(ctx context.Context) error {
	if a.apiKey == "" {
		return errors.New("api key not configured")
	}
	return nil
}

func (a *AnthropicAdapter) IsAvailable(ctx context.Context) bool {
	return a.Probe(ctx) == nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (a *AnthropicAdapter) Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	id := a.Identity().ID

	apiReq := anthropicRequest{
		Model:       a.model,
		MaxTokens:   req.maxTokensOr(a.opts.maxTokens()),
		Temperature: req.temperatureOr(a.opts.temperature()),
		System:      systemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, failure(id, fmt.Errorf("marshal anthropic request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, failure(id, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, failure(id, fmt.Errorf("anthropic request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, failure(id, fmt.Errorf("read anthropic response: %w", err))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, failure(id, fmt.Errorf("unmarshal anthropic response: %w", err))
	}
	if apiResp.Error != nil {
		return nil, failure(id, fmt.Errorf("anthropic API error (%s): %s", apiResp.Error.Type, apiResp.Error.Message))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, failure(id, fmt.Errorf("anthropic returned status %d: %s", httpResp.StatusCode, string(respBody)))
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return nil, failure(id, ErrEmptyOutput)
	}

	metadata := map[string]any{
		"finish_reason": apiResp.StopReason,
		"model":         apiResp.Model,
	}
	if cost := EstimateCost(a.model, apiResp.Usage.InputTokens, apiResp.Usage.OutputTokens); cost > 0 {
		metadata["estimated_cost_usd"] = cost
	}

	return newResponse(id, content, apiResp.Usage.InputTokens+apiResp.Usage.OutputTokens, metadata), nil
}
