package llm

import (
	"context"
	"errors"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements Adapter using the OpenAI Chat Completions API.
// Any OpenAI-compatible endpoint works through Options.BaseURL.
type OpenAIAdapter struct {
	client   *openai.Client
	apiKey   string
	model    string
	provider string
	opts     Options
}

// NewOpenAIAdapter creates a new OpenAI adapter. An empty apiKey leaves the
// adapter registered but unavailable.
func NewOpenAIAdapter(apiKey string, model string, opts Options) *OpenAIAdapter {
	return newChatAdapter("openai", apiKey, model, opts)
}

func newChatAdapter(provider, apiKey, model string, opts Options) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = opts.httpClient()
	return &OpenAIAdapter{
		client:   openai.NewClientWithConfig(cfg),
		apiKey:   apiKey,
		model:    model,
		provider: provider,
		opts:     opts,
	}
}

func (a *OpenAIAdapter) Identity() Identity {
	return Identity{ID: a.provider + "-" + a.model, ModelName: a.model, Provider: a.provider}
}

func (a *OpenAIAdapter) Probe(ctx context.Context) error {
	if a.apiKey == "" {
		return errors.New("api key not configured")
	}
	return nil
}

func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	return a.Probe(ctx) == nil
}

func (a *OpenAIAdapter) Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	id := a.Identity().ID

	ctx, cancel := context.WithTimeout(ctx, a.opts.timeout())
	defer cancel()

	apiReq := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.maxTokensOr(a.opts.maxTokens()),
		Temperature: chatTemperature(req.temperatureOr(a.opts.temperature())),
	}

	resp, err := a.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, failure(id, err)
	}

	if len(resp.Choices) == 0 {
		return nil, failure(id, ErrEmptyOutput)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, failure(id, ErrEmptyOutput)
	}

	metadata := map[string]any{
		"finish_reason": string(resp.Choices[0].FinishReason),
		"model":         resp.Model,
	}
	if cost := EstimateCost(a.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); cost > 0 {
		metadata["estimated_cost_usd"] = cost
	}

	return newResponse(id, content, resp.Usage.TotalTokens, metadata), nil
}

// chatTemperature maps 0 to the smallest positive float32, since the client
// omits a zero temperature and the API would apply its own default.
func chatTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
