package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOllamaHost = "http://localhost:11434"

// OllamaAdapter implements Adapter against a local Ollama daemon.
type OllamaAdapter struct {
	baseURL string
	model   string
	opts    Options
	client  *http.Client
}

// NewOllamaAdapter creates a new Ollama adapter. baseURL defaults to
// http://localhost:11434 when empty.
func NewOllamaAdapter(baseURL string, model string, opts Options) *OllamaAdapter {
	if baseURL == "" {
		baseURL = defaultOllamaHost
	}
	return &OllamaAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		opts:    opts,
		client:  opts.httpClient(),
	}
}

func (a *OllamaAdapter) Identity() Identity {
	return Identity{ID: "ollama-" + a.model, ModelName: a.model, Provider: "ollama"}
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Probe checks that the daemon answers and has the model pulled.
func (a *OllamaAdapter) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode ollama tags: %w", err)
	}
	for _, m := range tags.Models {
		if matchesOllamaModel(a.model, m.Name) || matchesOllamaModel(a.model, m.Model) {
			return nil
		}
	}
	return fmt.Errorf("model %q not pulled", a.model)
}

// matchesOllamaModel treats an untagged name as ":latest".
func matchesOllamaModel(want, have string) bool {
	if want == have {
		return true
	}
	if !strings.Contains(want, ":") {
		return want+":latest" == have
	}
	return false
}

func (a *OllamaAdapter) IsAvailable(ctx context.Context) bool {
	return a.Probe(ctx) == nil
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	EvalDuration    int64  `json:"eval_duration"`
	TotalDuration   int64  `json:"total_duration"`
}

func (a *OllamaAdapter) Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	id := a.Identity().ID

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  a.model,
		Prompt: req.Prompt,
		System: systemPrompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.temperatureOr(a.opts.temperature()),
			NumPredict:  req.maxTokensOr(a.opts.maxTokens()),
		},
	})
	if err != nil {
		return nil, failure(id, fmt.Errorf("marshal ollama request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, failure(id, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, failure(id, fmt.Errorf("ollama request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, failure(id, fmt.Errorf("read ollama response: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, failure(id, fmt.Errorf("ollama returned status %d: %s", httpResp.StatusCode, string(respBody)))
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, failure(id, fmt.Errorf("unmarshal ollama response: %w", err))
	}

	content := strings.TrimSpace(out.Response)
	if content == "" {
		return nil, failure(id, ErrEmptyOutput)
	}

	return newResponse(id, content, out.PromptEvalCount+out.EvalCount, map[string]any{
		"eval_count":     out.EvalCount,
		"eval_duration":  out.EvalDuration,
		"total_duration": out.TotalDuration,
		"finish_reason":  out.DoneReason,
	}), nil
}
