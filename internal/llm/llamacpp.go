package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const defaultLlamaCppHost = "http://localhost:8080"

// LlamaCppAdapter talks to a llama.cpp llama-server process serving a local
// quantized GGUF model.
type LlamaCppAdapter struct {
	baseURL   string
	modelPath string
	name      string
	opts      Options
	client    *http.Client
}

// NewLlamaCppAdapter creates an adapter for the model at modelPath. name is
// the short registry name (e.g. "quantized-13b"); when empty it is derived
// from the model file name.
func NewLlamaCppAdapter(baseURL, modelPath, name string, opts Options) *LlamaCppAdapter {
	if baseURL == "" {
		baseURL = defaultLlamaCppHost
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))
	}
	return &LlamaCppAdapter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		modelPath: modelPath,
		name:      name,
		opts:      opts,
		client:    opts.httpClient(),
	}
}

func (a *LlamaCppAdapter) Identity() Identity {
	return Identity{ID: "llama-cpp-" + a.name, ModelName: a.name, Provider: "llama-cpp"}
}

// Probe requires the model file on disk and a healthy server.
func (a *LlamaCppAdapter) Probe(ctx context.Context) error {
	if a.modelPath == "" {
		return fmt.Errorf("model path not configured")
	}
	if _, err := os.Stat(a.modelPath); err != nil {
		return fmt.Errorf("model file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("llama-server unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llama-server health returned status %d", resp.StatusCode)
	}
	return nil
}

func (a *LlamaCppAdapter) IsAvailable(ctx context.Context) bool {
	return a.Probe(ctx) == nil
}

type llamaCompletionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
}

type llamaCompletionResponse struct {
	Content         string `json:"content"`
	TokensEvaluated int    `json:"tokens_evaluated"`
	TokensPredicted int    `json:"tokens_predicted"`
	StoppedEOS      bool   `json:"stopped_eos"`
	StoppedLimit    bool   `json:"stopped_limit"`
}

func (a *LlamaCppAdapter) Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	id := a.Identity().ID

	body, err := json.Marshal(llamaCompletionRequest{
		Prompt:      systemPrompt + "\n\n" + req.Prompt,
		NPredict:    req.maxTokensOr(a.opts.maxTokens()),
		Temperature: req.temperatureOr(a.opts.temperature()),
		Stop:        []string{"Human:", "User:"},
	})
	if err != nil {
		return nil, failure(id, fmt.Errorf("marshal completion request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, failure(id, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, failure(id, fmt.Errorf("llama-server request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, failure(id, fmt.Errorf("read completion response: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, failure(id, fmt.Errorf("llama-server returned status %d: %s", httpResp.StatusCode, string(respBody)))
	}

	var out llamaCompletionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, failure(id, fmt.Errorf("unmarshal completion response: %w", err))
	}

	content := strings.TrimSpace(out.Content)
	if content == "" {
		return nil, failure(id, ErrEmptyOutput)
	}

	finish := "stop"
	if out.StoppedLimit {
		finish = "length"
	}
	return newResponse(id, content, out.TokensEvaluated+out.TokensPredicted, map[string]any{
		"model_path":    a.modelPath,
		"finish_reason": finish,
	}), nil
}
