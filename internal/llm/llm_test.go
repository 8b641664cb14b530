package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// MockAdapter is a test adapter that records calls and returns canned responses.
type MockAdapter struct {
	mu        sync.Mutex
	ID        string
	Available bool
	Content   string
	Err       error
	Calls     []GenerationRequest
}

func NewMockAdapter(id string) *MockAdapter {
	return &MockAdapter{ID: id, Available: true, Content: "mock response"}
}

func (m *MockAdapter) Identity() Identity {
	return Identity{ID: m.ID, ModelName: m.ID, Provider: "mock"}
}

func (m *MockAdapter) IsAvailable(ctx context.Context) bool { return m.Available }

func (m *MockAdapter) Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, failure(m.ID, m.Err)
	}
	return newResponse(m.ID, m.Content, 30, nil), nil
}

func (m *MockAdapter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// --- Tests ---

func TestOllamaAvailabilityRequiresPulledModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama2:13b"},{"name":"codellama:latest"}]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	cases := map[string]bool{
		"llama2:13b": true,
		"codellama":  true,
		"llama2:7b":  false,
	}
	for model, want := range cases {
		a := NewOllamaAdapter(srv.URL, model, Options{})
		if got := a.IsAvailable(ctx); got != want {
			t.Errorf("IsAvailable(%s) = %v, want %v", model, got, want)
		}
	}
}

func TestOllamaUnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := NewOllamaAdapter(url, "llama2:7b", Options{})
	if a.IsAvailable(context.Background()) {
		t.Error("expected closed server to be unavailable")
	}
	if err := a.Probe(context.Background()); err == nil {
		t.Error("expected probe error")
	}
}

func TestOllamaGenerate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"model":"llama2:7b","response":" BUY it ","done":true,"prompt_eval_count":12,"eval_count":8,"eval_duration":100,"total_duration":250}`))
	}))
	defer srv.Close()

	a := NewOllamaAdapter(srv.URL, "llama2:7b", Options{})
	resp, err := a.Generate(context.Background(), GenerationRequest{
		Prompt:      "analyze",
		MaxTokens:   Int(500),
		Temperature: Float(0.2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Stream {
		t.Error("expected non-streaming request")
	}
	if got.Options.NumPredict != 500 || got.Options.Temperature != 0.2 {
		t.Errorf("request options not applied: %+v", got.Options)
	}
	if resp.Content != "BUY it" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.ModelUsed != "ollama-llama2:7b" {
		t.Errorf("model_used = %q", resp.ModelUsed)
	}
	if resp.TokensUsed == nil || *resp.TokensUsed != 20 {
		t.Errorf("tokens_used = %v", resp.TokensUsed)
	}
	for _, k := range []string{"eval_count", "eval_duration", "total_duration"} {
		if _, ok := resp.Metadata[k]; !ok {
			t.Errorf("metadata missing %q", k)
		}
	}
}

func TestConfiguredZeroTemperatureIsKept(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"model":"llama2:7b","response":"HOLD","done":true}`))
	}))
	defer srv.Close()

	a := NewOllamaAdapter(srv.URL, "llama2:7b", Options{Temperature: Float(0)})
	if _, err := a.Generate(context.Background(), GenerationRequest{Prompt: "analyze"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Options.Temperature != 0 {
		t.Errorf("temperature = %v, want configured 0", got.Options.Temperature)
	}

	a = NewOllamaAdapter(srv.URL, "llama2:7b", Options{})
	if _, err := a.Generate(context.Background(), GenerationRequest{Prompt: "analyze"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Options.Temperature != defaultTemperature {
		t.Errorf("temperature = %v, want default %v", got.Options.Temperature, defaultTemperature)
	}
}

func TestChatTemperatureZero(t *testing.T) {
	if chatTemperature(0) <= 0 {
		t.Error("zero temperature must be sent as a positive value")
	}
	if chatTemperature(0.5) != 0.5 {
		t.Errorf("chatTemperature(0.5) = %v", chatTemperature(0.5))
	}
}

func TestOllamaEmptyOutputFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"   ","done":true}`))
	}))
	defer srv.Close()

	a := NewOllamaAdapter(srv.URL, "llama2:7b", Options{})
	_, err := a.Generate(context.Background(), GenerationRequest{Prompt: "x"})
	var gf *GenerationFailure
	if !errors.As(err, &gf) {
		t.Fatalf("expected GenerationFailure, got %v", err)
	}
	if gf.Adapter != "ollama-llama2:7b" {
		t.Errorf("adapter = %q", gf.Adapter)
	}
	if !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("expected ErrEmptyOutput cause, got %v", gf.Cause)
	}
}

func TestLlamaCppAvailability(t *testing.T) {
	var unhealthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	modelPath := filepath.Join(t.TempDir(), "quantized-7b.gguf")
	ctx := context.Background()

	a := NewLlamaCppAdapter(srv.URL, modelPath, "", Options{})
	if a.Identity().ID != "llama-cpp-quantized-7b" {
		t.Errorf("id = %q", a.Identity().ID)
	}
	if a.IsAvailable(ctx) {
		t.Error("expected unavailable without model file")
	}

	if err := os.WriteFile(modelPath, []byte("gguf"), 0644); err != nil {
		t.Fatal(err)
	}
	if !a.IsAvailable(ctx) {
		t.Error("expected available with model file and healthy server")
	}

	unhealthy.Store(true)
	if a.IsAvailable(ctx) {
		t.Error("expected unavailable when health fails")
	}
}

func TestLlamaCppGenerate(t *testing.T) {
	var got llamaCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"content":"HOLD. Confidence: 55%","tokens_evaluated":40,"tokens_predicted":10}`))
	}))
	defer srv.Close()

	a := NewLlamaCppAdapter(srv.URL, "/models/q13.gguf", "quantized-13b", Options{MaxTokens: 800})
	resp, err := a.Generate(context.Background(), GenerationRequest{Prompt: "analyze"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.NPredict != 800 {
		t.Errorf("n_predict = %d, want adapter default 800", got.NPredict)
	}
	if !strings.HasSuffix(got.Prompt, "analyze") {
		t.Errorf("prompt = %q", got.Prompt)
	}
	if resp.ModelUsed != "llama-cpp-quantized-13b" {
		t.Errorf("model_used = %q", resp.ModelUsed)
	}
	if *resp.TokensUsed != 50 {
		t.Errorf("tokens_used = %d", *resp.TokensUsed)
	}
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(`{"model":"claude-haiku-4-5-20251001","stop_reason":"end_turn","content":[{"type":"text","text":"BUY"}],"usage":{"input_tokens":100,"output_tokens":5}}`))
	}))
	defer srv.Close()

	a := NewAnthropicAdapter("k", "claude-haiku-4-5-20251001", Options{BaseURL: srv.URL})
	resp, err := a.Generate(context.Background(), GenerationRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "BUY" || resp.ModelUsed != "anthropic-claude-haiku-4-5-20251001" {
		t.Errorf("unexpected response %+v", resp)
	}
	if _, ok := resp.Metadata["estimated_cost_usd"]; !ok {
		t.Error("expected cost annotation for priced model")
	}
}

func TestAnthropicErrorStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	a := NewAnthropicAdapter("k", "claude-haiku-4-5-20251001", Options{BaseURL: srv.URL})
	_, err := a.Generate(context.Background(), GenerationRequest{Prompt: "x"})
	var gf *GenerationFailure
	if !errors.As(err, &gf) {
		t.Fatalf("expected GenerationFailure, got %v", err)
	}
}

func TestOpenAICompatibleGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4","choices":[{"index":0,"message":{"role":"assistant","content":"AVOID"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`))
	}))
	defer srv.Close()

	a := NewOpenAIAdapter("k", "gpt-4", Options{BaseURL: srv.URL + "/v1"})
	resp, err := a.Generate(context.Background(), GenerationRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "AVOID" || resp.ModelUsed != "openai-gpt-4" {
		t.Errorf("unexpected response %+v", resp)
	}
	if *resp.TokensUsed != 12 {
		t.Errorf("tokens_used = %d", *resp.TokensUsed)
	}
}

func TestOpenRouterIdentity(t *testing.T) {
	a := NewOpenRouterAdapter("", "meta-llama/llama-3-70b", Options{})
	id := a.Identity()
	if id.ID != "openrouter-meta-llama/llama-3-70b" || id.Provider != "openrouter" {
		t.Errorf("unexpected identity %+v", id)
	}
	if a.IsAvailable(context.Background()) {
		t.Error("expected unavailable without api key")
	}
}

func TestFactoryMissingAPIKeyBuildsUnavailableAdapter(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	for _, kind := range []string{KindOpenAI, KindAnthropic, KindOpenRouter} {
		a, err := New(BackendSpec{Kind: kind, Model: "m"})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		if a.IsAvailable(context.Background()) {
			t.Errorf("%s: expected unavailable without key", kind)
		}
	}
}

func TestFactoryReadsAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	a, err := New(BackendSpec{Kind: KindOpenAI, Model: "gpt-4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.IsAvailable(context.Background()) {
		t.Error("expected available with key in env")
	}
	if a.Identity().ID != "openai-gpt-4" {
		t.Errorf("id = %q", a.Identity().ID)
	}
}

func TestFactoryErrors(t *testing.T) {
	if _, err := New(BackendSpec{Kind: "unknown", Model: "m"}); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := New(BackendSpec{Kind: KindOllama}); err == nil {
		t.Error("expected error for missing model")
	}
	if _, err := New(BackendSpec{Kind: KindLlamaCpp, Name: "q7"}); err == nil {
		t.Error("expected error for missing model path")
	}
}

func TestFactoryWrapsRateLimited(t *testing.T) {
	a, err := New(BackendSpec{Kind: KindOllama, Model: "llama2:7b", RPM: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := a.(*RateLimited); !ok {
		t.Errorf("expected *RateLimited, got %T", a)
	}
	if a.Identity().ID != "ollama-llama2:7b" {
		t.Errorf("id = %q", a.Identity().ID)
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockAdapter("test")
	rl := NewRateLimited(mock, 60)

	resp, err := rl.Generate(context.Background(), GenerationRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Identity().ID != "test" {
		t.Errorf("expected id 'test', got %q", rl.Identity().ID)
	}

	mock.Available = false
	if err := rl.(Prober).Probe(context.Background()); err == nil {
		t.Error("expected probe error for unavailable adapter")
	}
}

func TestRateLimiterFailsFastWhenExhausted(t *testing.T) {
	mock := NewMockAdapter("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimited(mock, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := rl.Generate(ctx, GenerationRequest{Prompt: "hello"}); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// The next slot is 30s away; the call must fail without waiting for it.
	start := time.Now()
	_, err := rl.Generate(ctx, GenerationRequest{Prompt: "hello"})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Generate blocked for %s", elapsed)
	}
	var gf *GenerationFailure
	if !errors.As(err, &gf) || gf.Adapter != "test" {
		t.Errorf("expected GenerationFailure for test, got %v", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if mock.CallCount() != 2 {
		t.Errorf("expected 2 backend calls, got %d", mock.CallCount())
	}
}

func TestEstimateCost(t *testing.T) {
	// gpt-4: $30/1M input, $60/1M output
	cost := EstimateCost("gpt-4", 1_000_000, 1_000_000)
	if cost < 89.99 || cost > 90.01 {
		t.Errorf("expected cost ~$90, got $%.2f", cost)
	}
	if EstimateCost("openai/gpt-4o-mini", 1000, 500) <= 0 {
		t.Error("expected vendor-prefixed model to be priced")
	}
	if EstimateCost("llama2:13b", 1000, 500) != 0 {
		t.Error("expected local model to be free")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"hello world!!", 3},
		{"a longer piece of text that has more characters", 11},
	}

	for _, tt := range tests {
		got := EstimateTokens(tt.text)
		if got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
