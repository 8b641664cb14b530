package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		out := make([][]float32, len(req.Input))
		for i, in := range req.Input {
			out[i] = []float32{float32(len(in)), 1}
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: out})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", 2, srv.URL)
	vecs, err := e.Embed(context.Background(), []string{"ab", "abcd"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 2 || vecs[1][0] != 4 {
		t.Errorf("unexpected vectors %v", vecs)
	}
	if e.Name() != "ollama/nomic-embed-text" || e.Dimensions() != 2 {
		t.Errorf("identity = %s/%d", e.Name(), e.Dimensions())
	}
}

func TestOllamaEmbedderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewOllamaEmbedder("missing", 2, srv.URL).Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error on 404")
	}
}

func TestOpenAIEmbedderBatches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req struct {
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{0.5, 0.5}}
		}
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	defer srv.Close()

	texts := make([]string, openAIBatchLimit+1)
	for i := range texts {
		texts[i] = "note"
	}
	e := NewOpenAIEmbedder("test-key", ModelTextEmbedding3Small, srv.URL+"/v1")
	vecs, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Errorf("got %d vectors, want %d", len(vecs), len(texts))
	}
	if calls != 2 {
		t.Errorf("expected 2 batched calls, got %d", calls)
	}
	if e.Dimensions() != 1536 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
}

func TestOpenAIEmbedderUsesResponseIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Vectors come back in reverse order.
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []map[string]any{
			{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
			{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
		}})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", ModelTextEmbedding3Small, srv.URL+"/v1")
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors not placed by index: %v", vecs)
	}
	if e.Name() != "openai/text-embedding-3-small" {
		t.Errorf("Name = %s", e.Name())
	}
}

func TestNew(t *testing.T) {
	e, err := New("", "", "")
	if err != nil || e != nil {
		t.Errorf("disabled embeddings: %v, %v", e, err)
	}
	if _, err := New("google", "", ""); err == nil {
		t.Error("expected error for unsupported provider")
	}

	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New(ProviderOpenAI, "", ""); err == nil {
		t.Error("expected error without OPENAI_API_KEY")
	}

	e, err = New(ProviderOllama, "", "http://localhost:1")
	if err != nil {
		t.Fatalf("New ollama: %v", err)
	}
	if e.Name() != "ollama/nomic-embed-text" {
		t.Errorf("Name = %s", e.Name())
	}
}
