package orchestrator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/trii-invest/insightd/internal/contextserver"
)

func newRouter(t *testing.T, s *contextserver.Server) http.Handler {
	t.Helper()
	o, err := New(s, WithPolicies(fastSlowPolicy()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := chi.NewRouter()
	RegisterRoutes(r, o)
	return r
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/recommendations", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRecommendRoute(t *testing.T) {
	s, _ := fastSlowServer()
	w := post(newRouter(t, s), `{"symbol":"X","complexity":"medium"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"subject":"X"`) {
		t.Errorf("response should carry the subject key: %s", body)
	}
	var rec Recommendation
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Subject != "X" || rec.ModelUsed != "slow" || rec.Recommendation.Signal != Buy {
		t.Errorf("unexpected recommendation %+v", rec)
	}
}

func TestRecommendRouteBadInput(t *testing.T) {
	s, _ := fastSlowServer()
	h := newRouter(t, s)
	for _, body := range []string{`{`, `{"complexity":"low"}`, `{"symbol":"X","complexity":"extreme"}`} {
		if w := post(h, body); w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestRecommendRouteExhaustedIs503(t *testing.T) {
	w := post(newRouter(t, contextserver.New()), `{"symbol":"X"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestComplexityRoute(t *testing.T) {
	s, _ := fastSlowServer()
	w := httptest.NewRecorder()
	newRouter(t, s).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/complexity", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]Policy
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 4 || got["medium"].Preferred[0] != "fast" {
		t.Errorf("unexpected policies %+v", got)
	}
}
