package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trii-invest/insightd/internal/contextserver"
)

// RegisterRoutes mounts the recommendation API routes.
func RegisterRoutes(r chi.Router, o *Orchestrator) {
	r.Post("/api/recommendations", handleRecommend(o))
	r.Get("/api/complexity", handleComplexity(o))
}

// RecommendRequest is the body of POST /api/recommendations.
type RecommendRequest struct {
	Symbol      string         `json:"symbol"`
	UserID      string         `json:"user_id"`
	ContextData map[string]any `json:"context_data"`
	Complexity  string         `json:"complexity"`
}

// Recommend validates req and runs it, returning the HTTP status that
// describes the outcome.
func (o *Orchestrator) Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, int, error) {
	if req.Symbol == "" {
		return nil, http.StatusBadRequest, errors.New("symbol is required")
	}
	c, err := ParseComplexity(req.Complexity)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	rec, err := o.GenerateRecommendation(ctx, req.Symbol, req.UserID, req.ContextData, c)
	if err != nil {
		return nil, contextserver.StatusFor(err), err
	}
	return rec, http.StatusOK, nil
}

func handleRecommend(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RecommendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rec, status, err := o.Recommend(r.Context(), req)
		if err != nil {
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, status, rec)
	}
}

func handleComplexity(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, o.Policies())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
