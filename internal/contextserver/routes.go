package contextserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trii-invest/insightd/internal/llm"
	"github.com/trii-invest/insightd/internal/resource"
)

// RegisterRoutes mounts the context, model and cache API routes.
func RegisterRoutes(r chi.Router, s *Server) {
	r.Route("/api/context", func(r chi.Router) {
		r.Post("/build", handleBuild(s))
		r.Get("/resource", handleResource(s))
		r.Get("/cache", handleCacheStats(s))
		r.Delete("/cache", handleClearCache(s))
	})
	r.Post("/api/generate", handleGenerate(s))
	r.Get("/api/models", handleModels(s))
	r.Get("/api/models/health", handleHealth(s))
}

type buildRequest struct {
	SessionID    string         `json:"session_id"`
	UserID       string         `json:"user_id"`
	Scope        resource.Scope `json:"scope"`
	IncludeTools bool           `json:"include_tools"`
}

func handleBuild(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req buildRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.SessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}

		c, err := s.BuildContext(r.Context(), req.SessionID, req.UserID, req.Scope, req.IncludeTools)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleResource(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.Query().Get("uri")
		if uri == "" {
			writeError(w, http.StatusBadRequest, "uri parameter is required")
			return
		}
		content, ok := s.FetchContent(r.Context(), uri)
		if !ok {
			writeError(w, http.StatusNotFound, "resource not found")
			return
		}
		writeJSON(w, http.StatusOK, content)
	}
}

func handleGenerate(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req llm.GenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Prompt == "" {
			writeError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		resp, err := s.Generate(r.Context(), req)
		if err != nil {
			writeError(w, StatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleModels(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.AvailableModels(r.Context()))
	}
}

func handleHealth(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := s.HealthCheck(r.Context())
		status := http.StatusOK
		if report.OverallStatus == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func handleCacheStats(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.CacheStats())
	}
}

func handleClearCache(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := s.ClearCache(r.URL.Query().Get("session_id"))
		writeJSON(w, http.StatusOK, map[string]int{"affected_items": n})
	}
}

// StatusFor maps a dispatch error to an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, ErrAllModelsExhausted) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
