package vectordb

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the research note API routes.
func RegisterRoutes(r chi.Router, store NoteStore) {
	r.Route("/api/notes", func(r chi.Router) {
		r.Post("/", handleAdd(store))
		r.Get("/search", handleSearch(store))
		r.Get("/{id}", handleGet(store))
		r.Delete("/{id}", handleDelete(store))
	})
}

func handleAdd(store NoteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var n Note
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := n.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if n.ID == "" {
			n.ID = newNoteID()
		}
		if err := store.AddNotes(r.Context(), []Note{n}); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		saved, err := store.Get(r.Context(), n.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func handleSearch(store NoteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := q.Get("q")
		if query == "" {
			writeError(w, http.StatusBadRequest, "q parameter is required")
			return
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		filter := &SearchFilter{Symbol: q.Get("symbol"), Author: q.Get("author")}

		results, err := store.Search(r.Context(), query, limit, filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if results == nil {
			results = []SearchResult{}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleGet(store NoteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNoteNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

func handleDelete(store NoteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
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
