package profiles

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the profile API routes.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/profiles/{id}", func(r chi.Router) {
		r.Get("/", handleGet(store))
		r.Put("/", handlePut(store))
		r.Delete("/", handleDelete(store))
		r.Get("/portfolio", handlePortfolio(store))
		r.Put("/portfolio/{symbol}", handleSetPosition(store))
		r.Get("/trades", handleTrades(store))
		r.Post("/trades", handleRecordTrade(store))
	})
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handlePut(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		p.UserID = chi.URLParam(r, "id")
		if err := p.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := store.Upsert(r.Context(), p)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleDelete(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handlePortfolio(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		positions, err := store.Portfolio(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, positions)
	}
}

func handleSetPosition(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pos Position
		if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		pos.Symbol = chi.URLParam(r, "symbol")
		userID := chi.URLParam(r, "id")
		if _, err := store.Get(r.Context(), userID); err != nil {
			writeStoreError(w, err)
			return
		}
		if err := store.SetPosition(r.Context(), userID, pos); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pos)
	}
}

func handleTrades(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		trades, err := store.Trades(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, trades)
	}
}

func handleRecordTrade(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t Trade
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		t.UserID = chi.URLParam(r, "id")
		if _, err := store.Get(r.Context(), t.UserID); err != nil {
			writeStoreError(w, err)
			return
		}
		saved, err := store.RecordTrade(r.Context(), t)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
