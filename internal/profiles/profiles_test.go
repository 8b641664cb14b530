package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trii-invest/insightd/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestUpsertAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	saved, err := store.Upsert(ctx, Profile{
		UserID:           "u1",
		RiskLevel:        ModerateAggressive,
		RiskScore:        70,
		PreferredSectors: []string{"technology", "healthcare"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if saved.TimeHorizon != "medium_term" || saved.PrimaryGoal != "growth" || saved.MaxSinglePosition != 10 {
		t.Errorf("defaults not applied: %+v", saved)
	}
	if !reflect.DeepEqual(saved.PreferredSectors, []string{"technology", "healthcare"}) {
		t.Errorf("PreferredSectors = %v", saved.PreferredSectors)
	}
	if len(saved.ExcludedSectors) != 0 {
		t.Errorf("ExcludedSectors = %v", saved.ExcludedSectors)
	}
	if saved.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	saved.RiskLevel = Conservative
	updated, err := store.Upsert(ctx, *saved)
	if err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if updated.RiskLevel != Conservative {
		t.Errorf("RiskLevel = %q", updated.RiskLevel)
	}
}

func TestGetUnknown(t *testing.T) {
	store := setupStore(t)
	if _, err := store.Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	bad := []Profile{
		{},
		{UserID: "u", RiskLevel: "reckless"},
		{UserID: "u", RiskScore: 101},
		{UserID: "u", TimeHorizon: "forever"},
		{UserID: "u", MaxSinglePosition: 150},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestRecordTradeUpdatesPosition(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	if _, err := store.Upsert(ctx, Profile{UserID: "u1"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	steps := []Trade{
		{UserID: "u1", Symbol: "AAPL", Side: SideBuy, Quantity: 10, Price: 100, ExecutedAt: base},
		{UserID: "u1", Symbol: "AAPL", Side: SideBuy, Quantity: 10, Price: 200, ExecutedAt: base.Add(time.Hour)},
		{UserID: "u1", Symbol: "AAPL", Side: SideSell, Quantity: 5, Price: 210, ExecutedAt: base.Add(2 * time.Hour)},
	}
	for _, tr := range steps {
		if _, err := store.RecordTrade(ctx, tr); err != nil {
			t.Fatalf("RecordTrade: %v", err)
		}
	}

	positions, err := store.Portfolio(ctx, "u1")
	if err != nil {
		t.Fatalf("Portfolio: %v", err)
	}
	want := []Position{{Symbol: "AAPL", Quantity: 15, AvgCost: 150}}
	if !reflect.DeepEqual(positions, want) {
		t.Errorf("positions = %+v, want %+v", positions, want)
	}

	trades, err := store.Trades(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 3 || trades[0].Side != SideSell {
		t.Errorf("trades not newest first: %+v", trades)
	}

	if _, err := store.RecordTrade(ctx, Trade{UserID: "u1", Symbol: "AAPL", Side: SideSell, Quantity: 100, Price: 1}); err != nil {
		t.Fatalf("RecordTrade oversell: %v", err)
	}
	positions, _ = store.Portfolio(ctx, "u1")
	if len(positions) != 0 {
		t.Errorf("expected position closed, got %+v", positions)
	}
}

func TestRecordTradeRejectsBadSide(t *testing.T) {
	store := setupStore(t)
	if _, err := store.RecordTrade(context.Background(), Trade{UserID: "u1", Symbol: "X", Side: "short", Quantity: 1}); err == nil {
		t.Error("expected error for invalid side")
	}
}

func TestDeleteCascades(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	store.Upsert(ctx, Profile{UserID: "u1"})
	if err := store.SetPosition(ctx, "u1", Position{Symbol: "MSFT", Quantity: 3, AvgCost: 300}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if err := store.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	positions, _ := store.Portfolio(ctx, "u1")
	if len(positions) != 0 {
		t.Errorf("positions survived delete: %+v", positions)
	}
	if err := store.Delete(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestHTTPProfileRoundTrip(t *testing.T) {
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	body := `{"risk_level":"aggressive","risk_score":85,"preferred_sectors":["energy"]}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/profiles/u9", bytes.NewBufferString(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status = %d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profiles/u9", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	var p Profile
	json.NewDecoder(w.Body).Decode(&p)
	if p.UserID != "u9" || p.RiskLevel != Aggressive {
		t.Errorf("unexpected profile %+v", p)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profiles/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing profile status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/profiles/u9", bytes.NewBufferString(`{"risk_level":"reckless"}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid profile status = %d", w.Code)
	}
}

func TestHTTPRecordTrade(t *testing.T) {
	store := setupStore(t)
	store.Upsert(context.Background(), Profile{UserID: "u1"})
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/profiles/u1/trades",
		bytes.NewBufferString(`{"symbol":"NVDA","side":"buy","quantity":2,"price":500}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profiles/u1/portfolio", nil))
	var positions []Position
	json.NewDecoder(w.Body).Decode(&positions)
	if len(positions) != 1 || positions[0].Quantity != 2 {
		t.Errorf("positions = %+v", positions)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/profiles/ghost/trades",
		bytes.NewBufferString(`{"symbol":"NVDA","side":"buy","quantity":2,"price":500}`)))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d", w.Code)
	}
}
