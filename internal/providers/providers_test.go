package providers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/trii-invest/insightd/internal/db"
	"github.com/trii-invest/insightd/internal/profiles"
	"github.com/trii-invest/insightd/internal/resource"
	"github.com/trii-invest/insightd/internal/vectordb"
)

func uris(rs []resource.Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.URI
	}
	return out
}

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri         string
		scope, kind string
		ok          bool
	}{
		{"market-data://AAPL/quote", "AAPL", "quote", true},
		{"market-data://market/overview", "market", "overview", true},
		{"user-profile://u1/profile", "", "", false},
		{"market-data://AAPL", "", "", false},
		{"market-data:///quote", "", "", false},
	}
	for _, tt := range tests {
		scope, kind, ok := splitURI(tt.uri, MarketDataScheme)
		if scope != tt.scope || kind != tt.kind || ok != tt.ok {
			t.Errorf("splitURI(%q) = %q, %q, %v", tt.uri, scope, kind, ok)
		}
	}
}

// --- market data ---

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/market-data/quotes/AAPL", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"AAPL","price":191.2}`))
	})
	mux.HandleFunc("/api/v1/market-data/quotes/AAPL/historical", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"close":190.1},{"close":191.2}]`))
	})
	mux.HandleFunc("/api/v1/indicators/all/AAPL", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rsi":58}`))
	})
	mux.HandleFunc("/api/v1/fundamentals/AAPL", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestMarketDataListResources(t *testing.T) {
	m := NewMarketData(MarketDataConfig{BaseURL: "http://quotes"}, nil)
	ctx := context.Background()

	rs, err := m.ListResources(ctx, resource.Scope{"symbol": "aapl"})
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	got := strings.Join(uris(rs), ",")
	if got != "market-data://AAPL/quote,market-data://AAPL/history" {
		t.Errorf("uris = %s", got)
	}

	rs, _ = m.ListResources(ctx, nil)
	if len(rs) != 1 || rs[0].URI != "market-data://market/overview" {
		t.Errorf("overview = %v", uris(rs))
	}

	withAnalysis := NewMarketData(MarketDataConfig{BaseURL: "http://quotes", AnalysisURL: "http://analysis"}, nil)
	rs, _ = withAnalysis.ListResources(ctx, resource.Scope{"symbol": "AAPL"})
	if len(rs) != 4 || rs[2].ResourceType != resource.TypeTechnicalIndicators || rs[3].ResourceType != resource.TypeFundamentalData {
		t.Errorf("analysis resources = %+v", rs)
	}
}

func TestMarketDataFetchContent(t *testing.T) {
	srv := newUpstream(t)
	m := NewMarketData(MarketDataConfig{BaseURL: srv.URL, AnalysisURL: srv.URL + "/"}, nil)
	ctx := context.Background()

	c, ok, err := m.FetchContent(ctx, "market-data://AAPL/quote")
	if err != nil || !ok {
		t.Fatalf("quote: ok=%v err=%v", ok, err)
	}
	if c.Text != `{"symbol":"AAPL","price":191.2}` || c.MIMEType != "application/json" {
		t.Errorf("quote content = %+v", c)
	}

	if _, ok, _ := m.FetchContent(ctx, "market-data://AAPL/history"); !ok {
		t.Error("history not fetched")
	}
	if c, ok, _ := m.FetchContent(ctx, "market-data://AAPL/indicators"); !ok || !strings.Contains(c.Text, "rsi") {
		t.Error("indicators not fetched")
	}

	if _, ok, err := m.FetchContent(ctx, "market-data://AAPL/fundamentals"); ok || err == nil {
		t.Errorf("expected upstream error, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := m.FetchContent(ctx, "market-data://MSFT/quote"); ok || err != nil {
		t.Errorf("unknown symbol: ok=%v err=%v", ok, err)
	}
	if _, ok, err := m.FetchContent(ctx, "user-profile://u1/profile"); ok || err != nil {
		t.Errorf("foreign uri: ok=%v err=%v", ok, err)
	}
}

func TestMarketDataTools(t *testing.T) {
	tools, err := NewMarketData(MarketDataConfig{}, nil).ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "get_quote" || tools[1].Name != "get_price_history" {
		t.Errorf("tools = %+v", tools)
	}
}

// --- user profile ---

func setupProfiles(t *testing.T) *profiles.Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := profiles.NewStore(database)
	ctx := context.Background()
	if _, err := store.Upsert(ctx, profiles.Profile{UserID: "u1", RiskLevel: profiles.Conservative, RiskScore: 20}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := store.RecordTrade(ctx, profiles.Trade{UserID: "u1", Symbol: "VTI", Side: profiles.SideBuy, Quantity: 4, Price: 250}); err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}
	return store
}

func TestUserProfileResources(t *testing.T) {
	p := NewUserProfile(setupProfiles(t))
	ctx := context.Background()

	rs, err := p.ListResources(ctx, resource.Scope{"user_id": "u1", "symbol": "X"})
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	want := "user-profile://u1/profile,user-profile://u1/portfolio,user-profile://u1/history"
	if got := strings.Join(uris(rs), ","); got != want {
		t.Errorf("uris = %s", got)
	}
	if rs[1].ResourceType != resource.TypePortfolio {
		t.Errorf("portfolio type = %s", rs[1].ResourceType)
	}

	for _, scope := range []resource.Scope{nil, {"user_id": "ghost"}} {
		rs, err := p.ListResources(ctx, scope)
		if err != nil || len(rs) != 0 {
			t.Errorf("scope %v: %v, %v", scope, rs, err)
		}
	}
}

func TestUserProfileFetchContent(t *testing.T) {
	p := NewUserProfile(setupProfiles(t))
	ctx := context.Background()

	c, ok, err := p.FetchContent(ctx, "user-profile://u1/profile")
	if err != nil || !ok {
		t.Fatalf("profile: ok=%v err=%v", ok, err)
	}
	var prof profiles.Profile
	if err := json.Unmarshal([]byte(c.Text), &prof); err != nil || prof.RiskLevel != profiles.Conservative {
		t.Errorf("profile content = %s", c.Text)
	}

	c, ok, _ = p.FetchContent(ctx, "user-profile://u1/portfolio")
	if !ok || !strings.Contains(c.Text, `"symbol":"VTI"`) {
		t.Errorf("portfolio content = %+v", c)
	}
	c, ok, _ = p.FetchContent(ctx, "user-profile://u1/history")
	if !ok || !strings.Contains(c.Text, `"side":"buy"`) {
		t.Errorf("history content = %+v", c)
	}

	if _, ok, err := p.FetchContent(ctx, "user-profile://ghost/profile"); ok || err != nil {
		t.Errorf("unknown user: ok=%v err=%v", ok, err)
	}
}

func TestUserProfileContextData(t *testing.T) {
	p := NewUserProfile(setupProfiles(t))
	data, err := p.ContextData(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ContextData: %v", err)
	}
	if data["risk_level"] != profiles.Conservative || data["risk_score"] != 20.0 {
		t.Errorf("data = %v", data)
	}
	if data, _ := p.ContextData(context.Background(), "ghost"); data != nil {
		t.Errorf("unknown user data = %v", data)
	}
}

// --- research notes ---

type charEmbedder struct{}

func (charEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 32)
		for j, ch := range strings.ToLower(text) {
			vec[(int(ch)+j)%32]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		norm = math.Sqrt(norm)
		for j := range vec {
			vec[j] = float32(float64(vec[j]) / norm)
		}
		out[i] = vec
	}
	return out, nil
}

func (charEmbedder) Dimensions() int { return 32 }
func (charEmbedder) Name() string    { return "char" }

func TestResearchNotes(t *testing.T) {
	store, err := vectordb.NewChromemStore(charEmbedder{})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	ctx := context.Background()
	notes := []vectordb.Note{
		{ID: "a1", Symbol: "AAPL", Title: "Margins", Content: "Gross margin expansion from services"},
		{ID: "a2", Symbol: "AAPL", Title: "Risks", Content: "Regulatory risk to the app store"},
		{ID: "m1", Symbol: "MSFT", Title: "Cloud", Content: "Azure capacity constraints easing"},
	}
	if err := store.AddNotes(ctx, notes); err != nil {
		t.Fatalf("AddNotes: %v", err)
	}

	p := NewResearchNotes(store, 5)
	rs, err := p.ListResources(ctx, resource.Scope{"symbol": "aapl"})
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 AAPL notes, got %v", uris(rs))
	}
	for _, r := range rs {
		if !strings.HasPrefix(r.URI, "research-notes://AAPL/") || r.ResourceType != resource.TypeResearchNote {
			t.Errorf("unexpected resource %+v", r)
		}
	}

	c, ok, err := p.FetchContent(ctx, "research-notes://AAPL/a2")
	if err != nil || !ok || c.Text != "Regulatory risk to the app store" {
		t.Errorf("FetchContent = %+v, %v, %v", c, ok, err)
	}
	if _, ok, _ := p.FetchContent(ctx, "research-notes://AAPL/zzz"); ok {
		t.Error("expected missing note")
	}

	if rs, _ := p.ListResources(ctx, nil); len(rs) != 0 {
		t.Errorf("no symbol should yield nothing, got %v", uris(rs))
	}
}
