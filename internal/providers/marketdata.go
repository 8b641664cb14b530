package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trii-invest/insightd/internal/logging"
	"github.com/trii-invest/insightd/internal/resource"
)

// MarketDataScheme prefixes every URI the market data provider owns.
const MarketDataScheme = "market-data"

const defaultUpstreamTimeout = 10 * time.Second

// Market data resource kinds.
const (
	KindQuote        = "quote"
	KindHistory      = "history"
	KindIndicators   = "indicators"
	KindFundamentals = "fundamentals"
	KindOverview     = "overview"
)

// MarketDataConfig locates the upstream services.
type MarketDataConfig struct {
	BaseURL     string        // market-data service
	AnalysisURL string        // analysis engine; indicators and fundamentals are omitted when empty
	Timeout     time.Duration // per upstream call
}

// MarketData serves quotes, price history and analysis results for a symbol.
type MarketData struct {
	cfg    MarketDataConfig
	client *http.Client
	logger *zap.Logger
}

// NewMarketData returns a provider for the configured upstreams.
func NewMarketData(cfg MarketDataConfig, logger *zap.Logger) *MarketData {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultUpstreamTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.AnalysisURL = strings.TrimRight(cfg.AnalysisURL, "/")
	return &MarketData{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.OrNop(logger),
	}
}

func (m *MarketData) Name() string { return "market_data" }

func (m *MarketData) ListResources(ctx context.Context, scope resource.Scope) ([]resource.Resource, error) {
	symbol := strings.ToUpper(scope.Symbol())
	if symbol == "" {
		return []resource.Resource{{
			URI:          MarketDataScheme + "://market/" + KindOverview,
			Name:         "Market Overview",
			Description:  "General market overview and indices",
			ResourceType: resource.TypeMarketData,
		}}, nil
	}

	out := []resource.Resource{
		{
			URI:          marketURI(symbol, KindQuote),
			Name:         "Current Quote - " + symbol,
			Description:  "Real-time quote data for " + symbol,
			ResourceType: resource.TypeMarketData,
		},
		{
			URI:          marketURI(symbol, KindHistory),
			Name:         "Price History - " + symbol,
			Description:  "Historical price data for " + symbol,
			ResourceType: resource.TypeMarketData,
		},
	}
	if m.cfg.AnalysisURL != "" {
		out = append(out,
			resource.Resource{
				URI:          marketURI(symbol, KindIndicators),
				Name:         "Technical Indicators - " + symbol,
				Description:  "RSI, MACD, moving averages and other indicators for " + symbol,
				ResourceType: resource.TypeTechnicalIndicators,
			},
			resource.Resource{
				URI:          marketURI(symbol, KindFundamentals),
				Name:         "Fundamentals - " + symbol,
				Description:  "Valuation and financial statement data for " + symbol,
				ResourceType: resource.TypeFundamentalData,
			},
		)
	}
	return out, nil
}

func (m *MarketData) ListTools(ctx context.Context, scope resource.Scope) ([]resource.Tool, error) {
	return []resource.Tool{
		{
			Name:        "get_quote",
			Description: "Get the latest quote for a symbol",
			InputSchema: symbolSchema(nil),
		},
		{
			Name:        "get_price_history",
			Description: "Get historical daily prices for a symbol",
			InputSchema: symbolSchema(map[string]any{
				"period": map[string]any{"type": "string", "description": "Lookback period, e.g. 1mo, 6mo, 1y"},
			}),
		},
	}, nil
}

func (m *MarketData) FetchContent(ctx context.Context, uri string) (*resource.Content, bool, error) {
	scope, kind, ok := splitURI(uri, MarketDataScheme)
	if !ok {
		return nil, false, nil
	}

	var endpoint string
	switch {
	case scope == "market" && kind == KindOverview:
		endpoint = m.cfg.BaseURL + "/api/v1/market-data/overview"
	case kind == KindQuote:
		endpoint = m.cfg.BaseURL + "/api/v1/market-data/quotes/" + url.PathEscape(scope)
	case kind == KindHistory:
		endpoint = m.cfg.BaseURL + "/api/v1/market-data/quotes/" + url.PathEscape(scope) + "/historical"
	case kind == KindIndicators && m.cfg.AnalysisURL != "":
		endpoint = m.cfg.AnalysisURL + "/api/v1/indicators/all/" + url.PathEscape(scope)
	case kind == KindFundamentals && m.cfg.AnalysisURL != "":
		endpoint = m.cfg.AnalysisURL + "/api/v1/fundamentals/" + url.PathEscape(scope)
	default:
		return nil, false, nil
	}

	body, err := m.get(ctx, endpoint)
	if errors.Is(err, errUpstreamNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetching %s: %w", uri, err)
	}
	return &resource.Content{URI: uri, MIMEType: resource.DefaultMIMEType, Text: string(body)}, true, nil
}

var errUpstreamNotFound = errors.New("upstream returned 404")

func (m *MarketData) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	m.logger.Debug("market data request",
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errUpstreamNotFound
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return io.ReadAll(resp.Body)
}

func marketURI(symbol, kind string) string {
	return MarketDataScheme + "://" + symbol + "/" + kind
}
