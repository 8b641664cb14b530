package orchestrator

import (
	"strings"
	"testing"

	"github.com/trii-invest/insightd/internal/resource"
)

func TestRenderPromptSectionOrder(t *testing.T) {
	data := map[string]any{
		"user_profile":         map[string]any{"risk_level": "moderate"},
		"sentiment":            "bullish",
		"technical_indicators": map[string]any{"rsi": 61.5},
		"price_target":         210,
		"analyst_notes":        "upgrade pending",
		"fundamental_data":     nil,
		"empty_list":           []string{},
	}
	p := RenderPrompt("AAPL", data, nil)

	if !strings.HasPrefix(p, "Generate an investment recommendation for AAPL based on the following context:\n\nContext Information:\n") {
		t.Errorf("unexpected preamble:\n%s", p)
	}

	order := []string{
		"Technical Indicators: {\"rsi\":61.5}",
		"Market Sentiment: bullish",
		"User Profile: {\"risk_level\":\"moderate\"}",
		"Analyst Notes: upgrade pending",
		"Price Target: 210",
		"Please provide:",
	}
	last := -1
	for _, s := range order {
		i := strings.Index(p, s)
		if i < 0 {
			t.Fatalf("prompt missing %q:\n%s", s, p)
		}
		if i < last {
			t.Errorf("%q out of order", s)
		}
		last = i
	}

	for _, absent := range []string{"Fundamental Data", "Empty List", "Available Resources"} {
		if strings.Contains(p, absent) {
			t.Errorf("prompt should omit %q", absent)
		}
	}
	if !strings.HasSuffix(p, "Format your response as a structured analysis with clear sections.") {
		t.Errorf("unexpected closing:\n%s", p)
	}
}

func TestRenderPromptListsResources(t *testing.T) {
	c := &resource.Context{Resources: []resource.Resource{
		{URI: "market-data://AAPL/quote", Name: "AAPL quote"},
	}}
	p := RenderPrompt("AAPL", nil, c)
	if !strings.Contains(p, "Available Resources:\n- AAPL quote (market-data://AAPL/quote)") {
		t.Errorf("resources not listed:\n%s", p)
	}
}
