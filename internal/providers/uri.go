// Package providers holds the concrete context providers: market data from
// the upstream quote and analysis services, investor profiles from sqlite,
// and semantically related research notes.
package providers

import (
	"encoding/json"
	"strings"

	"github.com/trii-invest/insightd/internal/resource"
)

// splitURI splits "<scheme>://<scope>/<kind>". ok is false when uri belongs
// to another scheme or is malformed.
func splitURI(uri, scheme string) (scope, kind string, ok bool) {
	rest, found := strings.CutPrefix(uri, scheme+"://")
	if !found {
		return "", "", false
	}
	scope, kind, found = strings.Cut(rest, "/")
	if !found || scope == "" || kind == "" {
		return "", "", false
	}
	return scope, kind, true
}

func jsonContent(uri string, v any) (*resource.Content, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &resource.Content{URI: uri, MIMEType: resource.DefaultMIMEType, Text: string(b)}, nil
}

func symbolSchema(extra map[string]any) map[string]any {
	props := map[string]any{
		"symbol": map[string]any{"type": "string", "description": "Ticker symbol, e.g. AAPL"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{"symbol"},
	}
}
