// Package resource defines the addressable units of context that providers
// hand to the context server: resources, their materialized content, and the
// declarative tools a backend may be told about.
package resource

import (
	"encoding/json"
	"sort"
	"time"
)

// Type classifies what a resource carries.
type Type string

const (
	TypeMarketData          Type = "market_data"
	TypeUserProfile         Type = "user_profile"
	TypePortfolio           Type = "portfolio"
	TypeTechnicalIndicators Type = "technical_indicators"
	TypeFundamentalData     Type = "fundamental_data"
	TypeSentimentData       Type = "sentiment_data"
	TypeResearchNote        Type = "research_note"
)

// DefaultMIMEType is used when a resource does not declare one.
const DefaultMIMEType = "application/json"

// Resource is a provider-scoped addressable unit. URI has the form
// <provider>://<scope>/<kind> and is unique within a Context.
type Resource struct {
	URI          string         `json:"uri"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	MIMEType     string         `json:"mime_type"`
	ResourceType Type           `json:"resource_type"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Content is the materialized payload behind a Resource URI.
type Content struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mime_type"`
	Text     string `json:"text"`
	Blob     []byte `json:"blob,omitempty"`
}

// Tool describes a callable capability. It is declarative only.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Scope is the key set that decides which resources are relevant to a build.
type Scope map[string]string

// Well-known scope keys.
const (
	ScopeSymbol = "symbol"
	ScopeUserID = "user_id"
)

// Symbol returns the symbol key of the scope, if any.
func (s Scope) Symbol() string { return s[ScopeSymbol] }

// UserID returns the user_id key of the scope, if any.
func (s Scope) UserID() string { return s[ScopeUserID] }

// Clone returns an independent copy of the scope.
func (s Scope) Clone() Scope {
	if s == nil {
		return nil
	}
	out := make(Scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Canonical returns a stable, unambiguous encoding of the scope. Keys are
// sorted and values are JSON-quoted, so separators inside values cannot
// collide with another scope's encoding.
func (s Scope) Canonical() string {
	if len(s) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, s[k]})
	}
	b, _ := json.Marshal(pairs)
	return string(b)
}

// Context is the bundle of resources and tools assembled for one generation
// request. Instances handed out by the context server are copies.
type Context struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Resources []Resource     `json:"resources"`
	Tools     []Tool         `json:"tools"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the context is no longer usable at now.
func (c *Context) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Clone returns a deep copy of the context. Metadata maps are copied one level
// deep, which is enough since providers only store scalars there.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	if c.Resources != nil {
		out.Resources = make([]Resource, len(c.Resources))
		for i, r := range c.Resources {
			r.Metadata = cloneMap(r.Metadata)
			out.Resources[i] = r
		}
	}
	if c.Tools != nil {
		out.Tools = make([]Tool, len(c.Tools))
		for i, t := range c.Tools {
			t.InputSchema = cloneMap(t.InputSchema)
			out.Tools[i] = t
		}
	}
	out.Metadata = cloneMap(c.Metadata)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
