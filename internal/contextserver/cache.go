package contextserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trii-invest/insightd/internal/metrics"
	"github.com/trii-invest/insightd/internal/resource"
)

// cacheKey identifies a cached context. Fields are kept apart so a separator
// inside one of them can never alias another key.
type cacheKey struct {
	SessionID string
	UserID    string
	Scope     string
}

// flightKey is the unambiguous string form used to collapse concurrent builds.
func (k cacheKey) flightKey() string {
	b, _ := json.Marshal([3]string{k.SessionID, k.UserID, k.Scope})
	return string(b)
}

// CacheStats describes the context cache.
type CacheStats struct {
	Entries int `json:"entries"`
	Expired int `json:"expired"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// BuildContext returns the context for (sessionID, userID, scope). A cached,
// unexpired context is returned without consulting providers. Otherwise every
// provider is asked in registration order; a failing provider is logged and
// skipped. The returned context is a copy owned by the caller.
func (s *Server) BuildContext(ctx context.Context, sessionID, userID string, scope resource.Scope, includeTools bool) (*resource.Context, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	key := cacheKey{SessionID: sessionID, UserID: userID, Scope: scope.Canonical()}

	if cached, ok := s.lookup(key); ok {
		s.logger.Debug("using cached context", zap.String("session_id", sessionID))
		return cached.Clone(), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The build runs detached from any one caller so a cancelled request
	// does not fail the other callers waiting on the same key.
	ch := s.flights.DoChan(key.flightKey(), func() (any, error) {
		// A build for this key may have finished between lookup and DoChan.
		if cached, ok := s.peek(key); ok {
			return cached, nil
		}
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.buildTimeout)
		defer cancel()

		built := s.assemble(bctx, sessionID, userID, scope, includeTools)
		// Providers saw a dead context; the result is incomplete.
		if err := bctx.Err(); err != nil {
			return nil, fmt.Errorf("building context for session %s: %w", sessionID, err)
		}
		s.mu.Lock()
		s.cache[key] = built
		s.mu.Unlock()
		return built, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*resource.Context).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) lookup(key cacheKey) (*resource.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cache[key]
	if ok && !c.Expired(s.now()) {
		s.hits++
		metrics.ContextCacheLookups.WithLabelValues("hit").Inc()
		return c, true
	}
	s.misses++
	metrics.ContextCacheLookups.WithLabelValues("miss").Inc()
	return nil, false
}

func (s *Server) peek(key cacheKey) (*resource.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cache[key]
	if ok && !c.Expired(s.now()) {
		return c, true
	}
	return nil, false
}

func (s *Server) assemble(ctx context.Context, sessionID, userID string, scope resource.Scope, includeTools bool) *resource.Context {
	start := time.Now()
	defer func() { metrics.ContextBuildDuration.Observe(time.Since(start).Seconds()) }()

	providerScope := scope.Clone()
	if providerScope == nil {
		providerScope = resource.Scope{}
	}
	if userID != "" {
		if _, set := providerScope[resource.ScopeUserID]; !set {
			providerScope[resource.ScopeUserID] = userID
		}
	}

	s.logger.Info("building context",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
		zap.String("scope", scope.Canonical()),
	)

	var resources []resource.Resource
	var tools []resource.Tool
	seen := make(map[string]bool)

	for _, p := range s.snapshotProviders() {
		listed, err := listResources(ctx, p, providerScope)
		if err != nil {
			s.providerFailed(p, "list resources", err)
			continue
		}
		for _, r := range listed {
			if seen[r.URI] {
				s.logger.Debug("duplicate resource uri dropped",
					zap.String("provider", p.Name()),
					zap.String("uri", r.URI),
				)
				continue
			}
			seen[r.URI] = true
			if r.MIMEType == "" {
				r.MIMEType = resource.DefaultMIMEType
			}
			resources = append(resources, r)
		}

		if !includeTools {
			continue
		}
		tp, ok := p.(resource.ToolProvider)
		if !ok {
			continue
		}
		listedTools, err := listTools(ctx, tp, providerScope)
		if err != nil {
			s.providerFailed(p, "list tools", err)
			continue
		}
		tools = append(tools, listedTools...)
	}

	now := s.now()
	built := &resource.Context{
		SessionID: sessionID,
		UserID:    userID,
		Resources: resources,
		Tools:     tools,
		Metadata: map[string]any{
			"scope": scope.Canonical(),
		},
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.logger.Info("context built",
		zap.String("session_id", sessionID),
		zap.Int("resources_count", len(resources)),
		zap.Int("tools_count", len(tools)),
	)
	return built
}

func (s *Server) providerFailed(p resource.Provider, op string, err error) {
	metrics.ProviderFailures.WithLabelValues(p.Name()).Inc()
	s.logger.Warn("provider failed, skipping",
		zap.String("provider", p.Name()),
		zap.String("op", op),
		zap.Error(err),
	)
}

func listResources(ctx context.Context, p resource.Provider, scope resource.Scope) (out []resource.Resource, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return p.ListResources(ctx, scope)
}

func listTools(ctx context.Context, p resource.ToolProvider, scope resource.Scope) (out []resource.Tool, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return p.ListTools(ctx, scope)
}

// FetchContent resolves uri against the providers in registration order. A
// provider error is logged and the next provider is tried.
func (s *Server) FetchContent(ctx context.Context, uri string) (*resource.Content, bool) {
	for _, p := range s.snapshotProviders() {
		content, ok, err := fetchContent(ctx, p, uri)
		if err != nil {
			s.providerFailed(p, "fetch content", err)
			continue
		}
		if ok {
			if content.MIMEType == "" {
				content.MIMEType = resource.DefaultMIMEType
			}
			return content, true
		}
	}
	return nil, false
}

func fetchContent(ctx context.Context, p resource.Provider, uri string) (c *resource.Content, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, ok, err = nil, false, fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return p.FetchContent(ctx, uri)
}

// ClearCache drops cached contexts whose session id starts with sessionID, or
// every entry when sessionID is empty. It returns the number removed.
func (s *Server) ClearCache(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		n := len(s.cache)
		s.cache = make(map[cacheKey]*resource.Context)
		s.logger.Info("cleared context cache", zap.Int("affected_items", n))
		return n
	}

	n := 0
	for k := range s.cache {
		if strings.HasPrefix(k.SessionID, sessionID) {
			delete(s.cache, k)
			n++
		}
	}
	s.logger.Info("cleared context cache for session",
		zap.String("session_id", sessionID),
		zap.Int("affected_items", n),
	)
	return n
}

// CacheStats reports cache occupancy and lookup counts.
func (s *Server) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	stats := CacheStats{Entries: len(s.cache), Hits: s.hits, Misses: s.misses}
	for _, c := range s.cache {
		if c.Expired(now) {
			stats.Expired++
		}
	}
	return stats
}
