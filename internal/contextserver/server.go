// Package contextserver assembles generation context from registered
// providers, caches it per scope, and dispatches generation requests across
// registered adapters with ordered fallback.
package contextserver

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/trii-invest/insightd/internal/llm"
	"github.com/trii-invest/insightd/internal/logging"
	"github.com/trii-invest/insightd/internal/resource"
)

const (
	// DefaultCacheTTL is how long a built context stays usable.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultBuildTimeout bounds one context assembly across all providers.
	DefaultBuildTimeout = 30 * time.Second
)

// Server is the context server. The zero value is not usable; call New.
type Server struct {
	mu        sync.RWMutex
	providers []resource.Provider
	adapters  map[string]llm.Adapter
	order     []string
	cache     map[cacheKey]*resource.Context
	hits      int
	misses    int

	flights      singleflight.Group
	ttl          time.Duration
	buildTimeout time.Duration
	fallback     []string
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCacheTTL sets the context cache TTL. Non-positive values are ignored.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithBuildTimeout bounds context assembly. Non-positive values are ignored.
func WithBuildTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.buildTimeout = d
		}
	}
}

// WithFallbackChain sets the ordered adapter ids consulted after a request's
// own preferences. Without one, adapters are tried in registration order.
func WithFallbackChain(ids []string) Option {
	return func(s *Server) {
		s.fallback = append([]string(nil), ids...)
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNop(l) }
}

// New creates a context server.
func New(opts ...Option) *Server {
	s := &Server{
		adapters:     make(map[string]llm.Adapter),
		cache:        make(map[cacheKey]*resource.Context),
		ttl:          DefaultCacheTTL,
		buildTimeout: DefaultBuildTimeout,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheTTL returns the configured context TTL.
func (s *Server) CacheTTL() time.Duration { return s.ttl }

// RegisterProvider adds p, or replaces a provider with the same name in place.
func (s *Server) RegisterProvider(p resource.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.providers {
		if existing.Name() == p.Name() {
			s.providers[i] = p
			s.logger.Info("provider replaced", zap.String("provider", p.Name()))
			return
		}
	}
	s.providers = append(s.providers, p)
	s.logger.Info("provider registered", zap.String("provider", p.Name()))
}

// RegisterAdapter adds a, or replaces the adapter with the same id while
// keeping its original position.
func (s *Server) RegisterAdapter(a llm.Adapter) {
	id := a.Identity().ID

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.adapters[id]; !ok {
		s.order = append(s.order, id)
	}
	s.adapters[id] = a
	s.logger.Info("adapter registered",
		zap.String("adapter", id),
		zap.String("provider", a.Identity().Provider),
	)
}

func (s *Server) snapshotProviders() []resource.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]resource.Provider(nil), s.providers...)
}

func (s *Server) adapter(id string) (llm.Adapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[id]
	return a, ok
}

// registered returns the adapters in registration order.
func (s *Server) registered() []llm.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]llm.Adapter, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.adapters[id])
	}
	return out
}

func (s *Server) fallbackChain() []string {
	if len(s.fallback) > 0 {
		return s.fallback
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}
