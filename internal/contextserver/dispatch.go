package contextserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trii-invest/insightd/internal/llm"
	"github.com/trii-invest/insightd/internal/metrics"
)

// ErrAllModelsExhausted is matched by the error Generate returns when every
// preferred and fallback candidate was unavailable or failed.
var ErrAllModelsExhausted = errors.New("all models exhausted")

// Attempt outcomes recorded while traversing candidates.
const (
	OutcomeNotRegistered = "not_registered"
	OutcomeUnavailable   = "unavailable"
	OutcomeFailed        = "failed"
)

// Attempt is one candidate considered during dispatch.
type Attempt struct {
	Adapter string `json:"adapter"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// ExhaustedError lists every candidate that was considered.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all models exhausted: no candidates"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Adapter+": "+a.Outcome)
	}
	return fmt.Sprintf("all models exhausted: %s", strings.Join(parts, "; "))
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrAllModelsExhausted }

// SelectAdapter returns the first registered and available adapter among
// preferences, then fallbackChain.
func (s *Server) SelectAdapter(ctx context.Context, preferences, fallbackChain []string) (llm.Adapter, bool) {
	for _, id := range candidates(preferences, fallbackChain) {
		a, ok := s.adapter(id)
		if !ok {
			continue
		}
		if available, _ := checkAvailable(ctx, a); available {
			return a, true
		}
	}
	return nil, false
}

// Generate dispatches req to the first available adapter in its preferences
// followed by the server's fallback chain. An adapter whose Generate fails is
// skipped like an unavailable one. When nothing succeeds the error matches
// ErrAllModelsExhausted.
func (s *Server) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResponse, error) {
	var attempts []Attempt

	for _, id := range candidates(req.ModelPreferences, s.fallbackChain()) {
		a, ok := s.adapter(id)
		if !ok {
			attempts = append(attempts, Attempt{Adapter: id, Outcome: OutcomeNotRegistered})
			continue
		}

		available, probeErr := checkAvailable(ctx, a)
		if !available {
			at := Attempt{Adapter: id, Outcome: OutcomeUnavailable}
			if probeErr != nil {
				at.Error = probeErr.Error()
			}
			attempts = append(attempts, at)
			metrics.GenerationRequests.WithLabelValues(id, OutcomeUnavailable).Inc()
			metrics.FallbackAdvances.Inc()
			s.logger.Debug("adapter unavailable", zap.String("adapter", id))
			continue
		}

		s.logger.Info("selected adapter for generation",
			zap.String("adapter", id),
			zap.String("provider", a.Identity().Provider),
			zap.String("session_id", req.SessionID()),
		)

		start := time.Now()
		resp, err := invoke(ctx, a, req)
		metrics.GenerationDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
		if err != nil {
			attempts = append(attempts, Attempt{Adapter: id, Outcome: OutcomeFailed, Error: err.Error()})
			metrics.GenerationRequests.WithLabelValues(id, OutcomeFailed).Inc()
			metrics.FallbackAdvances.Inc()
			s.logger.Warn("generation failed, trying next candidate",
				zap.String("adapter", id),
				zap.Error(err),
			)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("generation canceled after %s: %w", id, ctxErr)
			}
			continue
		}

		metrics.GenerationRequests.WithLabelValues(id, "success").Inc()
		if resp.TokensUsed != nil {
			metrics.GenerationTokens.WithLabelValues(id).Add(float64(*resp.TokensUsed))
		}
		annotate(resp, req, len(attempts)+1)
		return resp, nil
	}

	metrics.ModelsExhausted.Inc()
	err := &ExhaustedError{Attempts: attempts}
	s.logger.Error("no model could serve the request",
		zap.String("session_id", req.SessionID()),
		zap.Int("candidates", len(attempts)),
		zap.Error(err),
	)
	return nil, err
}

// candidates merges preferences and the fallback chain, keeping the first
// occurrence of each id.
func candidates(preferences, fallbackChain []string) []string {
	seen := make(map[string]bool, len(preferences)+len(fallbackChain))
	out := make([]string, 0, len(preferences)+len(fallbackChain))
	for _, list := range [][]string{preferences, fallbackChain} {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// checkAvailable never panics. The error explains unavailability when the
// adapter can say why.
func checkAvailable(ctx context.Context, a llm.Adapter) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("availability check panicked: %v", r)
		}
	}()
	if p, isProber := a.(llm.Prober); isProber {
		if err := p.Probe(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return a.IsAvailable(ctx), nil
}

func invoke(ctx context.Context, a llm.Adapter, req llm.GenerationRequest) (resp *llm.GenerationResponse, err error) {
	id := a.Identity().ID
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, &llm.GenerationFailure{Adapter: id, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	resp, err = a.Generate(ctx, req)
	if err == nil && resp == nil {
		err = &llm.GenerationFailure{Adapter: id, Cause: llm.ErrEmptyOutput}
	}
	return resp, err
}

func annotate(resp *llm.GenerationResponse, req llm.GenerationRequest, attempts int) {
	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any)
	}
	resources, tools := 0, 0
	if req.Context != nil {
		resources = len(req.Context.Resources)
		tools = len(req.Context.Tools)
	}
	resp.Metadata["session_id"] = req.SessionID()
	resp.Metadata["resources_used"] = resources
	resp.Metadata["tools_used"] = tools
	resp.Metadata["attempts"] = attempts
}
