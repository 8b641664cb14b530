// Package orchestrator turns a subject and caller supplied context into an
// investment recommendation: it builds a context, renders a prompt, dispatches
// it under the complexity policy and extracts a structured analysis.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trii-invest/insightd/internal/audit"
	"github.com/trii-invest/insightd/internal/contextserver"
	"github.com/trii-invest/insightd/internal/llm"
	"github.com/trii-invest/insightd/internal/logging"
	"github.com/trii-invest/insightd/internal/metrics"
	"github.com/trii-invest/insightd/internal/resource"
)

// Dispatcher builds contexts and runs generation with fallback.
// *contextserver.Server satisfies it.
type Dispatcher interface {
	BuildContext(ctx context.Context, sessionID, userID string, scope resource.Scope, includeTools bool) (*resource.Context, error)
	Generate(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResponse, error)
}

// Recorder receives one entry per completed or failed recommendation.
type Recorder interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// Recommendation is the result of GenerateRecommendation.
type Recommendation struct {
	Subject         string     `json:"subject"`
	Recommendation  Analysis   `json:"recommendation"`
	ModelUsed       string     `json:"model_used"`
	ConfidenceScore float64    `json:"confidence_score"`
	GeneratedAt     time.Time  `json:"generated_at"`
	SessionID       string     `json:"session_id"`
	Complexity      Complexity `json:"complexity"`
	TokensUsed      *int       `json:"tokens_used,omitempty"`
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	dispatcher Dispatcher
	policies   Policies
	recorder   Recorder
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*Orchestrator)

// WithPolicies overrides individual complexity levels of the default table.
func WithPolicies(overrides Policies) Option {
	return func(o *Orchestrator) { o.policies = o.policies.Merge(overrides) }
}

// WithRecorder writes every call to the given audit trail.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(l) }
}

// New returns an orchestrator over d. The resulting policy table must validate.
func New(d Dispatcher, opts ...Option) (*Orchestrator, error) {
	if d == nil {
		return nil, errors.New("orchestrator: dispatcher is required")
	}
	o := &Orchestrator{
		dispatcher: d,
		policies:   DefaultPolicies(),
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.policies.Validate(); err != nil {
		return nil, fmt.Errorf("invalid complexity policies: %w", err)
	}
	return o, nil
}

// Policy returns the policy applied at complexity c.
func (o *Orchestrator) Policy(c Complexity) (Policy, bool) {
	p, ok := o.policies[c]
	return p, ok
}

// Policies returns a copy of the active policy table.
func (o *Orchestrator) Policies() Policies {
	return o.policies.Merge(nil)
}

// SessionID names a recommendation session. userID "" is recorded as anon.
func SessionID(subject, userID string, at time.Time) string {
	who := userID
	if who == "" {
		who = "anon"
	}
	return fmt.Sprintf("rec_%s_%s_%d", subject, who, at.UnixNano())
}

// GenerateRecommendation builds context for subject, renders the prompt and
// dispatches it with the policy of complexity. When every model is exhausted
// the dispatcher's error is returned unchanged.
func (o *Orchestrator) GenerateRecommendation(ctx context.Context, subject, userID string, contextData map[string]any, complexity Complexity) (*Recommendation, error) {
	if subject == "" {
		return nil, errors.New("subject is required")
	}
	if complexity == "" {
		complexity = Medium
	}
	policy, ok := o.policies[complexity]
	if !ok {
		return nil, fmt.Errorf("unknown complexity %q", complexity)
	}

	start := o.now()
	sessionID := SessionID(subject, userID, start)
	entry := audit.Entry{
		SessionID:  sessionID,
		Subject:    subject,
		UserID:     userID,
		Complexity: string(complexity),
	}

	scope := resource.Scope{resource.ScopeSymbol: subject}
	c, err := o.dispatcher.BuildContext(ctx, sessionID, userID, scope, true)
	if err != nil {
		err = fmt.Errorf("building context for %s: %w", subject, err)
		o.record(ctx, entry, start, nil, err)
		return nil, err
	}

	req := llm.GenerationRequest{
		Prompt:           RenderPrompt(subject, contextData, c),
		Context:          c,
		ModelPreferences: policy.Preferred,
		MaxTokens:        llm.Int(policy.MaxTokens),
		Temperature:      llm.Float(policy.Temperature),
		Metadata: map[string]any{
			"subject":    subject,
			"complexity": string(complexity),
		},
	}

	resp, err := o.dispatcher.Generate(ctx, req)
	if err != nil {
		o.logger.Warn("recommendation dispatch failed",
			zap.String("subject", subject),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		o.record(ctx, entry, start, nil, err)
		return nil, err
	}

	analysis := ParseAnalysis(resp.Content)
	score := float64(analysis.Confidence) / 100
	if resp.ConfidenceScore != nil {
		score = *resp.ConfidenceScore
	}

	rec := &Recommendation{
		Subject:         subject,
		Recommendation:  analysis,
		ModelUsed:       resp.ModelUsed,
		ConfidenceScore: score,
		GeneratedAt:     o.now().UTC(),
		SessionID:       sessionID,
		Complexity:      complexity,
		TokensUsed:      resp.TokensUsed,
	}

	metrics.Recommendations.WithLabelValues(string(complexity), string(analysis.Signal)).Inc()
	o.logger.Info("recommendation generated",
		zap.String("subject", subject),
		zap.String("model", rec.ModelUsed),
		zap.String("signal", string(analysis.Signal)),
		zap.Int("confidence", analysis.Confidence),
	)
	o.record(ctx, entry, start, rec, nil)
	return rec, nil
}

func (o *Orchestrator) record(ctx context.Context, e audit.Entry, start time.Time, rec *Recommendation, err error) {
	if o.recorder == nil {
		return
	}
	e.Timestamp = start
	e.Duration = o.now().Sub(start)

	switch {
	case err == nil:
		e.Outcome = audit.OutcomeSuccess
		e.ModelUsed = rec.ModelUsed
		e.Signal = string(rec.Recommendation.Signal)
		e.Confidence = rec.Recommendation.Confidence
		if rec.TokensUsed != nil {
			e.TokensUsed = *rec.TokensUsed
		}
	case errors.Is(err, contextserver.ErrAllModelsExhausted):
		e.Outcome = audit.OutcomeExhausted
		e.Error = err.Error()
	default:
		e.Outcome = audit.OutcomeError
		e.Error = err.Error()
	}

	var exhausted *contextserver.ExhaustedError
	if errors.As(err, &exhausted) {
		for _, a := range exhausted.Attempts {
			e.Attempts = append(e.Attempts, audit.Attempt{Adapter: a.Adapter, Outcome: a.Outcome, Error: a.Error})
		}
	}

	// A recording failure never fails the call.
	if rerr := o.recorder.Log(context.WithoutCancel(ctx), e); rerr != nil {
		o.logger.Warn("failed to record audit entry", zap.String("session_id", e.SessionID), zap.Error(rerr))
	}
}
