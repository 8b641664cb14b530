// Package audit keeps a sqlite-backed trail of generation dispatches: which
// model served a request, what was extracted, and which candidates failed.
package audit

import "time"

// Outcome is how a dispatch ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeError     Outcome = "error"
)

// Attempt is one candidate adapter tried before the outcome was reached.
type Attempt struct {
	Adapter string `json:"adapter"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Entry is a single audit trail record.
type Entry struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	SessionID  string        `json:"session_id"`
	Subject    string        `json:"subject"`
	UserID     string        `json:"user_id,omitempty"`
	Complexity string        `json:"complexity"`
	Outcome    Outcome       `json:"outcome"`
	ModelUsed  string        `json:"model_used,omitempty"`
	Signal     string        `json:"signal,omitempty"`
	Confidence int           `json:"confidence"`
	TokensUsed int           `json:"tokens_used"`
	Attempts   []Attempt     `json:"attempts"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// ModelUsage aggregates entries per served model.
type ModelUsage struct {
	ModelUsed     string  `json:"model_used"`
	Requests      int     `json:"requests"`
	TokensUsed    int     `json:"tokens_used"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}
