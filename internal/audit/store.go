package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trii-invest/insightd/internal/db"
)

// Store provides CRUD operations for audit entries.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts a new audit entry. If entry.ID is empty a UUID is generated;
// a zero Timestamp means now.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Attempts == nil {
		entry.Attempts = []Attempt{}
	}

	attempts, err := json.Marshal(entry.Attempts)
	if err != nil {
		return fmt.Errorf("marshalling attempts: %w", err)
	}

	var errText sql.NullString
	if entry.Error != "" {
		errText = sql.NullString{String: entry.Error, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatch_audit (
			id, timestamp, session_id, subject, user_id, complexity, outcome,
			model_used, signal, confidence, tokens_used, attempts, error, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC().Format(time.DateTime),
		entry.SessionID,
		entry.Subject,
		entry.UserID,
		entry.Complexity,
		string(entry.Outcome),
		entry.ModelUsed,
		entry.Signal,
		entry.Confidence,
		entry.TokensUsed,
		string(attempts),
		errText,
		entry.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

const selectColumns = `id, timestamp, session_id, subject, user_id, complexity, outcome,
	model_used, signal, confidence, tokens_used, attempts, error, duration_ms`

// GetByID retrieves a single audit entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM dispatch_audit WHERE id = ?", id)
	return scanInto(row)
}

// QueryFilter controls which audit entries are returned by Query.
type QueryFilter struct {
	SessionID string
	UserID    string
	Subject   string
	ModelUsed string
	Outcome   Outcome
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}

func (f QueryFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Subject != "" {
		clauses = append(clauses, "subject = ?")
		args = append(args, f.Subject)
	}
	if f.ModelUsed != "" {
		clauses = append(clauses, "model_used = ?")
		args = append(args, f.ModelUsed)
	}
	if f.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if f.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.Since.UTC().Format(time.DateTime))
	}
	if f.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, f.Until.UTC().Format(time.DateTime))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Query returns audit entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	where, args := filter.where()
	query := "SELECT " + selectColumns + " FROM dispatch_audit" + where + " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// UsageByModel aggregates successful dispatches per model since the given time
// (all time when since is nil).
func (s *Store) UsageByModel(ctx context.Context, since *time.Time) ([]ModelUsage, error) {
	where, args := QueryFilter{Outcome: OutcomeSuccess, Since: since}.where()
	rows, err := s.db.QueryContext(ctx, `
		SELECT model_used, COUNT(*), COALESCE(SUM(tokens_used), 0), COALESCE(AVG(duration_ms), 0)
		FROM dispatch_audit`+where+`
		GROUP BY model_used ORDER BY COUNT(*) DESC, model_used`, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating audit entries: %w", err)
	}
	defer rows.Close()

	var out []ModelUsage
	for rows.Next() {
		var u ModelUsage
		if err := rows.Scan(&u.ModelUsed, &u.Requests, &u.TokensUsed, &u.AvgDurationMS); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteBefore removes all audit entries older than the given time.
// Returns the number of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM dispatch_audit WHERE timestamp < ?",
		before.UTC().Format(time.DateTime),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old audit entries: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Entry, error) {
	var (
		e            Entry
		ts, outcome  string
		attemptsJSON string
		errText      sql.NullString
		durationMS   int64
	)

	err := sc.Scan(
		&e.ID, &ts, &e.SessionID, &e.Subject, &e.UserID, &e.Complexity, &outcome,
		&e.ModelUsed, &e.Signal, &e.Confidence, &e.TokensUsed, &attemptsJSON, &errText, &durationMS,
	)
	if err != nil {
		return nil, err
	}

	e.Outcome = Outcome(outcome)
	e.Duration = time.Duration(durationMS) * time.Millisecond
	if errText.Valid {
		e.Error = errText.String
	}

	if t, parseErr := time.Parse(time.DateTime, ts); parseErr == nil {
		e.Timestamp = t
	} else if t, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
		e.Timestamp = t
	}

	if err := json.Unmarshal([]byte(attemptsJSON), &e.Attempts); err != nil {
		e.Attempts = nil
	}

	return &e, nil
}
