package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trii-invest/insightd/internal/db"
)

// Store persists profiles, positions and trades.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Get returns the profile of userID or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, risk_level, risk_score, primary_goal, time_horizon,
		       preferred_sectors, excluded_sectors, max_single_position, created_at, updated_at
		FROM user_profiles WHERE user_id = ?`, userID)

	var (
		p                   Profile
		riskLevel           string
		preferred, excluded string
		created, updated    string
	)
	err := row.Scan(&p.UserID, &p.DisplayName, &riskLevel, &p.RiskScore, &p.PrimaryGoal, &p.TimeHorizon,
		&preferred, &excluded, &p.MaxSinglePosition, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", userID, err)
	}

	p.RiskLevel = RiskLevel(riskLevel)
	if err := json.Unmarshal([]byte(preferred), &p.PreferredSectors); err != nil {
		p.PreferredSectors = []string{}
	}
	if err := json.Unmarshal([]byte(excluded), &p.ExcludedSectors); err != nil {
		p.ExcludedSectors = []string{}
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// Upsert validates p and creates or replaces it. CreatedAt is kept on update.
func (s *Store) Upsert(ctx context.Context, p Profile) (*Profile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	preferred, err := json.Marshal(p.PreferredSectors)
	if err != nil {
		return nil, fmt.Errorf("marshalling preferred sectors: %w", err)
	}
	excluded, err := json.Marshal(p.ExcludedSectors)
	if err != nil {
		return nil, fmt.Errorf("marshalling excluded sectors: %w", err)
	}

	now := time.Now().UTC().Format(time.DateTime)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (
			user_id, display_name, risk_level, risk_score, primary_goal, time_horizon,
			preferred_sectors, excluded_sectors, max_single_position, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			risk_level = excluded.risk_level,
			risk_score = excluded.risk_score,
			primary_goal = excluded.primary_goal,
			time_horizon = excluded.time_horizon,
			preferred_sectors = excluded.preferred_sectors,
			excluded_sectors = excluded.excluded_sectors,
			max_single_position = excluded.max_single_position,
			updated_at = excluded.updated_at`,
		p.UserID, p.DisplayName, string(p.RiskLevel), p.RiskScore, p.PrimaryGoal, p.TimeHorizon,
		string(preferred), string(excluded), p.MaxSinglePosition, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("saving profile %s: %w", p.UserID, err)
	}
	return s.Get(ctx, p.UserID)
}

// Delete removes a profile with its positions and trades.
func (s *Store) Delete(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM user_profiles WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("deleting profile %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPosition stores a holding. A zero quantity removes it.
func (s *Store) SetPosition(ctx context.Context, userID string, pos Position) error {
	if pos.Symbol == "" {
		return errors.New("symbol is required")
	}
	if pos.Quantity == 0 {
		_, err := s.db.ExecContext(ctx, "DELETE FROM portfolio_positions WHERE user_id = ? AND symbol = ?", userID, pos.Symbol)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolio_positions (user_id, symbol, quantity, avg_cost) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, symbol) DO UPDATE SET quantity = excluded.quantity, avg_cost = excluded.avg_cost`,
		userID, pos.Symbol, pos.Quantity, pos.AvgCost)
	if err != nil {
		return fmt.Errorf("saving position %s/%s: %w", userID, pos.Symbol, err)
	}
	return nil
}

// Portfolio returns the holdings of userID ordered by symbol.
func (s *Store) Portfolio(ctx context.Context, userID string) ([]Position, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT symbol, quantity, avg_cost FROM portfolio_positions WHERE user_id = ? ORDER BY symbol", userID)
	if err != nil {
		return nil, fmt.Errorf("querying portfolio: %w", err)
	}
	defer rows.Close()

	positions := []Position{}
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Symbol, &p.Quantity, &p.AvgCost); err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// RecordTrade appends a trade and updates the matching position: buys move
// the average cost, sells reduce quantity and never go below zero.
func (s *Store) RecordTrade(ctx context.Context, t Trade) (*Trade, error) {
	if t.Side != SideBuy && t.Side != SideSell {
		return nil, fmt.Errorf("invalid side %q", t.Side)
	}
	if t.Quantity <= 0 || t.Price < 0 {
		return nil, errors.New("quantity must be positive and price non-negative")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now()
	}
	t.ExecutedAt = t.ExecutedAt.UTC().Truncate(time.Second)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning trade transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trades (id, user_id, symbol, side, quantity, price, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Symbol, string(t.Side), t.Quantity, t.Price, t.ExecutedAt.Format(time.DateTime)); err != nil {
		return nil, fmt.Errorf("inserting trade: %w", err)
	}

	var qty, avg float64
	err = tx.QueryRowContext(ctx,
		"SELECT quantity, avg_cost FROM portfolio_positions WHERE user_id = ? AND symbol = ?",
		t.UserID, t.Symbol).Scan(&qty, &avg)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading position: %w", err)
	}

	switch t.Side {
	case SideBuy:
		avg = (qty*avg + t.Quantity*t.Price) / (qty + t.Quantity)
		qty += t.Quantity
	case SideSell:
		qty = max(qty-t.Quantity, 0)
	}

	if qty == 0 {
		_, err = tx.ExecContext(ctx, "DELETE FROM portfolio_positions WHERE user_id = ? AND symbol = ?", t.UserID, t.Symbol)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO portfolio_positions (user_id, symbol, quantity, avg_cost) VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, symbol) DO UPDATE SET quantity = excluded.quantity, avg_cost = excluded.avg_cost`,
			t.UserID, t.Symbol, qty, avg)
	}
	if err != nil {
		return nil, fmt.Errorf("updating position: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing trade: %w", err)
	}
	return &t, nil
}

// Trades returns the most recent trades of userID, newest first. limit <= 0
// means 50.
func (s *Store) Trades(ctx context.Context, userID string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, symbol, side, quantity, price, executed_at
		FROM trades WHERE user_id = ? ORDER BY executed_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	trades := []Trade{}
	for rows.Next() {
		var (
			t          Trade
			side, exec string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &side, &t.Quantity, &t.Price, &exec); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.Side = Side(side)
		t.ExecutedAt = parseTime(exec)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func parseTime(v string) time.Time {
	if t, err := time.Parse(time.DateTime, v); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	return time.Time{}
}
