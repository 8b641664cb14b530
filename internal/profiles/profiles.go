// Package profiles stores investor profiles, their current positions and
// trade history in sqlite.
package profiles

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a user has no stored profile.
var ErrNotFound = errors.New("profile not found")

// RiskLevel is the investor's stated tolerance for risk.
type RiskLevel string

const (
	Conservative         RiskLevel = "conservative"
	ModerateConservative RiskLevel = "moderate_conservative"
	Moderate             RiskLevel = "moderate"
	ModerateAggressive   RiskLevel = "moderate_aggressive"
	Aggressive           RiskLevel = "aggressive"
)

// RiskLevels lists the levels from least to most tolerant.
var RiskLevels = []RiskLevel{Conservative, ModerateConservative, Moderate, ModerateAggressive, Aggressive}

// Profile is an investor's preferences.
type Profile struct {
	UserID            string    `json:"user_id"`
	DisplayName       string    `json:"display_name,omitempty"`
	RiskLevel         RiskLevel `json:"risk_level"`
	RiskScore         float64   `json:"risk_score"`
	PrimaryGoal       string    `json:"primary_goal"`
	TimeHorizon       string    `json:"time_horizon"`
	PreferredSectors  []string  `json:"preferred_sectors"`
	ExcludedSectors   []string  `json:"excluded_sectors"`
	MaxSinglePosition float64   `json:"max_single_position"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Validate fills defaults and rejects out of range values.
func (p *Profile) Validate() error {
	if p.UserID == "" {
		return errors.New("user_id is required")
	}
	if p.RiskLevel == "" {
		p.RiskLevel = Moderate
	}
	valid := false
	for _, l := range RiskLevels {
		if p.RiskLevel == l {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid risk_level %q", p.RiskLevel)
	}
	if p.RiskScore < 0 || p.RiskScore > 100 {
		return fmt.Errorf("risk_score must be within [0, 100], got %v", p.RiskScore)
	}
	if p.PrimaryGoal == "" {
		p.PrimaryGoal = "growth"
	}
	switch p.TimeHorizon {
	case "":
		p.TimeHorizon = "medium_term"
	case "short_term", "medium_term", "long_term":
	default:
		return fmt.Errorf("invalid time_horizon %q", p.TimeHorizon)
	}
	if p.MaxSinglePosition == 0 {
		p.MaxSinglePosition = 10
	}
	if p.MaxSinglePosition < 0 || p.MaxSinglePosition > 100 {
		return fmt.Errorf("max_single_position must be within (0, 100], got %v", p.MaxSinglePosition)
	}
	if p.PreferredSectors == nil {
		p.PreferredSectors = []string{}
	}
	if p.ExcludedSectors == nil {
		p.ExcludedSectors = []string{}
	}
	return nil
}

// Position is a current holding.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

// Side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is one executed order.
type Trade struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	ExecutedAt time.Time `json:"executed_at"`
}
