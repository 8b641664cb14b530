package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/trii-invest/insightd/internal/profiles"
	"github.com/trii-invest/insightd/internal/resource"
)

// UserProfileScheme prefixes every URI the user profile provider owns.
const UserProfileScheme = "user-profile"

const historyLimit = 50

// ProfileSource is the subset of profiles.Store the provider reads.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*profiles.Profile, error)
	Portfolio(ctx context.Context, userID string) ([]profiles.Position, error)
	Trades(ctx context.Context, userID string, limit int) ([]profiles.Trade, error)
}

// UserProfile exposes an investor's profile, holdings and trade history.
type UserProfile struct {
	source ProfileSource
}

func NewUserProfile(source ProfileSource) *UserProfile {
	return &UserProfile{source: source}
}

func (u *UserProfile) Name() string { return "user_profile" }

// ListResources is empty when the scope has no user or the user is unknown.
func (u *UserProfile) ListResources(ctx context.Context, scope resource.Scope) ([]resource.Resource, error) {
	userID := scope.UserID()
	if userID == "" {
		return nil, nil
	}
	if _, err := u.source.Get(ctx, userID); err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return []resource.Resource{
		{
			URI:          profileURI(userID, "profile"),
			Name:         "User Profile - " + userID,
			Description:  "Investment profile and preferences for user " + userID,
			ResourceType: resource.TypeUserProfile,
		},
		{
			URI:          profileURI(userID, "portfolio"),
			Name:         "Portfolio - " + userID,
			Description:  "Current portfolio holdings for user " + userID,
			ResourceType: resource.TypePortfolio,
		},
		{
			URI:          profileURI(userID, "history"),
			Name:         "Trading History - " + userID,
			Description:  "Trading and investment history for user " + userID,
			ResourceType: resource.TypeUserProfile,
		},
	}, nil
}

func (u *UserProfile) ListTools(ctx context.Context, scope resource.Scope) ([]resource.Tool, error) {
	if scope.UserID() == "" {
		return nil, nil
	}
	return []resource.Tool{{
		Name:        "get_risk_profile",
		Description: "Get the investor's risk level, goals and position limits",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{"type": "string"},
			},
			"required": []string{"user_id"},
		},
	}}, nil
}

func (u *UserProfile) FetchContent(ctx context.Context, uri string) (*resource.Content, bool, error) {
	userID, kind, ok := splitURI(uri, UserProfileScheme)
	if !ok {
		return nil, false, nil
	}

	var (
		v   any
		err error
	)
	switch kind {
	case "profile":
		v, err = u.source.Get(ctx, userID)
	case "portfolio":
		v, err = u.source.Portfolio(ctx, userID)
	case "history":
		v, err = u.source.Trades(ctx, userID, historyLimit)
	default:
		return nil, false, nil
	}
	if errors.Is(err, profiles.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading %s: %w", uri, err)
	}

	c, err := jsonContent(uri, v)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// ContextData summarizes the user's profile for prompt rendering under the
// "user_profile" key. It returns nil for unknown users.
func (u *UserProfile) ContextData(ctx context.Context, userID string) (map[string]any, error) {
	if userID == "" {
		return nil, nil
	}
	p, err := u.source.Get(ctx, userID)
	if errors.Is(err, profiles.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"risk_level":          p.RiskLevel,
		"risk_score":          p.RiskScore,
		"primary_goal":        p.PrimaryGoal,
		"time_horizon":        p.TimeHorizon,
		"preferred_sectors":   p.PreferredSectors,
		"excluded_sectors":    p.ExcludedSectors,
		"max_single_position": p.MaxSinglePosition,
	}, nil
}

func profileURI(userID, kind string) string {
	return UserProfileScheme + "://" + userID + "/" + kind
}
