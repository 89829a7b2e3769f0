package caseauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/casecurate/caseauth/internal"
)

// GenerateAPIKey issues a new opaque key for the user, overwriting any
// existing one (rotation and first issue are the same operation; the last
// write wins under concurrency, which is acceptable). The key is the
// owning user id followed by random hex: the prefix gives O(1) owner
// recovery without a secondary index, and all entropy lives in the
// suffix. Authorization (owner or admin) is the caller's job.
func (e *Engine) GenerateAPIKey(ctx context.Context, userID string) (string, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("api key lookup: %w", err)
	}

	suffix, err := internal.NewHex(e.config.APIKey.SuffixBytes)
	if err != nil {
		return "", fmt.Errorf("api key generation: %w", err)
	}
	key := user.ID + suffix

	if err := e.users.UpdateAPIKey(ctx, user.ID, key); err != nil {
		return "", fmt.Errorf("api key update: %w", err)
	}

	e.metricInc(MetricAPIKeyGenerated)
	e.emitAudit(ctx, auditEventAPIKeyGenerated, true, user.ID, nil, nil)
	return key, nil
}

// APIKeyFor returns the user's stored key, or [ErrAPIKeyNotFound] when
// none has been generated.
func (e *Engine) APIKeyFor(ctx context.Context, userID string) (string, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("api key lookup: %w", err)
	}
	if user.APIKey == "" {
		return "", ErrAPIKeyNotFound
	}
	return user.APIKey, nil
}

// DeleteAPIKey unsets the user's key. Deleting an absent key returns
// [ErrAPIKeyNotFound].
func (e *Engine) DeleteAPIKey(ctx context.Context, userID string) error {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("api key lookup: %w", err)
	}
	if user.APIKey == "" {
		return ErrAPIKeyNotFound
	}
	if err := e.users.UpdateAPIKey(ctx, user.ID, ""); err != nil {
		return fmt.Errorf("api key delete: %w", err)
	}

	e.metricInc(MetricAPIKeyDeleted)
	e.emitAudit(ctx, auditEventAPIKeyDeleted, true, user.ID, nil, nil)
	return nil
}

// userFromAPIKey resolves the owner of a presented key by exact match.
func (e *Engine) userFromAPIKey(ctx context.Context, key string) (*User, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}
	user, err := e.users.FindByAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("api key resolve: %w", err)
	}
	return user, nil
}
