package caseauth

import (
	"context"
	"fmt"
)

// AttemptTracker enforces the per-(user, action) lockout threshold over a
// [FailedAttemptStore]. Check and record are separate operations so
// callers can refuse an attempt before revealing whether a credential was
// wrong, and only increment after confirming the credential check failed.
type AttemptTracker struct {
	store     FailedAttemptStore
	threshold int
}

func newAttemptTracker(store FailedAttemptStore, threshold int) *AttemptTracker {
	return &AttemptTracker{store: store, threshold: threshold}
}

// CheckAllowed reports whether another attempt is permitted and the
// current failure count. Once the count reaches the threshold the pair is
// locked until a successful attempt resets it.
func (t *AttemptTracker) CheckAllowed(ctx context.Context, userID string, action AttemptAction) (bool, int, error) {
	record, err := t.store.Get(ctx, userID, action)
	if err != nil {
		return false, 0, fmt.Errorf("attempt lookup: %w", err)
	}
	return record.Count < t.threshold, record.Count, nil
}

// RecordFailure increments the failure counter and returns the new count.
func (t *AttemptTracker) RecordFailure(ctx context.Context, userID string, action AttemptAction) (int, error) {
	record, err := t.store.Get(ctx, userID, action)
	if err != nil {
		return 0, fmt.Errorf("attempt lookup: %w", err)
	}
	next := record.Count + 1
	if err := t.store.Set(ctx, userID, action, next); err != nil {
		return 0, fmt.Errorf("attempt update: %w", err)
	}
	return next, nil
}

// Reset clears the counter after a successful attempt.
func (t *AttemptTracker) Reset(ctx context.Context, userID string, action AttemptAction) error {
	if err := t.store.Set(ctx, userID, action, 0); err != nil {
		return fmt.Errorf("attempt reset: %w", err)
	}
	return nil
}
