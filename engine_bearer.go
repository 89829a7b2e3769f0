package caseauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidateBearer exchanges a bearer token for an email claim at the
// identity provider and finds or provisions the matching account. Trust
// is delegated entirely to the provider: this path never consults the
// failed-attempt tracker. A response without a verified email claim fails
// with [ErrTokenNotScoped]; provider errors and timeouts fail closed.
//
// Provisioned accounts start with no password, no display name, and an
// empty role set — an administrator grants roles out of band.
func (e *Engine) ValidateBearer(ctx context.Context, bearerToken string) (*User, error) {
	if e.identity == nil {
		return nil, ErrEngineNotReady
	}
	if bearerToken == "" {
		return nil, ErrUnauthorized
	}

	info, err := e.identity.UserInfo(ctx, bearerToken)
	if err != nil {
		e.metricInc(MetricBearerRejected)
		e.emitAudit(ctx, auditEventBearerRejected, false, "", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if info.Email == "" || !info.EmailVerified {
		e.metricInc(MetricBearerRejected)
		e.emitAudit(ctx, auditEventBearerRejected, false, "", ErrTokenNotScoped, nil)
		return nil, ErrTokenNotScoped
	}

	user, err := e.users.FindByEmail(ctx, info.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("bearer lookup: %w", err)
	}

	user = &User{
		ID:          uuid.NewString(),
		Email:       info.Email,
		Roles:       []Role{},
		FederatedID: info.Subject,
		CreatedAt:   time.Now(),
	}
	if err := e.users.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			// Concurrent provisioning for the same email; take the winner.
			return e.users.FindByEmail(ctx, info.Email)
		}
		return nil, fmt.Errorf("bearer provision: %w", err)
	}

	e.metricInc(MetricBearerProvisioned)
	e.emitAudit(ctx, auditEventBearerProvision, true, user.ID, nil, map[string]string{"email": info.Email})
	return user, nil
}
