package caseauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/casecurate/caseauth/internal"
	"github.com/google/uuid"
)

// RequestPasswordResetByEmail issues a reset token for the account behind
// email, replacing any previous token. The outcome never reveals whether
// the account exists: unknown addresses return success after a small
// delay so response timing stays uniform. A lockout on the token action
// is still surfaced, matching the route contract.
func (e *Engine) RequestPasswordResetByEmail(ctx context.Context, email string) error {
	if email == "" {
		return ErrValidation
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			if e.config.Reset.EnumerationDelay > 0 {
				time.Sleep(e.config.Reset.EnumerationDelay)
			}
			return nil
		}
		return fmt.Errorf("reset request lookup: %w", err)
	}

	return e.issueResetToken(ctx, user)
}

// RequestPasswordReset issues a reset token for a user id. Unlike the
// email-initiated path this one distinguishes not-found from other
// errors: the caller already had to know the id, so there is nothing to
// enumerate.
func (e *Engine) RequestPasswordReset(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrValidation
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("reset request lookup: %w", err)
	}

	return e.issueResetToken(ctx, user)
}

func (e *Engine) issueResetToken(ctx context.Context, user *User) error {
	allowed, _, err := e.attempts.CheckAllowed(ctx, user.ID, ActionResetPasswordWithToken)
	if err != nil {
		return err
	}
	if !allowed {
		e.emitAudit(ctx, auditEventResetRequest, false, user.ID, ErrSigninLocked, nil)
		return ErrSigninLocked
	}

	token, err := internal.NewHex(e.config.Reset.TokenBytes)
	if err != nil {
		return fmt.Errorf("reset token generation: %w", err)
	}

	// Replace deletes the previous token first, so only the most recent
	// request stays valid.
	if err := e.resets.Replace(ctx, &ResetToken{
		UserID:    user.ID,
		TokenHash: internal.HashToken(token),
		CreatedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("reset token store: %w", err)
	}

	// This send is awaited: a token nobody received is useless, so a mail
	// failure fails the request.
	if e.mailer != nil {
		link := e.resetLink(user.ID, token)
		body := fmt.Sprintf(
			"<p>A password reset was requested for your %s account.</p>"+
				"<p><a href=%q>Reset your password</a>. The link expires in %s.</p>",
			e.config.Mail.ServiceName, link, e.config.Reset.TokenTTL)
		if err := e.mailer.Send(ctx, []string{user.Email}, e.config.Mail.ServiceName+" password reset", body); err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
	}

	e.metricInc(MetricResetRequest)
	e.emitAudit(ctx, auditEventResetRequest, true, user.ID, nil, nil)
	return nil
}

func (e *Engine) resetLink(userID, token string) string {
	values := url.Values{}
	values.Set("id", userID)
	values.Set("token", token)
	return e.config.Reset.LinkBase + "?" + values.Encode()
}

// ConfirmPasswordReset consumes a reset token and stores the new
// password. Mismatched, absent and expired tokens all increment the
// failure counter and answer with the same [ErrResetTokenInvalid]; the
// stored token is left untouched on mismatch so the legitimate holder can
// still retry until lockout. A consumed token is deleted and can never be
// replayed.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, userID, token, newPlaintext string) error {
	if userID == "" || token == "" || newPlaintext == "" {
		return ErrValidation
	}

	allowed, _, err := e.attempts.CheckAllowed(ctx, userID, ActionResetPasswordWithToken)
	if err != nil {
		return err
	}
	if !allowed {
		e.metricInc(MetricResetConfirmFailure)
		e.emitAudit(ctx, auditEventResetConfirm, false, userID, ErrSigninLocked, nil)
		return ErrSigninLocked
	}

	stored, err := e.resets.Find(ctx, userID)
	switch {
	case errors.Is(err, ErrResetTokenInvalid):
		return e.rejectResetToken(ctx, userID, "token_absent")
	case err != nil:
		return fmt.Errorf("reset token lookup: %w", err)
	}

	if time.Since(stored.CreatedAt) > e.config.Reset.TokenTTL {
		return e.rejectResetToken(ctx, userID, "token_expired")
	}

	provided := internal.HashToken(token)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(stored.TokenHash)) != 1 {
		return e.rejectResetToken(ctx, userID, "token_mismatch")
	}

	hash, err := e.hasher.Hash(newPlaintext)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("reset password update: %w", err)
	}

	if err := e.attempts.Reset(ctx, userID, ActionResetPasswordWithToken); err != nil {
		return err
	}
	if err := e.attempts.Reset(ctx, userID, ActionLogin); err != nil {
		e.log.Warn("login counter reset failed after password reset", "user", userID, "error", err)
	}
	if err := e.resets.Delete(ctx, userID); err != nil {
		return fmt.Errorf("reset token delete: %w", err)
	}

	if user, err := e.users.FindByID(ctx, userID); err == nil {
		e.sendBestEffort(ctx, user.Email,
			e.config.Mail.ServiceName+" password changed",
			"<p>Your password was just changed. If this wasn't you, contact support immediately.</p>")
	}

	e.metricInc(MetricResetConfirmSuccess)
	e.emitAudit(ctx, auditEventResetConfirm, true, userID, nil, nil)
	return nil
}

func (e *Engine) rejectResetToken(ctx context.Context, userID, reason string) error {
	if _, err := e.attempts.RecordFailure(ctx, userID, ActionResetPasswordWithToken); err != nil {
		return err
	}
	e.metricInc(MetricResetConfirmFailure)
	e.emitAudit(ctx, auditEventResetConfirm, false, userID, ErrResetTokenInvalid, map[string]string{"reason": reason})
	return ErrResetTokenInvalid
}
