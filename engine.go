package caseauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/casecurate/caseauth/password"
	"github.com/google/uuid"
)

// Engine composes the credential flows: registration, password sign-in
// with stateful lockout, password change, API keys, bearer-token
// provisioning, OAuth account linking, and the password-reset lifecycle.
// Engines are configured once and safe for concurrent use.
type Engine struct {
	config   Config
	users    CredentialStore
	resets   ResetTokenStore
	attempts *AttemptTracker
	hasher   *password.Hasher
	mailer   EmailClient
	identity IdentityProvider
	audit    *auditDispatcher
	metrics  *Metrics
	log      *slog.Logger
}

// Dependencies carries the collaborators an [Engine] is built from.
// Users, ResetTokens and Attempts are required; Mailer and Identity may
// be nil when the corresponding flows are unused (email sends become
// no-ops, bearer validation fails closed).
type Dependencies struct {
	Users       CredentialStore
	ResetTokens ResetTokenStore
	Attempts    FailedAttemptStore
	Hasher      *password.Hasher
	Mailer      EmailClient
	Identity    IdentityProvider
	AuditSink   AuditSink
	Logger      *slog.Logger
}

// New validates cfg and assembles an engine.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Users == nil || deps.ResetTokens == nil || deps.Attempts == nil {
		return nil, errors.New("caseauth: store dependencies are required")
	}
	hasher := deps.Hasher
	if hasher == nil {
		h, err := password.New(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:   cfg,
		users:    deps.Users,
		resets:   deps.ResetTokens,
		attempts: newAttemptTracker(deps.Attempts, cfg.Lockout.Threshold),
		hasher:   hasher,
		mailer:   deps.Mailer,
		identity: deps.Identity,
		audit:    newAuditDispatcher(cfg.Audit, deps.AuditSink),
		metrics:  NewMetrics(cfg.Metrics),
		log:      logger,
	}, nil
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.close()
}

// MetricsSnapshot returns the current counter values.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e == nil {
		return map[MetricID]uint64{}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were dropped by a full
// buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID string, failure error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	e.audit.emit(ctx, event)
}

// Signup registers a local account. The store's unique email index is the
// final arbiter under concurrent registration: a pre-check races, the
// insert does not.
func (e *Engine) Signup(ctx context.Context, email, plaintext, displayName string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrValidation
	}

	if _, err := e.users.FindByEmail(ctx, email); err == nil {
		e.metricInc(MetricSignupDuplicate)
		e.emitAudit(ctx, auditEventSignup, false, "", ErrEmailExists, map[string]string{"email": email})
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("signup lookup: %w", err)
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Roles:        []Role{},
		Profile:      Profile{DisplayName: displayName},
		CreatedAt:    time.Now(),
	}
	if err := e.users.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			// Lost the race against a concurrent registration.
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, auditEventSignup, false, "", ErrEmailExists, map[string]string{"email": email})
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("signup insert: %w", err)
	}

	if err := e.attempts.Reset(ctx, user.ID, ActionLogin); err != nil {
		e.log.Warn("attempt counter init failed", "user", user.ID, "error", err)
	}

	e.sendBestEffort(ctx, user.Email,
		"Welcome to "+e.config.Mail.ServiceName,
		fmt.Sprintf("<p>Welcome! Your %s account is ready.</p>", e.config.Mail.ServiceName))

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignup, true, user.ID, nil, nil)
	return user, nil
}

// Signin authenticates an email/password pair. The returned error is one
// of three explicit variants: nil (authenticated), [ErrSigninLocked]
// (threshold reached, credential not even examined), or
// [ErrInvalidCredentials] (uniform for unknown account and wrong
// password). The lockout is checked before password verification so the
// response never reveals whether a locked account's credential was right.
func (e *Engine) Signin(ctx context.Context, email, plaintext string) (*User, error) {
	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricSigninFailure)
			e.emitAudit(ctx, auditEventSigninFailure, false, "", ErrInvalidCredentials, map[string]string{"reason": "user_not_found"})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("signin lookup: %w", err)
	}

	allowed, _, err := e.attempts.CheckAllowed(ctx, user.ID, ActionLogin)
	if err != nil {
		return nil, err
	}
	if !allowed {
		e.metricInc(MetricSigninLocked)
		e.emitAudit(ctx, auditEventSigninLocked, false, user.ID, ErrSigninLocked, nil)
		return nil, ErrSigninLocked
	}

	if !e.hasher.Verify(plaintext, user.PasswordHash) {
		if _, err := e.attempts.RecordFailure(ctx, user.ID, ActionLogin); err != nil {
			return nil, err
		}
		e.metricInc(MetricSigninFailure)
		e.emitAudit(ctx, auditEventSigninFailure, false, user.ID, ErrInvalidCredentials, map[string]string{"reason": "password_mismatch"})
		return nil, ErrInvalidCredentials
	}

	if err := e.attempts.Reset(ctx, user.ID, ActionLogin); err != nil {
		return nil, err
	}

	e.metricInc(MetricSigninSuccess)
	e.emitAudit(ctx, auditEventSigninSuccess, true, user.ID, nil, nil)
	return user, nil
}

// ChangePassword replaces the stored hash after verifying the old
// password. Wrong old passwords count against the login lockout.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPlaintext, newPlaintext string) error {
	if userID == "" || oldPlaintext == "" || newPlaintext == "" {
		return ErrValidation
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("change password lookup: %w", err)
	}

	allowed, _, err := e.attempts.CheckAllowed(ctx, user.ID, ActionLogin)
	if err != nil {
		return err
	}
	if !allowed {
		e.emitAudit(ctx, auditEventPasswordChange, false, user.ID, ErrSigninLocked, nil)
		return ErrSigninLocked
	}

	if !e.hasher.Verify(oldPlaintext, user.PasswordHash) {
		if _, err := e.attempts.RecordFailure(ctx, user.ID, ActionLogin); err != nil {
			return err
		}
		e.emitAudit(ctx, auditEventPasswordChange, false, user.ID, ErrInvalidCredentials, map[string]string{"reason": "old_password_mismatch"})
		return ErrInvalidCredentials
	}

	hash, err := e.hasher.Hash(newPlaintext)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("change password update: %w", err)
	}
	if err := e.attempts.Reset(ctx, user.ID, ActionLogin); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChange)
	e.emitAudit(ctx, auditEventPasswordChange, true, user.ID, nil, nil)
	return nil
}

// UserByID resolves a user record by id. Session principals carry only
// the id; callers use this to hydrate the full record each request.
func (e *Engine) UserByID(ctx context.Context, id string) (*User, error) {
	user, err := e.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	return user, nil
}

// sendBestEffort delivers an email and only logs failures. Used wherever
// a send must never fail the primary operation.
func (e *Engine) sendBestEffort(ctx context.Context, recipient, subject, body string) {
	if e.mailer == nil {
		return
	}
	if err := e.mailer.Send(ctx, []string{recipient}, subject, body); err != nil {
		e.log.Warn("best-effort email failed", "subject", subject, "error", err)
	}
}
