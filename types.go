package caseauth

import (
	"context"
	"time"
)

// Role is a coarse authority level attached to a user. Authorization is
// any-of: a guard built for several roles admits a principal carrying at
// least one of them.
type Role string

const (
	// RoleAdmin may manage users and delete API keys.
	RoleAdmin Role = "admin"
	// RoleCurator may curate cases and sources.
	RoleCurator Role = "curator"
	// RoleJuniorCurator may propose curation changes.
	RoleJuniorCurator Role = "juniorCurator"
)

// Profile holds the mutable display fields synced from federated logins
// or edited by the user.
type Profile struct {
	DisplayName string
	PictureURL  string
	Newsletter  bool
}

// User is the root identity record. A record with neither a password hash
// nor a federated id is invalid; the store rejects it on insert.
type User struct {
	ID           string
	Email        string
	PasswordHash string // empty for pure-OAuth accounts
	Roles        []Role
	APIKey       string // optional; always prefixed by ID
	FederatedID  string // external OAuth subject, optional
	Profile      Profile
	CreatedAt    time.Time
}

// HasAnyRole reports whether the user carries at least one of the given
// roles.
func (u *User) HasAnyRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, want := range roles {
		for _, have := range u.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// AuthMethod names the strategy that produced a principal.
type AuthMethod string

const (
	// MethodAPIKey marks principals resolved from an X-API-Key header.
	MethodAPIKey AuthMethod = "apiKey"
	// MethodSession marks principals resolved from a session cookie.
	MethodSession AuthMethod = "session"
	// MethodBearer marks principals resolved through the identity
	// provider fallback.
	MethodBearer AuthMethod = "bearer"
)

// Principal is an authenticated caller together with the mechanism that
// authenticated it.
type Principal struct {
	User   *User
	Method AuthMethod
}

// AttemptAction distinguishes the per-user abuse counters.
type AttemptAction string

const (
	// ActionLogin counts failed password sign-ins.
	ActionLogin AttemptAction = "login"
	// ActionResetPassword counts reset requests for a user id.
	ActionResetPassword AttemptAction = "resetPassword"
	// ActionResetPasswordWithToken counts failed token consumptions.
	ActionResetPasswordWithToken AttemptAction = "resetPasswordWithToken"
)

// CredentialStore is the persistence boundary for user accounts. Email
// lookups compare case-insensitively. Lookups return [ErrUserNotFound]
// when no record matches; Insert returns [ErrEmailExists] when the
// store's unique email index rejects the document — the index, not the
// caller's pre-check, is the final arbiter under concurrent registration.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByAPIKey(ctx context.Context, key string) (*User, error)
	FindByFederatedID(ctx context.Context, federatedID string) (*User, error)
	Insert(ctx context.Context, user *User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateAPIKey(ctx context.Context, id, key string) error // key == "" unsets
	UpdateProfile(ctx context.Context, id string, profile Profile) error
}

// ResetToken is a single-use password-reset capability. Only the hash of
// the token value is persisted; expiry is enforced by the caller against
// CreatedAt, not by a stored deadline.
type ResetToken struct {
	UserID    string
	TokenHash string // hex-encoded SHA-256 of the unhashed token
	CreatedAt time.Time
}

// ResetTokenStore keeps at most one live token per user. Replace deletes
// any prior token for the user before inserting, so the most recent
// request always wins. Find returns [ErrResetTokenInvalid] when no token
// exists for the user.
type ResetTokenStore interface {
	Replace(ctx context.Context, token *ResetToken) error
	Find(ctx context.Context, userID string) (*ResetToken, error)
	Delete(ctx context.Context, userID string) error
}

// FailedAttempt is the persisted abuse counter for one (user, action)
// pair.
type FailedAttempt struct {
	UserID    string
	Action    AttemptAction
	Count     int
	LastReset time.Time
}

// FailedAttemptStore persists abuse counters. Get returns a zero-count
// record when none exists yet.
type FailedAttemptStore interface {
	Get(ctx context.Context, userID string, action AttemptAction) (*FailedAttempt, error)
	Set(ctx context.Context, userID string, action AttemptAction, count int) error
}

// EmailClient delivers outbound mail. Callers decide whether a failure is
// fatal; most sends in this package are best-effort and only logged.
type EmailClient interface {
	Send(ctx context.Context, recipients []string, subject, htmlBody string) error
}

// UserInfo is the identity provider's claim set for a bearer token.
type UserInfo struct {
	Subject       string
	Email         string
	EmailVerified bool
}

// IdentityProvider exchanges a caller-supplied bearer token for an email
// claim. Implementations must bound the call with a timeout and fail
// closed.
type IdentityProvider interface {
	UserInfo(ctx context.Context, bearerToken string) (*UserInfo, error)
}

// RateLimiter is the injectable request-rate ceiling keyed by client
// identity. Consume returns [ErrRateLimited] once the budget for the key
// is exhausted.
type RateLimiter interface {
	Consume(ctx context.Context, clientKey string) error
	Reset(ctx context.Context, clientKey string) error
}

// CaptchaVerifier validates a captcha response token for signup/signin.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// FederatedProfile is the subset of an OAuth provider's profile the
// account linker consumes.
type FederatedProfile struct {
	Subject     string
	DisplayName string
	Emails      []string
	Photos      []string
}
