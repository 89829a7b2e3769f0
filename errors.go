package caseauth

import "errors"

var (
	// ErrUnauthorized is returned when no authentication strategy produced
	// a principal for the request.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a principal exists but its role set
	// does not intersect the required roles.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned on a wrong email/password pair.
	// The message is deliberately uniform: callers must not be able to
	// tell a missing account from a wrong password.
	ErrInvalidCredentials = errors.New("wrong username or password")
	// ErrSigninLocked is returned once the failed-attempt threshold for an
	// action has been reached, regardless of credential correctness.
	ErrSigninLocked = errors.New("too many failed attempts")
	// ErrEmailExists is returned when registration collides with an
	// existing account under case-insensitive email comparison.
	ErrEmailExists = errors.New("email already registered")
	// ErrUserNotFound is returned by store lookups and id-based flows.
	ErrUserNotFound = errors.New("user not found")
	// ErrResetTokenInvalid covers a missing, mismatched or expired
	// password-reset token. One message for all three cases.
	ErrResetTokenInvalid = errors.New("invalid or expired token")
	// ErrTokenNotScoped is returned when the identity provider's userinfo
	// response carries no verified email claim.
	ErrTokenNotScoped = errors.New("token not scoped for email")
	// ErrAPIKeyNotFound is returned when a key lookup or deletion targets
	// a user without a stored key.
	ErrAPIKeyNotFound = errors.New("api key not found")
	// ErrValidation is returned for malformed input such as an invalid
	// user id format.
	ErrValidation = errors.New("invalid input")
	// ErrRateLimited is returned when the request-rate ceiling for a
	// client key has been consumed.
	ErrRateLimited = errors.New("rate limited")
	// ErrCaptchaFailed is returned when captcha verification rejects the
	// request.
	ErrCaptchaFailed = errors.New("captcha verification failed")
	// ErrUpstream wraps identity-provider and other external failures that
	// are not best-effort.
	ErrUpstream = errors.New("upstream service failure")
	// ErrEngineNotReady is returned when the engine is missing a required
	// dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)
