package caseauth

import (
	"errors"
	"time"
)

// Config tunes the engine. Instances are set up during initialization and
// treated as immutable afterwards.
type Config struct {
	Lockout LockoutConfig
	Reset   ResetConfig
	APIKey  APIKeyConfig
	OAuth   OAuthStateConfig
	Mail    MailConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// LockoutConfig controls the stateful failed-attempt lockout.
type LockoutConfig struct {
	// Threshold is the failure count at which further attempts for a
	// (user, action) pair are rejected until a successful attempt resets
	// the counter.
	Threshold int
}

// ResetConfig controls password-reset token issuance.
type ResetConfig struct {
	TokenTTL   time.Duration
	TokenBytes int
	// LinkBase is the UI URL the emailed reset link points at; the token
	// and user id are appended as query parameters.
	LinkBase string
	// EnumerationDelay is slept before answering an email-initiated reset
	// request for an unknown account, so response timing does not reveal
	// account existence.
	EnumerationDelay time.Duration
}

// APIKeyConfig controls opaque key generation.
type APIKeyConfig struct {
	// SuffixBytes is the number of random bytes hex-encoded after the
	// owning user id. All key entropy lives in the suffix; the id prefix
	// only buys O(1) owner recovery.
	SuffixBytes int
}

// OAuthStateConfig controls the signed state parameter that carries the
// newsletter opt-in across the external OAuth redirect.
type OAuthStateConfig struct {
	StateSecret []byte
	StateTTL    time.Duration
}

// MailConfig holds the sender identity used in engine-composed emails.
type MailConfig struct {
	From        string
	ServiceName string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{Threshold: 10},
		Reset: ResetConfig{
			TokenTTL:         time.Hour,
			TokenBytes:       32,
			EnumerationDelay: 120 * time.Millisecond,
		},
		APIKey: APIKeyConfig{SuffixBytes: 16},
		OAuth:  OAuthStateConfig{StateTTL: 10 * time.Minute},
		Mail:   MailConfig{ServiceName: "Case Curator"},
		Audit:  AuditConfig{Enabled: true, BufferSize: 256, DropIfFull: true},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c Config) validate() error {
	if c.Lockout.Threshold <= 0 {
		return errors.New("lockout threshold must be > 0")
	}
	if c.Reset.TokenTTL <= 0 {
		return errors.New("reset token ttl must be > 0")
	}
	if c.Reset.TokenBytes < 16 {
		return errors.New("reset token bytes must be >= 16")
	}
	if c.APIKey.SuffixBytes < 8 {
		return errors.New("api key suffix bytes must be >= 8")
	}
	return nil
}
