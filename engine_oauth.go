package caseauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casecurate/caseauth/internal"
	"github.com/google/uuid"
)

// OAuthLogin finds or creates the account for a federated profile and
// reconciles its mutable fields. New accounts copy the profile fields,
// start with an empty role set, and record the newsletter opt-in the
// caller carried through the OAuth state parameter. Existing accounts get
// a photo update when the federation-supplied photo changed, and a
// newsletter update when the user had not yet opted in and the flag is
// set — roles and email are never touched here.
func (e *Engine) OAuthLogin(ctx context.Context, profile FederatedProfile, newsletterOptIn bool) (*User, error) {
	if profile.Subject == "" {
		return nil, ErrValidation
	}

	user, err := e.users.FindByFederatedID(ctx, profile.Subject)
	if err == nil {
		changed := user.Profile
		if photo := firstOf(profile.Photos); photo != "" && photo != changed.PictureURL {
			changed.PictureURL = photo
		}
		if newsletterOptIn && !changed.Newsletter {
			changed.Newsletter = true
		}
		if changed != user.Profile {
			if err := e.users.UpdateProfile(ctx, user.ID, changed); err != nil {
				return nil, fmt.Errorf("oauth profile sync: %w", err)
			}
			user.Profile = changed
		}
		e.metricInc(MetricOAuthLogin)
		e.emitAudit(ctx, auditEventOAuthLink, true, user.ID, nil, nil)
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("oauth lookup: %w", err)
	}

	email := firstOf(profile.Emails)
	if email == "" {
		return nil, ErrTokenNotScoped
	}

	user = &User{
		ID:          uuid.NewString(),
		Email:       email,
		Roles:       []Role{},
		FederatedID: profile.Subject,
		Profile: Profile{
			DisplayName: profile.DisplayName,
			PictureURL:  firstOf(profile.Photos),
			Newsletter:  newsletterOptIn,
		},
		CreatedAt: time.Now(),
	}
	if err := e.users.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("oauth provision: %w", err)
	}

	e.sendBestEffort(ctx, user.Email,
		"Welcome to "+e.config.Mail.ServiceName,
		fmt.Sprintf("<p>Hi %s, welcome to %s!</p>", user.Profile.DisplayName, e.config.Mail.ServiceName))

	e.metricInc(MetricOAuthLogin)
	e.emitAudit(ctx, auditEventOAuthLink, true, user.ID, nil, map[string]string{"created": "true"})
	return user, nil
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// oauthState is the payload threaded through the OAuth authorization
// request's state parameter. Carrying the newsletter checkbox here —
// instead of in process-wide state — keeps concurrent logins from
// cross-contaminating each other's consent.
type oauthState struct {
	Nonce      string `json:"n"`
	Newsletter bool   `json:"nl"`
	IssuedAt   int64  `json:"iat"`
}

// EncodeOAuthState produces an HMAC-signed state parameter carrying the
// newsletter opt-in across the external redirect.
func (e *Engine) EncodeOAuthState(newsletter bool) (string, error) {
	if len(e.config.OAuth.StateSecret) == 0 {
		return "", ErrEngineNotReady
	}
	nonce, err := internal.NewHex(16)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(oauthState{
		Nonce:      nonce,
		Newsletter: newsletter,
		IssuedAt:   time.Now().Unix(),
	})
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + e.signState(encoded), nil
}

// DecodeOAuthState verifies the signature and expiry of a state parameter
// and returns the newsletter opt-in it carries.
func (e *Engine) DecodeOAuthState(state string) (bool, error) {
	if len(e.config.OAuth.StateSecret) == 0 {
		return false, ErrEngineNotReady
	}
	encoded, signature, ok := strings.Cut(state, ".")
	if !ok || !hmac.Equal([]byte(signature), []byte(e.signState(encoded))) {
		return false, ErrValidation
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return false, ErrValidation
	}
	var decoded oauthState
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return false, ErrValidation
	}
	ttl := e.config.OAuth.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if time.Since(time.Unix(decoded.IssuedAt, 0)) > ttl {
		return false, ErrValidation
	}
	return decoded.Newsletter, nil
}

func (e *Engine) signState(encoded string) string {
	mac := hmac.New(sha256.New, e.config.OAuth.StateSecret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
