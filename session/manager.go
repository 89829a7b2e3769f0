package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCookieName is used when Config.CookieName is empty.
const DefaultCookieName = "caseauth_session"

// Principal is the only state persisted in the session transport. It is
// resolved to a full user record by the caller on each request;
// resolution failure invalidates the session.
type Principal struct {
	UserID string
}

// Config controls token signing and cookie attributes.
type Config struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Secure     bool
	Issuer     string
}

// Manager signs and verifies session tokens. Safe for concurrent use.
type Manager struct {
	config Config
}

type sessionClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("session ttl must be > 0")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Manager{config: cfg}, nil
}

// Token signs a session token for the principal.
func (m *Manager) Token(p Principal) (string, error) {
	if p.UserID == "" {
		return "", errors.New("empty principal")
	}
	now := time.Now()
	claims := sessionClaims{
		UID: p.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Parse verifies a token and returns its principal. Expired, tampered and
// wrongly-signed tokens all fail.
func (m *Manager) Parse(token string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(*jwt.Token) (any, error) {
		return m.config.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, err
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || claims.UID == "" {
		return Principal{}, errors.New("invalid session claims")
	}
	return Principal{UserID: claims.UID}, nil
}

// Issue sets the session cookie for the principal.
func (m *Manager) Issue(w http.ResponseWriter, p Principal) error {
	token, err := m.Token(p)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.config.TTL / time.Second),
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest extracts and verifies the session principal from the
// request's cookie. The second return is false when no valid session is
// present.
func (m *Manager) FromRequest(r *http.Request) (Principal, bool) {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil || cookie.Value == "" {
		return Principal{}, false
	}
	p, err := m.Parse(cookie.Value)
	if err != nil {
		return Principal{}, false
	}
	return p, true
}
