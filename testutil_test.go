package caseauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casecurate/caseauth/password"
)

// memUsers is an in-memory CredentialStore with the same uniqueness
// semantics as the Mongo implementation: emails collide
// case-insensitively.
type memUsers struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*User{}}
}

func (s *memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memUsers) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, ErrUserNotFound
}

func (s *memUsers) FindByAPIKey(_ context.Context, key string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.APIKey != "" && u.APIKey == key {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memUsers) FindByFederatedID(_ context.Context, federatedID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.FederatedID != "" && u.FederatedID == federatedID {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memUsers) Insert(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrEmailExists
		}
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *memUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *memUsers) UpdateAPIKey(_ context.Context, id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.APIKey = key
	return nil
}

func (s *memUsers) UpdateProfile(_ context.Context, id string, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Profile = profile
	return nil
}

func cloneUser(u *User) *User {
	copied := *u
	copied.Roles = append([]Role(nil), u.Roles...)
	return &copied
}

type memResets struct {
	mu     sync.Mutex
	tokens map[string]*ResetToken
}

func newMemResets() *memResets {
	return &memResets{tokens: map[string]*ResetToken{}}
}

func (s *memResets) Replace(_ context.Context, token *ResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *token
	s.tokens[token.UserID] = &copied
	return nil
}

func (s *memResets) Find(_ context.Context, userID string) (*ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[userID]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, ErrResetTokenInvalid
}

func (s *memResets) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

type memAttempts struct {
	mu     sync.Mutex
	counts map[string]int
}

func newMemAttempts() *memAttempts {
	return &memAttempts{counts: map[string]int{}}
}

func attemptKey(userID string, action AttemptAction) string {
	return userID + "/" + string(action)
}

func (s *memAttempts) Get(_ context.Context, userID string, action AttemptAction) (*FailedAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &FailedAttempt{
		UserID: userID,
		Action: action,
		Count:  s.counts[attemptKey(userID, action)],
	}, nil
}

func (s *memAttempts) Set(_ context.Context, userID string, action AttemptAction, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[attemptKey(userID, action)] = count
	return nil
}

type sentMail struct {
	Recipients []string
	Subject    string
	Body       string
}

// capturingMailer records sends and optionally fails them.
type capturingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *capturingMailer) Send(_ context.Context, recipients []string, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp refused")
	}
	m.sent = append(m.sent, sentMail{Recipients: recipients, Subject: subject, Body: body})
	return nil
}

func (m *capturingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *capturingMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("expected at least one email")
	}
	return m.sent[len(m.sent)-1]
}

// mockIdentity answers userinfo lookups from a fixed token table.
type mockIdentity struct {
	infos map[string]*UserInfo
}

func (m *mockIdentity) UserInfo(_ context.Context, bearerToken string) (*UserInfo, error) {
	if info, ok := m.infos[bearerToken]; ok {
		return info, nil
	}
	return nil, ErrUnauthorized
}

type testEnv struct {
	engine   *Engine
	users    *memUsers
	resets   *memResets
	attempts *memAttempts
	mailer   *capturingMailer
}

func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()
	cfg := password.DefaultConfig()
	// Minimum legal cost so the suite stays fast.
	cfg.Memory = 8 * 1024
	cfg.Time = 1
	cfg.Parallelism = 1
	hasher, err := password.New(cfg)
	if err != nil {
		t.Fatalf("password.New failed: %v", err)
	}
	return hasher
}

func newTestEngine(t *testing.T, mutate func(*Config, *Dependencies)) *testEnv {
	t.Helper()

	env := &testEnv{
		users:    newMemUsers(),
		resets:   newMemResets(),
		attempts: newMemAttempts(),
		mailer:   &capturingMailer{},
	}

	cfg := DefaultConfig()
	cfg.Reset.EnumerationDelay = 0
	cfg.Reset.LinkBase = "https://curator.example/reset"
	cfg.OAuth.StateSecret = []byte("test-state-secret-test-state-sec")
	cfg.Audit.Enabled = false

	deps := Dependencies{
		Users:       env.users,
		ResetTokens: env.resets,
		Attempts:    env.attempts,
		Hasher:      newTestHasher(t),
		Mailer:      env.mailer,
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	engine, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func mustSignup(t *testing.T, env *testEnv, email, pass string) *User {
	t.Helper()
	user, err := env.engine.Signup(context.Background(), email, pass, "Test User")
	if err != nil {
		t.Fatalf("Signup(%s) failed: %v", email, err)
	}
	return user
}

func seedOAuthUser(t *testing.T, env *testEnv, subject, email string) *User {
	t.Helper()
	user, err := env.engine.OAuthLogin(context.Background(), FederatedProfile{
		Subject: subject,
		Emails:  []string{email},
	}, false)
	if err != nil {
		t.Fatalf("OAuthLogin(%s) failed: %v", subject, err)
	}
	return user
}

func grantRoles(t *testing.T, env *testEnv, userID string, roles ...Role) {
	t.Helper()
	env.users.mu.Lock()
	defer env.users.mu.Unlock()
	u, ok := env.users.users[userID]
	if !ok {
		t.Fatalf("user %s not found", userID)
	}
	u.Roles = roles
}

func advanceResetToken(t *testing.T, env *testEnv, userID string, age time.Duration) {
	t.Helper()
	env.resets.mu.Lock()
	defer env.resets.mu.Unlock()
	token, ok := env.resets.tokens[userID]
	if !ok {
		t.Fatalf("no reset token for %s", userID)
	}
	token.CreatedAt = token.CreatedAt.Add(-age)
}
