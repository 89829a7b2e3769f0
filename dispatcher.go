package caseauth

import (
	"context"
	"net/http"
	"strings"

	"github.com/casecurate/caseauth/session"
)

// HeaderAPIKey is the request header carrying an opaque API key.
const HeaderAPIKey = "X-API-Key"

// StrategyStatus tags the result of one authentication strategy.
type StrategyStatus int

const (
	// StrategySkipped means the strategy's credential was not present.
	StrategySkipped StrategyStatus = iota
	// StrategyAuthenticated means the strategy produced a principal.
	StrategyAuthenticated
	// StrategyFailed means a credential was presented and rejected.
	StrategyFailed
)

// StrategyResult is the tagged outcome of one strategy.
type StrategyResult struct {
	Status    StrategyStatus
	Principal *Principal
	Err       error
}

// Strategy is one authentication mechanism evaluated by the dispatcher.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, r *http.Request) StrategyResult
}

const (
	strategyAPIKey  = "apiKey"
	strategySession = "session"
	strategyBearer  = "bearer"
)

// Dispatcher orders the authentication strategies and combines their
// tagged results by fixed precedence: the API-key stage pre-authenticates
// but never blocks the pipeline; a valid session is accepted immediately
// and overrides everything before it; the bearer fallback runs only when
// nothing has authenticated yet, and its verdict is terminal. Failures
// degrade to unauthenticated — Resolve never panics on bad credentials.
type Dispatcher struct {
	strategies []Strategy
}

// NewDispatcher builds the standard strategy chain over the engine and
// session manager.
func NewDispatcher(engine *Engine, sessions *session.Manager) *Dispatcher {
	return &Dispatcher{strategies: []Strategy{
		apiKeyStrategy{engine: engine},
		sessionStrategy{engine: engine, sessions: sessions},
		bearerStrategy{engine: engine},
	}}
}

// Resolve evaluates the strategy chain for the request and returns the
// winning principal, or [ErrUnauthorized].
func (d *Dispatcher) Resolve(ctx context.Context, r *http.Request) (*Principal, error) {
	var acc dispatchOutcome
	for _, s := range d.strategies {
		if s.Name() == strategyBearer && acc.principal != nil {
			// Bearer is a fallback; an authenticated request skips it.
			break
		}
		result := s.Authenticate(ctx, r)
		var stop bool
		acc, stop = reducePrecedence(acc, s.Name(), result)
		if stop {
			break
		}
	}
	if acc.principal == nil {
		return nil, ErrUnauthorized
	}
	return acc.principal, nil
}

// Middleware authenticates via Resolve and attaches the principal to the
// request context, answering 403 when no strategy succeeds.
func (d *Dispatcher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := d.Resolve(r.Context(), r)
		if err != nil {
			http.Error(w, ErrUnauthorized.Error(), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

type dispatchOutcome struct {
	principal *Principal
	// tentativeFail records an API-key rejection that a later stage may
	// still override.
	tentativeFail bool
}

// reducePrecedence folds one strategy result into the running outcome and
// reports whether evaluation should stop. Pure: all precedence rules live
// here.
func reducePrecedence(acc dispatchOutcome, name string, result StrategyResult) (dispatchOutcome, bool) {
	switch name {
	case strategyAPIKey:
		switch result.Status {
		case StrategyAuthenticated:
			acc.principal = result.Principal
		case StrategyFailed:
			acc.tentativeFail = true
		}
		// The key stage never blocks; always continue.
		return acc, false
	case strategySession:
		if result.Status == StrategyAuthenticated {
			// Session overrides any tentative API-key outcome.
			return dispatchOutcome{principal: result.Principal}, true
		}
		// A missing or invalid session falls through to the next stage.
		return acc, false
	case strategyBearer:
		switch result.Status {
		case StrategyAuthenticated:
			return dispatchOutcome{principal: result.Principal}, true
		case StrategyFailed:
			// Bearer rejection is terminal.
			return dispatchOutcome{}, true
		}
		return acc, false
	}
	return acc, false
}

type apiKeyStrategy struct {
	engine *Engine
}

func (apiKeyStrategy) Name() string { return strategyAPIKey }

func (s apiKeyStrategy) Authenticate(ctx context.Context, r *http.Request) StrategyResult {
	key := r.Header.Get(HeaderAPIKey)
	if key == "" {
		return StrategyResult{Status: StrategySkipped}
	}
	user, err := s.engine.userFromAPIKey(ctx, key)
	if err != nil {
		return StrategyResult{Status: StrategyFailed, Err: err}
	}
	return StrategyResult{
		Status:    StrategyAuthenticated,
		Principal: &Principal{User: user, Method: MethodAPIKey},
	}
}

type sessionStrategy struct {
	engine   *Engine
	sessions *session.Manager
}

func (sessionStrategy) Name() string { return strategySession }

func (s sessionStrategy) Authenticate(ctx context.Context, r *http.Request) StrategyResult {
	if s.sessions == nil {
		return StrategyResult{Status: StrategySkipped}
	}
	p, ok := s.sessions.FromRequest(r)
	if !ok {
		return StrategyResult{Status: StrategySkipped}
	}
	user, err := s.engine.users.FindByID(ctx, p.UserID)
	if err != nil {
		// The account behind the cookie is gone; the session is invalid,
		// not partially usable.
		s.engine.emitAudit(ctx, auditEventSessionInvalid, false, p.UserID, err, nil)
		return StrategyResult{Status: StrategyFailed, Err: ErrUnauthorized}
	}
	return StrategyResult{
		Status:    StrategyAuthenticated,
		Principal: &Principal{User: user, Method: MethodSession},
	}
}

type bearerStrategy struct {
	engine *Engine
}

func (bearerStrategy) Name() string { return strategyBearer }

func (s bearerStrategy) Authenticate(ctx context.Context, r *http.Request) StrategyResult {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return StrategyResult{Status: StrategySkipped}
	}
	user, err := s.engine.ValidateBearer(ctx, token)
	if err != nil {
		return StrategyResult{Status: StrategyFailed, Err: err}
	}
	return StrategyResult{
		Status:    StrategyAuthenticated,
		Principal: &Principal{User: user, Method: MethodBearer},
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}
