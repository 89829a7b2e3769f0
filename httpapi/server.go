package httpapi

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	"github.com/casecurate/caseauth"
	"github.com/casecurate/caseauth/session"
)

// Server mounts the auth routes. Build one with NewServer and attach
// Router() to an http.Server.
type Server struct {
	engine     *caseauth.Engine
	sessions   *session.Manager
	dispatcher *caseauth.Dispatcher
	limiter    caseauth.RateLimiter
	captcha    caseauth.CaptchaVerifier
	oauth      *oauth2.Config
	log        *slog.Logger
}

// Options carries the optional collaborators. A nil Limiter or Captcha
// disables that guard; a nil OAuth disables the /auth/google pair.
type Options struct {
	Limiter caseauth.RateLimiter
	Captcha caseauth.CaptchaVerifier
	OAuth   *oauth2.Config
	Logger  *slog.Logger
}

// NewServer wires the engine, session manager and dispatcher into a
// route handler.
func NewServer(engine *caseauth.Engine, sessions *session.Manager, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:     engine,
		sessions:   sessions,
		dispatcher: caseauth.NewDispatcher(engine, sessions),
		limiter:    opts.Limiter,
		captcha:    opts.Captcha,
		oauth:      opts.OAuth,
		log:        logger,
	}
}

// Router builds the /auth route tree.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.clientIPMiddleware)

	auth := r.PathPrefix("/auth").Subrouter()

	auth.Handle("/signup", s.guarded(http.HandlerFunc(s.handleSignup))).Methods(http.MethodPost)
	auth.Handle("/signin", s.guarded(http.HandlerFunc(s.handleSignin))).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet)

	if s.oauth != nil {
		auth.HandleFunc("/google", s.handleGoogleStart).Methods(http.MethodGet)
		auth.HandleFunc("/google/redirect", s.handleGoogleRedirect).Methods(http.MethodGet)
	}

	auth.Handle("/profile", s.dispatcher.Middleware(http.HandlerFunc(s.handleProfile))).Methods(http.MethodGet)

	// API key management requires a live session; a key must not be able
	// to mint or read keys.
	auth.Handle("/profile/apiKey", s.sessionOnly(http.HandlerFunc(s.handleAPIKeyGet))).Methods(http.MethodGet)
	auth.Handle("/profile/apiKey", s.sessionOnly(http.HandlerFunc(s.handleAPIKeyGenerate))).Methods(http.MethodPost)

	auth.Handle("/deleteApiKey/{id}",
		s.dispatcher.RequireRoles(s.engine, caseauth.RoleAdmin)(http.HandlerFunc(s.handleAPIKeyDelete))).
		Methods(http.MethodPost)

	auth.Handle("/change-password", s.rateLimited(s.sessionOnly(http.HandlerFunc(s.handleChangePassword)))).Methods(http.MethodPost)
	auth.Handle("/request-password-reset", s.rateLimited(http.HandlerFunc(s.handleRequestReset))).Methods(http.MethodPost)
	auth.Handle("/reset-password", s.rateLimited(http.HandlerFunc(s.handleConfirmReset))).Methods(http.MethodPost)

	return r
}

// clientIPMiddleware threads the remote address through the context for
// rate limiting and audit records.
func (s *Server) clientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		next.ServeHTTP(w, r.WithContext(caseauth.WithClientIP(r.Context(), ip)))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop only; the rest is whatever upstream proxies appended.
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// guarded applies the rate limit and captcha checks used on the
// credential-accepting routes.
func (s *Server) guarded(next http.Handler) http.Handler {
	return s.rateLimited(s.captchaChecked(next))
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			if err := s.limiter.Consume(r.Context(), clientIP(r)); err != nil {
				s.writeError(w, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) captchaChecked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.captcha != nil {
			token := r.Header.Get("X-Captcha-Token")
			if err := s.captcha.Verify(r.Context(), token, clientIP(r)); err != nil {
				s.writeError(w, caseauth.ErrCaptchaFailed)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// sessionOnly admits only cookie-session principals, bypassing the
// dispatcher's API-key and bearer stages.
func (s *Server) sessionOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.sessions.FromRequest(r)
		if !ok {
			s.writeError(w, caseauth.ErrUnauthorized)
			return
		}
		user, err := s.engine.UserByID(r.Context(), p.UserID)
		if err != nil {
			s.writeError(w, caseauth.ErrUnauthorized)
			return
		}
		principal := &caseauth.Principal{User: user, Method: caseauth.MethodSession}
		next.ServeHTTP(w, r.WithContext(caseauth.WithPrincipal(r.Context(), principal)))
	})
}
