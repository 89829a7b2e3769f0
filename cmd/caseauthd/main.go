// Command caseauthd runs the authentication service: MongoDB-backed
// credential storage, Redis-backed rate limiting, SMTP delivery and the
// /auth HTTP surface.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/casecurate/caseauth"
	"github.com/casecurate/caseauth/httpapi"
	"github.com/casecurate/caseauth/identity"
	"github.com/casecurate/caseauth/internal/rate"
	"github.com/casecurate/caseauth/mail"
	"github.com/casecurate/caseauth/session"
	"github.com/casecurate/caseauth/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found")
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.Connect(ctx,
		envOr("MONGO_URI", "mongodb://localhost:27017"),
		envOr("MONGO_DB", "caseauth"))
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", "error", err)
		}
	}()
	if err := st.EnsureIndexes(ctx); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{Addr: envOr("REDIS_ADDR", "localhost:6379")})
	defer redisClient.Close()
	limiter := rate.New(redisClient, rate.DefaultConfig())

	var mailer caseauth.EmailClient
	if addr := os.Getenv("SMTP_ADDR"); addr != "" {
		mailer, err = mail.New(mail.Config{
			Addr:     addr,
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envOr("MAIL_FROM", "no-reply@casecurate.example"),
		})
		if err != nil {
			return err
		}
	} else {
		log.Warn("SMTP_ADDR unset, outbound email disabled")
	}

	var provider caseauth.IdentityProvider
	if url := os.Getenv("IDENTITY_USERINFO_URL"); url != "" {
		provider, err = identity.New(identity.Config{UserInfoURL: url})
		if err != nil {
			return err
		}
	}

	cfg := caseauth.DefaultConfig()
	cfg.Reset.LinkBase = envOr("RESET_LINK_BASE", "http://localhost:3000/reset-password")
	cfg.OAuth.StateSecret = []byte(os.Getenv("OAUTH_STATE_SECRET"))
	cfg.Mail.From = envOr("MAIL_FROM", "no-reply@casecurate.example")

	engine, err := caseauth.New(cfg, caseauth.Dependencies{
		Users:       st.Users,
		ResetTokens: st.ResetTokens,
		Attempts:    st.Attempts,
		Mailer:      mailer,
		Identity:    provider,
		AuditSink:   caseauth.NewJSONWriterSink(os.Stdout),
		Logger:      log,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	sessions, err := session.NewManager(session.Config{
		Secret: []byte(os.Getenv("SESSION_SECRET")),
		TTL:    24 * time.Hour,
		Secure: os.Getenv("COOKIE_SECURE") == "true",
		Issuer: "caseauth",
	})
	if err != nil {
		return err
	}

	var oauthCfg *oauth2.Config
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		oauthCfg = &oauth2.Config{
			ClientID:     id,
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  envOr("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/redirect"),
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}

	api := httpapi.NewServer(engine, sessions, httpapi.Options{
		Limiter: limiter,
		OAuth:   oauthCfg,
		Logger:  log,
	})

	addr := ":" + envOr("PORT", "8080")
	srv := &http.Server{
		Handler:      handlers.LoggingHandler(os.Stdout, api.Router()),
		Addr:         addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
