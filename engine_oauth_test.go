package caseauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOAuthLoginProvisionsAccount(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	user, err := env.engine.OAuthLogin(ctx, FederatedProfile{
		Subject:     "google-1",
		DisplayName: "Alice",
		Emails:      []string{"alice@curator.example", "alt@curator.example"},
		Photos:      []string{"https://img.example/a.png"},
	}, true)
	if err != nil {
		t.Fatalf("OAuthLogin failed: %v", err)
	}
	if user.Email != "alice@curator.example" {
		t.Fatalf("expected primary email, got %q", user.Email)
	}
	if len(user.Roles) != 0 {
		t.Fatalf("expected empty role set on provisioning, got %v", user.Roles)
	}
	if !user.Profile.Newsletter {
		t.Fatal("expected newsletter opt-in recorded")
	}
	if user.Profile.PictureURL != "https://img.example/a.png" {
		t.Fatalf("unexpected picture %q", user.Profile.PictureURL)
	}
	if user.PasswordHash != "" {
		t.Fatal("OAuth accounts must not get a password hash")
	}
}

func TestOAuthLoginSyncsPhotoOnly(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	first, err := env.engine.OAuthLogin(ctx, FederatedProfile{
		Subject: "google-1",
		Emails:  []string{"alice@curator.example"},
		Photos:  []string{"https://img.example/a.png"},
	}, false)
	if err != nil {
		t.Fatalf("first OAuthLogin failed: %v", err)
	}
	grantRoles(t, env, first.ID, RoleCurator)

	second, err := env.engine.OAuthLogin(ctx, FederatedProfile{
		Subject: "google-1",
		Emails:  []string{"changed@curator.example"},
		Photos:  []string{"https://img.example/b.png"},
	}, false)
	if err != nil {
		t.Fatalf("second OAuthLogin failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same account, got %s vs %s", first.ID, second.ID)
	}
	if second.Profile.PictureURL != "https://img.example/b.png" {
		t.Fatalf("expected photo updated, got %q", second.Profile.PictureURL)
	}
	// Email and roles are never reconciled from the provider.
	if second.Email != "alice@curator.example" {
		t.Fatalf("expected email untouched, got %q", second.Email)
	}
	if !second.HasAnyRole(RoleCurator) {
		t.Fatalf("expected roles untouched, got %v", second.Roles)
	}
}

func TestOAuthLoginNewsletterIsOneWay(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	seedOAuthUser(t, env, "google-1", "alice@curator.example")

	user, err := env.engine.OAuthLogin(ctx, FederatedProfile{Subject: "google-1"}, true)
	if err != nil {
		t.Fatalf("opt-in login failed: %v", err)
	}
	if !user.Profile.Newsletter {
		t.Fatal("expected opt-in applied")
	}

	user, err = env.engine.OAuthLogin(ctx, FederatedProfile{Subject: "google-1"}, false)
	if err != nil {
		t.Fatalf("third login failed: %v", err)
	}
	if !user.Profile.Newsletter {
		t.Fatal("a later login without the flag must not clear the opt-in")
	}
}

func TestOAuthLoginRequiresEmailForProvisioning(t *testing.T) {
	env := newTestEngine(t, nil)

	if _, err := env.engine.OAuthLogin(context.Background(), FederatedProfile{Subject: "google-9"}, false); !errors.Is(err, ErrTokenNotScoped) {
		t.Fatalf("expected ErrTokenNotScoped without email, got %v", err)
	}
}

func TestOAuthStateRoundTrip(t *testing.T) {
	env := newTestEngine(t, nil)

	for _, newsletter := range []bool{true, false} {
		state, err := env.engine.EncodeOAuthState(newsletter)
		if err != nil {
			t.Fatalf("EncodeOAuthState failed: %v", err)
		}
		got, err := env.engine.DecodeOAuthState(state)
		if err != nil {
			t.Fatalf("DecodeOAuthState failed: %v", err)
		}
		if got != newsletter {
			t.Fatalf("newsletter=%v round-tripped as %v", newsletter, got)
		}
	}
}

func TestOAuthStateRejectsTampering(t *testing.T) {
	env := newTestEngine(t, nil)

	state, err := env.engine.EncodeOAuthState(false)
	if err != nil {
		t.Fatalf("EncodeOAuthState failed: %v", err)
	}

	payload, sig, _ := strings.Cut(state, ".")
	flipped := []byte(payload)
	flipped[0] ^= 0x01

	cases := map[string]string{
		"tampered payload": string(flipped) + "." + sig,
		"missing sig":      payload,
		"empty":            "",
		"garbage":          "not-a-state",
	}
	for name, bad := range cases {
		if _, err := env.engine.DecodeOAuthState(bad); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestOAuthStateExpires(t *testing.T) {
	env := newTestEngine(t, func(cfg *Config, _ *Dependencies) {
		cfg.OAuth.StateTTL = time.Nanosecond
	})

	state, err := env.engine.EncodeOAuthState(true)
	if err != nil {
		t.Fatalf("EncodeOAuthState failed: %v", err)
	}
	time.Sleep(time.Second + time.Millisecond)
	if _, err := env.engine.DecodeOAuthState(state); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected expired state rejected, got %v", err)
	}
}
