package caseauth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	user := mustSignup(t, env, "alice@curator.example", "correct horse battery")

	key, err := env.engine.GenerateAPIKey(ctx, user.ID)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}
	if !strings.HasPrefix(key, user.ID) {
		t.Fatalf("expected key prefixed with owner id, got %q", key)
	}
	if len(key) <= len(user.ID) {
		t.Fatal("expected random suffix after the id prefix")
	}

	stored, err := env.engine.APIKeyFor(ctx, user.ID)
	if err != nil {
		t.Fatalf("APIKeyFor failed: %v", err)
	}
	if stored != key {
		t.Fatalf("expected stored key %q, got %q", key, stored)
	}
}

func TestGenerateAPIKeyRotates(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	user := mustSignup(t, env, "alice@curator.example", "correct horse battery")

	first, err := env.engine.GenerateAPIKey(ctx, user.ID)
	if err != nil {
		t.Fatalf("first GenerateAPIKey failed: %v", err)
	}
	second, err := env.engine.GenerateAPIKey(ctx, user.ID)
	if err != nil {
		t.Fatalf("second GenerateAPIKey failed: %v", err)
	}
	if first == second {
		t.Fatal("expected rotation to mint a different key")
	}

	if _, err := env.engine.userFromAPIKey(ctx, first); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected rotated-out key rejected, got %v", err)
	}
	owner, err := env.engine.userFromAPIKey(ctx, second)
	if err != nil {
		t.Fatalf("userFromAPIKey failed: %v", err)
	}
	if owner.ID != user.ID {
		t.Fatalf("expected owner %s, got %s", user.ID, owner.ID)
	}
}

func TestDeleteAPIKey(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	user := mustSignup(t, env, "alice@curator.example", "correct horse battery")

	if err := env.engine.DeleteAPIKey(ctx, user.ID); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("expected ErrAPIKeyNotFound before generation, got %v", err)
	}

	key, err := env.engine.GenerateAPIKey(ctx, user.ID)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}
	if err := env.engine.DeleteAPIKey(ctx, user.ID); err != nil {
		t.Fatalf("DeleteAPIKey failed: %v", err)
	}

	if _, err := env.engine.APIKeyFor(ctx, user.ID); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("expected ErrAPIKeyNotFound after delete, got %v", err)
	}
	if _, err := env.engine.userFromAPIKey(ctx, key); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected deleted key rejected, got %v", err)
	}
}

func TestAPIKeyUnknownUser(t *testing.T) {
	env := newTestEngine(t, nil)

	if _, err := env.engine.GenerateAPIKey(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
