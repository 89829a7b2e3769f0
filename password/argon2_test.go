package password

import (
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Memory = 8 * 1024
	cfg.Time = 1
	cfg.Parallelism = 1
	h, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("expected PHC argon2id format, got %q", encoded)
	}
	if !h.Verify("correct horse battery", encoded) {
		t.Fatal("expected correct password to verify")
	}
	if h.Verify("wrong password", encoded) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestHashProducesUniqueSalts(t *testing.T) {
	h := testHasher(t)

	first, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	h := testHasher(t)
	if _, err := h.Hash("short"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestVerifyNeverErrors(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	cases := map[string][2]string{
		"empty plaintext":   {"", encoded},
		"empty hash":        {"correct horse battery", ""},
		"both empty":        {"", ""},
		"garbage hash":      {"correct horse battery", "not-a-hash"},
		"wrong algorithm":   {"correct horse battery", "$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		"truncated":         {"correct horse battery", encoded[:len(encoded)/2]},
		"missing parameter": {"correct horse battery", "$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA"},
	}
	for name, pair := range cases {
		if h.Verify(pair[0], pair[1]) {
			t.Fatalf("%s: expected false", name)
		}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	bad := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Fatalf("config %d: expected validation error", i)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := testHasher(t)
	encoded, err := weak.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	strong, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	upgrade, err := strong.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if !upgrade {
		t.Fatal("expected weak hash to need an upgrade")
	}

	current, err := strong.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	upgrade, err = strong.NeedsUpgrade(current)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if upgrade {
		t.Fatal("expected current hash to not need an upgrade")
	}
}
