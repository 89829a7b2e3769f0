package mail

import (
	"strings"
	"testing"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{From: "a@b.c"}); err == nil {
		t.Fatal("expected error without addr")
	}
	if _, err := New(Config{Addr: "smtp.example:587"}); err == nil {
		t.Fatal("expected error without from address")
	}
	if _, err := New(Config{Addr: "smtp.example:587", From: "a@b.c"}); err != nil {
		t.Fatalf("New failed: %v", err)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("no-reply@curator.example",
		[]string{"alice@curator.example", "bob@curator.example"},
		"Password reset", "<p>hello</p>"))

	for _, want := range []string{
		"From: no-reply@curator.example\r\n",
		"To: alice@curator.example, bob@curator.example\r\n",
		"Subject: Password reset\r\n",
		"Content-Type: text/html",
		"\r\n\r\n<p>hello</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}
