// Package mail delivers outbound HTML email over SMTP. It implements
// caseauth.EmailClient.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// Config holds SMTP connection settings. Addr is host:port.
type Config struct {
	Addr     string
	Username string
	Password string
	From     string
	// Timeout bounds one delivery; defaults to 10s.
	Timeout time.Duration
}

// Client sends mail through one SMTP relay. Safe for concurrent use.
type Client struct {
	config Config
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("smtp addr is required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{config: cfg}, nil
}

// Send delivers one HTML message to the recipients. The context bounds
// the whole delivery; cancellation while the SMTP dialogue is in flight
// returns the context's error.
func (c *Client) Send(ctx context.Context, recipients []string, subject, htmlBody string) error {
	if len(recipients) == 0 {
		return errors.New("no recipients")
	}

	msg := buildMessage(c.config.From, recipients, subject, htmlBody)

	host := c.config.Addr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	var auth smtp.Auth
	if c.config.Username != "" {
		auth = smtp.PlainAuth("", c.config.Username, c.config.Password, host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(c.config.Addr, auth, c.config.From, recipients, msg)
	}()

	timer := time.NewTimer(c.config.Timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-timer.C:
		return errors.New("smtp send: timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from string, recipients []string, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
