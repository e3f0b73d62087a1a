package mailer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/pkg/config"
)

func TestNew_PicksImplementation(t *testing.T) {
	if _, ok := New(config.MailConfig{}, zap.NewNop()).(*LogMailer); !ok {
		t.Fatalf("expected LogMailer without SMTP host")
	}
	if _, ok := New(config.MailConfig{SMTPHost: "smtp.example.com", SMTPPort: 25}, zap.NewNop()).(*SMTPMailer); !ok {
		t.Fatalf("expected SMTPMailer with SMTP host")
	}
}

func TestLogMailer_RejectsBadAddress(t *testing.T) {
	m := NewLogMailer(zap.NewNop())
	err := m.Send(context.Background(), model.EmailMessage{To: "not an address"})
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
	if err := m.Send(context.Background(), model.EmailMessage{To: "a@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newTestMailer(send func(context.Context, *gomail.Msg) error) *SMTPMailer {
	m := NewSMTPMailer(config.MailConfig{From: "bot@example.com", SMTPHost: "smtp.example.com", SMTPPort: 2525}, zap.NewNop())
	m.send = send
	return m
}

func TestSMTPMailer_Send(t *testing.T) {
	var raw bytes.Buffer
	var recipients []string
	m := newTestMailer(func(_ context.Context, msg *gomail.Msg) error {
		rcpts, err := msg.GetRecipients()
		if err != nil {
			return err
		}
		recipients = rcpts
		_, err = msg.WriteTo(&raw)
		return err
	})

	err := m.Send(context.Background(), model.EmailMessage{
		MessageID: "abc",
		To:        "Ann <ann@example.com>",
		Subject:   "Hello\r\nBcc: evil@example.com",
		HTMLBody:  "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(recipients) != 1 || recipients[0] != "ann@example.com" {
		t.Fatalf("unexpected recipients %v", recipients)
	}

	out := raw.String()
	for _, line := range strings.Split(out, "\r\n") {
		if strings.HasPrefix(line, "Bcc:") {
			t.Fatalf("header injection not neutralized:\n%s", out)
		}
	}
	for _, header := range []string{"Date: ", "Message-ID: <abc@projectflow>", "Content-Type: text/html"} {
		if !strings.Contains(out, header) {
			t.Fatalf("expected %q in message:\n%s", header, out)
		}
	}
	if !strings.Contains(out, "<p>hi</p>") {
		t.Fatalf("body missing:\n%s", out)
	}
}

func TestSMTPMailer_WrapsTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	m := newTestMailer(func(context.Context, *gomail.Msg) error { return boom })

	if err := m.Send(context.Background(), model.EmailMessage{To: "a@example.com"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestSMTPMailer_RejectsBadRecipientWithoutSending(t *testing.T) {
	called := false
	m := newTestMailer(func(context.Context, *gomail.Msg) error { called = true; return nil })

	err := m.Send(context.Background(), model.EmailMessage{To: "nobody"})
	if !errors.Is(err, ErrInvalidRecipient) || called {
		t.Fatalf("expected ErrInvalidRecipient before any send, got err=%v called=%v", err, called)
	}
}
