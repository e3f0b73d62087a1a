package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"projectflow/internal/mailer"
	"projectflow/internal/model"
)

type fakeMailer struct {
	err  error
	sent []model.EmailMessage
}

func (m *fakeMailer) Send(_ context.Context, msg model.EmailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeDeduper struct {
	seen     map[string]bool
	released []string
}

func (d *fakeDeduper) AcquireOnce(_ context.Context, handler, id string) bool {
	key := handler + ":" + id
	if d.seen[key] {
		return false
	}
	d.seen[key] = true
	return true
}

func (d *fakeDeduper) Release(_ context.Context, handler, id string) {
	delete(d.seen, handler+":"+id)
	d.released = append(d.released, id)
}

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (c *fakeCounter) IncrementAndGet(_ context.Context, key string) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.counts[key]++
	return c.counts[key], nil
}

func (c *fakeCounter) Reset(_ context.Context, key string) error {
	delete(c.counts, key)
	return nil
}

type fakeDLQ struct {
	err      error
	messages []string
}

func (q *fakeDLQ) PublishToDLQ(_ context.Context, routingKey string, _ []byte, originalError, _ string) error {
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, routingKey+": "+originalError)
	return nil
}

type harness struct {
	mailer  *fakeMailer
	deduper *fakeDeduper
	counter *fakeCounter
	dlq     *fakeDLQ
	handler *NotificationEmailHandler
}

func newHarness(maxRetries int) *harness {
	h := &harness{
		mailer:  &fakeMailer{},
		deduper: &fakeDeduper{seen: map[string]bool{}},
		counter: &fakeCounter{counts: map[string]int64{}},
		dlq:     &fakeDLQ{},
	}
	h.handler = NewNotificationEmailHandler(h.mailer, h.deduper, h.counter, h.dlq, maxRetries, zap.NewNop())
	return h
}

func payload(t *testing.T, id string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(model.EmailMessage{MessageID: id, To: "ann@example.com", Subject: "Task review request"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestHandle_DeliversOnce(t *testing.T) {
	h := newHarness(3)
	ctx := context.Background()

	if err := h.handler.Handle(ctx, payload(t, "m-1")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := h.handler.Handle(ctx, payload(t, "m-1")); err != nil {
		t.Fatalf("duplicate Handle: %v", err)
	}
	if len(h.mailer.sent) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(h.mailer.sent))
	}
}

func TestHandle_InvalidJSONIsAcked(t *testing.T) {
	h := newHarness(3)
	if err := h.handler.Handle(context.Background(), json.RawMessage(`{not json`)); err != nil {
		t.Fatalf("expected ack for malformed payload, got %v", err)
	}
}

func TestHandle_RetriesThenDeadLetters(t *testing.T) {
	h := newHarness(3)
	h.mailer.err = errors.New("smtp timeout")
	ctx := context.Background()
	raw := payload(t, "m-2")

	for i := 1; i < 3; i++ {
		if err := h.handler.Handle(ctx, raw); err == nil {
			t.Fatalf("attempt %d: expected error for requeue", i)
		}
	}
	if len(h.dlq.messages) != 0 {
		t.Fatalf("must not dead-letter before max retries")
	}

	if err := h.handler.Handle(ctx, raw); err != nil {
		t.Fatalf("final attempt should ack after dead-lettering, got %v", err)
	}
	if len(h.dlq.messages) != 1 || h.dlq.messages[0] != "notification.email: smtp timeout" {
		t.Fatalf("unexpected DLQ messages %v", h.dlq.messages)
	}
	if len(h.counter.counts) != 0 {
		t.Fatalf("retry counter should be reset after dead-lettering")
	}
	if len(h.deduper.released) != 3 {
		t.Fatalf("dedup key must be released after each failure, got %v", h.deduper.released)
	}
}

func TestHandle_InvalidRecipientGoesStraightToDLQ(t *testing.T) {
	h := newHarness(5)
	h.mailer.err = fmt.Errorf("%w: %q", mailer.ErrInvalidRecipient, "nope")

	if err := h.handler.Handle(context.Background(), payload(t, "m-3")); err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
	if len(h.dlq.messages) != 1 {
		t.Fatalf("expected immediate dead-letter, got %v", h.dlq.messages)
	}
}

func TestHandle_DLQFailureRequeues(t *testing.T) {
	h := newHarness(1)
	h.mailer.err = errors.New("smtp down")
	h.dlq.err = errors.New("broker down")

	if err := h.handler.Handle(context.Background(), payload(t, "m-4")); err == nil {
		t.Fatalf("expected requeue when DLQ publish fails")
	}
}

func TestHandle_RedisCounterFailureStillRetries(t *testing.T) {
	h := newHarness(3)
	h.mailer.err = errors.New("smtp down")
	h.counter.err = errors.New("redis down")

	if err := h.handler.Handle(context.Background(), payload(t, "m-5")); err == nil {
		t.Fatalf("expected requeue")
	}
	if len(h.dlq.messages) != 0 {
		t.Fatalf("unknown retry count must not dead-letter")
	}
}
