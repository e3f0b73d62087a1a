package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/service/notify/notifytest"
	"projectflow/internal/store/memstore"
	"projectflow/pkg/circuitbreaker"
	"projectflow/pkg/db"
	"projectflow/pkg/outbox"
)

func TestSender_SendsInAppAndEmail(t *testing.T) {
	mem := memstore.New()
	u := mem.AddUser(model.User{Email: "rev@example.com"})
	rec := &notifytest.Recorder{}
	s := NewSender(mem.Repos().Users, rec, zap.NewNop())

	failures := s.Send(context.Background(), []model.NotificationPayload{{
		RecipientID: u.ID,
		Title:       "Task review request",
		Body:        "plain",
		HTMLBody:    "<p>html</p>",
		EventType:   model.EventTaskReviewRequested,
		EntityID:    5,
		Email:       true,
	}})

	if failures != 0 {
		t.Fatalf("expected no failures, got %d", failures)
	}
	if len(rec.InApps) != 1 || rec.InApps[0].EntityID != 5 {
		t.Fatalf("unexpected in-app records %+v", rec.InApps)
	}
	if len(rec.Emails) != 1 || rec.Emails[0].To != "rev@example.com" || rec.Emails[0].HTMLBody != "<p>html</p>" {
		t.Fatalf("unexpected emails %+v", rec.Emails)
	}
}

func TestSender_FailuresAreCountedNotFatal(t *testing.T) {
	mem := memstore.New()
	u := mem.AddUser(model.User{Email: "a@example.com"})
	rec := &notifytest.Recorder{FailInApp: errors.New("db down"), FailEmail: errors.New("mq down")}
	s := NewSender(mem.Repos().Users, rec, zap.NewNop())

	failures := s.Send(context.Background(), []model.NotificationPayload{
		{RecipientID: u.ID, Title: "x", Email: true},
		{RecipientID: 424242, Title: "y", Email: true},
	})
	// 第一条：站内+邮件失败；第二条：站内失败，收件人不存在时跳过邮件
	if failures != 3 {
		t.Fatalf("expected 3 failures, got %d", failures)
	}
}

type fakeWriter struct {
	inserted []*model.Notification
}

func (w *fakeWriter) Insert(_ context.Context, n *model.Notification) error {
	n.ID = int64(len(w.inserted) + 1)
	w.inserted = append(w.inserted, n)
	return nil
}

type fakePublisher struct {
	err  error
	keys []string
}

func (p *fakePublisher) PublishWithContext(_ context.Context, routingKey string, _ any) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	return nil
}

type fakeOutbox struct {
	events []*outbox.Event
	err    error
}

func (o *fakeOutbox) InsertEvent(_ context.Context, _ db.DBTX, e *outbox.Event) error {
	if o.err != nil {
		return o.err
	}
	o.events = append(o.events, e)
	return nil
}

func TestChannelDispatcher_PublishesEmail(t *testing.T) {
	pub := &fakePublisher{}
	box := &fakeOutbox{}
	d := NewChannelDispatcher(&fakeWriter{}, pub, nil, box, zap.NewNop())

	if err := d.SendEmail(context.Background(), "a@example.com", "Hi", "<p>x</p>"); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if len(pub.keys) != 1 || pub.keys[0] != RoutingKeyEmail || len(box.events) != 0 {
		t.Fatalf("expected direct publish, got keys=%v outbox=%d", pub.keys, len(box.events))
	}
}

func TestChannelDispatcher_FallsBackToOutbox(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	box := &fakeOutbox{}
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute, HalfOpenMaxRequests: 1,
	})
	d := NewChannelDispatcher(&fakeWriter{}, pub, breaker, box, zap.NewNop())

	for i := 0; i < 2; i++ {
		if err := d.SendEmail(context.Background(), "a@example.com", "Hi", "<p>x</p>"); err != nil {
			t.Fatalf("SendEmail #%d: %v", i, err)
		}
	}
	if len(box.events) != 2 {
		t.Fatalf("expected both emails in outbox, got %d", len(box.events))
	}
	if breaker.GetState() != circuitbreaker.StateOpen {
		t.Fatalf("expected breaker open after failure")
	}

	var msg model.EmailMessage
	if err := json.Unmarshal(box.events[0].Payload, &msg); err != nil {
		t.Fatalf("outbox payload: %v", err)
	}
	if msg.To != "a@example.com" || msg.MessageID == "" || box.events[0].RoutingKey != RoutingKeyEmail {
		t.Fatalf("unexpected outbox event %+v / %+v", box.events[0], msg)
	}
}

func TestChannelDispatcher_OutboxFailureReturned(t *testing.T) {
	d := NewChannelDispatcher(&fakeWriter{}, &fakePublisher{err: errors.New("down")}, nil,
		&fakeOutbox{err: errors.New("db down")}, zap.NewNop())
	if err := d.SendEmail(context.Background(), "a@example.com", "Hi", "x"); err == nil {
		t.Fatalf("expected error when both publish and outbox fail")
	}
}

func TestChannelDispatcher_InApp(t *testing.T) {
	w := &fakeWriter{}
	d := NewChannelDispatcher(w, nil, nil, nil, zap.NewNop())
	if err := d.CreateInAppNotification(context.Background(), 3, "t", "b", model.EventTaskAssigned, 9); err != nil {
		t.Fatalf("CreateInAppNotification: %v", err)
	}
	if len(w.inserted) != 1 || w.inserted[0].RecipientID != 3 || w.inserted[0].EntityID != 9 {
		t.Fatalf("unexpected inserted %+v", w.inserted)
	}
}
