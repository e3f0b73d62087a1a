package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/pkg/circuitbreaker"
	"projectflow/pkg/db"
	"projectflow/pkg/metrics"
	"projectflow/pkg/outbox"
	"projectflow/pkg/trace"
)

// RoutingKeyEmail 通知邮件的 routing key
const RoutingKeyEmail = "notification.email"

// NotificationWriter 写入站内通知
type NotificationWriter interface {
	Insert(ctx context.Context, n *model.Notification) error
}

// EmailOutbox 发布失败时的兜底存储，由 *outbox.Repository 实现
type EmailOutbox interface {
	InsertEvent(ctx context.Context, q db.DBTX, event *outbox.Event) error
}

// ChannelDispatcher 站内通知写库；邮件经熔断器发布到 MQ，失败时写入 outbox
type ChannelDispatcher struct {
	notifications NotificationWriter
	publisher     outbox.Publisher
	breaker       *circuitbreaker.CircuitBreaker
	outbox        EmailOutbox
	logger        *zap.Logger
}

var _ Dispatcher = (*ChannelDispatcher)(nil)

func NewChannelDispatcher(
	notifications NotificationWriter,
	publisher outbox.Publisher,
	breaker *circuitbreaker.CircuitBreaker,
	emailOutbox EmailOutbox,
	logger *zap.Logger,
) *ChannelDispatcher {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	}
	return &ChannelDispatcher{
		notifications: notifications,
		publisher:     publisher,
		breaker:       breaker,
		outbox:        emailOutbox,
		logger:        logger,
	}
}

func (d *ChannelDispatcher) CreateInAppNotification(ctx context.Context, recipientID int64, title, body, eventType string, entityID int64) error {
	n := &model.Notification{
		RecipientID: recipientID,
		Title:       title,
		Body:        body,
		EventType:   eventType,
		EntityID:    entityID,
	}
	if err := d.notifications.Insert(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (d *ChannelDispatcher) SendEmail(ctx context.Context, recipientEmail, subject, htmlBody string) error {
	msg := model.EmailMessage{
		MessageID: uuid.NewString(),
		TraceID:   trace.FromContext(ctx),
		To:        recipientEmail,
		Subject:   subject,
		HTMLBody:  htmlBody,
	}

	err := errors.New("email publisher not configured")
	if d.publisher != nil {
		err = d.breaker.Execute(func() error {
			return d.publisher.PublishWithContext(ctx, RoutingKeyEmail, msg)
		})
	}
	if err == nil {
		return nil
	}

	d.logger.Warn("Email publish failed, falling back to outbox",
		zap.String("message_id", msg.MessageID),
		zap.String("breaker_state", d.breaker.GetState().String()),
		zap.Error(err),
	)
	if d.outbox == nil {
		return err
	}

	payload, merr := json.Marshal(msg)
	if merr != nil {
		return fmt.Errorf("marshal email message: %w", merr)
	}
	event := &outbox.Event{
		AggregateType: "notification_email",
		RoutingKey:    RoutingKeyEmail,
		Payload:       payload,
	}
	if oerr := d.outbox.InsertEvent(ctx, nil, event); oerr != nil {
		return fmt.Errorf("publish email: %v; outbox fallback: %w", err, oerr)
	}
	metrics.IncrementNotificationDispatch("email", "outbox")
	return nil
}
