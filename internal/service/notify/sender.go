// Package notify 在事务提交之后投递 planner 生成的通知。
package notify

import (
	"context"

	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/store"
	"projectflow/pkg/logger"
	"projectflow/pkg/metrics"
)

// Dispatcher 通知投递渠道
type Dispatcher interface {
	CreateInAppNotification(ctx context.Context, recipientID int64, title, body, eventType string, entityID int64) error
	SendEmail(ctx context.Context, recipientEmail, subject, htmlBody string) error
}

// Sender 解析收件人邮箱并调用 Dispatcher。失败只记录日志，不影响已提交的操作
type Sender struct {
	users      store.UserStore
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewSender(users store.UserStore, dispatcher Dispatcher, logger *zap.Logger) *Sender {
	return &Sender{
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Send 投递所有 payload，返回失败的投递次数
func (s *Sender) Send(ctx context.Context, payloads []model.NotificationPayload) int {
	log := logger.WithTrace(ctx, s.logger)
	failures := 0

	for _, p := range payloads {
		fields := []zap.Field{
			zap.Int64("recipient_id", p.RecipientID),
			zap.String("event_type", p.EventType),
			zap.Int64("entity_id", p.EntityID),
		}

		if err := s.dispatcher.CreateInAppNotification(ctx, p.RecipientID, p.Title, p.Body, p.EventType, p.EntityID); err != nil {
			failures++
			metrics.IncrementNotificationDispatch("in_app", "failed")
			log.Error("Failed to create in-app notification", append(fields, zap.Error(err))...)
		} else {
			metrics.IncrementNotificationDispatch("in_app", "success")
		}

		if !p.Email {
			continue
		}

		user, err := s.users.Get(ctx, p.RecipientID)
		if err != nil {
			failures++
			log.Error("Failed to resolve notification recipient", append(fields, zap.Error(err))...)
			continue
		}
		if user == nil || user.Email == "" {
			log.Warn("Notification recipient has no email, skipping", fields...)
			continue
		}

		body := p.HTMLBody
		if body == "" {
			body = p.Body
		}
		if err := s.dispatcher.SendEmail(ctx, user.Email, p.Title, body); err != nil {
			failures++
			metrics.IncrementNotificationDispatch("email", "failed")
			log.Error("Failed to send notification email", append(fields, zap.Error(err))...)
			continue
		}
		metrics.IncrementNotificationDispatch("email", "success")
	}

	if len(payloads) > 0 {
		log.Info("Notifications dispatched",
			zap.Int("count", len(payloads)),
			zap.Int("failures", failures),
		)
	}
	return failures
}
