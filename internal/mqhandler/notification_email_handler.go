package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/mailer"
	"projectflow/internal/model"
	"projectflow/internal/service/notify"
	"projectflow/pkg/logger"
	"projectflow/pkg/metrics"
	"projectflow/pkg/trace"
	"projectflow/pkg/util"
)

const handlerName = "notification_email"

// Deduper 由 *util.Deduper 实现
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, messageID string) bool
	Release(ctx context.Context, handler, messageID string)
}

// RetryCounter 由 *util.RetryCounter 实现
type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// DeadLetterPublisher 由 *mq.Publisher 实现
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError, failedAt string) error
}

type NotificationEmailHandler struct {
	mailer       mailer.Mailer
	deduper      Deduper
	retryCounter RetryCounter
	dlq          DeadLetterPublisher
	maxRetries   int64
	logger       *zap.Logger
}

func NewNotificationEmailHandler(
	m mailer.Mailer,
	deduper Deduper,
	retryCounter RetryCounter,
	dlq DeadLetterPublisher,
	maxRetries int,
	logger *zap.Logger,
) *NotificationEmailHandler {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &NotificationEmailHandler{
		mailer:       m,
		deduper:      deduper,
		retryCounter: retryCounter,
		dlq:          dlq,
		maxRetries:   int64(maxRetries),
		logger:       logger,
	}
}

// Handle 投递一封邮件。返回 nil 表示 ack，返回错误表示 nack 并重新入队
func (h *NotificationEmailHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var msg model.EmailMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		// JSON decode 错误 - 不可重试
		h.logger.Error("Failed to unmarshal email message (non-retryable)", zap.Error(err))
		metrics.IncrementMailDelivery("invalid")
		return nil
	}
	if msg.TraceID != "" && trace.FromContext(ctx) == "" {
		ctx = trace.WithContext(ctx, msg.TraceID)
	}
	log := logger.WithTrace(ctx, h.logger).With(
		zap.String("message_id", msg.MessageID),
		zap.String("to", msg.To),
	)

	if msg.MessageID == "" {
		log.Warn("Email message without message_id, dedup disabled")
	} else if !h.deduper.AcquireOnce(ctx, handlerName, msg.MessageID) {
		metrics.IncrementMailDelivery("duplicate")
		return nil
	}

	err := h.mailer.Send(ctx, msg)
	if err == nil {
		if msg.MessageID != "" {
			h.resetRetries(ctx, log, msg.MessageID)
		}
		metrics.IncrementMailDelivery("sent")
		return nil
	}

	if msg.MessageID != "" {
		h.deduper.Release(ctx, handlerName, msg.MessageID)
	}

	if errors.Is(err, mailer.ErrInvalidRecipient) {
		log.Error("Email rejected, sending to DLQ", zap.Error(err))
		return h.deadLetter(ctx, log, raw, msg.MessageID, err)
	}

	retryCount := int64(1)
	if msg.MessageID != "" {
		n, rerr := h.retryCounter.IncrementAndGet(ctx, util.FormatRetryKey(handlerName, msg.MessageID))
		if rerr != nil {
			// Redis 错误不影响处理
			log.Warn("Failed to get retry count, continuing anyway", zap.Error(rerr))
		} else {
			retryCount = n
		}
	}

	if retryCount >= h.maxRetries {
		log.Error("Email delivery failed, retries exhausted",
			zap.Int64("retry_count", retryCount),
			zap.Int64("max_retries", h.maxRetries),
			zap.Error(err),
		)
		return h.deadLetter(ctx, log, raw, msg.MessageID, err)
	}

	log.Warn("Email delivery failed, will retry",
		zap.Int64("retry_count", retryCount),
		zap.Int64("max_retries", h.maxRetries),
		zap.Error(err),
	)
	metrics.IncrementMailDelivery("retry")
	return err
}

func (h *NotificationEmailHandler) deadLetter(ctx context.Context, log *zap.Logger, raw []byte, messageID string, cause error) error {
	failedAt := time.Now().UTC().Format(time.RFC3339)
	if err := h.dlq.PublishToDLQ(ctx, notify.RoutingKeyEmail, raw, cause.Error(), failedAt); err != nil {
		log.Error("Failed to publish to DLQ, requeueing", zap.Error(err))
		return err
	}
	if messageID != "" {
		h.resetRetries(ctx, log, messageID)
	}
	metrics.IncrementMailDelivery("dead_lettered")
	return nil
}

func (h *NotificationEmailHandler) resetRetries(ctx context.Context, log *zap.Logger, messageID string) {
	if err := h.retryCounter.Reset(ctx, util.FormatRetryKey(handlerName, messageID)); err != nil {
		log.Warn("Failed to reset retry count", zap.Error(err))
	}
}
