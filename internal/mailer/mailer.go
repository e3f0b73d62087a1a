// Package mailer 负责把邮件消息真正发送出去。
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/pkg/config"
)

// ErrInvalidRecipient 收件人地址无法解析，重试没有意义
var ErrInvalidRecipient = errors.New("invalid recipient address")

type Mailer interface {
	Send(ctx context.Context, msg model.EmailMessage) error
}

// New 配置了 SMTP 主机时返回 SMTPMailer，否则返回只记日志的 LogMailer
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP host not configured, emails will only be logged")
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg, logger)
}

// LogMailer 本地开发用
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg model.EmailMessage) error {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.To)
	}
	m.logger.Info("Email delivered (log only)",
		zap.String("message_id", msg.MessageID),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// SMTPMailer 通过 go-mail 客户端投递，负责 MIME 编码、Date 与头部转义
type SMTPMailer struct {
	from   string
	logger *zap.Logger
	send   func(ctx context.Context, msg *gomail.Msg) error
}

func NewSMTPMailer(cfg config.MailConfig, logger *zap.Logger) *SMTPMailer {
	opts := []gomail.Option{
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if cfg.SMTPPort > 0 {
		opts = append(opts, gomail.WithPort(cfg.SMTPPort))
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}
	return &SMTPMailer{
		from:   cfg.From,
		logger: logger,
		send: func(ctx context.Context, msg *gomail.Msg) error {
			client, err := gomail.NewClient(cfg.SMTPHost, opts...)
			if err != nil {
				return fmt.Errorf("create smtp client: %w", err)
			}
			return client.DialAndSendWithContext(ctx, msg)
		},
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg model.EmailMessage) error {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.To)
	}

	out, err := m.buildMessage(to, msg)
	if err != nil {
		return err
	}
	if err := m.send(ctx, out); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	m.logger.Info("Email delivered",
		zap.String("message_id", msg.MessageID),
		zap.String("to", to.Address),
	)
	return nil
}

func (m *SMTPMailer) buildMessage(to *mail.Address, msg model.EmailMessage) (*gomail.Msg, error) {
	out := gomail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.from, err)
	}
	if err := out.AddToFormat(to.Name, to.Address); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.To)
	}
	out.Subject(msg.Subject)
	out.SetDate()
	if msg.MessageID != "" {
		out.SetMessageIDWithValue(msg.MessageID + "@projectflow")
	} else {
		out.SetMessageID()
	}
	out.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	return out, nil
}
