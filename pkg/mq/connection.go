package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName 业务事件（通知邮件等）统一走这个 topic 交换机
	ExchangeName = "events"

	// TraceHeader 消息头中携带的 trace_id
	TraceHeader = "x-trace-id"

	dialAttempts = 5
	dialBackoff  = 500 * time.Millisecond
)

// NewConnection 连接 RabbitMQ，启动时 broker 可能尚未就绪，按线性退避重试几次
func NewConnection(url string) (*amqp091.Connection, error) {
	cfg := amqp091.Config{
		Heartbeat:  10 * time.Second,
		Properties: amqp091.NewConnectionProperties(),
	}
	cfg.Properties.SetClientConnectionName("projectflow")

	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := amqp091.DialConfig(url, cfg)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt < dialAttempts {
			time.Sleep(dialBackoff * time.Duration(attempt))
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", dialAttempts, lastErr)
}

// DeclareExchange 声明持久化的 topic 交换机
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}
