package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"sql"},
	)

	SlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of slow queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12s
		},
	)

	// 工作单元（事务）耗时
	UnitOfWorkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uow_operation_duration_seconds",
			Help:    "Duration of transactional operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"op", "status"},
	)

	// 工作单元重试计数
	UnitOfWorkRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uow_retry_total",
			Help: "Total number of transaction retries after transient failures",
		},
		[]string{"op"},
	)

	// 任务状态迁移计数
	TaskTransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_status_transition_total",
			Help: "Total number of task status transitions",
		},
		[]string{"from", "to"},
	)

	// 任务操作结果
	TaskOperationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_operation_total",
			Help: "Total number of task operations by outcome",
		},
		[]string{"op", "outcome"}, // outcome: ok, not_found, validation, conflict, error
	)

	// 成员移除级联取消分配的任务数
	CascadeUnassignedTasks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "org_cascade_unassigned_tasks_total",
			Help: "Total number of tasks unassigned by member removal",
		},
	)

	// 通知分发计数
	NotificationDispatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"channel", "status"}, // channel: in_app, email; status: success, failed, outbox
	)

	// 邮件投递计数
	MailDeliveryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_delivery_total",
			Help: "Total number of notification emails processed by the worker",
		},
		[]string{"status"}, // status: sent, duplicate, retry, dlq
	)

	// 逾期任务标记计数
	OverdueTaskCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "task_overdue_flagged_total",
			Help: "Total number of tasks flagged as overdue",
		},
	)

	// 熔断器状态 (0 closed, 1 open, 2 half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state",
		},
		[]string{"name"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录一次慢查询
func IncrementSlowQuery(sql string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
	SlowQueryDuration.Observe(duration.Seconds())
}

// RecordUnitOfWork 记录一次事务执行
func RecordUnitOfWork(op, status string, duration time.Duration) {
	UnitOfWorkDuration.WithLabelValues(op, status).Observe(duration.Seconds())
}

// IncrementUnitOfWorkRetry 记录一次事务重试
func IncrementUnitOfWorkRetry(op string) {
	UnitOfWorkRetries.WithLabelValues(op).Inc()
}

// IncrementTaskTransition 记录任务状态迁移
func IncrementTaskTransition(from, to string) {
	TaskTransitionCount.WithLabelValues(from, to).Inc()
}

// IncrementTaskOperation 记录任务操作结果
func IncrementTaskOperation(op, outcome string) {
	TaskOperationCount.WithLabelValues(op, outcome).Inc()
}

// AddCascadeUnassigned 累加级联取消分配的任务数
func AddCascadeUnassigned(n int) {
	CascadeUnassignedTasks.Add(float64(n))
}

// IncrementNotificationDispatch 记录通知分发结果
func IncrementNotificationDispatch(channel, status string) {
	NotificationDispatchCount.WithLabelValues(channel, status).Inc()
}

// IncrementMailDelivery 记录邮件投递结果
func IncrementMailDelivery(status string) {
	MailDeliveryCount.WithLabelValues(status).Inc()
}

// AddOverdueTasks 累加逾期标记数
func AddOverdueTasks(n int) {
	OverdueTaskCount.Add(float64(n))
}

// SetCircuitBreakerState 记录熔断器当前状态
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
