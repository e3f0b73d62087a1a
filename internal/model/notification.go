package model

import "time"

// 通知事件类型
const (
	EventTaskReviewRequested = "task.review_requested"
	EventTaskReopened        = "task.reopened"
	EventTaskAssigned        = "task.assigned"
	EventTaskUnassigned      = "task.unassigned"
	EventTaskOverdue         = "task.overdue"
)

// Notification 站内通知
type Notification struct {
	ID          int64
	RecipientID int64
	Title       string
	Body        string
	EventType   string
	EntityID    int64
	IsRead      bool
	CreatedAt   time.Time
}

// NotificationPayload 由 planner 生成，发送前不做任何 I/O
type NotificationPayload struct {
	RecipientID int64
	Title       string
	Body        string
	HTMLBody    string
	EventType   string
	EntityID    int64
	// 是否同时发送邮件
	Email bool
}

// EmailMessage 通过 MQ 投递给 worker 的邮件
type EmailMessage struct {
	MessageID string `json:"message_id"`
	TraceID   string `json:"trace_id,omitempty"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	HTMLBody  string `json:"html_body"`
	EventType string `json:"event_type,omitempty"`
	EntityID  int64  `json:"entity_id,omitempty"`
}
