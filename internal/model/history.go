package model

import "time"

type HistoryKind string

const (
	HistoryCreation         HistoryKind = "creation"
	HistoryAssignmentChange HistoryKind = "assignment-change"
	HistoryStatusChange     HistoryKind = "status-change"
)

// HistoryEntry 任务历史记录，只追加
type HistoryEntry struct {
	ID        int64
	TaskID    int64
	ActorID   int64
	Kind      HistoryKind
	OldValue  *string
	NewValue  *string
	CreatedAt time.Time
}
