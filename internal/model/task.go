package model

import (
	"fmt"
	"time"
)

type TaskStatus string

const (
	TaskStatusTodo          TaskStatus = "Todo"
	TaskStatusInProgress    TaskStatus = "InProgress"
	TaskStatusReadyToReview TaskStatus = "ReadyToReview"
	TaskStatusDone          TaskStatus = "Done"
	TaskStatusReOpened      TaskStatus = "ReOpened"
	TaskStatusCancelled     TaskStatus = "Cancelled"
)

var allStatuses = []TaskStatus{
	TaskStatusTodo,
	TaskStatusInProgress,
	TaskStatusReadyToReview,
	TaskStatusDone,
	TaskStatusReOpened,
	TaskStatusCancelled,
}

// ParseTaskStatus 解析状态字符串（区分大小写）
func ParseTaskStatus(s string) (TaskStatus, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

type Task struct {
	ID           int64
	ProjectID    int64
	AssigneeID   *int64
	ReviewerID   *int64
	Title        string
	Description  string
	Status       TaskStatus
	StartDate    *time.Time
	EndDate      *time.Time
	IsOverdue    bool
	MilestoneIDs []int64
	IsDeleted    bool
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone 深拷贝，避免调用方修改共享的指针字段
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.AssigneeID = cloneInt64(t.AssigneeID)
	c.ReviewerID = cloneInt64(t.ReviewerID)
	c.StartDate = cloneTime(t.StartDate)
	c.EndDate = cloneTime(t.EndDate)
	if t.MilestoneIDs != nil {
		c.MilestoneIDs = append([]int64(nil), t.MilestoneIDs...)
	}
	return &c
}

// IsAssignedTo 任务当前是否分配给 userID
func (t *Task) IsAssignedTo(userID int64) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// TaskView 对外返回的任务视图
type TaskView struct {
	ID           int64      `json:"id"`
	ProjectID    int64      `json:"project_id"`
	AssigneeID   *int64     `json:"assignee_id,omitempty"`
	ReviewerID   *int64     `json:"reviewer_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       TaskStatus `json:"status"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	IsOverdue    bool       `json:"is_overdue"`
	MilestoneIDs []int64    `json:"milestone_ids"`
	// NextStatuses 当前状态可以迁移到的状态，终态为空
	NextStatuses []TaskStatus `json:"next_statuses"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func NewTaskView(t *Task, next []TaskStatus) *TaskView {
	milestones := t.MilestoneIDs
	if milestones == nil {
		milestones = []int64{}
	}
	if next == nil {
		next = []TaskStatus{}
	}
	return &TaskView{
		ID:           t.ID,
		ProjectID:    t.ProjectID,
		AssigneeID:   t.AssigneeID,
		ReviewerID:   t.ReviewerID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		StartDate:    t.StartDate,
		EndDate:      t.EndDate,
		IsOverdue:    t.IsOverdue,
		MilestoneIDs: milestones,
		NextStatuses: next,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Int64Ptr 返回 v 的指针
func Int64Ptr(v int64) *int64 {
	return &v
}

// SameInt64 比较两个可空 ID
func SameInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
