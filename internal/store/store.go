// Package store 定义工作流核心依赖的存储契约。
//
// Get 类方法在记录不存在或已软删除时返回 (nil, nil)。
// 在事务中拿到的 Repos 只在该事务内有效。
package store

import (
	"context"
	"time"

	"projectflow/internal/model"
)

type ProjectStore interface {
	Get(ctx context.Context, projectID int64) (*model.Project, error)
	ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error)
}

type TaskStore interface {
	Get(ctx context.Context, taskID int64) (*model.Task, error)
	// GetForUpdate 在当前事务中锁定任务行
	GetForUpdate(ctx context.Context, taskID int64) (*model.Task, error)
	ListByProject(ctx context.Context, projectID int64) ([]*model.Task, error)
	Add(ctx context.Context, task *model.Task) error
	Update(ctx context.Context, task *model.Task) error
	// UnassignOpen 仅当任务仍分配给 assigneeID 且未终结时清空 assignee，
	// 条件在行锁下判断；不满足时返回 (nil, nil) 且不做任何修改
	UnassignOpen(ctx context.Context, taskID, assigneeID int64) (*model.Task, error)
	// ListOverdueCandidates 返回 end_date 早于 asOf、未终结且尚未标记逾期的任务
	ListOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]*model.Task, error)
}

type MemberStore interface {
	ListByProject(ctx context.Context, projectID int64) ([]*model.ProjectMember, error)
	ListActiveByMemberAndProjects(ctx context.Context, memberID int64, projectIDs []int64) ([]*model.ProjectMember, error)
	UpdateBatch(ctx context.Context, members []*model.ProjectMember) error
}

type UserStore interface {
	Get(ctx context.Context, userID int64) (*model.User, error)
	UpdateOrganization(ctx context.Context, user *model.User) error
}

type MilestoneStore interface {
	ListIDsByProject(ctx context.Context, projectID int64) ([]int64, error)
}

// HistoryRecorder 每个逻辑事件调用一次，在字段变更之后、提交之前
type HistoryRecorder interface {
	RecordCreation(ctx context.Context, taskID, actorID int64, assigneeID *int64) error
	RecordAssignmentChange(ctx context.Context, taskID int64, oldAssigneeID, newAssigneeID *int64, actorID int64) error
	RecordStatusChange(ctx context.Context, taskID int64, oldStatus, newStatus model.TaskStatus, actorID int64) error
}

type TodoStore interface {
	Add(ctx context.Context, todo *model.Todo) error
}

// Repos 一个工作单元内可用的全部仓储
type Repos struct {
	Projects   ProjectStore
	Tasks      TaskStore
	Members    MemberStore
	Users      UserStore
	Milestones MilestoneStore
	History    HistoryRecorder
	Todos      TodoStore
}
