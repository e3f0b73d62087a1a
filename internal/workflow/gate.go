package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"projectflow/internal/apperr"
	"projectflow/internal/model"
	"projectflow/internal/store"
)

// TaskDraft 待校验的任务字段。AssigneeID/ReviewerID 只在本次要设置时填写
type TaskDraft struct {
	ProjectID    int64
	AssigneeID   *int64
	ReviewerID   *int64
	StartDate    *time.Time
	EndDate      *time.Time
	Title        string
	MilestoneIDs []int64
	ActorID      int64
}

// Gate 在打开工作单元之前执行全部只读校验
type Gate struct {
	projects   store.ProjectStore
	users      store.UserStore
	members    store.MemberStore
	milestones store.MilestoneStore
}

func NewGate(repos store.Repos) *Gate {
	return &Gate{
		projects:   repos.Projects,
		users:      repos.Users,
		members:    repos.Members,
		milestones: repos.Milestones,
	}
}

// Check 按顺序校验项目、负责人、审核人、日期、标题、里程碑。
// 业务失败返回 *apperr.Error，存储故障返回包装后的原始错误
func (g *Gate) Check(ctx context.Context, op string, d TaskDraft) (*model.Project, error) {
	project, err := g.projects.Get(ctx, d.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project %d: %w", d.ProjectID, err)
	}
	if project == nil {
		return nil, apperr.NotFound(op, "Project not found")
	}
	if !project.IsActive() {
		return nil, apperr.Validation(op, "Project is not active")
	}

	if d.AssigneeID != nil {
		if err := g.checkAssignee(ctx, op, project.ID, *d.AssigneeID); err != nil {
			return nil, err
		}
	}

	if d.ReviewerID != nil {
		reviewer, err := g.users.Get(ctx, *d.ReviewerID)
		if err != nil {
			return nil, fmt.Errorf("load reviewer %d: %w", *d.ReviewerID, err)
		}
		if reviewer == nil {
			return nil, apperr.NotFound(op, "User not found")
		}
	}

	if err := CheckDates(op, project, d.StartDate, d.EndDate); err != nil {
		return nil, err
	}

	if err := ValidateTitle(op, d.Title); err != nil {
		return nil, err
	}

	if len(d.MilestoneIDs) > 0 {
		owned, err := g.milestones.ListIDsByProject(ctx, project.ID)
		if err != nil {
			return nil, fmt.Errorf("load milestones of project %d: %w", project.ID, err)
		}
		set := make(map[int64]bool, len(owned))
		for _, id := range owned {
			set[id] = true
		}
		for _, id := range d.MilestoneIDs {
			if !set[id] {
				return nil, apperr.Validation(op, "Milestone does not belong to this project")
			}
		}
	}

	return project, nil
}

func (g *Gate) checkAssignee(ctx context.Context, op string, projectID, assigneeID int64) error {
	user, err := g.users.Get(ctx, assigneeID)
	if err != nil {
		return fmt.Errorf("load assignee %d: %w", assigneeID, err)
	}
	if user == nil {
		return apperr.NotFound(op, "User not found")
	}

	members, err := g.members.ListByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load members of project %d: %w", projectID, err)
	}

	// 同一用户可能多次加入：有任意一条有效记录即可
	var found, active bool
	for _, m := range members {
		if m.MemberID != assigneeID {
			continue
		}
		found = true
		if m.IsActive() {
			active = true
			break
		}
	}
	switch {
	case !found:
		return apperr.Validation(op, "User is not a member of this project")
	case !active:
		return apperr.Validation(op, "Cannot assign task to a user who has left the project")
	}
	return nil
}

// CheckDates 按自然日（UTC）比较，缺失的日期跳过对应检查
func CheckDates(op string, project *model.Project, start, end *time.Time) error {
	if start != nil && end != nil && day(*start).After(day(*end)) {
		return apperr.Validation(op, "Start date cannot be after end date")
	}
	if start != nil && !withinWindow(project, *start) {
		return apperr.Validation(op, "Task start date must be within the project timeline")
	}
	if end != nil && !withinWindow(project, *end) {
		return apperr.Validation(op, "Task end date must be within the project timeline")
	}
	return nil
}

func withinWindow(p *model.Project, t time.Time) bool {
	d := day(t)
	if p.StartDate != nil && d.Before(day(*p.StartDate)) {
		return false
	}
	if p.EndDate != nil && d.After(day(*p.EndDate)) {
		return false
	}
	return true
}

func day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidateTitle 任务和快捷待办共用的标题校验
func ValidateTitle(op, title string) error {
	if strings.TrimSpace(title) == "" {
		return apperr.Validation(op, "Todo Name cannot be empty!")
	}
	return nil
}
