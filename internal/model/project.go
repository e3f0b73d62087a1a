package model

import "time"

// ProjectStatusArchived 归档项目不再接受任务变更
const ProjectStatusArchived = "archived"

type Project struct {
	ID        int64
	Name      string
	OwnerID   int64
	CreatorID int64
	StartDate *time.Time
	EndDate   *time.Time
	Status    string
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive 未删除且未归档
func (p *Project) IsActive() bool {
	return p != nil && !p.IsDeleted && p.Status != ProjectStatusArchived
}

// ProjectMember 项目成员关系，LeftAt 为空表示仍在项目中
type ProjectMember struct {
	ID        int64
	ProjectID int64
	MemberID  int64
	JoinedAt  time.Time
	LeftAt    *time.Time
}

func (m *ProjectMember) IsActive() bool {
	return m.LeftAt == nil
}

type Milestone struct {
	ID         int64
	ProjectID  int64
	Title      string
	PhaseOrder int
	TargetDate *time.Time
	Status     string
}
