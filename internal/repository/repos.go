package repository

import (
	"projectflow/internal/store"
	"projectflow/pkg/db"
)

// NewRepos 把所有仓储绑定到同一个查询句柄（连接池或事务）
func NewRepos(q db.DBTX) store.Repos {
	return store.Repos{
		Projects:   NewProjectRepository(q),
		Tasks:      NewTaskRepository(q),
		Members:    NewMemberRepository(q),
		Users:      NewUserRepository(q),
		Milestones: NewMilestoneRepository(q),
		History:    NewHistoryRepository(q),
		Todos:      NewTodoRepository(q),
	}
}
