// Package memstore 提供内存版存储和事务执行器，用于测试和本地演示。
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"projectflow/internal/model"
	"projectflow/internal/store"
)

type fault struct {
	err       error
	remaining int // <0 表示一直失败
}

// DB 内存数据集。Runner 在事务失败时用快照回滚
type DB struct {
	mu sync.Mutex

	projects   map[int64]*model.Project
	tasks      map[int64]*model.Task
	members    map[int64]*model.ProjectMember
	users      map[int64]*model.User
	milestones map[int64]*model.Milestone
	history    []model.HistoryEntry
	todos      []model.Todo
	nextID     int64

	faults map[string]*fault
	now    func() time.Time
}

func New() *DB {
	return &DB{
		projects:   map[int64]*model.Project{},
		tasks:      map[int64]*model.Task{},
		members:    map[int64]*model.ProjectMember{},
		users:      map[int64]*model.User{},
		milestones: map[int64]*model.Milestone{},
		faults:     map[string]*fault{},
		nextID:     1000,
		now:        time.Now,
	}
}

// FailOn 让名为 op 的存储操作返回 err，times<0 表示一直失败
func (db *DB) FailOn(op string, err error, times int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.faults[op] = &fault{err: err, remaining: times}
}

// SetClock 替换时间来源
func (db *DB) SetClock(now func() time.Time) {
	db.now = now
}

// check 调用方必须持有锁
func (db *DB) check(op string) error {
	f, ok := db.faults[op]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

func (db *DB) id() int64 {
	db.nextID++
	return db.nextID
}

// Repos 返回不在事务中的仓储
func (db *DB) Repos() store.Repos {
	return store.Repos{
		Projects:   projectStore{db},
		Tasks:      taskStore{db},
		Members:    memberStore{db},
		Users:      userStore{db},
		Milestones: milestoneStore{db},
		History:    historyRecorder{db},
		Todos:      todoStore{db},
	}
}

// ---- 种子数据与检查 ----

func (db *DB) AddProject(p model.Project) *model.Project {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p.ID == 0 {
		p.ID = db.id()
	}
	db.projects[p.ID] = &p
	return &p
}

func (db *DB) AddUser(u model.User) *model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u.ID == 0 {
		u.ID = db.id()
	}
	db.users[u.ID] = &u
	return &u
}

func (db *DB) AddMember(m model.ProjectMember) *model.ProjectMember {
	db.mu.Lock()
	defer db.mu.Unlock()
	if m.ID == 0 {
		m.ID = db.id()
	}
	db.members[m.ID] = &m
	return &m
}

func (db *DB) AddMilestone(m model.Milestone) *model.Milestone {
	db.mu.Lock()
	defer db.mu.Unlock()
	if m.ID == 0 {
		m.ID = db.id()
	}
	db.milestones[m.ID] = &m
	return &m
}

// PutTask 直接写入任务，不记录历史
func (db *DB) PutTask(t model.Task) *model.Task {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t.ID == 0 {
		t.ID = db.id()
	}
	db.tasks[t.ID] = t.Clone()
	return t.Clone()
}

// Task 读取任务副本（包括已删除的）
func (db *DB) Task(id int64) *model.Task {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tasks[id].Clone()
}

func (db *DB) TaskCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.tasks)
}

func (db *DB) User(id int64) *model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[id]
	if !ok {
		return nil
	}
	c := *u
	return &c
}

func (db *DB) Member(id int64) *model.ProjectMember {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.members[id]
	if !ok {
		return nil
	}
	c := *m
	return &c
}

// History 返回某个任务的历史记录
func (db *DB) History(taskID int64) []model.HistoryEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.HistoryEntry
	for _, h := range db.history {
		if h.TaskID == taskID {
			out = append(out, h)
		}
	}
	return out
}

func (db *DB) Todos() []model.Todo {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.Todo(nil), db.todos...)
}

// ---- 快照 ----

type snapshot struct {
	projects   map[int64]*model.Project
	tasks      map[int64]*model.Task
	members    map[int64]*model.ProjectMember
	users      map[int64]*model.User
	milestones map[int64]*model.Milestone
	history    []model.HistoryEntry
	todos      []model.Todo
	nextID     int64
}

func (db *DB) snapshot() snapshot {
	db.mu.Lock()
	defer db.mu.Unlock()

	s := snapshot{
		projects:   make(map[int64]*model.Project, len(db.projects)),
		tasks:      make(map[int64]*model.Task, len(db.tasks)),
		members:    make(map[int64]*model.ProjectMember, len(db.members)),
		users:      make(map[int64]*model.User, len(db.users)),
		milestones: make(map[int64]*model.Milestone, len(db.milestones)),
		history:    append([]model.HistoryEntry(nil), db.history...),
		todos:      append([]model.Todo(nil), db.todos...),
		nextID:     db.nextID,
	}
	for k, v := range db.projects {
		c := *v
		s.projects[k] = &c
	}
	for k, v := range db.tasks {
		s.tasks[k] = v.Clone()
	}
	for k, v := range db.members {
		c := *v
		s.members[k] = &c
	}
	for k, v := range db.users {
		c := *v
		s.users[k] = &c
	}
	for k, v := range db.milestones {
		c := *v
		s.milestones[k] = &c
	}
	return s
}

func (db *DB) restore(s snapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.projects = s.projects
	db.tasks = s.tasks
	db.members = s.members
	db.users = s.users
	db.milestones = s.milestones
	db.history = s.history
	db.todos = s.todos
	db.nextID = s.nextID
}

// ---- stores ----

type projectStore struct{ db *DB }

func (s projectStore) Get(_ context.Context, id int64) (*model.Project, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("projects.get"); err != nil {
		return nil, err
	}
	p, ok := s.db.projects[id]
	if !ok || p.IsDeleted {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (s projectStore) ListIDsByOwner(_ context.Context, ownerID int64) ([]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("projects.list_ids_by_owner"); err != nil {
		return nil, err
	}
	var ids []int64
	for id, p := range s.db.projects {
		if p.OwnerID == ownerID && !p.IsDeleted {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type taskStore struct{ db *DB }

func (s taskStore) get(op string, id int64) (*model.Task, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check(op); err != nil {
		return nil, err
	}
	t, ok := s.db.tasks[id]
	if !ok || t.IsDeleted {
		return nil, nil
	}
	return t.Clone(), nil
}

func (s taskStore) Get(_ context.Context, id int64) (*model.Task, error) {
	return s.get("tasks.get", id)
}

func (s taskStore) GetForUpdate(_ context.Context, id int64) (*model.Task, error) {
	return s.get("tasks.get_for_update", id)
}

func (s taskStore) ListByProject(_ context.Context, projectID int64) ([]*model.Task, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("tasks.list_by_project"); err != nil {
		return nil, err
	}
	var out []*model.Task
	for _, t := range s.db.tasks {
		if t.ProjectID == projectID && !t.IsDeleted {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s taskStore) Add(_ context.Context, t *model.Task) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("tasks.add"); err != nil {
		return err
	}
	t.ID = s.db.id()
	now := s.db.now()
	t.CreatedAt, t.UpdatedAt = now, now
	s.db.tasks[t.ID] = t.Clone()
	return nil
}

func (s taskStore) Update(_ context.Context, t *model.Task) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("tasks.update"); err != nil {
		return err
	}
	if _, ok := s.db.tasks[t.ID]; !ok {
		return fmt.Errorf("task %d does not exist", t.ID)
	}
	t.UpdatedAt = s.db.now()
	s.db.tasks[t.ID] = t.Clone()
	return nil
}

func (s taskStore) UnassignOpen(_ context.Context, taskID, assigneeID int64) (*model.Task, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("tasks.unassign_open"); err != nil {
		return nil, err
	}
	t, ok := s.db.tasks[taskID]
	if !ok || t.IsDeleted || !t.IsAssignedTo(assigneeID) {
		return nil, nil
	}
	if t.Status == model.TaskStatusDone || t.Status == model.TaskStatusCancelled {
		return nil, nil
	}
	t.AssigneeID = nil
	t.UpdatedAt = s.db.now()
	return t.Clone(), nil
}

func (s taskStore) ListOverdueCandidates(_ context.Context, asOf time.Time, limit int) ([]*model.Task, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("tasks.list_overdue_candidates"); err != nil {
		return nil, err
	}
	var out []*model.Task
	for _, t := range s.db.tasks {
		if t.IsDeleted || t.IsOverdue || t.EndDate == nil || !t.EndDate.Before(asOf) {
			continue
		}
		if t.Status == model.TaskStatusDone || t.Status == model.TaskStatusCancelled {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memberStore struct{ db *DB }

func (s memberStore) ListByProject(_ context.Context, projectID int64) ([]*model.ProjectMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("members.list_by_project"); err != nil {
		return nil, err
	}
	var out []*model.ProjectMember
	for _, m := range s.db.members {
		if m.ProjectID == projectID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memberStore) ListActiveByMemberAndProjects(_ context.Context, memberID int64, projectIDs []int64) ([]*model.ProjectMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("members.list_active_by_member_and_projects"); err != nil {
		return nil, err
	}
	wanted := make(map[int64]bool, len(projectIDs))
	for _, id := range projectIDs {
		wanted[id] = true
	}
	var out []*model.ProjectMember
	for _, m := range s.db.members {
		if m.MemberID == memberID && m.LeftAt == nil && wanted[m.ProjectID] {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memberStore) UpdateBatch(_ context.Context, members []*model.ProjectMember) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("members.update_batch"); err != nil {
		return err
	}
	for _, m := range members {
		c := *m
		s.db.members[m.ID] = &c
	}
	return nil
}

type userStore struct{ db *DB }

func (s userStore) Get(_ context.Context, id int64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("users.get"); err != nil {
		return nil, err
	}
	u, ok := s.db.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (s userStore) UpdateOrganization(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("users.update_organization"); err != nil {
		return err
	}
	existing, ok := s.db.users[u.ID]
	if !ok {
		return fmt.Errorf("user %d does not exist", u.ID)
	}
	existing.OrganizationName = u.OrganizationName
	existing.ManagingOwnerID = u.ManagingOwnerID
	return nil
}

type milestoneStore struct{ db *DB }

func (s milestoneStore) ListIDsByProject(_ context.Context, projectID int64) ([]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("milestones.list_ids_by_project"); err != nil {
		return nil, err
	}
	var ids []int64
	for id, m := range s.db.milestones {
		if m.ProjectID == projectID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type historyRecorder struct{ db *DB }

func (h historyRecorder) append(op string, e model.HistoryEntry) error {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	if err := h.db.check(op); err != nil {
		return err
	}
	e.ID = h.db.id()
	e.CreatedAt = h.db.now()
	h.db.history = append(h.db.history, e)
	return nil
}

func (h historyRecorder) RecordCreation(_ context.Context, taskID, actorID int64, assigneeID *int64) error {
	return h.append("history.record_creation", model.HistoryEntry{
		TaskID:   taskID,
		ActorID:  actorID,
		Kind:     model.HistoryCreation,
		NewValue: idString(assigneeID),
	})
}

func (h historyRecorder) RecordAssignmentChange(_ context.Context, taskID int64, oldAssigneeID, newAssigneeID *int64, actorID int64) error {
	return h.append("history.record_assignment_change", model.HistoryEntry{
		TaskID:   taskID,
		ActorID:  actorID,
		Kind:     model.HistoryAssignmentChange,
		OldValue: idString(oldAssigneeID),
		NewValue: idString(newAssigneeID),
	})
}

func (h historyRecorder) RecordStatusChange(_ context.Context, taskID int64, oldStatus, newStatus model.TaskStatus, actorID int64) error {
	oldV, newV := string(oldStatus), string(newStatus)
	return h.append("history.record_status_change", model.HistoryEntry{
		TaskID:   taskID,
		ActorID:  actorID,
		Kind:     model.HistoryStatusChange,
		OldValue: &oldV,
		NewValue: &newV,
	})
}

type todoStore struct{ db *DB }

func (s todoStore) Add(_ context.Context, t *model.Todo) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("todos.add"); err != nil {
		return err
	}
	t.ID = s.db.id()
	t.CreatedAt = s.db.now()
	s.db.todos = append(s.db.todos, *t)
	return nil
}

func idString(id *int64) *string {
	if id == nil {
		return nil
	}
	s := fmt.Sprintf("%d", *id)
	return &s
}
