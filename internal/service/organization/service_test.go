package organization

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/apperr"
	"projectflow/internal/model"
	"projectflow/internal/service/notify"
	"projectflow/internal/service/notify/notifytest"
	"projectflow/internal/store"
	"projectflow/internal/store/memstore"
	"projectflow/internal/uow"
	"projectflow/internal/workflow"
)

type fixture struct {
	db       *memstore.DB
	runner   *memstore.Runner
	recorder *notifytest.Recorder
	svc      *Service

	owner, member, reviewer *model.User
	project                 *model.Project
	membership              *model.ProjectMember
}

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memstore.New()
	f := &fixture{db: db, recorder: &notifytest.Recorder{}}

	org := "Acme"
	f.owner = db.AddUser(model.User{Email: "owner@acme.io", Name: "Olivia"})
	f.member = db.AddUser(model.User{
		Email:            "max@acme.io",
		Name:             "Max",
		OrganizationName: &org,
		ManagingOwnerID:  model.Int64Ptr(f.owner.ID),
	})
	f.reviewer = db.AddUser(model.User{Email: "rita@acme.io", Name: "Rita"})

	f.project = db.AddProject(model.Project{Name: "Atlas", OwnerID: f.owner.ID, Status: "active"})
	f.membership = db.AddMember(model.ProjectMember{ProjectID: f.project.ID, MemberID: f.member.ID})

	f.runner = memstore.NewRunner(db, uow.Policy{MaxAttempts: 1}, zap.NewNop())
	sender := notify.NewSender(db.Repos().Users, f.recorder, zap.NewNop())
	f.svc = NewService(f.runner, db.Repos(), sender, zap.NewNop())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) seedTask(status model.TaskStatus) *model.Task {
	return f.db.PutTask(model.Task{
		ProjectID:  f.project.ID,
		AssigneeID: model.Int64Ptr(f.member.ID),
		ReviewerID: model.Int64Ptr(f.reviewer.ID),
		Title:      "Migrate billing",
		Status:     status,
	})
}

func TestRemoveMember_UnassignsOpenTasks(t *testing.T) {
	f := newFixture(t)
	task := f.seedTask(model.TaskStatusInProgress)

	res, err := f.svc.RemoveMemberFromOrganization(context.Background(), f.owner.ID, f.member.ID)
	if err != nil || !res.Success {
		t.Fatalf("RemoveMemberFromOrganization: res=%+v err=%v", res, err)
	}

	m := f.db.Member(f.membership.ID)
	if m.LeftAt == nil || !m.LeftAt.Equal(fixedNow) {
		t.Fatalf("expected membership closed at %v, got %v", fixedNow, m.LeftAt)
	}
	if f.db.Task(task.ID).AssigneeID != nil {
		t.Fatalf("expected task unassigned")
	}
	history := f.db.History(task.ID)
	if len(history) != 1 || history[0].Kind != model.HistoryAssignmentChange || history[0].ActorID != f.owner.ID {
		t.Fatalf("expected one assignment-change entry by the owner, got %+v", history)
	}
	if got := f.recorder.Titles(f.reviewer.ID); len(got) != 1 || got[0] != workflow.TitleUnassignedByOrg {
		t.Fatalf("expected reviewer notification %q, got %v", workflow.TitleUnassignedByOrg, got)
	}

	u := f.db.User(f.member.ID)
	if u.OrganizationName != nil || u.ManagingOwnerID != nil {
		t.Fatalf("expected organization cleared, got %+v", u)
	}
	if !strings.Contains(res.Data, "1 project membership(s) closed across 1 project(s)") {
		t.Fatalf("unexpected summary %q", res.Data)
	}
}

func TestRemoveMember_TerminalTasksUntouched(t *testing.T) {
	for _, status := range []model.TaskStatus{model.TaskStatusDone, model.TaskStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			task := f.seedTask(status)

			res, err := f.svc.RemoveMemberFromOrganization(context.Background(), f.owner.ID, f.member.ID)
			if err != nil || !res.Success {
				t.Fatalf("RemoveMemberFromOrganization: res=%+v err=%v", res, err)
			}
			if f.db.Member(f.membership.ID).LeftAt == nil {
				t.Fatalf("membership should still be closed")
			}
			if !f.db.Task(task.ID).IsAssignedTo(f.member.ID) {
				t.Fatalf("terminal task must keep its assignee")
			}
			if len(f.db.History(task.ID)) != 0 {
				t.Fatalf("terminal task must not get history entries")
			}
			if f.recorder.Count() != 0 {
				t.Fatalf("expected no notifications, got %v", f.recorder.InApps)
			}
		})
	}
}

func TestRemoveMember_OtherOwnersProjectsUntouched(t *testing.T) {
	f := newFixture(t)
	otherOwner := f.db.AddUser(model.User{Email: "else@corp.io"})
	otherProject := f.db.AddProject(model.Project{Name: "Elsewhere", OwnerID: otherOwner.ID, Status: "active"})
	foreign := f.db.AddMember(model.ProjectMember{ProjectID: otherProject.ID, MemberID: f.member.ID})
	foreignTask := f.db.PutTask(model.Task{
		ProjectID:  otherProject.ID,
		AssigneeID: model.Int64Ptr(f.member.ID),
		Title:      "Foreign work",
		Status:     model.TaskStatusInProgress,
	})

	if _, err := f.svc.RemoveMemberFromOrganization(context.Background(), f.owner.ID, f.member.ID); err != nil {
		t.Fatalf("RemoveMemberFromOrganization: %v", err)
	}
	if f.db.Member(foreign.ID).LeftAt != nil {
		t.Fatalf("membership in another owner's project must stay active")
	}
	if !f.db.Task(foreignTask.ID).IsAssignedTo(f.member.ID) {
		t.Fatalf("task in another owner's project must keep its assignee")
	}
}

func TestRemoveMember_TaskWithoutReviewerIsQuiet(t *testing.T) {
	f := newFixture(t)
	task := f.db.PutTask(model.Task{
		ProjectID:  f.project.ID,
		AssigneeID: model.Int64Ptr(f.member.ID),
		Title:      "Solo work",
		Status:     model.TaskStatusTodo,
	})

	if _, err := f.svc.RemoveMemberFromOrganization(context.Background(), f.owner.ID, f.member.ID); err != nil {
		t.Fatalf("RemoveMemberFromOrganization: %v", err)
	}
	if f.db.Task(task.ID).AssigneeID != nil {
		t.Fatalf("expected task unassigned")
	}
	if f.recorder.Count() != 0 {
		t.Fatalf("no reviewer means no notification")
	}
}

func TestRemoveMember_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		owner   func(f *fixture) int64
		member  func(f *fixture) int64
		kind    apperr.Kind
		message string
	}{
		{
			name:    "unknown member",
			owner:   func(f *fixture) int64 { return f.owner.ID },
			member:  func(f *fixture) int64 { return 987654 },
			kind:    apperr.KindNotFound,
			message: "Member not found",
		},
		{
			name:    "different owner",
			owner:   func(f *fixture) int64 { return f.reviewer.ID },
			member:  func(f *fixture) int64 { return f.member.ID },
			kind:    apperr.KindValidation,
			message: "This member does not belong to your organization.",
		},
		{
			name:    "member without organization",
			owner:   func(f *fixture) int64 { return f.owner.ID },
			member:  func(f *fixture) int64 { return f.reviewer.ID },
			kind:    apperr.KindValidation,
			message: "This member does not belong to your organization.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			task := f.seedTask(model.TaskStatusInProgress)

			res, err := f.svc.RemoveMemberFromOrganization(context.Background(), tt.owner(f), tt.member(f))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success || res.Kind != tt.kind || res.Message != tt.message {
				t.Fatalf("expected %s %q, got %+v", tt.kind, tt.message, res)
			}
			if f.db.Member(f.membership.ID).LeftAt != nil || !f.db.Task(task.ID).IsAssignedTo(f.member.ID) {
				t.Fatalf("rejected removal must not change anything")
			}
			if n := f.runner.BeginCalls.Load(); n != 0 {
				t.Fatalf("rejected removal must not open a unit of work, got %d", n)
			}
		})
	}
}

func TestRemoveMember_DetachFailure(t *testing.T) {
	f := newFixture(t)
	f.seedTask(model.TaskStatusInProgress)
	f.db.FailOn("users.update_organization", errors.New("write failed"), -1)

	res, err := f.svc.RemoveMemberFromOrganization(context.Background(), f.owner.ID, f.member.ID)
	if err != nil {
		t.Fatalf("expected typed failure, got %v", err)
	}
	if res.Success || res.Message != "Failed to remove member from organization." {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.db.Member(f.membership.ID).LeftAt != nil {
		t.Fatalf("later steps must not run")
	}
}

func TestRemoveMember_LateFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	task := f.seedTask(model.TaskStatusInProgress)
	f.db.FailOn("tasks.unassign_open", errors.New("connection reset"), -1)

	_, err := f.svc.RemoveMemberFromOrganization(context.Background(), f.owner.ID, f.member.ID)
	if err == nil {
		t.Fatalf("expected infrastructure error")
	}

	u := f.db.User(f.member.ID)
	if u.OrganizationName == nil || u.ManagingOwnerID == nil {
		t.Fatalf("organization detachment must be rolled back")
	}
	if f.db.Member(f.membership.ID).LeftAt != nil {
		t.Fatalf("membership closure must be rolled back")
	}
	if !f.db.Task(task.ID).IsAssignedTo(f.member.ID) {
		t.Fatalf("task assignment must be rolled back")
	}
	if f.recorder.Count() != 0 {
		t.Fatalf("no notifications after a rolled back cascade")
	}
	if f.runner.CommitCalls.Load() != 0 {
		t.Fatalf("expected no commit")
	}
}

func TestRemoveMember_IsIdempotentOnRetry(t *testing.T) {
	f := newFixture(t)
	f.seedTask(model.TaskStatusInProgress)

	if _, err := f.svc.RemoveMemberFromOrganization(context.Background(), f.owner.ID, f.member.ID); err != nil {
		t.Fatalf("first removal: %v", err)
	}
	res, err := f.svc.RemoveMemberFromOrganization(context.Background(), f.owner.ID, f.member.ID)
	if err != nil {
		t.Fatalf("second removal: %v", err)
	}
	if res.Success {
		t.Fatalf("second removal should be rejected once the member has left")
	}
	if f.recorder.Count() != 1 {
		t.Fatalf("expected the reviewer notified once, got %d", f.recorder.Count())
	}
}

// finishingTasks 在第一次取消分配之前，模拟另一个事务把任务提交为 Done
type finishingTasks struct {
	store.TaskStore
	db   *memstore.DB
	done bool
}

func (f *finishingTasks) UnassignOpen(ctx context.Context, taskID, assigneeID int64) (*model.Task, error) {
	if !f.done {
		f.done = true
		t := f.db.Task(taskID)
		t.Status = model.TaskStatusDone
		f.db.PutTask(*t)
	}
	return f.TaskStore.UnassignOpen(ctx, taskID, assigneeID)
}

type finishingRunner struct {
	inner uow.Runner
	tasks *finishingTasks
}

func (r finishingRunner) InTx(ctx context.Context, op string, fn uow.Func) error {
	return r.inner.InTx(ctx, op, func(ctx context.Context, repos store.Repos) error {
		r.tasks.TaskStore = repos.Tasks
		repos.Tasks = r.tasks
		return fn(ctx, repos)
	})
}

func TestRemoveMember_TaskFinishedConcurrentlyIsNotOverwritten(t *testing.T) {
	f := newFixture(t)
	task := f.seedTask(model.TaskStatusReadyToReview)

	runner := finishingRunner{inner: f.runner, tasks: &finishingTasks{db: f.db}}
	sender := notify.NewSender(f.db.Repos().Users, f.recorder, zap.NewNop())
	svc := NewService(runner, f.db.Repos(), sender, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	res, err := svc.RemoveMemberFromOrganization(context.Background(), f.owner.ID, f.member.ID)
	if err != nil || !res.Success {
		t.Fatalf("RemoveMemberFromOrganization: res=%+v err=%v", res, err)
	}

	got := f.db.Task(task.ID)
	if got.Status != model.TaskStatusDone {
		t.Fatalf("concurrently finished task must stay Done, got %s", got.Status)
	}
	if !got.IsAssignedTo(f.member.ID) {
		t.Fatalf("finished task must keep its assignee, got %v", got.AssigneeID)
	}
	if len(f.db.History(task.ID)) != 0 {
		t.Fatalf("no history for a task the cascade skipped, got %+v", f.db.History(task.ID))
	}
	if f.recorder.Count() != 0 {
		t.Fatalf("no notification for a skipped task, got %v", f.recorder.InApps)
	}
	if f.db.Member(f.membership.ID).LeftAt == nil {
		t.Fatalf("membership must still be closed")
	}
	if !strings.Contains(res.Data, "0 task(s) unassigned") {
		t.Fatalf("unexpected summary %q", res.Data)
	}
}
