package overdue

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/service/notify"
	"projectflow/internal/service/notify/notifytest"
	"projectflow/internal/store/memstore"
	"projectflow/internal/uow"
	"projectflow/internal/workflow"
)

func day(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestJob_Run(t *testing.T) {
	db := memstore.New()
	assignee := db.AddUser(model.User{Email: "amy@example.com"})

	late := db.PutTask(model.Task{ProjectID: 1, AssigneeID: model.Int64Ptr(assignee.ID), Title: "Late", Status: model.TaskStatusInProgress, EndDate: day("2025-05-01")})
	dueToday := db.PutTask(model.Task{ProjectID: 1, AssigneeID: model.Int64Ptr(assignee.ID), Title: "Today", Status: model.TaskStatusTodo, EndDate: day("2025-05-10")})
	done := db.PutTask(model.Task{ProjectID: 1, AssigneeID: model.Int64Ptr(assignee.ID), Title: "Done", Status: model.TaskStatusDone, EndDate: day("2025-04-01")})
	unassigned := db.PutTask(model.Task{ProjectID: 1, Title: "Nobody", Status: model.TaskStatusTodo, EndDate: day("2025-04-01")})

	recorder := &notifytest.Recorder{}
	job := NewJob(
		memstore.NewRunner(db, uow.DefaultPolicy(), zap.NewNop()),
		notify.NewSender(db.Repos().Users, recorder, zap.NewNop()),
		zap.NewNop(),
	)

	now := time.Date(2025, 5, 10, 15, 0, 0, 0, time.UTC)
	n, err := job.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 tasks marked, got %d", n)
	}
	if !db.Task(late.ID).IsOverdue || !db.Task(unassigned.ID).IsOverdue {
		t.Fatalf("expected past-due open tasks flagged")
	}
	if db.Task(dueToday.ID).IsOverdue || db.Task(done.ID).IsOverdue {
		t.Fatalf("tasks due today or terminal must not be flagged")
	}
	if got := recorder.Titles(assignee.ID); len(got) != 1 || got[0] != workflow.TitleOverdue {
		t.Fatalf("expected one overdue notification, got %v", got)
	}

	n, err = job.Run(context.Background(), now)
	if err != nil || n != 0 {
		t.Fatalf("second run should be a no-op, got n=%d err=%v", n, err)
	}
}

func TestJob_RunRollsBackOnFailure(t *testing.T) {
	db := memstore.New()
	a := db.PutTask(model.Task{ProjectID: 1, Title: "A", Status: model.TaskStatusTodo, EndDate: day("2025-01-01")})
	db.PutTask(model.Task{ProjectID: 1, Title: "B", Status: model.TaskStatusTodo, EndDate: day("2025-01-02")})
	db.FailOn("tasks.update", errors.New("write failed"), -1)

	recorder := &notifytest.Recorder{}
	job := NewJob(
		memstore.NewRunner(db, uow.Policy{MaxAttempts: 1}, zap.NewNop()),
		notify.NewSender(db.Repos().Users, recorder, zap.NewNop()),
		zap.NewNop(),
	)

	if _, err := job.Run(context.Background(), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatalf("expected error")
	}
	if db.Task(a.ID).IsOverdue {
		t.Fatalf("expected rollback")
	}
	if recorder.Count() != 0 {
		t.Fatalf("expected no notifications")
	}
}

func TestJob_TickDrainsBacklog(t *testing.T) {
	db := memstore.New()
	for i := 0; i < 5; i++ {
		db.PutTask(model.Task{ProjectID: 1, Title: "Late", Status: model.TaskStatusTodo, EndDate: day("2025-04-01")})
	}
	job := NewJob(
		memstore.NewRunner(db, uow.DefaultPolicy(), zap.NewNop()),
		notify.NewSender(db.Repos().Users, &notifytest.Recorder{}, zap.NewNop()),
		zap.NewNop(),
	).WithBatchSize(2)

	if n := job.tick(context.Background(), time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)); n != 5 {
		t.Fatalf("expected all 5 tasks flagged across batches, got %d", n)
	}
}
