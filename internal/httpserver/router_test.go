package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/apperr"
	"projectflow/internal/handler"
	"projectflow/internal/model"
	"projectflow/internal/service/task"
	"projectflow/internal/service/todo"
	"projectflow/internal/util"
	"projectflow/pkg/trace"
)

const testSecret = "test-secret"

type fakeTasks struct {
	lastCreate task.CreateRequest
	lastUpdate task.UpdateRequest
	result     apperr.Result[*model.TaskView]
	err        error
}

func (f *fakeTasks) CreateTask(_ context.Context, req task.CreateRequest) (apperr.Result[*model.TaskView], error) {
	f.lastCreate = req
	return f.result, f.err
}

func (f *fakeTasks) UpdateTask(_ context.Context, req task.UpdateRequest) (apperr.Result[*model.TaskView], error) {
	f.lastUpdate = req
	return f.result, f.err
}

func (f *fakeTasks) GetTask(_ context.Context, _ int64) (apperr.Result[*model.TaskView], error) {
	return f.result, f.err
}

type fakeOrgs struct {
	owner, member int64
}

func (f *fakeOrgs) RemoveMemberFromOrganization(_ context.Context, ownerID, memberID int64) (apperr.Result[string], error) {
	f.owner, f.member = ownerID, memberID
	return apperr.OkMessage("done", "done"), nil
}

type fakeTodos struct{}

func (fakeTodos) CreateTodo(_ context.Context, req todo.CreateRequest) (apperr.Result[*model.Todo], error) {
	return apperr.Ok(&model.Todo{ID: 1, OwnerID: req.OwnerID, Name: req.Name}), nil
}

type fakeReplayer struct{ replayed []int64 }

func (f *fakeReplayer) ReplayEvent(_ context.Context, id int64) error {
	f.replayed = append(f.replayed, id)
	return nil
}

func (f *fakeReplayer) ReplayFailedEvents(_ context.Context, _ int) (int, error) { return 0, nil }

type fixture struct {
	router   *Router
	tasks    *fakeTasks
	orgs     *fakeOrgs
	replayer *fakeReplayer
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{tasks: &fakeTasks{}, orgs: &fakeOrgs{}, replayer: &fakeReplayer{}}
	log := zap.NewNop()
	f.router = NewRouter(Handlers{
		Tasks:         handler.NewTaskHandler(f.tasks, log),
		Todos:         handler.NewTodoHandler(fakeTodos{}, log),
		Organizations: handler.NewOrganizationHandler(f.orgs, log),
		Admin:         handler.NewAdminHandler(f.replayer, log),
	}, testSecret, "projectflow-test", nil)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, userID int64, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		token, err := util.GenerateJWT(userID, role, testSecret, time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.Engine.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodGet, "/healthz", 0, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get(trace.HeaderName) == "" {
		t.Fatalf("expected trace header on response")
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodGet, "/tasks/1", 0, "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRouter_CreateTaskUsesCaller(t *testing.T) {
	f := newFixture()
	f.tasks.result = apperr.Ok(&model.TaskView{ID: 9, Status: model.TaskStatusTodo})

	w := f.do(t, http.MethodPost, "/tasks", 5, "member", map[string]any{"project_id": 3, "title": "Draft"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if f.tasks.lastCreate.ActorID != 5 || f.tasks.lastCreate.ProjectID != 3 {
		t.Fatalf("unexpected request %+v", f.tasks.lastCreate)
	}
}

func TestRouter_ResultKindsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		result apperr.Result[*model.TaskView]
		err    error
		want   int
	}{
		{"not found", apperr.Fail[*model.TaskView](apperr.NotFound("task.get", "Task not found")), nil, http.StatusNotFound},
		{"validation", apperr.Fail[*model.TaskView](apperr.Validation("task.get", "bad")), nil, http.StatusBadRequest},
		{"conflict", apperr.Fail[*model.TaskView](apperr.Conflict("task.get", "race")), nil, http.StatusConflict},
		{"infrastructure", apperr.Result[*model.TaskView]{}, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.tasks.result, f.tasks.err = tt.result, tt.err

			w := f.do(t, http.MethodGet, "/tasks/4", 5, "member", nil)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			if tt.err != nil && bytes.Contains(w.Body.Bytes(), []byte("db down")) {
				t.Fatalf("infrastructure details must not leak: %s", w.Body.String())
			}
		})
	}
}

func TestRouter_UpdateTaskRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodPatch, "/tasks/4", 5, "member", map[string]any{"status": "Archived"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRouter_UpdateTaskPassesFields(t *testing.T) {
	f := newFixture()
	f.tasks.result = apperr.Ok(&model.TaskView{ID: 4})

	w := f.do(t, http.MethodPatch, "/tasks/4", 5, "member", map[string]any{"status": "InProgress", "unassign_assignee": true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	req := f.tasks.lastUpdate
	if req.TaskID != 4 || req.ActorID != 5 || req.Status == nil || *req.Status != model.TaskStatusInProgress || !req.UnassignAssignee {
		t.Fatalf("unexpected update request %+v", req)
	}
}

func TestRouter_RemoveMemberRequiresOwnerRole(t *testing.T) {
	f := newFixture()

	if w := f.do(t, http.MethodDelete, "/organization/members/8", 5, "member", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member role, got %d", w.Code)
	}

	w := f.do(t, http.MethodDelete, "/organization/members/8", 5, "owner", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", w.Code)
	}
	if f.orgs.owner != 5 || f.orgs.member != 8 {
		t.Fatalf("expected owner 5 and member 8, got %d/%d", f.orgs.owner, f.orgs.member)
	}
}

func TestRouter_AdminReplay(t *testing.T) {
	f := newFixture()

	if w := f.do(t, http.MethodPost, "/admin/outbox/replay?id=12", 1, "owner", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for owner, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/admin/outbox/replay?id=12", 1, "admin", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", w.Code)
	}
	if len(f.replayer.replayed) != 1 || f.replayer.replayed[0] != 12 {
		t.Fatalf("expected event 12 replayed, got %v", f.replayer.replayed)
	}
}

func TestRouter_CreateTodo(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodPost, "/todos", 6, "", map[string]any{"name": "Ship it"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
}
