package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"not found", NotFound("task.get", "Task not found"), KindNotFound},
		{"wrapped validation", fmt.Errorf("outer: %w", Validation("task.update", "bad")), KindValidation},
		{"plain error", errors.New("boom"), KindInfrastructure},
		{"conflict", Conflict("task.update", "stale"), KindConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("conn reset")
	err := Infrastructure("uow.commit", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be unwrapped")
	}
	if got := err.Error(); got != "uow.commit: internal error: conn reset" {
		t.Fatalf("unexpected message %q", got)
	}
	if IsDomain(err) {
		t.Fatalf("infrastructure errors are not domain errors")
	}
}

func TestSettle(t *testing.T) {
	res, err := Settle[int](Validation("op", "Todo Name cannot be empty!"))
	if err != nil {
		t.Fatalf("expected domain error to settle, got %v", err)
	}
	if res.Success || res.Message != "Todo Name cannot be empty!" || res.Kind != KindValidation {
		t.Fatalf("unexpected result %+v", res)
	}

	boom := errors.New("boom")
	if _, err := Settle[int](boom); !errors.Is(err, boom) {
		t.Fatalf("expected infrastructure error to pass through, got %v", err)
	}
	if _, err := Settle[int](Infrastructure("op", boom)); !errors.Is(err, boom) {
		t.Fatalf("expected typed infrastructure error to pass through, got %v", err)
	}
}

func TestOk(t *testing.T) {
	res := OkMessage("x", "done")
	if !res.Success || res.Data != "x" || res.Message != "done" {
		t.Fatalf("unexpected result %+v", res)
	}
}
