package trace

import (
	"context"
	"testing"
)

func TestEnsure(t *testing.T) {
	ctx, id := Ensure(context.Background())
	if id == "" {
		t.Fatalf("expected generated trace id")
	}
	if FromContext(ctx) != id {
		t.Fatalf("expected trace id stored in context")
	}

	ctx2, id2 := Ensure(ctx)
	if id2 != id || FromContext(ctx2) != id {
		t.Fatalf("expected existing trace id to be kept, got %q", id2)
	}
}

func TestFromContext_Empty(t *testing.T) {
	if got := FromContext(context.Background()); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
}
