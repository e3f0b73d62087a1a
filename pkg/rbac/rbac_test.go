package rbac

import (
	"errors"
	"testing"
)

func TestHasPermission(t *testing.T) {
	cases := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleMember, PermissionCreateTask, true},
		{RoleMember, PermissionRemoveMember, false},
		{RoleOwner, PermissionRemoveMember, true},
		{RoleOwner, PermissionReplayOutbox, false},
		{RoleAdmin, PermissionReplayOutbox, true},
		{"", PermissionReadTask, true},
		{"ghost", PermissionRemoveMember, false},
	}
	for _, tc := range cases {
		if got := HasPermission(tc.role, tc.permission); got != tc.want {
			t.Fatalf("HasPermission(%q, %q) = %v, want %v", tc.role, tc.permission, got, tc.want)
		}
	}
}

func TestCheckPermission(t *testing.T) {
	err := CheckPermission(7, RoleMember, PermissionReplayOutbox)
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if denied.UserID != 7 || denied.Permission != PermissionReplayOutbox {
		t.Fatalf("unexpected error fields: %+v", denied)
	}
	if err := CheckPermission(7, RoleAdmin, PermissionReplayOutbox); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
}
