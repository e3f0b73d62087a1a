package db

import (
	"strings"
	"testing"
)

func TestNormalizeSQL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "  ", want: "unknown"},
		{name: "collapses whitespace", in: "SELECT *\n\t FROM tasks\n WHERE id = $1", want: "SELECT * FROM tasks WHERE id = $1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeSQL(tc.in); got != tc.want {
				t.Fatalf("normalizeSQL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}

	long := normalizeSQL("SELECT " + strings.Repeat("x", 500))
	if len(long) != 203 || !strings.HasSuffix(long, "...") {
		t.Fatalf("expected truncated sql of length 203, got %d", len(long))
	}
}
