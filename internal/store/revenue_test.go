package store

import (
	"testing"
	"time"
)

func TestRevenueWindowClauses(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name string
		from *time.Time
		to   *time.Time
		want []string
	}{
		{"open window", nil, nil, nil},
		{"lower bound only", &from, nil, []string{"completed_at >= ?"}},
		{"upper bound only", nil, &to, []string{"completed_at <= ?"}},
		{"both bounds", &from, &to, []string{"completed_at >= ?", "completed_at <= ?"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clauses := revenueWindowClauses(tt.from, tt.to)
			if len(clauses) != len(tt.want) {
				t.Fatalf("got %d clauses, want %d", len(clauses), len(tt.want))
			}
			for i, clause := range clauses {
				if clause.cond != tt.want[i] {
					t.Errorf("clause %d = %q, want %q", i, clause.cond, tt.want[i])
				}
			}
		})
	}
}
