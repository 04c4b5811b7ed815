package domain

import (
	"testing"
	"time"
)

func TestFlowOverdue(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		flow Flow
		want bool
	}{
		{"no due date", Flow{}, false},
		{"due in the future", Flow{DueDate: &future}, false},
		{"past due", Flow{DueDate: &past}, true},
		{"past due but completed", Flow{DueDate: &past, IsCompleted: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flow.Overdue(now); got != tt.want {
				t.Errorf("Overdue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserMessageAssignsUniqueIDs(t *testing.T) {
	a := NewUserMessage("first")
	b := NewUserMessage("second")

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected generated ids")
	}
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, both were %q", a.ID)
	}
	if a.Role != MessageRoleUser {
		t.Errorf("role = %q, want %q", a.Role, MessageRoleUser)
	}
	if a.Content != "first" {
		t.Errorf("content = %q, want %q", a.Content, "first")
	}
	if a.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}
