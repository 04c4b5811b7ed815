package domain

import (
	"time"
)

// FlowPriority ranks how urgent a flow is.
type FlowPriority string

const (
	// FlowPriorityLow marks a flow that can wait.
	FlowPriorityLow FlowPriority = "low"
	// FlowPriorityMedium is the default priority.
	FlowPriorityMedium FlowPriority = "medium"
	// FlowPriorityHigh marks a flow that needs attention soon.
	FlowPriorityHigh FlowPriority = "high"
)

// Flow is a task the assistant extracted from a conversation. Field names
// follow the backend's JSON representation.
type Flow struct {
	ID              string       `json:"id"`
	ContextID       string       `json:"context_id"`
	UserID          string       `json:"user_id,omitempty"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	Priority        FlowPriority `json:"priority"`
	IsCompleted     bool         `json:"is_completed"`
	DueDate         *time.Time   `json:"due_date,omitempty"`
	ReminderEnabled bool         `json:"reminder_enabled"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
}

// Overdue reports whether the flow's due date has passed.
func (f Flow) Overdue(now time.Time) bool {
	if f.IsCompleted || f.DueDate == nil {
		return false
	}
	return f.DueDate.Before(now)
}
