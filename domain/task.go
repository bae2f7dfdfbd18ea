package domain

import (
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of a task. Completion is terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Priority orders tasks inside the same due slot.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority normalizes free-form input. Anything unrecognised becomes medium.
func ParsePriority(raw string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}

// Rank returns the sort rank of the priority; unknown values sort after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Task represents a user-owned to-do item with an optional reminder.
type Task struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	DueAt        *time.Time `json:"due_at,omitempty"`
	ReminderAt   *time.Time `json:"reminder_at,omitempty"`
	Priority     Priority   `json:"priority"`
	Status       Status     `json:"status"`
	ReminderSent bool       `json:"reminder_sent"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusCompleted
}

func (t *Task) IsPending() bool {
	return t != nil && t.Status == StatusPending
}

// WantsReminder reports whether a live reminder timer must exist for the task at now.
func (t *Task) WantsReminder(now time.Time) bool {
	return t.IsPending() &&
		t.ReminderAt != nil &&
		t.ReminderAt.After(now) &&
		!t.ReminderSent
}

// ReminderDue reports whether the fire path may deliver the reminder at now.
func (t *Task) ReminderDue(now time.Time) bool {
	return t.IsPending() &&
		t.ReminderAt != nil &&
		!t.ReminderAt.After(now) &&
		!t.ReminderSent
}

// Normalize fills defaults for a freshly built task.
func (t *Task) Normalize() {
	if t == nil {
		return
	}
	t.Title = strings.TrimSpace(t.Title)
	t.Priority = ParsePriority(string(t.Priority))
	if t.Status == "" {
		t.Status = StatusPending
	}
}

// Clone returns a deep copy so callers never share time pointers.
func (t Task) Clone() Task {
	out := t
	if t.DueAt != nil {
		due := *t.DueAt
		out.DueAt = &due
	}
	if t.ReminderAt != nil {
		at := *t.ReminderAt
		out.ReminderAt = &at
	}
	return out
}

// TaskRef is the minimal view of a task handed to the intent parser.
type TaskRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Refs projects tasks onto parser references, preserving order.
func Refs(tasks []Task) []TaskRef {
	refs := make([]TaskRef, 0, len(tasks))
	for _, t := range tasks {
		refs = append(refs, TaskRef{ID: t.ID, Title: t.Title})
	}
	return refs
}

// SortPending orders tasks for display: dated tasks first by due time, then by priority rank.
func SortPending(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return lessPending(&tasks[i], &tasks[j])
	})
}

func lessPending(a, b *Task) bool {
	switch {
	case a.DueAt == nil && b.DueAt != nil:
		return false
	case a.DueAt != nil && b.DueAt == nil:
		return true
	case a.DueAt != nil && b.DueAt != nil && !a.DueAt.Equal(*b.DueAt):
		return a.DueAt.Before(*b.DueAt)
	}
	return a.Priority.Rank() < b.Priority.Rank()
}
