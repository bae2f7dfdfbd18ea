package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReminderPredicates(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name      string
		task      Task
		wants     bool
		fireReady bool
	}{
		{"future pending", Task{Status: StatusPending, ReminderAt: &future}, true, false},
		{"due pending", Task{Status: StatusPending, ReminderAt: &past}, false, true},
		{"exactly now", Task{Status: StatusPending, ReminderAt: &now}, false, true},
		{"already sent", Task{Status: StatusPending, ReminderAt: &past, ReminderSent: true}, false, false},
		{"completed", Task{Status: StatusCompleted, ReminderAt: &future}, false, false},
		{"no reminder", Task{Status: StatusPending}, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wants, tc.task.WantsReminder(now))
			assert.Equal(t, tc.fireReady, tc.task.ReminderDue(now))
		})
	}
}

func TestSortPending(t *testing.T) {
	early := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	tasks := []Task{
		{Title: "undated medium", Priority: PriorityMedium},
		{Title: "late low", DueAt: &late, Priority: PriorityLow},
		{Title: "undated urgent", Priority: PriorityUrgent},
		{Title: "late urgent", DueAt: &late, Priority: PriorityUrgent},
		{Title: "early", DueAt: &early, Priority: PriorityLow},
		{Title: "undated medium 2", Priority: PriorityMedium},
	}
	SortPending(tasks)

	titles := make([]string, len(tasks))
	for i, task := range tasks {
		titles[i] = task.Title
	}
	assert.Equal(t, []string{
		"early", "late urgent", "late low", "undated urgent", "undated medium", "undated medium 2",
	}, titles)
}

func TestCloneDoesNotShareTimes(t *testing.T) {
	due := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	orig := Task{Title: "a", DueAt: &due, ReminderAt: &due}
	c := orig.Clone()
	*c.DueAt = due.Add(time.Hour)
	assert.Equal(t, due, *orig.DueAt)
	assert.NotSame(t, orig.ReminderAt, c.ReminderAt)
}

func TestNormalizeAndRefs(t *testing.T) {
	task := Task{ID: "1", Title: "  Walk  ", Priority: "HIGH"}
	task.Normalize()
	assert.Equal(t, "Walk", task.Title)
	assert.Equal(t, PriorityHigh, task.Priority)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, []TaskRef{{ID: "1", Title: "Walk"}}, Refs([]Task{task}))
	assert.Equal(t, 4, Priority("odd").Rank())
}
