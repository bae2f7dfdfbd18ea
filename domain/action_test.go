package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionDecodesMixedIDs(t *testing.T) {
	raw := `{
		"completions": [{"id": 3}, {"id": " t-9 "}, {"id": null}],
		"updates": [{"id": 12, "fields_to_update": {"priority": "high"}}]
	}`
	var a Action
	require.NoError(t, json.Unmarshal([]byte(raw), &a))

	require.Len(t, a.Completions, 3)
	assert.Equal(t, "3", a.Completions[0].ID.String())
	assert.Equal(t, "t-9", a.Completions[1].ID.String())
	assert.Equal(t, "", a.Completions[2].ID.String())
	require.Len(t, a.Updates, 1)
	assert.Equal(t, "12", a.Updates[0].ID.String())
	assert.True(t, a.HasMutations())

	var bad Action
	assert.Error(t, json.Unmarshal([]byte(`{"completions": [{"id": true}]}`), &bad))
}

func TestActionPredicates(t *testing.T) {
	var nilAction *Action
	assert.True(t, nilAction.IsEmpty())
	assert.False(t, nilAction.WantsList())

	assert.True(t, (&Action{}).IsEmpty())
	assert.True(t, (&Action{Response: "  "}).IsEmpty())
	assert.False(t, (&Action{Response: "Hi!"}).IsEmpty())
	assert.True(t, (&Action{Query: QueryListTasks}).WantsList())
	assert.True(t, (&Action{Intent: QueryListTasks}).WantsList())
	assert.True(t, (&Action{Intent: IntentClarify}).WantsClarification())
	assert.False(t, (&Action{Intent: IntentGreeting}).WantsClarification())
}

func TestParseTime(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2026-03-14 15:00:00", time.Date(2026, 3, 14, 15, 0, 0, 0, berlin)},
		{"2026-03-14T15:00:00", time.Date(2026, 3, 14, 15, 0, 0, 0, berlin)},
		{"2026-03-14 15:00", time.Date(2026, 3, 14, 15, 0, 0, 0, berlin)},
		{"2026-03-14", time.Date(2026, 3, 14, 0, 0, 0, 0, berlin)},
		{"2026-03-14T15:00:00Z", time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := ParseTime(tc.raw, berlin)
		require.NoError(t, err, tc.raw)
		assert.True(t, tc.want.Equal(got), "%s: got %s", tc.raw, got)
	}

	_, err = ParseTime("tomorrow-ish", berlin)
	assert.ErrorIs(t, err, ErrInvalidTime)
	assert.True(t, IsDomainError(err, ErrCodeInvalid))
	_, err = ParseTime("", berlin)
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestUpdateFields(t *testing.T) {
	due := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	task := &Task{Title: "Old", Status: StatusPending, Priority: PriorityLow, DueAt: &due}

	f, err := ParseUpdateField(" Due ")
	require.NoError(t, err)
	require.NoError(t, f.Apply(task, "2026-03-15 08:00:00", time.UTC))
	assert.Equal(t, time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC), *task.DueAt)

	require.NoError(t, FieldDueDate.Apply(task, nil, time.UTC))
	assert.Nil(t, task.DueAt)

	assert.ErrorIs(t, FieldReminderAt.Apply(task, 42, time.UTC), ErrInvalidTime)
	assert.ErrorIs(t, FieldTitle.Apply(task, "  ", time.UTC), ErrEmptyTitle)
	assert.Equal(t, "Old", task.Title)

	require.NoError(t, FieldPriority.Apply(task, "URGENT", time.UTC))
	assert.Equal(t, PriorityUrgent, task.Priority)
	require.NoError(t, FieldPriority.Apply(task, "whenever", time.UTC))
	assert.Equal(t, PriorityMedium, task.Priority)

	_, err = ParseUpdateField("description")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestStatusTransitions(t *testing.T) {
	task := &Task{Status: StatusPending}
	require.NoError(t, FieldStatus.Apply(task, "pending", time.UTC))
	require.NoError(t, FieldStatus.Apply(task, "Completed", time.UTC))
	assert.True(t, task.IsCompleted())

	assert.ErrorIs(t, FieldStatus.Apply(task, "pending", time.UTC), ErrInvalidTransition)
	assert.True(t, task.IsCompleted())
}
