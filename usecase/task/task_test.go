package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/repository/memory"
)

var testStart = time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

type recordingScheduler struct {
	mu    sync.Mutex
	calls []domain.Task
}

func (s *recordingScheduler) Reconcile(task *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, task.Clone())
}

func (s *recordingScheduler) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.ID)
	}
	return out
}

type fixture struct {
	clock     *clock.Fake
	repo      repository.TaskRepository
	scheduler *recordingScheduler
	uc        *UseCase
}

func newFixture(t *testing.T, policy ConflictPolicy) *fixture {
	t.Helper()
	clk := clock.NewFake(testStart)
	repo := memory.NewTaskRepository(clk)
	sched := &recordingScheduler{}
	return &fixture{
		clock:     clk,
		repo:      repo,
		scheduler: sched,
		uc:        New(repo, sched, nil, Config{ConflictPolicy: policy, Location: time.UTC}, nil),
	}
}

func (f *fixture) seed(t *testing.T, userID, title string, status domain.Status) *domain.Task {
	t.Helper()
	task, err := f.repo.Create(context.Background(), &domain.Task{UserID: userID, Title: title, Status: status})
	require.NoError(t, err)
	return task
}

func TestApplyNilAndEmpty(t *testing.T) {
	f := newFixture(t, ConflictAbort)

	res, err := f.uc.Apply(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultNone, res.Kind)

	res, err = f.uc.Apply(context.Background(), "u1", &domain.Action{Response: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ResultNone, res.Kind)
}

func TestApplyCreations(t *testing.T) {
	f := newFixture(t, ConflictAbort)
	ctx := context.Background()

	res, err := f.uc.Apply(ctx, "u1", &domain.Action{Creations: []domain.CreationRequest{
		{Title: "  Call mom ", DueDate: "2026-03-14 10:00:00", ReminderAt: "2026-03-14 09:45:00", Priority: "HIGH"},
		{Title: "   "},
		{Title: "Buy milk", DueDate: "next tuesday-ish", Priority: "whenever"},
	}})
	require.NoError(t, err)

	assert.Equal(t, ResultCreated, res.Kind)
	assert.Equal(t, []string{"Call mom", "Buy milk"}, res.Titles)
	require.Len(t, res.Tasks, 2)

	call := res.Tasks[0]
	assert.NotEmpty(t, call.ID)
	assert.Equal(t, domain.PriorityHigh, call.Priority)
	assert.Equal(t, domain.StatusPending, call.Status)
	require.NotNil(t, call.DueAt)
	assert.True(t, call.DueAt.Equal(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)))
	require.NotNil(t, call.ReminderAt)
	assert.True(t, call.ReminderAt.Equal(time.Date(2026, 3, 14, 9, 45, 0, 0, time.UTC)))

	milk := res.Tasks[1]
	assert.Nil(t, milk.DueAt, "unparseable due date is dropped")
	assert.Equal(t, domain.PriorityMedium, milk.Priority)

	require.Len(t, res.Pending, 2)
	assert.Equal(t, "Call mom", res.Pending[0].Title, "dated tasks come first")
	assert.ElementsMatch(t, []string{call.ID, milk.ID}, f.scheduler.ids())
}

func TestApplyCompletions(t *testing.T) {
	ctx := context.Background()

	t.Run("completes owned tasks and ignores unknown ids", func(t *testing.T) {
		f := newFixture(t, ConflictAbort)
		a := f.seed(t, "u1", "Pay rent", domain.StatusPending)
		b := f.seed(t, "u1", "Walk dog", domain.StatusPending)
		other := f.seed(t, "u2", "Not yours", domain.StatusPending)

		res, err := f.uc.Apply(ctx, "u1", &domain.Action{Completions: []domain.CompletionRequest{
			{ID: domain.FlexID(a.ID)},
			{ID: "missing"},
			{ID: domain.FlexID(other.ID)},
			{ID: domain.FlexID(a.ID)},
		}})
		require.NoError(t, err)
		assert.Equal(t, ResultCompleted, res.Kind)
		assert.Equal(t, []string{"Pay rent"}, res.Titles)
		require.Len(t, res.Pending, 1)
		assert.Equal(t, b.ID, res.Pending[0].ID)
		assert.Equal(t, []string{a.ID}, f.scheduler.ids())

		stillOpen, err := f.repo.Get(ctx, "u2", other.ID)
		require.NoError(t, err)
		assert.True(t, stillOpen.IsPending())
	})

	t.Run("abort rolls back the whole batch", func(t *testing.T) {
		f := newFixture(t, ConflictAbort)
		open := f.seed(t, "u1", "Pay rent", domain.StatusPending)
		done := f.seed(t, "u1", "Walk dog", domain.StatusCompleted)
		before := done.UpdatedAt

		f.clock.Advance(time.Minute)
		res, err := f.uc.Apply(ctx, "u1", &domain.Action{Completions: []domain.CompletionRequest{
			{ID: domain.FlexID(open.ID)},
			{ID: domain.FlexID(done.ID)},
		}})
		require.NoError(t, err)
		assert.Equal(t, ResultAlreadyCompleted, res.Kind)
		assert.Equal(t, []string{"Walk dog"}, res.Titles)
		assert.Empty(t, f.scheduler.ids())

		reloaded, err := f.repo.Get(ctx, "u1", open.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.IsPending())

		reloadedDone, err := f.repo.Get(ctx, "u1", done.ID)
		require.NoError(t, err)
		assert.Equal(t, before, reloadedDone.UpdatedAt)
	})

	t.Run("skip keeps going", func(t *testing.T) {
		f := newFixture(t, ConflictSkip)
		open := f.seed(t, "u1", "Pay rent", domain.StatusPending)
		done := f.seed(t, "u1", "Walk dog", domain.StatusCompleted)

		res, err := f.uc.Apply(ctx, "u1", &domain.Action{Completions: []domain.CompletionRequest{
			{ID: domain.FlexID(done.ID)},
			{ID: domain.FlexID(open.ID)},
		}})
		require.NoError(t, err)
		assert.Equal(t, ResultCompleted, res.Kind)
		assert.Equal(t, []string{"Pay rent"}, res.Titles)
		assert.Empty(t, res.Pending)
	})
}

func TestApplyPrecedence(t *testing.T) {
	f := newFixture(t, ConflictAbort)
	ctx := context.Background()
	open := f.seed(t, "u1", "Pay rent", domain.StatusPending)

	res, err := f.uc.Apply(ctx, "u1", &domain.Action{
		Completions: []domain.CompletionRequest{{ID: domain.FlexID(open.ID)}},
		Creations:   []domain.CreationRequest{{Title: "Ignored"}},
		Query:       domain.QueryListTasks,
	})
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, res.Kind)
	assert.Empty(t, res.Pending, "creation category must not run")
}

func TestApplyUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ConflictAbort)
	task := f.seed(t, "u1", "Pay rent", domain.StatusPending)

	f.clock.Advance(time.Minute)
	res, err := f.uc.Apply(ctx, "u1", &domain.Action{Updates: []domain.UpdateRequest{
		{ID: domain.FlexID(task.ID), Fields: map[string]any{
			"title":       "Pay rent to Bob",
			"due_date":    "not a date",
			"colour":      "blue",
			"priority":    "urgent",
			"reminder_at": "2026-03-14T12:00:00Z",
		}},
		{ID: "missing", Fields: map[string]any{"title": "x"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res.Kind)
	require.Len(t, res.Tasks, 1)

	got, err := f.repo.Get(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pay rent to Bob", got.Title)
	assert.Equal(t, domain.PriorityUrgent, got.Priority)
	assert.Nil(t, got.DueAt)
	require.NotNil(t, got.ReminderAt)
	assert.True(t, got.ReminderAt.Equal(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)))
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
	assert.Equal(t, []string{task.ID}, f.scheduler.ids())
}

func TestApplyUpdateCannotReopen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ConflictAbort)
	done := f.seed(t, "u1", "Walk dog", domain.StatusCompleted)

	res, err := f.uc.Apply(ctx, "u1", &domain.Action{Updates: []domain.UpdateRequest{
		{ID: domain.FlexID(done.ID), Fields: map[string]any{"status": "pending"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res.Kind)
	assert.Empty(t, res.Tasks)

	got, err := f.repo.Get(ctx, "u1", done.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted())
}

func TestApplyList(t *testing.T) {
	f := newFixture(t, ConflictAbort)
	f.seed(t, "u1", "Pay rent", domain.StatusPending)
	f.seed(t, "u1", "Walk dog", domain.StatusCompleted)

	res, err := f.uc.Apply(context.Background(), "u1", &domain.Action{Query: domain.QueryListTasks})
	require.NoError(t, err)
	assert.Equal(t, ResultListed, res.Kind)
	require.Len(t, res.Pending, 1)
	assert.Equal(t, "Pay rent", res.Pending[0].Title)
}

func TestParseConflictPolicy(t *testing.T) {
	assert.Equal(t, ConflictSkip, ParseConflictPolicy(" Skip "))
	assert.Equal(t, ConflictAbort, ParseConflictPolicy("abort"))
	assert.Equal(t, ConflictAbort, ParseConflictPolicy(""))
}
