package wellness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/repository/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testStart = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingScheduler) Reconcile(task *domain.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, task.ID)
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts map[string][]string
}

func (n *recordingNotifier) Send(_ context.Context, userID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.texts == nil {
		n.texts = make(map[string][]string)
	}
	n.texts[userID] = append(n.texts[userID], text)
	return nil
}

type offline struct{}

func (offline) IsOnline() bool { return false }

func defaultPolicy() Policy {
	return Policy{
		Interval:           time.Minute,
		GracePeriod:        15 * time.Minute,
		RequireLowPriority: true,
	}
}

func seed(t *testing.T, repo repository.TaskRepository, title string, priority domain.Priority, dueIn time.Duration) *domain.Task {
	t.Helper()
	due := testStart.Add(dueIn)
	task, err := repo.Create(context.Background(), &domain.Task{
		UserID:   "u1",
		Title:    title,
		Priority: priority,
		DueAt:    &due,
	})
	require.NoError(t, err)
	return task
}

func TestSweepCases(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		priority domain.Priority
		dueIn    time.Duration
		want     bool
	}{
		{"break one second overdue", "Take a break", domain.PriorityMedium, -time.Second, true},
		{"break in the future", "Take a break", domain.PriorityLow, time.Hour, false},
		{"medium water past grace", "Drink water", domain.PriorityMedium, -20 * time.Minute, false},
		{"low water past grace", "Drink water", domain.PriorityLow, -20 * time.Minute, true},
		{"low water inside grace", "Drink water", domain.PriorityLow, -5 * time.Minute, false},
		{"non wellness task", "Pay rent", domain.PriorityLow, -24 * time.Hour, false},
		{"keyword inside a longer word", "Breakfast meeting with investors", domain.PriorityHigh, -time.Minute, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clk := clock.NewFake(testStart)
			repo := memory.NewTaskRepository(clk)
			sched := &recordingScheduler{}
			s := New(repo, sched, nil, nil, clk, nil, defaultPolicy(), nil)

			task := seed(t, repo, tc.title, tc.priority, tc.dueIn)

			n, err := s.Sweep(context.Background())
			require.NoError(t, err)

			got, err := repo.Get(context.Background(), "u1", task.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.IsCompleted())
			if tc.want {
				assert.Equal(t, 1, n)
				assert.Equal(t, []string{task.ID}, sched.ids)
			} else {
				assert.Zero(t, n)
				assert.Empty(t, sched.ids)
			}
		})
	}
}

func TestSweepMatchesWholeWordsOnly(t *testing.T) {
	clk := clock.NewFake(testStart)
	repo := memory.NewTaskRepository(clk)
	sched := &recordingScheduler{}
	s := New(repo, sched, nil, nil, clk, nil, defaultPolicy(), nil)

	breakfast := seed(t, repo, "Breakfast meeting with investors", domain.PriorityHigh, -time.Minute)
	restaurant := seed(t, repo, "Restaurant booking for anniversary", domain.PriorityLow, -time.Hour)
	walk := seed(t, repo, "Evening WALK", domain.PriorityLow, -time.Hour)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{walk.ID}, sched.ids)

	for _, id := range []string{breakfast.ID, restaurant.ID} {
		got, err := repo.Get(context.Background(), "u1", id)
		require.NoError(t, err)
		assert.True(t, got.IsPending(), got.Title)
	}
}

func TestSweepBatchAndSummary(t *testing.T) {
	clk := clock.NewFake(testStart)
	repo := memory.NewTaskRepository(clk)
	notifier := &recordingNotifier{}
	policy := defaultPolicy()
	policy.NotifyUserID = "owner"
	s := New(repo, nil, notifier, nil, clk, nil, policy, nil)

	seed(t, repo, "Coffee break", domain.PriorityHigh, -time.Minute)
	seed(t, repo, "Evening walk", domain.PriorityLow, -time.Hour)
	seed(t, repo, "Stretch", domain.PriorityMedium, -time.Hour)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := repo.ListPending(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Stretch", pending[0].Title)

	require.Len(t, notifier.texts["owner"], 1)
	assert.Contains(t, notifier.texts["owner"][0], "Auto-completed 2 wellness task(s)")

	n, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "a second sweep finds nothing new")
	assert.Len(t, notifier.texts["owner"], 1)
}

func TestSweepWithoutPriorityGuard(t *testing.T) {
	clk := clock.NewFake(testStart)
	repo := memory.NewTaskRepository(clk)
	policy := defaultPolicy()
	policy.RequireLowPriority = false
	s := New(repo, nil, nil, nil, clk, nil, policy, nil)

	task := seed(t, repo, "Drink water", domain.PriorityMedium, -20*time.Minute)
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(context.Background(), "u1", task.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted())
}

func TestSweepSkipsWhenStoreOffline(t *testing.T) {
	clk := clock.NewFake(testStart)
	repo := memory.NewTaskRepository(clk)
	s := New(repo, nil, nil, offline{}, clk, nil, defaultPolicy(), nil)

	seed(t, repo, "Take a break", domain.PriorityLow, -time.Hour)
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartStop(t *testing.T) {
	s := New(memory.NewTaskRepository(nil), nil, nil, nil, nil, nil, defaultPolicy(), nil)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
