// Package repotest holds behaviour checks shared by every TaskRepository implementation.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/repository"
)

// Start is the instant the fake clock handed to factories begins at.
var Start = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// Factory builds an empty repository stamping times from clk.
type Factory func(t *testing.T, clk clock.Clock) repository.TaskRepository

func at(d time.Duration) *time.Time {
	v := Start.Add(d)
	return &v
}

func create(t *testing.T, repo repository.TaskRepository, task domain.Task) *domain.Task {
	t.Helper()
	out, err := repo.Create(context.Background(), &task)
	require.NoError(t, err)
	return out
}

// RunTaskRepository exercises the TaskRepository contract against newRepo.
func RunTaskRepository(t *testing.T, newRepo Factory) {
	t.Run("create fills defaults", func(t *testing.T) {
		clk := clock.NewFake(Start)
		repo := newRepo(t, clk)

		task := create(t, repo, domain.Task{UserID: "u1", Title: "  Call mom  "})
		assert.NotEmpty(t, task.ID)
		assert.Equal(t, "Call mom", task.Title)
		assert.Equal(t, domain.StatusPending, task.Status)
		assert.Equal(t, domain.PriorityMedium, task.Priority)
		assert.True(t, task.CreatedAt.Equal(Start))

		_, err := repo.Create(context.Background(), &domain.Task{UserID: "u1", Title: "   "})
		assert.ErrorIs(t, err, domain.ErrEmptyTitle)
	})

	t.Run("get is scoped by user", func(t *testing.T) {
		repo := newRepo(t, clock.NewFake(Start))
		task := create(t, repo, domain.Task{UserID: "u1", Title: "Pay rent"})

		got, err := repo.Get(context.Background(), "u1", task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Pay rent", got.Title)

		_, err = repo.Get(context.Background(), "u2", task.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
		_, err = repo.Get(context.Background(), "u1", "missing")
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("list pending in display order", func(t *testing.T) {
		clk := clock.NewFake(Start)
		repo := newRepo(t, clk)
		create(t, repo, domain.Task{UserID: "u1", Title: "Undated low", Priority: domain.PriorityLow})
		clk.Advance(time.Second)
		create(t, repo, domain.Task{UserID: "u1", Title: "Undated urgent", Priority: domain.PriorityUrgent})
		clk.Advance(time.Second)
		create(t, repo, domain.Task{UserID: "u1", Title: "Later", DueAt: at(3 * time.Hour)})
		clk.Advance(time.Second)
		create(t, repo, domain.Task{UserID: "u1", Title: "Sooner", DueAt: at(time.Hour)})
		clk.Advance(time.Second)
		done := create(t, repo, domain.Task{UserID: "u1", Title: "Done"})
		create(t, repo, domain.Task{UserID: "u2", Title: "Other user"})
		_, err := repo.Complete(context.Background(), "u1", done.ID)
		require.NoError(t, err)

		pending, err := repo.ListPending(context.Background(), "u1")
		require.NoError(t, err)
		titles := make([]string, 0, len(pending))
		for _, p := range pending {
			titles = append(titles, p.Title)
		}
		assert.Equal(t, []string{"Sooner", "Later", "Undated urgent", "Undated low"}, titles)
	})

	t.Run("complete once", func(t *testing.T) {
		clk := clock.NewFake(Start)
		repo := newRepo(t, clk)
		task := create(t, repo, domain.Task{UserID: "u1", Title: "Stretch"})

		clk.Advance(time.Minute)
		done, err := repo.Complete(context.Background(), "u1", task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, done.Status)
		assert.True(t, done.UpdatedAt.Equal(Start.Add(time.Minute)))

		clk.Advance(time.Minute)
		_, err = repo.Complete(context.Background(), "u1", task.ID)
		assert.ErrorIs(t, err, domain.ErrTaskAlreadyCompleted)

		got, err := repo.Get(context.Background(), "u1", task.ID)
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.Equal(Start.Add(time.Minute)))

		_, err = repo.Complete(context.Background(), "u2", task.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("update keeps reminder sent and forbids reopening", func(t *testing.T) {
		repo := newRepo(t, clock.NewFake(Start))
		task := create(t, repo, domain.Task{UserID: "u1", Title: "Water plants", ReminderAt: at(time.Hour)})
		require.NoError(t, repo.MarkReminderSent(context.Background(), task.ID))
		require.NoError(t, repo.MarkReminderSent(context.Background(), task.ID))

		task.Title = "Water all plants"
		task.ReminderSent = false
		require.NoError(t, repo.Update(context.Background(), task))
		assert.True(t, task.ReminderSent)

		got, err := repo.Get(context.Background(), "u1", task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Water all plants", got.Title)
		assert.True(t, got.ReminderSent)

		_, err = repo.Complete(context.Background(), "u1", task.ID)
		require.NoError(t, err)
		got.Status = domain.StatusPending
		assert.ErrorIs(t, repo.Update(context.Background(), got), domain.ErrInvalidTransition)

		foreign := *got
		foreign.UserID = "u2"
		assert.ErrorIs(t, repo.Update(context.Background(), &foreign), domain.ErrTaskNotFound)
	})

	t.Run("reminder candidates and overdue", func(t *testing.T) {
		repo := newRepo(t, clock.NewFake(Start))
		future := create(t, repo, domain.Task{UserID: "u1", Title: "Future", ReminderAt: at(time.Hour)})
		create(t, repo, domain.Task{UserID: "u1", Title: "Past reminder", ReminderAt: at(-time.Hour)})
		sent := create(t, repo, domain.Task{UserID: "u2", Title: "Sent", ReminderAt: at(2 * time.Hour)})
		require.NoError(t, repo.MarkReminderSent(context.Background(), sent.ID))
		overdue := create(t, repo, domain.Task{UserID: "u2", Title: "Overdue", DueAt: at(-time.Minute)})
		create(t, repo, domain.Task{UserID: "u2", Title: "Not yet", DueAt: at(time.Minute)})

		candidates, err := repo.ListReminderCandidates(context.Background(), Start)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, future.ID, candidates[0].ID)

		late, err := repo.ListOverdue(context.Background(), Start)
		require.NoError(t, err)
		require.Len(t, late, 1)
		assert.Equal(t, overdue.ID, late[0].ID)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		repo := newRepo(t, clock.NewFake(Start))
		a := create(t, repo, domain.Task{UserID: "u1", Title: "A"})
		b := create(t, repo, domain.Task{UserID: "u1", Title: "B"})
		boom := errors.New("boom")

		err := repo.RunInTx(context.Background(), func(tx repository.TaskRepository) error {
			if _, err := tx.Complete(context.Background(), "u1", a.ID); err != nil {
				return err
			}
			got, err := tx.Get(context.Background(), "u1", a.ID)
			if err != nil {
				return err
			}
			assert.True(t, got.IsCompleted())
			if _, err := tx.Complete(context.Background(), "u1", b.ID); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		pending, err := repo.ListPending(context.Background(), "u1")
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		require.NoError(t, repo.RunInTx(context.Background(), func(tx repository.TaskRepository) error {
			_, err := tx.Complete(context.Background(), "u1", a.ID)
			return err
		}))
		pending, err = repo.ListPending(context.Background(), "u1")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, b.ID, pending[0].ID)
	})
}
