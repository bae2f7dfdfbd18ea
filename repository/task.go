package repository

import (
	"context"
	"time"

	"github.com/fastygo/taskpilot/domain"
)

// TaskRepository persists tasks. Every user-facing lookup is scoped by user ID; a task
// owned by another user is reported as domain.ErrTaskNotFound.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Get(ctx context.Context, userID, id string) (*domain.Task, error)
	ListPending(ctx context.Context, userID string) ([]domain.Task, error)
	// Complete returns domain.ErrTaskAlreadyCompleted without touching the row when the
	// task is already done.
	Complete(ctx context.Context, userID, id string) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	MarkReminderSent(ctx context.Context, id string) error

	// ListReminderCandidates returns every task that should hold a live reminder at now.
	ListReminderCandidates(ctx context.Context, now time.Time) ([]domain.Task, error)
	// ListOverdue returns pending tasks of all users whose due time is before now.
	ListOverdue(ctx context.Context, now time.Time) ([]domain.Task, error)

	// RunInTx executes fn against a transaction-bound repository. Nothing fn wrote is
	// visible if it returns an error.
	RunInTx(ctx context.Context, fn func(repo TaskRepository) error) error
}
