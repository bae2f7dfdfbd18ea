// Package memory provides process-local repositories for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/repository"
)

type taskStore struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
	clock clock.Clock
}

// taskRepository guards the whole table with one mutex; transactions hold it for their
// full duration and work on a staged copy.
type taskRepository struct {
	store  *taskStore
	staged map[string]domain.Task
}

// NewTaskRepository returns an in-memory TaskRepository stamping times from clk.
func NewTaskRepository(clk clock.Clock) repository.TaskRepository {
	if clk == nil {
		clk = clock.Real{}
	}
	return &taskRepository{store: &taskStore{
		tasks: make(map[string]domain.Task),
		clock: clk,
	}}
}

func (r *taskRepository) view(fn func(tasks map[string]domain.Task) error) error {
	if r.staged != nil {
		return fn(r.staged)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.tasks)
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	task.Normalize()
	if task.Title == "" {
		return nil, domain.ErrEmptyTitle
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := r.store.clock.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	err := r.view(func(tasks map[string]domain.Task) error {
		tasks[task.ID] = task.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Get(ctx context.Context, userID, id string) (*domain.Task, error) {
	var out *domain.Task
	err := r.view(func(tasks map[string]domain.Task) error {
		t, ok := tasks[id]
		if !ok || t.UserID != userID {
			return domain.ErrTaskNotFound
		}
		c := t.Clone()
		out = &c
		return nil
	})
	return out, err
}

func (r *taskRepository) ListPending(ctx context.Context, userID string) ([]domain.Task, error) {
	var out []domain.Task
	err := r.view(func(tasks map[string]domain.Task) error {
		for _, t := range tasks {
			if t.UserID == userID && t.IsPending() {
				out = append(out, t.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByCreation(out)
	domain.SortPending(out)
	return out, nil
}

func (r *taskRepository) Complete(ctx context.Context, userID, id string) (*domain.Task, error) {
	var out *domain.Task
	err := r.view(func(tasks map[string]domain.Task) error {
		t, ok := tasks[id]
		if !ok || t.UserID != userID {
			return domain.ErrTaskNotFound
		}
		if t.IsCompleted() {
			return domain.ErrTaskAlreadyCompleted
		}
		t.Status = domain.StatusCompleted
		t.UpdatedAt = r.store.clock.Now()
		tasks[id] = t
		c := t.Clone()
		out = &c
		return nil
	})
	return out, err
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}
	return r.view(func(tasks map[string]domain.Task) error {
		current, ok := tasks[task.ID]
		if !ok || current.UserID != task.UserID {
			return domain.ErrTaskNotFound
		}
		if current.IsCompleted() && !task.IsCompleted() {
			return domain.ErrInvalidTransition
		}
		next := task.Clone()
		next.CreatedAt = current.CreatedAt
		next.ReminderSent = current.ReminderSent || task.ReminderSent
		next.UpdatedAt = r.store.clock.Now()
		tasks[task.ID] = next
		task.UpdatedAt = next.UpdatedAt
		task.ReminderSent = next.ReminderSent
		return nil
	})
}

func (r *taskRepository) MarkReminderSent(ctx context.Context, id string) error {
	return r.view(func(tasks map[string]domain.Task) error {
		t, ok := tasks[id]
		if !ok {
			return domain.ErrTaskNotFound
		}
		if t.ReminderSent {
			return nil
		}
		t.ReminderSent = true
		t.UpdatedAt = r.store.clock.Now()
		tasks[id] = t
		return nil
	})
}

func (r *taskRepository) ListReminderCandidates(ctx context.Context, now time.Time) ([]domain.Task, error) {
	return r.filter(func(t *domain.Task) bool { return t.WantsReminder(now) })
}

func (r *taskRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Task, error) {
	return r.filter(func(t *domain.Task) bool {
		return t.IsPending() && t.DueAt != nil && t.DueAt.Before(now)
	})
}

func (r *taskRepository) RunInTx(ctx context.Context, fn func(repo repository.TaskRepository) error) error {
	if r.staged != nil {
		return fn(r)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	staged := make(map[string]domain.Task, len(r.store.tasks))
	for id, t := range r.store.tasks {
		staged[id] = t.Clone()
	}
	if err := fn(&taskRepository{store: r.store, staged: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.tasks = staged
	return nil
}

func (r *taskRepository) filter(keep func(t *domain.Task) bool) ([]domain.Task, error) {
	var out []domain.Task
	err := r.view(func(tasks map[string]domain.Task) error {
		for _, t := range tasks {
			if keep(&t) {
				out = append(out, t.Clone())
			}
		}
		return nil
	})
	sortByCreation(out)
	return out, err
}
