// Package bolt stores tasks in an embedded BoltDB file for single-node deployments.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskpilot/domain"
	boltInfra "github.com/fastygo/taskpilot/internal/infrastructure/bolt"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/repository"
)

type taskRepository struct {
	db    *bolt.DB
	tx    *bolt.Tx
	clock clock.Clock
}

// NewTaskRepository returns a BoltDB-backed TaskRepository. The buckets must already
// exist (see internal/infrastructure/bolt.Open).
func NewTaskRepository(db *bolt.DB, clk clock.Clock) repository.TaskRepository {
	if clk == nil {
		clk = clock.Real{}
	}
	return &taskRepository{db: db, clock: clk}
}

func (r *taskRepository) update(fn func(tx *bolt.Tx) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.db.Update(fn)
}

func (r *taskRepository) view(fn func(tx *bolt.Tx) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.db.View(fn)
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
	now := r.clock.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	err := r.update(func(tx *bolt.Tx) error {
		if err := putTask(tx, task); err != nil {
			return err
		}
		return tx.Bucket(boltInfra.UserIndexBucket).Put(indexKey(task.UserID, task.ID), nil)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Get(ctx context.Context, userID, id string) (*domain.Task, error) {
	var task *domain.Task
	err := r.view(func(tx *bolt.Tx) error {
		var err error
		task, err = getScoped(tx, userID, id)
		return err
	})
	return task, err
}

func (r *taskRepository) ListPending(ctx context.Context, userID string) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.view(func(tx *bolt.Tx) error {
		prefix := indexKey(userID, "")
		c := tx.Bucket(boltInfra.UserIndexBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			task, err := getTask(tx, string(k[len(prefix):]))
			if err != nil {
				return err
			}
			if task.IsPending() {
				tasks = append(tasks, *task)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByCreation(tasks)
	domain.SortPending(tasks)
	return tasks, nil
}

func (r *taskRepository) Complete(ctx context.Context, userID, id string) (*domain.Task, error) {
	var task *domain.Task
	err := r.update(func(tx *bolt.Tx) error {
		current, err := getScoped(tx, userID, id)
		if err != nil {
			return err
		}
		if current.IsCompleted() {
			return domain.ErrTaskAlreadyCompleted
		}
		current.Status = domain.StatusCompleted
		current.UpdatedAt = r.clock.Now()
		task = current
		return putTask(tx, current)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}
	return r.update(func(tx *bolt.Tx) error {
		current, err := getScoped(tx, task.UserID, task.ID)
		if err != nil {
			return err
		}
		if current.IsCompleted() && !task.IsCompleted() {
			return domain.ErrInvalidTransition
		}
		next := task.Clone()
		next.CreatedAt = current.CreatedAt
		next.ReminderSent = current.ReminderSent || task.ReminderSent
		next.UpdatedAt = r.clock.Now()
		if err := putTask(tx, &next); err != nil {
			return err
		}
		task.ReminderSent = next.ReminderSent
		task.UpdatedAt = next.UpdatedAt
		return nil
	})
}

func (r *taskRepository) MarkReminderSent(ctx context.Context, id string) error {
	return r.update(func(tx *bolt.Tx) error {
		task, err := getTask(tx, id)
		if err != nil {
			return err
		}
		if task.ReminderSent {
			return nil
		}
		task.ReminderSent = true
		task.UpdatedAt = r.clock.Now()
		return putTask(tx, task)
	})
}

func (r *taskRepository) ListReminderCandidates(ctx context.Context, now time.Time) ([]domain.Task, error) {
	return r.scan(func(t *domain.Task) bool { return t.WantsReminder(now) })
}

func (r *taskRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Task, error) {
	return r.scan(func(t *domain.Task) bool {
		return t.IsPending() && t.DueAt != nil && t.DueAt.Before(now)
	})
}

func (r *taskRepository) RunInTx(ctx context.Context, fn func(repo repository.TaskRepository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		if err := fn(&taskRepository{db: r.db, tx: tx, clock: r.clock}); err != nil {
			return err
		}
		return ctx.Err()
	})
}

func (r *taskRepository) scan(keep func(t *domain.Task) bool) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.view(func(tx *bolt.Tx) error {
		return tx.Bucket(boltInfra.TasksBucket).ForEach(func(_, v []byte) error {
			var task domain.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			if keep(&task) {
				tasks = append(tasks, task)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortByCreation(tasks)
	return tasks, nil
}

func getScoped(tx *bolt.Tx, userID, id string) (*domain.Task, error) {
	task, err := getTask(tx, id)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

func getTask(tx *bolt.Tx, id string) (*domain.Task, error) {
	raw := tx.Bucket(boltInfra.TasksBucket).Get([]byte(id))
	if raw == nil {
		return nil, domain.ErrTaskNotFound
	}
	var task domain.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func putTask(tx *bolt.Tx, task *domain.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return tx.Bucket(boltInfra.TasksBucket).Put([]byte(task.ID), payload)
}

func indexKey(userID, taskID string) []byte {
	key := make([]byte, 0, len(userID)+1+len(taskID))
	key = append(key, userID...)
	key = append(key, 0)
	return append(key, taskID...)
}
