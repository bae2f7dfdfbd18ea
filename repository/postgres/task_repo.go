package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/repository"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type taskRepository struct {
	pool  *pgxpool.Pool
	db    querier
	clock clock.Clock
	inTx  bool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
// created_at and updated_at come from clk, not the database server.
func NewTaskRepository(pool *pgxpool.Pool, clk clock.Clock) repository.TaskRepository {
	if clk == nil {
		clk = clock.Real{}
	}
	return &taskRepository{pool: pool, db: pool, clock: clk}
}

const taskColumns = `id, user_id, title, due_at, reminder_at, priority, status, reminder_sent, created_at, updated_at`

const pendingOrder = `
	ORDER BY (due_at IS NULL), due_at ASC,
		CASE priority
			WHEN 'urgent' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			WHEN 'low' THEN 3
			ELSE 4
		END,
		created_at, id
`

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

	const query = `
	INSERT INTO tasks (id, user_id, title, due_at, reminder_at, priority, status, reminder_sent, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	RETURNING created_at, updated_at
	`

	if err := r.db.QueryRow(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		nullTimePtr(task.DueAt),
		nullTimePtr(task.ReminderAt),
		string(task.Priority),
		string(task.Status),
		task.ReminderSent,
		r.clock.Now(),
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

func (r *taskRepository) Get(ctx context.Context, userID, id string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	return scanTask(r.db.QueryRow(ctx, query, id, userID))
}

func (r *taskRepository) ListPending(ctx context.Context, userID string) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + `
	FROM tasks
	WHERE user_id = $1 AND status = 'pending'
	` + pendingOrder
	return r.list(ctx, query, userID)
}

func (r *taskRepository) Complete(ctx context.Context, userID, id string) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET status = 'completed',
		updated_at = $3
	WHERE id = $1 AND user_id = $2 AND status <> 'completed'
	RETURNING ` + taskColumns

	task, err := scanTask(r.db.QueryRow(ctx, query, id, userID, r.clock.Now()))
	if errors.Is(err, domain.ErrTaskNotFound) {
		if _, getErr := r.Get(ctx, userID, id); getErr != nil {
			return nil, getErr
		}
		return nil, domain.ErrTaskAlreadyCompleted
	}
	return task, err
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $3,
		due_at = $4,
		reminder_at = $5,
		priority = $6,
		status = $7,
		reminder_sent = reminder_sent OR $8,
		updated_at = $9
	WHERE id = $1 AND user_id = $2
	  AND (status <> 'completed' OR $7 = 'completed')
	RETURNING reminder_sent, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		nullTimePtr(task.DueAt),
		nullTimePtr(task.ReminderAt),
		string(task.Priority),
		string(task.Status),
		task.ReminderSent,
		r.clock.Now(),
	).Scan(&task.ReminderSent, &task.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, task.UserID, task.ID); getErr != nil {
			return getErr
		}
		return domain.ErrInvalidTransition
	}
	return err
}

func (r *taskRepository) MarkReminderSent(ctx context.Context, id string) error {
	const query = `
	UPDATE tasks
	SET reminder_sent = TRUE,
		updated_at = $2
	WHERE id = $1 AND reminder_sent = FALSE
	`
	tag, err := r.db.Exec(ctx, query, id, r.clock.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) ListReminderCandidates(ctx context.Context, now time.Time) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + `
	FROM tasks
	WHERE status = 'pending'
	  AND reminder_sent = FALSE
	  AND reminder_at IS NOT NULL
	  AND reminder_at > $1
	ORDER BY reminder_at ASC, id
	`
	return r.list(ctx, query, now)
}

func (r *taskRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + `
	FROM tasks
	WHERE status = 'pending'
	  AND due_at IS NOT NULL
	  AND due_at < $1
	ORDER BY due_at ASC, id
	`
	return r.list(ctx, query, now)
}

func (r *taskRepository) RunInTx(ctx context.Context, fn func(repo repository.TaskRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&taskRepository{pool: r.pool, db: tx, clock: r.clock, inTx: true})
	})
}

func (r *taskRepository) list(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row interface {
	Scan(dest ...any) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		due, reminder    *time.Time
		priority, status string
	)

	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&due,
		&reminder,
		&priority,
		&status,
		&task.ReminderSent,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.DueAt = due
	task.ReminderAt = reminder
	task.Priority = domain.Priority(priority)
	task.Status = domain.Status(status)
	return &task, nil
}
