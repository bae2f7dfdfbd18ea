package task

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/keylock"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/usecase"
)

// ConflictPolicy decides what a completion batch does when it meets an already completed
// task.
type ConflictPolicy string

const (
	// ConflictAbort rolls back the whole batch and reports the completed task.
	ConflictAbort ConflictPolicy = "abort"
	// ConflictSkip ignores the completed task and keeps going.
	ConflictSkip ConflictPolicy = "skip"
)

// ParseConflictPolicy defaults to ConflictAbort.
func ParseConflictPolicy(raw string) ConflictPolicy {
	if ConflictPolicy(strings.ToLower(strings.TrimSpace(raw))) == ConflictSkip {
		return ConflictSkip
	}
	return ConflictAbort
}

// ResultKind names the single category of effect an action had.
type ResultKind string

const (
	ResultNone             ResultKind = "none"
	ResultCompleted        ResultKind = "completed"
	ResultAlreadyCompleted ResultKind = "already_completed"
	ResultCreated          ResultKind = "created"
	ResultUpdated          ResultKind = "updated"
	ResultListed           ResultKind = "listed"
)

// Result describes what Apply did.
type Result struct {
	Kind ResultKind `json:"kind"`
	// Titles of the tasks affected, or the already completed task.
	Titles []string `json:"titles,omitempty"`
	// Tasks affected by the mutation, in request order.
	Tasks []domain.Task `json:"tasks,omitempty"`
	// Pending is the user's pending view after the action.
	Pending []domain.Task `json:"pending"`
}

type Config struct {
	ConflictPolicy ConflictPolicy
	// Location interprets zone-less timestamps coming from the parser.
	Location *time.Location
}

var errAbortBatch = errors.New("completion batch aborted")

// UseCase applies parsed actions to the task store.
type UseCase struct {
	tasks     repository.TaskRepository
	reminders usecase.ReminderScheduler
	locks     *keylock.Map
	cfg       Config
	logger    *zap.Logger
}

func New(tasks repository.TaskRepository, reminders usecase.ReminderScheduler, locks *keylock.Map, cfg Config, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = &keylock.Map{}
	}
	if cfg.ConflictPolicy == "" {
		cfg.ConflictPolicy = ConflictAbort
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &UseCase{
		tasks:     tasks,
		reminders: reminders,
		locks:     locks,
		cfg:       cfg,
		logger:    logger,
	}
}

// Apply runs the first non-empty category of the action, in the order completions,
// creations, updates, list.
func (uc *UseCase) Apply(ctx context.Context, userID string, action *domain.Action) (*Result, error) {
	if action == nil {
		return &Result{Kind: ResultNone}, nil
	}

	var (
		res *Result
		err error
	)
	switch {
	case len(action.Completions) > 0:
		res, err = uc.complete(ctx, userID, action.Completions)
	case len(action.Creations) > 0:
		res, err = uc.create(ctx, userID, action.Creations)
	case len(action.Updates) > 0:
		res, err = uc.update(ctx, userID, action.Updates)
	case action.WantsList():
		res = &Result{Kind: ResultListed}
	default:
		return &Result{Kind: ResultNone}, nil
	}
	if err != nil {
		return nil, err
	}

	res.Pending, err = uc.tasks.ListPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Create is a convenience for a single creation request.
func (uc *UseCase) Create(ctx context.Context, userID string, req domain.CreationRequest) (*Result, error) {
	return uc.Apply(ctx, userID, &domain.Action{Creations: []domain.CreationRequest{req}})
}

// ListPending returns the user's pending view.
func (uc *UseCase) ListPending(ctx context.Context, userID string) ([]domain.Task, error) {
	return uc.tasks.ListPending(ctx, userID)
}

func (uc *UseCase) complete(ctx context.Context, userID string, reqs []domain.CompletionRequest) (*Result, error) {
	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if id := req.ID.String(); id != "" {
			ids = append(ids, id)
		}
	}
	ids = dedupe(ids)

	unlock := uc.locks.LockAll(ids)
	defer unlock()

	var (
		completed []domain.Task
		already   *domain.Task
	)
	err := uc.tasks.RunInTx(ctx, func(repo repository.TaskRepository) error {
		completed = completed[:0]
		for _, id := range ids {
			task, err := repo.Complete(ctx, userID, id)
			switch {
			case errors.Is(err, domain.ErrTaskNotFound):
				uc.logger.Debug("completion skipped, task not found", zap.String("user_id", userID), zap.String("task_id", id))
				continue
			case errors.Is(err, domain.ErrTaskAlreadyCompleted):
				if uc.cfg.ConflictPolicy == ConflictSkip {
					continue
				}
				done, getErr := repo.Get(ctx, userID, id)
				if getErr != nil {
					return getErr
				}
				already = done
				return errAbortBatch
			case err != nil:
				return err
			}
			completed = append(completed, *task)
		}
		return nil
	})
	if errors.Is(err, errAbortBatch) {
		uc.logger.Info("completion batch aborted, task already completed",
			zap.String("user_id", userID),
			zap.String("task_id", already.ID))
		return &Result{
			Kind:   ResultAlreadyCompleted,
			Titles: []string{already.Title},
			Tasks:  []domain.Task{*already},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	for i := range completed {
		uc.reconcile(&completed[i])
	}
	uc.logger.Info("tasks completed", zap.String("user_id", userID), zap.Int("count", len(completed)))
	return &Result{Kind: ResultCompleted, Titles: titles(completed), Tasks: completed}, nil
}

func (uc *UseCase) create(ctx context.Context, userID string, reqs []domain.CreationRequest) (*Result, error) {
	drafts := make([]*domain.Task, 0, len(reqs))
	for i, req := range reqs {
		draft, err := uc.draft(userID, req)
		if err != nil {
			uc.logger.Warn("skipping malformed creation request",
				zap.String("user_id", userID),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		drafts = append(drafts, draft)
	}

	var created []domain.Task
	err := uc.tasks.RunInTx(ctx, func(repo repository.TaskRepository) error {
		created = created[:0]
		for _, draft := range drafts {
			task := draft.Clone()
			if _, err := repo.Create(ctx, &task); err != nil {
				return err
			}
			created = append(created, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range created {
		uc.reconcile(&created[i])
	}
	uc.logger.Info("tasks created", zap.String("user_id", userID), zap.Int("count", len(created)))
	return &Result{Kind: ResultCreated, Titles: titles(created), Tasks: created}, nil
}

func (uc *UseCase) draft(userID string, req domain.CreationRequest) (*domain.Task, error) {
	task := &domain.Task{
		UserID:   userID,
		Title:    strings.TrimSpace(req.Title),
		Priority: domain.ParsePriority(req.Priority),
		Status:   domain.StatusPending,
	}
	if task.Title == "" {
		return nil, domain.ErrEmptyTitle
	}
	task.DueAt = uc.optionalTime(userID, "due_date", req.DueDate)
	task.ReminderAt = uc.optionalTime(userID, "reminder_at", req.ReminderAt)
	return task, nil
}

// optionalTime drops unparseable values instead of failing the request.
func (uc *UseCase) optionalTime(userID, field, raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parsed, err := domain.ParseTime(raw, uc.cfg.Location)
	if err != nil {
		uc.logger.Warn("dropping unparseable time",
			zap.String("user_id", userID),
			zap.String("field", field),
			zap.String("value", raw))
		return nil
	}
	return &parsed
}

func (uc *UseCase) update(ctx context.Context, userID string, reqs []domain.UpdateRequest) (*Result, error) {
	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if id := req.ID.String(); id != "" {
			ids = append(ids, id)
		}
	}

	unlock := uc.locks.LockAll(ids)
	defer unlock()

	var updated []domain.Task
	err := uc.tasks.RunInTx(ctx, func(repo repository.TaskRepository) error {
		updated = updated[:0]
		for _, req := range reqs {
			id := req.ID.String()
			if id == "" {
				continue
			}
			task, err := repo.Get(ctx, userID, id)
			if errors.Is(err, domain.ErrTaskNotFound) {
				uc.logger.Debug("update skipped, task not found", zap.String("user_id", userID), zap.String("task_id", id))
				continue
			}
			if err != nil {
				return err
			}
			if !uc.applyFields(task, req.Fields) {
				continue
			}
			if err := repo.Update(ctx, task); err != nil {
				return err
			}
			updated = append(updated, *task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range updated {
		uc.reconcile(&updated[i])
	}
	uc.logger.Info("tasks updated", zap.String("user_id", userID), zap.Int("count", len(updated)))
	return &Result{Kind: ResultUpdated, Titles: titles(updated), Tasks: updated}, nil
}

// applyFields sets every known, well-formed field and reports whether anything applied.
func (uc *UseCase) applyFields(task *domain.Task, fields map[string]any) bool {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	applied := false
	for _, name := range names {
		field, err := domain.ParseUpdateField(name)
		if err != nil {
			uc.logger.Warn("rejecting unknown update field", zap.String("task_id", task.ID), zap.String("field", name))
			continue
		}
		if err := field.Apply(task, fields[name], uc.cfg.Location); err != nil {
			uc.logger.Warn("skipping update field",
				zap.String("task_id", task.ID),
				zap.String("field", string(field)),
				zap.Error(err))
			continue
		}
		applied = true
	}
	return applied
}

func (uc *UseCase) reconcile(task *domain.Task) {
	if uc.reminders == nil {
		return
	}
	uc.reminders.Reconcile(task)
}

func titles(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
