// Package wellness periodically auto-completes overdue self-care tasks.
package wellness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/pkg/keylock"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/usecase"
	"github.com/fastygo/taskpilot/usecase/clarify"
)

// StoreHealth reports whether the task store is reachable.
type StoreHealth interface {
	IsOnline() bool
}

// Policy controls which overdue tasks a sweep completes.
type Policy struct {
	Interval    time.Duration
	GracePeriod time.Duration
	// Keywords mark a title as a wellness task.
	Keywords []string
	// ImmediateKeywords complete as soon as the task is overdue, ignoring grace and
	// priority.
	ImmediateKeywords  []string
	RequireLowPriority bool
	// NotifyUserID receives a summary after a sweep that completed something.
	NotifyUserID string
}

// Sweeper runs Sweep on a cron schedule.
type Sweeper struct {
	repo      repository.TaskRepository
	reminders usecase.ReminderScheduler
	notifier  usecase.Notifier
	health    StoreHealth
	clock     clock.Clock
	locks     *keylock.Map
	policy    Policy
	logger    *zap.Logger
	cron      *cron.Cron

	keywords  clarify.Keywords
	immediate clarify.Keywords
}

func New(
	repo repository.TaskRepository,
	reminders usecase.ReminderScheduler,
	notifier usecase.Notifier,
	health StoreHealth,
	clk clock.Clock,
	locks *keylock.Map,
	policy Policy,
	logger *zap.Logger,
) *Sweeper {
	if policy.Interval <= 0 {
		policy.Interval = 30 * time.Minute
	}
	if policy.GracePeriod < 0 {
		policy.GracePeriod = 0
	}
	if len(policy.Keywords) == 0 {
		policy.Keywords = clarify.WellnessKeywords
	}
	if policy.ImmediateKeywords == nil {
		policy.ImmediateKeywords = []string{"break"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if locks == nil {
		locks = &keylock.Map{}
	}

	s := &Sweeper{
		repo:      repo,
		reminders: reminders,
		notifier:  notifier,
		health:    health,
		clock:     clk,
		locks:     locks,
		policy:    policy,
		logger:    logger,
		cron:      cron.New(cron.WithSeconds()),
		keywords:  clarify.NewKeywords(policy.Keywords),
		immediate: clarify.NewKeywords(policy.ImmediateKeywords),
	}

	schedule := fmt.Sprintf("@every %ds", int(policy.Interval.Seconds()))
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		logger.Error("invalid wellness schedule", zap.String("schedule", schedule), zap.Error(err))
	}
	return s
}

// Start launches the cron scheduler.
func (s *Sweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("wellness sweeper started", zap.Duration("interval", s.policy.Interval))
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("wellness sweeper stopped")
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.policy.Interval)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("wellness sweep failed", zap.Error(err))
	}
}

// Sweep completes every qualifying task in one transaction and returns how many it
// completed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.health != nil && !s.health.IsOnline() {
		s.logger.Debug("skipping wellness sweep (store offline)")
		return 0, nil
	}

	now := s.clock.Now()
	overdue, err := s.repo.ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}

	candidates := make([]domain.Task, 0, len(overdue))
	ids := make([]string, 0, len(overdue))
	for _, t := range overdue {
		if s.Qualifies(&t, now) {
			candidates = append(candidates, t)
			ids = append(ids, t.ID)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	unlock := s.locks.LockAll(ids)
	defer unlock()

	var completed []domain.Task
	err = s.repo.RunInTx(ctx, func(repo repository.TaskRepository) error {
		completed = completed[:0]
		for _, c := range candidates {
			// The task may have changed between the scan and the lock.
			current, err := repo.Get(ctx, c.UserID, c.ID)
			if errors.Is(err, domain.ErrTaskNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !s.Qualifies(current, now) {
				continue
			}
			done, err := repo.Complete(ctx, c.UserID, c.ID)
			if errors.Is(err, domain.ErrTaskAlreadyCompleted) {
				continue
			}
			if err != nil {
				return err
			}
			completed = append(completed, *done)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i := range completed {
		if s.reminders != nil {
			s.reminders.Reconcile(&completed[i])
		}
		s.logger.Info("wellness task auto-completed",
			zap.String("task_id", completed[i].ID),
			zap.String("user_id", completed[i].UserID),
			zap.String("title", completed[i].Title))
	}
	s.notify(ctx, completed)
	return len(completed), nil
}

// Qualifies reports whether task would be auto-completed at now.
func (s *Sweeper) Qualifies(task *domain.Task, now time.Time) bool {
	if !task.IsPending() || task.DueAt == nil || !task.DueAt.Before(now) {
		return false
	}
	if s.immediate.Match(task.Title) {
		return true
	}
	if !s.keywords.Match(task.Title) {
		return false
	}
	if !task.DueAt.Before(now.Add(-s.policy.GracePeriod)) {
		return false
	}
	return !s.policy.RequireLowPriority || task.Priority == domain.PriorityLow
}

func (s *Sweeper) notify(ctx context.Context, completed []domain.Task) {
	if s.notifier == nil || s.policy.NotifyUserID == "" || len(completed) == 0 {
		return
	}
	titles := make([]string, 0, len(completed))
	for _, t := range completed {
		titles = append(titles, t.Title)
	}
	text := fmt.Sprintf("🧘 Auto-completed %d wellness task(s): %s", len(completed), strings.Join(titles, ", "))
	if err := s.notifier.Send(ctx, s.policy.NotifyUserID, text); err != nil {
		s.logger.Warn("wellness summary not delivered", zap.Error(err))
	}
}
