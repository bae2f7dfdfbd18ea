// Package reminder keeps one timer per task that wants a reminder and delivers it once.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/pkg/keylock"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/usecase"
)

// fireSlack tolerates timers that wake marginally before the stored instant.
const fireSlack = time.Second

var ErrStopped = errors.New("reminder scheduler stopped")

type Config struct {
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration
	// Location renders due times in reminder text.
	Location *time.Location
}

type entry struct {
	userID string
	at     time.Time
	gen    uint64
	timer  clock.Timer
}

// Scheduler owns the live reminder timers. Reconcile is safe for concurrent use.
type Scheduler struct {
	repo     repository.TaskRepository
	notifier usecase.Notifier
	clock    clock.Clock
	locks    *keylock.Map
	cfg      Config
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64
	stopped bool
}

func New(repo repository.TaskRepository, notifier usecase.Notifier, clk clock.Clock, locks *keylock.Map, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if locks == nil {
		locks = &keylock.Map{}
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		locks:    locks,
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]*entry),
	}
}

// Reconcile brings the timer for task in line with its persisted fields: any existing
// timer is stopped, and a new one is armed if the task still wants a reminder.
func (s *Scheduler) Reconcile(task *domain.Task) {
	if task == nil || task.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(task.ID)
	if s.stopped {
		return
	}

	now := s.clock.Now()
	if !task.WantsReminder(now) {
		return
	}

	s.gen++
	e := &entry{userID: task.UserID, at: *task.ReminderAt, gen: s.gen}
	id, gen := task.ID, s.gen
	e.timer = s.clock.AfterFunc(e.at.Sub(now), func() { s.onTimer(id, gen) })
	s.entries[id] = e

	s.logger.Debug("reminder armed",
		zap.String("task_id", id),
		zap.Time("reminder_at", e.at),
		zap.Uint64("generation", gen))
}

// Cancel stops the timer for id, if any.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(id)
}

// Armed returns the instant the timer for id is armed for.
func (s *Scheduler) Armed(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.at, true
}

// Len returns the number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Restore arms timers for every persisted task that still wants a reminder.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	tasks, err := s.repo.ListReminderCandidates(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("list reminder candidates: %w", err)
	}
	for i := range tasks {
		s.Reconcile(&tasks[i])
	}
	s.logger.Info("reminders restored", zap.Int("count", len(tasks)))
	return len(tasks), nil
}

// Stop cancels every timer and waits for in-flight deliveries.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for id := range s.entries {
		s.cancelLocked(id)
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fire runs the delivery path for one task: re-fetch, send, mark sent. It reports whether
// a reminder was delivered. A task that completed, was already reminded or was moved to a
// later instant is dropped silently.
func (s *Scheduler) Fire(ctx context.Context, userID, taskID string) (bool, error) {
	unlock := s.locks.Lock(taskID)
	defer unlock()

	task, err := s.repo.Get(ctx, userID, taskID)
	if errors.Is(err, domain.ErrTaskNotFound) {
		s.logger.Debug("reminder dropped, task gone", zap.String("task_id", taskID))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !task.ReminderDue(s.clock.Now().Add(fireSlack)) {
		s.logger.Debug("reminder dropped, task no longer due",
			zap.String("task_id", taskID),
			zap.String("status", string(task.Status)),
			zap.Bool("reminder_sent", task.ReminderSent))
		return false, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	if err := s.notifier.Send(sendCtx, task.UserID, Message(task, s.cfg.Location)); err != nil {
		return false, fmt.Errorf("deliver reminder: %w", err)
	}

	if err := s.repo.MarkReminderSent(ctx, taskID); err != nil {
		return true, fmt.Errorf("mark reminder sent: %w", err)
	}
	s.logger.Info("reminder delivered", zap.String("task_id", taskID), zap.String("user_id", task.UserID))
	return true, nil
}

func (s *Scheduler) onTimer(id string, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.entries, id)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if _, err := s.Fire(s.ctx, e.userID, id); err != nil {
		s.logger.Warn("reminder fire failed", zap.String("task_id", id), zap.Error(err))
	}
}

func (s *Scheduler) cancelLocked(id string) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(s.entries, id)
}

// Message renders the reminder text for task.
func Message(task *domain.Task, loc *time.Location) string {
	msg := fmt.Sprintf("🔔 Reminder: Time to start your task!\n\nTask: %s", task.Title)
	if task.DueAt != nil {
		if loc == nil {
			loc = time.Local
		}
		msg += "\nDue: " + task.DueAt.In(loc).Format("Mon, Jan 02, 03:04 PM")
	}
	return msg
}
