package usecase

import (
	"context"

	"github.com/fastygo/taskpilot/domain"
)

// Parser turns free text into a structured action. An empty action means nothing was
// recognised.
type Parser interface {
	Parse(ctx context.Context, text string, pending []domain.TaskRef) (*domain.Action, error)
}

// Notifier delivers text to a user over the chat transport.
type Notifier interface {
	Send(ctx context.Context, userID, text string) error
}

// ReminderScheduler keeps timers in line with persisted task state.
type ReminderScheduler interface {
	Reconcile(task *domain.Task)
}
