package repository

import "context"

// ClarificationRepository keeps the original text of messages awaiting a time choice,
// keyed by fingerprint. Entries expire on their own.
type ClarificationRepository interface {
	Put(ctx context.Context, fingerprint, text string) error
	// Take returns and removes the entry, or domain.ErrClarificationNotFound.
	Take(ctx context.Context, fingerprint string) (string, error)
	Delete(ctx context.Context, fingerprint string) error
}
