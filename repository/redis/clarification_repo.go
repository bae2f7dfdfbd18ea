package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/repository"
)

type clarificationRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewClarificationRepository stores pending clarifications in Redis with a TTL, so they
// survive process restarts until they expire.
func NewClarificationRepository(client *redislib.Client, ttl time.Duration) repository.ClarificationRepository {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &clarificationRepository{
		client: client,
		prefix: "clarification:",
		ttl:    ttl,
	}
}

func (r *clarificationRepository) Put(ctx context.Context, fingerprint, text string) error {
	if fingerprint == "" {
		return domain.ErrInvalidPayload
	}
	return r.client.Set(ctx, r.key(fingerprint), text, r.ttl).Err()
}

func (r *clarificationRepository) Take(ctx context.Context, fingerprint string) (string, error) {
	text, err := r.client.GetDel(ctx, r.key(fingerprint)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", domain.ErrClarificationNotFound
		}
		return "", err
	}
	return text, nil
}

func (r *clarificationRepository) Delete(ctx context.Context, fingerprint string) error {
	return r.client.Del(ctx, r.key(fingerprint)).Err()
}

func (r *clarificationRepository) key(fingerprint string) string {
	return fmt.Sprintf("%s%s", r.prefix, fingerprint)
}
