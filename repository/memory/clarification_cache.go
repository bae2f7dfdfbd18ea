package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/repository"
)

type clarificationEntry struct {
	fingerprint string
	text        string
	expiresAt   time.Time
}

// ClarificationCache is a bounded, TTL-evicting fingerprint → text map. When full, the
// oldest entry is dropped.
type ClarificationCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	clock    clock.Clock
	order    *list.List
	index    map[string]*list.Element
}

// NewClarificationCache builds a cache holding at most capacity entries for ttl each.
func NewClarificationCache(capacity int, ttl time.Duration, clk clock.Clock) *ClarificationCache {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &ClarificationCache{
		ttl:      ttl,
		capacity: capacity,
		clock:    clk,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (c *ClarificationCache) Put(ctx context.Context, fingerprint, text string) error {
	if fingerprint == "" {
		return domain.ErrInvalidPayload
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.evictExpiredLocked(now)

	if el, ok := c.index[fingerprint]; ok {
		c.order.Remove(el)
		delete(c.index, fingerprint)
	}
	for c.order.Len() >= c.capacity {
		c.removeLocked(c.order.Front())
	}
	entry := &clarificationEntry{fingerprint: fingerprint, text: text, expiresAt: now.Add(c.ttl)}
	c.index[fingerprint] = c.order.PushBack(entry)
	return nil
}

func (c *ClarificationCache) Take(ctx context.Context, fingerprint string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpiredLocked(c.clock.Now())
	el, ok := c.index[fingerprint]
	if !ok {
		return "", domain.ErrClarificationNotFound
	}
	entry := el.Value.(*clarificationEntry)
	c.removeLocked(el)
	return entry.text, nil
}

func (c *ClarificationCache) Delete(ctx context.Context, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[fingerprint]; ok {
		c.removeLocked(el)
	}
	return nil
}

// Len reports live entries.
func (c *ClarificationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked(c.clock.Now())
	return c.order.Len()
}

// entries are appended in insertion order with a fixed TTL, so expiry order matches.
func (c *ClarificationCache) evictExpiredLocked(now time.Time) {
	for el := c.order.Front(); el != nil; el = c.order.Front() {
		if el.Value.(*clarificationEntry).expiresAt.After(now) {
			return
		}
		c.removeLocked(el)
	}
}

func (c *ClarificationCache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	entry := el.Value.(*clarificationEntry)
	delete(c.index, entry.fingerprint)
	c.order.Remove(el)
}

var _ repository.ClarificationRepository = (*ClarificationCache)(nil)
