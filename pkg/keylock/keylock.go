// Package keylock provides mutual exclusion per string key.
package keylock

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/moby/locker"
)

// Map hands out one mutex per key on top of locker.Locker, which drops keys nobody holds
// or waits on. The zero value is ready to use.
type Map struct {
	once   sync.Once
	locker *locker.Locker
	active atomic.Int64
}

func (m *Map) keys() *locker.Locker {
	m.once.Do(func() { m.locker = locker.New() })
	return m.locker
}

// Lock blocks until key is held and returns the matching unlock function. Calling the
// returned function more than once is a no-op.
func (m *Map) Lock(key string) func() {
	l := m.keys()
	m.active.Add(1)
	l.Lock(key)

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = l.Unlock(key)
			m.active.Add(-1)
		})
	}
}

// LockAll acquires every distinct key in sorted order, so overlapping batches cannot
// deadlock, and returns a single unlock function.
func (m *Map) LockAll(keys []string) func() {
	uniq := slices.Clone(keys)
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)

	unlocks := make([]func(), 0, len(uniq))
	for _, k := range uniq {
		unlocks = append(unlocks, m.Lock(k))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Len reports how many Lock calls currently hold or wait for a key.
func (m *Map) Len() int {
	return int(m.active.Load())
}
