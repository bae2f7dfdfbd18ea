package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRequiredChecksDecideOnline(t *testing.T) {
	var storeDown atomic.Bool
	m := New(time.Hour, nil)
	m.Register("postgres", true, func(context.Context) error {
		if storeDown.Load() {
			return errors.New("connection refused")
		}
		return nil
	})
	m.Register("redis", false, func(context.Context) error { return errors.New("no route") })

	m.Start()
	defer m.Stop()

	assert.True(t, m.IsOnline())
	status := m.GetStatus()
	assert.True(t, status.Components["postgres"])
	assert.False(t, status.Components["redis"])
	assert.False(t, status.LastCheck.IsZero())

	storeDown.Store(true)
	m.Refresh(context.Background())
	assert.False(t, m.IsOnline())
}

func TestNoChecksIsOnline(t *testing.T) {
	m := New(0, nil)
	m.Refresh(context.Background())
	assert.True(t, m.IsOnline())
}

func TestPollingLoop(t *testing.T) {
	var calls atomic.Int32
	m := New(10*time.Millisecond, nil)
	m.Register("bolt", true, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	m.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()
}
