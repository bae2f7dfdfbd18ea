package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Check tests one dependency; a nil error means healthy.
type Check func(ctx context.Context) error

type namedCheck struct {
	name     string
	required bool
	check    Check
}

// Monitor polls registered checks on an interval and caches the result.
type Monitor struct {
	checks []namedCheck

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	done     sync.WaitGroup
	once     sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		interval: interval,
		timeout:  3 * time.Second,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Register adds a check. Required checks decide IsOnline. Call before Start.
func (m *Monitor) Register(name string, required bool, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, namedCheck{name: name, required: required, check: check})
}

// Start runs the first round synchronously, then keeps polling in the background.
func (m *Monitor) Start() {
	m.Refresh(context.Background())
	m.done.Add(1)
	go m.loop()
}

// Stop ends the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stopCh) })
	m.done.Wait()
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.status
	out.Components = make(map[string]bool, len(m.status.Components))
	for k, v := range m.status.Components {
		out.Components[k] = v
	}
	return out
}

func (m *Monitor) loop() {
	defer m.done.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once and stores the outcome.
func (m *Monitor) Refresh(ctx context.Context) {
	m.mu.RLock()
	checks := make([]namedCheck, len(m.checks))
	copy(checks, m.checks)
	m.mu.RUnlock()

	status := Status{Online: true, Components: make(map[string]bool, len(checks))}
	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.check(checkCtx)
		cancel()

		status.Components[c.name] = err == nil
		if err != nil {
			m.logger.Warn("dependency check failed", zap.String("component", c.name), zap.Error(err))
			if c.required {
				status.Online = false
			}
		}
	}
	status.LastCheck = time.Now()

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}
