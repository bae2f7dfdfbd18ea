// Package lifecycle runs the long-lived components of the service and stops them in
// reverse start order.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShutdownFunc describes a graceful shutdown callback.
type ShutdownFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   ShutdownFunc
}

// Manager coordinates background runners, graceful shutdown hooks and OS signals.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	group *errgroup.Group
	ctx   context.Context

	mu    sync.Mutex
	hooks []hook
	done  bool
}

// New creates a lifecycle manager bound to ctx. Runners started with Go see a context
// that is cancelled when ctx ends or any runner fails.
func New(ctx context.Context, timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	group, groupCtx := errgroup.WithContext(ctx)
	return &Manager{
		timeout: timeout,
		logger:  logger,
		group:   group,
		ctx:     groupCtx,
	}
}

// Context is cancelled once shutdown should begin.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Go starts a named runner. A runner returning a non-nil error triggers shutdown.
func (m *Manager) Go(name string, run func(ctx context.Context) error) {
	m.group.Go(func() error {
		err := run(m.ctx)
		if err != nil {
			m.logger.Error("component failed", zap.String("component", name), zap.Error(err))
		}
		return err
	})
}

// Register adds a shutdown hook. Hooks are executed in reverse order.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Shutdown executes all registered hooks once, respecting the configured timeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return nil
	}
	m.done = true

	var result error
	for i := len(m.hooks) - 1; i >= 0; i-- {
		h := m.hooks[i]
		if err := h.fn(ctx); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", h.name), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		m.logger.Info("component stopped", zap.String("component", h.name))
	}
	return result
}

// Wait blocks until the manager context ends, runs the shutdown hooks and then waits for
// every runner. It returns the first runner error joined with any hook error.
func (m *Manager) Wait() error {
	<-m.ctx.Done()
	hookErr := m.Shutdown(context.Background())
	runErr := m.group.Wait()
	return errors.Join(runErr, hookErr)
}

// Listen invokes cancel on the first SIGTERM or SIGINT.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
			cancel()
		case <-m.ctx.Done():
		}
	}()
}
