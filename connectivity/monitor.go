// Package connectivity feeds network reachability changes into the
// source registry's notification cycle.
//
// The registry does not detect connectivity itself; a platform
// collaborator (a network manager binding, a probe loop) observes
// reachability and reports it via Monitor.SetState. The monitor applies
// states from a single goroutine, which makes the notifier's
// single-producer precondition structural: cycles never overlap, and
// states are applied in submission order.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/sourceregistry/errors"
	"github.com/c360/sourceregistry/health"
	"github.com/c360/sourceregistry/source"
)

// Default buffer for pending state updates; reachability flaps faster
// than this are coalesced by the dedup in SetState anyway.
const updateBuffer = 16

// Monitor owns the current environment state and drives the notifier
type Monitor struct {
	notifier *source.Notifier
	logger   *slog.Logger

	mu        sync.RWMutex
	env       source.Environment // last applied state
	submitted source.Environment // last accepted by SetState
	started   bool
	lastErr   error

	updates chan source.Environment
	stopCh  chan struct{}
	done    chan struct{}
}

// NewMonitor creates a connectivity monitor driving the given notifier.
// The initial environment is fully unreachable.
func NewMonitor(notifier *source.Notifier, logger *slog.Logger) (*Monitor, error) {
	if notifier == nil {
		// Nil notifier is a programming error, not bad input.
		return nil, errors.WrapFatal(
			errors.ErrInvalidConfig, "Monitor", "NewMonitor", "notifier validation")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Start launches the applying goroutine. The monitor stops when Stop is
// called or the context is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Monitor", "Start", "state check")
	}

	m.updates = make(chan source.Environment, updateBuffer)
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.started = true

	go m.run(ctx)

	m.logger.Info("connectivity monitor started")
	return nil
}

// Stop shuts the monitor down, waiting up to timeout for the applying
// goroutine to finish its current cycle.
func (m *Monitor) Stop(timeout time.Duration) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Monitor", "Stop", "state check")
	}
	m.started = false
	stopCh, done := m.stopCh, m.done
	m.mu.Unlock()

	close(stopCh)

	select {
	case <-done:
		m.logger.Info("connectivity monitor stopped")
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrStopTimeout, "Monitor", "Stop", "shutdown wait")
	}
}

// SetState reports a new reachability state. Equal consecutive states
// are dropped without triggering a cycle. Safe for concurrent use; the
// applying goroutine serializes actual cycles.
func (m *Monitor) SetState(env source.Environment) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Monitor", "SetState", "state check")
	}
	if env == m.submitted {
		m.mu.Unlock()
		return nil
	}
	m.submitted = env
	updates, stopCh := m.updates, m.stopCh
	m.mu.Unlock()

	select {
	case updates <- env:
		return nil
	case <-stopCh:
		return errors.WrapInvalid(errors.ErrShuttingDown, "Monitor", "SetState", "enqueue")
	}
}

// State returns the last applied environment
func (m *Monitor) State() source.Environment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.env
}

// Health reports the monitor's health. A failed last cycle degrades the
// monitor without marking it unhealthy: the registry itself is intact
// and the next state change retries classification.
func (m *Monitor) Health() health.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.started {
		return health.NewUnhealthy("connectivity-monitor", "not started")
	}
	if m.lastErr != nil {
		return health.NewDegraded("connectivity-monitor", "last cycle failed: "+m.lastErr.Error())
	}
	return health.NewHealthy("connectivity-monitor", "applying connectivity changes")
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case env := <-m.updates:
			m.apply(env)
		case <-m.stopCh:
			return
		case <-ctx.Done():
			m.logger.Info("connectivity monitor context cancelled")
			m.markStopped()
			return
		}
	}
}

// markStopped transitions the monitor to stopped when the start context
// is cancelled, so SetState and Health observe the shutdown exactly as
// they would after Stop. The started check keeps this from racing Stop
// into a double close of stopCh.
func (m *Monitor) markStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		m.started = false
		close(m.stopCh)
	}
}

func (m *Monitor) apply(env source.Environment) {
	err := m.notifier.EnvironmentChanged(env)
	if err != nil {
		m.logger.Error("environment change cycle failed",
			"local_network", env.LocalNetwork, "internet", env.Internet, "error", err)
	} else {
		m.logger.Debug("environment change applied",
			"local_network", env.LocalNetwork, "internet", env.Internet)
	}

	m.mu.Lock()
	m.env = env
	m.lastErr = err
	m.mu.Unlock()
}
