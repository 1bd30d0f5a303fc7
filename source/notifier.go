package source

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360/sourceregistry/errors"
)

// Subscriber receives visibility-change events. Callbacks are invoked
// synchronously on the goroutine running the environment-change cycle
// and must not block; a stalled subscriber stalls the cycle.
//
// Callbacks may freely call Register/Unregister on the registry,
// including unregistering the source currently being notified or any
// other source still pending in the cycle. The notifier walks
// already-captured action lists and re-validates liveness before each
// application, so such mutation is safe.
type Subscriber interface {
	// SourceShown notifies that a source has become visible
	SourceShown(s *Source)
	// SourceHidden notifies that a source has become hidden
	SourceHidden(s *Source)
}

// HandlerFuncs adapts plain functions to the Subscriber interface.
// Nil fields are simply not called.
type HandlerFuncs struct {
	Shown  func(s *Source)
	Hidden func(s *Source)
}

// SourceShown implements Subscriber
func (h HandlerFuncs) SourceShown(s *Source) {
	if h.Shown != nil {
		h.Shown(s)
	}
}

// SourceHidden implements Subscriber
func (h HandlerFuncs) SourceHidden(s *Source) {
	if h.Hidden != nil {
		h.Hidden(s)
	}
}

// Cycle outcomes reported to metrics
const (
	cycleCompleted = "completed"
	cycleAborted   = "aborted"
)

// Notifier applies visibility transitions in response to environment
// changes and broadcasts shown/hidden events to subscribers.
//
// Each cycle runs in five phases: snapshot the registry, classify every
// snapshotted source (read-only), apply shows, apply hides, discard the
// action lists. Classification is fully separated from application so
// that reacting to one source cannot invalidate the traversal of the
// next. A classification error aborts the cycle before any mutation.
//
// Precondition: environment-change events must be delivered by a single
// producer. Two concurrent EnvironmentChanged calls race; the notifier
// does not serialize them (connectivity.Monitor does).
type Notifier struct {
	registry *Registry
	policy   Policy
	logger   *slog.Logger
	metrics  *Metrics

	mu     sync.Mutex
	subs   map[int]Subscriber
	nextID int
}

// NewNotifier creates a notifier over the given registry and policy.
// A nil logger falls back to slog.Default; metrics may be nil.
func NewNotifier(registry *Registry, policy Policy, logger *slog.Logger, metrics *Metrics) (*Notifier, error) {
	if registry == nil {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "Notifier", "NewNotifier", "registry validation")
	}
	if policy == nil {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "Notifier", "NewNotifier", "policy validation")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Notifier{
		registry: registry,
		policy:   policy,
		logger:   logger,
		metrics:  metrics,
		subs:     make(map[int]Subscriber),
	}, nil
}

// Registry returns the registry the notifier operates on
func (n *Notifier) Registry() *Registry {
	return n.registry
}

// Subscribe adds a subscriber and returns a function that removes it.
// Delivery order across subscribers follows subscription order.
func (n *Notifier) Subscribe(sub Subscriber) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs[id] = sub

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// EnvironmentChanged runs one classify-then-apply cycle against the
// given environment. It returns an error only when classification
// fails; subscriber faults are isolated and reported via the logger
// and metrics.
func (n *Notifier) EnvironmentChanged(env Environment) error {
	start := time.Now()

	// Phase 1: snapshot. The live registry may mutate freely from here on.
	snapshot := n.registry.Snapshot()
	if len(snapshot) == 0 {
		n.observeCycle(start, cycleCompleted)
		return nil
	}

	// Phase 2: classify. Read-only; buffers decisions without applying them.
	var toShow, toHide []*Source
	for _, s := range snapshot {
		decision, err := n.policy.Classify(s, env)
		if err != nil {
			n.observeCycle(start, cycleAborted)
			n.logger.Error("visibility classification failed, aborting cycle",
				"source", s.ID(), "error", err)
			return errors.Wrap(
				fmt.Errorf("%w: %w", errors.ErrPolicyFailure, err),
				"Notifier", "EnvironmentChanged", "classification")
		}
		switch decision {
		case Show:
			toShow = append(toShow, s)
		case Hide:
			toHide = append(toHide, s)
		}
	}

	// Phases 3-4: apply shows, then hides, in snapshot order.
	for _, s := range toShow {
		n.apply(s, true)
	}
	for _, s := range toHide {
		n.apply(s, false)
	}

	n.observeCycle(start, cycleCompleted)
	return nil
}

// apply performs one visibility transition. The source is re-validated
// against the live registry immediately before being touched: a source
// unregistered between classification and application is skipped
// silently, never mutated and never announced.
func (n *Notifier) apply(s *Source, visible bool) {
	live, err := n.registry.Lookup(s.ID())
	if err != nil || live != s {
		// Unregistered mid-cycle (or replaced under the same ID).
		// Expected outcome, not a fault.
		if n.metrics != nil {
			n.metrics.SkippedStale.Inc()
		}
		n.logger.Debug("skipping stale source", "source", s.ID(), "show", visible)
		return
	}

	s.setVisible(visible)

	direction := "hidden"
	if visible {
		direction = "shown"
	}
	if n.metrics != nil {
		n.metrics.Transitions.WithLabelValues(direction).Inc()
	}
	n.logger.Debug("source visibility changed", "source", s.ID(), "direction", direction)

	for _, sub := range n.subscribers() {
		n.deliver(sub, s, visible)
	}
}

// deliver invokes one subscriber callback, isolating panics so a
// misbehaving subscriber cannot abort delivery to the rest.
func (n *Notifier) deliver(sub Subscriber, s *Source, visible bool) {
	defer func() {
		if r := recover(); r != nil {
			if n.metrics != nil {
				n.metrics.SubscriberFaults.Inc()
			}
			n.logger.Warn("subscriber panicked during event delivery",
				"source", s.ID(), "panic", r)
		}
	}()

	if visible {
		sub.SourceShown(s)
	} else {
		sub.SourceHidden(s)
	}
}

// subscribers returns a stable copy of the subscriber list so that
// subscribing or unsubscribing from within a callback cannot corrupt
// an in-progress delivery.
func (n *Notifier) subscribers() []Subscriber {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	// Subscription order == id order.
	sort.Ints(ids)

	subs := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, n.subs[id])
	}
	return subs
}

func (n *Notifier) observeCycle(start time.Time, outcome string) {
	if n.metrics == nil {
		return
	}
	n.metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	n.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	n.metrics.SourcesTotal.Set(float64(n.registry.Len()))
	n.metrics.SourcesVisible.Set(float64(n.registry.VisibleCount()))
}
