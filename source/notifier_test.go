package source

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sourceregistry/errors"
)

// eventRecorder collects delivered events in order
type eventRecorder struct {
	shown  []string
	hidden []string
}

func (r *eventRecorder) SourceShown(s *Source)  { r.shown = append(r.shown, s.ID()) }
func (r *eventRecorder) SourceHidden(s *Source) { r.hidden = append(r.hidden, s.ID()) }

func newTestNotifier(t *testing.T) (*Notifier, *Registry) {
	t.Helper()
	registry := NewRegistry()
	notifier, err := NewNotifier(registry, DefaultConnectivityPolicy(), slog.Default(), nil)
	require.NoError(t, err)
	return notifier, registry
}

func TestNewNotifier_Validation(t *testing.T) {
	_, err := NewNotifier(nil, DefaultConnectivityPolicy(), nil, nil)
	assert.Error(t, err)

	_, err = NewNotifier(NewRegistry(), nil, nil, nil)
	assert.Error(t, err)
}

func TestEnvironmentChanged_EmptyRegistry(t *testing.T) {
	notifier, _ := newTestNotifier(t)
	recorder := &eventRecorder{}
	notifier.Subscribe(recorder)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))
	assert.Empty(t, recorder.shown)
	assert.Empty(t, recorder.hidden)
}

// Register A{requires-internet} and B{requires-local-network}, both
// hidden; internet comes up while the local network stays down. Exactly
// one shown event for A, none for B.
func TestEnvironmentChanged_SelectiveShow(t *testing.T) {
	notifier, registry := newTestNotifier(t)

	a := newTestSource(t, "a", TagRequiresInternet)
	b := newTestSource(t, "b", TagRequiresLocalNetwork)
	require.NoError(t, registry.Register(a))
	require.NoError(t, registry.Register(b))

	recorder := &eventRecorder{}
	notifier.Subscribe(recorder)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true, LocalNetwork: false}))

	assert.Equal(t, []string{"a"}, recorder.shown)
	assert.Empty(t, recorder.hidden)
	assert.True(t, a.Visible())
	assert.False(t, b.Visible())
}

func TestEnvironmentChanged_HideOnLoss(t *testing.T) {
	notifier, registry := newTestNotifier(t)

	a, err := New(Config{ID: "a", Name: "a", Tags: []string{TagRequiresInternet}, Visible: true})
	require.NoError(t, err)
	require.NoError(t, registry.Register(a))

	recorder := &eventRecorder{}
	notifier.Subscribe(recorder)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: false}))

	assert.Equal(t, []string{"a"}, recorder.hidden)
	assert.Empty(t, recorder.shown)
	assert.False(t, a.Visible())
}

// A source whose visibility already matches the environment produces no
// event and no mutation.
func TestEnvironmentChanged_Idempotent(t *testing.T) {
	notifier, registry := newTestNotifier(t)

	a, err := New(Config{ID: "a", Name: "a", Tags: []string{TagRequiresInternet}, Visible: true})
	require.NoError(t, err)
	require.NoError(t, registry.Register(a))

	recorder := &eventRecorder{}
	notifier.Subscribe(recorder)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))
	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))

	assert.Empty(t, recorder.shown)
	assert.Empty(t, recorder.hidden)
	assert.True(t, a.Visible())
}

// Shows are delivered before hides, each list in snapshot (ID) order.
func TestEnvironmentChanged_Ordering(t *testing.T) {
	notifier, registry := newTestNotifier(t)

	hideFirst, err := New(Config{ID: "a-hide", Name: "a", Tags: []string{TagRequiresLocalNetwork}, Visible: true})
	require.NoError(t, err)
	showLate := newTestSource(t, "z-show", TagRequiresInternet)
	showEarly := newTestSource(t, "b-show", TagRequiresInternet)
	require.NoError(t, registry.Register(hideFirst))
	require.NoError(t, registry.Register(showLate))
	require.NoError(t, registry.Register(showEarly))

	var order []string
	notifier.Subscribe(HandlerFuncs{
		Shown:  func(s *Source) { order = append(order, "shown:"+s.ID()) },
		Hidden: func(s *Source) { order = append(order, "hidden:"+s.ID()) },
	})

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true, LocalNetwork: false}))

	assert.Equal(t, []string{"shown:b-show", "shown:z-show", "hidden:a-hide"}, order)
}

// A contradictory tag combination ends the cycle visible with exactly
// one shown event, never a hidden one.
func TestEnvironmentChanged_ShowPrecedence(t *testing.T) {
	notifier, registry := newTestNotifier(t)

	both := newTestSource(t, "both", TagRequiresInternet, TagRequiresLocalNetwork)
	require.NoError(t, registry.Register(both))

	recorder := &eventRecorder{}
	notifier.Subscribe(recorder)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true, LocalNetwork: false}))

	assert.Equal(t, []string{"both"}, recorder.shown)
	assert.Empty(t, recorder.hidden)
	assert.True(t, both.Visible())
}

// A subscriber that unregisters a different, not-yet-processed source
// causes that source to be skipped silently: no event, no crash.
func TestEnvironmentChanged_ReentrantUnregisterOfPending(t *testing.T) {
	notifier, registry := newTestNotifier(t)

	first := newTestSource(t, "a", TagRequiresInternet)
	second := newTestSource(t, "b", TagRequiresInternet)
	require.NoError(t, registry.Register(first))
	require.NoError(t, registry.Register(second))

	recorder := &eventRecorder{}
	notifier.Subscribe(HandlerFuncs{
		Shown: func(s *Source) {
			if s.ID() == "a" {
				_, err := registry.Unregister("b")
				require.NoError(t, err)
			}
		},
	})
	notifier.Subscribe(recorder)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))

	assert.Equal(t, []string{"a"}, recorder.shown)
	assert.False(t, second.Visible(), "skipped source must not be mutated")
	_, err := registry.Lookup("b")
	assert.ErrorIs(t, err, errors.ErrSourceNotFound)
}

// A subscriber to hidden events unregisters the very source being
// notified; no crash, no duplicate events, subsequent lookup misses.
func TestEnvironmentChanged_UnregisterSelfInHandler(t *testing.T) {
	notifier, registry := newTestNotifier(t)

	a, err := New(Config{ID: "a", Name: "a", Tags: []string{TagRequiresInternet}, Visible: true})
	require.NoError(t, err)
	require.NoError(t, registry.Register(a))

	recorder := &eventRecorder{}
	notifier.Subscribe(HandlerFuncs{
		Hidden: func(s *Source) {
			_, err := registry.Unregister(s.ID())
			require.NoError(t, err)
		},
	})
	notifier.Subscribe(recorder)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: false}))

	assert.Equal(t, []string{"a"}, recorder.hidden)
	_, err = registry.Lookup("a")
	assert.ErrorIs(t, err, errors.ErrSourceNotFound)

	// A second cycle sees an empty registry and stays quiet.
	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))
	assert.Empty(t, recorder.shown)
}

// A subscriber registering a new source mid-cycle must not affect the
// in-progress traversal; the newcomer is picked up by the next cycle.
func TestEnvironmentChanged_ReentrantRegister(t *testing.T) {
	notifier, registry := newTestNotifier(t)

	require.NoError(t, registry.Register(newTestSource(t, "a", TagRequiresInternet)))

	recorder := &eventRecorder{}
	notifier.Subscribe(HandlerFuncs{
		Shown: func(s *Source) {
			if s.ID() == "a" {
				require.NoError(t, registry.Register(newTestSource(t, "late", TagRequiresInternet)))
			}
		},
	})
	notifier.Subscribe(recorder)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))
	assert.Equal(t, []string{"a"}, recorder.shown)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))
	assert.Equal(t, []string{"a", "late"}, recorder.shown)
}

// Unregistering and re-registering a different source under the same ID
// between classification and application must not apply the stale action
// to the newcomer.
func TestEnvironmentChanged_ReplacedIDIsSkipped(t *testing.T) {
	notifier, registry := newTestNotifier(t)

	require.NoError(t, registry.Register(newTestSource(t, "a", TagRequiresInternet)))
	require.NoError(t, registry.Register(newTestSource(t, "b", TagRequiresInternet)))

	var replacement *Source
	notifier.Subscribe(HandlerFuncs{
		Shown: func(s *Source) {
			if s.ID() == "a" {
				_, err := registry.Unregister("b")
				require.NoError(t, err)
				replacement = newTestSource(t, "b", TagRequiresInternet)
				require.NoError(t, registry.Register(replacement))
			}
		},
	})
	recorder := &eventRecorder{}
	notifier.Subscribe(recorder)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))

	assert.Equal(t, []string{"a"}, recorder.shown)
	assert.False(t, replacement.Visible())
}

func TestEnvironmentChanged_PolicyErrorAbortsCycle(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	registry := NewRegistry()
	boom := fmt.Errorf("boom")
	policy := PolicyFunc(func(_ *Source, _ Environment) (Decision, error) {
		return NoOp, boom
	})
	notifier, err := NewNotifier(registry, policy, slog.Default(), metrics)
	require.NoError(t, err)

	a := newTestSource(t, "a", TagRequiresInternet)
	require.NoError(t, registry.Register(a))

	recorder := &eventRecorder{}
	notifier.Subscribe(recorder)

	err = notifier.EnvironmentChanged(Environment{Internet: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPolicyFailure)
	assert.ErrorIs(t, err, boom)

	// Aborted before any mutation or notification.
	assert.False(t, a.Visible())
	assert.Empty(t, recorder.shown)
	assert.Empty(t, recorder.hidden)

	// The aborted cycle is still accounted for.
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("aborted")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("completed")))
}

// One panicking subscriber must not stop delivery to the others or to
// the remaining sources in the action list.
func TestEnvironmentChanged_SubscriberFaultIsolation(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	registry := NewRegistry()
	notifier, err := NewNotifier(registry, DefaultConnectivityPolicy(), slog.Default(), metrics)
	require.NoError(t, err)

	require.NoError(t, registry.Register(newTestSource(t, "a", TagRequiresInternet)))
	require.NoError(t, registry.Register(newTestSource(t, "b", TagRequiresInternet)))

	notifier.Subscribe(HandlerFuncs{
		Shown: func(_ *Source) { panic("bad subscriber") },
	})
	recorder := &eventRecorder{}
	notifier.Subscribe(recorder)

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))

	assert.Equal(t, []string{"a", "b"}, recorder.shown)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.SubscriberFaults))
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	notifier, registry := newTestNotifier(t)
	require.NoError(t, registry.Register(newTestSource(t, "a", TagRequiresInternet)))

	recorder := &eventRecorder{}
	unsubscribe := notifier.Subscribe(recorder)
	unsubscribe()

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))
	assert.Empty(t, recorder.shown)
}

func TestEnvironmentChanged_Metrics(t *testing.T) {
	promRegistry := prometheus.NewRegistry()
	metrics := NewMetrics(promRegistry)
	registry := NewRegistry()
	notifier, err := NewNotifier(registry, DefaultConnectivityPolicy(), slog.Default(), metrics)
	require.NoError(t, err)

	require.NoError(t, registry.Register(newTestSource(t, "a", TagRequiresInternet)))
	require.NoError(t, registry.Register(newTestSource(t, "b", TagRequiresLocalNetwork)))

	require.NoError(t, notifier.EnvironmentChanged(Environment{Internet: true}))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("aborted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Transitions.WithLabelValues("shown")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Transitions.WithLabelValues("hidden")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.SourcesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SourcesVisible))
}
