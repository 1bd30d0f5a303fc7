// Package source implements the media source registry core: a
// thread-safe directory of pluggable content sources that are shown or
// hidden as network connectivity changes, with shown/hidden events
// broadcast synchronously to subscribers.
//
// # Reentrancy Protocol
//
// Subscriber callbacks are allowed to mutate the registry, including
// unregistering the very source they are being notified about. The
// notifier makes this safe with two rules:
//
//   - Traversal never walks the live registry map. Each cycle starts
//     from Registry.Snapshot, an immutable point-in-time copy of source
//     references, so concurrent Register/Unregister calls cannot
//     corrupt an in-progress traversal.
//
//   - Decisions are separated from effects. The cycle first classifies
//     every snapshotted source (read-only) into to-show and to-hide
//     lists, then applies the lists one at a time, re-validating each
//     source against the live registry immediately before touching it.
//     A source unregistered between classification and application is
//     skipped silently: no mutation, no event.
//
// # Visibility Policy
//
// Classification is a pure function of (source tags, environment,
// current visibility). The default ConnectivityPolicy maps the
// requires-local-network and requires-internet tags onto the matching
// Environment dimensions. When contradictory tags would justify both
// showing and hiding a source in the same cycle, show wins: a source is
// never hidden while any one of its satisfied requirements is met.
//
// # Concurrency
//
// Registry operations are safe for concurrent use. The notifier runs
// callbacks synchronously on the cycle's goroutine and assumes a single
// producer of environment-change events; connectivity.Monitor provides
// that serialization.
package source
