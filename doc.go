// Package sourceregistry provides a registry of pluggable media content
// sources with reentrant-safe change notification: sources are shown or
// hidden as network connectivity changes, and shown/hidden events are
// broadcast synchronously to subscribers that are free to mutate the
// registry from inside their own callbacks.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│       connectivity.Monitor          │  Serializes environment
//	│  (single producer of env changes)   │  changes, one at a time
//	└─────────────────────────────────────┘
//	           ↓ EnvironmentChanged
//	┌─────────────────────────────────────┐
//	│        source.Notifier              │  Snapshot → classify →
//	│  (classify-then-apply cycle)        │  apply shows → apply hides
//	└─────────────────────────────────────┘
//	           ↓ events            ↑ register/unregister
//	┌─────────────────────────────────────┐
//	│  Subscribers (UI, natspub bridge)   │  May mutate the registry
//	│                                     │  reentrantly
//	└─────────────────────────────────────┘
//
// The core hazard this library exists to contain is iterating a mutable
// keyed collection while change handlers invoked from inside the loop
// insert or remove entries. Every traversal that can trigger callbacks
// runs over an immutable snapshot, decisions are buffered before any of
// them is applied, and each pending action re-validates its source
// against the live registry immediately before touching it.
//
// # Packages
//
//   - source: registry, snapshot, visibility policy and notifier
//   - connectivity: serialized environment-change delivery
//   - natspub: optional NATS bridge republishing visibility events
//   - config: configuration loading, validation and policy construction
//   - health: health status reporting for collaborators
//   - errors: classified errors and wrapping helpers
//
// # Scope
//
// This is an in-process library core. It does not persist registry
// state, does not detect connectivity itself, does not load or discover
// source plugins, and performs no authorization on registration.
package sourceregistry
