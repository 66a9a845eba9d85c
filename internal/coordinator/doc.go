// Package coordinator provides the process-wide coordination layer that sits
// between a mediation platform and a third-party ad network SDK. It is
// structured into small files by concern:
//
//   - adapter.go: Adapter type, constructor, public entry points (Initialize, LoadAd, ShowAd).
//   - config.go: Config and package defaults; NewWithConfig applies defaults.
//   - types.go: state, listener and parameter types shared by the components.
//   - sdk.go: the outbound SDK interface and the SDK-wide EventSink.
//   - errors.go: error types and helpers (IsAlreadyInFlight, IsNotReady, ...).
//   - initializer.go: SDK initialization state machine and pending callbacks.
//   - registry.go: per-ad-unit request registry with liveness handles.
//   - router.go: relays SDK events to registered listeners and cleans up.
//   - dispatch.go: serial queue all listener notifications run on.
//   - events.go, eventpub_memory.go: lifecycle events for observers and tests.
//   - metrics.go: Prometheus collectors.
//   - status.go: Snapshot reporting.
//
// One Adapter is constructed per SDK and shared by every call site. None of
// the public entry points block on the SDK: outcomes arrive on the supplied
// listeners, always from the dispatch goroutine except where documented.
package coordinator
