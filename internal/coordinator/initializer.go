package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// initializer owns the SDK initialization state machine. At most one
// underlying Initialize call is in flight; callers arriving meanwhile are
// queued and notified together, in arrival order, when it resolves.
type initializer struct {
	name string

	mu      sync.Mutex
	state   InitState
	pending []InitListener
	attempt uint64
	started time.Time
	lastErr string
	reinits uint64

	sdk       SDK
	sink      EventSink
	dispatch  *dispatcher
	consent   *Consent
	log       zerolog.Logger
	publisher EventPublisher
}

// ensure delivers l's success once the SDK is initialized, starting an
// initialization if none is running.
func (in *initializer) ensure(ctx context.Context, cfg InitConfig, l InitListener) {
	sdkReady := in.sdk.IsInitialized()

	in.mu.Lock()
	switch {
	case in.state == StateInitializing:
		in.pending = append(in.pending, l)
		n := len(in.pending)
		in.mu.Unlock()
		in.log.Debug().Int("pending", n).Msg("init already in flight, queued")
		return

	case in.state == StateInitialized || sdkReady:
		in.state = StateInitialized
		in.mu.Unlock()
		// Re-install the router on every call; the SDK keeps a single sink.
		in.sdk.SetEventSink(in.sink)
		l.OnInitSuccess()
		return
	}

	in.state = StateInitializing
	in.attempt++
	gen := in.attempt
	in.started = time.Now()
	in.pending = append(in.pending, l)
	in.mu.Unlock()

	in.log.Info().Uint64("attempt", gen).Str("app_id", cfg.AppID).Msg("init start")
	in.publisher.Publish(Event{Name: "init_start", Network: in.name, AdUnitID: cfg.AdUnitID, Fields: map[string]any{"attempt": gen}})
	initAttemptsTotal.WithLabelValues(in.name).Inc()

	cb := &initCallback{in: in, gen: gen}
	if err := in.callInitialize(detach(ctx), cfg, cb); err != nil {
		cb.OnError(err)
	}
}

// reinitialize re-issues Initialize with new settings. It only acts when the
// SDK is already initialized; otherwise the next ensure picks cfg up.
func (in *initializer) reinitialize(ctx context.Context, cfg InitConfig) bool {
	in.mu.Lock()
	if in.state != StateInitialized {
		in.mu.Unlock()
		return false
	}
	in.reinits++
	in.mu.Unlock()

	in.log.Info().Msg("settings changed, re-initializing")
	in.publisher.Publish(Event{Name: "reinit_start", Network: in.name, Fields: map[string]any{}})
	cb := &reinitCallback{in: in}
	if err := in.callInitialize(detach(ctx), cfg, cb); err != nil {
		cb.OnError(err)
	}
	return true
}

func (in *initializer) callInitialize(ctx context.Context, cfg InitConfig, cb InitCallback) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = sdkFaultError{op: "initialize", value: r}
		}
	}()
	in.sdk.Initialize(ctx, cfg, cb)
	return nil
}

func (in *initializer) succeeded(gen uint64) {
	in.mu.Lock()
	if gen != in.attempt || in.state != StateInitializing {
		in.mu.Unlock()
		in.log.Warn().Uint64("attempt", gen).Msg("stale init success ignored")
		return
	}
	in.state = StateInitialized
	in.lastErr = ""
	waiters := in.pending
	in.pending = nil
	dur := time.Since(in.started)
	in.mu.Unlock()

	// Routing must be active before any waiter can issue a load.
	in.sdk.SetEventSink(in.sink)
	in.pushConsent()

	in.log.Info().Uint64("attempt", gen).Int("waiters", len(waiters)).Dur("dur", dur).Msg("init ready")
	in.publisher.Publish(Event{Name: "init_ready", Network: in.name, Fields: map[string]any{"attempt": gen, "waiters": len(waiters), "dur_ms": int(dur / time.Millisecond)}})
	initOutcomesTotal.WithLabelValues(in.name, "success").Inc()

	in.dispatch.post(func() {
		for _, w := range waiters {
			in.dispatch.safely("init_success", w.OnInitSuccess)
		}
	})
}

func (in *initializer) failed(gen uint64, cause error) {
	in.mu.Lock()
	if gen != in.attempt || in.state != StateInitializing {
		in.mu.Unlock()
		in.log.Warn().Uint64("attempt", gen).Err(cause).Msg("stale init failure ignored")
		return
	}
	in.state = StateUninitialized
	waiters := in.pending
	in.pending = nil
	err := ErrInitializationFailed(cause)
	in.lastErr = err.Error()
	in.mu.Unlock()

	in.log.Error().Uint64("attempt", gen).Int("waiters", len(waiters)).Err(cause).Msg("init failed")
	in.publisher.Publish(Event{Name: "init_failed", Network: in.name, Fields: map[string]any{"attempt": gen, "error": err.Error()}})
	initOutcomesTotal.WithLabelValues(in.name, "failure").Inc()

	in.dispatch.post(func() {
		for _, w := range waiters {
			in.dispatch.safely("init_failure", func() { w.OnInitFailure(err) })
		}
	})
}

func (in *initializer) pushConsent() {
	if in.consent == nil {
		return
	}
	if cu, ok := in.sdk.(ConsentUpdater); ok {
		cu.UpdateConsent(in.consent.Status, in.consent.Version)
	}
}

// initCallback resolves one initialization attempt exactly once.
type initCallback struct {
	in   *initializer
	gen  uint64
	once sync.Once
}

func (cb *initCallback) OnSuccess() { cb.once.Do(func() { cb.in.succeeded(cb.gen) }) }

func (cb *initCallback) OnError(err error) { cb.once.Do(func() { cb.in.failed(cb.gen, err) }) }

// reinitCallback observes a settings-driven re-initialization. The state
// stays Initialized either way.
type reinitCallback struct {
	in   *initializer
	once sync.Once
}

func (cb *reinitCallback) OnSuccess() {
	cb.once.Do(func() {
		cb.in.sdk.SetEventSink(cb.in.sink)
		cb.in.pushConsent()
		cb.in.log.Info().Msg("re-init ready")
		cb.in.publisher.Publish(Event{Name: "reinit_ready", Network: cb.in.name, Fields: map[string]any{}})
	})
}

func (cb *reinitCallback) OnError(err error) {
	cb.once.Do(func() {
		cb.in.log.Error().Err(err).Msg("re-init failed")
		cb.in.publisher.Publish(Event{Name: "reinit_failed", Network: cb.in.name, Fields: map[string]any{"error": err.Error()}})
	})
}
