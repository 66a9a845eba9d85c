package coordinator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Adapter composes initialization, admission and routing into the three
// request-level entry points exposed to the mediation platform.
type Adapter struct {
	name          string
	sdk           SDK
	registry      *Registry
	init          *initializer
	router        *router
	dispatch      *dispatcher
	initConfigFor func(adUnitID string) InitConfig
	log           zerolog.Logger
	publisher     EventPublisher
	closeOnce     sync.Once
}

// Name returns the network label the adapter was configured with.
func (a *Adapter) Name() string { return a.name }

// Initialize makes sure the SDK is initialized and reports the outcome on l.
// If the SDK is already initialized, l is notified before Initialize returns.
func (a *Adapter) Initialize(ctx context.Context, cfg InitConfig, l InitListener) {
	if l == nil {
		l = InitFuncs{}
	}
	a.init.ensure(ctx, cfg, l)
}

// LoadAd requests an ad for adUnitID. Only one request per ad unit may be in
// flight: a second call while the first listener is live fails synchronously
// with an AlreadyInFlight error and does not reach the SDK. The returned
// handle is nil when the request was rejected; releasing it, or canceling
// ctx, withdraws the listener.
func (a *Adapter) LoadAd(ctx context.Context, adUnitID string, params LoadParams, l Listener) *Handle {
	if l == nil {
		a.log.Warn().Str("ad_unit", adUnitID).Msg("load without listener ignored")
		return nil
	}
	if adUnitID == "" {
		loadRequestsTotal.WithLabelValues(a.name, "invalid").Inc()
		l.OnLoadFailure(adUnitID, invalidAdUnitError{})
		return nil
	}
	h, ok := a.registry.admit(ctx, adUnitID, l)
	if !ok {
		loadRequestsTotal.WithLabelValues(a.name, "denied").Inc()
		a.log.Info().Str("ad_unit", adUnitID).Msg("load denied, request already in flight")
		a.publisher.Publish(Event{Name: "load_denied", Network: a.name, AdUnitID: adUnitID, Fields: map[string]any{}})
		l.OnLoadFailure(adUnitID, ErrAlreadyInFlight(adUnitID))
		return nil
	}
	loadRequestsTotal.WithLabelValues(a.name, "admitted").Inc()
	a.log.Debug().Str("ad_unit", adUnitID).Uint64("request", h.ID()).Msg("load admitted")
	a.publisher.Publish(Event{Name: "load_admitted", Network: a.name, AdUnitID: adUnitID, Fields: map[string]any{"request": h.ID()}})

	a.init.ensure(ctx, a.initConfigFor(adUnitID), InitFuncs{
		Success: func() { a.issueLoad(adUnitID, params, h) },
		Failure: func(err error) { a.abandonLoad(adUnitID, h, err) },
	})
	return h
}

// issueLoad runs once the SDK is initialized. The registration may have been
// released in the meantime, in which case the SDK is never asked.
func (a *Adapter) issueLoad(adUnitID string, params LoadParams, h *Handle) {
	if !a.registry.owns(adUnitID, h) {
		a.registry.RemoveIfMatches(adUnitID, h)
		a.log.Debug().Str("ad_unit", adUnitID).Uint64("request", h.ID()).Msg("load dropped, request released")
		a.publisher.Publish(Event{Name: "load_dropped", Network: a.name, AdUnitID: adUnitID, Fields: map[string]any{"request": h.ID()}})
		return
	}
	if err := a.callSDK("load", func() { a.sdk.Load(adUnitID, params) }); err != nil {
		a.log.Error().Str("ad_unit", adUnitID).Err(err).Msg("sdk load faulted")
		a.router.fail("load_fault", adUnitID, err)
	}
}

// abandonLoad reports an initialization failure to an admitted request and
// frees its ad unit.
func (a *Adapter) abandonLoad(adUnitID string, h *Handle, err error) {
	l, ok := a.registry.takeIfMatches(adUnitID, h)
	if !ok {
		return
	}
	l.OnLoadFailure(adUnitID, err)
}

// ShowAd asks the SDK to present the ad loaded for adUnitID. It returns a
// NotReady error, and drops any stale registration, when the SDK has nothing
// to show. A nil return only means the show was handed to the SDK; the
// outcome arrives on the listener.
func (a *Adapter) ShowAd(adUnitID string, customData string) error {
	return a.show(adUnitID, customData, func() { a.registry.Remove(adUnitID) })
}

// ShowAdFor is ShowAd on behalf of the request holding h. It refuses with a
// NotRegistered error unless h is still the live registration for its ad
// unit, and on NotReady only drops h's own registration.
func (a *Adapter) ShowAdFor(h *Handle, customData string) error {
	adUnitID := h.AdUnitID()
	if !a.registry.owns(adUnitID, h) {
		showRequestsTotal.WithLabelValues(a.name, "not_registered").Inc()
		a.log.Info().Str("ad_unit", adUnitID).Uint64("request", h.ID()).Msg("show refused, request not registered")
		return notRegisteredError{adUnitID: adUnitID}
	}
	return a.show(adUnitID, customData, func() { a.registry.RemoveIfMatches(adUnitID, h) })
}

func (a *Adapter) show(adUnitID, customData string, clearStale func()) error {
	if adUnitID == "" || !a.sdk.HasAdReady(adUnitID) {
		clearStale()
		showRequestsTotal.WithLabelValues(a.name, "not_ready").Inc()
		a.log.Info().Str("ad_unit", adUnitID).Msg("show requested with no ad ready")
		a.publisher.Publish(Event{Name: "show_not_ready", Network: a.name, AdUnitID: adUnitID, Fields: map[string]any{}})
		return notReadyError{adUnitID: adUnitID}
	}
	if err := a.callSDK("show", func() { a.sdk.Show(adUnitID, customData) }); err != nil {
		showRequestsTotal.WithLabelValues(a.name, "fault").Inc()
		a.log.Error().Str("ad_unit", adUnitID).Err(err).Msg("sdk show faulted")
		a.router.terminal("show_fault", adUnitID, func(l Listener) { l.OnPlaybackError(adUnitID, err) })
		return err
	}
	showRequestsTotal.WithLabelValues(a.name, "shown").Inc()
	a.log.Debug().Str("ad_unit", adUnitID).Msg("show handed to sdk")
	return nil
}

// AdExpired drops the registration for adUnitID only if it still belongs to h.
func (a *Adapter) AdExpired(adUnitID string, h *Handle) bool {
	removed := a.registry.RemoveIfMatches(adUnitID, h)
	if removed {
		a.publisher.Publish(Event{Name: "ad_expired", Network: a.name, AdUnitID: adUnitID, Fields: map[string]any{"request": h.ID()}})
	}
	return removed
}

// ApplySettings re-initializes an already initialized SDK with cfg. It
// returns false when the SDK is not initialized yet.
func (a *Adapter) ApplySettings(ctx context.Context, cfg InitConfig) bool {
	return a.init.reinitialize(ctx, cfg)
}

// Owns reports whether h is still the live registration for adUnitID.
func (a *Adapter) Owns(adUnitID string, h *Handle) bool { return a.registry.owns(adUnitID, h) }

// Lookup returns the live listener registered for adUnitID.
func (a *Adapter) Lookup(adUnitID string) (Listener, bool) { return a.registry.Lookup(adUnitID) }

// Sweep reclaims registrations whose handles were released.
func (a *Adapter) Sweep() int { return a.registry.Sweep() }

// Drain waits until every listener notification queued so far has run.
// It must not be called from listener code.
func (a *Adapter) Drain(ctx context.Context) error { return a.dispatch.drain(ctx) }

// Close stops the dispatch goroutine after running queued notifications.
// Notifications produced afterwards run on the SDK's goroutine. It must not
// be called from listener code.
func (a *Adapter) Close() {
	a.closeOnce.Do(a.dispatch.close)
}

func (a *Adapter) callSDK(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = sdkFaultError{op: op, value: r}
		}
	}()
	fn()
	return nil
}
