package coordinator

import (
	"strconv"

	"github.com/rs/zerolog"
)

// router is the EventSink installed on the SDK. Every event is marshalled
// onto the dispatch goroutine, where the listener is looked up and called.
// Terminal events take the registration out of the registry before the
// listener runs, so a listener may immediately load the same ad unit again.
type router struct {
	name      string
	registry  *Registry
	dispatch  *dispatcher
	log       zerolog.Logger
	publisher EventPublisher
}

var _ EventSink = (*router)(nil)

func (r *router) LoadSuccess(adUnitID string) {
	r.relay("load_success", adUnitID, func(l Listener) { l.OnLoadSuccess(adUnitID) })
}

func (r *router) LoadFailure(adUnitID string, code ErrorCode) {
	r.fail("load_failure", adUnitID, ErrLoadFailed(adUnitID, code))
}

func (r *router) Started(adUnitID string) {
	r.relay("started", adUnitID, func(l Listener) { l.OnAdStarted(adUnitID) })
}

func (r *router) Clicked(adUnitID string) {
	r.relay("clicked", adUnitID, func(l Listener) { l.OnAdClicked(adUnitID) })
}

// Completed fans out once per live listener, each scoped to its own unit.
func (r *router) Completed(adUnitIDs []string, reward Reward) {
	ids := dedupe(adUnitIDs)
	r.dispatch.post(func() {
		for _, id := range ids {
			l, ok := r.registry.Lookup(id)
			r.observe("completed", id, ok)
			if !ok {
				continue
			}
			scoped := []string{id}
			r.dispatch.safely("completed", func() { l.OnAdCompleted(scoped, reward) })
		}
	})
}

func (r *router) PlaybackError(adUnitID string, code ErrorCode) {
	r.terminal("playback_error", adUnitID, func(l Listener) { l.OnPlaybackError(adUnitID, ErrPlayback(adUnitID, code)) })
}

func (r *router) Closed(adUnitID string) {
	r.terminal("closed", adUnitID, func(l Listener) { l.OnAdClosed(adUnitID) })
}

// fail delivers a load failure carrying err and cleans up.
func (r *router) fail(event, adUnitID string, err error) {
	r.terminal(event, adUnitID, func(l Listener) { l.OnLoadFailure(adUnitID, err) })
}

func (r *router) relay(event, adUnitID string, deliver func(Listener)) {
	r.dispatch.post(func() {
		l, ok := r.registry.Lookup(adUnitID)
		r.observe(event, adUnitID, ok)
		if ok {
			deliver(l)
		}
	})
}

func (r *router) terminal(event, adUnitID string, deliver func(Listener)) {
	r.dispatch.post(func() {
		l, ok := r.registry.take(adUnitID)
		r.observe(event, adUnitID, ok)
		if ok {
			deliver(l)
		}
	})
}

func (r *router) observe(event, adUnitID string, delivered bool) {
	routedEventsTotal.WithLabelValues(r.name, event, strconv.FormatBool(delivered)).Inc()
	r.log.Debug().Str("event", event).Str("ad_unit", adUnitID).Bool("delivered", delivered).Msg("route")
	r.publisher.Publish(Event{Name: "route_" + event, Network: r.name, AdUnitID: adUnitID, Fields: map[string]any{"delivered": delivered}})
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
