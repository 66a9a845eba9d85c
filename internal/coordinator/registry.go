package coordinator

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// Handle is the liveness token of one admitted load request. The registry
// holds it alongside the listener; once released, the registration is
// treated as absent even if its key is still present.
type Handle struct {
	adUnitID string
	gen      uint64
	released atomic.Bool

	mu   sync.Mutex
	stop func() bool
}

// AdUnitID returns the ad unit the handle was admitted for.
func (h *Handle) AdUnitID() string {
	if h == nil {
		return ""
	}
	return h.adUnitID
}

// ID is unique per admission within one registry.
func (h *Handle) ID() uint64 {
	if h == nil {
		return 0
	}
	return h.gen
}

// Release withdraws interest in the request. Later SDK events for the ad
// unit are not delivered and a new LoadAd for it is admitted. Idempotent.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.released.Store(true)
}

// Alive reports whether the handle has not been released.
func (h *Handle) Alive() bool {
	return h != nil && !h.released.Load()
}

// watch releases h when ctx is canceled.
func (h *Handle) watch(ctx context.Context) {
	if ctx == nil || ctx.Done() == nil {
		return
	}
	stop := context.AfterFunc(ctx, h.Release)
	h.mu.Lock()
	h.stop = stop
	h.mu.Unlock()
}

// unwatch drops the context hook once the registration is gone.
func (h *Handle) unwatch() {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
}

type registration struct {
	listener Listener
	handle   *Handle
}

// Registry maps ad unit identifiers to the single live listener awaiting
// events for that unit.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]registration
	gen      uint64
	onChange func(n int)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Admit registers l for adUnitID unless a live listener is already
// registered, in which case it returns false and leaves the existing entry.
func (r *Registry) Admit(adUnitID string, l Listener) (*Handle, bool) {
	return r.admit(context.Background(), adUnitID, l)
}

// admit is Admit with the handle released when ctx is canceled. The hook is
// installed before the entry becomes visible, so a concurrent removal always
// finds it and unregisters it.
func (r *Registry) admit(ctx context.Context, adUnitID string, l Listener) (*Handle, bool) {
	if adUnitID == "" || l == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[adUnitID]; ok {
		if e.handle.Alive() {
			return nil, false
		}
		e.handle.unwatch()
	}
	r.gen++
	h := &Handle{adUnitID: adUnitID, gen: r.gen}
	h.watch(ctx)
	r.entries[adUnitID] = registration{listener: l, handle: h}
	r.changedLocked()
	return h, true
}

// Lookup returns the live listener for adUnitID. A released listener is
// reported as absent and its entry dropped.
func (r *Registry) Lookup(adUnitID string) (Listener, bool) {
	l, _, ok := r.lookup(adUnitID)
	return l, ok
}

func (r *Registry) lookup(adUnitID string) (Listener, *Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.liveLocked(adUnitID)
	if !ok {
		return nil, nil, false
	}
	return e.listener, e.handle, true
}

// take removes and returns the live listener for adUnitID.
func (r *Registry) take(adUnitID string) (Listener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.liveLocked(adUnitID)
	if !ok {
		return nil, false
	}
	r.deleteLocked(adUnitID, e)
	return e.listener, true
}

// takeIfMatches removes and returns the listener registered under h, if h
// is still the current registration for adUnitID and alive.
func (r *Registry) takeIfMatches(adUnitID string, h *Handle) (Listener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[adUnitID]
	if !ok || e.handle != h {
		return nil, false
	}
	r.deleteLocked(adUnitID, e)
	return e.listener, h.Alive()
}

// owns reports whether h is the live registration for adUnitID.
func (r *Registry) owns(adUnitID string, h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[adUnitID]
	return ok && e.handle == h && h.Alive()
}

// Remove drops the entry for adUnitID. No-op if absent.
func (r *Registry) Remove(adUnitID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[adUnitID]; ok {
		r.deleteLocked(adUnitID, e)
	}
}

// RemoveIfMatches drops the entry for adUnitID only if it is still the
// registration identified by h. A stale caller therefore cannot remove a
// newer registration for the same key.
func (r *Registry) RemoveIfMatches(adUnitID string, h *Handle) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[adUnitID]
	if !ok || e.handle != h {
		return false
	}
	r.deleteLocked(adUnitID, e)
	return true
}

// Sweep drops every entry whose handle was released and returns how many.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if !e.handle.Alive() {
			r.deleteLocked(id, e)
			n++
		}
	}
	return n
}

// Keys returns the ad unit identifiers with a live listener, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for id, e := range r.entries {
		if e.handle.Alive() {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of stored entries, including released ones not yet reclaimed.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) liveLocked(adUnitID string) (registration, bool) {
	e, ok := r.entries[adUnitID]
	if !ok {
		return registration{}, false
	}
	if !e.handle.Alive() {
		r.deleteLocked(adUnitID, e)
		return registration{}, false
	}
	return e, true
}

func (r *Registry) deleteLocked(adUnitID string, e registration) {
	delete(r.entries, adUnitID)
	e.handle.unwatch()
	r.changedLocked()
}

func (r *Registry) changedLocked() {
	if r.onChange != nil {
		r.onChange(len(r.entries))
	}
}
