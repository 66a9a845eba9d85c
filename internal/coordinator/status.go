package coordinator

// Snapshot is a read-only projection of the adapter state.
type Snapshot struct {
	Network      string
	State        InitState
	PendingInits int
	InitAttempts uint64
	Reinits      uint64
	LastError    string
	AdUnits      []string
	Entries      int
	QueuedTasks  int
}

// Snapshot returns a read-only view of the adapter state.
func (a *Adapter) Snapshot() Snapshot {
	a.init.mu.Lock()
	s := Snapshot{
		Network:      a.name,
		State:        a.init.state,
		PendingInits: len(a.init.pending),
		InitAttempts: a.init.attempt,
		Reinits:      a.init.reinits,
		LastError:    a.init.lastErr,
	}
	a.init.mu.Unlock()
	s.AdUnits = a.registry.Keys()
	s.Entries = a.registry.Len()
	s.QueuedTasks = a.dispatch.pending()
	return s
}

// State returns the current initialization state.
func (a *Adapter) State() InitState {
	a.init.mu.Lock()
	defer a.init.mu.Unlock()
	return a.init.state
}
