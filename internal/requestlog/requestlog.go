// Package requestlog keeps an in-memory record of the requests the HTTP API
// started and the platform callbacks each of them received.
package requestlog

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediationd/internal/mediation"
)

// Kinds of logged requests.
const (
	KindInitialize = "initialize"
	KindLoad       = "load"
)

// Record is one callback observed for a request.
type Record struct {
	Name   string
	At     time.Time
	Error  *mediation.AdError
	Reward *mediation.RewardItem
}

// Entry is a snapshot of one logged request.
type Entry struct {
	ID       string
	Network  string
	AdUnitID string
	Kind     string
	Created  time.Time
	Released bool
	Records  []Record
}

type entry struct {
	Entry
	ad *mediation.RewardedAd
}

// Log stores request entries until they are released or older than the TTL.
type Log struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

// New returns a log that expires entries older than ttl (0 keeps them).
func New(ttl time.Duration) *Log {
	return &Log{entries: make(map[string]*entry), ttl: ttl, now: time.Now}
}

// Start creates an entry and returns the recorder that fills it.
func (l *Log) Start(network, adUnitID, kind string) *Recorder {
	id := uuid.NewString()
	l.mu.Lock()
	l.entries[id] = &entry{Entry: Entry{ID: id, Network: network, AdUnitID: adUnitID, Kind: kind, Created: l.now()}}
	l.mu.Unlock()
	return &Recorder{log: l, id: id}
}

// Attach associates the rewarded ad serving a load entry.
func (l *Log) Attach(id string, ad *mediation.RewardedAd) {
	l.mu.Lock()
	if e, ok := l.entries[id]; ok {
		e.ad = ad
	}
	l.mu.Unlock()
}

// Ad returns the rewarded ad attached to id.
func (l *Log) Ad(id string) (*mediation.RewardedAd, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok || e.ad == nil || e.Released {
		return nil, false
	}
	return e.ad, true
}

// Get returns a copy of the entry for id.
func (l *Log) Get(id string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.copy(), true
}

// List returns every entry, oldest first.
func (l *Log) List() []Entry {
	l.mu.Lock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.copy())
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Release withdraws the request's listener. The entry stays readable.
func (l *Log) Release(id string) bool {
	var ad *mediation.RewardedAd
	l.mu.Lock()
	e, ok := l.entries[id]
	if ok {
		e.Released = true
		ad = e.ad
	}
	l.mu.Unlock()
	if ad != nil {
		ad.Release()
	}
	return ok
}

// Expire forgets entries older than the TTL and expires their ads, freeing
// any ad unit one of them still holds. It returns how many entries went.
func (l *Log) Expire() int {
	if l.ttl <= 0 {
		return 0
	}
	cutoff := l.now().Add(-l.ttl)
	var ads []*mediation.RewardedAd
	n := 0
	l.mu.Lock()
	for id, e := range l.entries {
		if e.Created.Before(cutoff) {
			if e.ad != nil {
				ads = append(ads, e.ad)
			}
			delete(l.entries, id)
			n++
		}
	}
	l.mu.Unlock()
	for _, ad := range ads {
		ad.Expire()
	}
	return n
}

// Len returns the number of stored entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) record(id string, r Record) {
	r.At = l.now()
	l.mu.Lock()
	if e, ok := l.entries[id]; ok {
		e.Records = append(e.Records, r)
	}
	l.mu.Unlock()
}

func (e *entry) copy() Entry {
	out := e.Entry
	out.Records = append([]Record(nil), e.Records...)
	return out
}
