package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSDK is a controllable in-memory SDK. Initialize callbacks are held
// until the test resolves them.
type fakeSDK struct {
	mu          sync.Mutex
	initCalls   int
	initCfgs    []InitConfig
	initCbs     []InitCallback
	initialized bool
	sink        EventSink
	sinkSets    int
	loads       []string
	ready       map[string]bool
	shows       []string
	consent     []string
	panicOn     string
	syncInit    bool
}

func newFakeSDK() *fakeSDK { return &fakeSDK{ready: map[string]bool{}} }

func (f *fakeSDK) Initialize(ctx context.Context, cfg InitConfig, cb InitCallback) {
	f.mu.Lock()
	f.initCalls++
	f.initCfgs = append(f.initCfgs, cfg)
	f.initCbs = append(f.initCbs, cb)
	panicNow := f.panicOn == "initialize"
	syncInit := f.syncInit
	f.mu.Unlock()
	if panicNow {
		panic("boom")
	}
	if syncInit {
		f.succeedInit()
	}
}

func (f *fakeSDK) IsInitialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

func (f *fakeSDK) Load(adUnitID string, params LoadParams) {
	f.mu.Lock()
	f.loads = append(f.loads, adUnitID)
	panicNow := f.panicOn == "load"
	f.mu.Unlock()
	if panicNow {
		panic("load exploded")
	}
}

func (f *fakeSDK) HasAdReady(adUnitID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready[adUnitID]
}

func (f *fakeSDK) Show(adUnitID string, customData string) {
	f.mu.Lock()
	f.shows = append(f.shows, adUnitID+":"+customData)
	f.mu.Unlock()
}

func (f *fakeSDK) SetEventSink(sink EventSink) {
	f.mu.Lock()
	f.sink = sink
	f.sinkSets++
	f.mu.Unlock()
}

func (f *fakeSDK) UpdateConsent(status, version string) {
	f.mu.Lock()
	f.consent = append(f.consent, status+"/"+version)
	f.mu.Unlock()
}

// succeedInit resolves the most recent Initialize call.
func (f *fakeSDK) succeedInit() {
	f.mu.Lock()
	f.initialized = true
	cb := f.initCbs[len(f.initCbs)-1]
	f.mu.Unlock()
	cb.OnSuccess()
}

func (f *fakeSDK) failInit(err error) {
	f.mu.Lock()
	cb := f.initCbs[len(f.initCbs)-1]
	f.mu.Unlock()
	cb.OnError(err)
}

func (f *fakeSDK) eventSink() EventSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sink
}

func (f *fakeSDK) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls
}

func (f *fakeSDK) loadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

// recListener records every callback as "<event>:<ad unit>".
type recListener struct {
	mu        sync.Mutex
	calls     []string
	errs      []error
	completed [][]string
	rewards   []Reward
	onFailure func(adUnitID string, err error)
}

func (r *recListener) add(ev, id string) {
	r.mu.Lock()
	r.calls = append(r.calls, ev+":"+id)
	r.mu.Unlock()
}

func (r *recListener) OnLoadSuccess(id string) { r.add("load_success", id) }

func (r *recListener) OnLoadFailure(id string, err error) {
	r.mu.Lock()
	r.calls = append(r.calls, "load_failure:"+id)
	r.errs = append(r.errs, err)
	hook := r.onFailure
	r.mu.Unlock()
	if hook != nil {
		hook(id, err)
	}
}

func (r *recListener) OnAdStarted(id string) { r.add("started", id) }
func (r *recListener) OnAdClicked(id string) { r.add("clicked", id) }

func (r *recListener) OnAdCompleted(ids []string, reward Reward) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf("completed:%v", ids))
	r.completed = append(r.completed, ids)
	r.rewards = append(r.rewards, reward)
	r.mu.Unlock()
}

func (r *recListener) OnAdClosed(id string) { r.add("closed", id) }

func (r *recListener) OnPlaybackError(id string, err error) {
	r.mu.Lock()
	r.calls = append(r.calls, "playback_error:"+id)
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recListener) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recListener) Errs() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// initRec records init outcomes in order across listeners.
type initRec struct {
	mu  sync.Mutex
	log []string
	err []error
}

func (r *initRec) listener(name string) InitListener {
	return InitFuncs{
		Success: func() {
			r.mu.Lock()
			r.log = append(r.log, name+":ok")
			r.mu.Unlock()
		},
		Failure: func(err error) {
			r.mu.Lock()
			r.log = append(r.log, name+":fail")
			r.err = append(r.err, err)
			r.mu.Unlock()
		},
	}
}

func (r *initRec) Log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func newTestAdapter(t *testing.T, sdk SDK, cfg Config) *Adapter {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	a := NewWithConfig(sdk, cfg)
	t.Cleanup(a.Close)
	return a
}

// drain waits for the dispatch queue, failing the test on timeout.
func drain(t *testing.T, a *Adapter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Drain(ctx))
}

// initialized returns an adapter whose SDK finished initializing.
func initialized(t *testing.T) (*Adapter, *fakeSDK) {
	t.Helper()
	sdk := newFakeSDK()
	a := newTestAdapter(t, sdk, Config{})
	a.Initialize(context.Background(), InitConfig{AppID: "app"}, nil)
	sdk.succeedInit()
	drain(t, a)
	return a, sdk
}

const (
	testWait = time.Second
	testTick = 5 * time.Millisecond
)
