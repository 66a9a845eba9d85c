// Package sdksim is an in-process stand-in for a third-party ad network SDK.
// It honours the coordinator.SDK contract: every outcome is delivered
// asynchronously, after a configurable delay, on a goroutine of its own.
package sdksim

import (
	"context"
	"errors"
	"maps"
	"math/rand"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"mediationd/internal/coordinator"
)

// Error codes emitted by the simulator.
const (
	CodeNoFill         coordinator.ErrorCode = 3
	CodeNotInitialized coordinator.ErrorCode = 4
	CodeNotLoaded      coordinator.ErrorCode = 5
)

// Config controls simulated behavior. Zero values mean "instant" and "always fill".
type Config struct {
	InitDelay time.Duration
	// InitError, when set, makes every initialization fail with this message.
	InitError string
	LoadDelay time.Duration
	// FillRate is the probability a load succeeds; values <= 0 mean 1.
	FillRate float64
	// NoFill makes every load fail with NoFillCode, whatever FillRate says.
	NoFill     bool
	NoFillCode coordinator.ErrorCode
	ShowDelay  time.Duration
	// Click emits a click between started and completed.
	Click  bool
	Reward coordinator.Reward
	Seed   int64
}

// SDK simulates an ad network client.
type SDK struct {
	cfg Config

	mu          sync.Mutex
	initialized bool
	sink        coordinator.EventSink
	ready       map[string]bool
	rng         *rand.Rand
	initCount   int
	settings    map[string]string
	consent     coordinator.Consent

	wg   conc.WaitGroup
	done chan struct{}
	once sync.Once
}

var (
	_ coordinator.SDK            = (*SDK)(nil)
	_ coordinator.ConsentUpdater = (*SDK)(nil)
)

// New returns a simulator using cfg.
func New(cfg Config) *SDK {
	if cfg.FillRate <= 0 || cfg.FillRate > 1 {
		cfg.FillRate = 1
	}
	if cfg.NoFillCode == 0 {
		cfg.NoFillCode = CodeNoFill
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SDK{
		cfg:   cfg,
		ready: make(map[string]bool),
		rng:   rand.New(rand.NewSource(seed)),
		done:  make(chan struct{}),
	}
}

func (s *SDK) Initialize(ctx context.Context, cfg coordinator.InitConfig, cb coordinator.InitCallback) {
	s.mu.Lock()
	s.initCount++
	s.settings = maps.Clone(cfg.Settings)
	s.mu.Unlock()
	s.after(ctx, s.cfg.InitDelay, func() {
		if s.cfg.InitError != "" {
			cb.OnError(errors.New(s.cfg.InitError))
			return
		}
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
		cb.OnSuccess()
	}, func(err error) { cb.OnError(err) })
}

func (s *SDK) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *SDK) Load(adUnitID string, params coordinator.LoadParams) {
	s.after(context.Background(), s.cfg.LoadDelay, func() {
		s.mu.Lock()
		if !s.initialized {
			sink := s.sink
			s.mu.Unlock()
			if sink != nil {
				sink.LoadFailure(adUnitID, CodeNotInitialized)
			}
			return
		}
		fill := !s.cfg.NoFill && s.rng.Float64() < s.cfg.FillRate
		if fill {
			s.ready[adUnitID] = true
		}
		sink := s.sink
		s.mu.Unlock()
		if sink == nil {
			return
		}
		if fill {
			sink.LoadSuccess(adUnitID)
			return
		}
		sink.LoadFailure(adUnitID, s.cfg.NoFillCode)
	}, nil)
}

func (s *SDK) HasAdReady(adUnitID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready[adUnitID]
}

// Show plays the loaded ad: started, optionally clicked, completed, closed.
func (s *SDK) Show(adUnitID string, customData string) {
	s.mu.Lock()
	loaded := s.ready[adUnitID]
	delete(s.ready, adUnitID)
	s.mu.Unlock()
	s.after(context.Background(), s.cfg.ShowDelay, func() {
		sink := s.eventSink()
		if sink == nil {
			return
		}
		if !loaded {
			sink.PlaybackError(adUnitID, CodeNotLoaded)
			return
		}
		sink.Started(adUnitID)
		if s.cfg.Click {
			sink.Clicked(adUnitID)
		}
		sink.Completed([]string{adUnitID}, s.cfg.Reward)
		sink.Closed(adUnitID)
	}, nil)
}

func (s *SDK) SetEventSink(sink coordinator.EventSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *SDK) UpdateConsent(status, version string) {
	s.mu.Lock()
	s.consent = coordinator.Consent{Status: status, Version: version}
	s.mu.Unlock()
}

// Stats reports how many times Initialize was called, the most recent
// settings and the consent last pushed.
func (s *SDK) Stats() (inits int, settings map[string]string, consent coordinator.Consent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCount, maps.Clone(s.settings), s.consent
}

// Close cancels pending timers and waits for in-flight callbacks.
func (s *SDK) Close() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *SDK) eventSink() coordinator.EventSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

// after runs fn on its own goroutine once d has elapsed. If the simulator is
// closed or ctx is canceled first, abort (when non-nil) runs instead.
func (s *SDK) after(ctx context.Context, d time.Duration, fn func(), abort func(error)) {
	s.wg.Go(func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			fn()
		case <-s.done:
			if abort != nil {
				abort(errors.New("sdk closed"))
			}
		case <-ctx.Done():
			if abort != nil {
				abort(ctx.Err())
			}
		}
	})
}
