package network

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediationd/internal/coordinator"
	"mediationd/internal/mediation"
	"mediationd/internal/requestlog"
	"mediationd/internal/sdksim"
	"mediationd/pkg/types"
)

const (
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)

func newSim(t *testing.T, cfg sdksim.Config) *sdksim.SDK {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	sim := sdksim.New(cfg)
	t.Cleanup(sim.Close)
	return sim
}

func newService(t *testing.T, nets ...*Network) *Service {
	t.Helper()
	set := NewSet(nets...)
	t.Cleanup(set.Close)
	return NewService(context.Background(), set, requestlog.New(0), zerolog.Nop())
}

func statusOf(err error) int {
	var he interface{ StatusCode() int }
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return 0
}

func eventNames(st types.RequestStatus) []string {
	out := make([]string, 0, len(st.Events))
	for _, e := range st.Events {
		out = append(out, e.Name)
	}
	return out
}

func waitForEvent(t *testing.T, svc *Service, id, name string) types.RequestStatus {
	t.Helper()
	var st types.RequestStatus
	require.Eventually(t, func() bool {
		var err error
		st, err = svc.Request(id)
		require.NoError(t, err)
		for _, e := range st.Events {
			if e.Name == name {
				return true
			}
		}
		return false
	}, testWait, testTick, "waiting for %s", name)
	return st
}

func TestMoPub_InitializeNeedsAdUnit(t *testing.T) {
	sim := newSim(t, sdksim.Config{})
	mp := NewMoPub(sim, Options{})
	t.Cleanup(mp.Close)

	var got error
	mp.Initialize(context.Background(), "", coordinator.InitFuncs{Failure: func(err error) { got = err }})
	var ae *mediation.AdError
	require.ErrorAs(t, got, &ae)
	assert.Equal(t, mediation.ErrorInvalidServerParameters, ae.Code)
	inits, _, _ := sim.Stats()
	assert.Zero(t, inits)
}

func TestVungle_RequiresAppID(t *testing.T) {
	sim := newSim(t, sdksim.Config{})
	v := NewVungle(sim, Options{})
	t.Cleanup(v.Close)

	log := requestlog.New(0)
	rec := log.Start(Vungle, "u1", requestlog.KindLoad)
	ad := v.Load(context.Background(), "u1", coordinator.LoadParams{}, rec)
	assert.Nil(t, ad)
	e, _ := log.Get(rec.ID())
	require.Len(t, e.Records, 1)
	assert.Equal(t, "load_failed", e.Records[0].Name)
	assert.Equal(t, mediation.ErrorInvalidServerParameters, e.Records[0].Error.Code)
	assert.Equal(t, "com.google.ads.mediation.vungle", e.Records[0].Error.Domain)
	inits, _, _ := sim.Stats()
	assert.Zero(t, inits)
}

func TestService_FullRewardedFlow(t *testing.T) {
	sim := newSim(t, sdksim.Config{Click: true, Reward: coordinator.Reward{Label: "gems", Amount: 5}})
	svc := newService(t, NewVungle(sim, Options{AppID: "app"}))
	ctx := context.Background()

	init, err := svc.Initialize(ctx, Vungle, types.InitializeRequest{})
	require.NoError(t, err)
	waitForEvent(t, svc, init.ID, "init_success")

	load, err := svc.Load(ctx, Vungle, "placement", types.LoadRequest{Keywords: "k"})
	require.NoError(t, err)
	waitForEvent(t, svc, load.ID, "loaded")

	require.NoError(t, svc.Show(load.ID, types.ShowRequest{CustomData: "cd"}))
	st := waitForEvent(t, svc, load.ID, "closed")
	assert.Equal(t, []string{"loaded", "opened", "video_start", "clicked", "video_complete", "reward", "closed"}, eventNames(st))
	assert.Equal(t, &types.Reward{Type: "gems", Amount: 5}, st.Events[5].Reward)

	ns, err := svc.NetworkStatus(Vungle)
	require.NoError(t, err)
	assert.Equal(t, string(coordinator.StateInitialized), ns.State)
	assert.Equal(t, uint64(1), ns.InitAttempts)
}

func TestService_LoadInitializesOnDemand(t *testing.T) {
	sim := newSim(t, sdksim.Config{InitDelay: 20 * time.Millisecond})
	svc := newService(t, NewMoPub(sim, Options{}))

	load, err := svc.Load(context.Background(), MoPub, "unit", types.LoadRequest{})
	require.NoError(t, err)
	waitForEvent(t, svc, load.ID, "loaded")
	inits, _, _ := sim.Stats()
	assert.Equal(t, 1, inits)
}

func TestService_DuplicateLoadConflicts(t *testing.T) {
	sim := newSim(t, sdksim.Config{InitDelay: 50 * time.Millisecond})
	svc := newService(t, NewMoPub(sim, Options{}))
	ctx := context.Background()

	first, err := svc.Load(ctx, MoPub, "unit", types.LoadRequest{})
	require.NoError(t, err)
	second, err := svc.Load(ctx, MoPub, "unit", types.LoadRequest{})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	st, err := svc.Request(second.ID)
	require.NoError(t, err)
	require.Len(t, st.Events, 1)
	assert.Equal(t, mediation.ErrorAdAlreadyLoaded, st.Events[0].Error.Code)

	waitForEvent(t, svc, first.ID, "loaded")
}

func TestService_DeniedRequestCannotShow(t *testing.T) {
	sim := newSim(t, sdksim.Config{InitDelay: 50 * time.Millisecond})
	svc := newService(t, NewMoPub(sim, Options{}))
	ctx := context.Background()

	first, err := svc.Load(ctx, MoPub, "unit", types.LoadRequest{})
	require.NoError(t, err)
	second, err := svc.Load(ctx, MoPub, "unit", types.LoadRequest{})
	require.Equal(t, http.StatusConflict, statusOf(err))

	err = svc.Show(second.ID, types.ShowRequest{})
	assert.Equal(t, http.StatusConflict, statusOf(err))
	ns, _ := svc.NetworkStatus(MoPub)
	assert.Equal(t, []string{"unit"}, ns.AdUnits, "the live request keeps its ad unit")

	st := waitForEvent(t, svc, first.ID, "loaded")
	assert.Equal(t, []string{"loaded"}, eventNames(st))
	st, _ = svc.Request(second.ID)
	assert.Equal(t, []string{"load_failed"}, eventNames(st))
}

func TestService_FinishedRequestCannotShowNewerAd(t *testing.T) {
	sim := newSim(t, sdksim.Config{})
	svc := newService(t, NewMoPub(sim, Options{}))
	ctx := context.Background()

	done, err := svc.Load(ctx, MoPub, "unit", types.LoadRequest{})
	require.NoError(t, err)
	waitForEvent(t, svc, done.ID, "loaded")
	require.NoError(t, svc.Show(done.ID, types.ShowRequest{}))
	waitForEvent(t, svc, done.ID, "closed")

	next, err := svc.Load(ctx, MoPub, "unit", types.LoadRequest{})
	require.NoError(t, err)
	waitForEvent(t, svc, next.ID, "loaded")

	assert.Equal(t, http.StatusConflict, statusOf(svc.Show(done.ID, types.ShowRequest{})))
	require.NoError(t, svc.Show(next.ID, types.ShowRequest{}))
	st := waitForEvent(t, svc, next.ID, "closed")
	assert.Equal(t, []string{"loaded", "opened", "video_start", "video_complete", "reward", "closed"}, eventNames(st))
	st, _ = svc.Request(done.ID)
	assert.Equal(t, "closed", st.Events[len(st.Events)-1].Name, "finished request got nothing further")
}

func TestService_InitFailureFailsLoad(t *testing.T) {
	sim := newSim(t, sdksim.Config{InitError: "offline"})
	svc := newService(t, NewMoPub(sim, Options{}))

	load, err := svc.Load(context.Background(), MoPub, "unit", types.LoadRequest{})
	require.NoError(t, err)
	st := waitForEvent(t, svc, load.ID, "load_failed")
	assert.Equal(t, mediation.ErrorInitializationFailed, st.Events[0].Error.Code)
	assert.Contains(t, st.Events[0].Error.Message, "offline")

	ns, _ := svc.NetworkStatus(MoPub)
	assert.Equal(t, string(coordinator.StateUninitialized), ns.State)
	assert.Empty(t, ns.AdUnits)
}

func TestService_NoFillThenShowConflicts(t *testing.T) {
	sim := newSim(t, sdksim.Config{NoFill: true})
	svc := newService(t, NewMoPub(sim, Options{}))

	load, err := svc.Load(context.Background(), MoPub, "unit", types.LoadRequest{})
	require.NoError(t, err)
	st := waitForEvent(t, svc, load.ID, "load_failed")
	assert.Equal(t, int(sdksim.CodeNoFill), st.Events[0].Error.Code)
	assert.Equal(t, "com.mopub.mobileads", st.Events[0].Error.Domain)

	err = svc.Show(load.ID, types.ShowRequest{})
	assert.Equal(t, http.StatusConflict, statusOf(err))
}

func TestService_ReleaseAndSweep(t *testing.T) {
	sim := newSim(t, sdksim.Config{})
	svc := newService(t, NewMoPub(sim, Options{}))

	load, err := svc.Load(context.Background(), MoPub, "unit", types.LoadRequest{})
	require.NoError(t, err)
	waitForEvent(t, svc, load.ID, "loaded")

	require.NoError(t, svc.Release(load.ID))
	st, _ := svc.Request(load.ID)
	assert.True(t, st.Released)
	assert.Equal(t, http.StatusConflict, statusOf(svc.Show(load.ID, types.ShowRequest{})))

	_, entries := svc.Sweep()
	assert.Equal(t, 1, entries)

	// The ad unit is free again.
	again, err := svc.Load(context.Background(), MoPub, "unit", types.LoadRequest{})
	require.NoError(t, err)
	waitForEvent(t, svc, again.ID, "loaded")
}

func TestService_UnknownTargets(t *testing.T) {
	svc := newService(t, NewMoPub(newSim(t, sdksim.Config{}), Options{}))
	ctx := context.Background()

	_, err := svc.Initialize(ctx, "admob", types.InitializeRequest{})
	assert.Equal(t, http.StatusNotFound, statusOf(err))
	_, err = svc.Load(ctx, "admob", "u", types.LoadRequest{})
	assert.Equal(t, http.StatusNotFound, statusOf(err))
	_, err = svc.NetworkStatus("admob")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
	_, err = svc.Request("nope")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
	assert.Equal(t, http.StatusNotFound, statusOf(svc.Release("nope")))
	assert.Equal(t, http.StatusNotFound, statusOf(svc.Show("nope", types.ShowRequest{})))
}

func TestService_EmptyAdUnitIsBadRequest(t *testing.T) {
	svc := newService(t, NewMoPub(newSim(t, sdksim.Config{}), Options{}))
	_, err := svc.Load(context.Background(), MoPub, "", types.LoadRequest{})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestService_StatusAndReady(t *testing.T) {
	slow := newSim(t, sdksim.Config{InitDelay: 100 * time.Millisecond})
	svc := newService(t, NewVungle(slow, Options{AppID: "a"}), NewMoPub(newSim(t, sdksim.Config{}), Options{}))
	assert.True(t, svc.Ready())

	init, err := svc.Initialize(context.Background(), Vungle, types.InitializeRequest{})
	require.NoError(t, err)
	assert.False(t, svc.Ready())
	waitForEvent(t, svc, init.ID, "init_success")
	assert.True(t, svc.Ready())

	st := svc.Status()
	require.Len(t, st.Networks, 2)
	assert.Equal(t, MoPub, st.Networks[0].Name)
	assert.Equal(t, Vungle, st.Networks[1].Name)
	assert.Equal(t, 1, st.Requests)
}

func TestNetwork_ApplySettingsReinitializes(t *testing.T) {
	sim := newSim(t, sdksim.Config{})
	v := NewVungle(sim, Options{AppID: "a", Settings: map[string]string{"k": "1"}})
	t.Cleanup(v.Close)
	ctx := context.Background()

	assert.False(t, v.ApplySettings(ctx, map[string]string{"k": "2"}))

	done := make(chan struct{})
	v.Initialize(ctx, "", coordinator.InitFuncs{Success: func() { close(done) }})
	<-done
	_, settings, _ := sim.Stats()
	assert.Equal(t, "2", settings["k"])

	require.True(t, v.ApplySettings(ctx, map[string]string{"k": "3"}))
	require.Eventually(t, func() bool { return v.Snapshot().Reinits == 1 }, testWait, testTick)
	inits, settings, _ := sim.Stats()
	assert.Equal(t, 2, inits)
	assert.Equal(t, "3", settings["k"])
	assert.Equal(t, coordinator.StateInitialized, v.Adapter().State())
}

func TestNetwork_ConsentPushedOnInit(t *testing.T) {
	sim := newSim(t, sdksim.Config{})
	v := NewVungle(sim, Options{AppID: "a", Consent: &coordinator.Consent{Status: "opted_in", Version: "2"}})
	t.Cleanup(v.Close)
	done := make(chan struct{})
	v.Initialize(context.Background(), "", coordinator.InitFuncs{Success: func() { close(done) }})
	<-done
	_, _, consent := sim.Stats()
	assert.Equal(t, coordinator.Consent{Status: "opted_in", Version: "2"}, consent)
}

func TestSet_NamesSorted(t *testing.T) {
	sim := newSim(t, sdksim.Config{})
	s := NewSet(NewVungle(sim, Options{}), NewMoPub(sim, Options{}), nil)
	t.Cleanup(s.Close)
	assert.Equal(t, []string{MoPub, Vungle}, s.Names())
	n, ok := s.Get(Vungle)
	require.True(t, ok)
	assert.Equal(t, "com.vungle.warren", n.Domains().SDK)
	_, ok = s.Get("other")
	assert.False(t, ok)
}

func TestSettingsWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vungle.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: a\n"), 0o644))

	sim := newSim(t, sdksim.Config{})
	v := NewVungle(sim, Options{AppID: "a"})
	t.Cleanup(v.Close)
	ctx := context.Background()

	applied := make(chan bool, 8)
	w, err := watchSettings(ctx, path, v, zerolog.Nop(), func(_ map[string]string, reinit bool, err error) {
		if err == nil {
			applied <- reinit
		}
	})
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	assert.Equal(t, "a", v.Settings()["endpoint"])

	done := make(chan struct{})
	v.Initialize(ctx, "", coordinator.InitFuncs{Success: func() { close(done) }})
	<-done

	require.NoError(t, os.WriteFile(path, []byte("endpoint: b\n"), 0o644))
	select {
	case reinit := <-applied:
		assert.True(t, reinit)
	case <-time.After(testWait):
		t.Fatalf("settings change not applied")
	}
	assert.Equal(t, "b", v.Settings()["endpoint"])
}

func TestWatchSettings_MissingFile(t *testing.T) {
	sim := newSim(t, sdksim.Config{})
	v := NewVungle(sim, Options{AppID: "a"})
	t.Cleanup(v.Close)
	_, err := WatchSettings(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), v, zerolog.Nop())
	assert.Error(t, err)
}
