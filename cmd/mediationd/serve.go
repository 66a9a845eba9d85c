package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mediationd/internal/config"
	"mediationd/internal/coordinator"
	"mediationd/internal/httpapi"
	"mediationd/internal/logging"
	"mediationd/internal/network"
	"mediationd/internal/requestlog"
	"mediationd/internal/sdksim"
)

const shutdownTimeout = 5 * time.Second

// app is a fully wired daemon minus the listener.
type app struct {
	handler  http.Handler
	svc      *network.Service
	nets     *network.Set
	sims     []*sdksim.SDK
	watchers []*network.SettingsWatcher
	cancel   context.CancelFunc
	// janitor is closed when the sweep loop exits; nil until it starts.
	janitor chan struct{}
}

// newApp wires networks, the request log and the HTTP handler. Canceling
// ctx, or calling close, releases every outstanding request.
func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	ctx, cancel := context.WithCancel(ctx)
	a := &app{cancel: cancel}

	var nets []*network.Network
	add := func(name string, nc config.NetworkConfig, build func(coordinator.SDK, network.Options) *network.Network) {
		if nc.Disabled {
			log.Info().Str("network", name).Msg("network disabled")
			return
		}
		sim := sdksim.New(simConfig(nc.Sim))
		a.sims = append(a.sims, sim)
		nets = append(nets, build(sim, network.Options{
			AppID:     nc.AppID,
			Consent:   consentOf(nc),
			Logger:    &log,
			Publisher: eventLogger{log: log},
		}))
	}
	add(network.MoPub, cfg.MoPub, network.NewMoPub)
	add(network.Vungle, cfg.Vungle, network.NewVungle)
	a.nets = network.NewSet(nets...)

	reqs := requestlog.New(time.Duration(cfg.RequestTTLSeconds) * time.Second)
	a.svc = network.NewService(ctx, a.nets, reqs, log)

	for _, nc := range []struct {
		name string
		cfg  config.NetworkConfig
	}{{network.MoPub, cfg.MoPub}, {network.Vungle, cfg.Vungle}} {
		n, ok := a.nets.Get(nc.name)
		if !ok {
			continue
		}
		if nc.cfg.SettingsFile != "" {
			w, err := network.WatchSettings(ctx, nc.cfg.SettingsFile, n, log)
			if err != nil {
				a.close()
				return nil, err
			}
			a.watchers = append(a.watchers, w)
		}
		if nc.cfg.EagerInit {
			name := nc.name
			n.Initialize(ctx, nc.cfg.EagerAdUnit, coordinator.InitFuncs{
				Success: func() { log.Info().Str("network", name).Msg("eager init ready") },
				Failure: func(err error) { log.Error().Str("network", name).Err(err).Msg("eager init failed") },
			})
		}
	}

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
	a.handler = httpapi.NewMux(a.svc)

	a.janitor = make(chan struct{})
	go func() {
		defer close(a.janitor)
		a.svc.RunJanitor(ctx, time.Duration(cfg.SweepIntervalSeconds)*time.Second)
	}()
	return a, nil
}

// close stops background work, releases requests and shuts the SDKs down.
func (a *app) close() {
	a.cancel()
	for _, w := range a.watchers {
		w.Stop()
	}
	if a.janitor != nil {
		<-a.janitor
	}
	for _, s := range a.sims {
		s.Close()
	}
	a.nets.Close()
}

func serve(ctx context.Context, cfg config.Config) error {
	log, closer := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer closer.Close()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{Addr: cfg.Addr, Handler: a.handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Strs("networks", a.nets.Names()).Msg("mediationd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func simConfig(c config.SimConfig) sdksim.Config {
	return sdksim.Config{
		InitDelay: time.Duration(c.InitDelayMs) * time.Millisecond,
		InitError: c.InitError,
		LoadDelay: time.Duration(c.LoadDelayMs) * time.Millisecond,
		FillRate:  c.FillRate,
		NoFill:    c.NoFill,
		ShowDelay: time.Duration(c.ShowDelayMs) * time.Millisecond,
		Click:     c.Click,
		Reward:    coordinator.Reward{Label: c.RewardType, Amount: c.RewardAmount},
	}
}

func consentOf(nc config.NetworkConfig) *coordinator.Consent {
	if nc.ConsentStatus == "" {
		return nil
	}
	return &coordinator.Consent{Status: nc.ConsentStatus, Version: nc.ConsentVersion}
}

// eventLogger forwards coordinator lifecycle events to the debug log.
type eventLogger struct{ log zerolog.Logger }

func (e eventLogger) Publish(ev coordinator.Event) {
	if e.log.GetLevel() > zerolog.DebugLevel {
		return
	}
	e.log.Debug().Str("event", ev.Name).Str("network", ev.Network).Str("ad_unit", ev.AdUnitID).Fields(ev.Fields).Msg("coordinator event")
}
