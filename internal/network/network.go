// Package network binds the generic coordinator to the concrete ad networks
// the daemon mediates: their names, error domains and init-config rules.
package network

import (
	"context"
	"maps"
	"sync"

	"github.com/rs/zerolog"

	"mediationd/internal/coordinator"
	"mediationd/internal/mediation"
)

// Network names.
const (
	MoPub  = "mopub"
	Vungle = "vungle"
)

// Options configures a Network.
type Options struct {
	// AppID is required by Vungle and passed through for MoPub.
	AppID     string
	Settings  map[string]string
	Consent   *coordinator.Consent
	Logger    *zerolog.Logger
	Publisher coordinator.EventPublisher
}

// Network is one mediated ad network: a coordinator adapter plus the rules
// for building its init config.
type Network struct {
	name     string
	domains  mediation.Domains
	adapter  *coordinator.Adapter
	validate func(coordinator.InitConfig) error

	mu       sync.Mutex
	appID    string
	settings map[string]string
	lastUnit string
}

// NewMoPub builds the MoPub network. MoPub initializes with the ad unit of
// the first request that needs it.
func NewMoPub(sdk coordinator.SDK, opts Options) *Network {
	return build(sdk, MoPub, mediation.Domains{
		Adapter: "com.google.ads.mediation.mopub",
		SDK:     "com.mopub.mobileads",
	}, opts, requireAdUnit)
}

// NewVungle builds the Vungle network. Vungle cannot initialize without an app id.
func NewVungle(sdk coordinator.SDK, opts Options) *Network {
	return build(sdk, Vungle, mediation.Domains{
		Adapter: "com.google.ads.mediation.vungle",
		SDK:     "com.vungle.warren",
	}, opts, requireAppID)
}

func build(sdk coordinator.SDK, name string, d mediation.Domains, opts Options, validate func(coordinator.InitConfig) error) *Network {
	n := &Network{
		name:     name,
		domains:  d,
		validate: validate,
		appID:    opts.AppID,
		settings: maps.Clone(opts.Settings),
	}
	n.adapter = coordinator.NewWithConfig(sdk, coordinator.Config{
		Name:          name,
		InitConfigFor: n.initConfig,
		Consent:       opts.Consent,
		Logger:        opts.Logger,
		Publisher:     opts.Publisher,
	})
	return n
}

func (n *Network) Name() string                  { return n.name }
func (n *Network) Domains() mediation.Domains    { return n.domains }
func (n *Network) Adapter() *coordinator.Adapter { return n.adapter }

// Initialize brings the network's SDK up. Failures reach l as *mediation.AdError.
// Missing app id or ad unit fails l without touching the SDK.
func (n *Network) Initialize(ctx context.Context, adUnitID string, l coordinator.InitListener) {
	cfg := n.initConfig(adUnitID)
	if err := n.validate(cfg); err != nil {
		l.OnInitFailure(err)
		return
	}
	n.adapter.Initialize(ctx, cfg, coordinator.InitFuncs{
		Success: l.OnInitSuccess,
		Failure: func(err error) { l.OnInitFailure(n.domains.ToAdError(err)) },
	})
}

// Load creates a rewarded ad request for adUnitID and starts loading it.
// The returned ad is nil when the request was rejected up front (invalid
// parameters, or a request already in flight for the ad unit); cb has then
// already received the failure.
func (n *Network) Load(ctx context.Context, adUnitID string, params coordinator.LoadParams, cb mediation.LoadCallback) *mediation.RewardedAd {
	if adUnitID != "" {
		if err := n.validate(n.initConfig(adUnitID)); err != nil {
			cb.OnFailure(n.domains.ToAdError(err))
			return nil
		}
	}
	ad := mediation.NewRewardedAd(n.adapter, n.domains, adUnitID, cb)
	ad.Load(ctx, params)
	if !ad.Admitted() {
		return nil
	}
	return ad
}

// ApplySettings stores new SDK settings and re-initializes the SDK with them
// if it is already up. It reports whether a re-initialization was started.
func (n *Network) ApplySettings(ctx context.Context, settings map[string]string) bool {
	n.mu.Lock()
	n.settings = maps.Clone(settings)
	unit := n.lastUnit
	n.mu.Unlock()
	return n.adapter.ApplySettings(ctx, n.initConfig(unit))
}

// Settings returns a copy of the current SDK settings.
func (n *Network) Settings() map[string]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return maps.Clone(n.settings)
}

// Snapshot reports the coordinator state.
func (n *Network) Snapshot() coordinator.Snapshot { return n.adapter.Snapshot() }

// Close stops the coordinator's dispatch goroutine.
func (n *Network) Close() { n.adapter.Close() }

func (n *Network) initConfig(adUnitID string) coordinator.InitConfig {
	n.mu.Lock()
	defer n.mu.Unlock()
	if adUnitID != "" {
		n.lastUnit = adUnitID
	} else {
		adUnitID = n.lastUnit
	}
	return coordinator.InitConfig{
		AppID:    n.appID,
		AdUnitID: adUnitID,
		Settings: maps.Clone(n.settings),
	}
}

func requireAdUnit(cfg coordinator.InitConfig) error {
	if cfg.AdUnitID == "" {
		return mediation.NewAdError(mediation.ErrorInvalidServerParameters, "missing or invalid ad unit id", "com.google.ads.mediation.mopub")
	}
	return nil
}

func requireAppID(cfg coordinator.InitConfig) error {
	if cfg.AppID == "" {
		return mediation.NewAdError(mediation.ErrorInvalidServerParameters, "missing or invalid app id", "com.google.ads.mediation.vungle")
	}
	return nil
}
