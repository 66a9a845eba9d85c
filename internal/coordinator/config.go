package coordinator

import (
	"maps"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultName          = "network"
	defaultQueueCapacity = 64
)

// Config encapsulates all tunables for Adapter construction.
type Config struct {
	// Name labels logs, events and metrics (e.g. "mopub").
	Name string
	// InitConfig is used when LoadAd has to initialize the SDK itself.
	InitConfig InitConfig
	// InitConfigFor overrides how LoadAd derives the init config from an ad unit.
	// When nil, InitConfig is used with AdUnitID filled in if empty.
	InitConfigFor func(adUnitID string) InitConfig
	// Consent, when set, is pushed to SDKs implementing ConsentUpdater after
	// every successful initialization.
	Consent *Consent
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
	// Publisher defaults to a no-op publisher.
	Publisher EventPublisher
	// QueueCapacity is the initial capacity of the dispatch queue.
	QueueCapacity int
}

// NewWithConfig constructs an Adapter around sdk and starts its dispatch goroutine.
// Callers own the Adapter and should Close it on shutdown.
func NewWithConfig(sdk SDK, cfg Config) *Adapter {
	if cfg.Name == "" {
		cfg.Name = defaultName
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	log = log.With().Str("network", cfg.Name).Logger()
	var pub EventPublisher = noopPublisher{}
	if cfg.Publisher != nil {
		pub = cfg.Publisher
	}
	initFor := cfg.InitConfigFor
	if initFor == nil {
		base := cfg.InitConfig
		initFor = func(adUnitID string) InitConfig {
			out := base
			out.Settings = maps.Clone(base.Settings)
			if out.AdUnitID == "" {
				out.AdUnitID = adUnitID
			}
			return out
		}
	}

	a := &Adapter{
		name:          cfg.Name,
		sdk:           sdk,
		initConfigFor: initFor,
		log:           log,
		publisher:     pub,
	}
	a.dispatch = newDispatcher(log, cfg.QueueCapacity)
	a.registry = NewRegistry()
	a.registry.onChange = func(n int) { registeredUnits.WithLabelValues(cfg.Name).Set(float64(n)) }
	a.router = &router{
		name:      cfg.Name,
		registry:  a.registry,
		dispatch:  a.dispatch,
		log:       log,
		publisher: pub,
	}
	a.init = &initializer{
		name:      cfg.Name,
		state:     StateUninitialized,
		sdk:       sdk,
		sink:      a.router,
		dispatch:  a.dispatch,
		consent:   cfg.Consent,
		log:       log,
		publisher: pub,
	}
	return a
}
