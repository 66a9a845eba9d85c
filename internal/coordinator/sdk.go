package coordinator

import "context"

// SDK abstracts the third-party network client. Implementations are opaque
// asynchronous services; callbacks and events may arrive on any goroutine,
// including synchronously from within the call that triggered them.
type SDK interface {
	// Initialize starts SDK initialization and reports the outcome on cb.
	Initialize(ctx context.Context, cfg InitConfig, cb InitCallback)
	IsInitialized() bool
	// Load requests an ad; the outcome arrives on the installed EventSink.
	Load(adUnitID string, params LoadParams)
	HasAdReady(adUnitID string) bool
	Show(adUnitID string, customData string)
	// SetEventSink installs the single consumer of SDK-wide events.
	SetEventSink(sink EventSink)
}

// InitCallback is handed to SDK.Initialize.
type InitCallback interface {
	OnSuccess()
	OnError(err error)
}

// EventSink is the SDK-wide event stream, keyed by ad unit identifier.
type EventSink interface {
	LoadSuccess(adUnitID string)
	LoadFailure(adUnitID string, code ErrorCode)
	Started(adUnitID string)
	Clicked(adUnitID string)
	Completed(adUnitIDs []string, reward Reward)
	PlaybackError(adUnitID string, code ErrorCode)
	Closed(adUnitID string)
}

// ConsentUpdater is implemented by SDKs that accept a consent status after
// initialization.
type ConsentUpdater interface {
	UpdateConsent(status string, version string)
}

// Consent is forwarded verbatim to SDKs implementing ConsentUpdater.
type Consent struct {
	Status  string
	Version string
}
