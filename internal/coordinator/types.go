package coordinator

import "context"

// InitState is the lifecycle state of the underlying SDK.
type InitState string

const (
	StateUninitialized InitState = "uninitialized"
	StateInitializing  InitState = "initializing"
	StateInitialized   InitState = "initialized"
)

// ErrorCode is a network-defined failure code reported by the SDK.
type ErrorCode int

// Reward describes what the user earned for completing a rewarded ad.
type Reward struct {
	Label  string
	Amount int
}

// InitConfig is passed through to the SDK's initialize call.
type InitConfig struct {
	AppID    string
	AdUnitID string
	Settings map[string]string
}

// LoadParams is passed through to the SDK's load call.
type LoadParams struct {
	Keywords     string
	UserKeywords string
	CustomerID   string
	Extras       map[string]string
}

// Listener receives the lifecycle of one load request. Every method is
// invoked on the dispatch goroutine, never concurrently with another.
type Listener interface {
	OnLoadSuccess(adUnitID string)
	OnLoadFailure(adUnitID string, err error)
	OnAdStarted(adUnitID string)
	OnAdClicked(adUnitID string)
	OnAdCompleted(adUnitIDs []string, reward Reward)
	OnAdClosed(adUnitID string)
	OnPlaybackError(adUnitID string, err error)
}

// InitListener receives exactly one outcome of an initialization request.
type InitListener interface {
	OnInitSuccess()
	OnInitFailure(err error)
}

// InitFuncs adapts a pair of functions to InitListener. Nil members are skipped.
type InitFuncs struct {
	Success func()
	Failure func(err error)
}

func (f InitFuncs) OnInitSuccess() {
	if f.Success != nil {
		f.Success()
	}
}

func (f InitFuncs) OnInitFailure(err error) {
	if f.Failure != nil {
		f.Failure(err)
	}
}

// detach keeps the SDK call alive after the caller that happened to trigger
// it goes away; other callers may be waiting on the same initialization.
func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
