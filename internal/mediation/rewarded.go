package mediation

import (
	"context"
	"sync"

	"mediationd/internal/coordinator"
)

// RewardItem is what the platform credits the user with.
type RewardItem struct {
	Type   string `json:"type"`
	Amount int    `json:"amount"`
}

// LoadCallback receives the outcome of a rewarded ad load. OnSuccess returns
// the callback that will receive the ad's show lifecycle.
type LoadCallback interface {
	OnSuccess(ad *RewardedAd) RewardedAdCallback
	OnFailure(err *AdError)
}

// RewardedAdCallback receives the show lifecycle of a loaded ad.
type RewardedAdCallback interface {
	OnAdOpened()
	OnVideoStart()
	ReportAdClicked()
	OnVideoComplete()
	OnUserEarnedReward(item RewardItem)
	OnAdClosed()
	OnAdFailedToShow(err *AdError)
}

// Coordinator is the part of coordinator.Adapter a RewardedAd drives.
type Coordinator interface {
	LoadAd(ctx context.Context, adUnitID string, params coordinator.LoadParams, l coordinator.Listener) *coordinator.Handle
	ShowAdFor(h *coordinator.Handle, customData string) error
	Owns(adUnitID string, h *coordinator.Handle) bool
	AdExpired(adUnitID string, h *coordinator.Handle) bool
}

// RewardedAd is one rewarded ad request. It is the coordinator listener for
// its ad unit for as long as the request is registered.
type RewardedAd struct {
	adUnitID string
	domains  Domains
	coord    Coordinator
	load     LoadCallback

	mu     sync.Mutex
	handle *coordinator.Handle
	show   RewardedAdCallback
}

var _ coordinator.Listener = (*RewardedAd)(nil)

// NewRewardedAd binds a request for adUnitID to coord.
func NewRewardedAd(coord Coordinator, domains Domains, adUnitID string, load LoadCallback) *RewardedAd {
	return &RewardedAd{adUnitID: adUnitID, domains: domains, coord: coord, load: load}
}

// AdUnitID returns the ad unit this request targets.
func (r *RewardedAd) AdUnitID() string { return r.adUnitID }

// Load asks the coordinator for an ad. Rejections are reported on the load
// callback before Load returns.
func (r *RewardedAd) Load(ctx context.Context, params coordinator.LoadParams) {
	h := r.coord.LoadAd(ctx, r.adUnitID, params, r)
	r.mu.Lock()
	r.handle = h
	r.mu.Unlock()
}

// Admitted reports whether the coordinator accepted the load.
func (r *RewardedAd) Admitted() bool { return r.currentHandle() != nil }

// Registered reports whether this request still holds its ad unit, that is
// whether Show can reach the SDK on its behalf.
func (r *RewardedAd) Registered() bool {
	h := r.currentHandle()
	return h != nil && r.coord.Owns(r.adUnitID, h)
}

// Show presents the ad. Only a request that still holds its ad unit may
// show; a missing ad is reported on the show callback.
func (r *RewardedAd) Show(customData string) error {
	err := r.coord.ShowAdFor(r.currentHandle(), customData)
	if err == nil {
		return nil
	}
	ae := r.domains.ToAdError(err)
	if cb := r.showCallback(); cb != nil && coordinator.IsNotReady(err) {
		cb.OnAdFailedToShow(ae)
	}
	return ae
}

// Release withdraws the request; nothing is delivered afterwards.
func (r *RewardedAd) Release() {
	r.currentHandle().Release()
}

// Expire drops the registration if it still belongs to this request and
// withdraws the request either way.
func (r *RewardedAd) Expire() bool {
	h := r.currentHandle()
	if h == nil {
		return false
	}
	removed := r.coord.AdExpired(r.adUnitID, h)
	h.Release()
	return removed
}

func (r *RewardedAd) currentHandle() *coordinator.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

func (r *RewardedAd) showCallback() RewardedAdCallback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.show
}

func (r *RewardedAd) OnLoadSuccess(string) {
	cb := r.load.OnSuccess(r)
	r.mu.Lock()
	r.show = cb
	r.mu.Unlock()
}

func (r *RewardedAd) OnLoadFailure(_ string, err error) {
	r.load.OnFailure(r.domains.ToAdError(err))
}

func (r *RewardedAd) OnAdStarted(string) {
	if cb := r.showCallback(); cb != nil {
		cb.OnAdOpened()
		cb.OnVideoStart()
	}
}

func (r *RewardedAd) OnAdClicked(string) {
	if cb := r.showCallback(); cb != nil {
		cb.ReportAdClicked()
	}
}

func (r *RewardedAd) OnAdCompleted(_ []string, reward coordinator.Reward) {
	if cb := r.showCallback(); cb != nil {
		cb.OnVideoComplete()
		cb.OnUserEarnedReward(RewardItem{Type: reward.Label, Amount: reward.Amount})
	}
}

func (r *RewardedAd) OnAdClosed(string) {
	if cb := r.showCallback(); cb != nil {
		cb.OnAdClosed()
	}
}

func (r *RewardedAd) OnPlaybackError(_ string, err error) {
	if cb := r.showCallback(); cb != nil {
		cb.OnAdFailedToShow(r.domains.ToAdError(err))
	}
}
