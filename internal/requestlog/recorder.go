package requestlog

import (
	"errors"

	"mediationd/internal/mediation"
)

// Recorder appends the callbacks of one request to its log entry. It serves
// as init listener, load callback and show callback.
type Recorder struct {
	log *Log
	id  string
}

var (
	_ mediation.LoadCallback       = (*Recorder)(nil)
	_ mediation.RewardedAdCallback = (*Recorder)(nil)
)

// ID returns the entry id.
func (r *Recorder) ID() string { return r.id }

func (r *Recorder) add(name string) { r.log.record(r.id, Record{Name: name}) }

func (r *Recorder) OnInitSuccess() { r.add("init_success") }

func (r *Recorder) OnInitFailure(err error) {
	var ae *mediation.AdError
	if !errors.As(err, &ae) {
		ae = mediation.NewAdError(mediation.ErrorInitializationFailed, err.Error(), "")
	}
	r.log.record(r.id, Record{Name: "init_failure", Error: ae})
}

func (r *Recorder) OnSuccess(*mediation.RewardedAd) mediation.RewardedAdCallback {
	r.add("loaded")
	return r
}

func (r *Recorder) OnFailure(err *mediation.AdError) {
	r.log.record(r.id, Record{Name: "load_failed", Error: err})
}

func (r *Recorder) OnAdOpened()      { r.add("opened") }
func (r *Recorder) OnVideoStart()    { r.add("video_start") }
func (r *Recorder) ReportAdClicked() { r.add("clicked") }
func (r *Recorder) OnVideoComplete() { r.add("video_complete") }

func (r *Recorder) OnUserEarnedReward(item mediation.RewardItem) {
	r.log.record(r.id, Record{Name: "reward", Reward: &item})
}

func (r *Recorder) OnAdClosed() { r.add("closed") }

func (r *Recorder) OnAdFailedToShow(err *mediation.AdError) {
	r.log.record(r.id, Record{Name: "show_failed", Error: err})
}
