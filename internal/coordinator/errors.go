package coordinator

import (
	"errors"
	"fmt"
)

// alreadyInFlightError signals a second load for an ad unit whose first load
// still has a live listener.
type alreadyInFlightError struct{ adUnitID string }

func (e alreadyInFlightError) Error() string {
	return fmt.Sprintf("an ad has already been requested for ad unit %q", e.adUnitID)
}

// ErrAlreadyInFlight constructs the error reported to a denied LoadAd caller.
func ErrAlreadyInFlight(adUnitID string) error { return alreadyInFlightError{adUnitID: adUnitID} }

// IsAlreadyInFlight reports whether err indicates a concurrent request for the same ad unit.
func IsAlreadyInFlight(err error) bool {
	var e alreadyInFlightError
	return errors.As(err, &e)
}

// invalidAdUnitError rejects empty ad unit identifiers.
type invalidAdUnitError struct{}

func (invalidAdUnitError) Error() string { return "ad unit id is empty" }

// IsInvalidAdUnit reports whether err was caused by an empty ad unit identifier.
func IsInvalidAdUnit(err error) bool {
	var e invalidAdUnitError
	return errors.As(err, &e)
}

// initFailedError wraps the SDK's initialization error.
type initFailedError struct{ cause error }

func (e initFailedError) Error() string {
	if e.cause == nil {
		return "sdk initialization failed"
	}
	return "sdk initialization failed: " + e.cause.Error()
}

func (e initFailedError) Unwrap() error { return e.cause }

// ErrInitializationFailed wraps cause as an initialization failure.
func ErrInitializationFailed(cause error) error { return initFailedError{cause: cause} }

// IsInitializationFailed reports whether err came from a failed SDK initialization.
func IsInitializationFailed(err error) bool {
	var e initFailedError
	return errors.As(err, &e)
}

// loadFailedError carries the SDK code of a failed load.
type loadFailedError struct {
	adUnitID string
	code     ErrorCode
}

func (e loadFailedError) Error() string {
	return fmt.Sprintf("load failed for ad unit %q: code=%d", e.adUnitID, e.code)
}

// ErrLoadFailed constructs a load failure with the SDK's code.
func ErrLoadFailed(adUnitID string, code ErrorCode) error {
	return loadFailedError{adUnitID: adUnitID, code: code}
}

// IsLoadFailed reports whether err is an SDK load failure.
func IsLoadFailed(err error) bool {
	var e loadFailedError
	return errors.As(err, &e)
}

// playbackError carries the SDK code of a failed playback.
type playbackError struct {
	adUnitID string
	code     ErrorCode
}

func (e playbackError) Error() string {
	return fmt.Sprintf("playback failed for ad unit %q: code=%d", e.adUnitID, e.code)
}

// ErrPlayback constructs a playback failure with the SDK's code.
func ErrPlayback(adUnitID string, code ErrorCode) error {
	return playbackError{adUnitID: adUnitID, code: code}
}

// IsPlaybackError reports whether err is an SDK playback failure.
func IsPlaybackError(err error) bool {
	var e playbackError
	return errors.As(err, &e)
}

// notReadyError is returned by ShowAd when the SDK has nothing to show.
type notReadyError struct{ adUnitID string }

func (e notReadyError) Error() string {
	return fmt.Sprintf("no ad ready for ad unit %q", e.adUnitID)
}

// IsNotReady reports whether err indicates ShowAd found no ad available.
func IsNotReady(err error) bool {
	var e notReadyError
	return errors.As(err, &e)
}

// notRegisteredError is returned by ShowAdFor when the request no longer
// holds the registration for its ad unit.
type notRegisteredError struct{ adUnitID string }

func (e notRegisteredError) Error() string {
	return fmt.Sprintf("request is not registered for ad unit %q", e.adUnitID)
}

// IsNotRegistered reports whether err indicates a show on behalf of a request
// that is no longer the live registration.
func IsNotRegistered(err error) bool {
	var e notRegisteredError
	return errors.As(err, &e)
}

// sdkFaultError records a panic raised from inside the SDK.
type sdkFaultError struct {
	op    string
	value any
}

func (e sdkFaultError) Error() string { return fmt.Sprintf("sdk %s panicked: %v", e.op, e.value) }

// IsSDKFault reports whether err was produced by recovering an SDK panic.
func IsSDKFault(err error) bool {
	var e sdkFaultError
	return errors.As(err, &e)
}

// Code extracts the SDK error code carried by load and playback failures.
func Code(err error) (ErrorCode, bool) {
	var lf loadFailedError
	if errors.As(err, &lf) {
		return lf.code, true
	}
	var pe playbackError
	if errors.As(err, &pe) {
		return pe.code, true
	}
	return 0, false
}
