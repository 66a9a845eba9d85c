// Package mediation holds the mediation-platform side of an adapter: the
// platform's error type, its rewarded-ad callbacks, and RewardedAd, which
// turns coordinator lifecycle callbacks into platform callbacks.
package mediation

import (
	"errors"
	"fmt"

	"mediationd/internal/coordinator"
)

// Adapter-level error codes, reported in the network's adapter domain.
// SDK-originated failures keep the SDK's own code in the SDK domain.
const (
	ErrorInvalidServerParameters = 101
	ErrorAdAlreadyLoaded         = 103
	ErrorInitializationFailed    = 104
	ErrorAdNotReady              = 105
	ErrorSDKFault                = 106
	ErrorInternal                = 107
)

// AdError is the error shape the mediation platform understands.
type AdError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Domain  string `json:"domain"`
}

func (e *AdError) Error() string {
	return fmt.Sprintf("%s: %d: %s", e.Domain, e.Code, e.Message)
}

// NewAdError constructs an AdError.
func NewAdError(code int, msg, domain string) *AdError {
	return &AdError{Code: code, Message: msg, Domain: domain}
}

// Domains names the error domains of one network.
type Domains struct {
	Adapter string
	SDK     string
}

// ToAdError maps a coordinator error onto the platform error taxonomy.
func (d Domains) ToAdError(err error) *AdError {
	if err == nil {
		return nil
	}
	var ae *AdError
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case coordinator.IsAlreadyInFlight(err):
		return NewAdError(ErrorAdAlreadyLoaded, err.Error(), d.Adapter)
	case coordinator.IsInvalidAdUnit(err):
		return NewAdError(ErrorInvalidServerParameters, err.Error(), d.Adapter)
	case coordinator.IsInitializationFailed(err):
		return NewAdError(ErrorInitializationFailed, err.Error(), d.Adapter)
	case coordinator.IsNotReady(err), coordinator.IsNotRegistered(err):
		return NewAdError(ErrorAdNotReady, err.Error(), d.Adapter)
	case coordinator.IsSDKFault(err):
		return NewAdError(ErrorSDKFault, err.Error(), d.Adapter)
	}
	if code, ok := coordinator.Code(err); ok {
		return NewAdError(int(code), err.Error(), d.SDK)
	}
	return NewAdError(ErrorInternal, err.Error(), d.Adapter)
}
