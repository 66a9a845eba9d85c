package types

// InitializeRequest is the body of POST /v1/networks/{network}/initialize.
type InitializeRequest struct {
	// Ad unit used by networks that initialize per ad unit (MoPub).
	// example: 920b6145fb1546cf8b5cf2ac34638bb7
	AdUnitID string `json:"ad_unit_id,omitempty" example:"920b6145fb1546cf8b5cf2ac34638bb7"`
}

// LoadRequest is the body of POST /v1/networks/{network}/ads/{adUnitID}/load.
// Every field is optional.
type LoadRequest struct {
	// Publisher keywords forwarded to the SDK.
	// example: game,arcade
	Keywords string `json:"keywords,omitempty" example:"game,arcade"`
	// Keywords that may carry personal data; dropped by some SDKs without consent.
	UserKeywords string `json:"user_keywords,omitempty"`
	// Opaque customer id passed to server-side reward verification.
	// example: user-42
	CustomerID string `json:"customer_id,omitempty" example:"user-42"`
	// Network-specific extras.
	Extras map[string]string `json:"extras,omitempty"`
}

// ShowRequest is the body of POST /v1/requests/{id}/show.
type ShowRequest struct {
	// Custom data forwarded to the SDK with the show call.
	// example: level=3
	CustomData string `json:"custom_data,omitempty" example:"level=3"`
}

// RequestAccepted is returned when an initialize or load request was started.
type RequestAccepted struct {
	// Request id used to poll callbacks and to show or release the ad.
	// example: 7d444840-9dc0-11d1-b245-5ffdce74fad2
	ID string `json:"id" example:"7d444840-9dc0-11d1-b245-5ffdce74fad2"`
	// example: mopub
	Network string `json:"network" example:"mopub"`
	// example: 920b6145fb1546cf8b5cf2ac34638bb7
	AdUnitID string `json:"ad_unit_id,omitempty"`
	// example: load
	Kind string `json:"kind" example:"load"`
}

// AdError mirrors the platform error reported in a callback.
type AdError struct {
	// example: 103
	Code int `json:"code" example:"103"`
	// example: ad unit already has a request in flight
	Message string `json:"message"`
	// example: com.google.ads.mediation.mopub
	Domain string `json:"domain"`
}

// Reward is the reward reported with a completed ad.
type Reward struct {
	// example: coins
	Type string `json:"type" example:"coins"`
	// example: 10
	Amount int `json:"amount" example:"10"`
}

// EventRecord is one callback received by a request.
type EventRecord struct {
	// Callback name (loaded, load_failed, opened, video_start, clicked,
	// video_complete, reward, closed, show_failed, init_success, init_failure).
	// example: loaded
	Name string `json:"name" example:"loaded"`
	// Time the callback was observed (unix milliseconds).
	// example: 1700000000123
	AtUnixMs int64    `json:"at_unix_ms" example:"1700000000123"`
	Error    *AdError `json:"error,omitempty"`
	Reward   *Reward  `json:"reward,omitempty"`
}

// RequestStatus is returned by GET /v1/requests/{id}.
type RequestStatus struct {
	RequestAccepted
	// Request creation time (unix seconds).
	// example: 1700000000
	CreatedUnix int64 `json:"created_unix" example:"1700000000"`
	// True once the request was released; no further callbacks are recorded.
	Released bool          `json:"released"`
	Events   []EventRecord `json:"events"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Request id the error relates to, when one was created.
	RequestID string `json:"request_id,omitempty"`
}
