package types

// NetworkStatus summarizes one mediated network for /status.
type NetworkStatus struct {
	// example: vungle
	Name string `json:"name" example:"vungle"`
	// SDK initialization state (uninitialized, initializing, initialized).
	// example: initialized
	State string `json:"state" example:"initialized"`
	// Callers waiting on the in-progress initialization.
	// example: 2
	PendingInits int `json:"pending_inits" example:"2"`
	// Number of initialize calls issued to the SDK.
	// example: 1
	InitAttempts uint64 `json:"init_attempts" example:"1"`
	// Number of settings-driven re-initializations.
	// example: 0
	Reinits uint64 `json:"reinits" example:"0"`
	// Last initialization error, if any.
	LastError string `json:"last_error,omitempty"`
	// Ad units with a live registered request.
	AdUnits []string `json:"ad_units"`
	// Registry entries including dead ones not yet reclaimed.
	// example: 3
	Entries int `json:"entries" example:"3"`
	// Listener notifications waiting to be delivered.
	// example: 0
	QueuedTasks int `json:"queued_tasks" example:"0"`
	// Current SDK settings.
	Settings map[string]string `json:"settings,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Networks []NetworkStatus `json:"networks"`
	// Requests held in the request log.
	// example: 12
	Requests int `json:"requests" example:"12"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
