package feed

import "time"

// ConnectionStatus represents the live feed connection status
type ConnectionStatus struct {
	URL          string    `json:"url"`
	Connected    bool      `json:"connected"`
	Reconnecting bool      `json:"reconnecting"`
	LastError    string    `json:"last_error,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
	Attempts     int       `json:"attempts"`
	// PendingReconnects is the number of scheduled reconnect timers; never
	// more than one.
	PendingReconnects int `json:"pending_reconnects"`
}
