package models

import "time"

// DeviceID is the client-supplied device identity. It is opaque to the
// server and stable across reconnects of the same physical device.
type DeviceID string

// SessionStatus is the lobby approval state of a team
type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"
	StatusApproved SessionStatus = "approved"
	StatusDeclined SessionStatus = "declined"
)

// PlayerSession is the authoritative per-device lobby record. It survives
// transport churn: the websocket may come and go, the session stays.
type PlayerSession struct {
	DeviceID   DeviceID      `json:"deviceId"`
	PlayerID   string        `json:"playerId"`
	TeamName   string        `json:"teamName"`
	Status     SessionStatus `json:"status"`
	ApprovedAt *time.Time    `json:"approvedAt,omitempty"`
	PhotoPath  string        `json:"photoPath,omitempty"`
	JoinedAt   time.Time     `json:"joinedAt"`
	LastSeenAt time.Time     `json:"lastSeenAt"`

	// ConnectionID is a non-owning back-reference into the connection
	// registry. Empty when the device has no open transport. The registry
	// owns the connection; this field must never outlive it.
	ConnectionID string `json:"-"`
}

// IsApproved reports whether the team has been let into the game
func (s *PlayerSession) IsApproved() bool {
	return s.Status == StatusApproved
}
