package models

import "time"

// BroadcastResult reports per-recipient outcome of a fan-out. A partial
// failure is a normal result, not an error: delivery to reachable devices
// already happened by the time this is returned.
type BroadcastResult struct {
	SuccessCount    int        `json:"successCount"`
	FailedDeviceIDs []DeviceID `json:"failedDeviceIds"`
}

// ApproveRequest is the host command to admit a team
type ApproveRequest struct {
	DeviceID    string      `json:"deviceId"`
	TeamName    string      `json:"teamName"`
	DisplayData interface{} `json:"displayData,omitempty"`
}

// DeclineRequest is the host command to reject a team
type DeclineRequest struct {
	DeviceID string `json:"deviceId"`
	TeamName string `json:"teamName"`
}

// BroadcastRequest is the host command to push an event to approved teams
type BroadcastRequest struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// StatsResponse is the diagnostics snapshot for the host UI
type StatsResponse struct {
	OpenConnections int `json:"openConnections"`
	TotalSessions   int `json:"totalSessions"`
	PendingTeams    int `json:"pendingTeams"`
	ApprovedTeams   int `json:"approvedTeams"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
