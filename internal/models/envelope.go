package models

import "encoding/json"

// Event types received from player devices
const (
	EventPlayerJoin      = "PLAYER_JOIN"
	EventPlayerAnswer    = "PLAYER_ANSWER"
	EventTeamPhotoUpdate = "TEAM_PHOTO_UPDATE"
)

// Event types sent to player devices
const (
	EventTeamApproved     = "TEAM_APPROVED"
	EventTeamDeclined     = "TEAM_DECLINED"
	EventTeamPhotoUpdated = "TEAM_PHOTO_UPDATED"
	EventDisplayMode      = "DISPLAY_MODE"
	EventDisplayUpdate    = "DISPLAY_UPDATE"
	EventQuestion         = "QUESTION"
	EventReveal           = "REVEAL"
	EventFastest          = "FASTEST"
	EventTimeUp           = "TIMEUP"
	EventPicture          = "PICTURE"
	EventDebugError       = "DEBUG_ERROR"
	EventDebugInfo        = "DEBUG_INFO"
)

// InboundMessage is the envelope read from a player websocket. Fields not
// relevant to the message type are simply left empty by the client.
type InboundMessage struct {
	Type      string          `json:"type"`
	DeviceID  string          `json:"deviceId,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
	TeamName  string          `json:"teamName,omitempty"`
	TeamPhoto string          `json:"teamPhoto,omitempty"` // base64 / data-URL image
	PhotoData string          `json:"photoData,omitempty"` // TEAM_PHOTO_UPDATE payload
	Answer    json.RawMessage `json:"answer,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// OutboundMessage is the envelope written to player websockets. The wire
// format mixes two shapes: lobby mirror events (PLAYER_JOIN,
// TEAM_PHOTO_UPDATED) carry their fields at the top level, everything else
// nests under "data". Timestamp is stamped in epoch milliseconds at send
// time.
type OutboundMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`

	PlayerID  string `json:"playerId,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
	TeamName  string `json:"teamName,omitempty"`
	TeamPhoto string `json:"teamPhoto,omitempty"`
	PhotoPath string `json:"photoPath,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ApprovedData is the payload of a TEAM_APPROVED message
type ApprovedData struct {
	TeamName    string      `json:"teamName"`
	DeviceID    string      `json:"deviceId"`
	DisplayData interface{} `json:"displayData,omitempty"`
}

// DeclinedData is the payload of a TEAM_DECLINED message
type DeclinedData struct {
	TeamName string `json:"teamName"`
	DeviceID string `json:"deviceId"`
}
