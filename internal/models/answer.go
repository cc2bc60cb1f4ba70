package models

import (
	"encoding/json"
	"time"
)

// PendingAnswer is one buffered submission for the current question. Only
// the latest submission per device is kept; the whole set is discarded when
// the host drains the buffer.
type PendingAnswer struct {
	DeviceID    DeviceID        `json:"deviceId"`
	TeamName    string          `json:"teamName"`
	Answer      json.RawMessage `json:"answer"`
	SubmittedAt time.Time       `json:"submittedAt"`
}
