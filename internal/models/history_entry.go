package models

import "time"

// History entry kinds.
const (
	HistoryKindTransition = "TRANSITION"
	HistoryKindHeartbeat  = "HEARTBEAT"
)

// HistoryEntry is a single point of a device's rolling activity history.
type HistoryEntry struct {
	ID       string    `json:"id"`
	DeviceID string    `json:"device_id"`
	Time     time.Time `json:"time"`
	Status   int       `json:"status"` // 1 printing, 0 idle
	Kind     string    `json:"kind"`
}
