package models

import "time"

// EventType names a state change emitted by the engine.
type EventType string

const (
	EventReachable         EventType = "reachable"
	EventActive            EventType = "active"
	EventConsumable        EventType = "consumable"
	EventConsumableRemoved EventType = "consumable_removed"
	EventLastActivation    EventType = "last_activation"
	EventActivationCount   EventType = "activation_count"
	EventOpenDuration      EventType = "open_duration"
	EventClosedDuration    EventType = "closed_duration"
	EventResetTotal        EventType = "reset_total"
	EventControlAck        EventType = "control_ack"
	EventDeviceAdded       EventType = "device_added"
	EventDeviceRemoved     EventType = "device_removed"
)

// StateEvent is a typed state change published to the presentation layer.
// Only the fields relevant to Type are set. Level, Seconds and Count are
// always encoded, zero included.
type StateEvent struct {
	Type       EventType `json:"type"`
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name,omitempty"`
	SubID      string    `json:"sub_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Value      *bool     `json:"value,omitempty"`
	Level      int       `json:"level"`
	Seconds    int64     `json:"seconds"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Bool returns a pointer to v for StateEvent.Value.
func Bool(v bool) *bool { return &v }
