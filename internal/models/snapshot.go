package models

import "time"

// ConsumableReading is one (name, level) pair reported by a printer.
// Index is the position in the device's marker lists.
type ConsumableReading struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// StateSnapshot is the normalized belief about a printer after one poll.
type StateSnapshot struct {
	Reachable   bool                `json:"reachable"`
	Active      bool                `json:"active"`
	Consumables []ConsumableReading `json:"consumables,omitempty"`
}

// Effective returns the snapshot as downstream consumers must see it:
// an unreachable printer is never active.
func (s StateSnapshot) Effective() StateSnapshot {
	if !s.Reachable {
		s.Active = false
	}
	return s
}

// ConsumableTracker is a tracked consumable sub-resource of a device.
type ConsumableTracker struct {
	SubID string `json:"sub_id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// ActivationCounters are device-local counters driven by active transitions.
type ActivationCounters struct {
	Count      int       `json:"count"`
	ResetEpoch time.Time `json:"reset_epoch"`
}

// DeviceState is the current view of a device exposed to the API and persisted.
type DeviceState struct {
	DeviceID             string              `json:"device_id"`
	Name                 string              `json:"name"`
	Phase                string              `json:"phase"`
	Reachable            bool                `json:"reachable"`
	Active               bool                `json:"active"`
	Consumables          []ConsumableTracker `json:"consumables,omitempty"`
	LastActivationOffset int64               `json:"last_activation_offset"` // seconds since history start
	Counters             ActivationCounters  `json:"counters"`
	UpdatedAt            time.Time           `json:"updated_at"`
}
