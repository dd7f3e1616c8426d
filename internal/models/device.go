package models

import "time"

// Switch types accepted in printer configuration.
const (
	SwitchTypeSwitch         = "SWITCH"
	SwitchTypeCharacteristic = "CHARACTERISTIC"
)

// ControlMode describes how external "set" requests are handled for a device.
type ControlMode string

const (
	ControlNone      ControlMode = "none"       // set requests are rejected
	ControlAckRevert ControlMode = "ack-revert" // set requests are acknowledged, then reverted
)

// PrinterConfig is one entry of the `printers` configuration list.
type PrinterConfig struct {
	Name         string `mapstructure:"name" json:"name"`
	Address      string `mapstructure:"address" json:"address"`
	Polling      *int   `mapstructure:"polling" json:"polling,omitempty"` // seconds; unset means 10, floor 1
	Marker       bool   `mapstructure:"marker" json:"marker"`             // enables consumable tracking
	SwitchType   string `mapstructure:"switchType" json:"switch_type"`    // SWITCH | CHARACTERISTIC
	Manufacturer string `mapstructure:"manufacturer" json:"manufacturer"` // display only
	Model        string `mapstructure:"model" json:"model"`
	SerialNumber string `mapstructure:"serialNumber" json:"serial_number"`
}

// Device is a validated printer target polled by the engine.
type Device struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Address          string        `json:"address"`
	Interval         time.Duration `json:"interval"`
	TrackConsumables bool          `json:"track_consumables"`
	Control          ControlMode   `json:"control"`
	Manufacturer     string        `json:"manufacturer,omitempty"`
	Model            string        `json:"model,omitempty"`
	SerialNumber     string        `json:"serial_number,omitempty"`
}
