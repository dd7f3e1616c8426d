package publisher

import (
	"strings"

	"printer_monitor/internal/models"
)

// Topic suffixes for inbound commands.
const (
	commandSwitchSet = "switch/set"
	commandReset     = "reset"
)

// Topics builds MQTT topic names under a common prefix:
//
//	<prefix>/<device>/<event>
//	<prefix>/<device>/consumable/<sub-id>
//	<prefix>/<device>/switch/set   (inbound)
//	<prefix>/<device>/reset        (inbound)
type Topics struct {
	Prefix string
}

func (t Topics) base(deviceID string) string {
	return strings.TrimSuffix(t.Prefix, "/") + "/" + deviceID
}

// Event returns the retained state topic for an event.
func (t Topics) Event(ev models.StateEvent) string {
	switch ev.Type {
	case models.EventConsumable, models.EventConsumableRemoved:
		return t.Consumable(ev.DeviceID, ev.SubID)
	case models.EventDeviceAdded, models.EventDeviceRemoved:
		return t.base(ev.DeviceID) + "/device"
	default:
		return t.base(ev.DeviceID) + "/" + string(ev.Type)
	}
}

func (t Topics) Consumable(deviceID, subID string) string {
	return t.base(deviceID) + "/consumable/" + subID
}

// SwitchSet is the wildcard subscription for switch commands.
func (t Topics) SwitchSet() string { return t.base("+") + "/" + commandSwitchSet }

// Reset is the wildcard subscription for counter resets.
func (t Topics) Reset() string { return t.base("+") + "/" + commandReset }

// ParseCommand extracts the device id and command suffix from an inbound topic.
func (t Topics) ParseCommand(topic string) (deviceID, command string, ok bool) {
	prefix := strings.TrimSuffix(t.Prefix, "/") + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(topic, prefix)
	i := strings.IndexByte(rest, '/')
	if i <= 0 {
		return "", "", false
	}
	deviceID, command = rest[:i], rest[i+1:]
	switch command {
	case commandSwitchSet, commandReset:
		return deviceID, command, true
	}
	return "", "", false
}
