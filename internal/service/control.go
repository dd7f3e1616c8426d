package service

import (
	"context"
)

// ControlService routes external commands to the device pollers.
type ControlService struct {
	devices DeviceSource
}

func NewControlService(devices DeviceSource) *ControlService {
	return &ControlService{devices: devices}
}

// SetSwitch acknowledges a set request; the engine value is restored shortly after.
func (s *ControlService) SetSwitch(_ context.Context, deviceID string, on bool) error {
	p, ok := s.devices.Get(deviceID)
	if !ok {
		return ErrDeviceNotFound
	}
	return p.SetSwitch(on)
}

// Reset zeroes the activation counter of a device.
func (s *ControlService) Reset(ctx context.Context, deviceID string) error {
	p, ok := s.devices.Get(deviceID)
	if !ok {
		return ErrDeviceNotFound
	}
	return p.Reset(ctx)
}
