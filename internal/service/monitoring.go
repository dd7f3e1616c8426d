package service

import (
	"context"

	"printer_monitor/internal/models"
)

// DeviceSource is the read side of the registry.
type DeviceSource interface {
	Get(id string) (*Poller, bool)
	List() []*Poller
}

type MonitoringService struct {
	devices DeviceSource
}

func NewMonitoringService(devices DeviceSource) *MonitoringService {
	return &MonitoringService{devices: devices}
}

// GetState returns the live state of one device.
func (s *MonitoringService) GetState(_ context.Context, deviceID string) (models.DeviceState, error) {
	p, ok := s.devices.Get(deviceID)
	if !ok {
		return models.DeviceState{}, ErrDeviceNotFound
	}
	return normalizeState(p.State()), nil
}

// ListStates returns the live state of every running device.
func (s *MonitoringService) ListStates(_ context.Context) ([]models.DeviceState, error) {
	pollers := s.devices.List()
	out := make([]models.DeviceState, 0, len(pollers))
	for _, p := range pollers {
		out = append(out, normalizeState(p.State()))
	}
	return out, nil
}

func normalizeState(st models.DeviceState) models.DeviceState {
	st.UpdatedAt = toUTC(st.UpdatedAt)
	st.Counters.ResetEpoch = toUTC(st.Counters.ResetEpoch)
	return st
}
