package service

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"printer_monitor/internal/models"
	"printer_monitor/internal/publisher"
)

const consumableSubIDPrefix = "marker-"

// ConsumableSubID derives the stable sub-id of the marker at index.
func ConsumableSubID(index int) string {
	return consumableSubIDPrefix + strconv.Itoa(index)
}

// ConsumableResult lists the trackers touched by one reconciliation.
type ConsumableResult struct {
	Created []models.ConsumableTracker
	Updated []models.ConsumableTracker
	Removed []models.ConsumableTracker
}

// ReconcileConsumables computes the diff between the current trackers and the
// desired readings. Trackers missing from desired are kept; Removed is always
// empty here and only filled by a bulk teardown.
func ReconcileConsumables(current []models.ConsumableTracker, desired []models.ConsumableReading) ConsumableResult {
	byID := make(map[string]models.ConsumableTracker, len(current))
	for _, t := range current {
		byID[t.SubID] = t
	}

	var res ConsumableResult
	seen := make(map[string]struct{}, len(desired))
	for _, r := range desired {
		id := ConsumableSubID(r.Index)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		level := clampLevel(r.Level)
		t, ok := byID[id]
		if !ok {
			res.Created = append(res.Created, models.ConsumableTracker{SubID: id, Name: r.Name, Level: level})
			continue
		}
		if t.Level != level {
			t.Level = level
			res.Updated = append(res.Updated, t)
		}
	}
	return res
}

// ConsumableManager owns the consumable trackers of one device.
type ConsumableManager struct {
	deviceID   string
	deviceName string
	pub        publisher.Publisher
	now        func() time.Time

	mu       sync.Mutex
	trackers []models.ConsumableTracker
}

func NewConsumableManager(d models.Device, pub publisher.Publisher, now func() time.Time) *ConsumableManager {
	if pub == nil {
		pub = publisher.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &ConsumableManager{deviceID: d.ID, deviceName: d.Name, pub: pub, now: now}
}

// Seed restores trackers loaded from storage without announcing them.
func (m *ConsumableManager) Seed(trackers []models.ConsumableTracker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackers = append(m.trackers[:0], trackers...)
}

// Reconcile applies the readings of one poll and announces new or changed trackers.
func (m *ConsumableManager) Reconcile(readings []models.ConsumableReading) ConsumableResult {
	m.mu.Lock()
	res := ReconcileConsumables(m.trackers, readings)
	for _, u := range res.Updated {
		for i := range m.trackers {
			if m.trackers[i].SubID == u.SubID {
				m.trackers[i].Level = u.Level
			}
		}
	}
	m.trackers = append(m.trackers, res.Created...)
	m.mu.Unlock()

	for _, t := range res.Created {
		m.publish(models.EventConsumable, t)
	}
	for _, t := range res.Updated {
		m.publish(models.EventConsumable, t)
	}
	return res
}

// RemoveAll tears down every marker tracker.
func (m *ConsumableManager) RemoveAll() ConsumableResult {
	m.mu.Lock()
	var res ConsumableResult
	kept := m.trackers[:0]
	for _, t := range m.trackers {
		if strings.HasPrefix(t.SubID, consumableSubIDPrefix) {
			res.Removed = append(res.Removed, t)
			continue
		}
		kept = append(kept, t)
	}
	m.trackers = kept
	m.mu.Unlock()

	for _, t := range res.Removed {
		m.publish(models.EventConsumableRemoved, t)
	}
	return res
}

// Trackers returns a copy of the current trackers in creation order.
func (m *ConsumableManager) Trackers() []models.ConsumableTracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.trackers) == 0 {
		return nil
	}
	out := make([]models.ConsumableTracker, len(m.trackers))
	copy(out, m.trackers)
	return out
}

func (m *ConsumableManager) publish(typ models.EventType, t models.ConsumableTracker) {
	ev := models.StateEvent{
		Type:       typ,
		DeviceID:   m.deviceID,
		DeviceName: m.deviceName,
		SubID:      t.SubID,
		Name:       t.Name,
		OccurredAt: m.now().UTC(),
	}
	if typ == models.EventConsumable {
		ev.Level = t.Level
	}
	m.pub.Publish(ev)
}
