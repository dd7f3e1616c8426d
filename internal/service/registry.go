package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"printer_monitor/internal/ipp"
	"printer_monitor/internal/logger"
	"printer_monitor/internal/models"
	"printer_monitor/internal/publisher"
	"printer_monitor/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultPollingSeconds = 10
	minPollingSeconds     = 1
)

// deviceNamespace seeds the name-derived device ids.
var deviceNamespace = uuid.MustParse("6f1c2b9e-3d4a-5e8f-9a0b-1c2d3e4f5a6b")

// DeviceID derives the stable identifier of a device from its name.
func DeviceID(name string) string {
	return uuid.NewSHA1(deviceNamespace, []byte(strings.TrimSpace(name))).String()
}

// NewDevice validates one configuration entry.
func NewDevice(cfg models.PrinterConfig) (models.Device, error) {
	name := strings.TrimSpace(cfg.Name)
	address := strings.TrimSpace(cfg.Address)
	if name == "" {
		return models.Device{}, fmt.Errorf("%w: missing name", ErrConfiguration)
	}
	if address == "" {
		return models.Device{}, fmt.Errorf("%w: %q: missing address", ErrConfiguration, name)
	}
	if _, _, err := ipp.ResolveEndpoint(address); err != nil {
		return models.Device{}, fmt.Errorf("%w: %q: %w", ErrConfiguration, name, err)
	}

	polling := defaultPollingSeconds
	if cfg.Polling != nil {
		polling = max(*cfg.Polling, minPollingSeconds)
	}

	control := models.ControlAckRevert
	if strings.EqualFold(strings.TrimSpace(cfg.SwitchType), models.SwitchTypeCharacteristic) {
		control = models.ControlNone
	}

	return models.Device{
		ID:               DeviceID(name),
		Name:             name,
		Address:          address,
		Interval:         time.Duration(polling) * time.Second,
		TrackConsumables: cfg.Marker,
		Control:          control,
		Manufacturer:     cfg.Manufacturer,
		Model:            cfg.Model,
		SerialNumber:     cfg.SerialNumber,
	}, nil
}

// TransportFactory builds the protocol transport of a device.
type TransportFactory func(d models.Device) (ipp.Transport, error)

// HTTPTransportFactory returns a factory sharing one HTTP client.
func HTTPTransportFactory(client *http.Client) TransportFactory {
	return func(d models.Device) (ipp.Transport, error) {
		return ipp.NewHTTPTransport(d.Address, client)
	}
}

// EngineDeps are shared by every poller the registry creates.
type EngineDeps struct {
	Transport   TransportFactory
	States      repository.StateRepo
	History     repository.HistoryRepo
	Publisher   publisher.Publisher
	Observer    PollObserver
	Log         *logger.Logger
	Now         func() time.Time
	RevertDelay time.Duration
}

// ReconcileResult reports what a reconciliation changed. Values are device names.
type ReconcileResult struct {
	Added   []string
	Removed []string
	Skipped []string
}

// Registry owns the pollers. Its table is written only by Reconcile, Remove
// and Shutdown.
type Registry struct {
	devices repository.DeviceRepo
	deps    EngineDeps
	log     *logger.Logger

	mu      sync.RWMutex
	pollers map[string]*Poller
	order   []string
}

func NewRegistry(devices repository.DeviceRepo, deps EngineDeps) *Registry {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Publisher == nil {
		deps.Publisher = publisher.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Transport == nil {
		deps.Transport = HTTPTransportFactory(nil)
	}
	return &Registry{
		devices: devices,
		deps:    deps,
		log:     deps.Log.Named("registry"),
		pollers: make(map[string]*Poller),
	}
}

// Reconcile starts a poller for every valid configured device and tears down
// devices known from a previous run that are no longer configured.
func (r *Registry) Reconcile(ctx context.Context, configs []models.PrinterConfig) (ReconcileResult, error) {
	var res ReconcileResult

	configured := make([]models.Device, 0, len(configs))
	seen := make(map[string]struct{}, len(configs))
	for _, cfg := range configs {
		d, err := NewDevice(cfg)
		if err != nil {
			r.log.Warnw("device_skipped", "name", cfg.Name, "error", err)
			res.Skipped = append(res.Skipped, cfg.Name)
			continue
		}
		if _, dup := seen[d.ID]; dup {
			r.log.Warnw("device_duplicate", "name", d.Name)
			res.Skipped = append(res.Skipped, d.Name)
			continue
		}
		seen[d.ID] = struct{}{}
		configured = append(configured, d)
	}

	known, err := r.devices.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list known devices: %w", err)
	}
	knownIDs := make(map[string]struct{}, len(known))
	for _, d := range known {
		knownIDs[d.ID] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range configured {
		if _, running := r.pollers[d.ID]; running {
			continue
		}
		p, err := r.newPoller(d)
		if err != nil {
			r.log.Warnw("device_skipped", "name", d.Name, "error", err)
			res.Skipped = append(res.Skipped, d.Name)
			continue
		}
		if err := r.devices.Upsert(ctx, d); err != nil {
			return res, fmt.Errorf("register device %q: %w", d.Name, err)
		}
		if _, ok := knownIDs[d.ID]; !ok {
			r.deps.Publisher.Publish(models.StateEvent{
				Type:       models.EventDeviceAdded,
				DeviceID:   d.ID,
				DeviceName: d.Name,
				OccurredAt: r.deps.Now().UTC(),
			})
			res.Added = append(res.Added, d.Name)
		}
		if err := p.Start(ctx); err != nil {
			return res, fmt.Errorf("start poller %q: %w", d.Name, err)
		}
		r.pollers[d.ID] = p
		r.order = append(r.order, d.ID)
	}

	for _, d := range known {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		if err := r.teardownLocked(ctx, d); err != nil {
			return res, err
		}
		res.Removed = append(res.Removed, d.Name)
	}

	r.log.Infow("devices_reconciled", "added", len(res.Added), "removed", len(res.Removed), "skipped", len(res.Skipped), "running", len(r.pollers))
	return res, nil
}

func (r *Registry) newPoller(d models.Device) (*Poller, error) {
	tr, err := r.deps.Transport(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return NewPoller(PollerConfig{
		Device:      d,
		Querier:     ipp.NewClient(tr),
		States:      r.deps.States,
		History:     r.deps.History,
		Publisher:   r.deps.Publisher,
		Observer:    r.deps.Observer,
		Log:         r.deps.Log,
		Now:         r.deps.Now,
		RevertDelay: r.deps.RevertDelay,
	}), nil
}

// teardownLocked stops the device's poller, removes its consumables and
// forgets it. r.mu must be held.
func (r *Registry) teardownLocked(ctx context.Context, d models.Device) error {
	if p, ok := r.pollers[d.ID]; ok {
		p.Stop()
		p.RemoveConsumables()
		delete(r.pollers, d.ID)
		for i, id := range r.order {
			if id == d.ID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	} else if r.deps.States != nil {
		// not running in this process: announce removal of persisted trackers
		st, err := r.deps.States.Load(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("load state of %q: %w", d.Name, err)
		}
		cm := NewConsumableManager(d, r.deps.Publisher, r.deps.Now)
		cm.Seed(st.Consumables)
		cm.RemoveAll()
	}

	if r.deps.States != nil {
		if err := r.deps.States.Delete(ctx, d.ID); err != nil {
			return fmt.Errorf("delete state of %q: %w", d.Name, err)
		}
	}
	if err := r.devices.Delete(ctx, d.ID); err != nil {
		return fmt.Errorf("deregister device %q: %w", d.Name, err)
	}

	r.deps.Publisher.Publish(models.StateEvent{
		Type:       models.EventDeviceRemoved,
		DeviceID:   d.ID,
		DeviceName: d.Name,
		OccurredAt: r.deps.Now().UTC(),
	})
	r.log.Infow("device_removed", "name", d.Name, "device_id", d.ID)
	return nil
}

// Remove tears down a running device.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pollers[id]
	if !ok {
		return ErrDeviceNotFound
	}
	return r.teardownLocked(ctx, p.Device())
}

// Get returns the poller of a running device.
func (r *Registry) Get(id string) (*Poller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pollers[id]
	return p, ok
}

// List returns the running pollers in registration order.
func (r *Registry) List() []*Poller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Poller, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.pollers[id])
	}
	return out
}

// Shutdown stops every poller. Devices stay registered for the next run.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		r.pollers[id].Stop()
	}
	r.pollers = make(map[string]*Poller)
	r.order = nil
}
