package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"printer_monitor/internal/ipp"
	"printer_monitor/internal/logger"
	"printer_monitor/internal/metrics"
	"printer_monitor/internal/models"
	"printer_monitor/internal/publisher"
	"printer_monitor/internal/repository"
)

// Poller phases.
const (
	PhaseIdle     = "idle"
	PhasePolling  = "polling"
	PhaseApplying = "applying"
	PhaseFailed   = "failed"
	PhaseStopped  = "stopped"
)

const (
	// DefaultRevertDelay is how long an acknowledged switch request stands
	// before the engine's own value is re-published.
	DefaultRevertDelay = 500 * time.Millisecond

	minQueryTimeout = 500 * time.Millisecond
	maxQueryTimeout = 10 * time.Second

	// resetReferenceUnix is 2001-01-01T00:00:00Z, the reference of reset_total.
	resetReferenceUnix = 978307200
)

// Querier fetches printer attributes. *ipp.Client implements it.
type Querier interface {
	Query(ctx context.Context, names []string) (ipp.AttributeBag, error)
}

// PollObserver records poll outcomes. *metrics.Metrics implements it.
type PollObserver interface {
	ObservePoll(deviceID, outcome string, d time.Duration)
}

// PollerConfig carries the collaborators of one Poller.
type PollerConfig struct {
	Device      models.Device
	Querier     Querier
	States      repository.StateRepo
	History     repository.HistoryRepo
	Publisher   publisher.Publisher
	Observer    PollObserver
	Log         *logger.Logger
	Now         func() time.Time
	RevertDelay time.Duration

	HeartbeatFirst time.Duration
	HeartbeatEvery time.Duration
}

// Poller is the polling state machine of one device. Polls never overlap:
// the timer for the next cycle is armed only after the current one finishes.
type Poller struct {
	device      models.Device
	querier     Querier
	states      repository.StateRepo
	pub         publisher.Publisher
	obs         PollObserver
	log         *logger.Logger
	now         func() time.Time
	revertDelay time.Duration
	hbFirst     time.Duration
	hbEvery     time.Duration

	recorder    *HistoryRecorder
	consumables *ConsumableManager

	mu             sync.Mutex
	phase          string
	last           models.StateSnapshot
	lastOffset     int64
	lastTransition time.Time
	counters       models.ActivationCounters
	updatedAt      time.Time
	alive          bool
	cancel         context.CancelFunc
	done           chan struct{}
	reverts        map[*time.Timer]struct{}
}

func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logger.Nop()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = publisher.Nop{}
	}
	if cfg.Observer == nil {
		cfg.Observer = (*metrics.Metrics)(nil)
	}
	if cfg.RevertDelay <= 0 {
		cfg.RevertDelay = DefaultRevertDelay
	}
	if cfg.HeartbeatFirst <= 0 {
		cfg.HeartbeatFirst = HeartbeatFirst
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = HeartbeatEvery
	}

	log := cfg.Log.Named("poller").With("device_id", cfg.Device.ID, "device", cfg.Device.Name)
	initial := cfg.Now()
	return &Poller{
		device:         cfg.Device,
		querier:        cfg.Querier,
		states:         cfg.States,
		pub:            cfg.Publisher,
		obs:            cfg.Observer,
		log:            log,
		now:            cfg.Now,
		revertDelay:    cfg.RevertDelay,
		hbFirst:        cfg.HeartbeatFirst,
		hbEvery:        cfg.HeartbeatEvery,
		recorder:       NewHistoryRecorder(cfg.History, cfg.Device.ID, initial, log),
		consumables:    NewConsumableManager(cfg.Device, cfg.Publisher, cfg.Now),
		phase:          PhaseIdle,
		lastTransition: initial,
		reverts:        make(map[*time.Timer]struct{}),
	}
}

// Device returns the polled device.
func (p *Poller) Device() models.Device { return p.device }

// Start restores persisted counters and trackers, then launches the poll loop
// and the history heartbeat. The first poll runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.alive {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.restore(ctx); err != nil {
		p.log.Warnw("state_restore_failed", "error", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.alive = true
	p.phase = PhaseIdle
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.run(runCtx)
	}()
	go func() {
		defer wg.Done()
		p.recorder.RunHeartbeat(runCtx, p.hbFirst, p.hbEvery, p.now, p.status)
	}()
	go func() {
		wg.Wait()
		close(done)
	}()

	p.log.Infow("poller_started", "interval", p.device.Interval.String())
	return nil
}

func (p *Poller) restore(ctx context.Context) error {
	if p.states == nil {
		return nil
	}
	st, err := p.states.Load(ctx, p.device.ID)
	if err != nil {
		return err
	}
	if st.DeviceID == "" {
		return nil
	}

	p.mu.Lock()
	p.counters = st.Counters
	p.last = models.StateSnapshot{Reachable: st.Reachable, Active: st.Active}.Effective()
	p.mu.Unlock()

	p.consumables.Seed(st.Consumables)
	if !p.device.TrackConsumables {
		p.consumables.RemoveAll()
	}
	return nil
}

// Stop cancels the pending timer and waits for an in-flight cycle to finish.
// Results of a poll that completes after Stop are dropped.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.alive {
		p.mu.Unlock()
		return
	}
	p.alive = false
	p.phase = PhaseStopped
	cancel, done := p.cancel, p.done
	for t := range p.reverts {
		t.Stop()
		delete(p.reverts, t)
	}
	p.mu.Unlock()

	cancel()
	<-done
	p.log.Infow("poller_stopped")
}

func (p *Poller) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		p.pollOnce(ctx)
		timer.Reset(p.device.Interval)
	}
}

// queryTimeout bounds a query below the polling interval.
func queryTimeout(interval time.Duration) time.Duration {
	d := interval * 8 / 10
	if d < minQueryTimeout {
		return minQueryTimeout
	}
	if d > maxQueryTimeout {
		return maxQueryTimeout
	}
	return d
}

func (p *Poller) requestedAttributes() []string {
	if p.device.TrackConsumables {
		return ipp.ConsumableAttributes
	}
	return nil
}

func (p *Poller) pollOnce(ctx context.Context) {
	if !p.setPhase(PhasePolling) {
		return
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout(p.device.Interval))
	started := time.Now()
	bag, err := p.querier.Query(qctx, p.requestedAttributes())
	elapsed := time.Since(started)
	cancel()

	if ctx.Err() != nil || !p.isAlive() {
		return
	}

	if err != nil {
		p.fail(ctx, err, elapsed)
	} else {
		p.apply(ctx, bag, elapsed)
	}
	p.setPhase(PhaseIdle)
}

func (p *Poller) apply(ctx context.Context, bag ipp.AttributeBag, elapsed time.Duration) {
	p.setPhase(PhaseApplying)
	p.obs.ObservePoll(p.device.ID, metrics.OutcomeOK, elapsed)

	snap := MapAttributes(bag, p.device.TrackConsumables).Effective()
	now := p.now()

	p.mu.Lock()
	prev := p.last
	p.mu.Unlock()

	if snap.Active != prev.Active {
		p.transition(ctx, now, snap.Active)
	}
	if p.device.TrackConsumables {
		p.consumables.Reconcile(snap.Consumables)
	}

	p.publishFlag(models.EventReachable, snap.Reachable, now)
	p.publishFlag(models.EventActive, snap.Active, now)
	p.store(ctx, snap, now)
}

func (p *Poller) fail(ctx context.Context, err error, elapsed time.Duration) {
	p.setPhase(PhaseFailed)

	outcome := metrics.OutcomeProtocol
	if errors.Is(err, ipp.ErrUnreachable) {
		outcome = metrics.OutcomeUnreachable
		p.log.Debugw("poll_unreachable", "error", err)
	} else {
		p.log.Errorw("poll_failed", "error", err)
	}
	p.obs.ObservePoll(p.device.ID, outcome, elapsed)

	now := p.now()
	p.mu.Lock()
	wasActive := p.last.Active
	p.mu.Unlock()

	if wasActive {
		p.transition(ctx, now, false)
	}
	p.publishFlag(models.EventActive, false, now)
	p.publishFlag(models.EventReachable, false, now)
	p.store(ctx, models.StateSnapshot{}, now)
}

// transition handles a change of the active flag.
func (p *Poller) transition(ctx context.Context, now time.Time, active bool) {
	offset := int64(now.Sub(p.recorder.InitialTime()) / time.Second)

	p.mu.Lock()
	if offset < p.lastOffset {
		offset = p.lastOffset
	}
	// only activations move the reported offset
	if active {
		p.lastOffset = offset
	}
	held := int64(now.Sub(p.lastTransition) / time.Second)
	if held < 0 {
		held = 0
	}
	p.lastTransition = now
	if active {
		p.counters.Count++
	}
	count := p.counters.Count
	p.mu.Unlock()

	base := models.StateEvent{DeviceID: p.device.ID, DeviceName: p.device.Name, OccurredAt: now.UTC()}
	if active {
		ev := base
		ev.Type, ev.Seconds = models.EventLastActivation, offset
		p.pub.Publish(ev)

		ev = base
		ev.Type, ev.Count = models.EventActivationCount, count
		p.pub.Publish(ev)

		ev = base
		ev.Type, ev.Seconds = models.EventClosedDuration, held
		p.pub.Publish(ev)
	} else {
		ev := base
		ev.Type, ev.Seconds = models.EventOpenDuration, held
		p.pub.Publish(ev)
	}

	p.recorder.AddEntry(ctx, now, statusOf(active))
}

func (p *Poller) publishFlag(typ models.EventType, v bool, now time.Time) {
	p.pub.Publish(models.StateEvent{
		Type:       typ,
		DeviceID:   p.device.ID,
		DeviceName: p.device.Name,
		Value:      models.Bool(v),
		OccurredAt: now.UTC(),
	})
}

func (p *Poller) store(ctx context.Context, snap models.StateSnapshot, now time.Time) {
	p.mu.Lock()
	p.last = snap
	p.updatedAt = now.UTC()
	p.mu.Unlock()

	if p.states == nil {
		return
	}
	if err := p.states.Save(ctx, p.State()); err != nil {
		p.log.Errorw("state_save_failed", "error", err)
	}
}

// SetSwitch acknowledges an external set request and re-publishes the
// engine's last known reachable value after the revert delay.
func (p *Poller) SetSwitch(on bool) error {
	if p.device.Control != models.ControlAckRevert {
		return ErrControlNotExposed
	}
	if !p.isAlive() {
		return ErrDeviceNotFound
	}

	now := p.now()
	p.pub.Publish(models.StateEvent{
		Type:       models.EventControlAck,
		DeviceID:   p.device.ID,
		DeviceName: p.device.Name,
		Value:      models.Bool(on),
		OccurredAt: now.UTC(),
	})
	p.log.Infow("switch_set_ignored", "requested", on)

	p.mu.Lock()
	defer p.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(p.revertDelay, func() {
		p.mu.Lock()
		_, pending := p.reverts[t]
		delete(p.reverts, t)
		alive := p.alive
		reachable := p.last.Reachable
		p.mu.Unlock()
		if !pending || !alive {
			return
		}
		p.publishFlag(models.EventReachable, reachable, p.now())
	})
	p.reverts[t] = struct{}{}
	return nil
}

// Reset zeroes the activation counter and stamps a new epoch. Polling continues.
func (p *Poller) Reset(ctx context.Context) error {
	now := p.now().UTC()

	p.mu.Lock()
	p.counters = models.ActivationCounters{Count: 0, ResetEpoch: now}
	p.mu.Unlock()

	if p.states != nil {
		if err := p.states.Save(ctx, p.State()); err != nil {
			return err
		}
	}

	base := models.StateEvent{DeviceID: p.device.ID, DeviceName: p.device.Name, OccurredAt: now}
	ev := base
	ev.Type, ev.Count = models.EventActivationCount, 0
	p.pub.Publish(ev)

	ev = base
	ev.Type, ev.Seconds = models.EventResetTotal, now.Unix()-resetReferenceUnix
	p.pub.Publish(ev)

	p.log.Infow("counters_reset")
	return nil
}

// RemoveConsumables tears down every consumable tracker of the device.
func (p *Poller) RemoveConsumables() {
	p.consumables.RemoveAll()
}

// State returns the current view of the device.
func (p *Poller) State() models.DeviceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.DeviceState{
		DeviceID:             p.device.ID,
		Name:                 p.device.Name,
		Phase:                p.phase,
		Reachable:            p.last.Reachable,
		Active:               p.last.Active,
		Consumables:          p.consumables.Trackers(),
		LastActivationOffset: p.lastOffset,
		Counters:             p.counters,
		UpdatedAt:            p.updatedAt,
	}
}

func (p *Poller) status() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return statusOf(p.last.Active)
}

func (p *Poller) isAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// setPhase moves to phase unless the poller was stopped.
func (p *Poller) setPhase(phase string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return false
	}
	p.phase = phase
	return true
}

func statusOf(active bool) int {
	if active {
		return 1
	}
	return 0
}
