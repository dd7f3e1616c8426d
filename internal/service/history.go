package service

import (
	"context"
	"sync"
	"time"

	"printer_monitor/internal/logger"
	"printer_monitor/internal/models"
	"printer_monitor/internal/repository"
)

// Heartbeat cadence of the history recorder.
const (
	HeartbeatFirst = 5 * time.Second
	HeartbeatEvery = 10 * time.Minute
)

// HistoryRecorder appends activity entries for one device. Write errors are
// logged and never returned.
type HistoryRecorder struct {
	repo     repository.HistoryRepo
	deviceID string
	log      *logger.Logger
	initial  time.Time

	mu   sync.Mutex
	last time.Time
}

func NewHistoryRecorder(repo repository.HistoryRepo, deviceID string, initial time.Time, log *logger.Logger) *HistoryRecorder {
	if log == nil {
		log = logger.Nop()
	}
	return &HistoryRecorder{
		repo:     repo,
		deviceID: deviceID,
		log:      log,
		initial:  initial.UTC(),
	}
}

// InitialTime is the recorder's creation time.
func (r *HistoryRecorder) InitialTime() time.Time { return r.initial }

// AddEntry records a transition.
func (r *HistoryRecorder) AddEntry(ctx context.Context, ts time.Time, status int) {
	r.add(ctx, ts, status, models.HistoryKindTransition)
}

// AddHeartbeat records the current status without a transition.
func (r *HistoryRecorder) AddHeartbeat(ctx context.Context, ts time.Time, status int) {
	r.add(ctx, ts, status, models.HistoryKindHeartbeat)
}

func (r *HistoryRecorder) add(ctx context.Context, ts time.Time, status int, kind string) {
	if r.repo == nil {
		return
	}

	// entries are time-ordered per device
	r.mu.Lock()
	ts = ts.UTC()
	if ts.Before(r.last) {
		ts = r.last
	}
	r.last = ts
	r.mu.Unlock()

	err := r.repo.Append(ctx, models.HistoryEntry{
		DeviceID: r.deviceID,
		Time:     ts,
		Status:   status,
		Kind:     kind,
	})
	if err != nil {
		r.log.Errorw("history_append_failed", "kind", kind, "error", err)
	}
}

// RunHeartbeat appends status() after first and then every interval until ctx is done.
func (r *HistoryRecorder) RunHeartbeat(ctx context.Context, first, every time.Duration, now func() time.Time, status func() int) {
	t := time.NewTimer(first)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.AddHeartbeat(ctx, now(), status())
			t.Reset(every)
		}
	}
}

// HistoryFilter narrows a history query. Status < 0 means any.
type HistoryFilter struct {
	DeviceID string
	From     time.Time
	To       time.Time
	Status   int
}

type HistoryService struct {
	repo repository.HistoryRepo
}

func NewHistoryService(repo repository.HistoryRepo) *HistoryService {
	return &HistoryService{repo: repo}
}

// List returns history entries matching f in insertion order.
func (s *HistoryService) List(ctx context.Context, f HistoryFilter) ([]models.HistoryEntry, error) {
	from, to := toUTC(f.From), toUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, ErrInvalidTimeRange
	}
	return s.repo.List(ctx, f.DeviceID, from, to, f.Status)
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
