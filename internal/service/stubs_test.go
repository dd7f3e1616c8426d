package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"printer_monitor/internal/ipp"
	"printer_monitor/internal/models"
)

// querierStub replays scripted results; the last one repeats.
type querierStub struct {
	mu      sync.Mutex
	results []queryResult
	calls   int
	names   [][]string
	block   bool
}

type queryResult struct {
	bag ipp.AttributeBag
	err error
}

func (q *querierStub) Query(ctx context.Context, names []string) (ipp.AttributeBag, error) {
	q.mu.Lock()
	q.calls++
	q.names = append(q.names, names)
	block := q.block
	var r queryResult
	if len(q.results) > 0 {
		i := q.calls - 1
		if i >= len(q.results) {
			i = len(q.results) - 1
		}
		r = q.results[i]
	}
	q.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return r.bag, r.err
}

func (q *querierStub) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

type stateRepoStub struct {
	mu      sync.Mutex
	states  map[string]models.DeviceState
	saves   int
	deleted []string
}

func newStateRepoStub() *stateRepoStub {
	return &stateRepoStub{states: map[string]models.DeviceState{}}
}

func (s *stateRepoStub) Save(_ context.Context, st models.DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.states[st.DeviceID] = st
	return nil
}

func (s *stateRepoStub) Load(_ context.Context, id string) (models.DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id], nil
}

func (s *stateRepoStub) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type historyRepoStub struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
	err     error
}

func (h *historyRepoStub) Append(_ context.Context, e models.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, e)
	return nil
}

func (h *historyRepoStub) List(_ context.Context, deviceID string, from, to time.Time, status int) ([]models.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.HistoryEntry
	for _, e := range h.entries {
		if deviceID != "" && e.DeviceID != deviceID {
			continue
		}
		if !from.IsZero() && e.Time.Before(from) {
			continue
		}
		if !to.IsZero() && e.Time.After(to) {
			continue
		}
		if status >= 0 && e.Status != status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (h *historyRepoStub) ofKind(kind string) []models.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.HistoryEntry
	for _, e := range h.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// stepClock advances one second on every call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func okBag(state string, markers ...any) ipp.AttributeBag {
	bag := ipp.AttributeBag{ipp.AttrPrinterState: state}
	if len(markers) == 2 {
		bag[ipp.AttrMarkerNames] = markers[0]
		bag[ipp.AttrMarkerLevels] = markers[1]
	}
	return bag
}
