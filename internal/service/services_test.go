package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"printer_monitor/internal/models"
)

func TestMonitoringAndControl_UnknownDevice(t *testing.T) {
	r := newTestRegistry(t, newDeviceRepoStub(), newStateRepoStub(), &eventRecorder{})
	mon := NewMonitoringService(r)
	ctl := NewControlService(r)

	if _, err := mon.GetState(context.Background(), "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("GetState: want ErrDeviceNotFound, got %v", err)
	}
	if err := ctl.SetSwitch(context.Background(), "missing", true); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("SetSwitch: want ErrDeviceNotFound, got %v", err)
	}
	if err := ctl.Reset(context.Background(), "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("Reset: want ErrDeviceNotFound, got %v", err)
	}
	states, err := mon.ListStates(context.Background())
	if err != nil || len(states) != 0 {
		t.Fatalf("ListStates: %v, %v", states, err)
	}
}

func TestMonitoringService_ListsRunningDevices(t *testing.T) {
	r := newTestRegistry(t, newDeviceRepoStub(), newStateRepoStub(), &eventRecorder{})
	if _, err := r.Reconcile(context.Background(), []models.PrinterConfig{
		{Name: "Lab", Address: "10.0.0.7"},
		{Name: "Office", Address: "10.0.0.5"},
	}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	mon := NewMonitoringService(r)
	waitFor(t, "first polls", func() bool {
		st, err := mon.GetState(context.Background(), DeviceID("Office"))
		return err == nil && st.Reachable
	})

	states, err := mon.ListStates(context.Background())
	if err != nil {
		t.Fatalf("ListStates: %v", err)
	}
	if len(states) != 2 || states[0].Name != "Lab" || states[1].Name != "Office" {
		t.Fatalf("unexpected states: %+v", states)
	}
}

func TestHistoryService_List(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &historyRepoStub{entries: []models.HistoryEntry{
		{DeviceID: "d1", Time: base, Status: 1},
		{DeviceID: "d1", Time: base.Add(time.Hour), Status: 0},
		{DeviceID: "d2", Time: base.Add(2 * time.Hour), Status: 1},
	}}
	svc := NewHistoryService(repo)

	tests := []struct {
		name    string
		filter  HistoryFilter
		want    int
		wantErr error
	}{
		{name: "all", filter: HistoryFilter{Status: -1}, want: 3},
		{name: "device", filter: HistoryFilter{DeviceID: "d1", Status: -1}, want: 2},
		{name: "status", filter: HistoryFilter{Status: 1}, want: 2},
		{name: "range", filter: HistoryFilter{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute), Status: -1}, want: 1},
		{name: "inverted range", filter: HistoryFilter{From: base.Add(time.Hour), To: base, Status: -1}, wantErr: ErrInvalidTimeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(context.Background(), tt.filter)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || len(got) != tt.want {
				t.Fatalf("List() = %d entries, %v; want %d", len(got), err, tt.want)
			}
		})
	}
}

func TestHistoryRecorder_OrdersEntriesAndSwallowsErrors(t *testing.T) {
	repo := &historyRepoStub{}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := NewHistoryRecorder(repo, "d1", start, nil)

	if !rec.InitialTime().Equal(start) {
		t.Fatalf("InitialTime: %v", rec.InitialTime())
	}

	rec.AddEntry(context.Background(), start.Add(time.Minute), 1)
	rec.AddEntry(context.Background(), start, 0)
	if repo.entries[1].Time.Before(repo.entries[0].Time) {
		t.Fatalf("entries not time ordered: %+v", repo.entries)
	}

	repo.err = errors.New("disk full")
	rec.AddHeartbeat(context.Background(), start.Add(2*time.Minute), 1)
	if len(repo.entries) != 2 {
		t.Fatalf("failed append must not record: %+v", repo.entries)
	}
}
