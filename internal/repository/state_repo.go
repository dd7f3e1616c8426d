package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"printer_monitor/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	insertOrUpdateStateSQL = `
		INSERT INTO device_state (device_id, reachable, active, consumables, last_activation_s, activation_count, reset_epoch, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			reachable=excluded.reachable,
			active=excluded.active,
			consumables=excluded.consumables,
			last_activation_s=excluded.last_activation_s,
			activation_count=excluded.activation_count,
			reset_epoch=excluded.reset_epoch,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT device_id, reachable, active, consumables, last_activation_s, activation_count, reset_epoch, updated_at
		FROM device_state WHERE device_id=?
	`

	deleteStateSQL = `DELETE FROM device_state WHERE device_id=?`
)

// marshalConsumables converts the trackers to a JSON string.
func marshalConsumables(cs []models.ConsumableTracker) (string, error) {
	if len(cs) == 0 {
		return "", nil
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalConsumables parses a JSON string into trackers.
func unmarshalConsumables(s string) ([]models.ConsumableTracker, error) {
	if s == "" {
		return nil, nil
	}
	var cs []models.ConsumableTracker
	if err := json.Unmarshal([]byte(s), &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// Save updates or inserts the row for state.DeviceID.
func (r *StateSQLite) Save(ctx context.Context, state models.DeviceState) error {
	consumablesJSON, err := marshalConsumables(state.Consumables)
	if err != nil {
		return err
	}

	tsUTC := state.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	var resetEpoch any
	if !state.Counters.ResetEpoch.IsZero() {
		resetEpoch = state.Counters.ResetEpoch.UTC()
	}

	_, err = r.db.ExecContext(ctx, insertOrUpdateStateSQL,
		state.DeviceID,
		state.Reachable,
		state.Active,
		consumablesJSON,
		state.LastActivationOffset,
		state.Counters.Count,
		resetEpoch,
		tsUTC,
	)
	return err
}

// Load fetches the row for deviceID. A device without a row yields a zero
// state with an empty DeviceID.
func (r *StateSQLite) Load(ctx context.Context, deviceID string) (models.DeviceState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, deviceID)

	var (
		s               models.DeviceState
		consumablesJSON sql.NullString
		resetEpoch      sql.NullTime
	)
	if err := row.Scan(
		&s.DeviceID,
		&s.Reachable,
		&s.Active,
		&consumablesJSON,
		&s.LastActivationOffset,
		&s.Counters.Count,
		&resetEpoch,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DeviceState{}, nil
		}
		return models.DeviceState{}, err
	}

	cs, err := unmarshalConsumables(consumablesJSON.String)
	if err != nil {
		return models.DeviceState{}, err
	}
	s.Consumables = cs
	if resetEpoch.Valid {
		s.Counters.ResetEpoch = resetEpoch.Time.UTC()
	}
	s.UpdatedAt = s.UpdatedAt.UTC()

	return s, nil
}

// Delete drops the row for deviceID.
func (r *StateSQLite) Delete(ctx context.Context, deviceID string) error {
	_, err := r.db.ExecContext(ctx, deleteStateSQL, deviceID)
	return err
}
