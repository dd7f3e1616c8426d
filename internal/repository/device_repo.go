package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"printer_monitor/internal/models"
)

type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite { return &DeviceSQLite{db: db} }

const (
	upsertDeviceSQL = `
		INSERT INTO devices (id, name, address, interval_s, track_consumables, control, manufacturer, model, serial_number, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			address=excluded.address,
			interval_s=excluded.interval_s,
			track_consumables=excluded.track_consumables,
			control=excluded.control,
			manufacturer=excluded.manufacturer,
			model=excluded.model,
			serial_number=excluded.serial_number,
			updated_at=excluded.updated_at
	`

	selectDevicesSQL = `
		SELECT id, name, address, interval_s, track_consumables, control, manufacturer, model, serial_number
		FROM devices ORDER BY name ASC
	`

	deleteDeviceSQL = `DELETE FROM devices WHERE id = ?`
)

// Upsert records a registered device.
func (r *DeviceSQLite) Upsert(ctx context.Context, d models.Device) error {
	_, err := r.db.ExecContext(ctx, upsertDeviceSQL,
		d.ID,
		d.Name,
		d.Address,
		int64(d.Interval/time.Second),
		d.TrackConsumables,
		string(d.Control),
		d.Manufacturer,
		d.Model,
		d.SerialNumber,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert device %q: %w", d.ID, err)
	}
	return nil
}

// List returns every device registered by a previous run.
func (r *DeviceSQLite) List(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevicesSQL)
	if err != nil {
		return nil, fmt.Errorf("select devices: %w", err)
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		var (
			d            models.Device
			intervalSec  int64
			control      string
			manufacturer sql.NullString
			model        sql.NullString
			serial       sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Address, &intervalSec, &d.TrackConsumables, &control, &manufacturer, &model, &serial); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		d.Interval = time.Duration(intervalSec) * time.Second
		d.Control = models.ControlMode(control)
		d.Manufacturer = manufacturer.String
		d.Model = model.String
		d.SerialNumber = serial.String
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete forgets a device. Deleting an unknown id is not an error.
func (r *DeviceSQLite) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, deleteDeviceSQL, id); err != nil {
		return fmt.Errorf("delete device %q: %w", id, err)
	}
	return nil
}
