package repository

import (
	"context"
	"database/sql"
	"time"

	"printer_monitor/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// DeviceRepo remembers which printers were registered, so removals are
// detected across restarts.
type DeviceRepo interface {
	Upsert(ctx context.Context, d models.Device) error
	List(ctx context.Context) ([]models.Device, error)
	Delete(ctx context.Context, id string) error
}

// StateRepo persists the latest state and counters of each device.
type StateRepo interface {
	Save(ctx context.Context, s models.DeviceState) error
	Load(ctx context.Context, deviceID string) (models.DeviceState, error)
	Delete(ctx context.Context, deviceID string) error
}

// HistoryRepo is the rolling history store. Append evicts the oldest rows
// beyond the configured per-device cap.
type HistoryRepo interface {
	Append(ctx context.Context, e models.HistoryEntry) error
	List(ctx context.Context, deviceID string, from, to time.Time, status int) ([]models.HistoryEntry, error)
}

type Repository struct {
	Devices DeviceRepo
	States  StateRepo
	History HistoryRepo
	Auth    Authorization
}

func NewRepository(db *sql.DB, maxHistoryEntries int) *Repository {
	return &Repository{
		Devices: NewDeviceSQLite(db),
		States:  NewStateSQLite(db),
		History: NewHistorySQLite(db, maxHistoryEntries),
		Auth:    NewUserRepository(db),
	}
}
