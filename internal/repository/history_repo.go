package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"printer_monitor/internal/models"

	"github.com/google/uuid"
)

// HistorySQLite keeps at most maxEntries rows per device; older rows are
// evicted on append.
type HistorySQLite struct {
	db         *sql.DB
	maxEntries int
}

func NewHistorySQLite(db *sql.DB, maxEntries int) *HistorySQLite {
	return &HistorySQLite{db: db, maxEntries: maxEntries}
}

const (
	insertHistorySQL = `
		INSERT INTO history_entries (id, device_id, occurred_at, status, kind)
		VALUES (?, ?, ?, ?, ?)
	`

	evictHistorySQL = `
		DELETE FROM history_entries
		WHERE device_id = ? AND seq <= (
			SELECT seq FROM history_entries WHERE device_id = ?
			ORDER BY seq DESC LIMIT 1 OFFSET ?
		)
	`

	selectHistorySQL = `SELECT id, device_id, occurred_at, status, kind FROM history_entries`
)

// Append inserts an entry. Missing ID, time or kind are filled in.
func (r *HistorySQLite) Append(ctx context.Context, e models.HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	} else {
		e.Time = e.Time.UTC()
	}
	if e.Kind == "" {
		e.Kind = models.HistoryKindTransition
	}

	if _, err := r.db.ExecContext(ctx, insertHistorySQL,
		e.ID,
		e.DeviceID,
		e.Time,
		e.Status,
		strings.ToUpper(strings.TrimSpace(e.Kind)),
	); err != nil {
		return err
	}

	if r.maxEntries <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, evictHistorySQL, e.DeviceID, e.DeviceID, r.maxEntries)
	return err
}

// List returns entries ordered by insertion, filtered by device, [from, to]
// (inclusive, zero means unbounded) and status (negative means any).
func (r *HistorySQLite) List(ctx context.Context, deviceID string, from, to time.Time, status int) ([]models.HistoryEntry, error) {
	var (
		conds []string
		args  []any
	)

	if deviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, deviceID)
	}
	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, to.UTC())
	}
	if status >= 0 {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}

	q := selectHistorySQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY seq ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.HistoryEntry, 0, 64)
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Time, &e.Status, &e.Kind); err != nil {
			return nil, err
		}
		e.Time = e.Time.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
