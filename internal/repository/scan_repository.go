package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bio-attendance-api/internal/models"
	"github.com/noah-isme/bio-attendance-api/pkg/database"
)

// ScanRepository is the scan record store: raw scan events plus the scans
// resolved to a shift date and direction.
type ScanRepository struct {
	db *sqlx.DB
}

// NewScanRepository constructs the repository.
func NewScanRepository(db *sqlx.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// InsertEvents records raw scans. Events already stored for the same employee
// and instant are skipped; the returned count covers new rows only.
func (r *ScanRepository) InsertEvents(ctx context.Context, events []models.ScanEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	const query = `INSERT INTO scan_events (id, employee_id, scanned_at, batch_id, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (employee_id, scanned_at) DO NOTHING`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin scan events transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	inserted := 0
	for i := range events {
		ev := &events[i]
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		var res sql.Result
		res, err = tx.ExecContext(ctx, query, ev.ID, ev.EmployeeID, ev.ScannedAt.UTC(), ev.BatchID, ev.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert scan event: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit scan events: %w", err)
	}
	return inserted, nil
}

// PutRecord stores the scan assigned to one side of a shift instance inside
// the caller's transaction. Writing the same scan again changes nothing.
func (r *ScanRepository) PutRecord(ctx context.Context, tx *sqlx.Tx, rec models.ScanRecord) error {
	const query = `INSERT INTO scan_records (employee_id, shift_date, direction, scanned_at, batch_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (employee_id, shift_date, direction) DO UPDATE
SET scanned_at = EXCLUDED.scanned_at, batch_id = EXCLUDED.batch_id
WHERE scan_records.scanned_at IS DISTINCT FROM EXCLUDED.scanned_at`

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, query, rec.EmployeeID, rec.ShiftDate, rec.Direction, rec.ScannedAt.UTC(), rec.BatchID, rec.CreatedAt); err != nil {
		return fmt.Errorf("put scan record: %w", err)
	}
	return nil
}

// ListRecords returns the resolved scans of one shift instance.
func (r *ScanRepository) ListRecords(ctx context.Context, key models.ShiftKey) ([]models.ScanRecord, error) {
	const query = `SELECT employee_id, shift_date, direction, scanned_at, batch_id, created_at
FROM scan_records
WHERE employee_id = $1 AND shift_date = $2
ORDER BY scanned_at`

	var records []models.ScanRecord
	if err := r.db.SelectContext(ctx, &records, query, key.EmployeeID, key.ShiftDate); err != nil {
		return nil, fmt.Errorf("list scan records: %w", err)
	}
	return records, nil
}

// Purge deletes scans older than cutoff unless they still feed a provisional shift record.
func (r *ScanRepository) Purge(ctx context.Context, cutoff time.Time) (events int64, records int64, err error) {
	const recordQuery = `DELETE FROM scan_records sr
WHERE sr.shift_date < $1
	AND NOT EXISTS (
		SELECT 1 FROM shift_records s
		WHERE s.employee_id = sr.employee_id AND s.shift_date = sr.shift_date AND s.provisional = TRUE
	)`
	const eventQuery = `DELETE FROM scan_events se
WHERE se.scanned_at < $1
	AND NOT EXISTS (
		SELECT 1 FROM shift_records s
		WHERE s.employee_id = se.employee_id
			AND s.provisional = TRUE
			AND s.shift_date BETWEEN (se.scanned_at::date - 1) AND se.scanned_at::date
	)`

	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, recordQuery, models.CivilDate(cutoff))
		if err != nil {
			return fmt.Errorf("purge scan records: %w", err)
		}
		records, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, eventQuery, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("purge scan events: %w", err)
		}
		events, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return events, records, nil
}
