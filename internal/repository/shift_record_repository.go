package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/bio-attendance-api/internal/models"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
)

const shiftRecordColumns = `id, employee_id, shift_date, schedule_id, time_in, time_out, status, minutes_late, minutes_undertime,
	provisional, verified, verified_by, verified_at, version, created_at, updated_at`

// ShiftMutation edits a locked shift record. exists is false when the record is
// new. It returns whether anything changed plus the resolved scans to store
// in the same transaction.
type ShiftMutation func(record *models.ShiftRecord, exists bool) (changed bool, scans []models.ScanRecord, err error)

// ShiftCommitHook runs inside the mutation transaction once the record is
// stored, before commit. It is skipped when no record exists for the key.
type ShiftCommitHook func(ctx context.Context, tx *sqlx.Tx, record *models.ShiftRecord) error

// ShiftRecordRepository persists shift records keyed by (employee, shift date).
type ShiftRecordRepository struct {
	db    *sqlx.DB
	scans *ScanRepository
}

// NewShiftRecordRepository constructs the repository.
func NewShiftRecordRepository(db *sqlx.DB, scans *ScanRepository) *ShiftRecordRepository {
	return &ShiftRecordRepository{db: db, scans: scans}
}

// Mutate loads the record for key under a transaction-scoped advisory lock,
// applies fn and writes the result with a version check, then runs after in
// the same transaction. Concurrent writers for the same key are serialised by
// the lock; a stale version yields ErrVersionConflict so the caller can retry.
func (r *ShiftRecordRepository) Mutate(ctx context.Context, key models.ShiftKey, fn ShiftMutation, after ShiftCommitHook) (record *models.ShiftRecord, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin shift record transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
		return nil, fmt.Errorf("lock shift record %s: %w", key, err)
	}

	current := &models.ShiftRecord{}
	exists := true
	query := `SELECT ` + shiftRecordColumns + ` FROM shift_records WHERE employee_id = $1 AND shift_date = $2`
	if err = tx.GetContext(ctx, current, query, key.EmployeeID, key.ShiftDate); err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("load shift record %s: %w", key, err)
		}
		err = nil
		exists = false
		current = &models.ShiftRecord{
			ID:         uuid.NewString(),
			EmployeeID: key.EmployeeID,
			ShiftDate:  models.CivilDate(key.ShiftDate),
		}
	}

	version := current.Version
	changed, scans, err := fn(current, exists)
	if err != nil {
		return nil, err
	}
	if !changed {
		if exists && after != nil {
			if err = after(ctx, tx, current); err != nil {
				return nil, err
			}
		}
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit shift record %s: %w", key, err)
		}
		return current, nil
	}

	now := time.Now().UTC()
	current.UpdatedAt = now
	current.Version = version + 1
	if !exists {
		current.CreatedAt = now
		if err = r.insert(ctx, tx, current); err != nil {
			return nil, err
		}
	} else if err = r.update(ctx, tx, current, version); err != nil {
		return nil, err
	}

	for _, scan := range scans {
		if err = r.scans.PutRecord(ctx, tx, scan); err != nil {
			return nil, err
		}
	}

	if after != nil {
		if err = after(ctx, tx, current); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit shift record %s: %w", key, err)
	}
	return current, nil
}

func (r *ShiftRecordRepository) insert(ctx context.Context, tx *sqlx.Tx, rec *models.ShiftRecord) error {
	const query = `INSERT INTO shift_records (id, employee_id, shift_date, schedule_id, time_in, time_out, status, minutes_late,
	minutes_undertime, provisional, verified, verified_by, verified_at, version, created_at, updated_at)
VALUES (:id, :employee_id, :shift_date, :schedule_id, :time_in, :time_out, :status, :minutes_late,
	:minutes_undertime, :provisional, :verified, :verified_by, :verified_at, :version, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, rec); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return appErrors.Wrap(err, appErrors.ErrVersionConflict.Code, appErrors.ErrVersionConflict.Status, appErrors.ErrVersionConflict.Message)
		}
		return fmt.Errorf("insert shift record: %w", err)
	}
	return nil
}

func (r *ShiftRecordRepository) update(ctx context.Context, tx *sqlx.Tx, rec *models.ShiftRecord, expectedVersion int) error {
	const query = `UPDATE shift_records
SET schedule_id = $1, time_in = $2, time_out = $3, status = $4, minutes_late = $5, minutes_undertime = $6,
	provisional = $7, verified = $8, verified_by = $9, verified_at = $10, version = $11, updated_at = $12
WHERE id = $13 AND version = $14`
	res, err := tx.ExecContext(ctx, query,
		rec.ScheduleID, rec.TimeIn, rec.TimeOut, rec.Status, rec.MinutesLate, rec.MinutesUndertime,
		rec.Provisional, rec.Verified, rec.VerifiedBy, rec.VerifiedAt, rec.Version, rec.UpdatedAt,
		rec.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update shift record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.ErrVersionConflict
	}
	return nil
}

// FindByID returns the record by id or nil.
func (r *ShiftRecordRepository) FindByID(ctx context.Context, id string) (*models.ShiftRecord, error) {
	query := `SELECT ` + shiftRecordColumns + ` FROM shift_records WHERE id = $1`
	var rec models.ShiftRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find shift record: %w", err)
	}
	return &rec, nil
}

// List returns records matching filter together with the total count.
func (r *ShiftRecordRepository) List(ctx context.Context, filter models.ShiftRecordFilter) ([]models.ShiftRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EmployeeID != "" {
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("shift_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("shift_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if len(filter.Statuses) > 0 {
		values := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			values[i] = string(s)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if filter.ProvisionalOnly {
		where = append(where, "provisional = TRUE")
	}
	whereClause := strings.Join(where, " AND ")

	page, size := normalisePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM shift_records WHERE %s ORDER BY shift_date DESC, employee_id LIMIT %d OFFSET %d`,
		shiftRecordColumns, whereClause, size, (page-1)*size)

	var records []models.ShiftRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list shift records: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM shift_records WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count shift records: %w", err)
	}
	return records, total, nil
}

// ListByDate returns every record for a shift date.
func (r *ShiftRecordRepository) ListByDate(ctx context.Context, date time.Time) ([]models.ShiftRecord, error) {
	query := `SELECT ` + shiftRecordColumns + ` FROM shift_records WHERE shift_date = $1 ORDER BY employee_id`
	var records []models.ShiftRecord
	if err := r.db.SelectContext(ctx, &records, query, date); err != nil {
		return nil, fmt.Errorf("list shift records by date: %w", err)
	}
	return records, nil
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}
	return page, size
}
