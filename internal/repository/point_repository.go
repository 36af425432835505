package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bio-attendance-api/internal/models"
	"github.com/noah-isme/bio-attendance-api/pkg/database"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
)

const pointColumns = `id, employee_id, shift_record_id, violation_type, points, violation_date, expires_at, gbro_eligible,
	is_expired, expiration_type, expired_at, gbro_batch_id, gbro_applied_at, is_excused, excused_by, excused_at,
	excuse_reason, detail, created_at, updated_at`

// activePredicate keeps terminal points immutable in every automatic update.
const activePredicate = `is_expired = FALSE AND is_excused = FALSE`

// ReplaceOutcome reports what a point replacement did.
type ReplaceOutcome string

const (
	PointCreated   ReplaceOutcome = "created"
	PointReplaced  ReplaceOutcome = "replaced"
	PointRemoved   ReplaceOutcome = "removed"
	PointUnchanged ReplaceOutcome = "unchanged"
	PointBlocked   ReplaceOutcome = "blocked"
)

// PointRepository persists the attendance point ledger.
type PointRepository struct {
	db *sqlx.DB
}

// NewPointRepository constructs the repository.
func NewPointRepository(db *sqlx.DB) *PointRepository {
	return &PointRepository{db: db}
}

// ReplaceForShiftRecord makes the ledger hold exactly the desired point for a
// shift record (nil means none). An excused or expired point already present
// is left untouched and reported as blocked. With a nil tx the replacement
// runs in its own transaction; otherwise it joins tx and commits with it.
func (r *PointRepository) ReplaceForShiftRecord(ctx context.Context, tx *sqlx.Tx, shiftRecordID string, desired *models.AttendancePoint) (outcome ReplaceOutcome, err error) {
	if tx != nil {
		return replacePoint(ctx, tx, shiftRecordID, desired)
	}
	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var rerr error
		outcome, rerr = replacePoint(ctx, tx, shiftRecordID, desired)
		return rerr
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func replacePoint(ctx context.Context, tx *sqlx.Tx, shiftRecordID string, desired *models.AttendancePoint) (outcome ReplaceOutcome, err error) {
	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "point|"+shiftRecordID); err != nil {
		return "", fmt.Errorf("lock point %s: %w", shiftRecordID, err)
	}

	var existing models.AttendancePoint
	found := true
	query := `SELECT ` + pointColumns + ` FROM attendance_points WHERE shift_record_id = $1`
	if err = tx.GetContext(ctx, &existing, query, shiftRecordID); err != nil {
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("load point for shift record: %w", err)
		}
		err = nil
		found = false
	}

	switch {
	case found && !existing.Active():
		outcome = PointBlocked
	case found && desired != nil && samePoint(&existing, desired):
		*desired = existing
		outcome = PointUnchanged
	case !found && desired == nil:
		outcome = PointUnchanged
	default:
		if found {
			if _, err = tx.ExecContext(ctx, `DELETE FROM attendance_points WHERE id = $1 AND `+activePredicate, existing.ID); err != nil {
				return "", fmt.Errorf("delete stale point: %w", err)
			}
			outcome = PointRemoved
		}
		if desired != nil {
			if err = insertPoint(ctx, tx, desired); err != nil {
				return "", err
			}
			outcome = PointCreated
			if found {
				outcome = PointReplaced
			}
		}
	}
	return outcome, nil
}

func samePoint(a, b *models.AttendancePoint) bool {
	return a.ViolationType == b.ViolationType &&
		a.Points.Equal(b.Points) &&
		a.ViolationDate.Equal(b.ViolationDate) &&
		a.ExpiresAt.Equal(b.ExpiresAt) &&
		a.GBROEligible == b.GBROEligible &&
		a.Detail == b.Detail
}

func insertPoint(ctx context.Context, tx *sqlx.Tx, p *models.AttendancePoint) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.ExpirationType == "" {
		p.ExpirationType = models.ExpirationNone
	}
	const query = `INSERT INTO attendance_points (id, employee_id, shift_record_id, violation_type, points, violation_date, expires_at,
	gbro_eligible, is_expired, expiration_type, detail, created_at, updated_at)
VALUES (:id, :employee_id, :shift_record_id, :violation_type, :points, :violation_date, :expires_at,
	:gbro_eligible, :is_expired, :expiration_type, :detail, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, p); err != nil {
		return fmt.Errorf("insert point: %w", err)
	}
	return nil
}

// FindByID returns the point or nil.
func (r *PointRepository) FindByID(ctx context.Context, id string) (*models.AttendancePoint, error) {
	var p models.AttendancePoint
	if err := r.db.GetContext(ctx, &p, `SELECT `+pointColumns+` FROM attendance_points WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find point: %w", err)
	}
	return &p, nil
}

// List returns ledger entries matching filter together with the total count.
func (r *PointRepository) List(ctx context.Context, filter models.AttendancePointFilter) ([]models.AttendancePoint, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EmployeeID != "" {
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("violation_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("violation_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Status != nil {
		switch *filter.Status {
		case models.PointFilterActive:
			where = append(where, activePredicate)
		case models.PointFilterExcused:
			where = append(where, "is_excused = TRUE")
		case models.PointFilterExpired:
			where = append(where, "is_expired = TRUE")
		}
	}
	if filter.ExpirationType != nil {
		where = append(where, fmt.Sprintf("expiration_type = $%d", len(args)+1))
		args = append(args, *filter.ExpirationType)
	}
	whereClause := strings.Join(where, " AND ")

	page, size := normalisePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM attendance_points WHERE %s ORDER BY violation_date DESC, created_at DESC LIMIT %d OFFSET %d`,
		pointColumns, whereClause, size, (page-1)*size)

	var points []models.AttendancePoint
	if err := r.db.SelectContext(ctx, &points, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list points: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM attendance_points WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count points: %w", err)
	}
	return points, total, nil
}

// Summary aggregates the ledger of one employee.
func (r *PointRepository) Summary(ctx context.Context, employeeID string) (*models.PointSummary, error) {
	const query = `SELECT COALESCE(SUM(points) FILTER (WHERE is_expired = FALSE AND is_excused = FALSE), 0) AS active_points,
	COUNT(*) FILTER (WHERE is_expired = FALSE AND is_excused = FALSE) AS active_count,
	COUNT(*) FILTER (WHERE is_expired = TRUE) AS expired_count,
	COUNT(*) FILTER (WHERE is_excused = TRUE) AS excused_count,
	MAX(violation_date) AS last_violation
FROM attendance_points
WHERE employee_id = $1`

	summary := models.PointSummary{EmployeeID: employeeID}
	var last sql.NullTime
	if err := r.db.QueryRowxContext(ctx, query, employeeID).Scan(&summary.ActivePoints, &summary.ActiveCount, &summary.ExpiredCount, &summary.ExcusedCount, &last); err != nil {
		return nil, fmt.Errorf("point summary: %w", err)
	}
	if last.Valid {
		summary.LastViolation = &last.Time
	}
	return &summary, nil
}

// Excuse marks an active point as excused. Terminal points yield ErrPointTerminal.
func (r *PointRepository) Excuse(ctx context.Context, id, actor, reason string, at time.Time) error {
	const query = `UPDATE attendance_points
SET is_excused = TRUE, excused_by = $2, excused_at = $3, excuse_reason = $4, updated_at = $3
WHERE id = $1 AND ` + activePredicate
	res, err := r.db.ExecContext(ctx, query, id, actor, at.UTC(), reason)
	if err != nil {
		return fmt.Errorf("excuse point: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.ErrPointTerminal
	}
	return nil
}

// ExpireDue applies standard roll-off to every active point whose expiry date has been reached.
func (r *PointRepository) ExpireDue(ctx context.Context, runDate time.Time) (int64, error) {
	const query = `UPDATE attendance_points
SET is_expired = TRUE, expiration_type = 'sro', expired_at = $1, updated_at = NOW()
WHERE ` + activePredicate + ` AND expires_at <= $1`
	res, err := r.db.ExecContext(ctx, query, runDate)
	if err != nil {
		return 0, fmt.Errorf("expire due points: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// EmployeesWithActivePoints lists employees holding at least one active point.
func (r *PointRepository) EmployeesWithActivePoints(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT employee_id FROM attendance_points WHERE `+activePredicate+` ORDER BY employee_id`); err != nil {
		return nil, fmt.Errorf("list employees with active points: %w", err)
	}
	return ids, nil
}

// RollOffGoodBehavior applies one good-behavior roll-off for the employee in
// a single transaction holding the employee's advisory lock. due decides from
// the anchor whether the window has elapsed; nothing is written when it has
// not. Concurrent callers serialize, so the later one sees the advanced anchor.
func (r *PointRepository) RollOffGoodBehavior(ctx context.Context, employeeID string, runDate time.Time, limit int, batchID string, due func(anchor *time.Time) bool) (anchor *time.Time, expired int64, err error) {
	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "gbro|"+employeeID); err != nil {
			return fmt.Errorf("lock good behavior %s: %w", employeeID, err)
		}
		a, err := goodBehaviorAnchor(ctx, tx, employeeID, runDate)
		if err != nil {
			return err
		}
		anchor = a
		if !due(a) {
			return nil
		}
		expired, err = expireGoodBehavior(ctx, tx, employeeID, runDate, limit, batchID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return anchor, expired, nil
}

// goodBehaviorAnchor returns the later of the employee's most recent violation
// (excused points excluded) and most recent good-behavior roll-off, both
// bounded by asOf. It is nil when the employee has neither.
func goodBehaviorAnchor(ctx context.Context, tx *sqlx.Tx, employeeID string, asOf time.Time) (*time.Time, error) {
	const query = `SELECT GREATEST(
	MAX(violation_date) FILTER (WHERE is_excused = FALSE AND violation_date <= $2),
	MAX(gbro_applied_at) FILTER (WHERE gbro_applied_at <= $2)
) FROM attendance_points
WHERE employee_id = $1`
	var anchor sql.NullTime
	if err := tx.GetContext(ctx, &anchor, query, employeeID, asOf); err != nil {
		return nil, fmt.Errorf("good behavior anchor: %w", err)
	}
	if !anchor.Valid {
		return nil, nil
	}
	t := models.CivilDate(anchor.Time)
	return &t, nil
}

// expireGoodBehavior rolls off up to limit of the employee's most recent
// eligible active points in one statement, tagging them with batchID.
func expireGoodBehavior(ctx context.Context, tx *sqlx.Tx, employeeID string, runDate time.Time, limit int, batchID string) (int64, error) {
	const query = `WITH picked AS (
	SELECT id FROM attendance_points
	WHERE employee_id = $1 AND ` + activePredicate + ` AND gbro_eligible = TRUE AND violation_date <= $2
	ORDER BY violation_date DESC, created_at DESC
	LIMIT $3
	FOR UPDATE
)
UPDATE attendance_points p
SET is_expired = TRUE, expiration_type = 'gbro', expired_at = $2, gbro_batch_id = $4, gbro_applied_at = $2, updated_at = NOW()
FROM picked
WHERE p.id = picked.id AND p.is_expired = FALSE AND p.is_excused = FALSE`
	res, err := tx.ExecContext(ctx, query, employeeID, runDate, limit, batchID)
	if err != nil {
		return 0, fmt.Errorf("expire good behavior points: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
