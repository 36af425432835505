package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bio-attendance-api/internal/models"
)

// LeaveRepository reads leave and advisory flags maintained by the leave-management collaborator.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// FlagsFor returns the flags for employee and date. Missing rows mean no leave and no advisory.
func (r *LeaveRepository) FlagsFor(ctx context.Context, employeeID string, date time.Time) (models.LeaveFlags, error) {
	const query = `SELECT employee_id, date, on_leave, advised_absence, advisory_expected, partial_day
FROM leave_flags
WHERE employee_id = $1 AND date = $2`

	flags := models.LeaveFlags{EmployeeID: employeeID, Date: date}
	if err := r.db.GetContext(ctx, &flags, query, employeeID, date); err != nil {
		if err == sql.ErrNoRows {
			return models.LeaveFlags{EmployeeID: employeeID, Date: date}, nil
		}
		return models.LeaveFlags{}, fmt.Errorf("get leave flags: %w", err)
	}
	return flags, nil
}
