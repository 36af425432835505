package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bio-attendance-api/internal/models"
)

const scheduleColumns = `id, employee_id, time_in, time_out, grace_minutes, rest_days, active, effective_from, effective_to, created_at, updated_at`

// ScheduleRepository reads employee schedules owned by the scheduling collaborator.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ActiveFor returns the schedule in effect for the employee on date, or nil when none applies.
func (r *ScheduleRepository) ActiveFor(ctx context.Context, employeeID string, date time.Time) (*models.EmployeeSchedule, error) {
	query := `SELECT ` + scheduleColumns + `
FROM employee_schedules
WHERE employee_id = $1
	AND active = TRUE
	AND effective_from <= $2
	AND (effective_to IS NULL OR effective_to >= $2)
ORDER BY effective_from DESC
LIMIT 1`

	var schedule models.EmployeeSchedule
	if err := r.db.GetContext(ctx, &schedule, query, employeeID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active schedule: %w", err)
	}
	return &schedule, nil
}

// ListActiveOn returns every schedule in effect on date, one per employee.
func (r *ScheduleRepository) ListActiveOn(ctx context.Context, date time.Time) ([]models.EmployeeSchedule, error) {
	query := `SELECT DISTINCT ON (employee_id) ` + scheduleColumns + `
FROM employee_schedules
WHERE active = TRUE
	AND effective_from <= $1
	AND (effective_to IS NULL OR effective_to >= $1)
ORDER BY employee_id, effective_from DESC`

	var schedules []models.EmployeeSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, date); err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	return schedules, nil
}
