package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bio-attendance-api/internal/models"
)

const expirationRunColumns = `id, run_date, status, sro_expired, gbro_expired, employees_affected, failures, error_message, trigger, started_at, finished_at`

// ExpirationRunRepository records the audit trail of expiration runs.
type ExpirationRunRepository struct {
	db *sqlx.DB
}

// NewExpirationRunRepository constructs the repository.
func NewExpirationRunRepository(db *sqlx.DB) *ExpirationRunRepository {
	return &ExpirationRunRepository{db: db}
}

// Start inserts a RUNNING row.
func (r *ExpirationRunRepository) Start(ctx context.Context, run *models.ExpirationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = models.ExpirationRunRunning
	const query = `INSERT INTO point_expiration_runs (id, run_date, status, trigger, started_at)
VALUES (:id, :run_date, :status, :trigger, :started_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("insert expiration run: %w", err)
	}
	return nil
}

// Finish stores the final counters and status.
func (r *ExpirationRunRepository) Finish(ctx context.Context, run *models.ExpirationRun) error {
	const query = `UPDATE point_expiration_runs
SET status = :status, sro_expired = :sro_expired, gbro_expired = :gbro_expired, employees_affected = :employees_affected,
	failures = :failures, error_message = :error_message, finished_at = :finished_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("finish expiration run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *ExpirationRunRepository) Recent(ctx context.Context, limit int) ([]models.ExpirationRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var runs []models.ExpirationRun
	query := fmt.Sprintf(`SELECT %s FROM point_expiration_runs ORDER BY run_date DESC, started_at DESC LIMIT %d`, expirationRunColumns, limit)
	if err := r.db.SelectContext(ctx, &runs, query); err != nil {
		return nil, fmt.Errorf("list expiration runs: %w", err)
	}
	return runs, nil
}
