package models

import "time"

// ExpirationRunStatus tracks the outcome of one engine run.
type ExpirationRunStatus string

const (
	ExpirationRunRunning   ExpirationRunStatus = "RUNNING"
	ExpirationRunCompleted ExpirationRunStatus = "COMPLETED"
	ExpirationRunFailed    ExpirationRunStatus = "FAILED"
)

// ExpirationFailure captures an isolated per-employee GBRO failure.
type ExpirationFailure struct {
	EmployeeID string `json:"employee_id"`
	Reason     string `json:"reason"`
}

// ExpirationSummary reports the effects of one expiration run.
type ExpirationSummary struct {
	RunDate           time.Time           `json:"run_date"`
	SROExpired        int                 `json:"sro_expired"`
	GBROExpired       int                 `json:"gbro_expired"`
	EmployeesAffected int                 `json:"employees_affected"`
	EmployeesScanned  int                 `json:"employees_scanned"`
	Failures          []ExpirationFailure `json:"failures,omitempty"`
}

// ExpirationRun is the persisted audit row of an engine run.
type ExpirationRun struct {
	ID                string              `db:"id" json:"id"`
	RunDate           time.Time           `db:"run_date" json:"run_date"`
	Status            ExpirationRunStatus `db:"status" json:"status"`
	SROExpired        int                 `db:"sro_expired" json:"sro_expired"`
	GBROExpired       int                 `db:"gbro_expired" json:"gbro_expired"`
	EmployeesAffected int                 `db:"employees_affected" json:"employees_affected"`
	Failures          int                 `db:"failures" json:"failures"`
	ErrorMessage      *string             `db:"error_message" json:"error_message,omitempty"`
	Trigger           string              `db:"trigger" json:"trigger"`
	StartedAt         time.Time           `db:"started_at" json:"started_at"`
	FinishedAt        *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
}
