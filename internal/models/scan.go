package models

import "time"

// ScanDirection says which side of a shift a scan completes.
type ScanDirection string

const (
	ScanDirectionIn  ScanDirection = "in"
	ScanDirectionOut ScanDirection = "out"
)

// ScanEvent is one raw biometric punch. Immutable once recorded.
type ScanEvent struct {
	ID         string    `db:"id" json:"id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	ScannedAt  time.Time `db:"scanned_at" json:"scanned_at"`
	BatchID    string    `db:"batch_id" json:"batch_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ScanRecord is a scan resolved to a shift date and direction.
type ScanRecord struct {
	EmployeeID string        `db:"employee_id" json:"employee_id"`
	ShiftDate  time.Time     `db:"shift_date" json:"shift_date"`
	Direction  ScanDirection `db:"direction" json:"direction"`
	ScannedAt  time.Time     `db:"scanned_at" json:"scanned_at"`
	BatchID    string        `db:"batch_id" json:"batch_id"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}
