package dto

import "time"

// ShiftRecordQuery captures listing filters from the query string.
type ShiftRecordQuery struct {
	EmployeeID      string   `form:"employee_id"`
	DateFrom        string   `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo          string   `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Status          []string `form:"status"`
	ProvisionalOnly bool     `form:"provisional"`
	Page            int      `form:"page"`
	PageSize        int      `form:"page_size"`
}

// FinalizeDayRequest triggers the absence sweep for one shift date.
type FinalizeDayRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// FinalizeDayResult reports what the sweep did.
type FinalizeDayResult struct {
	Date         string `json:"date"`
	Scheduled    int    `json:"scheduled"`
	Created      int    `json:"created"`
	Reclassified int    `json:"reclassified"`
	Pending      int    `json:"pending"`
	Failed       int    `json:"failed"`
}

// ReclassifyRequest asks for an employee's shifts in a date range to be re-evaluated.
type ReclassifyRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	DateFrom   string `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo     string `json:"date_to" validate:"required,datetime=2006-01-02"`
}

// ReclassifyAccepted acknowledges queued reclassification jobs.
type ReclassifyAccepted struct {
	Queued    int `json:"queued"`
	Collapsed int `json:"collapsed"`
}

// VerifyShiftRecordRequest is a supervisor correction of a shift record.
type VerifyShiftRecordRequest struct {
	TimeIn       *time.Time `json:"time_in"`
	TimeOut      *time.Time `json:"time_out"`
	PresentNoBio bool       `json:"present_no_bio"`
	VerifiedBy   string     `json:"verified_by" validate:"required"`
}

// PurgeResult reports a scan retention pass.
type PurgeResult struct {
	Cutoff         time.Time `json:"cutoff"`
	EventsDeleted  int64     `json:"events_deleted"`
	RecordsDeleted int64     `json:"records_deleted"`
}
