package dto

import "time"

// ScanEventInput is one punch in an uploaded batch.
type ScanEventInput struct {
	EmployeeID string    `json:"employee_id" validate:"required"`
	ScannedAt  time.Time `json:"scanned_at" validate:"required"`
}

// IngestScansRequest is the body of a batch upload.
type IngestScansRequest struct {
	BatchID string           `json:"batch_id"`
	Events  []ScanEventInput `json:"events" validate:"required,min=1,dive"`
}

// IngestRecordResult reports the outcome for one (employee, shift date).
type IngestRecordResult struct {
	EmployeeID string     `json:"employee_id"`
	ShiftDate  string     `json:"shift_date"`
	ScannedAt  *time.Time `json:"scanned_at,omitempty"`
	Status     string     `json:"status,omitempty"`
	Point      string     `json:"point,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// IngestResult summarises a batch upload. Failures never abort the other records.
type IngestResult struct {
	BatchID    string               `json:"batch_id"`
	Received   int                  `json:"received"`
	Recorded   int                  `json:"recorded"`
	Duplicates int                  `json:"duplicates"`
	Anomalies  int                  `json:"anomalies"`
	Succeeded  []IngestRecordResult `json:"succeeded"`
	Failed     []IngestRecordResult `json:"failed"`
}
