package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ViolationType classifies the violation a point was issued for.
type ViolationType string

const (
	ViolationTardy           ViolationType = "tardy"
	ViolationUndertime       ViolationType = "undertime"
	ViolationHalfDayAbsence  ViolationType = "half_day_absence"
	ViolationWholeDayAbsence ViolationType = "whole_day_absence"
)

// Valid returns true when the violation type is supported.
func (v ViolationType) Valid() bool {
	switch v {
	case ViolationTardy, ViolationUndertime, ViolationHalfDayAbsence, ViolationWholeDayAbsence:
		return true
	default:
		return false
	}
}

// ExpirationType records how a point left the active state.
type ExpirationType string

const (
	ExpirationNone ExpirationType = "none"
	ExpirationSRO  ExpirationType = "sro"
	ExpirationGBRO ExpirationType = "gbro"
)

// PointState is the derived lifecycle state of a point.
type PointState string

const (
	PointStateActive      PointState = "active"
	PointStateExcused     PointState = "excused"
	PointStateExpiredSRO  PointState = "expired_sro"
	PointStateExpiredGBRO PointState = "expired_gbro"
)

// AttendancePoint is one accountability ledger entry.
type AttendancePoint struct {
	ID             string          `db:"id" json:"id"`
	EmployeeID     string          `db:"employee_id" json:"employee_id"`
	ShiftRecordID  string          `db:"shift_record_id" json:"shift_record_id"`
	ViolationType  ViolationType   `db:"violation_type" json:"violation_type"`
	Points         decimal.Decimal `db:"points" json:"points"`
	ViolationDate  time.Time       `db:"violation_date" json:"violation_date"`
	ExpiresAt      time.Time       `db:"expires_at" json:"expires_at"`
	GBROEligible   bool            `db:"gbro_eligible" json:"gbro_eligible"`
	IsExpired      bool            `db:"is_expired" json:"is_expired"`
	ExpirationType ExpirationType  `db:"expiration_type" json:"expiration_type"`
	ExpiredAt      *time.Time      `db:"expired_at" json:"expired_at,omitempty"`
	GBROBatchID    *string         `db:"gbro_batch_id" json:"gbro_batch_id,omitempty"`
	GBROAppliedAt  *time.Time      `db:"gbro_applied_at" json:"gbro_applied_at,omitempty"`
	IsExcused      bool            `db:"is_excused" json:"is_excused"`
	ExcusedBy      *string         `db:"excused_by" json:"excused_by,omitempty"`
	ExcusedAt      *time.Time      `db:"excused_at" json:"excused_at,omitempty"`
	ExcuseReason   *string         `db:"excuse_reason" json:"excuse_reason,omitempty"`
	Detail         string          `db:"detail" json:"detail"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// State derives the lifecycle state. Excusal and expiry are terminal and mutually exclusive.
func (p *AttendancePoint) State() PointState {
	switch {
	case p.IsExcused:
		return PointStateExcused
	case p.IsExpired && p.ExpirationType == ExpirationGBRO:
		return PointStateExpiredGBRO
	case p.IsExpired:
		return PointStateExpiredSRO
	default:
		return PointStateActive
	}
}

// Active reports whether the point still counts against the employee.
func (p *AttendancePoint) Active() bool {
	return p.State() == PointStateActive
}

// PointStatusFilter selects points by lifecycle bucket.
type PointStatusFilter string

const (
	PointFilterActive  PointStatusFilter = "active"
	PointFilterExcused PointStatusFilter = "excused"
	PointFilterExpired PointStatusFilter = "expired"
)

// Valid returns true when the filter is supported.
func (f PointStatusFilter) Valid() bool {
	return f == PointFilterActive || f == PointFilterExcused || f == PointFilterExpired
}

// AttendancePointFilter allows listing ledger entries.
type AttendancePointFilter struct {
	EmployeeID     string
	DateFrom       *time.Time
	DateTo         *time.Time
	Status         *PointStatusFilter
	ExpirationType *ExpirationType
	Page           int
	PageSize       int
}

// PointSummary aggregates active points for an employee.
type PointSummary struct {
	EmployeeID    string          `json:"employee_id"`
	ActivePoints  decimal.Decimal `json:"active_points"`
	ActiveCount   int             `json:"active_count"`
	ExpiredCount  int             `json:"expired_count"`
	ExcusedCount  int             `json:"excused_count"`
	LastViolation *time.Time      `json:"last_violation,omitempty"`
}
