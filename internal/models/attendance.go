package models

import "time"

// AttendanceStatus represents the classified outcome of one shift instance.
type AttendanceStatus string

const (
	AttendanceStatusOnTime            AttendanceStatus = "on_time"
	AttendanceStatusTardy             AttendanceStatus = "tardy"
	AttendanceStatusHalfDayAbsence    AttendanceStatus = "half_day_absence"
	AttendanceStatusUndertime         AttendanceStatus = "undertime"
	AttendanceStatusFailedBioIn       AttendanceStatus = "failed_bio_in"
	AttendanceStatusFailedBioOut      AttendanceStatus = "failed_bio_out"
	AttendanceStatusPresentNoBio      AttendanceStatus = "present_no_bio"
	AttendanceStatusNCNS              AttendanceStatus = "ncns"
	AttendanceStatusFTN               AttendanceStatus = "ftn"
	AttendanceStatusAdvisedAbsence    AttendanceStatus = "advised_absence"
	AttendanceStatusOnLeave           AttendanceStatus = "on_leave"
	AttendanceStatusNonWorkDay        AttendanceStatus = "non_work_day"
	AttendanceStatusNeedsManualReview AttendanceStatus = "needs_manual_review"
)

// AttendanceStatuses lists every status in display order.
var AttendanceStatuses = []AttendanceStatus{
	AttendanceStatusOnTime,
	AttendanceStatusTardy,
	AttendanceStatusHalfDayAbsence,
	AttendanceStatusUndertime,
	AttendanceStatusFailedBioIn,
	AttendanceStatusFailedBioOut,
	AttendanceStatusPresentNoBio,
	AttendanceStatusNCNS,
	AttendanceStatusFTN,
	AttendanceStatusAdvisedAbsence,
	AttendanceStatusOnLeave,
	AttendanceStatusNonWorkDay,
	AttendanceStatusNeedsManualReview,
}

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusOnTime, AttendanceStatusTardy, AttendanceStatusHalfDayAbsence,
		AttendanceStatusUndertime, AttendanceStatusFailedBioIn, AttendanceStatusFailedBioOut,
		AttendanceStatusPresentNoBio, AttendanceStatusNCNS, AttendanceStatusFTN,
		AttendanceStatusAdvisedAbsence, AttendanceStatusOnLeave, AttendanceStatusNonWorkDay,
		AttendanceStatusNeedsManualReview:
		return true
	default:
		return false
	}
}

// ShiftRecord is the attendance record of one employee for one shift date.
type ShiftRecord struct {
	ID               string           `db:"id" json:"id"`
	EmployeeID       string           `db:"employee_id" json:"employee_id"`
	ShiftDate        time.Time        `db:"shift_date" json:"shift_date"`
	ScheduleID       *string          `db:"schedule_id" json:"schedule_id,omitempty"`
	TimeIn           *time.Time       `db:"time_in" json:"time_in,omitempty"`
	TimeOut          *time.Time       `db:"time_out" json:"time_out,omitempty"`
	Status           AttendanceStatus `db:"status" json:"status"`
	MinutesLate      int              `db:"minutes_late" json:"minutes_late"`
	MinutesUndertime int              `db:"minutes_undertime" json:"minutes_undertime"`
	Provisional      bool             `db:"provisional" json:"provisional"`
	Verified         bool             `db:"verified" json:"verified"`
	VerifiedBy       *string          `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt       *time.Time       `db:"verified_at" json:"verified_at,omitempty"`
	Version          int              `db:"version" json:"version"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// Empty reports whether no scan has been attributed to the record yet.
func (r *ShiftRecord) Empty() bool {
	return r.TimeIn == nil && r.TimeOut == nil
}

// ShiftKey identifies a shift instance.
type ShiftKey struct {
	EmployeeID string
	ShiftDate  time.Time
}

// String renders the key for advisory locks and logs.
func (k ShiftKey) String() string {
	return k.EmployeeID + "|" + k.ShiftDate.Format(DateLayout)
}

// ShiftRecordFilter scopes listing queries.
type ShiftRecordFilter struct {
	EmployeeID      string
	DateFrom        *time.Time
	DateTo          *time.Time
	Statuses        []AttendanceStatus
	ProvisionalOnly bool
	Page            int
	PageSize        int
}
