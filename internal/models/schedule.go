package models

import (
	"time"

	"github.com/lib/pq"
)

// EmployeeSchedule is the shift pattern an employee works during its effective range.
type EmployeeSchedule struct {
	ID            string        `db:"id" json:"id"`
	EmployeeID    string        `db:"employee_id" json:"employee_id"`
	TimeIn        Clock         `db:"time_in" json:"time_in"`
	TimeOut       Clock         `db:"time_out" json:"time_out"`
	GraceMinutes  int           `db:"grace_minutes" json:"grace_minutes"`
	RestDays      pq.Int64Array `db:"rest_days" json:"rest_days"`
	Active        bool          `db:"active" json:"active"`
	EffectiveFrom time.Time     `db:"effective_from" json:"effective_from"`
	EffectiveTo   *time.Time    `db:"effective_to" json:"effective_to,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// IsRestDay reports whether the weekday of date is a scheduled rest day.
func (s *EmployeeSchedule) IsRestDay(date time.Time) bool {
	wd := int64(date.Weekday())
	for _, d := range s.RestDays {
		if d == wd {
			return true
		}
	}
	return false
}

// Covers reports whether the schedule is effective on date.
func (s *EmployeeSchedule) Covers(date time.Time) bool {
	if !s.Active {
		return false
	}
	day := CivilDate(date)
	if day.Before(CivilDate(s.EffectiveFrom)) {
		return false
	}
	return s.EffectiveTo == nil || !day.After(CivilDate(*s.EffectiveTo))
}

// LeaveFlags carries the leave/advisory state supplied by the leave-management collaborator.
type LeaveFlags struct {
	EmployeeID       string    `db:"employee_id" json:"employee_id"`
	Date             time.Time `db:"date" json:"date"`
	OnLeave          bool      `db:"on_leave" json:"on_leave"`
	AdvisedAbsence   bool      `db:"advised_absence" json:"advised_absence"`
	AdvisoryExpected bool      `db:"advisory_expected" json:"advisory_expected"`
	PartialDay       bool      `db:"partial_day" json:"partial_day"`
}
