package attendance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bio-attendance-api/internal/models"
)

func classifyRecord(t *testing.T, rec *models.ShiftRecord, schedule *models.EmployeeSchedule, flags models.LeaveFlags) Classification {
	t.Helper()
	return Classify(ClassifyInput{
		ShiftDate: rec.ShiftDate,
		TimeIn:    rec.TimeIn,
		TimeOut:   rec.TimeOut,
		Schedule:  schedule,
		Flags:     flags,
		Now:       rec.ShiftDate.AddDate(0, 0, 3),
	}, DefaultPolicy())
}

func TestPointForTardy(t *testing.T) {
	shiftDate := models.NewDate(2025, time.January, 15)
	rec := &models.ShiftRecord{ID: "rec-1", EmployeeID: "emp-1", ShiftDate: shiftDate,
		TimeIn: ptr(at(2025, time.January, 15, 8, 25)), TimeOut: ptr(at(2025, time.January, 15, 17, 0))}

	point, ok := PointFor(rec, classifyRecord(t, rec, daySchedule(), models.LeaveFlags{}), DefaultPointRules())
	require.True(t, ok)
	assert.Equal(t, models.ViolationTardy, point.ViolationType)
	assert.True(t, decimal.RequireFromString("0.25").Equal(point.Points))
	assert.Equal(t, models.NewDate(2025, time.July, 15), point.ExpiresAt)
	assert.True(t, point.GBROEligible)
	assert.Equal(t, "rec-1", point.ShiftRecordID)
	assert.Equal(t, "Tardy: timed in 08:25 against scheduled 08:00 (25 minutes late, 10 minute grace)", point.Detail)
}

func TestPointForWholeDayAbsenceIsNotEligible(t *testing.T) {
	rec := &models.ShiftRecord{ID: "rec-2", EmployeeID: "emp-1", ShiftDate: models.NewDate(2025, time.January, 15)}

	point, ok := PointFor(rec, classifyRecord(t, rec, daySchedule(), models.LeaveFlags{}), DefaultPointRules())
	require.True(t, ok)
	assert.Equal(t, models.ViolationWholeDayAbsence, point.ViolationType)
	assert.True(t, decimal.NewFromInt(1).Equal(point.Points))
	assert.False(t, point.GBROEligible)
	assert.Equal(t, models.NewDate(2026, time.January, 15), point.ExpiresAt)
	assert.Contains(t, point.Detail, "No call, no show")

	ftn, ok := PointFor(rec, classifyRecord(t, rec, daySchedule(), models.LeaveFlags{AdvisoryExpected: true}), DefaultPointRules())
	require.True(t, ok)
	assert.Equal(t, models.ViolationWholeDayAbsence, ftn.ViolationType)
	assert.Contains(t, ftn.Detail, "Failure to notify")
}

func TestPointForUndertimeMagnitude(t *testing.T) {
	shiftDate := models.NewDate(2025, time.January, 15)
	minor := &models.ShiftRecord{ID: "rec-3", ShiftDate: shiftDate,
		TimeIn: ptr(at(2025, time.January, 15, 8, 0)), TimeOut: ptr(at(2025, time.January, 15, 16, 20))}
	major := &models.ShiftRecord{ID: "rec-4", ShiftDate: shiftDate,
		TimeIn: ptr(at(2025, time.January, 15, 8, 0)), TimeOut: ptr(at(2025, time.January, 15, 15, 30))}

	p1, ok := PointFor(minor, classifyRecord(t, minor, daySchedule(), models.LeaveFlags{}), DefaultPointRules())
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.25").Equal(p1.Points))
	assert.Equal(t, "Undertime: timed out 16:20 against scheduled 17:00 (40 minutes early)", p1.Detail)

	p2, ok := PointFor(major, classifyRecord(t, major, daySchedule(), models.LeaveFlags{}), DefaultPointRules())
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.50").Equal(p2.Points))
	assert.Contains(t, p2.Detail, "Undertime over 1 hour")
}

func TestPointForHalfDay(t *testing.T) {
	rec := &models.ShiftRecord{ID: "rec-5", ShiftDate: models.NewDate(2025, time.January, 15),
		TimeIn: ptr(at(2025, time.January, 15, 13, 0)), TimeOut: ptr(at(2025, time.January, 15, 17, 0))}
	point, ok := PointFor(rec, classifyRecord(t, rec, daySchedule(), models.LeaveFlags{}), DefaultPointRules())
	require.True(t, ok)
	assert.Equal(t, models.ViolationHalfDayAbsence, point.ViolationType)
	assert.True(t, decimal.RequireFromString("0.50").Equal(point.Points))
	assert.True(t, point.GBROEligible)
}

func TestPointForNonViolationsYieldNothing(t *testing.T) {
	rec := &models.ShiftRecord{ShiftDate: models.NewDate(2025, time.January, 15)}
	for _, status := range models.AttendanceStatuses {
		switch status {
		case models.AttendanceStatusTardy, models.AttendanceStatusHalfDayAbsence, models.AttendanceStatusUndertime,
			models.AttendanceStatusNCNS, models.AttendanceStatusFTN:
			continue
		}
		_, ok := PointFor(rec, Classification{Status: status}, DefaultPointRules())
		assert.False(t, ok, string(status))
	}
}

func TestPointForIsDeterministic(t *testing.T) {
	rec := &models.ShiftRecord{ID: "rec-6", EmployeeID: "emp-1", ShiftDate: models.NewDate(2025, time.January, 15),
		TimeIn: ptr(at(2025, time.January, 15, 8, 40)), TimeOut: ptr(at(2025, time.January, 15, 17, 0))}
	cls := classifyRecord(t, rec, daySchedule(), models.LeaveFlags{})
	first, _ := PointFor(rec, cls, DefaultPointRules())
	second, _ := PointFor(rec, cls, DefaultPointRules())
	assert.Equal(t, first, second)
}

func TestPointForExpiryClampsToMonthEnd(t *testing.T) {
	shiftDate := models.NewDate(2023, time.August, 31)
	rec := &models.ShiftRecord{ID: "rec-9", EmployeeID: "emp-1", ShiftDate: shiftDate,
		TimeIn: ptr(at(2023, time.August, 31, 8, 25)), TimeOut: ptr(at(2023, time.August, 31, 17, 0))}

	point, ok := PointFor(rec, classifyRecord(t, rec, daySchedule(), models.LeaveFlags{}), DefaultPointRules())
	require.True(t, ok)
	assert.Equal(t, models.NewDate(2024, time.February, 29), point.ExpiresAt)
}
