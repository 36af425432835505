package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/bio-attendance-api/internal/models"
)

func daySchedule() *models.EmployeeSchedule {
	return &models.EmployeeSchedule{
		ID:            "sched-1",
		EmployeeID:    "emp-1",
		TimeIn:        models.NewClock(8, 0),
		TimeOut:       models.NewClock(17, 0),
		GraceMinutes:  10,
		RestDays:      []int64{int64(time.Saturday), int64(time.Sunday)},
		Active:        true,
		EffectiveFrom: models.NewDate(2024, time.January, 1),
	}
}

func nightSchedule() *models.EmployeeSchedule {
	s := daySchedule()
	s.TimeIn = models.NewClock(22, 0)
	s.TimeOut = models.NewClock(7, 0)
	return s
}

func ptr(t time.Time) *time.Time { return &t }

// 2025-06-02 is a Monday.
var monday = models.NewDate(2025, time.June, 2)

func TestClassifyDecisionOrder(t *testing.T) {
	later := at(2025, time.June, 4, 12, 0)
	cases := []struct {
		name  string
		input ClassifyInput
		want  models.AttendanceStatus
	}{
		{
			name:  "missing schedule",
			input: ClassifyInput{ShiftDate: monday, TimeIn: ptr(at(2025, time.June, 2, 8, 0)), Now: later},
			want:  models.AttendanceStatusNeedsManualReview,
		},
		{
			name:  "rest day",
			input: ClassifyInput{ShiftDate: models.NewDate(2025, time.June, 7), Schedule: daySchedule(), Now: later},
			want:  models.AttendanceStatusNonWorkDay,
		},
		{
			name: "on leave beats scans",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later,
				TimeIn: ptr(at(2025, time.June, 2, 9, 30)), Flags: models.LeaveFlags{OnLeave: true}},
			want: models.AttendanceStatusOnLeave,
		},
		{
			name:  "advised absence",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later, Flags: models.LeaveFlags{AdvisedAbsence: true}},
			want:  models.AttendanceStatusAdvisedAbsence,
		},
		{
			name:  "partial-day advisory needs review",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later, Flags: models.LeaveFlags{AdvisedAbsence: true, PartialDay: true}},
			want:  models.AttendanceStatusNeedsManualReview,
		},
		{
			name:  "no scans",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later},
			want:  models.AttendanceStatusNCNS,
		},
		{
			name:  "no scans with expected advisory",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later, Flags: models.LeaveFlags{AdvisoryExpected: true}},
			want:  models.AttendanceStatusFTN,
		},
		{
			name:  "verified without scans",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later, Verified: true},
			want:  models.AttendanceStatusPresentNoBio,
		},
		{
			name: "open window without time-out",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), TimeIn: ptr(at(2025, time.June, 2, 8, 0)),
				Now: at(2025, time.June, 2, 18, 0)},
			want: models.AttendanceStatusFailedBioOut,
		},
		{
			name:  "missing time-in",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), TimeOut: ptr(at(2025, time.June, 2, 17, 0)), Now: later},
			want:  models.AttendanceStatusFailedBioIn,
		},
		{
			name: "half day",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later,
				TimeIn: ptr(at(2025, time.June, 2, 12, 11)), TimeOut: ptr(at(2025, time.June, 2, 17, 0))},
			want: models.AttendanceStatusHalfDayAbsence,
		},
		{
			name: "tardy",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later,
				TimeIn: ptr(at(2025, time.June, 2, 8, 11)), TimeOut: ptr(at(2025, time.June, 2, 17, 0))},
			want: models.AttendanceStatusTardy,
		},
		{
			name: "within grace",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later,
				TimeIn: ptr(at(2025, time.June, 2, 8, 10)), TimeOut: ptr(at(2025, time.June, 2, 17, 2))},
			want: models.AttendanceStatusOnTime,
		},
		{
			name: "closed window without time-out",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later,
				TimeIn: ptr(at(2025, time.June, 2, 8, 0))},
			want: models.AttendanceStatusFailedBioOut,
		},
		{
			name: "undertime",
			input: ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: later,
				TimeIn: ptr(at(2025, time.June, 2, 7, 55)), TimeOut: ptr(at(2025, time.June, 2, 16, 30))},
			want: models.AttendanceStatusUndertime,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.input, DefaultPolicy())
			assert.Equal(t, tc.want, got.Status)
			assert.True(t, got.Status.Valid())
		})
	}
}

func TestClassifyProvisionalOnlyWhileWindowOpen(t *testing.T) {
	input := ClassifyInput{ShiftDate: monday, Schedule: nightSchedule(), TimeIn: ptr(at(2025, time.June, 2, 22, 5))}

	input.Now = at(2025, time.June, 2, 23, 0)
	open := Classify(input, DefaultPolicy())
	assert.Equal(t, models.AttendanceStatusFailedBioOut, open.Status)
	assert.True(t, open.Provisional)

	input.Now = at(2025, time.June, 3, 9, 0)
	closed := Classify(input, DefaultPolicy())
	assert.Equal(t, models.AttendanceStatusFailedBioOut, closed.Status)
	assert.False(t, closed.Provisional)
}

func TestClassifyOvernightCompletion(t *testing.T) {
	input := ClassifyInput{
		ShiftDate: monday,
		Schedule:  nightSchedule(),
		TimeIn:    ptr(at(2025, time.June, 2, 22, 5)),
		TimeOut:   ptr(at(2025, time.June, 3, 7, 3)),
		Now:       at(2025, time.June, 3, 8, 0),
	}
	got := Classify(input, DefaultPolicy())
	assert.Equal(t, models.AttendanceStatusOnTime, got.Status)
	assert.Equal(t, 5, got.MinutesLate)
	assert.Equal(t, 0, got.MinutesUndertime)
}

func TestClassifyInvalidScheduleNeedsReview(t *testing.T) {
	s := daySchedule()
	s.TimeOut = s.TimeIn
	got := Classify(ClassifyInput{ShiftDate: monday, Schedule: s, Now: monday}, DefaultPolicy())
	assert.Equal(t, models.AttendanceStatusNeedsManualReview, got.Status)
	assert.NotEmpty(t, got.Reason)
}

func TestClassifyIsRepeatable(t *testing.T) {
	input := ClassifyInput{ShiftDate: monday, Schedule: daySchedule(), Now: monday.AddDate(0, 0, 2),
		TimeIn: ptr(at(2025, time.June, 2, 8, 45)), TimeOut: ptr(at(2025, time.June, 2, 17, 0))}
	first := Classify(input, DefaultPolicy())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Classify(input, DefaultPolicy()))
	}
}
