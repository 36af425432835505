package attendance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bio-attendance-api/internal/models"
)

// PointFor maps a classified shift record to at most one accountability point.
// The point is dated by the shift date, so regenerating it is deterministic.
func PointFor(record *models.ShiftRecord, cls Classification, rules PointRules) (*models.AttendancePoint, bool) {
	var (
		violation models.ViolationType
		value     decimal.Decimal
		months    = rules.StandardExpiryMonths
		eligible  = true
		detail    string
	)

	switch cls.Status {
	case models.AttendanceStatusNCNS, models.AttendanceStatusFTN:
		violation = models.ViolationWholeDayAbsence
		value = rules.WholeDayAbsence
		months = rules.WholeDayExpiryMonths
		eligible = false
		detail = absenceDetail(record, cls)
	case models.AttendanceStatusHalfDayAbsence:
		violation = models.ViolationHalfDayAbsence
		value = rules.HalfDayAbsence
		detail = fmt.Sprintf("Half-day absence: timed in %s against scheduled %s (%d minutes late, %d minute grace)",
			clockText(record.TimeIn, cls), clockAt(cls.Instance.Start, cls), cls.MinutesLate, cls.GraceMinutes)
	case models.AttendanceStatusTardy:
		violation = models.ViolationTardy
		value = rules.Tardy
		detail = fmt.Sprintf("Tardy: timed in %s against scheduled %s (%d minutes late, %d minute grace)",
			clockText(record.TimeIn, cls), clockAt(cls.Instance.Start, cls), cls.MinutesLate, cls.GraceMinutes)
	case models.AttendanceStatusUndertime:
		violation = models.ViolationUndertime
		value = rules.Undertime
		label := "Undertime"
		if time.Duration(cls.MinutesUndertime)*time.Minute > rules.UndertimeMajorAfter {
			value = rules.UndertimeMajor
			label = fmt.Sprintf("Undertime over %s", humanDuration(rules.UndertimeMajorAfter))
		}
		detail = fmt.Sprintf("%s: timed out %s against scheduled %s (%d minutes early)",
			label, clockText(record.TimeOut, cls), clockAt(cls.Instance.End, cls), cls.MinutesUndertime)
	case models.AttendanceStatusOnTime,
		models.AttendanceStatusFailedBioIn,
		models.AttendanceStatusFailedBioOut,
		models.AttendanceStatusPresentNoBio,
		models.AttendanceStatusAdvisedAbsence,
		models.AttendanceStatusOnLeave,
		models.AttendanceStatusNonWorkDay,
		models.AttendanceStatusNeedsManualReview:
		return nil, false
	default:
		return nil, false
	}

	violationDate := models.CivilDate(record.ShiftDate)
	return &models.AttendancePoint{
		EmployeeID:     record.EmployeeID,
		ShiftRecordID:  record.ID,
		ViolationType:  violation,
		Points:         value,
		ViolationDate:  violationDate,
		ExpiresAt:      models.AddMonths(violationDate, months),
		GBROEligible:   eligible,
		ExpirationType: models.ExpirationNone,
		Detail:         detail,
	}, true
}

func absenceDetail(record *models.ShiftRecord, cls Classification) string {
	label := "No call, no show"
	if cls.Status == models.AttendanceStatusFTN {
		label = "Failure to notify"
	}
	date := record.ShiftDate.Format(models.DateLayout)
	if cls.Instance == nil {
		return fmt.Sprintf("%s on %s", label, date)
	}
	return fmt.Sprintf("%s on %s (scheduled %s-%s)", label, date, clockAt(cls.Instance.Start, cls), clockAt(cls.Instance.End, cls))
}

func clockAt(t time.Time, cls Classification) string {
	if cls.Instance != nil {
		t = t.In(cls.Instance.Start.Location())
	}
	return t.Format("15:04")
}

func clockText(t *time.Time, cls Classification) string {
	if t == nil {
		return "--:--"
	}
	return clockAt(*t, cls)
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}
