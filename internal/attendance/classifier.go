package attendance

import (
	"time"

	"github.com/noah-isme/bio-attendance-api/internal/models"
)

// ClassifyInput is everything the classifier looks at for one shift instance.
type ClassifyInput struct {
	ShiftDate time.Time
	TimeIn    *time.Time
	TimeOut   *time.Time
	Verified  bool
	Schedule  *models.EmployeeSchedule
	Flags     models.LeaveFlags
	Now       time.Time
}

// Classification is the outcome of classifying one shift instance.
type Classification struct {
	Status           models.AttendanceStatus
	MinutesLate      int
	MinutesUndertime int
	Provisional      bool
	Reason           string
	Instance         *Instance
	GraceMinutes     int
}

// Classify returns the attendance status of one shift instance. It is deterministic:
// the same input always yields the same classification.
func Classify(in ClassifyInput, policy Policy) Classification {
	if in.Schedule == nil {
		return review("no active schedule for shift date")
	}
	window, err := policy.Window(in.Schedule)
	if err != nil {
		return review(err.Error())
	}
	inst := window.Instance(in.ShiftDate)
	out := Classification{Instance: &inst, GraceMinutes: in.Schedule.GraceMinutes}

	if in.Schedule.IsRestDay(inst.ShiftDate) {
		out.Status = models.AttendanceStatusNonWorkDay
		return out
	}

	hasScans := in.TimeIn != nil || in.TimeOut != nil
	if in.Flags.PartialDay && (in.Flags.OnLeave || in.Flags.AdvisedAbsence) {
		out.Status = models.AttendanceStatusNeedsManualReview
		out.Reason = "partial-day leave or advisory"
		return out
	}
	if in.Flags.OnLeave {
		out.Status = models.AttendanceStatusOnLeave
		return out
	}
	if in.Flags.AdvisedAbsence {
		out.Status = models.AttendanceStatusAdvisedAbsence
		return out
	}
	if !hasScans {
		switch {
		case in.Verified:
			out.Status = models.AttendanceStatusPresentNoBio
		case in.Flags.AdvisoryExpected:
			out.Status = models.AttendanceStatusFTN
		default:
			out.Status = models.AttendanceStatusNCNS
		}
		return out
	}

	if in.TimeIn != nil {
		out.MinutesLate = minutesAfter(inst.Start, *in.TimeIn)
	}
	if in.TimeOut != nil {
		out.MinutesUndertime = minutesAfter(*in.TimeOut, inst.End)
	}
	grace := in.Schedule.GraceMinutes
	halfDay := int(policy.HalfDayThreshold / time.Minute)

	switch {
	case in.TimeIn != nil && in.TimeOut == nil && !inst.Closed(in.Now, policy.OpenWindowTolerance):
		out.Status = models.AttendanceStatusFailedBioOut
		out.Provisional = true
	case in.TimeIn == nil:
		out.Status = models.AttendanceStatusFailedBioIn
	case out.MinutesLate-grace > halfDay:
		out.Status = models.AttendanceStatusHalfDayAbsence
	case out.MinutesLate > grace:
		out.Status = models.AttendanceStatusTardy
	case in.TimeOut == nil:
		out.Status = models.AttendanceStatusFailedBioOut
	case out.MinutesUndertime > int(policy.UndertimeTolerance/time.Minute):
		out.Status = models.AttendanceStatusUndertime
	default:
		out.Status = models.AttendanceStatusOnTime
	}
	return out
}

func review(reason string) Classification {
	return Classification{Status: models.AttendanceStatusNeedsManualReview, Reason: reason}
}

// minutesAfter returns whole minutes by which later exceeds earlier, never negative.
func minutesAfter(earlier, later time.Time) int {
	d := later.Sub(earlier)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
