package attendance

import (
	"time"

	"github.com/noah-isme/bio-attendance-api/internal/models"
)

// AssignOutcome describes what a scan did to its shift record.
type AssignOutcome string

const (
	AssignedTimeIn  AssignOutcome = "time_in"
	AssignedTimeOut AssignOutcome = "time_out"
	// AssignedReordered means a scan earlier than the recorded time-in arrived before any
	// time-out: the earlier scan becomes time-in and the previous time-in becomes time-out.
	AssignedReordered AssignOutcome = "reordered"
	AssignDuplicate   AssignOutcome = "duplicate"
	AssignAnomaly     AssignOutcome = "anomaly"
)

// Assignment is the result of folding one scan into a record.
type Assignment struct {
	Outcome AssignOutcome
	Reason  string
}

// Changed reports whether the record was modified.
func (a Assignment) Changed() bool {
	switch a.Outcome {
	case AssignedTimeIn, AssignedTimeOut, AssignedReordered:
		return true
	default:
		return false
	}
}

// AssignScan folds a scan into record. Scans within dupWindow of a recorded side are
// duplicates (re-uploads and double punches), and a set side is only ever moved by
// AssignedReordered. A scan before the instance opens is an anomaly: on a day shift it
// is the late time-out of the previous evening. instance may be nil when no schedule
// is known; then direction falls back purely to arrival order.
func AssignScan(record *models.ShiftRecord, scan time.Time, instance *Instance, dupWindow time.Duration) Assignment {
	if near(record.TimeIn, scan, dupWindow) || near(record.TimeOut, scan, dupWindow) {
		return Assignment{Outcome: AssignDuplicate}
	}
	if instance != nil && scan.Before(instance.Opens) {
		return Assignment{Outcome: AssignAnomaly, Reason: "scan before the shift window opens"}
	}

	switch {
	case record.Empty():
		if instance != nil && !scan.Before(instance.End) {
			record.TimeOut = timePtr(scan)
			return Assignment{Outcome: AssignedTimeOut}
		}
		record.TimeIn = timePtr(scan)
		return Assignment{Outcome: AssignedTimeIn}

	case record.TimeIn == nil:
		if scan.Before(*record.TimeOut) {
			record.TimeIn = timePtr(scan)
			return Assignment{Outcome: AssignedTimeIn}
		}
		return Assignment{Outcome: AssignAnomaly, Reason: "scan after recorded time-out with time-in missing"}

	case record.TimeOut == nil:
		if scan.After(*record.TimeIn) {
			record.TimeOut = timePtr(scan)
			return Assignment{Outcome: AssignedTimeOut}
		}
		record.TimeOut = record.TimeIn
		record.TimeIn = timePtr(scan)
		return Assignment{Outcome: AssignedReordered, Reason: "earlier scan arrived after time-in"}

	default:
		return Assignment{Outcome: AssignAnomaly, Reason: "shift already has time-in and time-out"}
	}
}

func near(field *time.Time, scan time.Time, window time.Duration) bool {
	if field == nil {
		return false
	}
	diff := scan.Sub(*field)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

func timePtr(t time.Time) *time.Time {
	return &t
}
