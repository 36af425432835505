package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/bio-attendance-api/internal/models"
)

// GraveyardMode decides which calendar date a graveyard-band shift is attributed to.
type GraveyardMode string

const (
	// GraveyardAttributeTimeIn dates the instance by its scheduled time-in.
	GraveyardAttributeTimeIn GraveyardMode = "time_in"
	// GraveyardAttributePreviousDay dates the instance by the evening before its time-in.
	GraveyardAttributePreviousDay GraveyardMode = "previous_day"
)

// Valid returns true for supported modes.
func (m GraveyardMode) Valid() bool {
	return m == GraveyardAttributeTimeIn || m == GraveyardAttributePreviousDay
}

// ErrInvalidWindow is returned when a schedule cannot describe a shift.
var ErrInvalidWindow = errors.New("invalid shift window")

// ShiftWindow resolves scans of one schedule onto shift dates.
type ShiftWindow struct {
	timeIn       models.Clock
	timeOut      models.Clock
	graveyardEnd models.Clock
	mode         GraveyardMode
	loc          *time.Location
}

// WindowOption customises a ShiftWindow.
type WindowOption func(*ShiftWindow)

// WithLocation sets the wall-clock location scans are read in.
func WithLocation(loc *time.Location) WindowOption {
	return func(w *ShiftWindow) {
		if loc != nil {
			w.loc = loc
		}
	}
}

// WithGraveyard sets the upper bound (exclusive) of the graveyard band and its attribution mode.
func WithGraveyard(end models.Clock, mode GraveyardMode) WindowOption {
	return func(w *ShiftWindow) {
		if end.Valid() {
			w.graveyardEnd = end
		}
		if mode.Valid() {
			w.mode = mode
		}
	}
}

// NewShiftWindow validates a time-in/time-out pair.
func NewShiftWindow(timeIn, timeOut models.Clock, opts ...WindowOption) (*ShiftWindow, error) {
	if !timeIn.Valid() || !timeOut.Valid() {
		return nil, fmt.Errorf("%w: clock out of range", ErrInvalidWindow)
	}
	if timeIn == timeOut {
		return nil, fmt.Errorf("%w: time-in equals time-out (%s)", ErrInvalidWindow, timeIn)
	}
	w := &ShiftWindow{
		timeIn:       timeIn,
		timeOut:      timeOut,
		graveyardEnd: models.NewClock(5, 0),
		mode:         GraveyardAttributeTimeIn,
		loc:          time.UTC,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// TimeIn returns the scheduled time-in.
func (w *ShiftWindow) TimeIn() models.Clock { return w.timeIn }

// TimeOut returns the scheduled time-out.
func (w *ShiftWindow) TimeOut() models.Clock { return w.timeOut }

// Location returns the wall-clock location of the window.
func (w *ShiftWindow) Location() *time.Location { return w.loc }

// Length returns the scheduled shift length.
func (w *ShiftWindow) Length() time.Duration {
	minutes := (int(w.timeOut) - int(w.timeIn) + models.MinutesPerDay) % models.MinutesPerDay
	return time.Duration(minutes) * time.Minute
}

func (w *ShiftWindow) wraps() bool {
	return w.timeOut < w.timeIn
}

func (w *ShiftWindow) graveyard() bool {
	return w.timeIn < w.graveyardEnd
}

// CrossesMidnight reports whether the instance window spans two calendar dates,
// either because time-out wraps past 00:00 or because time-in sits in the graveyard band.
func (w *ShiftWindow) CrossesMidnight() bool {
	return w.wraps() || w.graveyard()
}

// cutoff is the minute of day splitting one instance from the next: the midpoint of the
// off-duty gap. It is negative when the split falls on the previous calendar day.
func (w *ShiftWindow) cutoff() int {
	gap := models.MinutesPerDay - int(w.Length()/time.Minute)
	return int(w.timeIn) - gap/2
}

// ShiftDate returns the shift date a scan belongs to.
func (w *ShiftWindow) ShiftDate(scan time.Time) time.Time {
	local := scan.In(w.loc)
	day := models.CivilDate(local)
	if !w.CrossesMidnight() {
		return day
	}

	clock := int(models.ClockOf(local))
	cut := w.cutoff()
	var instanceDay time.Time
	switch {
	case cut >= 0 && clock >= cut:
		instanceDay = day
	case cut >= 0:
		instanceDay = day.AddDate(0, 0, -1)
	case clock >= cut+models.MinutesPerDay:
		instanceDay = day.AddDate(0, 0, 1)
	default:
		instanceDay = day
	}

	if w.graveyard() && w.mode == GraveyardAttributePreviousDay {
		return instanceDay.AddDate(0, 0, -1)
	}
	return instanceDay
}

// Instance is the scheduled span of one shift date. Opens is the midpoint of
// the off-duty gap before Start; earlier scans belong to the previous instance.
type Instance struct {
	ShiftDate time.Time
	Opens     time.Time
	Start     time.Time
	End       time.Time
}

// Instance returns the scheduled start and end of the instance attributed to shiftDate.
func (w *ShiftWindow) Instance(shiftDate time.Time) Instance {
	startDay := models.CivilDate(shiftDate)
	if w.graveyard() && w.mode == GraveyardAttributePreviousDay {
		startDay = startDay.AddDate(0, 0, 1)
	}
	start := w.timeIn.On(startDay, w.loc)
	gap := models.MinutesPerDay - int(w.Length()/time.Minute)
	return Instance{
		ShiftDate: models.CivilDate(shiftDate),
		Opens:     start.Add(-time.Duration(gap/2) * time.Minute),
		Start:     start,
		End:       start.Add(w.Length()),
	}
}

// Closed reports whether the instance can no longer receive a regular time-out scan.
func (i Instance) Closed(now time.Time, tolerance time.Duration) bool {
	return !now.Before(i.End.Add(tolerance))
}
