// Package attendance holds the pure rules of the engine: attributing scans to
// shift instances, classifying a shift and mapping a status to a point.
// Nothing here touches storage or reads the wall clock.
package attendance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bio-attendance-api/internal/models"
	"github.com/noah-isme/bio-attendance-api/pkg/config"
)

// Policy groups the tunable thresholds used by classification.
type Policy struct {
	Location            *time.Location
	HalfDayThreshold    time.Duration
	UndertimeTolerance  time.Duration
	OpenWindowTolerance time.Duration
	DuplicateScanWindow time.Duration
	GraveyardEnd        models.Clock
	GraveyardMode       GraveyardMode
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		Location:            time.UTC,
		HalfDayThreshold:    4 * time.Hour,
		UndertimeTolerance:  0,
		OpenWindowTolerance: 2 * time.Hour,
		DuplicateScanWindow: 5 * time.Minute,
		GraveyardEnd:        models.NewClock(5, 0),
		GraveyardMode:       GraveyardAttributeTimeIn,
	}
}

// Window builds the shift window of a schedule under this policy.
func (p Policy) Window(schedule *models.EmployeeSchedule) (*ShiftWindow, error) {
	return NewShiftWindow(schedule.TimeIn, schedule.TimeOut,
		WithLocation(p.Location),
		WithGraveyard(p.GraveyardEnd, p.GraveyardMode),
	)
}

// PointRules maps violations to point values and expiry windows.
type PointRules struct {
	Tardy                decimal.Decimal
	Undertime            decimal.Decimal
	UndertimeMajor       decimal.Decimal
	UndertimeMajorAfter  time.Duration
	HalfDayAbsence       decimal.Decimal
	WholeDayAbsence      decimal.Decimal
	StandardExpiryMonths int
	WholeDayExpiryMonths int
}

// DefaultPointRules returns the documented point schedule.
func DefaultPointRules() PointRules {
	return PointRules{
		Tardy:                decimal.RequireFromString("0.25"),
		Undertime:            decimal.RequireFromString("0.25"),
		UndertimeMajor:       decimal.RequireFromString("0.50"),
		UndertimeMajorAfter:  time.Hour,
		HalfDayAbsence:       decimal.RequireFromString("0.50"),
		WholeDayAbsence:      decimal.RequireFromString("1.00"),
		StandardExpiryMonths: 6,
		WholeDayExpiryMonths: 12,
	}
}

// PolicyFromConfig builds a Policy from the attendance section of the service config.
func PolicyFromConfig(cfg config.AttendanceConfig) (Policy, error) {
	p := DefaultPolicy()
	if cfg.Location != nil {
		p.Location = cfg.Location
	}
	p.HalfDayThreshold = cfg.HalfDayThreshold
	p.UndertimeTolerance = cfg.UndertimeTolerance
	p.OpenWindowTolerance = cfg.OpenWindowTolerance
	p.DuplicateScanWindow = cfg.DuplicateScanWindow

	if cfg.GraveyardEnd != "" {
		end, err := models.ParseClock(cfg.GraveyardEnd)
		if err != nil {
			return Policy{}, fmt.Errorf("invalid graveyard end: %w", err)
		}
		p.GraveyardEnd = end
	}
	if cfg.GraveyardMode != "" {
		mode := GraveyardMode(cfg.GraveyardMode)
		if !mode.Valid() {
			return Policy{}, fmt.Errorf("invalid graveyard mode %q", cfg.GraveyardMode)
		}
		p.GraveyardMode = mode
	}
	return p, nil
}

// PointRulesFromConfig builds PointRules from the points section of the service config.
func PointRulesFromConfig(cfg config.PointsConfig) (PointRules, error) {
	r := DefaultPointRules()
	values := []struct {
		raw    string
		target *decimal.Decimal
	}{
		{cfg.Tardy, &r.Tardy},
		{cfg.Undertime, &r.Undertime},
		{cfg.UndertimeMajor, &r.UndertimeMajor},
		{cfg.HalfDay, &r.HalfDayAbsence},
		{cfg.WholeDay, &r.WholeDayAbsence},
	}
	for _, v := range values {
		if v.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(v.raw)
		if err != nil {
			return PointRules{}, fmt.Errorf("invalid point value %q: %w", v.raw, err)
		}
		if d.IsNegative() {
			return PointRules{}, fmt.Errorf("point value %q must not be negative", v.raw)
		}
		*v.target = d
	}
	if cfg.UndertimeMajorAfter > 0 {
		r.UndertimeMajorAfter = cfg.UndertimeMajorAfter
	}
	if cfg.StandardExpiryMonths > 0 {
		r.StandardExpiryMonths = cfg.StandardExpiryMonths
	}
	if cfg.WholeDayExpiryMonths > 0 {
		r.WholeDayExpiryMonths = cfg.WholeDayExpiryMonths
	}
	return r, nil
}
