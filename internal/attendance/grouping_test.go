package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bio-attendance-api/internal/models"
)

func overnightInstance(t *testing.T) *Instance {
	t.Helper()
	w, err := NewShiftWindow(models.NewClock(22, 0), models.NewClock(7, 0))
	require.NoError(t, err)
	inst := w.Instance(models.NewDate(2025, time.June, 2))
	return &inst
}

func TestAssignScanOrderDecidesDirection(t *testing.T) {
	rec := &models.ShiftRecord{}
	inst := overnightInstance(t)

	first := AssignScan(rec, at(2025, time.June, 2, 22, 5), inst, 5*time.Minute)
	assert.Equal(t, AssignedTimeIn, first.Outcome)

	second := AssignScan(rec, at(2025, time.June, 3, 7, 3), inst, 5*time.Minute)
	assert.Equal(t, AssignedTimeOut, second.Outcome)

	require.NotNil(t, rec.TimeIn)
	require.NotNil(t, rec.TimeOut)
	assert.Equal(t, at(2025, time.June, 2, 22, 5), *rec.TimeIn)
	assert.Equal(t, at(2025, time.June, 3, 7, 3), *rec.TimeOut)
}

func TestAssignScanIsIdempotent(t *testing.T) {
	rec := &models.ShiftRecord{}
	inst := overnightInstance(t)
	scan := at(2025, time.June, 2, 22, 5)

	AssignScan(rec, scan, inst, 5*time.Minute)
	again := AssignScan(rec, scan, inst, 5*time.Minute)
	assert.Equal(t, AssignDuplicate, again.Outcome)
	assert.False(t, again.Changed())
	assert.Nil(t, rec.TimeOut)

	// a double punch a minute later is also a duplicate, leaving time-out open for the morning scan
	double := AssignScan(rec, scan.Add(time.Minute), inst, 5*time.Minute)
	assert.Equal(t, AssignDuplicate, double.Outcome)
	assert.Nil(t, rec.TimeOut)
}

func TestAssignScanLoneScanAfterScheduledEndIsTimeOut(t *testing.T) {
	rec := &models.ShiftRecord{}
	inst := overnightInstance(t)

	res := AssignScan(rec, at(2025, time.June, 3, 7, 3), inst, 5*time.Minute)
	assert.Equal(t, AssignedTimeOut, res.Outcome)

	res = AssignScan(rec, at(2025, time.June, 2, 22, 5), inst, 5*time.Minute)
	assert.Equal(t, AssignedTimeIn, res.Outcome)
	assert.Equal(t, at(2025, time.June, 2, 22, 5), *rec.TimeIn)
}

func TestAssignScanWithoutScheduleUsesArrivalOrder(t *testing.T) {
	rec := &models.ShiftRecord{}
	res := AssignScan(rec, at(2025, time.June, 3, 7, 3), nil, 0)
	assert.Equal(t, AssignedTimeIn, res.Outcome)
}

func TestAssignScanReordersEarlierScan(t *testing.T) {
	in := at(2025, time.June, 2, 17, 0)
	rec := &models.ShiftRecord{TimeIn: &in}

	res := AssignScan(rec, at(2025, time.June, 2, 8, 2), nil, 5*time.Minute)
	assert.Equal(t, AssignedReordered, res.Outcome)
	assert.Equal(t, at(2025, time.June, 2, 8, 2), *rec.TimeIn)
	assert.Equal(t, at(2025, time.June, 2, 17, 0), *rec.TimeOut)
}

func TestAssignScanCompleteRecordIsAnomaly(t *testing.T) {
	in := at(2025, time.June, 2, 8, 0)
	out := at(2025, time.June, 2, 17, 0)
	rec := &models.ShiftRecord{TimeIn: &in, TimeOut: &out}

	res := AssignScan(rec, at(2025, time.June, 2, 12, 0), nil, 5*time.Minute)
	assert.Equal(t, AssignAnomaly, res.Outcome)
	assert.Equal(t, in, *rec.TimeIn)
	assert.Equal(t, out, *rec.TimeOut)
}

func TestAssignScanBeforeWindowOpensIsAnomaly(t *testing.T) {
	w, err := NewShiftWindow(models.NewClock(8, 0), models.NewClock(17, 0))
	require.NoError(t, err)
	inst := w.Instance(models.NewDate(2025, time.June, 3))
	assert.Equal(t, at(2025, time.June, 3, 0, 30), inst.Opens)

	// the previous evening's late time-out lands on this date by its own calendar day
	rec := &models.ShiftRecord{}
	res := AssignScan(rec, at(2025, time.June, 3, 0, 10), &inst, 5*time.Minute)
	assert.Equal(t, AssignAnomaly, res.Outcome)
	assert.False(t, res.Changed())
	assert.True(t, rec.Empty())

	res = AssignScan(rec, at(2025, time.June, 3, 7, 55), &inst, 5*time.Minute)
	assert.Equal(t, AssignedTimeIn, res.Outcome)

	res = AssignScan(rec, at(2025, time.June, 3, 0, 20), &inst, 5*time.Minute)
	assert.Equal(t, AssignAnomaly, res.Outcome)
	assert.Nil(t, rec.TimeOut)
	assert.Equal(t, at(2025, time.June, 3, 7, 55), *rec.TimeIn)
}
