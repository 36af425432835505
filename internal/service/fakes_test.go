package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bio-attendance-api/internal/models"
	"github.com/noah-isme/bio-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
	"github.com/noah-isme/bio-attendance-api/pkg/jobs"
)

// memLedger is an in-memory point ledger with the same guarded semantics as
// the SQL repository.
type memLedger struct {
	mu        sync.Mutex
	points    map[string]*models.AttendancePoint
	seq       int
	anchorErr map[string]error
}

func newMemLedger() *memLedger {
	return &memLedger{points: map[string]*models.AttendancePoint{}, anchorErr: map[string]error{}}
}

func (l *memLedger) nextID() string {
	l.seq++
	return fmt.Sprintf("pt-%03d", l.seq)
}

func (l *memLedger) add(p models.AttendancePoint) *models.AttendancePoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	p.ID = l.nextID()
	if p.ExpirationType == "" {
		p.ExpirationType = models.ExpirationNone
	}
	p.CreatedAt = time.Unix(int64(l.seq), 0).UTC()
	l.points[p.ID] = &p
	return &p
}

func (l *memLedger) get(id string) *models.AttendancePoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *l.points[id]
	return &cp
}

func (l *memLedger) forShift(shiftRecordID string) []models.AttendancePoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.AttendancePoint
	for _, p := range l.points {
		if p.ShiftRecordID == shiftRecordID {
			out = append(out, *p)
		}
	}
	return out
}

func (l *memLedger) ReplaceForShiftRecord(ctx context.Context, _ *sqlx.Tx, shiftRecordID string, desired *models.AttendancePoint) (repository.ReplaceOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var existing *models.AttendancePoint
	for _, p := range l.points {
		if p.ShiftRecordID == shiftRecordID {
			existing = p
		}
	}
	switch {
	case existing != nil && !existing.Active():
		return repository.PointBlocked, nil
	case existing != nil && desired != nil && existing.ViolationType == desired.ViolationType &&
		existing.Points.Equal(desired.Points) && existing.ViolationDate.Equal(desired.ViolationDate) &&
		existing.ExpiresAt.Equal(desired.ExpiresAt) && existing.Detail == desired.Detail:
		*desired = *existing
		return repository.PointUnchanged, nil
	case existing == nil && desired == nil:
		return repository.PointUnchanged, nil
	}
	outcome := repository.PointUnchanged
	if existing != nil {
		delete(l.points, existing.ID)
		outcome = repository.PointRemoved
	}
	if desired != nil {
		p := *desired
		p.ID = l.nextID()
		p.ExpirationType = models.ExpirationNone
		p.CreatedAt = time.Unix(int64(l.seq), 0).UTC()
		l.points[p.ID] = &p
		desired.ID = p.ID
		if existing != nil {
			outcome = repository.PointReplaced
		} else {
			outcome = repository.PointCreated
		}
	}
	return outcome, nil
}

func (l *memLedger) FindByID(ctx context.Context, id string) (*models.AttendancePoint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.points[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (l *memLedger) List(ctx context.Context, filter models.AttendancePointFilter) ([]models.AttendancePoint, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.AttendancePoint
	for _, p := range l.points {
		if filter.EmployeeID != "" && p.EmployeeID != filter.EmployeeID {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (l *memLedger) Summary(ctx context.Context, employeeID string) (*models.PointSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := &models.PointSummary{EmployeeID: employeeID}
	for _, p := range l.points {
		if p.EmployeeID != employeeID {
			continue
		}
		switch p.State() {
		case models.PointStateActive:
			s.ActivePoints = s.ActivePoints.Add(p.Points)
			s.ActiveCount++
		case models.PointStateExcused:
			s.ExcusedCount++
		default:
			s.ExpiredCount++
		}
	}
	return s, nil
}

func (l *memLedger) Excuse(ctx context.Context, id, actor, reason string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.points[id]
	if !ok || !p.Active() {
		return appErrors.ErrPointTerminal
	}
	p.IsExcused = true
	p.ExcusedBy = &actor
	p.ExcuseReason = &reason
	p.ExcusedAt = &at
	return nil
}

func (l *memLedger) ExpireDue(ctx context.Context, runDate time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, p := range l.points {
		if p.Active() && !p.ExpiresAt.After(runDate) {
			d := runDate
			p.IsExpired = true
			p.ExpirationType = models.ExpirationSRO
			p.ExpiredAt = &d
			n++
		}
	}
	return n, nil
}

func (l *memLedger) EmployeesWithActivePoints(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, p := range l.points {
		if _, ok := seen[p.EmployeeID]; ok || !p.Active() {
			continue
		}
		seen[p.EmployeeID] = struct{}{}
		out = append(out, p.EmployeeID)
	}
	sort.Strings(out)
	return out, nil
}

func (l *memLedger) RollOffGoodBehavior(ctx context.Context, employeeID string, runDate time.Time, limit int, batchID string, due func(anchor *time.Time) bool) (*time.Time, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.anchorErr[employeeID]; err != nil {
		return nil, 0, err
	}
	anchor := l.anchorLocked(employeeID, runDate)
	if !due(anchor) {
		return anchor, 0, nil
	}
	return anchor, l.expireGoodBehaviorLocked(employeeID, runDate, limit, batchID), nil
}

func (l *memLedger) anchorLocked(employeeID string, asOf time.Time) *time.Time {
	var anchor *time.Time
	consider := func(t time.Time) {
		if t.After(asOf) {
			return
		}
		if anchor == nil || t.After(*anchor) {
			v := t
			anchor = &v
		}
	}
	for _, p := range l.points {
		if p.EmployeeID != employeeID {
			continue
		}
		if !p.IsExcused {
			consider(p.ViolationDate)
		}
		if p.GBROAppliedAt != nil {
			consider(*p.GBROAppliedAt)
		}
	}
	return anchor
}

func (l *memLedger) expireGoodBehaviorLocked(employeeID string, runDate time.Time, limit int, batchID string) int64 {
	var candidates []*models.AttendancePoint
	for _, p := range l.points {
		if p.EmployeeID == employeeID && p.Active() && p.GBROEligible && !p.ViolationDate.After(runDate) {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].ViolationDate.Equal(candidates[j].ViolationDate) {
			return candidates[i].ViolationDate.After(candidates[j].ViolationDate)
		}
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	for _, p := range candidates {
		d := runDate
		b := batchID
		p.IsExpired = true
		p.ExpirationType = models.ExpirationGBRO
		p.ExpiredAt = &d
		p.GBROAppliedAt = &d
		p.GBROBatchID = &b
	}
	return int64(len(candidates))
}

// memShiftStore mimics the keyed, versioned shift record repository.
type memShiftStore struct {
	mu        sync.Mutex
	records   map[string]*models.ShiftRecord
	scans     map[string]models.ScanRecord
	conflicts int
	failFor   map[string]error
	mutations int
	seq       int
}

func newMemShiftStore() *memShiftStore {
	return &memShiftStore{records: map[string]*models.ShiftRecord{}, scans: map[string]models.ScanRecord{}, failFor: map[string]error{}}
}

func (s *memShiftStore) Mutate(ctx context.Context, key models.ShiftKey, fn repository.ShiftMutation, after repository.ShiftCommitHook) (*models.ShiftRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	if err := s.failFor[key.EmployeeID]; err != nil {
		return nil, err
	}
	existing, exists := s.records[key.String()]
	var current models.ShiftRecord
	if exists {
		current = *existing
	} else {
		s.seq++
		current = models.ShiftRecord{ID: "rec-" + key.String(), EmployeeID: key.EmployeeID, ShiftDate: models.CivilDate(key.ShiftDate)}
	}
	changed, scans, err := fn(&current, exists)
	if err != nil {
		return nil, err
	}
	if !changed {
		if exists && after != nil {
			if err := after(ctx, nil, &current); err != nil {
				return nil, err
			}
		}
		return &current, nil
	}
	if s.conflicts > 0 {
		s.conflicts--
		return nil, appErrors.Clone(appErrors.ErrVersionConflict, "")
	}
	current.Version++
	if after != nil {
		hooked := current
		if err := after(ctx, nil, &hooked); err != nil {
			return nil, err
		}
	}
	stored := current
	s.records[key.String()] = &stored
	for _, sc := range scans {
		s.scans[key.String()+"|"+string(sc.Direction)] = sc
	}
	out := current
	return &out, nil
}

func (s *memShiftStore) FindByID(ctx context.Context, id string) (*models.ShiftRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memShiftStore) List(ctx context.Context, filter models.ShiftRecordFilter) ([]models.ShiftRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ShiftRecord
	for _, r := range s.records {
		if filter.EmployeeID != "" && r.EmployeeID != filter.EmployeeID {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (s *memShiftStore) ListByDate(ctx context.Context, date time.Time) ([]models.ShiftRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ShiftRecord
	for _, r := range s.records {
		if r.ShiftDate.Equal(models.CivilDate(date)) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memShiftStore) get(employeeID string, date time.Time) *models.ShiftRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[models.ShiftKey{EmployeeID: employeeID, ShiftDate: date}.String()]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (s *memShiftStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type memScans struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	cutoff time.Time
	// records, when set, backs ListRecords with the scans written through Mutate.
	records *memShiftStore
}

func newMemScans() *memScans { return &memScans{seen: map[string]struct{}{}} }

func (m *memScans) InsertEvents(ctx context.Context, events []models.ScanEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range events {
		k := e.EmployeeID + "|" + e.ScannedAt.Format(time.RFC3339Nano)
		if _, ok := m.seen[k]; ok {
			continue
		}
		m.seen[k] = struct{}{}
		n++
	}
	return n, nil
}

func (m *memScans) ListRecords(ctx context.Context, key models.ShiftKey) ([]models.ScanRecord, error) {
	if m.records == nil {
		return nil, nil
	}
	m.records.mu.Lock()
	defer m.records.mu.Unlock()
	var out []models.ScanRecord
	for _, dir := range []models.ScanDirection{models.ScanDirectionIn, models.ScanDirectionOut} {
		if sc, ok := m.records.scans[key.String()+"|"+string(dir)]; ok {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScannedAt.Before(out[j].ScannedAt) })
	return out, nil
}

func (m *memScans) Purge(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	m.cutoff = cutoff
	return 3, 1, nil
}

type memSchedules map[string]*models.EmployeeSchedule

func (m memSchedules) ActiveFor(ctx context.Context, employeeID string, date time.Time) (*models.EmployeeSchedule, error) {
	s, ok := m[employeeID]
	if !ok || !s.Covers(date) {
		return nil, nil
	}
	return s, nil
}

func (m memSchedules) ListActiveOn(ctx context.Context, date time.Time) ([]models.EmployeeSchedule, error) {
	var out []models.EmployeeSchedule
	for _, s := range m {
		if s.Covers(date) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

type memLeaves map[string]models.LeaveFlags

func (m memLeaves) FlagsFor(ctx context.Context, employeeID string, date time.Time) (models.LeaveFlags, error) {
	return m[models.ShiftKey{EmployeeID: employeeID, ShiftDate: date}.String()], nil
}

type fakeDispatcher struct {
	jobs    []jobs.Job
	pending map[string]struct{}
}

func (d *fakeDispatcher) Enqueue(job jobs.Job) (bool, error) {
	if d.pending == nil {
		d.pending = map[string]struct{}{}
	}
	if _, ok := d.pending[job.Key]; ok {
		return false, nil
	}
	d.pending[job.Key] = struct{}{}
	d.jobs = append(d.jobs, job)
	return true, nil
}

func (d *fakeDispatcher) Pending() int { return len(d.pending) }

func schedule(employeeID string, in, out models.Clock) *models.EmployeeSchedule {
	return &models.EmployeeSchedule{
		ID:            "sched-" + employeeID,
		EmployeeID:    employeeID,
		TimeIn:        in,
		TimeOut:       out,
		GraceMinutes:  10,
		Active:        true,
		EffectiveFrom: models.NewDate(2024, time.January, 1),
	}
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}
