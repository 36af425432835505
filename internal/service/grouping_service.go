package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/bio-attendance-api/internal/attendance"
	"github.com/noah-isme/bio-attendance-api/internal/dto"
	"github.com/noah-isme/bio-attendance-api/internal/models"
	"github.com/noah-isme/bio-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
	"github.com/noah-isme/bio-attendance-api/pkg/jobs"
)

const (
	maxMutateAttempts = 3
	reclassifyJobType = "reclassify"
	maxReclassifyDays = 93
)

type scheduleReader interface {
	ActiveFor(ctx context.Context, employeeID string, date time.Time) (*models.EmployeeSchedule, error)
	ListActiveOn(ctx context.Context, date time.Time) ([]models.EmployeeSchedule, error)
}

type leaveReader interface {
	FlagsFor(ctx context.Context, employeeID string, date time.Time) (models.LeaveFlags, error)
}

type scanStore interface {
	InsertEvents(ctx context.Context, events []models.ScanEvent) (int, error)
	ListRecords(ctx context.Context, key models.ShiftKey) ([]models.ScanRecord, error)
	Purge(ctx context.Context, cutoff time.Time) (int64, int64, error)
}

type shiftRecordStore interface {
	Mutate(ctx context.Context, key models.ShiftKey, fn repository.ShiftMutation, after repository.ShiftCommitHook) (*models.ShiftRecord, error)
	FindByID(ctx context.Context, id string) (*models.ShiftRecord, error)
	List(ctx context.Context, filter models.ShiftRecordFilter) ([]models.ShiftRecord, int, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.ShiftRecord, error)
}

type pointRegenerator interface {
	Regenerate(ctx context.Context, tx *sqlx.Tx, record *models.ShiftRecord, cls attendance.Classification) (repository.ReplaceOutcome, *models.AttendancePoint, error)
	Publish(ctx context.Context, record *models.ShiftRecord, cls attendance.Classification, outcome repository.ReplaceOutcome)
}

type reclassifyDispatcher interface {
	Enqueue(job jobs.Job) (bool, error)
	Pending() int
}

// GroupingService turns raw scans into classified shift records and keeps
// their points current.
type GroupingService struct {
	schedules scheduleReader
	leaves    leaveReader
	scans     scanStore
	records   shiftRecordStore
	points    pointRegenerator
	queue     reclassifyDispatcher
	policy    attendance.Policy
	retention time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// GroupingServiceConfig bundles tunables and optional collaborators.
type GroupingServiceConfig struct {
	Policy    attendance.Policy
	Retention time.Duration
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewGroupingService constructs the service.
func NewGroupingService(schedules scheduleReader, leaves leaveReader, scans scanStore, records shiftRecordStore, points pointRegenerator, cfg GroupingServiceConfig) *GroupingService {
	if cfg.Policy.Location == nil {
		cfg.Policy = attendance.DefaultPolicy()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 90 * 24 * time.Hour
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &GroupingService{
		schedules: schedules,
		leaves:    leaves,
		scans:     scans,
		records:   records,
		points:    points,
		policy:    cfg.Policy,
		retention: cfg.Retention,
		metrics:   cfg.Metrics,
		validator: cfg.Validator,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// AttachQueue wires the background reclassification queue.
func (s *GroupingService) AttachQueue(queue reclassifyDispatcher) {
	s.queue = queue
}

type shiftContext struct {
	schedule *models.EmployeeSchedule
	instance *attendance.Instance
	flags    models.LeaveFlags
}

type shiftEdit func(rec *models.ShiftRecord) (changed bool, scans []models.ScanRecord)

type processed struct {
	record  *models.ShiftRecord
	cls     attendance.Classification
	exists  bool
	created bool
	point   repository.ReplaceOutcome
}

type scanGroup struct {
	key   models.ShiftKey
	scans []time.Time
}

// Ingest records a batch of scans and folds them into shift records. Each
// (employee, shift date) is processed on its own so one failure never aborts
// the rest of the batch.
func (s *GroupingService) Ingest(ctx context.Context, req dto.IngestScansRequest, now time.Time) (*dto.IngestResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	batchID := strings.TrimSpace(req.BatchID)
	if batchID == "" {
		batchID = uuid.NewString()
	}

	events := make([]models.ScanEvent, 0, len(req.Events))
	for _, e := range req.Events {
		events = append(events, models.ScanEvent{
			EmployeeID: strings.TrimSpace(e.EmployeeID),
			ScannedAt:  e.ScannedAt.UTC(),
			BatchID:    batchID,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].EmployeeID != events[j].EmployeeID {
			return events[i].EmployeeID < events[j].EmployeeID
		}
		return events[i].ScannedAt.Before(events[j].ScannedAt)
	})

	recorded, err := s.scans.InsertEvents(ctx, events)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record scans")
	}

	result := &dto.IngestResult{
		BatchID:   batchID,
		Received:  len(events),
		Recorded:  recorded,
		Succeeded: []dto.IngestRecordResult{},
		Failed:    []dto.IngestRecordResult{},
	}

	groups := make(map[string]*scanGroup)
	order := make([]string, 0)
	for _, ev := range events {
		date, err := s.resolveShiftDate(ctx, ev.EmployeeID, ev.ScannedAt)
		if err != nil {
			scannedAt := ev.ScannedAt
			result.Failed = append(result.Failed, dto.IngestRecordResult{EmployeeID: ev.EmployeeID, ScannedAt: &scannedAt, Error: "failed to resolve shift date"})
			s.metrics.RecordRecordFailure()
			s.logger.Error("resolve shift date failed",
				zap.String("employee_id", ev.EmployeeID),
				zap.Time("scanned_at", ev.ScannedAt),
				zap.String("batch_id", batchID),
				zap.Error(err))
			continue
		}
		key := models.ShiftKey{EmployeeID: ev.EmployeeID, ShiftDate: date}
		g, ok := groups[key.String()]
		if !ok {
			g = &scanGroup{key: key}
			groups[key.String()] = g
			order = append(order, key.String())
		}
		g.scans = append(g.scans, ev.ScannedAt)
	}

	for _, k := range order {
		g := groups[k]
		entry := dto.IngestRecordResult{EmployeeID: g.key.EmployeeID, ShiftDate: g.key.ShiftDate.Format(models.DateLayout)}

		p, tally, err := s.ingestGroup(ctx, g, batchID, now)
		result.Duplicates += tally.duplicates
		result.Anomalies += tally.anomalies
		if err != nil {
			entry.Error = "failed to process shift record"
			result.Failed = append(result.Failed, entry)
			s.metrics.RecordRecordFailure()
			s.logger.Error("shift record processing failed",
				zap.String("employee_id", g.key.EmployeeID),
				zap.String("shift_date", entry.ShiftDate),
				zap.String("batch_id", batchID),
				zap.Error(err))
			continue
		}
		entry.Status = string(p.record.Status)
		entry.Point = string(p.point)
		result.Succeeded = append(result.Succeeded, entry)
	}

	s.logger.Info("scan batch ingested",
		zap.String("batch_id", batchID),
		zap.Int("received", result.Received),
		zap.Int("recorded", result.Recorded),
		zap.Int("records", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

type assignTally struct {
	duplicates int
	anomalies  int
}

func (s *GroupingService) ingestGroup(ctx context.Context, g *scanGroup, batchID string, now time.Time) (*processed, assignTally, error) {
	sc, err := s.loadContext(ctx, g.key)
	if err != nil {
		return nil, assignTally{}, err
	}

	var assignments []attendance.Assignment
	edit := func(rec *models.ShiftRecord) (bool, []models.ScanRecord) {
		assignments = assignments[:0]
		changed := false
		for _, scan := range g.scans {
			a := attendance.AssignScan(rec, scan, sc.instance, s.policy.DuplicateScanWindow)
			assignments = append(assignments, a)
			if a.Changed() {
				changed = true
			}
		}
		if !changed {
			return false, nil
		}
		return true, scanRecordsFor(rec, batchID, now)
	}

	p, err := s.process(ctx, g.key, sc, now, true, edit)
	if err != nil {
		return nil, assignTally{}, err
	}

	var tally assignTally
	for i, a := range assignments {
		s.metrics.RecordScan(string(a.Outcome))
		switch a.Outcome {
		case attendance.AssignDuplicate:
			tally.duplicates++
		case attendance.AssignAnomaly:
			tally.anomalies++
			s.logger.Warn("scan anomaly",
				zap.String("employee_id", g.key.EmployeeID),
				zap.String("shift_date", g.key.ShiftDate.Format(models.DateLayout)),
				zap.Time("scanned_at", g.scans[i]),
				zap.String("reason", a.Reason))
		case attendance.AssignedReordered:
			s.logger.Info("scan reordered shift record",
				zap.String("employee_id", g.key.EmployeeID),
				zap.String("shift_date", g.key.ShiftDate.Format(models.DateLayout)),
				zap.Time("scanned_at", g.scans[i]))
		}
	}
	return p, tally, nil
}

// ReclassifyShift re-evaluates an existing shift record against the current
// schedule, leave flags and clock. It returns nil when no record exists.
func (s *GroupingService) ReclassifyShift(ctx context.Context, key models.ShiftKey, now time.Time) (*models.ShiftRecord, error) {
	key.ShiftDate = models.CivilDate(key.ShiftDate)
	sc, err := s.loadContext(ctx, key)
	if err != nil {
		return nil, err
	}
	p, err := s.process(ctx, key, sc, now, false, nil)
	if err != nil {
		return nil, err
	}
	if !p.exists {
		return nil, nil
	}
	return p.record, nil
}

// Reclassify queues one job per day in the requested range.
func (s *GroupingService) Reclassify(ctx context.Context, req dto.ReclassifyRequest) (*dto.ReclassifyAccepted, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	from, errFrom := models.ParseDate(req.DateFrom)
	to, errTo := models.ParseDate(req.DateTo)
	if errFrom != nil || errTo != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	if models.DaysBetween(from, to) >= maxReclassifyDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range must not exceed %d days", maxReclassifyDays))
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "reclassification queue unavailable")
	}

	accepted := &dto.ReclassifyAccepted{}
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := models.ShiftKey{EmployeeID: req.EmployeeID, ShiftDate: day}
		queued, err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: reclassifyJobType, Key: key.String(), Payload: key})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue reclassification")
		}
		if queued {
			accepted.Queued++
		} else {
			accepted.Collapsed++
		}
	}
	s.metrics.SetReclassifyPending(s.queue.Pending())
	return accepted, nil
}

// FinalizeDay creates records for scheduled employees who never scanned once
// their shift window has closed, and settles provisional records of that date.
func (s *GroupingService) FinalizeDay(ctx context.Context, req dto.FinalizeDayRequest, now time.Time) (*dto.FinalizeDayResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}

	schedules, err := s.schedules.ListActiveOn(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}

	result := &dto.FinalizeDayResult{Date: req.Date, Scheduled: len(schedules)}
	handled := make(map[string]struct{}, len(schedules))
	for i := range schedules {
		schedule := schedules[i]
		key := models.ShiftKey{EmployeeID: schedule.EmployeeID, ShiftDate: date}
		handled[schedule.EmployeeID] = struct{}{}

		if window, werr := s.policy.Window(&schedule); werr == nil {
			if !window.Instance(date).Closed(now, s.policy.OpenWindowTolerance) {
				result.Pending++
				continue
			}
		}

		sc, err := s.loadContext(ctx, key)
		if err == nil {
			var p *processed
			if p, err = s.process(ctx, key, sc, now, true, nil); err == nil {
				if p.created {
					result.Created++
				} else {
					result.Reclassified++
				}
				continue
			}
		}
		result.Failed++
		s.metrics.RecordRecordFailure()
		s.logger.Error("finalize shift failed", zap.String("employee_id", key.EmployeeID), zap.String("shift_date", req.Date), zap.Error(err))
	}

	records, err := s.records.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift records")
	}
	for _, rec := range records {
		if _, done := handled[rec.EmployeeID]; done || !rec.Provisional {
			continue
		}
		if _, err := s.ReclassifyShift(ctx, models.ShiftKey{EmployeeID: rec.EmployeeID, ShiftDate: date}, now); err != nil {
			result.Failed++
			s.metrics.RecordRecordFailure()
			s.logger.Error("settle provisional shift failed", zap.String("employee_id", rec.EmployeeID), zap.String("shift_date", req.Date), zap.Error(err))
			continue
		}
		result.Reclassified++
	}

	s.logger.Info("shift date finalized",
		zap.String("shift_date", req.Date),
		zap.Int("scheduled", result.Scheduled),
		zap.Int("created", result.Created),
		zap.Int("reclassified", result.Reclassified),
		zap.Int("pending", result.Pending),
		zap.Int("failed", result.Failed))
	return result, nil
}

// Scans returns the in/out scans currently attributed to a shift record.
func (s *GroupingService) Scans(ctx context.Context, id string) ([]models.ScanRecord, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift record")
	}
	if record == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "shift record not found")
	}
	scans, err := s.scans.ListRecords(ctx, models.ShiftKey{EmployeeID: record.EmployeeID, ShiftDate: record.ShiftDate})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scans")
	}
	if scans == nil {
		scans = []models.ScanRecord{}
	}
	return scans, nil
}

// Verify applies a supervisor correction and reclassifies the record.
func (s *GroupingService) Verify(ctx context.Context, id string, req dto.VerifyShiftRecordRequest) (*models.ShiftRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.TimeIn == nil && req.TimeOut == nil && !req.PresentNoBio {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time_in, time_out or present_no_bio is required")
	}
	if req.TimeIn != nil && req.TimeOut != nil && !req.TimeOut.After(*req.TimeIn) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time_out must be after time_in")
	}

	existing, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift record")
	}
	if existing == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "shift record not found")
	}

	key := models.ShiftKey{EmployeeID: existing.EmployeeID, ShiftDate: existing.ShiftDate}
	sc, err := s.loadContext(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	now := s.now().UTC()
	edit := func(rec *models.ShiftRecord) (bool, []models.ScanRecord) {
		if req.TimeIn != nil {
			in := req.TimeIn.UTC()
			rec.TimeIn = &in
		}
		if req.TimeOut != nil {
			out := req.TimeOut.UTC()
			rec.TimeOut = &out
		}
		by := req.VerifiedBy
		at := now
		rec.Verified = true
		rec.VerifiedBy = &by
		rec.VerifiedAt = &at
		return true, nil
	}

	p, err := s.process(ctx, key, sc, now, false, edit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify shift record")
	}
	s.logger.Info("shift record verified",
		zap.String("shift_record_id", id),
		zap.String("employee_id", key.EmployeeID),
		zap.String("verified_by", req.VerifiedBy),
		zap.String("status", string(p.record.Status)))
	return p.record, nil
}

// List returns shift records matching the query.
func (s *GroupingService) List(ctx context.Context, q dto.ShiftRecordQuery) ([]models.ShiftRecord, *models.Pagination, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	filter := models.ShiftRecordFilter{EmployeeID: q.EmployeeID, ProvisionalOnly: q.ProvisionalOnly}
	var err error
	if filter.DateFrom, err = optionalDate(q.DateFrom); err != nil {
		return nil, nil, err
	}
	if filter.DateTo, err = optionalDate(q.DateTo); err != nil {
		return nil, nil, err
	}
	for _, raw := range q.Status {
		status := models.AttendanceStatus(strings.ToLower(strings.TrimSpace(raw)))
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	filter.Page, filter.PageSize = pageParams(q.Page, q.PageSize)

	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list shift records")
	}
	return records, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// PurgeScans removes scans older than the retention window.
func (s *GroupingService) PurgeScans(ctx context.Context, now time.Time) (*dto.PurgeResult, error) {
	cutoff := now.Add(-s.retention).UTC()
	events, records, err := s.scans.Purge(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge scans: %w", err)
	}
	s.logger.Info("scans purged", zap.Time("cutoff", cutoff), zap.Int64("events", events), zap.Int64("records", records))
	return &dto.PurgeResult{Cutoff: cutoff, EventsDeleted: events, RecordsDeleted: records}, nil
}

// resolveShiftDate attributes a scan to a shift date using the schedule in
// force around it. Without any schedule the scan's local date is used.
func (s *GroupingService) resolveShiftDate(ctx context.Context, employeeID string, scan time.Time) (time.Time, error) {
	local := models.CivilDate(scan.In(s.policy.Location))
	schedule, err := s.schedules.ActiveFor(ctx, employeeID, local)
	if err != nil {
		return time.Time{}, err
	}
	if schedule == nil {
		// completion scans of an overnight shift land on the day after its schedule ended
		if schedule, err = s.schedules.ActiveFor(ctx, employeeID, local.AddDate(0, 0, -1)); err != nil {
			return time.Time{}, err
		}
		if schedule == nil {
			return local, nil
		}
	}
	window, err := s.policy.Window(schedule)
	if err != nil {
		return local, nil
	}
	date := window.ShiftDate(scan)
	if date.Equal(local) || schedule.Covers(date) {
		return date, nil
	}
	other, err := s.schedules.ActiveFor(ctx, employeeID, date)
	if err != nil {
		return time.Time{}, err
	}
	if other == nil {
		return date, nil
	}
	if w, werr := s.policy.Window(other); werr == nil {
		return w.ShiftDate(scan), nil
	}
	return date, nil
}

func (s *GroupingService) loadContext(ctx context.Context, key models.ShiftKey) (shiftContext, error) {
	schedule, err := s.schedules.ActiveFor(ctx, key.EmployeeID, key.ShiftDate)
	if err != nil {
		return shiftContext{}, fmt.Errorf("load schedule: %w", err)
	}
	flags, err := s.leaves.FlagsFor(ctx, key.EmployeeID, key.ShiftDate)
	if err != nil {
		return shiftContext{}, fmt.Errorf("load leave flags: %w", err)
	}
	sc := shiftContext{schedule: schedule, flags: flags}
	if schedule != nil {
		if window, werr := s.policy.Window(schedule); werr == nil {
			inst := window.Instance(key.ShiftDate)
			sc.instance = &inst
		}
	}
	return sc, nil
}

// process applies edit to the record of key, classifies it and regenerates
// its point in the same transaction, so the ledger always follows the
// committed record. With create unset a missing record is left missing.
func (s *GroupingService) process(ctx context.Context, key models.ShiftKey, sc shiftContext, now time.Time, create bool, edit shiftEdit) (*processed, error) {
	out := &processed{}
	mutation := func(rec *models.ShiftRecord, exists bool) (bool, []models.ScanRecord, error) {
		out.exists = exists
		out.created = false
		out.point = ""
		if !exists && !create {
			return false, nil, nil
		}

		changed := !exists
		var scans []models.ScanRecord
		if edit != nil {
			edited, resolved := edit(rec)
			if !exists && !edited {
				// only duplicates or anomalies for a date with no record yet
				return false, nil, nil
			}
			changed = changed || edited
			scans = resolved
		}

		cls := attendance.Classify(attendance.ClassifyInput{
			ShiftDate: rec.ShiftDate,
			TimeIn:    rec.TimeIn,
			TimeOut:   rec.TimeOut,
			Verified:  rec.Verified,
			Schedule:  sc.schedule,
			Flags:     sc.flags,
			Now:       now,
		}, s.policy)
		if applyClassification(rec, cls, sc.schedule) {
			changed = true
		}
		out.cls = cls
		if changed && !exists {
			out.exists = true
			out.created = true
		}
		return changed, scans, nil
	}
	regenerate := func(ctx context.Context, tx *sqlx.Tx, rec *models.ShiftRecord) error {
		outcome, _, err := s.points.Regenerate(ctx, tx, rec, out.cls)
		if err != nil {
			return err
		}
		out.point = outcome
		return nil
	}

	var (
		record *models.ShiftRecord
		err    error
	)
	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		record, err = s.records.Mutate(ctx, key, mutation, regenerate)
		if err == nil || !errors.Is(err, appErrors.ErrVersionConflict) {
			break
		}
		s.logger.Warn("shift record version conflict",
			zap.String("employee_id", key.EmployeeID),
			zap.String("shift_date", key.ShiftDate.Format(models.DateLayout)),
			zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}
	out.record = record
	if !out.exists {
		return out, nil
	}

	s.metrics.RecordClassification(string(out.cls.Status))
	s.points.Publish(ctx, record, out.cls, out.point)
	return out, nil
}

func applyClassification(rec *models.ShiftRecord, cls attendance.Classification, schedule *models.EmployeeSchedule) bool {
	var scheduleID *string
	if schedule != nil {
		id := schedule.ID
		scheduleID = &id
	}
	changed := rec.Status != cls.Status ||
		rec.MinutesLate != cls.MinutesLate ||
		rec.MinutesUndertime != cls.MinutesUndertime ||
		rec.Provisional != cls.Provisional ||
		!sameString(rec.ScheduleID, scheduleID)

	rec.Status = cls.Status
	rec.MinutesLate = cls.MinutesLate
	rec.MinutesUndertime = cls.MinutesUndertime
	rec.Provisional = cls.Provisional
	rec.ScheduleID = scheduleID
	return changed
}

func scanRecordsFor(rec *models.ShiftRecord, batchID string, now time.Time) []models.ScanRecord {
	var out []models.ScanRecord
	if rec.TimeIn != nil {
		out = append(out, models.ScanRecord{EmployeeID: rec.EmployeeID, ShiftDate: rec.ShiftDate, Direction: models.ScanDirectionIn,
			ScannedAt: *rec.TimeIn, BatchID: batchID, CreatedAt: now.UTC()})
	}
	if rec.TimeOut != nil {
		out = append(out, models.ScanRecord{EmployeeID: rec.EmployeeID, ShiftDate: rec.ShiftDate, Direction: models.ScanDirectionOut,
			ScannedAt: *rec.TimeOut, BatchID: batchID, CreatedAt: now.UTC()})
	}
	return out
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type shiftReclassifier interface {
	ReclassifyShift(ctx context.Context, key models.ShiftKey, now time.Time) (*models.ShiftRecord, error)
}

// ReclassifyWorker bridges queue jobs to GroupingService.
type ReclassifyWorker struct {
	svc    shiftReclassifier
	logger *zap.Logger
	now    func() time.Time
}

// NewReclassifyWorker constructs a worker.
func NewReclassifyWorker(svc shiftReclassifier, logger *zap.Logger) *ReclassifyWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReclassifyWorker{svc: svc, logger: logger, now: time.Now}
}

// Handle processes a queue job.
func (w *ReclassifyWorker) Handle(ctx context.Context, job jobs.Job) error {
	key, ok := job.Payload.(models.ShiftKey)
	if !ok {
		w.logger.Sugar().Errorw("unexpected reclassify payload", "job_id", job.ID, "payload", fmt.Sprintf("%T", job.Payload))
		return nil
	}
	record, err := w.svc.ReclassifyShift(ctx, key, w.now())
	if err != nil {
		return err
	}
	if record != nil {
		w.logger.Sugar().Infow("shift reclassified", "key", key.String(), "status", record.Status, "attempt", job.Attempt)
	}
	return nil
}
