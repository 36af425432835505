package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/bio-attendance-api/internal/dto"
	"github.com/noah-isme/bio-attendance-api/internal/models"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
	"github.com/noah-isme/bio-attendance-api/pkg/lock"
)

const expirationLockName = "point-expiration"

type pointExpirer interface {
	ExpireDue(ctx context.Context, runDate time.Time) (int64, error)
	EmployeesWithActivePoints(ctx context.Context) ([]string, error)
	RollOffGoodBehavior(ctx context.Context, employeeID string, runDate time.Time, limit int, batchID string, due func(anchor *time.Time) bool) (*time.Time, int64, error)
}

type expirationRunStore interface {
	Start(ctx context.Context, run *models.ExpirationRun) error
	Finish(ctx context.Context, run *models.ExpirationRun) error
	Recent(ctx context.Context, limit int) ([]models.ExpirationRun, error)
}

type runLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (lock.Lease, error)
}

type summaryInvalidator interface {
	InvalidateSummaries(ctx context.Context)
}

// ExpirationService applies standard and good-behavior roll-off to the point ledger.
// Only one run may be in progress per deployment.
type ExpirationService struct {
	points     pointExpirer
	runs       expirationRunStore
	locker     runLocker
	summaries  summaryInvalidator
	windowDays int
	batchSize  int
	lockTTL    time.Duration
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time

	mu sync.Mutex
}

// ExpirationServiceConfig bundles tunables and optional collaborators.
type ExpirationServiceConfig struct {
	WindowDays int
	BatchSize  int
	LockTTL    time.Duration
	Summaries  summaryInvalidator
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewExpirationService constructs the service.
func NewExpirationService(points pointExpirer, runs expirationRunStore, locker runLocker, cfg ExpirationServiceConfig) *ExpirationService {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 60
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 2
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
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
	return &ExpirationService{
		points:     points,
		runs:       runs,
		locker:     locker,
		summaries:  cfg.Summaries,
		windowDays: cfg.WindowDays,
		batchSize:  cfg.BatchSize,
		lockTTL:    cfg.LockTTL,
		metrics:    cfg.Metrics,
		validator:  cfg.Validator,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
}

// Trigger runs the engine on behalf of an HTTP caller.
func (s *ExpirationService) Trigger(ctx context.Context, req dto.RunExpirationRequest) (*models.ExpirationSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	runDate := models.CivilDate(s.now())
	if req.RunDate != "" {
		d, err := models.ParseDate(req.RunDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
		}
		runDate = d
	}
	summary, err := s.Run(ctx, runDate, "manual")
	if err != nil {
		if errors.Is(err, appErrors.ErrLockHeld) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "expiration run failed")
	}
	return summary, nil
}

// Run expires every point due on runDate within the lock TTL. Re-running for the same date is a
// no-op because every update is guarded by the point's state and the
// good-behavior anchor advances with each application.
func (s *ExpirationService) Run(ctx context.Context, runDate time.Time, trigger string) (summary *models.ExpirationSummary, err error) {
	if !s.mu.TryLock() {
		return nil, appErrors.Clone(appErrors.ErrLockHeld, "expiration run already in progress")
	}
	defer s.mu.Unlock()

	// the run must end before a non-renewed lease can lapse
	ctx, cancel := context.WithTimeout(ctx, s.lockTTL)
	defer cancel()

	lease, err := s.locker.Acquire(ctx, expirationLockName, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := lease.Release(context.Background()); releaseErr != nil {
			s.logger.Warn("release expiration lock failed", zap.String("lock", lease.Key()), zap.Error(releaseErr))
		}
	}()

	runDate = models.CivilDate(runDate)
	started := s.now()
	run := &models.ExpirationRun{RunDate: runDate, Trigger: trigger, StartedAt: started.UTC()}
	if err := s.runs.Start(ctx, run); err != nil {
		return nil, fmt.Errorf("record expiration run: %w", err)
	}

	tally := &models.ExpirationSummary{RunDate: runDate}
	defer func() {
		s.finish(run, tally, err, started)
	}()

	sro, err := s.points.ExpireDue(ctx, runDate)
	if err != nil {
		return nil, fmt.Errorf("standard roll-off: %w", err)
	}
	tally.SROExpired = int(sro)

	employees, err := s.points.EmployeesWithActivePoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees with active points: %w", err)
	}
	for _, employeeID := range employees {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("good behavior roll-off interrupted: %w", ctxErr)
		}
		tally.EmployeesScanned++
		n, gErr := s.applyGoodBehavior(ctx, employeeID, runDate)
		if gErr != nil {
			tally.Failures = append(tally.Failures, models.ExpirationFailure{EmployeeID: employeeID, Reason: gErr.Error()})
			s.logger.Error("good behavior roll-off failed",
				zap.String("employee_id", employeeID),
				zap.String("run_date", runDate.Format(models.DateLayout)),
				zap.Error(gErr))
			continue
		}
		if n > 0 {
			tally.GBROExpired += n
			tally.EmployeesAffected++
		}
	}

	if s.summaries != nil && (tally.SROExpired > 0 || tally.GBROExpired > 0) {
		s.summaries.InvalidateSummaries(ctx)
	}
	return tally, nil
}

func (s *ExpirationService) applyGoodBehavior(ctx context.Context, employeeID string, runDate time.Time) (int, error) {
	batchID := uuid.NewString()
	due := func(anchor *time.Time) bool {
		return anchor != nil && models.DaysBetween(*anchor, runDate) >= s.windowDays
	}
	anchor, n, err := s.points.RollOffGoodBehavior(ctx, employeeID, runDate, s.batchSize, batchID, due)
	if err != nil {
		return 0, err
	}
	if n > 0 && anchor != nil {
		s.logger.Info("good behavior roll-off applied",
			zap.String("employee_id", employeeID),
			zap.String("run_date", runDate.Format(models.DateLayout)),
			zap.String("anchor", anchor.Format(models.DateLayout)),
			zap.String("batch_id", batchID),
			zap.Int64("expired", n))
	}
	return int(n), nil
}

func (s *ExpirationService) finish(run *models.ExpirationRun, summary *models.ExpirationSummary, runErr error, started time.Time) {
	finished := s.now().UTC()
	run.FinishedAt = &finished
	run.SROExpired = summary.SROExpired
	run.GBROExpired = summary.GBROExpired
	run.EmployeesAffected = summary.EmployeesAffected
	run.Failures = len(summary.Failures)
	run.Status = models.ExpirationRunCompleted
	result := "completed"
	if runErr != nil {
		msg := runErr.Error()
		run.Status = models.ExpirationRunFailed
		run.ErrorMessage = &msg
		result = "failed"
	}

	if err := s.runs.Finish(context.Background(), run); err != nil {
		s.logger.Warn("record expiration run result failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	s.metrics.ObserveExpirationRun(result, summary.SROExpired, summary.GBROExpired, finished.Sub(started))

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("run_date", run.RunDate.Format(models.DateLayout)),
		zap.String("trigger", run.Trigger),
		zap.Int("sro_expired", summary.SROExpired),
		zap.Int("gbro_expired", summary.GBROExpired),
		zap.Int("employees_affected", summary.EmployeesAffected),
		zap.Int("failures", len(summary.Failures)),
	}
	if runErr != nil {
		s.logger.Error("expiration run failed", append(fields, zap.Error(runErr))...)
		return
	}
	s.logger.Info("expiration run completed", fields...)
}

// History lists recent runs.
func (s *ExpirationService) History(ctx context.Context, limit int) ([]models.ExpirationRun, error) {
	runs, err := s.runs.Recent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expiration runs")
	}
	return runs, nil
}
