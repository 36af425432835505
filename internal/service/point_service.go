package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/bio-attendance-api/internal/attendance"
	"github.com/noah-isme/bio-attendance-api/internal/dto"
	"github.com/noah-isme/bio-attendance-api/internal/models"
	"github.com/noah-isme/bio-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
)

const summaryCachePrefix = "points:summary:"

type pointRepository interface {
	ReplaceForShiftRecord(ctx context.Context, tx *sqlx.Tx, shiftRecordID string, desired *models.AttendancePoint) (repository.ReplaceOutcome, error)
	FindByID(ctx context.Context, id string) (*models.AttendancePoint, error)
	List(ctx context.Context, filter models.AttendancePointFilter) ([]models.AttendancePoint, int, error)
	Summary(ctx context.Context, employeeID string) (*models.PointSummary, error)
	Excuse(ctx context.Context, id, actor, reason string, at time.Time) error
}

// PointService keeps the point ledger in step with shift classifications.
type PointService struct {
	repo      pointRepository
	rules     attendance.PointRules
	cache     *CacheService
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// PointServiceConfig bundles optional collaborators.
type PointServiceConfig struct {
	Rules     attendance.PointRules
	Cache     *CacheService
	CacheTTL  time.Duration
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewPointService constructs the service.
func NewPointService(repo pointRepository, cfg PointServiceConfig) *PointService {
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rules.Tardy.IsZero() && cfg.Rules.WholeDayAbsence.IsZero() {
		cfg.Rules = attendance.DefaultPointRules()
	}
	return &PointService{
		repo:      repo,
		rules:     cfg.Rules,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		metrics:   cfg.Metrics,
		validator: cfg.Validator,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// Regenerate derives the point for a classified record and makes the ledger
// match it inside tx. Running it twice for the same input leaves the ledger
// unchanged. Callers report the outcome through Publish once tx commits.
func (s *PointService) Regenerate(ctx context.Context, tx *sqlx.Tx, record *models.ShiftRecord, cls attendance.Classification) (repository.ReplaceOutcome, *models.AttendancePoint, error) {
	desired, ok := attendance.PointFor(record, cls, s.rules)
	if !ok {
		desired = nil
	}

	outcome, err := s.repo.ReplaceForShiftRecord(ctx, tx, record.ID, desired)
	if err != nil {
		return "", nil, fmt.Errorf("regenerate point for %s: %w", record.ID, err)
	}
	if outcome == repository.PointBlocked {
		return outcome, nil, nil
	}
	return outcome, desired, nil
}

// Publish records a committed regeneration and drops the employee's cached summary when the ledger moved.
func (s *PointService) Publish(ctx context.Context, record *models.ShiftRecord, cls attendance.Classification, outcome repository.ReplaceOutcome) {
	s.metrics.RecordPointChange(string(outcome))
	switch outcome {
	case repository.PointBlocked:
		s.logger.Info("point regeneration skipped, existing point is terminal",
			zap.String("shift_record_id", record.ID),
			zap.String("employee_id", record.EmployeeID),
			zap.String("status", string(cls.Status)))
	case repository.PointCreated, repository.PointReplaced, repository.PointRemoved:
		s.invalidateSummary(ctx, record.EmployeeID)
	}
}

// List returns ledger entries matching the query.
func (s *PointService) List(ctx context.Context, q dto.PointQuery) ([]models.AttendancePoint, *models.Pagination, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	filter := models.AttendancePointFilter{EmployeeID: q.EmployeeID}
	var err error
	if filter.DateFrom, err = optionalDate(q.DateFrom); err != nil {
		return nil, nil, err
	}
	if filter.DateTo, err = optionalDate(q.DateTo); err != nil {
		return nil, nil, err
	}
	if q.Status != "" {
		status := models.PointStatusFilter(q.Status)
		filter.Status = &status
	}
	if q.ExpirationType != "" {
		expType := models.ExpirationType(q.ExpirationType)
		filter.ExpirationType = &expType
	}
	filter.Page, filter.PageSize = pageParams(q.Page, q.PageSize)

	points, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list points")
	}
	return points, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Summary returns the active point total of an employee, served from cache when possible.
func (s *PointService) Summary(ctx context.Context, employeeID string) (*models.PointSummary, error) {
	if employeeID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee id is required")
	}
	key := summaryCachePrefix + employeeID

	var cached models.PointSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	summary, err := s.repo.Summary(ctx, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise points")
	}
	_ = s.cache.Set(ctx, key, summary, s.cacheTTL)
	return summary, nil
}

// Excuse moves an active point to the terminal excused state.
func (s *PointService) Excuse(ctx context.Context, id string, req dto.ExcusePointRequest) (*models.AttendancePoint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	point, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load point")
	}
	if point == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "point not found")
	}
	if !point.Active() {
		return nil, appErrors.ErrPointTerminal
	}

	if err := s.repo.Excuse(ctx, id, req.ExcusedBy, req.Reason, s.now().UTC()); err != nil {
		if errors.Is(err, appErrors.ErrPointTerminal) {
			return nil, appErrors.ErrPointTerminal
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to excuse point")
	}
	s.invalidateSummary(ctx, point.EmployeeID)
	s.logger.Info("point excused",
		zap.String("point_id", id),
		zap.String("employee_id", point.EmployeeID),
		zap.String("excused_by", req.ExcusedBy))

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload point")
	}
	if updated == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "point not found")
	}
	return updated, nil
}

// InvalidateSummaries drops every cached summary, used after bulk expiry.
func (s *PointService) InvalidateSummaries(ctx context.Context) {
	_ = s.cache.InvalidatePattern(ctx, summaryCachePrefix+"*")
}

func (s *PointService) invalidateSummary(ctx context.Context, employeeID string) {
	_ = s.cache.Invalidate(ctx, summaryCachePrefix+employeeID)
}

func optionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	return &d, nil
}

func pageParams(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}
	return page, size
}
