package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/bio-attendance-api/internal/dto"
	"github.com/noah-isme/bio-attendance-api/internal/models"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
)

type dailySweeper interface {
	FinalizeDay(ctx context.Context, req dto.FinalizeDayRequest, now time.Time) (*dto.FinalizeDayResult, error)
	PurgeScans(ctx context.Context, now time.Time) (*dto.PurgeResult, error)
}

type expirationRunner interface {
	Run(ctx context.Context, runDate time.Time, trigger string) (*models.ExpirationSummary, error)
}

// ExpirationSchedulerConfig configures the daily job.
type ExpirationSchedulerConfig struct {
	Spec     string
	Location *time.Location
	Timeout  time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

// ExpirationScheduler runs the daily maintenance pass: settle the shifts of
// the last two days, expire points, then purge old scans.
type ExpirationScheduler struct {
	cron       *cron.Cron
	spec       string
	loc        *time.Location
	timeout    time.Duration
	expiration expirationRunner
	sweeper    dailySweeper
	logger     *zap.Logger
	now        func() time.Time
}

// NewExpirationScheduler constructs a scheduler. Overlapping ticks are skipped.
func NewExpirationScheduler(expiration expirationRunner, sweeper dailySweeper, cfg ExpirationSchedulerConfig) *ExpirationScheduler {
	if cfg.Spec == "" {
		cfg.Spec = "5 0 * * *"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cl := cronLogger{logger: cfg.Logger}
	return &ExpirationScheduler{
		cron:       cron.New(cron.WithLocation(cfg.Location), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		spec:       cfg.Spec,
		loc:        cfg.Location,
		timeout:    cfg.Timeout,
		expiration: expiration,
		sweeper:    sweeper,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
}

// Start registers the job and starts the cron loop.
func (s *ExpirationScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule expiration job %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Sugar().Infow("expiration scheduler started", "spec", s.spec, "location", s.loc.String())
	return nil
}

// Stop halts the cron loop and waits for a running pass or ctx.
func (s *ExpirationScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Sugar().Warnw("expiration scheduler stop timed out")
	}
}

// RunOnce performs one maintenance pass. Each step logs its own failure and
// the pass continues.
func (s *ExpirationScheduler) RunOnce(ctx context.Context) {
	now := s.now()
	today := models.CivilDate(now.In(s.loc))

	if s.sweeper != nil {
		// overnight shifts of the day before yesterday close after the previous pass
		for _, day := range []time.Time{today.AddDate(0, 0, -2), today.AddDate(0, 0, -1)} {
			date := day.Format(models.DateLayout)
			if _, err := s.sweeper.FinalizeDay(ctx, dto.FinalizeDayRequest{Date: date}, now); err != nil {
				s.logger.Sugar().Errorw("finalize shift date failed", "shift_date", date, "error", err)
			}
		}
	}

	if _, err := s.expiration.Run(ctx, today, "scheduler"); err != nil {
		if errors.Is(err, appErrors.ErrLockHeld) {
			s.logger.Sugar().Infow("expiration run skipped, lock held elsewhere", "run_date", today.Format(models.DateLayout))
		} else {
			s.logger.Sugar().Errorw("expiration run failed", "run_date", today.Format(models.DateLayout), "error", err)
		}
	}

	if s.sweeper != nil {
		if _, err := s.sweeper.PurgeScans(ctx, now); err != nil {
			s.logger.Sugar().Errorw("scan purge failed", "error", err)
		}
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
