package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bio-attendance-api/internal/dto"
	"github.com/noah-isme/bio-attendance-api/internal/models"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
)

type recordingSweeper struct {
	steps    *[]string
	finalize error
}

func (r recordingSweeper) FinalizeDay(ctx context.Context, req dto.FinalizeDayRequest, now time.Time) (*dto.FinalizeDayResult, error) {
	*r.steps = append(*r.steps, "finalize "+req.Date)
	if r.finalize != nil {
		return nil, r.finalize
	}
	return &dto.FinalizeDayResult{Date: req.Date}, nil
}

func (r recordingSweeper) PurgeScans(ctx context.Context, now time.Time) (*dto.PurgeResult, error) {
	*r.steps = append(*r.steps, "purge")
	return &dto.PurgeResult{}, nil
}

type recordingRunner struct {
	steps *[]string
	err   error
}

func (r recordingRunner) Run(ctx context.Context, runDate time.Time, trigger string) (*models.ExpirationSummary, error) {
	*r.steps = append(*r.steps, "expire "+runDate.Format(models.DateLayout)+" "+trigger)
	if r.err != nil {
		return nil, r.err
	}
	return &models.ExpirationSummary{RunDate: runDate}, nil
}

func TestExpirationSchedulerRunOnceOrder(t *testing.T) {
	var steps []string
	s := NewExpirationScheduler(recordingRunner{steps: &steps}, recordingSweeper{steps: &steps}, ExpirationSchedulerConfig{
		Now: func() time.Time { return utc(2025, time.December, 10, 0, 5) },
	})

	s.RunOnce(context.Background())
	assert.Equal(t, []string{
		"finalize 2025-12-08",
		"finalize 2025-12-09",
		"expire 2025-12-10 scheduler",
		"purge",
	}, steps)
}

func TestExpirationSchedulerContinuesAfterFailures(t *testing.T) {
	var steps []string
	s := NewExpirationScheduler(
		recordingRunner{steps: &steps, err: appErrors.Clone(appErrors.ErrLockHeld, "")},
		recordingSweeper{steps: &steps, finalize: errors.New("db down")},
		ExpirationSchedulerConfig{Now: func() time.Time { return utc(2025, time.December, 10, 0, 5) }},
	)

	s.RunOnce(context.Background())
	require.Len(t, steps, 4)
	assert.Equal(t, "purge", steps[3])
}

func TestExpirationSchedulerUsesConfiguredLocation(t *testing.T) {
	var steps []string
	loc := time.FixedZone("UTC+8", 8*60*60)
	s := NewExpirationScheduler(recordingRunner{steps: &steps}, nil, ExpirationSchedulerConfig{
		Location: loc,
		Now:      func() time.Time { return utc(2025, time.December, 9, 16, 30) },
	})

	s.RunOnce(context.Background())
	assert.Equal(t, []string{"expire 2025-12-10 scheduler"}, steps)
}

func TestExpirationSchedulerRejectsBadSpec(t *testing.T) {
	s := NewExpirationScheduler(recordingRunner{steps: new([]string)}, nil, ExpirationSchedulerConfig{Spec: "not a spec"})
	assert.Error(t, s.Start())
}
