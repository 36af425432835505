package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, time.UTC, cfg.Attendance.Location)
	assert.Equal(t, 4*time.Hour, cfg.Attendance.HalfDayThreshold)
	assert.Equal(t, 2*time.Hour, cfg.Attendance.OpenWindowTolerance)
	assert.Equal(t, "05:00", cfg.Attendance.GraveyardEnd)
	assert.Equal(t, "0.25", cfg.Points.Tardy)
	assert.Equal(t, 12, cfg.Points.WholeDayExpiryMonths)
	assert.Equal(t, 60, cfg.Expiration.GBROWindowDays)
	assert.Equal(t, 2, cfg.Expiration.GBROBatchSize)
	assert.Equal(t, "5 0 * * *", cfg.Expiration.Cron)
	assert.Equal(t, 90*24*time.Hour, cfg.Retention.Scans)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ATTENDANCE_TIMEZONE", "Local")
	v.Set("ATTENDANCE_HALF_DAY_THRESHOLD", "3h")
	v.Set("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, time.Local, cfg.Attendance.Location)
	assert.Equal(t, 3*time.Hour, cfg.Attendance.HalfDayThreshold)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestFromViperRejectsUnknownTimezone(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ATTENDANCE_TIMEZONE", "Mars/Olympus")

	_, err := fromViper(v)
	require.Error(t, err)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Minute))
}
