package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Attendance AttendanceConfig
	Points     PointsConfig
	Expiration ExpirationConfig
	Retention  RetentionConfig
	Reclassify ReclassifyConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig holds the classification thresholds.
type AttendanceConfig struct {
	Timezone            string
	Location            *time.Location
	HalfDayThreshold    time.Duration
	UndertimeTolerance  time.Duration
	OpenWindowTolerance time.Duration
	DuplicateScanWindow time.Duration
	GraveyardEnd        string
	GraveyardMode       string
}

// PointsConfig holds point values as decimal strings and expiry windows in months.
type PointsConfig struct {
	Tardy                string
	Undertime            string
	UndertimeMajor       string
	UndertimeMajorAfter  time.Duration
	HalfDay              string
	WholeDay             string
	StandardExpiryMonths int
	WholeDayExpiryMonths int
	SummaryCacheTTL      time.Duration
}

// ExpirationConfig governs the roll-off engine and its daily schedule.
type ExpirationConfig struct {
	GBROWindowDays   int
	GBROBatchSize    int
	SchedulerEnabled bool
	Cron             string
	LockTTL          time.Duration
}

// RetentionConfig bounds how long raw scans are kept.
type RetentionConfig struct {
	Scans time.Duration
}

// ReclassifyConfig sizes the background reclassification queue.
type ReclassifyConfig struct {
	Workers int
	Retries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	tz := v.GetString("ATTENDANCE_TIMEZONE")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid ATTENDANCE_TIMEZONE %q: %w", tz, err)
	}
	cfg.Attendance = AttendanceConfig{
		Timezone:            tz,
		Location:            loc,
		HalfDayThreshold:    parseDuration(v.GetString("ATTENDANCE_HALF_DAY_THRESHOLD"), 4*time.Hour),
		UndertimeTolerance:  parseDuration(v.GetString("ATTENDANCE_UNDERTIME_TOLERANCE"), 0),
		OpenWindowTolerance: parseDuration(v.GetString("ATTENDANCE_OPEN_WINDOW_TOLERANCE"), 2*time.Hour),
		DuplicateScanWindow: parseDuration(v.GetString("ATTENDANCE_DUPLICATE_SCAN_WINDOW"), 5*time.Minute),
		GraveyardEnd:        v.GetString("ATTENDANCE_GRAVEYARD_END"),
		GraveyardMode:       v.GetString("ATTENDANCE_GRAVEYARD_MODE"),
	}

	cfg.Points = PointsConfig{
		Tardy:                v.GetString("POINTS_TARDY"),
		Undertime:            v.GetString("POINTS_UNDERTIME"),
		UndertimeMajor:       v.GetString("POINTS_UNDERTIME_MAJOR"),
		UndertimeMajorAfter:  parseDuration(v.GetString("ATTENDANCE_UNDERTIME_MAJOR"), time.Hour),
		HalfDay:              v.GetString("POINTS_HALF_DAY"),
		WholeDay:             v.GetString("POINTS_WHOLE_DAY"),
		StandardExpiryMonths: v.GetInt("POINTS_STANDARD_EXPIRY_MONTHS"),
		WholeDayExpiryMonths: v.GetInt("POINTS_WHOLE_DAY_EXPIRY_MONTHS"),
		SummaryCacheTTL:      parseDuration(v.GetString("POINT_SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Expiration = ExpirationConfig{
		GBROWindowDays:   v.GetInt("GBRO_WINDOW_DAYS"),
		GBROBatchSize:    v.GetInt("GBRO_BATCH_SIZE"),
		SchedulerEnabled: v.GetBool("ENABLE_EXPIRATION_SCHEDULER"),
		Cron:             v.GetString("EXPIRATION_CRON"),
		LockTTL:          parseDuration(v.GetString("EXPIRATION_LOCK_TTL"), 10*time.Minute),
	}

	cfg.Retention = RetentionConfig{
		Scans: parseDuration(v.GetString("SCAN_RETENTION"), 90*24*time.Hour),
	}

	cfg.Reclassify = ReclassifyConfig{
		Workers: v.GetInt("RECLASSIFY_WORKERS"),
		Retries: v.GetInt("RECLASSIFY_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "bio_attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_TIMEZONE", "UTC")
	v.SetDefault("ATTENDANCE_HALF_DAY_THRESHOLD", "4h")
	v.SetDefault("ATTENDANCE_UNDERTIME_TOLERANCE", "0m")
	v.SetDefault("ATTENDANCE_UNDERTIME_MAJOR", "1h")
	v.SetDefault("ATTENDANCE_OPEN_WINDOW_TOLERANCE", "2h")
	v.SetDefault("ATTENDANCE_DUPLICATE_SCAN_WINDOW", "5m")
	v.SetDefault("ATTENDANCE_GRAVEYARD_END", "05:00")
	v.SetDefault("ATTENDANCE_GRAVEYARD_MODE", "time_in")

	v.SetDefault("POINTS_TARDY", "0.25")
	v.SetDefault("POINTS_UNDERTIME", "0.25")
	v.SetDefault("POINTS_UNDERTIME_MAJOR", "0.50")
	v.SetDefault("POINTS_HALF_DAY", "0.50")
	v.SetDefault("POINTS_WHOLE_DAY", "1.00")
	v.SetDefault("POINTS_STANDARD_EXPIRY_MONTHS", 6)
	v.SetDefault("POINTS_WHOLE_DAY_EXPIRY_MONTHS", 12)
	v.SetDefault("POINT_SUMMARY_CACHE_TTL", "5m")

	v.SetDefault("GBRO_WINDOW_DAYS", 60)
	v.SetDefault("GBRO_BATCH_SIZE", 2)
	v.SetDefault("ENABLE_EXPIRATION_SCHEDULER", true)
	v.SetDefault("EXPIRATION_CRON", "5 0 * * *")
	v.SetDefault("EXPIRATION_LOCK_TTL", "10m")

	v.SetDefault("SCAN_RETENTION", "2160h")
	v.SetDefault("RECLASSIFY_WORKERS", 2)
	v.SetDefault("RECLASSIFY_RETRIES", 3)
}

func isMissingFile(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
