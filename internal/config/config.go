package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Reservation initial status values accepted by RESERVATION_INITIAL_STATUS.
const (
	InitialStatusActive  = "active"
	InitialStatusPending = "pending"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	CORS        CORSConfig
	Auth        AuthConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Storage     StorageConfig
	Reservation ReservationConfig
	Scheduler   SchedulerConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// DSN builds the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
	)
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// RedisConfig configures the feature collection cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NATSConfig configures domain event publishing. An empty URL disables it.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// StorageConfig configures the S3 bucket that receives KYC documents.
// An empty Bucket disables uploads.
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// ReservationConfig holds the business constants of the reservation wizard.
type ReservationConfig struct {
	Fee              int64
	NextPaymentDays  int
	ExpiryDays       int
	InitialStatus    string
	WizardIdleMinute int
}

// SchedulerConfig controls the optional expiry reconciliation job.
type SchedulerConfig struct {
	ExpiryReconcileEnabled  bool
	ExpiryReconcileSchedule string
}

// RateLimitConfig controls the per-user limiter on reservation submission.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads configuration from an optional .env file and the environment.
// Values already present in the environment win over the file.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "parcela")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("FEATURE_CACHE_TTL", "5m")
	v.SetDefault("NATS_SUBJECT_PREFIX", "parcela")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_FORCE_PATH_STYLE", false)
	v.SetDefault("RESERVATION_FEE", 5000)
	v.SetDefault("RESERVATION_NEXT_PAYMENT_DAYS", 15)
	v.SetDefault("RESERVATION_EXPIRY_DAYS", 30)
	v.SetDefault("RESERVATION_INITIAL_STATUS", InitialStatusActive)
	v.SetDefault("RESERVATION_WIZARD_IDLE_MINUTES", 30)
	v.SetDefault("EXPIRY_RECONCILE_ENABLED", false)
	v.SetDefault("EXPIRY_RECONCILE_SCHEDULE", "0 */15 * * * *")
	v.SetDefault("RATE_LIMIT_RPS", 1.0)
	v.SetDefault("RATE_LIMIT_BURST", 5)

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseList(v.GetString("CORS_ORIGINS")),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			Issuer:    v.GetString("JWT_ISSUER"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("FEATURE_CACHE_TTL"),
		},
		NATS: NATSConfig{
			URL:           v.GetString("NATS_URL"),
			SubjectPrefix: v.GetString("NATS_SUBJECT_PREFIX"),
		},
		Storage: StorageConfig{
			Bucket:          v.GetString("S3_BUCKET"),
			Region:          v.GetString("S3_REGION"),
			Endpoint:        v.GetString("S3_ENDPOINT"),
			ForcePathStyle:  v.GetBool("S3_FORCE_PATH_STYLE"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			PublicBaseURL:   strings.TrimRight(v.GetString("S3_PUBLIC_BASE_URL"), "/"),
		},
		Reservation: ReservationConfig{
			Fee:              v.GetInt64("RESERVATION_FEE"),
			NextPaymentDays:  v.GetInt("RESERVATION_NEXT_PAYMENT_DAYS"),
			ExpiryDays:       v.GetInt("RESERVATION_EXPIRY_DAYS"),
			InitialStatus:    strings.ToLower(v.GetString("RESERVATION_INITIAL_STATUS")),
			WizardIdleMinute: v.GetInt("RESERVATION_WIZARD_IDLE_MINUTES"),
		},
		Scheduler: SchedulerConfig{
			ExpiryReconcileEnabled:  v.GetBool("EXPIRY_RECONCILE_ENABLED"),
			ExpiryReconcileSchedule: v.GetString("EXPIRY_RECONCILE_SCHEDULE"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate reports the first setting that is missing or out of range,
// naming it by its environment variable.
func (c *Config) Validate() error {
	for _, setting := range []struct {
		env, value string
	}{
		{"PORT", c.Server.Port},
		{"DB_HOST", c.Database.Host},
		{"DB_PORT", c.Database.Port},
		{"DB_NAME", c.Database.Name},
		{"DB_USER", c.Database.User},
		{"DB_PASSWORD", c.Database.Password},
		{"JWT_SECRET", c.Auth.JWTSecret},
	} {
		if setting.value == "" {
			return fmt.Errorf("%s is required", setting.env)
		}
	}
	if len(c.CORS.Origins) == 0 {
		return errors.New("CORS_ORIGINS is required")
	}

	rules := []struct {
		broken bool
		msg    string
	}{
		{c.Database.PoolMin < 0, "DB_POOL_MIN must be non-negative"},
		{c.Database.PoolMax < 1, "DB_POOL_MAX must be at least 1"},
		{c.Database.PoolMin > c.Database.PoolMax, "DB_POOL_MIN cannot exceed DB_POOL_MAX"},
		{c.Redis.TTL <= 0, "FEATURE_CACHE_TTL must be positive"},
		{c.Reservation.Fee < 0, "RESERVATION_FEE must be non-negative"},
		{c.Reservation.NextPaymentDays < 1, "RESERVATION_NEXT_PAYMENT_DAYS must be at least 1"},
		{c.Reservation.ExpiryDays < 1, "RESERVATION_EXPIRY_DAYS must be at least 1"},
		{
			c.Reservation.InitialStatus != InitialStatusActive && c.Reservation.InitialStatus != InitialStatusPending,
			fmt.Sprintf("RESERVATION_INITIAL_STATUS must be %q or %q", InitialStatusActive, InitialStatusPending),
		},
		{c.Reservation.WizardIdleMinute < 1, "RESERVATION_WIZARD_IDLE_MINUTES must be at least 1"},
		{
			c.Scheduler.ExpiryReconcileEnabled && c.Scheduler.ExpiryReconcileSchedule == "",
			"EXPIRY_RECONCILE_SCHEDULE is required when reconciliation is enabled",
		},
		{c.RateLimit.RPS <= 0, "RATE_LIMIT_RPS must be positive"},
		{c.RateLimit.Burst < 1, "RATE_LIMIT_BURST must be at least 1"},
	}
	for _, rule := range rules {
		if rule.broken {
			return errors.New(rule.msg)
		}
	}
	return nil
}

// loadDotEnv loads ENV_FILE (default .env) if it exists.
func loadDotEnv() error {
	path := viper.New()
	path.AutomaticEnv()
	file := path.GetString("ENV_FILE")
	if file == "" {
		file = ".env"
	}

	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", file, err)
	}
	return nil
}

// parseList splits a comma-separated setting, dropping blanks.
func parseList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
}
