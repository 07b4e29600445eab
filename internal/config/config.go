package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultAppName         = "BlueMind Members"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultBackend         = BackendMemory
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultMaxAttempts     = 5
	defaultBaseBackoff     = 20 * time.Millisecond
	defaultMaxBackoff      = 500 * time.Millisecond
	defaultOverdueSchedule = "0 2 * * *"
	defaultReconcileSched  = "30 2 * * *"
	defaultNotifyChannel   = "bluemind:notifications"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	configFileEnvVar       = "CONFIG_FILE"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// LedgerConfig tunes transaction retries and balance floors.
type LedgerConfig struct {
	MaxAttempts                int           `yaml:"max_attempts"`
	BaseBackoff                time.Duration `yaml:"base_backoff"`
	MaxBackoff                 time.Duration `yaml:"max_backoff"`
	AllowNegativeMemberBalance bool          `yaml:"allow_negative_member_balance"`
	AllowNegativeClubBalance   bool          `yaml:"allow_negative_club_balance"`
}

// ClubConfig is the bank account members pay into.
type ClubConfig struct {
	Name string `yaml:"name"`
	IBAN string `yaml:"iban"`
	BIC  string `yaml:"bic"`
}

// JobsConfig holds cron schedules for background jobs. An empty schedule
// disables the job.
type JobsConfig struct {
	OverdueSweepSchedule string `yaml:"overdue_sweep_schedule"`
	ReconcileSchedule    string `yaml:"reconcile_schedule"`
}

// Config captures application runtime configuration. Values come from an
// optional YAML file named by CONFIG_FILE, then from the environment (a .env
// file is loaded first when present).
type Config struct {
	AppName                 string        `yaml:"app_name"`
	AppEnv                  string        `yaml:"app_env"`
	Port                    string        `yaml:"port"`
	LogLevel                string        `yaml:"log_level"`
	LogFormat               string        `yaml:"log_format"`
	StoreBackend            string        `yaml:"store_backend"`
	DatabaseURL             string        `yaml:"database_url"`
	RedisURL                string        `yaml:"redis_url"`
	FirebaseProjectID       string        `yaml:"firebase_project_id"`
	FirebaseCredentialsFile string        `yaml:"firebase_credentials_file"`
	JWTSecret               string        `yaml:"jwt_secret"`
	JWTIssuer               string        `yaml:"jwt_issuer"`
	NotificationChannel     string        `yaml:"notification_channel"`
	ShutdownPeriod          time.Duration `yaml:"shutdown_timeout"`
	IdempotencyTTL          time.Duration `yaml:"idempotency_ttl"`
	Ledger                  LedgerConfig  `yaml:"ledger"`
	Club                    ClubConfig    `yaml:"club"`
	Jobs                    JobsConfig    `yaml:"jobs"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		AppName:             defaultAppName,
		AppEnv:              defaultAppEnv,
		Port:                defaultPort,
		LogLevel:            defaultLogLevel,
		LogFormat:           defaultLogFormat,
		StoreBackend:        defaultBackend,
		NotificationChannel: defaultNotifyChannel,
		ShutdownPeriod:      defaultShutdownDelay,
		IdempotencyTTL:      defaultIdempotencyTTL,
		Ledger: LedgerConfig{
			MaxAttempts:                defaultMaxAttempts,
			BaseBackoff:                defaultBaseBackoff,
			MaxBackoff:                 defaultMaxBackoff,
			AllowNegativeMemberBalance: true,
			AllowNegativeClubBalance:   true,
		},
		Jobs: JobsConfig{
			OverdueSweepSchedule: defaultOverdueSchedule,
			ReconcileSchedule:    defaultReconcileSched,
		},
	}
}

// Load reads configuration values and validates them.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv(configFileEnvVar); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.overrideWithEnv(); err != nil {
		return Config{}, err
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) overrideWithEnv() error {
	setString(&c.AppName, "APP_NAME")
	setString(&c.AppEnv, "APP_ENV")
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.StoreBackend, "STORE_BACKEND")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.FirebaseProjectID, "FIREBASE_PROJECT_ID")
	setString(&c.FirebaseCredentialsFile, "FIREBASE_CREDENTIALS_FILE")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.JWTIssuer, "JWT_ISSUER")
	setString(&c.NotificationChannel, "NOTIFICATION_CHANNEL")
	setString(&c.Club.Name, "CLUB_NAME")
	setString(&c.Club.IBAN, "CLUB_IBAN")
	setString(&c.Club.BIC, "CLUB_BIC")
	setString(&c.Jobs.OverdueSweepSchedule, "OVERDUE_SWEEP_SCHEDULE")
	setString(&c.Jobs.ReconcileSchedule, "RECONCILE_SCHEDULE")

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		c.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if err := setDuration(&c.ShutdownPeriod, shutdownDurationEnvVar); err != nil {
		return err
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		c.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if err := setDuration(&c.IdempotencyTTL, idemTTLDurEnvVar); err != nil {
		return err
	}

	if v := os.Getenv("LEDGER_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_MAX_ATTEMPTS: %w", err)
		}
		c.Ledger.MaxAttempts = n
	}
	if err := setDuration(&c.Ledger.BaseBackoff, "LEDGER_BASE_BACKOFF"); err != nil {
		return err
	}
	if err := setDuration(&c.Ledger.MaxBackoff, "LEDGER_MAX_BACKOFF"); err != nil {
		return err
	}
	if err := setBool(&c.Ledger.AllowNegativeMemberBalance, "LEDGER_ALLOW_NEGATIVE_MEMBER_BALANCE"); err != nil {
		return err
	}
	return setBool(&c.Ledger.AllowNegativeClubBalance, "LEDGER_ALLOW_NEGATIVE_CLUB_BALANCE")
}

// Validate checks the combination of settings.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
		if !c.IsDev() {
			return fmt.Errorf("STORE_BACKEND=memory is only allowed in development, APP_ENV=%s", c.AppEnv)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres backend")
		}
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID must be set for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if !c.IsDev() && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be at least 1")
	}
	if c.Ledger.BaseBackoff < 0 || c.Ledger.MaxBackoff < c.Ledger.BaseBackoff {
		return fmt.Errorf("ledger backoff must satisfy 0 <= base <= max")
	}
	return nil
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}
