// Package config loads LifeSync settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	// RedisAddr selects the Redis key-value backend; empty keeps KV data in SQLite.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	VAPIDPublicKey  string
	VAPIDPrivateKey string

	WebhookTimeout        time.Duration
	AutomationConcurrency int
	AutomationScheduler   bool

	// RateLimit is the number of requests allowed per key per minute.
	RateLimit int

	// KVSweepInterval controls how often expired SQLite KV rows are purged.
	KVSweepInterval time.Duration

	// Location is the wall clock for achievements and automation schedules.
	Location *time.Location
}

// PushEnabled reports whether both VAPID keys are configured.
func (c Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// Load reads an optional .env file and then the LIFESYNC_* variables.
// Variables already present in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset values.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:            envOr(getenv, "LIFESYNC_PORT", "8080"),
		DBPath:          envOr(getenv, "LIFESYNC_DB_PATH", "lifesync.db"),
		LogLevel:        envOr(getenv, "LIFESYNC_LOG_LEVEL", "info"),
		LogFormat:       envOr(getenv, "LIFESYNC_LOG_FORMAT", "text"),
		RedisAddr:       getenv("LIFESYNC_REDIS_ADDR"),
		RedisPassword:   getenv("LIFESYNC_REDIS_PASSWORD"),
		VAPIDPublicKey:  getenv("LIFESYNC_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: getenv("LIFESYNC_VAPID_PRIVATE_KEY"),
		Location:        time.Local,
	}

	var errs []error
	var err error
	if cfg.RedisDB, err = intOr(getenv, "LIFESYNC_REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.WebhookTimeout, err = durationOr(getenv, "LIFESYNC_WEBHOOK_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.AutomationConcurrency, err = intOr(getenv, "LIFESYNC_AUTOMATION_CONCURRENCY", 4); err != nil {
		errs = append(errs, err)
	}
	if cfg.AutomationScheduler, err = boolOr(getenv, "LIFESYNC_AUTOMATION_SCHEDULER", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateLimit, err = intOr(getenv, "LIFESYNC_RATE_LIMIT", 120); err != nil {
		errs = append(errs, err)
	}
	if cfg.KVSweepInterval, err = durationOr(getenv, "LIFESYNC_KV_SWEEP_INTERVAL", time.Minute); err != nil {
		errs = append(errs, err)
	}
	if tz := getenv("LIFESYNC_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			errs = append(errs, fmt.Errorf("LIFESYNC_TIMEZONE: %w", err))
		} else {
			cfg.Location = loc
		}
	}

	if cfg.WebhookTimeout <= 0 {
		errs = append(errs, errors.New("LIFESYNC_WEBHOOK_TIMEOUT must be positive"))
	}
	if cfg.AutomationConcurrency < 1 {
		errs = append(errs, errors.New("LIFESYNC_AUTOMATION_CONCURRENCY must be at least 1"))
	}
	if cfg.RateLimit < 1 {
		errs = append(errs, errors.New("LIFESYNC_RATE_LIMIT must be at least 1"))
	}
	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("LIFESYNC_VAPID_PUBLIC_KEY and LIFESYNC_VAPID_PRIVATE_KEY must be set together"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func intOr(getenv func(string) string, key string, def int) (int, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func boolOr(getenv func(string) string, key string, def bool) (bool, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func durationOr(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
