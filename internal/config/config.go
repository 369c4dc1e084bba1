package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultDatabaseURL    = "file:confbooking.db?_pragma=busy_timeout(5000)"
	defaultJWTSecret      = "change-me-jwt-secret"
	defaultJWTTTL         = 24 * time.Hour
	defaultTimezone       = "UTC"
	defaultCompletionSpec = "0 */5 * * * *"
	defaultLockTTL        = 10 * time.Second
	defaultLockWait       = 3 * time.Second
)

type Config struct {
	AppEnv   string         `yaml:"app_env"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Booking  BookingConfig  `yaml:"booking"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	CORS     CORSConfig     `yaml:"cors"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// BookingConfig controls how booking dates are interpreted and swept.
type BookingConfig struct {
	Timezone         string `yaml:"timezone"`
	CompletionSpec   string `yaml:"completion_schedule"`
	SchedulerEnabled bool   `yaml:"scheduler_enabled"`

	location *time.Location
}

// Location is the parsed Timezone. Valid after Load.
func (b BookingConfig) Location() *time.Location {
	if b.location == nil {
		return time.UTC
	}
	return b.location
}

type RabbitMQConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
	LockWait time.Duration `yaml:"lock_wait"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		AppEnv:   "dev",
		Server:   ServerConfig{Addr: defaultHTTPAddr, ShutdownTimeout: 10 * time.Second},
		Database: DatabaseConfig{URL: defaultDatabaseURL, AutoMigrate: true},
		JWT:      JWTConfig{Secret: defaultJWTSecret, TTL: defaultJWTTTL},
		Booking: BookingConfig{
			Timezone:         defaultTimezone,
			CompletionSpec:   defaultCompletionSpec,
			SchedulerEnabled: true,
		},
		RabbitMQ: RabbitMQConfig{Timeout: 5 * time.Second},
		Redis:    RedisConfig{LockTTL: defaultLockTTL, LockWait: defaultLockWait},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then environment variables, each overriding the previous layer.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.overrideWithEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) overrideWithEnv() error {
	if v := strings.TrimSpace(getEnv("APP_ENV", os.Getenv("ENV"))); v != "" {
		c.AppEnv = strings.ToLower(v)
	}

	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("HTTP_ADDR") == "" {
		c.Server.Addr = ":" + port
	}
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.AutoMigrate = parseBoolEnv("DB_AUTO_MIGRATE", strconv.FormatBool(c.Database.AutoMigrate))
	c.JWT.Secret = strings.TrimSpace(getEnv("JWT_SECRET", c.JWT.Secret))
	c.Booking.Timezone = getEnv("BOOKING_TIMEZONE", c.Booking.Timezone)
	c.Booking.CompletionSpec = getEnv("COMPLETION_SCHEDULE", c.Booking.CompletionSpec)
	c.Booking.SchedulerEnabled = parseBoolEnv("SCHEDULER_ENABLED", strconv.FormatBool(c.Booking.SchedulerEnabled))
	c.RabbitMQ.URL = getEnv("RABBITMQ_URL", getEnv("AMQP_URL", c.RabbitMQ.URL))
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORS.Origins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORS.Origins = append(c.CORS.Origins, o)
			}
		}
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB value %q: %w", v, err)
		}
		c.Redis.DB = n
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"JWT_TTL", &c.JWT.TTL},
		{"SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout},
		{"RABBITMQ_TIMEOUT", &c.RabbitMQ.Timeout},
		{"ROOM_LOCK_TTL", &c.Redis.LockTTL},
		{"ROOM_LOCK_WAIT", &c.Redis.LockWait},
	}
	for _, d := range durations {
		v, err := parseDurationEnv(d.name, d.dst.String())
		if err != nil {
			return err
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("DATABASE_URL must not be empty")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT_TTL must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.Redis.LockTTL <= 0 {
		return errors.New("ROOM_LOCK_TTL must be > 0")
	}

	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", c.Booking.Timezone, err)
	}
	c.Booking.location = loc

	if isProdLike(c.AppEnv) && isEmptyOrDefault(c.JWT.Secret, defaultJWTSecret) {
		return errors.New("in prod/release JWT_SECRET must be set and not default")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
