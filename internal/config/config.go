package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Driver             string `mapstructure:"DB_DRIVER"`
	Host               string `mapstructure:"DB_HOST"`
	Port               int    `mapstructure:"DB_PORT"`
	User               string `mapstructure:"DB_USER"`
	Password           string `mapstructure:"DB_PASSWORD"`
	Name               string `mapstructure:"DB_NAME"`
	SSLMode            string `mapstructure:"DB_SSLMODE"`
	TimeZone           string `mapstructure:"DB_TIMEZONE"`
	MaxOpenConns       int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns       int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifeTime    int    `mapstructure:"DB_CONN_MAX_LIFETIME_MIN"` // минут
	StatementTimeoutMs int    `mapstructure:"DB_STATEMENT_TIMEOUT_MS"`
	SQLitePath         string `mapstructure:"SQLITE_PATH"`
}

type SchedulingConfig struct {
	TimeZone             string `mapstructure:"SCHEDULING_TIMEZONE"`
	ExpiryToleranceMs    int    `mapstructure:"EXPIRY_TOLERANCE_MS"`
	RetentionHours       int    `mapstructure:"APPOINTMENT_RETENTION_HOURS"`
	DefaultDurationMin   int    `mapstructure:"DEFAULT_DURATION_MIN"`
	MaxDurationMin       int    `mapstructure:"MAX_DURATION_MIN"`
	ReleaseFullFootprint bool   `mapstructure:"RELEASE_FULL_FOOTPRINT"`
}

type SweepConfig struct {
	Schedule   string `mapstructure:"SWEEP_SCHEDULE"`
	TimeoutSec int    `mapstructure:"SWEEP_TIMEOUT_SEC"`
	OnStart    bool   `mapstructure:"SWEEP_ON_START"`
	LockTTLSec int    `mapstructure:"SWEEP_LOCK_TTL_SEC"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"REDIS_ADDR"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type Config struct {
	Env            string  `mapstructure:"ENV"`
	LogLevel       string  `mapstructure:"LOG_LEVEL"`
	GRPCAddr       string  `mapstructure:"GRPC_ADDR"`
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	DB         DBConfig         `mapstructure:",squash"`
	Scheduling SchedulingConfig `mapstructure:",squash"`
	Sweep      SweepConfig      `mapstructure:",squash"`
	Redis      RedisConfig      `mapstructure:",squash"`
}

var defaults = map[string]any{
	"ENV":              "development",
	"LOG_LEVEL":        "info",
	"GRPC_ADDR":        ":50051",
	"RATE_LIMIT_RPS":   20.0,
	"RATE_LIMIT_BURST": 40,

	"DB_DRIVER":                "postgres",
	"DB_HOST":                  "postgres",
	"DB_PORT":                  5432,
	"DB_USER":                  "booking",
	"DB_PASSWORD":              "booking",
	"DB_NAME":                  "booking_db",
	"DB_SSLMODE":               "disable",
	"DB_TIMEZONE":              "UTC",
	"DB_MAX_OPEN_CONNS":        10,
	"DB_MAX_IDLE_CONNS":        5,
	"DB_CONN_MAX_LIFETIME_MIN": 30,
	"DB_STATEMENT_TIMEOUT_MS":  5000,
	"SQLITE_PATH":              "scheduling.db",

	"SCHEDULING_TIMEZONE":         "America/Santiago",
	"EXPIRY_TOLERANCE_MS":         999,
	"APPOINTMENT_RETENTION_HOURS": 7 * 24,
	"DEFAULT_DURATION_MIN":        30,
	"MAX_DURATION_MIN":            24 * 60,
	"RELEASE_FULL_FOOTPRINT":      true,

	"SWEEP_SCHEDULE":     "*/15 * * * *",
	"SWEEP_TIMEOUT_SEC":  30,
	"SWEEP_ON_START":     true,
	"SWEEP_LOCK_TTL_SEC": 300,

	"REDIS_ADDR":     "",
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,
}

// Load читает конфигурацию из config.yaml (если есть) и переменных окружения.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	switch c.DB.Driver {
	case "postgres":
		if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
			return fmt.Errorf("invalid DB config: host/user/name must not be empty")
		}
	case "sqlite":
		if c.DB.SQLitePath == "" {
			return fmt.Errorf("invalid DB config: SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("invalid DB config: unsupported driver %q", c.DB.Driver)
	}

	if c.Scheduling.TimeZone == "" {
		return fmt.Errorf("invalid scheduling config: SCHEDULING_TIMEZONE must not be empty")
	}
	// допуск должен быть меньше одного слота, иначе cutoff съест живой слот
	if c.Scheduling.ExpiryToleranceMs < 0 || c.Scheduling.ExpiryToleranceMs >= 15*60*1000 {
		return fmt.Errorf("invalid scheduling config: EXPIRY_TOLERANCE_MS out of range")
	}
	if c.Scheduling.RetentionHours <= 0 {
		return fmt.Errorf("invalid scheduling config: APPOINTMENT_RETENTION_HOURS must be positive")
	}
	if c.Scheduling.DefaultDurationMin <= 0 {
		return fmt.Errorf("invalid scheduling config: DEFAULT_DURATION_MIN must be positive")
	}
	if c.Scheduling.MaxDurationMin < c.Scheduling.DefaultDurationMin {
		return fmt.Errorf("invalid scheduling config: MAX_DURATION_MIN must not be below DEFAULT_DURATION_MIN")
	}
	if c.Sweep.Schedule == "" {
		return fmt.Errorf("invalid sweep config: SWEEP_SCHEDULE must not be empty")
	}
	return nil
}

func (c *Config) ExpiryTolerance() time.Duration {
	return time.Duration(c.Scheduling.ExpiryToleranceMs) * time.Millisecond
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Scheduling.RetentionHours) * time.Hour
}

func (c *Config) SweepTimeout() time.Duration {
	return time.Duration(c.Sweep.TimeoutSec) * time.Second
}

func (c *Config) SweepLockTTL() time.Duration {
	return time.Duration(c.Sweep.LockTTLSec) * time.Second
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
