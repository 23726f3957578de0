package config

import (
	"errors"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type KeepaliveConfig struct {
	IntervalHours float64 `mapstructure:"interval_hours"`
	CronSecret    string  `mapstructure:"cron_secret"`
	PingTimeout   string  `mapstructure:"ping_timeout"`
	PingPath      string  `mapstructure:"ping_path"`
	URLPattern    string  `mapstructure:"url_pattern"`
	RunOnStart    bool    `mapstructure:"run_on_start"`
	TriggerRPS    float64 `mapstructure:"trigger_rps"`
	TriggerBurst  int     `mapstructure:"trigger_burst"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type EventsConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Channel       string `mapstructure:"channel"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Keepalive KeepaliveConfig `mapstructure:"keepalive"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Events    EventsConfig    `mapstructure:"events"`
}

// MaxIntervalHours caps the cadence at one year.
const MaxIntervalHours = 24 * 365

// Interval returns the keepalive cadence.
func (k KeepaliveConfig) Interval() time.Duration {
	return time.Duration(k.IntervalHours * float64(time.Hour))
}

// Timeout returns the per-ping deadline. Load has already validated it.
func (k KeepaliveConfig) Timeout() time.Duration {
	d, _ := time.ParseDuration(k.PingTimeout)
	return d
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("keepalive.interval_hours", 6)
	v.SetDefault("keepalive.cron_secret", "")
	v.SetDefault("keepalive.ping_timeout", "10s")
	v.SetDefault("keepalive.ping_path", "/rest/v1/")
	v.SetDefault("keepalive.url_pattern", `^https://[a-z0-9]{20}\.supabase\.co/?$`)
	v.SetDefault("keepalive.run_on_start", false)
	v.SetDefault("keepalive.trigger_rps", 0.2)
	v.SetDefault("keepalive.trigger_burst", 3)
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.dsn", "keepalive.db")
	v.SetDefault("events.redis_addr", "")
	v.SetDefault("events.redis_password", "")
	v.SetDefault("events.redis_db", 0)
	v.SetDefault("events.channel", "keepalive:cycles")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Names used by the hosting platform's cron integration.
	if err := v.BindEnv("keepalive.cron_secret", "KEEPALIVE_CRON_SECRET", "CRON_SECRET"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("storage.dsn", "STORAGE_DSN", "DATABASE_URL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	if cfg.Keepalive.CronSecret == "" {
		slog.Warn("no cron secret configured, external keepalive triggers will be rejected")
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.AllowedOrigins,
						validation.Each(validation.Required),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Keepalive,
			validation.Required,
			validation.By(func(value interface{}) error {
				kc, ok := value.(KeepaliveConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a KeepaliveConfig")
				}
				return validation.ValidateStruct(&kc,
					validation.Field(&kc.IntervalHours,
						validation.Required,
						validation.Min(0.0).Exclusive(),
						validation.Max(float64(MaxIntervalHours)),
					),
					validation.Field(&kc.PingTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&kc.URLPattern,
						validation.Required,
						validation.By(validateRegexp),
					),
					validation.Field(&kc.TriggerRPS,
						validation.Required,
						validation.Min(0.0).Exclusive(),
					),
					validation.Field(&kc.TriggerBurst,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Storage,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StorageConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StorageConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Driver,
						validation.Required,
						validation.In(DriverSQLite, DriverPostgres, DriverMemory),
					),
					validation.Field(&sc.DSN,
						validation.When(sc.Driver != DriverMemory, validation.Required),
					),
				)
			}),
		),
		validation.Field(&c.Events,
			validation.By(func(value interface{}) error {
				ec, ok := value.(EventsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an EventsConfig")
				}
				return validation.ValidateStruct(&ec,
					validation.Field(&ec.RedisAddr, validation.By(validateHostPort)),
					validation.Field(&ec.Channel, validation.When(ec.RedisAddr != "", validation.Required)),
					validation.Field(&ec.RedisDB, validation.Min(0)),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if addr == "" {
		return nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

func validateRegexp(value interface{}) error {
	pattern, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := regexp.Compile(pattern); err != nil {
		return validation.NewError("validation_invalid_pattern", "must be a valid regular expression")
	}

	return nil
}
