package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strconv"
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
	DefaultPort          = 3000
	DefaultTarget        = "https://www.google.com"
	DefaultInterval      = "10s"
	DefaultTimeout       = "8s"
	DefaultSlowThreshold = "1500ms"
	DefaultTimeFormat    = "3:04:05 PM"
	DefaultQueueSize     = 16
)

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type ProbeConfig struct {
	Target        string `mapstructure:"target"`
	Interval      string `mapstructure:"interval"`
	Timeout       string `mapstructure:"timeout"`
	SlowThreshold string `mapstructure:"slow_threshold"`
	TimeFormat    string `mapstructure:"time_format"`
}

// IntervalDuration returns the parsed cycle interval. Call Validate first.
func (p ProbeConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(p.Interval)
	return d
}

// TimeoutDuration returns the parsed per-attempt timeout. Call Validate first.
func (p ProbeConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(p.Timeout)
	return d
}

// SlowThresholdDuration returns the parsed high-latency threshold. Call
// Validate first.
func (p ProbeConfig) SlowThresholdDuration() time.Duration {
	d, _ := time.ParseDuration(p.SlowThreshold)
	return d
}

type BroadcastConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Load reads configuration from configFile, or from config.yaml in ./config
// or the working directory when configFile is empty. A missing default file
// is not an error; a missing explicit file is.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("probe.target", DefaultTarget)
	v.SetDefault("probe.interval", DefaultInterval)
	v.SetDefault("probe.timeout", DefaultTimeout)
	v.SetDefault("probe.slow_threshold", DefaultSlowThreshold)
	v.SetDefault("probe.time_format", DefaultTimeFormat)
	v.SetDefault("broadcast.queue_size", DefaultQueueSize)
	v.SetDefault("logging.level", LogLevelInfo)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
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
					validation.Field(&sc.Host,
						is.Host,
					),
					validation.Field(&sc.Port,
						validation.Required,
						validation.Min(1),
						validation.Max(65535),
					),
				)
			}),
		),
		validation.Field(&c.Probe,
			validation.Required,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProbeConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProbeConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.Target,
						validation.Required,
						validation.By(validateTargetURL),
					),
					validation.Field(&pc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&pc.Timeout,
						validation.Required,
						validation.By(validateDuration),
						validation.By(timeoutBelowInterval(pc.Interval)),
					),
					validation.Field(&pc.SlowThreshold,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&pc.TimeFormat,
						validation.Required,
					),
				)
			}),
		),
		validation.Field(&c.Broadcast,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BroadcastConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BroadcastConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.QueueSize,
						validation.Required,
						validation.Min(1),
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
	)
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
		return validation.NewError("validation_non_positive_duration", "must be greater than zero")
	}

	return nil
}

// timeoutBelowInterval keeps every probe shorter than the cycle interval so
// that, with a valid config, no tick is ever skipped.
func timeoutBelowInterval(interval string) validation.RuleFunc {
	return func(value interface{}) error {
		timeoutStr, ok := value.(string)
		if !ok {
			return validation.NewError("validation_invalid_type", "must be a string")
		}

		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil
		}
		every, err := time.ParseDuration(interval)
		if err != nil {
			return nil
		}

		if timeout >= every {
			return validation.NewError("validation_timeout_exceeds_interval", "must be shorter than the probe interval")
		}

		return nil
	}
}

func validateTargetURL(value interface{}) error {
	target, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if target == "" {
		return validation.NewError("validation_empty_url", "target URL cannot be empty")
	}

	parsedURL, err := url.Parse(target)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
