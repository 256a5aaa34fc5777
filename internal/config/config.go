// Package config loads process configuration from defaults, an optional YAML
// file and TASKBRIDGE_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"taskbridge/internal/store/core"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "TASKBRIDGE"

// LegacyTableEnv names the table variable read by earlier deployments. It is
// consulted only when TASKBRIDGE_STORE_TABLE is unset.
const LegacyTableEnv = "DYNAMO_TABLE_NAME"

// Bus drivers.
const (
	BusLocal       = "local"
	BusEventBridge = "eventbridge"
)

// Metrics and trace drivers.
const (
	DriverNone        = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
	TraceJSON         = "json"
	TraceOTel         = "otel"
)

// Config is the effective process configuration.
type Config struct {
	Store   Store   `mapstructure:"store" yaml:"store"`
	AWS     AWS     `mapstructure:"aws" yaml:"aws"`
	Bus     Bus     `mapstructure:"bus" yaml:"bus"`
	Handler Handler `mapstructure:"handler" yaml:"handler"`
	HTTP    HTTP    `mapstructure:"http" yaml:"http"`
	Log     Log     `mapstructure:"log" yaml:"log"`
	Metrics Metrics `mapstructure:"metrics" yaml:"metrics"`
	Trace   Trace   `mapstructure:"trace" yaml:"trace"`
}

// Store selects and parameterises the record store backend.
type Store struct {
	Driver      core.Driver `mapstructure:"driver" yaml:"driver"`
	Table       string      `mapstructure:"table" yaml:"table"`
	SQLitePath  string      `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string      `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	S3Bucket    string      `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix    string      `mapstructure:"s3_prefix" yaml:"s3_prefix"`
}

// AWS holds settings shared by every AWS-backed component.
type AWS struct {
	Region    string `mapstructure:"region" yaml:"region"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	PathStyle bool   `mapstructure:"path_style" yaml:"path_style"`
}

// Bus configures event transport.
type Bus struct {
	Driver       string        `mapstructure:"driver" yaml:"driver"`
	EventBusName string        `mapstructure:"event_bus_name" yaml:"event_bus_name"`
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	QueueSize    int           `mapstructure:"queue_size" yaml:"queue_size"`
}

// Handler configures mutation handling.
type Handler struct {
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RedeliverOnFailure bool          `mapstructure:"redeliver_on_failure" yaml:"redeliver_on_failure"`
}

// HTTP configures the ingress listener.
type HTTP struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Log holds a loggo configuration string such as "<root>=INFO;taskbridge.router=DEBUG".
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Metrics selects the metrics recorder.
type Metrics struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
}

// Trace selects the tracer. With the otel driver an empty OTLPEndpoint uses
// the process-global tracer provider.
type Trace struct {
	Driver       string `mapstructure:"driver" yaml:"driver"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure" yaml:"insecure"`
}

var defaults = map[string]any{
	"store.driver":                 string(core.DriverDynamoDB),
	"store.table":                  "",
	"store.sqlite_path":            "taskbridge.db",
	"store.postgres_dsn":           "",
	"store.s3_bucket":              "",
	"store.s3_prefix":              "tasks/",
	"aws.region":                   "us-east-1",
	"aws.endpoint":                 "",
	"aws.path_style":               false,
	"bus.driver":                   BusLocal,
	"bus.event_bus_name":           "default",
	"bus.max_attempts":             3,
	"bus.retry_delay":              "500ms",
	"bus.queue_size":               64,
	"handler.timeout":              "10s",
	"handler.redeliver_on_failure": false,
	"http.addr":                    ":8080",
	"log.level":                    "<root>=INFO",
	"metrics.driver":               DriverNone,
	"trace.driver":                 DriverNone,
	"trace.otlp_endpoint":          "",
	"trace.insecure":               false,
}

// Load resolves configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("store.table", EnvPrefix+"_STORE_TABLE", LegacyTableEnv); err != nil {
		return Config{}, errors.Trace(err)
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Annotatef(err, "read config %s", path)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Annotate(err, "decode config")
	}
	return cfg, nil
}

// Validate checks driver-specific requirements.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case core.DriverMemory:
	case core.DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.NotValidf("empty store.sqlite_path")
		}
	case core.DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.NotValidf("empty store.postgres_dsn")
		}
	case core.DriverDynamoDB:
		if c.Store.Table == "" {
			return errors.NotValidf("empty store.table (set %s_STORE_TABLE or %s)", EnvPrefix, LegacyTableEnv)
		}
	case core.DriverS3:
		if c.Store.S3Bucket == "" {
			return errors.NotValidf("empty store.s3_bucket")
		}
	default:
		return errors.NotValidf("store.driver %q", c.Store.Driver)
	}
	switch c.Bus.Driver {
	case BusLocal:
	case BusEventBridge:
		if c.Bus.EventBusName == "" {
			return errors.NotValidf("empty bus.event_bus_name")
		}
	default:
		return errors.NotValidf("bus.driver %q", c.Bus.Driver)
	}
	if c.Bus.MaxAttempts < 1 {
		return errors.NotValidf("bus.max_attempts %d", c.Bus.MaxAttempts)
	}
	if c.Bus.QueueSize < 1 {
		return errors.NotValidf("bus.queue_size %d", c.Bus.QueueSize)
	}
	if c.Bus.RetryDelay <= 0 {
		return errors.NotValidf("bus.retry_delay %s", c.Bus.RetryDelay)
	}
	if c.Handler.Timeout <= 0 {
		return errors.NotValidf("handler.timeout %s", c.Handler.Timeout)
	}
	switch c.Metrics.Driver {
	case DriverNone, MetricsExpvar, MetricsPrometheus:
	default:
		return errors.NotValidf("metrics.driver %q", c.Metrics.Driver)
	}
	switch c.Trace.Driver {
	case DriverNone, TraceJSON, TraceOTel:
	default:
		return errors.NotValidf("trace.driver %q", c.Trace.Driver)
	}
	if _, err := loggo.ParseConfigString(c.Log.Level); err != nil {
		return errors.NewNotValid(err, "log.level")
	}
	return nil
}

// YAML renders the configuration in the same shape Load accepts.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	return out, errors.Trace(err)
}
