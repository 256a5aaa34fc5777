package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"

	"taskbridge/internal/store/core"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != core.DriverDynamoDB {
		t.Fatalf("expected dynamodb default, got %s", cfg.Store.Driver)
	}
	if cfg.Handler.Timeout != 10*time.Second {
		t.Fatalf("expected 10s handler timeout, got %s", cfg.Handler.Timeout)
	}
	if cfg.Bus.Driver != BusLocal || cfg.Bus.MaxAttempts != 3 || cfg.Bus.RetryDelay != 500*time.Millisecond {
		t.Fatalf("unexpected bus defaults: %+v", cfg.Bus)
	}
	if cfg.Handler.RedeliverOnFailure {
		t.Fatalf("redelivery should be off by default")
	}
}

func TestDynamoDBRequiresTable(t *testing.T) {
	t.Setenv(EnvPrefix+"_STORE_TABLE", "")
	t.Setenv(LegacyTableEnv, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, errors.NotValid) {
		t.Fatalf("expected not valid error, got %v", err)
	}
}

func TestLegacyTableEnvFallback(t *testing.T) {
	t.Setenv(LegacyTableEnv, "todos-prod")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Table != "todos-prod" {
		t.Fatalf("expected legacy table name, got %q", cfg.Store.Table)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	t.Setenv(EnvPrefix+"_STORE_TABLE", "todos-new")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Table != "todos-new" {
		t.Fatalf("prefixed variable should win, got %q", cfg.Store.Table)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TASKBRIDGE_STORE_DRIVER", "sqlite")
	t.Setenv("TASKBRIDGE_STORE_SQLITE_PATH", "/tmp/tasks.db")
	t.Setenv("TASKBRIDGE_HANDLER_TIMEOUT", "3s")
	t.Setenv("TASKBRIDGE_BUS_MAX_ATTEMPTS", "5")
	t.Setenv("TASKBRIDGE_HANDLER_REDELIVER_ON_FAILURE", "true")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != core.DriverSQLite || cfg.Store.SQLitePath != "/tmp/tasks.db" {
		t.Fatalf("unexpected store: %+v", cfg.Store)
	}
	if cfg.Handler.Timeout != 3*time.Second || !cfg.Handler.RedeliverOnFailure {
		t.Fatalf("unexpected handler: %+v", cfg.Handler)
	}
	if cfg.Bus.MaxAttempts != 5 {
		t.Fatalf("unexpected attempts: %d", cfg.Bus.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskbridge.yaml")
	body := `store:
  driver: s3
  s3_bucket: tasks-bucket
aws:
  endpoint: http://localhost:9000
  path_style: true
metrics:
  driver: prometheus
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != core.DriverS3 || cfg.Store.S3Bucket != "tasks-bucket" || cfg.Store.S3Prefix != "tasks/" {
		t.Fatalf("unexpected store: %+v", cfg.Store)
	}
	if !cfg.AWS.PathStyle || cfg.AWS.Endpoint != "http://localhost:9000" {
		t.Fatalf("unexpected aws: %+v", cfg.AWS)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		cfg.Store.Driver = core.DriverMemory
		return cfg
	}
	cases := map[string]func(*Config){
		"store":    func(c *Config) { c.Store.Driver = "redis" },
		"bus":      func(c *Config) { c.Bus.Driver = "sqs" },
		"metrics":  func(c *Config) { c.Metrics.Driver = "statsd" },
		"trace":    func(c *Config) { c.Trace.Driver = "zipkin" },
		"attempts": func(c *Config) { c.Bus.MaxAttempts = 0 },
		"timeout":  func(c *Config) { c.Handler.Timeout = 0 },
		"postgres": func(c *Config) { c.Store.Driver = core.DriverPostgres },
		"s3":       func(c *Config) { c.Store.Driver = core.DriverS3 },
		"log":      func(c *Config) { c.Log.Level = "<root>=LOUD" },
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestYAMLRendersEffectiveConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	for _, want := range []string{"driver: dynamodb", "timeout: 10s", "max_attempts: 3"} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}
