package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"taskbridge/internal/app"
	"taskbridge/internal/config"
	"taskbridge/pkg/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func sqliteEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.db")
	t.Setenv("TASKBRIDGE_STORE_DRIVER", "sqlite")
	t.Setenv("TASKBRIDGE_STORE_SQLITE_PATH", path)
	return path
}

func seed(t *testing.T, tasks ...string) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close(context.Background())
	for _, task := range tasks {
		env, err := a.Pipeline.Build(domain.KindCreate, map[string]any{"task": task})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if res := a.Pipeline.Deliver(context.Background(), env); res.Failed() {
			t.Fatalf("deliver: %+v", res)
		}
	}
}

func TestTasksCommandRendersTable(t *testing.T) {
	sqliteEnv(t)
	seed(t, "buy milk", "walk dog")
	out, err := run(t, "tasks")
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	for _, want := range []string{"ID", "TASK", "buy milk", "walk dog", "TOTAL"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestTasksCommandJSON(t *testing.T) {
	sqliteEnv(t)
	seed(t, "buy milk")
	out, err := run(t, "tasks", "--json")
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	var recs []domain.Record
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(recs) != 1 || recs[0].Task != "buy milk" || recs[0].Done {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("TASKBRIDGE_STORE_DRIVER", "memory")
	out, err := run(t, "config", "--validate")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "driver: memory") {
		t.Fatalf("expected effective driver in output:\n%s", out)
	}

	t.Setenv("TASKBRIDGE_STORE_DRIVER", "dynamodb")
	t.Setenv("TASKBRIDGE_STORE_TABLE", "")
	t.Setenv("DYNAMO_TABLE_NAME", "")
	if _, err := run(t, "config", "--validate"); err == nil {
		t.Fatalf("expected validation failure without a table")
	}
}

func TestLambdaCommandStartsHandler(t *testing.T) {
	sqliteEnv(t)
	var started any
	orig := lambdaStart
	lambdaStart = func(handler any) { started = handler }
	defer func() { lambdaStart = orig }()

	if _, err := run(t, "lambda"); err != nil {
		t.Fatalf("lambda: %v", err)
	}
	if _, ok := started.(func(context.Context, events.EventBridgeEvent) error); !ok {
		t.Fatalf("expected EventBridge handler, got %T", started)
	}
}

func TestUnknownConfigFileFails(t *testing.T) {
	if _, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "config"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
