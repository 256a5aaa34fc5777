package local

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"taskbridge/internal/bus"
	"taskbridge/pkg/domain"
)

const (
	retryDelay = time.Second
	longWait   = 5 * time.Second
)

type outcome struct {
	env domain.Envelope
	res domain.Result
}

// scriptedDeliverer fails the first failures calls for each envelope.
type scriptedDeliverer struct {
	mu       sync.Mutex
	failures int
	calls    map[string]int
	order    []string
	called   chan string
}

func newScriptedDeliverer(failures int) *scriptedDeliverer {
	return &scriptedDeliverer{failures: failures, calls: make(map[string]int), called: make(chan string, 100)}
}

func (d *scriptedDeliverer) Deliver(_ context.Context, env domain.Envelope) domain.Result {
	d.mu.Lock()
	d.calls[env.ID]++
	n := d.calls[env.ID]
	d.order = append(d.order, env.ID)
	d.mu.Unlock()
	d.called <- env.ID
	if d.failures < 0 || n <= d.failures {
		return domain.Result{Status: domain.StatusFailed, EventID: env.ID, Err: errors.New("store unavailable")}
	}
	return domain.Result{Status: domain.StatusApplied, EventID: env.ID}
}

func (d *scriptedDeliverer) count(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[id]
}

func newTestBus(t *testing.T, d bus.Deliverer, clk *testclock.Clock, attempts, queue int) (*Bus, chan outcome, *loggo.TestWriter) {
	t.Helper()
	logCtx := loggo.NewContext(loggo.TRACE)
	var tw loggo.TestWriter
	if err := logCtx.AddWriter("test", &tw); err != nil {
		t.Fatalf("add writer: %v", err)
	}
	results := make(chan outcome, 100)
	b, err := New(Config{
		Deliverer:   d,
		Clock:       clk,
		Logger:      logCtx.GetLogger("taskbridge.bus.local"),
		MaxAttempts: attempts,
		RetryDelay:  retryDelay,
		QueueSize:   queue,
		OnResult:    func(env domain.Envelope, res domain.Result) { results <- outcome{env: env, res: res} },
	})
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	t.Cleanup(func() {
		b.Kill()
		_ = b.Wait()
	})
	return b, results, &tw
}

func waitOutcome(t *testing.T, results <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-results:
		return o
	case <-time.After(longWait):
		t.Fatalf("timed out waiting for delivery result")
	}
	return outcome{}
}

func waitCall(t *testing.T, d *scriptedDeliverer) {
	t.Helper()
	select {
	case <-d.called:
	case <-time.After(longWait):
		t.Fatalf("timed out waiting for delivery attempt")
	}
}

func envelope(id string) domain.Envelope {
	return domain.Envelope{ID: id, Source: domain.Source, Type: domain.KindCreate, Detail: domain.Create{Task: id}}
}

func TestDeliversInPublishOrder(t *testing.T) {
	d := newScriptedDeliverer(0)
	b, results, _ := newTestBus(t, d, testclock.NewClock(time.Now()), 3, 8)
	for _, id := range []string{"e1", "e2", "e3"} {
		if err := b.Publish(context.Background(), envelope(id)); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}
	for _, id := range []string{"e1", "e2", "e3"} {
		o := waitOutcome(t, results)
		if o.env.ID != id || o.res.Status != domain.StatusApplied {
			t.Fatalf("expected applied %s, got %+v", id, o)
		}
	}
}

func TestRedeliversFailedResult(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	d := newScriptedDeliverer(2)
	b, results, tw := newTestBus(t, d, clk, 3, 8)
	if err := b.Publish(context.Background(), envelope("e1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	for i := 0; i < 2; i++ {
		waitCall(t, d)
		if err := clk.WaitAdvance(retryDelay, longWait, 1); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	o := waitOutcome(t, results)
	if o.res.Status != domain.StatusApplied {
		t.Fatalf("expected eventual success, got %+v", o.res)
	}
	if n := d.count("e1"); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
	var warnings int
	for _, entry := range tw.Log() {
		if entry.Level == loggo.WARNING && strings.Contains(entry.Message, "delivery attempt") {
			warnings++
		}
	}
	if warnings != 2 {
		t.Fatalf("expected 2 retry warnings, got %d", warnings)
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	d := newScriptedDeliverer(-1)
	b, results, tw := newTestBus(t, d, clk, 2, 8)
	if err := b.Publish(context.Background(), envelope("e1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitCall(t, d)
	if err := clk.WaitAdvance(retryDelay, longWait, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	o := waitOutcome(t, results)
	if !o.res.Failed() {
		t.Fatalf("expected failed result, got %+v", o.res)
	}
	if n := d.count("e1"); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
	var gaveUp bool
	for _, entry := range tw.Log() {
		if entry.Level == loggo.ERROR && strings.Contains(entry.Message, "giving up on event e1") {
			gaveUp = true
		}
	}
	if !gaveUp {
		t.Fatalf("expected give-up error log, got %+v", tw.Log())
	}
}

func TestKillStopsRedelivery(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	d := newScriptedDeliverer(-1)
	b, results, _ := newTestBus(t, d, clk, 5, 8)
	if err := b.Publish(context.Background(), envelope("e1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitCall(t, d)
	b.Kill()
	if err := b.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	o := waitOutcome(t, results)
	if !o.res.Failed() {
		t.Fatalf("expected last failed result, got %+v", o.res)
	}
	if n := d.count("e1"); n != 1 {
		t.Fatalf("expected a single attempt before stop, got %d", n)
	}
	if err := b.Publish(context.Background(), envelope("e2")); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestPublishHonoursContextWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	d := bus.DelivererFunc(func(ctx context.Context, env domain.Envelope) domain.Result {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return domain.Result{Status: domain.StatusApplied, EventID: env.ID}
	})
	b, _, _ := newTestBus(t, d, testclock.NewClock(time.Now()), 1, 1)
	defer close(release)

	if err := b.Publish(context.Background(), envelope("e1")); err != nil {
		t.Fatalf("publish e1: %v", err)
	}
	select {
	case <-started:
	case <-time.After(longWait):
		t.Fatalf("worker never picked up e1")
	}
	if err := b.Publish(context.Background(), envelope("e2")); err != nil {
		t.Fatalf("publish e2: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := b.Publish(ctx, envelope("e3")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Deliverer:   newScriptedDeliverer(0),
		Clock:       testclock.NewClock(time.Now()),
		MaxAttempts: 1,
		RetryDelay:  time.Millisecond,
		QueueSize:   1,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cases := map[string]func(*Config){
		"deliverer": func(c *Config) { c.Deliverer = nil },
		"clock":     func(c *Config) { c.Clock = nil },
		"attempts":  func(c *Config) { c.MaxAttempts = 0 },
		"delay":     func(c *Config) { c.RetryDelay = 0 },
		"queue":     func(c *Config) { c.QueueSize = 0 },
	}
	for name, mutate := range cases {
		cfg := valid
		mutate(&cfg)
		if _, err := New(cfg); !errors.Is(err, errors.NotValid) {
			t.Fatalf("%s: expected not valid, got %v", name, err)
		}
	}
}
