package observability

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"taskbridge/pkg/domain"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes per-operation duration totals, result
// counters and outcome counters via expvar.
type ExpvarMetricsRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
	outcomes  map[string]map[domain.Status]int64
	noops     int64
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64                 `json:"durations_ms_total"`
	Results     map[string]map[string]int64        `json:"results_total"`
	Outcomes    map[string]map[domain.Status]int64 `json:"outcomes_total"`
	// Noops counts deletes that targeted an absent record, typically
	// redeliveries of an already applied delete.
	Noops      int64     `json:"noops_total"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name. An empty name
// gets a unique generated one, since expvar panics on duplicate names.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("taskbridge_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
		outcomes:  make(map[string]map[domain.Status]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot returns a copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, counts := range r.results {
		cpy := make(map[string]int64, len(counts))
		for status, n := range counts {
			cpy[status] = n
		}
		results[op] = cpy
	}
	outcomes := make(map[string]map[domain.Status]int64, len(r.outcomes))
	for op, counts := range r.outcomes {
		cpy := make(map[domain.Status]int64, len(counts))
		for status, n := range counts {
			cpy[status] = n
		}
		outcomes[op] = cpy
	}
	return ExpvarMetricsSnapshot{
		DurationsMS: durations,
		Results:     results,
		Outcomes:    outcomes,
		Noops:       r.noops,
		RecordedAt:  time.Now().UTC(),
	}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[operation] += float64(duration) / float64(time.Millisecond)
	if _, ok := r.results[operation]; !ok {
		r.results[operation] = make(map[string]int64, 2)
	}
	r.results[operation][resultLabel(success)]++
}

// ObserveOutcome implements OutcomeRecorder.
func (r *ExpvarMetricsRecorder) ObserveOutcome(_ context.Context, operation string, status domain.Status) {
	if operation == "" || status == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outcomes[operation]; !ok {
		r.outcomes[operation] = make(map[domain.Status]int64, 2)
	}
	r.outcomes[operation][status]++
	if status == domain.StatusNoop {
		r.noops++
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
