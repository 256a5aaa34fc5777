// Package app assembles the store, observability hooks, pipeline and
// transport described by a config.Config.
package app

import (
	"context"
	"expvar"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"taskbridge/internal/bus"
	"taskbridge/internal/bus/eventbridge"
	"taskbridge/internal/bus/local"
	"taskbridge/internal/config"
	"taskbridge/internal/infra/awsutil"
	"taskbridge/internal/ingress"
	"taskbridge/internal/mutation"
	"taskbridge/internal/observability"
	"taskbridge/internal/pipeline"
	"taskbridge/internal/store"
	"taskbridge/pkg/domain"
)

var logger = loggo.GetLogger("taskbridge.app")

// Option configures App construction.
type Option func(*options)

type options struct {
	store       store.Store
	traceWriter io.Writer
	clock       clock.Clock
	eventbridge eventbridge.API
}

// WithStore uses s instead of opening the configured backend.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithTraceWriter sets the destination of the json tracer. Defaults to stderr.
func WithTraceWriter(w io.Writer) Option {
	return func(o *options) { o.traceWriter = w }
}

// WithClock replaces the wall clock for the bus and handler.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithEventBridgeClient uses client instead of building one from AWS config.
func WithEventBridgeClient(client eventbridge.API) Option {
	return func(o *options) { o.eventbridge = client }
}

// App holds the long-lived components of one process.
type App struct {
	Config   config.Config
	Pipeline *pipeline.Pipeline
	Metrics  observability.MetricsRecorder
	Tracer   observability.Tracer
	// Registry is set when metrics.driver is prometheus.
	Registry *prometheus.Registry

	opts    options
	closers []func(context.Context) error
}

// New validates cfg and builds the pipeline.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	o := options{traceWriter: os.Stderr, clock: clock.WallClock}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, opts: o}

	if err := a.setupMetrics(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := a.setupTracer(ctx); err != nil {
		return nil, errors.Trace(err)
	}

	s := o.store
	if s == nil {
		var err error
		if s, err = store.Open(ctx, cfg.Store, cfg.AWS); err != nil {
			_ = a.Close(ctx)
			return nil, errors.Trace(err)
		}
	}
	a.closers = append(a.closers, func(context.Context) error { return s.Close() })

	p, err := pipeline.New(s, pipeline.WithHandlerOptions(
		mutation.WithMetricsRecorder(a.Metrics),
		mutation.WithTracer(a.Tracer),
		mutation.WithTimeout(cfg.Handler.Timeout),
		mutation.WithClock(o.clock),
	))
	if err != nil {
		_ = a.Close(ctx)
		return nil, errors.Trace(err)
	}
	a.Pipeline = p
	logger.Infof("store %s ready, bus %s", s.Driver(), cfg.Bus.Driver)
	return a, nil
}

func (a *App) setupMetrics() error {
	switch a.Config.Metrics.Driver {
	case config.MetricsExpvar:
		a.Metrics = observability.NewExpvarMetricsRecorder("")
	case config.MetricsPrometheus:
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec, err := observability.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return err
		}
		a.Metrics, a.Registry = rec, reg
	default:
		a.Metrics = observability.NoopMetrics{}
	}
	return nil
}

func (a *App) setupTracer(ctx context.Context) error {
	switch a.Config.Trace.Driver {
	case config.TraceJSON:
		a.Tracer = observability.NewJSONTracer(a.opts.traceWriter, a.opts.clock)
	case config.TraceOTel:
		if a.Config.Trace.OTLPEndpoint == "" {
			a.Tracer = observability.NewOTelTracer(otel.GetTracerProvider())
			return nil
		}
		tp, err := observability.NewOTLPTracerProvider(ctx, a.Config.Trace.OTLPEndpoint, a.Config.Trace.Insecure)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, tp.Shutdown)
		a.Tracer = observability.NewOTelTracer(tp)
	default:
		a.Tracer = observability.NoopTracer{}
	}
	return nil
}

// Publisher builds the configured transport. The returned stop function
// stops a local bus worker and waits for it; envelopes still queued are
// discarded.
func (a *App) Publisher(ctx context.Context) (bus.Publisher, func() error, error) {
	switch a.Config.Bus.Driver {
	case config.BusEventBridge:
		cfg := eventbridge.Config{
			BusName:     a.Config.Bus.EventBusName,
			AWS:         awsutil.Config{Region: a.Config.AWS.Region, Endpoint: a.Config.AWS.Endpoint},
			MaxAttempts: a.Config.Bus.MaxAttempts,
			RetryDelay:  a.Config.Bus.RetryDelay,
			Clock:       a.opts.clock,
		}
		var (
			pub *eventbridge.Publisher
			err error
		)
		if a.opts.eventbridge != nil {
			pub, err = eventbridge.NewWithClient(a.opts.eventbridge, cfg)
		} else {
			pub, err = eventbridge.New(ctx, cfg)
		}
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		return pub, func() error { return nil }, nil
	default:
		b, err := local.New(local.Config{
			Deliverer:   a.Pipeline,
			Clock:       a.opts.clock,
			MaxAttempts: a.Config.Bus.MaxAttempts,
			RetryDelay:  a.Config.Bus.RetryDelay,
			QueueSize:   a.Config.Bus.QueueSize,
			OnResult: func(env domain.Envelope, res domain.Result) {
				logger.Debugf("event %s: %s", env.ID, res.Status)
			},
		})
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		return b, func() error {
			b.Kill()
			return b.Wait()
		}, nil
	}
}

// LambdaHandler returns the EventBridge target adapter bound to the pipeline.
func (a *App) LambdaHandler() *eventbridge.LambdaHandler {
	return eventbridge.NewLambdaHandler(a.Pipeline, eventbridge.WithRedeliverOnFailure(a.Config.Handler.RedeliverOnFailure))
}

// HTTPHandler serves the ingress gateway plus /metrics (prometheus driver)
// and /debug/vars.
func (a *App) HTTPHandler(pub bus.Publisher) (http.Handler, error) {
	gateway, err := ingress.New(ingress.Config{Builder: a.Pipeline, Publisher: pub, Lister: a.Pipeline})
	if err != nil {
		return nil, errors.Trace(err)
	}
	router := chi.NewRouter()
	if a.Registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}))
	}
	router.Handle("/debug/vars", expvar.Handler())
	router.Mount("/", gateway)
	return router, nil
}

// Close releases components in reverse construction order.
func (a *App) Close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return errors.Trace(first)
}
