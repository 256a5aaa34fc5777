// Package pipeline binds the envelope builder, router and mutation handler to
// a single store.
package pipeline

import (
	"context"

	"github.com/juju/errors"

	"taskbridge/internal/event"
	"taskbridge/internal/mutation"
	"taskbridge/internal/router"
	"taskbridge/internal/store"
	"taskbridge/pkg/domain"
)

type options struct {
	builder        *event.Builder
	handlerOptions []mutation.Option
	routerOptions  []router.Option
}

// Option configures a Pipeline.
type Option func(*options)

// WithBuilder replaces the default envelope builder.
func WithBuilder(b *event.Builder) Option {
	return func(o *options) { o.builder = b }
}

// WithHandlerOptions forwards options to the mutation handler.
func WithHandlerOptions(opts ...mutation.Option) Option {
	return func(o *options) { o.handlerOptions = append(o.handlerOptions, opts...) }
}

// WithRouterOptions forwards options to the router.
func WithRouterOptions(opts ...router.Option) Option {
	return func(o *options) { o.routerOptions = append(o.routerOptions, opts...) }
}

// Pipeline routes create and delete envelopes from the builder's source to
// one mutation handler.
type Pipeline struct {
	builder *event.Builder
	router  *router.Router
	handler *mutation.Handler
	store   store.Store
}

// New wires a pipeline around s.
func New(s store.Store, opts ...Option) (*Pipeline, error) {
	if s == nil {
		return nil, errors.NotValidf("nil store")
	}
	o := options{builder: event.NewBuilder()}
	for _, opt := range opts {
		opt(&o)
	}
	p := &Pipeline{
		builder: o.builder,
		router:  router.New(o.routerOptions...),
		handler: mutation.NewHandler(s, o.handlerOptions...),
		store:   s,
	}
	source := p.builder.Source
	if source == "" {
		source = domain.Source
	}
	for _, kind := range []domain.Kind{domain.KindCreate, domain.KindDelete} {
		if err := p.router.Register(source, kind, p.handler); err != nil {
			return nil, errors.Annotatef(err, "register %s route", kind)
		}
	}
	return p, nil
}

// Build packages args into an envelope.
func (p *Pipeline) Build(kind domain.Kind, args map[string]any) (domain.Envelope, error) {
	return p.builder.Build(kind, args)
}

// Deliver routes env to its handler.
func (p *Pipeline) Deliver(ctx context.Context, env domain.Envelope) domain.Result {
	return p.router.Deliver(ctx, env)
}

// Router exposes the route table.
func (p *Pipeline) Router() *router.Router { return p.router }

// List returns every stored record.
func (p *Pipeline) List(ctx context.Context) ([]domain.Record, error) {
	recs, err := p.store.List(ctx)
	return recs, errors.Annotate(err, "list records")
}

// Close releases the store.
func (p *Pipeline) Close() error { return p.store.Close() }
