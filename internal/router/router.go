// Package router dispatches envelopes to handlers by (source, detail-type).
package router

import (
	"context"
	"sort"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"taskbridge/pkg/domain"
)

// Handler applies a routed envelope.
type Handler interface {
	Handle(ctx context.Context, env domain.Envelope) domain.Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env domain.Envelope) domain.Result

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, env domain.Envelope) domain.Result {
	return f(ctx, env)
}

// Route is the match key for a registration.
type Route struct {
	Source string
	Type   domain.Kind
}

func (r Route) String() string { return r.Source + "/" + string(r.Type) }

// Option configures a Router.
type Option func(*Router)

// WithLogger replaces the router logger.
func WithLogger(logger loggo.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// Router holds the route table. It is safe for concurrent use.
type Router struct {
	logger loggo.Logger
	mu     sync.RWMutex
	routes map[Route]Handler
}

// New returns an empty router.
func New(opts ...Option) *Router {
	r := &Router{
		logger: loggo.GetLogger("taskbridge.router"),
		routes: make(map[Route]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds h to (source, kind). Each route may be registered once.
func (r *Router) Register(source string, kind domain.Kind, h Handler) error {
	if h == nil {
		return errors.NotValidf("nil handler for %s/%s", source, kind)
	}
	route := Route{Source: source, Type: kind}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[route]; exists {
		return errors.AlreadyExistsf("route %s", route)
	}
	r.routes[route] = h
	return nil
}

// Routes returns the registered routes in a stable order.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Route, 0, len(r.routes))
	for route := range r.routes {
		out = append(out, route)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Deliver hands env to its registered handler. An envelope without a route is
// logged and dropped; it is never a failure.
func (r *Router) Deliver(ctx context.Context, env domain.Envelope) domain.Result {
	route := Route{Source: env.Source, Type: env.Type}
	r.mu.RLock()
	h, ok := r.routes[route]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warningf("dropping unroutable event %s: %s", route, env)
		return domain.Result{Status: domain.StatusDropped, Type: env.Type, EventID: env.ID}
	}
	r.logger.Tracef("delivering event %s to %s", env.ID, route)
	return h.Handle(ctx, env)
}
