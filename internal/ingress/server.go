// Package ingress exposes the mutation gateway over HTTP. A mutation request
// is validated, packaged into an envelope and handed to a publisher; the
// caller gets its own input back, never the outcome of applying it.
package ingress

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"taskbridge/internal/bus"
	"taskbridge/internal/event"
	"taskbridge/pkg/domain"
)

// EventIDHeader carries the envelope id of an accepted mutation.
const EventIDHeader = "X-Event-Id"

// MaxBodyBytes caps a mutation request body.
const MaxBodyBytes = 64 << 10

// Builder packages mutation arguments into envelopes.
type Builder interface {
	Build(kind domain.Kind, args map[string]any) (domain.Envelope, error)
}

// Lister scans the record table.
type Lister interface {
	List(ctx context.Context) ([]domain.Record, error)
}

// Config for the HTTP handler.
type Config struct {
	Builder   Builder
	Publisher bus.Publisher
	Lister    Lister
	Logger    *loggo.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type apiError struct {
	Body apiErrorBody `json:"error"`
}

type server struct {
	cfg    Config
	logger loggo.Logger
}

// New returns an HTTP handler exposing the gateway.
func New(cfg Config) (http.Handler, error) {
	if cfg.Builder == nil {
		return nil, errors.NotValidf("nil Builder")
	}
	if cfg.Publisher == nil {
		return nil, errors.NotValidf("nil Publisher")
	}
	if cfg.Lister == nil {
		return nil, errors.NotValidf("nil Lister")
	}
	s := &server{cfg: cfg, logger: loggo.GetLogger("taskbridge.ingress")}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.With(middleware.RequestSize(MaxBodyBytes)).Post("/mutations/{kind}", s.postMutation)
	router.Get("/tasks", s.listTasks)
	return router, nil
}

func (s *server) postMutation(w http.ResponseWriter, r *http.Request) {
	kind := domain.Kind(chi.URLParam(r, "kind"))
	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil || args == nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds the size limit", map[string]any{"limit_bytes": tooLarge.Limit})
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be a JSON object", nil)
		return
	}
	env, err := s.cfg.Builder.Build(kind, args)
	if err != nil {
		var invalid *event.InvalidArgumentError
		if errors.As(err, &invalid) {
			details := map[string]any{"kind": string(invalid.Kind)}
			if invalid.Key != "" {
				details["key"] = invalid.Key
			}
			writeError(w, http.StatusBadRequest, "invalid_argument", invalid.Error(), details)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	if err := s.cfg.Publisher.Publish(r.Context(), env); err != nil {
		s.logger.Errorf("publishing %s: %v", env, err)
		writeError(w, http.StatusBadGateway, "publish_failed", "event transport rejected the mutation", map[string]any{"event_id": env.ID})
		return
	}
	w.Header().Set(EventIDHeader, env.ID)
	writeJSON(w, http.StatusAccepted, args)
}

func (s *server) listTasks(w http.ResponseWriter, r *http.Request) {
	recs, err := s.cfg.Lister.List(r.Context())
	if err != nil {
		s.logger.Errorf("listing tasks: %v", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "task table is unavailable", nil)
		return
	}
	if recs == nil {
		recs = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": recs})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, apiError{Body: apiErrorBody{Code: code, Message: message, Details: details}})
}
