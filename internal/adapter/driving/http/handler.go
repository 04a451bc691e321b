// Package httphandler is the HTTP driving adapter: the plugin ingress, the
// GitHub webhook route and the read-only run log API.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ubq-testing/label-base-rate-watcher/internal/application"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// maxBodyBytes matches the largest payload GitHub delivers to a webhook.
const maxBodyBytes = 25 << 20

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

// EventHandler processes one push event with the organization's settings.
type EventHandler interface {
	Handle(ctx context.Context, settings model.Settings, event model.PushEvent) error
}

// EventHandlerFactory binds an EventHandler to a GitHub client.
type EventHandlerFactory func(client driven.GitHubClient) EventHandler

// Config carries the handler's dependencies.
type Config struct {
	Clients *application.GitHubClientProvider
	Events  EventHandlerFactory
	Runs    driven.RunStore // Optional; the run endpoints answer 503 without it.

	// Settings apply to events arriving on the webhook route, which carry none.
	Settings       model.Settings
	WebhookSecret  string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Handler is the HTTP driving adapter.
type Handler struct {
	clients        *application.GitHubClientProvider
	events         EventHandlerFactory
	runs           driven.RunStore
	settings       model.Settings
	webhookSecret  []byte
	requestTimeout time.Duration
	logger         *slog.Logger

	inflight sync.WaitGroup
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	var secret []byte
	if cfg.WebhookSecret != "" {
		secret = []byte(cfg.WebhookSecret)
	}

	return &Handler{
		clients:        cfg.Clients,
		events:         cfg.Events,
		runs:           cfg.Runs,
		settings:       cfg.Settings,
		webhookSecret:  secret,
		requestTimeout: timeout,
		logger:         logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request ID, logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/{$}", h.PluginEvent)
	mux.HandleFunc("POST /webhooks/github", h.GitHubWebhook)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// Wait blocks until every reconciliation started by the webhook route has
// finished or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runEvent runs one event to completion. The request context only supplies
// values: a client hanging up must not abort a half-applied reconciliation.
func (h *Handler) runEvent(r *http.Request, client driven.GitHubClient, settings model.Settings, event model.PushEvent) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.requestTimeout)
	defer cancel()

	return h.events(client).Handle(ctx, settings, event)
}

// ListRuns returns the most recent reconciliation runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run log unavailable")
		return
	}

	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns a single run with its per-repository outcomes.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run log unavailable")
		return
	}

	id := r.PathValue("id")
	run, err := h.runs.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	resp := toRunResponse(*run)
	resp.Outcomes = make([]RepoOutcomeResponse, 0, len(run.Outcomes))
	for _, o := range run.Outcomes {
		resp.Outcomes = append(resp.Outcomes, toRepoOutcomeResponse(o))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Time:           time.Now().UTC().Format(time.RFC3339),
		FallbackClient: h.clients != nil && h.clients.HasFallback(),
	})
}

// clientFor resolves the GitHub client for a request token, writing a 503
// when none can be built.
func (h *Handler) clientFor(w http.ResponseWriter, token string) (driven.GitHubClient, bool) {
	if h.clients == nil {
		writeError(w, http.StatusServiceUnavailable, "github credentials not configured")
		return nil, false
	}
	client, err := h.clients.For(token)
	if err != nil {
		if errors.Is(err, application.ErrNoCredentials) {
			writeError(w, http.StatusServiceUnavailable, "github credentials not configured")
			return nil, false
		}
		h.logger.Error("failed to build github client", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	return client, true
}
