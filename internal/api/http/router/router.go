package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dtroode/hasura-webhook/internal/api/http/handler"
	"github.com/dtroode/hasura-webhook/internal/api/http/middleware"
	"github.com/dtroode/hasura-webhook/internal/logger"
	"github.com/dtroode/hasura-webhook/internal/metrics"
)

// Router wires the webhook, storage proxy, health and metrics routes.
type Router struct {
	webhook *handler.Webhook
	file    *handler.File
	health  *handler.Health
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// New creates new HTTP Router instance.
func New(
	webhook *handler.Webhook,
	file *handler.File,
	health *handler.Health,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Router {
	return &Router{
		webhook: webhook,
		file:    file,
		health:  health,
		metrics: metrics,
		logger:  logger,
	}
}

// Register builds the handler tree with request id, panic recovery and
// request logging middleware.
func (r *Router) Register() http.Handler {
	logging := middleware.NewLogging(r.logger, r.metrics)

	mux := chi.NewRouter()
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.Recoverer)
	mux.Use(logging.Handle)

	mux.Get("/", r.webhook.Resolve)
	mux.Get("/webhook", r.webhook.Resolve)

	if r.file != nil {
		mux.Post("/upload_file", r.file.Upload)
		mux.Post("/delete_file", r.file.Delete)
	} else {
		mux.Post("/upload_file", handler.StorageDisabled)
		mux.Post("/delete_file", handler.StorageDisabled)
	}

	if r.health != nil {
		mux.Get("/health/live", r.health.Live)
		mux.Get("/health/ready", r.health.Ready)
	}

	if r.metrics != nil {
		mux.Method(http.MethodGet, "/metrics", r.metrics.Handler())
	}

	return mux
}
