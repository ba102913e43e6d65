package handler

import (
	"context"
	"net/http"

	"github.com/dtroode/hasura-webhook/internal/logger"
	"github.com/dtroode/hasura-webhook/internal/model"
)

// Resolver turns an Authorization header value into an authorization context.
type Resolver interface {
	Resolve(ctx context.Context, authHeader string) (model.AuthorizationContext, error)
}

// Webhook serves the authorization webhook routes.
type Webhook struct {
	resolver Resolver
	logger   *logger.Logger
}

// NewWebhook creates a new Webhook handler.
func NewWebhook(resolver Resolver, logger *logger.Logger) *Webhook {
	return &Webhook{resolver: resolver, logger: logger}
}

// Resolve always answers 200. The session variables are present only when
// the caller was resolved to a user; failures yield an empty object.
func (h *Webhook) Resolve(w http.ResponseWriter, r *http.Request) {
	authCtx, err := h.resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.logger.Debug("Webhook handler: no role asserted", "path", r.URL.Path, "reason", err)
	}

	writeJSON(w, http.StatusOK, authCtx.Variables())
}
