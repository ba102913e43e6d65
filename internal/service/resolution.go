package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dtroode/hasura-webhook/internal/logger"
	"github.com/dtroode/hasura-webhook/internal/metrics"
	"github.com/dtroode/hasura-webhook/internal/model"
)

const bearerScheme = "Bearer"

// Resolution turns a raw Authorization header into an authorization context.
type Resolution struct {
	verifier model.IdentityVerifier
	store    model.UserStore
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewResolution creates a Resolution service. metrics may be nil.
func NewResolution(verifier model.IdentityVerifier, store model.UserStore, metrics *metrics.Metrics, logger *logger.Logger) *Resolution {
	return &Resolution{
		verifier: verifier,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

// Resolve verifies the bearer token in authHeader and resolves, creating on
// first sight, the local user it belongs to.
//
// The returned context is empty whenever err is non-nil; err wraps one of
// model.ErrMissingToken, model.ErrInvalidToken or model.ErrStoreUnavailable.
func (s *Resolution) Resolve(ctx context.Context, authHeader string) (model.AuthorizationContext, error) {
	authCtx, err := s.resolve(ctx, authHeader)
	s.metrics.RecordResolution(outcome(err))
	return authCtx, err
}

func (s *Resolution) resolve(ctx context.Context, authHeader string) (model.AuthorizationContext, error) {
	token := ExtractBearerToken(authHeader)
	if token == "" {
		s.logger.Debug("Resolution service: no bearer token supplied")
		return model.AuthorizationContext{}, model.ErrMissingToken
	}

	subject, err := s.verifier.Verify(ctx, token)
	if err != nil {
		s.logger.Info("Resolution service: token rejected",
			"error", err.Error())
		if !errors.Is(err, model.ErrInvalidToken) {
			err = fmt.Errorf("%w: %w", model.ErrInvalidToken, err)
		}
		return model.AuthorizationContext{}, err
	}

	user, err := s.store.ResolveOrCreate(ctx, subject)
	if err != nil {
		s.logger.Error("Resolution service: failed to resolve user",
			"subject", subject,
			"error", err.Error())
		if !errors.Is(err, model.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
		}
		return model.AuthorizationContext{}, err
	}

	s.logger.Debug("Resolution service: user resolved",
		"subject", subject,
		"user_id", user.ID)

	return model.NewAuthorizationContext(user), nil
}

// ExtractBearerToken strips the bearer scheme and one separating whitespace
// character from an Authorization header value. A value without the scheme is
// returned trimmed as is.
func ExtractBearerToken(header string) string {
	if strings.EqualFold(strings.TrimSpace(header), bearerScheme) {
		return ""
	}
	n := len(bearerScheme)
	if len(header) > n && strings.EqualFold(header[:n], bearerScheme) && unicode.IsSpace(rune(header[n])) {
		header = header[n+1:]
	}
	return strings.TrimSpace(header)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeAuthorized
	case errors.Is(err, model.ErrMissingToken):
		return metrics.OutcomeMissingToken
	case errors.Is(err, model.ErrInvalidToken):
		return metrics.OutcomeInvalidToken
	default:
		return metrics.OutcomeStoreUnavailable
	}
}
