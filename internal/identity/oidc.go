// Package identity verifies bearer tokens issued by an external OpenID
// Connect provider such as Firebase Authentication.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/dtroode/hasura-webhook/internal/config"
	"github.com/dtroode/hasura-webhook/internal/model"
)

var _ model.IdentityVerifier = (*OIDC)(nil)

// OIDC verifies ID tokens against the provider's published signing keys.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
	timeout  time.Duration
}

// NewOIDC builds a verifier for the configured issuer. Signing keys are
// discovered from the issuer unless an explicit JWKS URL is configured.
// ctx must outlive the verifier: key refreshes are bound to it.
func NewOIDC(ctx context.Context, cfg config.Identity) (*OIDC, error) {
	issuer := cfg.IssuerURL()
	if issuer == "" {
		return nil, errors.New("identity issuer or project id is required")
	}

	audience := cfg.ExpectedAudience()
	oidcConfig := &oidc.Config{
		ClientID:          audience,
		SkipClientIDCheck: audience == "",
	}

	if cfg.JWKSURL != "" {
		keySet := oidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
		return NewOIDCWithVerifier(oidc.NewVerifier(issuer, keySet, oidcConfig), cfg.Timeout), nil
	}

	discoveryCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		discoveryCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	provider, err := oidc.NewProvider(discoveryCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init oidc provider: %w", err)
	}

	return NewOIDCWithVerifier(provider.Verifier(oidcConfig), cfg.Timeout), nil
}

// NewOIDCWithVerifier wraps an existing go-oidc verifier.
func NewOIDCWithVerifier(verifier *oidc.IDTokenVerifier, timeout time.Duration) *OIDC {
	return &OIDC{verifier: verifier, timeout: timeout}
}

// Verify checks signature, issuer, audience and expiry and returns the
// token subject. Every failure wraps model.ErrInvalidToken.
func (o *OIDC) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", model.ErrInvalidToken)
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	idToken, err := o.verifier.Verify(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrInvalidToken, err)
	}
	if idToken.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", model.ErrInvalidToken)
	}

	return idToken.Subject, nil
}
