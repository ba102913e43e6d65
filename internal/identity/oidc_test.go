package identity

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/hasura-webhook/internal/config"
	"github.com/dtroode/hasura-webhook/internal/model"
)

const (
	testIssuer   = "https://securetoken.google.com/test-project"
	testAudience = "test-project"
)

func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims(subject string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

func newTestVerifier(key *rsa.PrivateKey) *OIDC {
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	verifier := oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: testAudience})
	return NewOIDCWithVerifier(verifier, time.Second)
}

func TestOIDC_Verify(t *testing.T) {
	key := newSigningKey(t)
	otherKey := newSigningKey(t)
	v := newTestVerifier(key)

	expired := validClaims("abc123")
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongAudience := validClaims("abc123")
	wrongAudience["aud"] = "another-project"

	wrongIssuer := validClaims("abc123")
	wrongIssuer["iss"] = "https://evil.example.com"

	noSubject := validClaims("")
	delete(noSubject, "sub")

	tests := []struct {
		name    string
		token   string
		subject string
		wantErr bool
	}{
		{name: "valid token", token: signToken(t, key, validClaims("abc123")), subject: "abc123"},
		{name: "empty token", token: "", wantErr: true},
		{name: "malformed token", token: "not-a-jwt", wantErr: true},
		{name: "expired token", token: signToken(t, key, expired), wantErr: true},
		{name: "wrong audience", token: signToken(t, key, wrongAudience), wantErr: true},
		{name: "wrong issuer", token: signToken(t, key, wrongIssuer), wantErr: true},
		{name: "foreign signature", token: signToken(t, otherKey, validClaims("abc123")), wantErr: true},
		{name: "missing subject", token: signToken(t, key, noSubject), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := v.Verify(context.Background(), tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrInvalidToken)
				assert.Empty(t, subject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
		})
	}
}

func TestOIDC_Verify_ConcurrentCalls(t *testing.T) {
	key := newSigningKey(t)
	v := newTestVerifier(key)
	token := signToken(t, key, validClaims("abc123"))

	errs := make(chan error, 16)
	for i := 0; i < cap(errs); i++ {
		go func() {
			_, err := v.Verify(context.Background(), token)
			errs <- err
		}()
	}
	for i := 0; i < cap(errs); i++ {
		assert.NoError(t, <-errs)
	}
}

func TestNewOIDC_RequiresIssuer(t *testing.T) {
	v, err := NewOIDC(context.Background(), config.Identity{})
	assert.Nil(t, v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer")
}

func TestNewOIDC_WithJWKSURL(t *testing.T) {
	v, err := NewOIDC(context.Background(), config.Identity{
		ProjectID: testAudience,
		JWKSURL:   "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com",
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, time.Second, v.timeout)
}

func TestNewOIDC_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	v, err := NewOIDC(context.Background(), config.Identity{Issuer: srv.URL, Timeout: time.Second})
	assert.Nil(t, v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to init oidc provider")
}
