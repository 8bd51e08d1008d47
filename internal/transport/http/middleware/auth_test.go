package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-subtracker/internal/config"
	jwtinfra "github.com/go-subtracker/internal/infrastructure/jwt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	return newTestProviderWithExpiry(t, time.Hour)
}

func newTestProviderWithExpiry(t *testing.T, expiry time.Duration) *jwtinfra.Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(priv, pem.EncodeToMemory(&pem.Block{
		Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), 0600))
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pub, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0600))

	p, err := jwtinfra.NewProvider(&config.Config{JWTPrivateKeyPath: priv, JWTPublicKeyPath: pub, JWTExpiry: expiry})
	require.NoError(t, err)
	return p
}

type verifierFunc func(string) (*jwtinfra.Claims, error)

func (f verifierFunc) Verify(token string) (*jwtinfra.Claims, error) { return f(token) }

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func serve(v TokenVerifier, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	Auth(v)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	return rr
}

func TestAuth_RejectsMissingOrMalformedHeader(t *testing.T) {
	called := false
	v := verifierFunc(func(string) (*jwtinfra.Claims, error) {
		called = true
		return &jwtinfra.Claims{}, nil
	})
	for _, h := range []string{"", "Token abc", "bearer abc"} {
		rr := serve(v, h)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, h)
		assert.JSONEq(t, `{"error":"missing or invalid authorization header"}`, rr.Body.String())
	}
	assert.False(t, called)
}

func TestAuth_VerifierError(t *testing.T) {
	rr := serve(verifierFunc(func(string) (*jwtinfra.Claims, error) {
		return nil, errors.New("expired")
	}), "Bearer abc")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"invalid or expired token"}`, rr.Body.String())
}

func TestAuth_ForeignKeyRejected(t *testing.T) {
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, &jwtinfra.Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(other)
	require.NoError(t, err)

	rr := serve(newTestProvider(t), "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_ExpiredTokenRejected(t *testing.T) {
	p := newTestProviderWithExpiry(t, -time.Minute)
	signed, _, err := p.Sign("u1", "user")
	require.NoError(t, err)

	rr := serve(p, "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_ValidToken_InjectsClaims(t *testing.T) {
	p := newTestProvider(t)
	signed, _, err := p.Sign("u1", "user")
	require.NoError(t, err)

	var got *jwtinfra.Claims
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "user", got.Role)
}

func TestClaimsFromContext_Absent(t *testing.T) {
	_, ok := ClaimsFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
