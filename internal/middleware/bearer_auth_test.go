package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-graphql/internal/auth"
)

func newTestIssuer(t *testing.T, secret string) *auth.Issuer {
	t.Helper()
	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Secret: []byte(strings.Repeat(secret, auth.MinSecretLength)),
		Issuer: "storefront-graphql",
		TTL:    time.Hour,
	})
	require.NoError(t, err)
	return issuer
}

func serveWithBearer(t *testing.T, verifier TokenVerifier, authorization string) (*httptest.ResponseRecorder, *auth.Viewer) {
	t.Helper()
	var seen *auth.Viewer
	handler := BearerAuthMiddleware(verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v, ok := auth.ViewerFromContext(r.Context()); ok {
			seen = &v
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestBearerAuthMiddleware_Anonymous(t *testing.T) {
	rec, viewer := serveWithBearer(t, newTestIssuer(t, "a"), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, viewer)
}

func TestBearerAuthMiddleware_ValidToken(t *testing.T) {
	issuer := newTestIssuer(t, "a")
	token, err := issuer.Issue(&auth.User{ID: 7, Email: "staff@example.com", IsStaff: true})
	require.NoError(t, err)

	rec, viewer := serveWithBearer(t, issuer, "bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, viewer)
	assert.Equal(t, auth.Viewer{UserID: 7, Email: "staff@example.com", IsStaff: true}, *viewer)
}

func TestBearerAuthMiddleware_Rejects(t *testing.T) {
	foreign, err := newTestIssuer(t, "b").Issue(&auth.User{ID: 1})
	require.NoError(t, err)

	for name, header := range map[string]string{
		"malformed header": "Token abc",
		"garbage token":    "Bearer not-a-jwt",
		"foreign secret":   "Bearer " + foreign,
	} {
		t.Run(name, func(t *testing.T) {
			rec, viewer := serveWithBearer(t, newTestIssuer(t, "a"), header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			assert.Nil(t, viewer)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("BEARER  abc "))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("Bearer"))
}
