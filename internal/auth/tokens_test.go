package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sofreh/backend-resto/internal/auth"
	"github.com/sofreh/backend-resto/internal/common"
)

func newTokens(t *testing.T) *auth.Tokens {
	t.Helper()
	tokens, err := auth.NewTokens(auth.TokensConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)
	return tokens
}

func TestSignAndParseRoundTrip(t *testing.T) {
	tokens := newTokens(t)

	signed, expiresAt, err := tokens.Sign("user-7", "admin")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, "user-7", claims.UserID)
	require.Equal(t, "admin", claims.Role)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	tokens := newTokens(t)
	issued := time.Now().Add(-48 * time.Hour)
	tokens.WithNow(func() time.Time { return issued })

	signed, _, err := tokens.Sign("user-7", "customer")
	require.NoError(t, err)

	tokens.WithNow(time.Now)
	_, err = tokens.Parse(signed)
	require.Error(t, err)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tokens := newTokens(t)
	other, err := auth.NewTokens(auth.TokensConfig{Secret: "different-secret"})
	require.NoError(t, err)

	signed, _, err := tokens.Sign("user-7", "customer")
	require.NoError(t, err)

	_, err = other.Parse(signed)
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	tokens := newTokens(t)
	_, err := tokens.Parse("not-a-token")
	require.Error(t, err)
	_, err = tokens.Parse("")
	require.Error(t, err)
}

func TestRequireRoleGatesAdminRoutes(t *testing.T) {
	tokens := newTokens(t)
	mw := auth.Middleware{Tokens: tokens}

	var seenUser string
	handler := mw.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// no token
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/items", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// customer token
	customerToken, _, err := tokens.Sign("cust-1", "customer")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin/items", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// admin token
	adminToken, _, err := tokens.Sign("admin-1", "admin")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin/items", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "admin-1", seenUser)
}
