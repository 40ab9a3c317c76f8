package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-darshan/internal/config"
	"ms-darshan/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Token abc")
	_, err = ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	tok, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("s3cret")
	tok, err := v.Sign("user-1", "admin", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.True(t, id.HasRole("ADMIN"))

	_, err = NewHMACVerifier("other").Verify(context.Background(), tok)
	assert.Error(t, err)

	expired, err := v.Sign("user-1", "", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.Error(t, err)

	noExpiry, err := v.Sign("user-1", "", jwt.RegisteredClaims{})
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), noExpiry)
	assert.Error(t, err)
}

func TestMiddlewareAndRequireAdmin(t *testing.T) {
	v := NewHMACVerifier("s3cret")
	log := logger.NewNopLogger()
	exp := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	userTok, _ := v.Sign("user-1", "user", exp)
	adminTok, _ := v.Sign("admin-1", "admin", exp)

	var seen string
	h := Middleware(v, log)(RequireAdmin("admin", log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	})))

	do := func(token string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/sos/all", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("garbage"))
	assert.Equal(t, http.StatusForbidden, do(userTok))
	assert.Equal(t, http.StatusOK, do(adminTok))
	assert.Equal(t, "admin-1", seen)
}

func TestNewVerifier_RequiresSomething(t *testing.T) {
	_, err := NewVerifier(context.Background(), config.AuthConfig{})
	assert.Error(t, err)

	v, err := NewVerifier(context.Background(), config.AuthConfig{JWTSecret: "x"})
	require.NoError(t, err)
	assert.IsType(t, &HMACVerifier{}, v)
}
