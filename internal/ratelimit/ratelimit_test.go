package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-darshan/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, max int) (*Limiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewLimiter(rdb, "sos", time.Minute, max, SOSMessage, logger.NewNopLogger()), mr
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/sos/create", nil)
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareBlocksAfterMax(t *testing.T) {
	l, mr := newLimiter(t, 2)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1").Code)
	rec := hit(h, "10.0.0.1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = hit(h, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), SOSMessage)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.2").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1").Code)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	l, mr := newLimiter(t, 1)
	mr.Close()
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1").Code)
}

func TestAllowSetsWindow(t *testing.T) {
	l, mr := newLimiter(t, 5)
	ok, remaining, reset, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, remaining)
	assert.Equal(t, time.Minute, reset)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:sos:1.2.3.4"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4000"
	assert.Equal(t, "192.168.1.5", ClientIP(req))
	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", ClientIP(req))
}
