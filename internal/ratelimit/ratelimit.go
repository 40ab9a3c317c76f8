package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"ms-darshan/internal/logger"
	"ms-darshan/internal/utils"

	"github.com/go-redis/redis/v8"
)

const (
	GeneralMessage = "Too many requests from this IP, please try again later"
	SOSMessage     = "Too many SOS requests, please wait"
)

// Limiter is a fixed-window request counter per client IP kept in Redis.
// Requests are let through when Redis is unreachable.
type Limiter struct {
	Redis   *redis.Client
	Prefix  string
	Window  time.Duration
	Max     int
	Message string
	Logger  *logger.Logger
}

func NewLimiter(rdb *redis.Client, prefix string, window time.Duration, max int, message string, log *logger.Logger) *Limiter {
	return &Limiter{Redis: rdb, Prefix: prefix, Window: window, Max: max, Message: message, Logger: log}
}

// Allow counts one hit for key and reports whether it is within the limit,
// along with the hits left and the time until the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, int, time.Duration, error) {
	k := fmt.Sprintf("ratelimit:%s:%s", l.Prefix, key)
	n, err := l.Redis.Incr(ctx, k).Result()
	if err != nil {
		return true, l.Max, 0, err
	}
	if n == 1 {
		if err := l.Redis.Expire(ctx, k, l.Window).Err(); err != nil {
			return true, l.Max, 0, err
		}
	}
	ttl, err := l.Redis.TTL(ctx, k).Result()
	if err != nil {
		return true, l.Max, 0, err
	}
	if ttl < 0 {
		// expiry lost between INCR and EXPIRE
		l.Redis.Expire(ctx, k, l.Window)
		ttl = l.Window
	}
	remaining := l.Max - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return int(n) <= l.Max, remaining, ttl, nil
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		ok, remaining, reset, err := l.Allow(r.Context(), ip)
		if err != nil {
			l.Logger.Warn("RATELIMIT", fmt.Sprintf("%s limiter unavailable, allowing %s: %v", l.Prefix, ip, err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(reset.Round(time.Second)/time.Second)))
			l.Logger.LogSecurity("RATE_LIMITED", fmt.Sprintf("%s %s from %s", r.Method, r.URL.Path, ip))
			utils.WriteFail(w, http.StatusTooManyRequests, l.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP strips the port from RemoteAddr. Proxy headers are resolved
// upstream by chi's RealIP middleware.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
