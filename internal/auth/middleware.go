package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-darshan/internal/config"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/utils"
)

type contextKey string

const identityKey contextKey = "identity"

// NewVerifier prefers OIDC when an issuer is configured and falls back to HMAC JWTs.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (Verifier, error) {
	if cfg.OIDCIssuer != "" {
		return NewOIDCVerifier(ctx, cfg.OIDCIssuer)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("no token verifier configured")
	}
	return NewHMACVerifier(cfg.JWTSecret), nil
}

// Middleware rejects requests without a valid bearer token and stores the caller in the context.
func Middleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteFail(w, http.StatusUnauthorized, "Not authorized, no token")
				return
			}

			id, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteFail(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		})
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin(adminRole string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok || !id.HasRole(adminRole) {
				log.LogSecurity("ADMIN_DENIED", fmt.Sprintf("user %q on %s %s", UserID(r.Context()), r.Method, r.URL.Path))
				utils.WriteFail(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func UserID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}

// Guards bundles the middleware handlers use to protect their routes.
type Guards struct {
	Authn func(http.Handler) http.Handler
	Admin func(http.Handler) http.Handler
}

func NewGuards(v Verifier, adminRole string, log *logger.Logger) Guards {
	return Guards{Authn: Middleware(v, log), Admin: RequireAdmin(adminRole, log)}
}
