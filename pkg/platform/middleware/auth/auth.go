// Package auth provides the bearer token middleware guarding protected
// routes. Failures are normalized to a single generic response so the
// middleware never reveals whether a token was malformed, expired, or
// revoked; the precise cause lives in the audit trail.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"medivault/internal/auth/models"
	"medivault/pkg/requestcontext"
)

// SessionVerifier is the slice of the session manager the middleware needs.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*models.Session, error)
}

type sessionKey struct{}

// SessionFromContext returns the verified session placed by RequireSession,
// or nil outside a guarded route.
func SessionFromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(sessionKey{}).(*models.Session)
	return sess
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

func writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden"}`))
}

// RequireSession validates the bearer token and loads the session's identity
// into the request context.
func RequireSession(verifier SessionVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				writeUnauthorized(w)
				return
			}

			ctx := r.Context()
			sess, err := verifier.Verify(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "request rejected",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				writeUnauthorized(w)
				return
			}

			ctx = context.WithValue(ctx, sessionKey{}, sess)
			ctx = requestcontext.WithActorID(ctx, sess.UserID)
			ctx = requestcontext.WithSessionID(ctx, sess.ID)
			ctx = requestcontext.WithOrganizationID(ctx, sess.OrganizationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a route on a session permission. It must run after
// RequireSession, which it relies on for the verified session.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil {
				writeUnauthorized(w)
				return
			}
			if !sess.HasPermission(permission) {
				writeForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
