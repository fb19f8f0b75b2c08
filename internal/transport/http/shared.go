// Package httptransport is the thin HTTP layer over the core-exposed
// operations. Handlers delegate to domain services without embedding
// business logic; the core never sees transport types.
package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"medivault/internal/auth/models"
	dErrors "medivault/pkg/domain-errors"
	"medivault/pkg/platform/middleware/auth"
	"medivault/pkg/requestcontext"
)

// sessionFrom returns the verified session the auth middleware attached.
func sessionFrom(r *http.Request) *models.Session {
	return auth.SessionFromContext(r.Context())
}

// requestID assigns each request an identifier carried through the context
// and echoed in the response for support correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates domain errors into JSON envelopes. The response
// carries only a coarse error code: internal detail stays in the audit
// trail, and integrity or collaborator failures are collapsed to a generic
// signal so callers learn nothing about the failure's mechanics.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(dErrors.CodeInternal)

	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeInvalidKeyLength:
		status, code = http.StatusBadRequest, string(dErrors.CodeValidation)
	case dErrors.CodeInvalidCredentials, dErrors.CodeInvalidToken,
		dErrors.CodeSessionExpired, dErrors.CodeUnauthorized:
		status, code = http.StatusUnauthorized, string(dErrors.CodeOf(err))
	case dErrors.CodeAccountDisabled, dErrors.CodeForbidden:
		status, code = http.StatusForbidden, string(dErrors.CodeOf(err))
	case dErrors.CodeNotFound:
		status, code = http.StatusNotFound, string(dErrors.CodeNotFound)
	case dErrors.CodeRateLimited:
		status, code = http.StatusTooManyRequests, string(dErrors.CodeRateLimited)
	case dErrors.CodeIntegrity, dErrors.CodeMetadataMismatch:
		// Tampering detail is never reflected back to the caller.
		status, code = http.StatusInternalServerError, "operation_failed"
	case dErrors.CodeCustodianUnavailable, dErrors.CodeStorageUnavailable:
		status, code = http.StatusServiceUnavailable, "operation_failed"
	}

	writeJSON(w, status, map[string]string{"error": code})
}
