package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medivault/internal/auth/models"
	dErrors "medivault/pkg/domain-errors"
	"medivault/pkg/requestcontext"
)

// AuthService is the slice of the session manager the transport needs.
type AuthService interface {
	Authenticate(ctx context.Context, req models.AuthenticateRequest) (*models.AuthenticateResult, error)
	Verify(ctx context.Context, token string) (*models.Session, error)
	Revoke(ctx context.Context, sessionID string) error
}

type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// RegisterPublic mounts the unauthenticated routes.
func (h *AuthHandler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
}

// RegisterProtected mounts routes that require a verified session.
func (h *AuthHandler) RegisterProtected(r chi.Router) {
	r.Get("/auth/session", h.handleSession)
	r.Post("/auth/logout", h.handleLogout)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	res, err := h.auth.Authenticate(ctx, models.AuthenticateRequest{
		Username: req.Username,
		Password: req.Password,
		Client: models.ClientContext{
			IP:        requestcontext.ClientIP(ctx),
			UserAgent: requestcontext.UserAgent(ctx),
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		SessionID: res.Session.ID,
		ExpiresAt: res.Session.ExpiresAt,
	})
}

type sessionResponse struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	OrganizationID string    `json:"organization_id"`
	Role           string    `json:"role"`
	Permissions    []string  `json:"permissions"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// handleSession reports the verified session behind the auth middleware.
func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "session missing from context"))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:      sess.ID,
		UserID:         sess.UserID,
		Username:       sess.Username,
		OrganizationID: sess.OrganizationID,
		Role:           sess.Role,
		Permissions:    sess.Permissions,
		ExpiresAt:      sess.ExpiresAt,
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := requestcontext.SessionID(ctx)
	if sessionID == "" {
		writeError(w, dErrors.New(dErrors.CodeInternal, "session missing from context"))
		return
	}
	if err := h.auth.Revoke(ctx, sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
