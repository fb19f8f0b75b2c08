package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"medivault/internal/vault"
	dErrors "medivault/pkg/domain-errors"
	"medivault/pkg/platform/middleware/auth"
)

// VaultService is the slice of the vault the transport needs.
type VaultService interface {
	EncryptForStorage(ctx context.Context, payload any, meta vault.RecordMetadata) (*vault.StoredRecord, error)
	DecryptFromStorage(ctx context.Context, objKey string, out any) (*vault.StoredRecord, error)
	Delete(ctx context.Context, objKey string) error
	ListRecords(ctx context.Context, organizationID string) ([]string, error)
}

type VaultHandler struct {
	vault  VaultService
	logger *slog.Logger
}

func NewVaultHandler(vault VaultService, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{vault: vault, logger: logger}
}

// Register mounts the record routes, gated per-verb on the session's
// permissions.
func (h *VaultHandler) Register(r chi.Router) {
	read := auth.RequirePermission("records:read")
	write := auth.RequirePermission("records:write")

	r.With(write).Post("/records", h.handleUpload)
	r.With(read).Get("/records", h.handleList)
	r.With(read).Get("/records/{recordID}", h.handleFetch)
	r.With(write).Delete("/records/{recordID}", h.handleDelete)
}

type uploadRequest struct {
	RecordID  string          `json:"record_id"`
	SubjectID string          `json:"subject_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func (h *VaultHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(r)
	if sess == nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "session missing from context"))
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if len(req.Payload) == 0 {
		writeError(w, dErrors.New(dErrors.CodeValidation, "payload is required"))
		return
	}

	stored, err := h.vault.EncryptForStorage(ctx, req.Payload, vault.RecordMetadata{
		RecordID:       req.RecordID,
		OrganizationID: sess.OrganizationID,
		SubjectID:      req.SubjectID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

type fetchResponse struct {
	Record  *vault.StoredRecord `json:"record"`
	Payload json.RawMessage     `json:"payload"`
}

func (h *VaultHandler) handleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(r)
	if sess == nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "session missing from context"))
		return
	}

	objKey := "records/" + sess.OrganizationID + "/" + chi.URLParam(r, "recordID")

	var payload json.RawMessage
	info, err := h.vault.DecryptFromStorage(ctx, objKey, &payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse{Record: info, Payload: payload})
}

func (h *VaultHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "session missing from context"))
		return
	}

	objKey := "records/" + sess.OrganizationID + "/" + chi.URLParam(r, "recordID")
	if err := h.vault.Delete(r.Context(), objKey); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *VaultHandler) handleList(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "session missing from context"))
		return
	}

	keys, err := h.vault.ListRecords(r.Context(), sess.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"records": keys})
}
