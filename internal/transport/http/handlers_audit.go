package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"medivault/internal/audit"
	dErrors "medivault/pkg/domain-errors"
)

// AuditService is the slice of the recorder the transport needs.
type AuditService interface {
	Record(ctx context.Context, level audit.Level, eventType audit.EventType, actor audit.ActorContext, fields ...audit.Field) string
	RecordSecurityIncident(ctx context.Context, eventType audit.EventType, actor audit.ActorContext, fields ...audit.Field) string
	Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

type AuditHandler struct {
	recorder AuditService
	logger   *slog.Logger
}

func NewAuditHandler(recorder AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{recorder: recorder, logger: logger}
}

func (h *AuditHandler) Register(r chi.Router) {
	r.Post("/audit/events", h.handleRecord)
	r.Get("/audit/events", h.handleQuery)
}

type recordEventRequest struct {
	Level     string            `json:"level"`
	EventType string            `json:"event_type"`
	SubjectID string            `json:"subject_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Secrets   map[string]string `json:"secrets,omitempty"`
	Incident  bool              `json:"incident,omitempty"`
}

func (r *recordEventRequest) level() (audit.Level, bool) {
	switch audit.Level(r.Level) {
	case audit.LevelInfo, audit.LevelWarning, audit.LevelError, audit.LevelCritical:
		return audit.Level(r.Level), true
	case "":
		return audit.LevelInfo, true
	}
	return "", false
}

func (h *AuditHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(r)
	if sess == nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "session missing from context"))
		return
	}

	var req recordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.EventType == "" {
		writeError(w, dErrors.New(dErrors.CodeValidation, "event_type is required"))
		return
	}
	level, ok := req.level()
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeValidation, "unknown level"))
		return
	}

	actor := audit.ActorContext{
		UserID:         sess.UserID,
		SessionID:      sess.ID,
		OrganizationID: sess.OrganizationID,
		IP:             sess.Client.IP,
	}

	var fields []audit.Field
	for k, v := range req.Fields {
		fields = append(fields, audit.Public(k, v))
	}
	for k, v := range req.Secrets {
		fields = append(fields, audit.Secret(k, v))
	}
	if req.SubjectID != "" {
		fields = append(fields, audit.Subject("subject_id", req.SubjectID))
	}

	var id string
	if req.Incident {
		id = h.recorder.RecordSecurityIncident(ctx, audit.EventType(req.EventType), actor, fields...)
	} else {
		id = h.recorder.Record(ctx, level, audit.EventType(req.EventType), actor, fields...)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"event_id": id})
}

func (h *AuditHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(r)
	if sess == nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "session missing from context"))
		return
	}

	filter, err := queryFilter(r, sess.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.recorder.Query(ctx, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	h.recorder.Record(ctx, audit.LevelInfo, audit.EventEventsQueried,
		audit.ActorContext{
			UserID:         sess.UserID,
			SessionID:      sess.ID,
			OrganizationID: sess.OrganizationID,
		},
		audit.Public("results", strconv.Itoa(len(events))),
	)

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// queryFilter builds the event filter from the query string. The caller's
// organization is always used; callers cannot widen the scope.
func queryFilter(r *http.Request, organizationID string) (audit.Filter, error) {
	filter := audit.Filter{
		OrganizationID: organizationID,
		ActorID:        r.URL.Query().Get("actor"),
		Level:          audit.Level(r.URL.Query().Get("level")),
	}

	for _, t := range r.URL.Query()["type"] {
		filter.Types = append(filter.Types, audit.EventType(t))
	}

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeValidation, "from must be RFC3339")
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeValidation, "to must be RFC3339")
		}
		filter.To = t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return audit.Filter{}, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	return filter, nil
}
