package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"medivault/internal/crypto"
	dErrors "medivault/pkg/domain-errors"
	"medivault/pkg/requestcontext"
)

var (
	eventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medivault_audit_events_recorded_total",
		Help: "Audit events recorded, by family",
	}, []string{"family"})

	fallbackEngaged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medivault_audit_fallback_total",
		Help: "Events diverted to the local fallback buffer because the sink was unavailable",
	})
)

// Store persists audit events. Append-only; nothing updates or deletes.
type Store interface {
	Append(ctx context.Context, event Event) error
	Query(ctx context.Context, filter Filter) ([]Event, error)
}

// Recorder builds, redacts and persists audit events. Recording never fails
// into the caller: if the sink is down, events land in a bounded local
// buffer and the caller still gets an event ID back.
type Recorder struct {
	store  Store
	buffer *RingBuffer
	logger *slog.Logger
	salt   []byte
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the structured logger used for fallback emission.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithBufferCapacity sizes the local fallback buffer.
func WithBufferCapacity(n int) Option {
	return func(r *Recorder) { r.buffer = NewRingBuffer(n) }
}

// NewRecorder creates a Recorder. The salt pseudonymizes subject identifiers
// and must be stable per deployment, or hashed IDs stop correlating across
// events.
func NewRecorder(store Store, salt []byte, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "audit store is required")
	}
	if len(salt) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "subject hash salt is required")
	}

	r := &Recorder{
		store:  store,
		buffer: NewRingBuffer(10_000),
		logger: slog.Default(),
		salt:   salt,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record builds and persists one event, returning its ID synchronously.
// Secret fields are replaced with the redaction marker and subject
// identifiers with their salted hash before the event leaves this method;
// raw values are never retained.
func (r *Recorder) Record(ctx context.Context, level Level, eventType EventType, actor ActorContext, fields ...Field) string {
	event := r.build(ctx, level, eventType, actor, fields)
	r.persist(ctx, event)
	return event.ID
}

// RecordSecurityIncident records a high-severity event flagged as requiring
// external escalation. Used for the security-incident family: unauthorized
// access, suspected intrusion, integrity failures.
func (r *Recorder) RecordSecurityIncident(ctx context.Context, eventType EventType, actor ActorContext, fields ...Field) string {
	event := r.build(ctx, LevelCritical, eventType, actor, fields)
	event.Escalate = true
	r.persist(ctx, event)
	return event.ID
}

func (r *Recorder) build(ctx context.Context, level Level, eventType EventType, actor ActorContext, fields []Field) Event {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Family:    eventType.Family(),
		Level:     level,
		Timestamp: requestcontext.Now(ctx).UTC(),
		Actor:     actor,
		RequestID: requestcontext.RequestID(ctx),
	}

	for _, field := range fields {
		switch field.Role {
		case RoleSecret:
			if event.Fields == nil {
				event.Fields = make(map[string]string)
			}
			event.Fields[field.Key] = RedactionMarker
		case RoleSubjectID:
			hashed, err := crypto.HashHex([]byte(field.Value), r.salt)
			if err != nil {
				// Refuse to record the raw identifier under any
				// circumstances; the marker notes the gap.
				hashed = RedactionMarker
			}
			event.HashedSubjectID = hashed
		case RolePublic:
			if event.Fields == nil {
				event.Fields = make(map[string]string)
			}
			event.Fields[field.Key] = field.Value
		}
	}

	return event
}

// Query returns events visible to the filter's organization. An empty
// organization is rejected rather than widened.
func (r *Recorder) Query(ctx context.Context, filter Filter) ([]Event, error) {
	if filter.OrganizationID == "" {
		return nil, dErrors.New(dErrors.CodeForbidden, "organization scope is required")
	}
	events, err := r.store.Query(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "audit query failed")
	}
	return events, nil
}

func (r *Recorder) persist(ctx context.Context, event Event) {
	eventsRecorded.WithLabelValues(string(event.Family)).Inc()

	if err := r.store.Append(ctx, event); err != nil {
		fallbackEngaged.Inc()
		r.buffer.Enqueue(event)
		// The need for secondary recording is itself logged, with the
		// already-redacted event payload.
		r.logger.Warn("audit sink unavailable, event buffered locally",
			"event_id", event.ID,
			"event_type", event.Type,
			"level", event.Level,
			"error", err,
		)
	}
}

// Buffered returns the number of events waiting in the fallback buffer.
func (r *Recorder) Buffered() int { return r.buffer.Len() }

// DrainBuffer attempts to flush up to n buffered events back into the store.
// Returns how many were flushed. Events that still fail go back to the
// buffer.
func (r *Recorder) DrainBuffer(ctx context.Context, n int) int {
	batch := r.buffer.DequeueBatch(n)
	flushed := 0
	for i, event := range batch {
		if err := r.store.Append(ctx, event); err != nil {
			for _, remaining := range batch[i:] {
				r.buffer.Enqueue(remaining)
			}
			break
		}
		flushed++
	}
	return flushed
}
