// Package audit converts security-relevant occurrences into structured,
// redacted, classified events. Nothing in this package ever raises into the
// operation being audited.
package audit

import "time"

// Family classifies audit events by their security role. Families drive
// default severity and retention policy downstream.
type Family string

const (
	FamilyAuthentication   Family = "authentication"
	FamilyAccess           Family = "access"
	FamilyDataLifecycle    Family = "data_lifecycle"
	FamilySystem           Family = "system"
	FamilySecurityIncident Family = "security_incident"
)

// Level is the severity attached to an event.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// EventType names a security-relevant occurrence.
type EventType string

const (
	// Authentication events.
	EventOperatorLogin    EventType = "operator_login"
	EventAuthFailed       EventType = "auth_failed"
	EventRateLimitTripped EventType = "rate_limit_tripped"
	EventSessionRevoked   EventType = "session_revoked"
	EventSessionExpired   EventType = "session_expired"
	EventTokenRejected    EventType = "token_rejected"

	// Access events.
	EventRecordAccessed EventType = "phi_accessed"
	EventEventsQueried  EventType = "audit_queried"

	// Data-lifecycle events.
	EventRecordUploaded EventType = "phi_uploaded"
	EventRecordDeleted  EventType = "phi_deleted"
	EventDataKeyIssued  EventType = "data_key_issued"

	// System events.
	EventSweepCompleted  EventType = "session_sweep_completed"
	EventAuditFallback   EventType = "audit_fallback_engaged"
	EventCustodianOutage EventType = "key_custodian_outage"
	EventStorageOutage   EventType = "storage_outage"

	// Security incidents.
	EventIntegrityFailure   EventType = "integrity_failure"
	EventUnauthorizedAccess EventType = "unauthorized_access"
	EventIntrusionSuspected EventType = "intrusion_suspected"
)

// eventFamilies maps each event type to its family. Unknown types fall back
// to FamilySystem.
var eventFamilies = map[EventType]Family{
	EventOperatorLogin:    FamilyAuthentication,
	EventAuthFailed:       FamilyAuthentication,
	EventRateLimitTripped: FamilyAuthentication,
	EventSessionRevoked:   FamilyAuthentication,
	EventSessionExpired:   FamilyAuthentication,
	EventTokenRejected:    FamilyAuthentication,

	EventRecordAccessed: FamilyAccess,
	EventEventsQueried:  FamilyAccess,

	EventRecordUploaded: FamilyDataLifecycle,
	EventRecordDeleted:  FamilyDataLifecycle,
	EventDataKeyIssued:  FamilyDataLifecycle,

	EventSweepCompleted:  FamilySystem,
	EventAuditFallback:   FamilySystem,
	EventCustodianOutage: FamilySystem,
	EventStorageOutage:   FamilySystem,

	EventIntegrityFailure:   FamilySecurityIncident,
	EventUnauthorizedAccess: FamilySecurityIncident,
	EventIntrusionSuspected: FamilySecurityIncident,
}

// Family returns this event type's family.
func (e EventType) Family() Family {
	if family, ok := eventFamilies[e]; ok {
		return family
	}
	return FamilySystem
}

// FieldRole is the closed set of roles attachable to an event field. Roles
// are checked exhaustively at record time; there is no name-pattern fallback,
// so a sensitive field cannot slip through on an unlucky name.
type FieldRole int

const (
	// RolePublic fields are recorded as-is.
	RolePublic FieldRole = iota
	// RoleSecret fields (credentials, tokens, session material) are
	// replaced with the redaction marker.
	RoleSecret
	// RoleSubjectID fields (patient and subject identifiers) are replaced
	// by a salted hash; the raw value is discarded.
	RoleSubjectID
)

// RedactionMarker replaces secret values in recorded events.
const RedactionMarker = "[REDACTED]"

// Field is one key/value pair submitted for recording, tagged with its role.
type Field struct {
	Key   string
	Value string
	Role  FieldRole
}

// Public tags a field as safe to record verbatim.
func Public(key, value string) Field { return Field{Key: key, Value: value, Role: RolePublic} }

// Secret tags a field for redaction.
func Secret(key, value string) Field { return Field{Key: key, Value: value, Role: RoleSecret} }

// Subject tags a field as a subject identifier to be hashed.
func Subject(key, value string) Field { return Field{Key: key, Value: value, Role: RoleSubjectID} }

// ActorContext identifies who triggered an event. Sessions are referenced by
// ID only; the recorder never owns session state.
type ActorContext struct {
	UserID         string `json:"user_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	IP             string `json:"ip,omitempty"`
}

// Event is immutable after creation. Retention and archival are external
// concerns; the core only appends.
type Event struct {
	ID              string            `json:"id"`
	Type            EventType         `json:"type"`
	Family          Family            `json:"family"`
	Level           Level             `json:"level"`
	Timestamp       time.Time         `json:"timestamp"`
	Actor           ActorContext      `json:"actor"`
	HashedSubjectID string            `json:"hashed_subject_id,omitempty"`
	Fields          map[string]string `json:"fields,omitempty"`
	Escalate        bool              `json:"escalate,omitempty"`
	RequestID       string            `json:"request_id,omitempty"`
}

// Filter narrows a query over recorded events. OrganizationID is mandatory:
// callers only ever see their own organization's trail.
type Filter struct {
	OrganizationID string
	ActorID        string
	Types          []EventType
	Level          Level
	From           time.Time
	To             time.Time
	Limit          int
}
