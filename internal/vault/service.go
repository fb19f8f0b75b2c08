package vault

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"medivault/internal/audit"
	"medivault/internal/crypto"
	"medivault/internal/custodian"
	"medivault/internal/storage"
	dErrors "medivault/pkg/domain-errors"
	"medivault/pkg/platform/sentinel"
	"medivault/pkg/requestcontext"
)

var (
	recordsSealed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medivault",
		Subsystem: "vault",
		Name:      "records_sealed_total",
		Help:      "Records encrypted and handed to storage.",
	})
	recordsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medivault",
		Subsystem: "vault",
		Name:      "records_opened_total",
		Help:      "Records fetched from storage and decrypted.",
	})
	integrityFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medivault",
		Subsystem: "vault",
		Name:      "integrity_failures_total",
		Help:      "Decrypt attempts rejected by an integrity check.",
	})
)

// KeyIssuer is the slice of the custodian client the vault needs.
type KeyIssuer interface {
	IssueDataKey(ctx context.Context) (*custodian.DataKey, error)
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
}

// Service implements encryptForStorage / decryptFromStorage over the key
// custodian and the object storage collaborator.
type Service struct {
	keys     KeyIssuer
	store    storage.ObjectStore
	recorder *audit.Recorder
	logger   *slog.Logger

	maxRetries      uint64
	initialInterval time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMaxRetries bounds storage retry attempts beyond the first try.
func WithMaxRetries(n uint64) Option {
	return func(s *Service) { s.maxRetries = n }
}

func WithInitialInterval(d time.Duration) Option {
	return func(s *Service) { s.initialInterval = d }
}

func New(keys KeyIssuer, store storage.ObjectStore, recorder *audit.Recorder, opts ...Option) (*Service, error) {
	if keys == nil {
		return nil, errors.New("key issuer is required")
	}
	if store == nil {
		return nil, errors.New("object store is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}

	svc := &Service{
		keys:            keys,
		store:           store,
		recorder:        recorder,
		logger:          slog.Default(),
		maxRetries:      3,
		initialInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

const (
	metaKeyID    = "key_id"
	metaRecordID = "record_id"
	metaOrgID    = "organization_id"
)

func objectKey(meta RecordMetadata) string {
	return "records/" + meta.OrganizationID + "/" + meta.RecordID
}

// EncryptForStorage seals payload under a fresh data key and stores the blob
// together with the key's wrapped form. Each record gets its own key; the
// plaintext form is zeroed before returning.
func (s *Service) EncryptForStorage(ctx context.Context, payload any, meta RecordMetadata) (*StoredRecord, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	actor := actorFrom(ctx)

	key, err := s.keys.IssueDataKey(ctx)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeCustodianUnavailable) {
			s.recorder.Record(ctx, audit.LevelError, audit.EventCustodianOutage, actor,
				audit.Public("record_id", meta.RecordID),
				audit.Public("operation", "issue_data_key"),
			)
		}
		return nil, err
	}
	defer crypto.ZeroKey(key.Plaintext)

	s.recorder.Record(ctx, audit.LevelInfo, audit.EventDataKeyIssued, actor,
		audit.Public("key_id", key.KeyID),
		audit.Public("record_id", meta.RecordID),
	)

	sealed, err := crypto.SealRecord(payload, key.Plaintext, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	blob, err := (&storedEnvelope{
		Version:    envelopeVersion,
		KeyID:      key.KeyID,
		WrappedKey: key.Wrapped,
		Record:     sealed,
	}).marshal()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not frame stored blob")
	}

	objKey := objectKey(meta)
	blobMeta := storage.Metadata{
		metaKeyID:    key.KeyID,
		metaRecordID: meta.RecordID,
		metaOrgID:    meta.OrganizationID,
	}
	if meta.ContentType != "" {
		blobMeta["content_type"] = meta.ContentType
	}

	location, err := s.putWithRetry(ctx, objKey, blob, blobMeta)
	if err != nil {
		s.recorder.Record(ctx, audit.LevelError, audit.EventStorageOutage, actor,
			audit.Public("record_id", meta.RecordID),
			audit.Public("operation", "put"),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "record could not be stored")
	}

	recordsSealed.Inc()
	fields := []audit.Field{
		audit.Public("record_id", meta.RecordID),
		audit.Public("key_id", key.KeyID),
	}
	if meta.SubjectID != "" {
		fields = append(fields, audit.Subject("patient_id", meta.SubjectID))
	}
	s.recorder.Record(ctx, audit.LevelInfo, audit.EventRecordUploaded, actor, fields...)

	return &StoredRecord{
		Location:    location,
		ObjectKey:   objKey,
		KeyID:       key.KeyID,
		EncryptedAt: sealed.EncryptedAt,
	}, nil
}

// DecryptFromStorage fetches the blob at objKey, unwraps its data key and
// opens the sealed record into out. Integrity failures are audited as
// security incidents and surfaced, never masked.
func (s *Service) DecryptFromStorage(ctx context.Context, objKey string, out any) (*StoredRecord, error) {
	if objKey == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "object key is required")
	}
	actor := actorFrom(ctx)

	obj, err := s.getWithRetry(ctx, objKey)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		s.recorder.Record(ctx, audit.LevelError, audit.EventStorageOutage, actor,
			audit.Public("object_key", objKey),
			audit.Public("operation", "get"),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "record could not be fetched")
	}

	env, err := unmarshalEnvelope(obj.Data)
	if err != nil {
		s.auditIntegrityFailure(ctx, actor, objKey, err)
		return nil, err
	}

	plain, err := s.keys.Unwrap(ctx, env.WrappedKey)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeCustodianUnavailable) {
			s.recorder.Record(ctx, audit.LevelError, audit.EventCustodianOutage, actor,
				audit.Public("object_key", objKey),
				audit.Public("operation", "unwrap"),
			)
		}
		return nil, err
	}
	defer crypto.ZeroKey(plain)

	if err := crypto.OpenRecord(env.Record, plain, out); err != nil {
		if dErrors.HasCode(err, dErrors.CodeIntegrity) || dErrors.HasCode(err, dErrors.CodeMetadataMismatch) {
			s.auditIntegrityFailure(ctx, actor, objKey, err)
		}
		return nil, err
	}

	recordsOpened.Inc()
	s.recorder.Record(ctx, audit.LevelInfo, audit.EventRecordAccessed, actor,
		audit.Public("object_key", objKey),
		audit.Public("key_id", env.KeyID),
	)

	return &StoredRecord{
		Location:    obj.Key,
		ObjectKey:   obj.Key,
		KeyID:       env.KeyID,
		EncryptedAt: env.Record.EncryptedAt,
	}, nil
}

// Delete removes a stored record. Deleting a missing record is not an error;
// the deletion is audited either way.
func (s *Service) Delete(ctx context.Context, objKey string) error {
	if objKey == "" {
		return dErrors.New(dErrors.CodeValidation, "object key is required")
	}
	if err := s.store.Delete(ctx, objKey); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "record could not be deleted")
	}
	s.recorder.Record(ctx, audit.LevelInfo, audit.EventRecordDeleted, actorFrom(ctx),
		audit.Public("object_key", objKey),
	)
	return nil
}

// ListRecords returns the object keys stored for an organization.
func (s *Service) ListRecords(ctx context.Context, organizationID string) ([]string, error) {
	if organizationID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "organization ID is required")
	}
	keys, err := s.store.List(ctx, "records/"+organizationID+"/")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "records could not be listed")
	}
	return keys, nil
}

func (s *Service) auditIntegrityFailure(ctx context.Context, actor audit.ActorContext, objKey string, cause error) {
	integrityFailures.Inc()
	s.recorder.RecordSecurityIncident(ctx, audit.EventIntegrityFailure, actor,
		audit.Public("object_key", objKey),
		audit.Public("cause", cause.Error()),
	)
}

func (s *Service) putWithRetry(ctx context.Context, key string, blob []byte, meta storage.Metadata) (string, error) {
	var location string
	err := backoff.Retry(func() error {
		loc, err := s.store.Put(ctx, key, blob, meta)
		if err != nil {
			s.logger.Warn("storage put failed", "object_key", key, "error", err)
			return err
		}
		location = loc
		return nil
	}, s.retryPolicy(ctx))
	return location, err
}

func (s *Service) getWithRetry(ctx context.Context, key string) (*storage.Object, error) {
	var obj *storage.Object
	err := backoff.Retry(func() error {
		got, err := s.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Absence is an answer, not an outage.
				return backoff.Permanent(err)
			}
			s.logger.Warn("storage get failed", "object_key", key, "error", err)
			return err
		}
		obj = got
		return nil
	}, s.retryPolicy(ctx))
	return obj, err
}

func (s *Service) retryPolicy(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(s.initialInterval),
		), s.maxRetries),
		ctx,
	)
}

func actorFrom(ctx context.Context) audit.ActorContext {
	return audit.ActorContext{
		UserID:         requestcontext.ActorID(ctx),
		SessionID:      requestcontext.SessionID(ctx),
		OrganizationID: requestcontext.OrganizationID(ctx),
		IP:             requestcontext.ClientIP(ctx),
	}
}
