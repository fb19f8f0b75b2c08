//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"medivault/internal/audit"
	"medivault/internal/audit/store/postgres"
	"medivault/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.pg.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "audit_events"))
}

func makeEvent(orgID string, eventType audit.EventType, level audit.Level, at time.Time) audit.Event {
	return audit.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Family:    eventType.Family(),
		Level:     level,
		Timestamp: at,
		Actor: audit.ActorContext{
			UserID:         "u-1",
			SessionID:      "sess-1",
			OrganizationID: orgID,
			IP:             "10.0.0.1",
		},
		Fields:    map[string]string{"record_id": "rec-1"},
		RequestID: "req-1",
	}
}

func (s *PostgresStoreSuite) TestAppendAndQuery() {
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Microsecond)
	event := makeEvent("org-1", audit.EventRecordUploaded, audit.LevelInfo, at)
	event.HashedSubjectID = "deadbeef"

	s.Require().NoError(s.store.Append(ctx, event))

	got, err := s.store.Query(ctx, audit.Filter{OrganizationID: "org-1"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(event.ID, got[0].ID)
	s.Equal(audit.EventRecordUploaded, got[0].Type)
	s.Equal(audit.FamilyDataLifecycle, got[0].Family)
	s.Equal(audit.LevelInfo, got[0].Level)
	s.True(got[0].Timestamp.Equal(at))
	s.Equal(event.Actor, got[0].Actor)
	s.Equal("deadbeef", got[0].HashedSubjectID)
	s.Equal(event.Fields, got[0].Fields)
	s.Equal("req-1", got[0].RequestID)
}

func (s *PostgresStoreSuite) TestEmptyOptionalColumnsRoundtrip() {
	ctx := context.Background()
	event := makeEvent("org-1", audit.EventOperatorLogin, audit.LevelInfo, time.Now().UTC())
	event.Fields = nil
	event.RequestID = ""

	s.Require().NoError(s.store.Append(ctx, event))

	got, err := s.store.Query(ctx, audit.Filter{OrganizationID: "org-1"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Empty(got[0].HashedSubjectID)
	s.Empty(got[0].RequestID)
	s.Empty(got[0].Fields)
}

func (s *PostgresStoreSuite) TestQueryIsScopedToOrganization() {
	ctx := context.Background()
	now := time.Now().UTC()
	s.Require().NoError(s.store.Append(ctx, makeEvent("org-1", audit.EventRecordAccessed, audit.LevelInfo, now)))
	s.Require().NoError(s.store.Append(ctx, makeEvent("org-2", audit.EventRecordAccessed, audit.LevelInfo, now)))

	got, err := s.store.Query(ctx, audit.Filter{OrganizationID: "org-1"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("org-1", got[0].Actor.OrganizationID)
}

func (s *PostgresStoreSuite) TestQueryFilters() {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	login := makeEvent("org-1", audit.EventOperatorLogin, audit.LevelInfo, base)
	upload := makeEvent("org-1", audit.EventRecordUploaded, audit.LevelInfo, base.Add(time.Minute))
	incident := makeEvent("org-1", audit.EventIntegrityFailure, audit.LevelCritical, base.Add(2*time.Minute))
	incident.Actor.UserID = "u-2"
	incident.Escalate = true
	for _, e := range []audit.Event{login, upload, incident} {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	s.Run("by type", func() {
		got, err := s.store.Query(ctx, audit.Filter{
			OrganizationID: "org-1",
			Types:          []audit.EventType{audit.EventRecordUploaded, audit.EventIntegrityFailure},
		})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(upload.ID, got[0].ID)
		s.Equal(incident.ID, got[1].ID)
	})

	s.Run("by level", func() {
		got, err := s.store.Query(ctx, audit.Filter{OrganizationID: "org-1", Level: audit.LevelCritical})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(incident.ID, got[0].ID)
		s.True(got[0].Escalate)
	})

	s.Run("by actor", func() {
		got, err := s.store.Query(ctx, audit.Filter{OrganizationID: "org-1", ActorID: "u-2"})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(incident.ID, got[0].ID)
	})

	s.Run("by time range", func() {
		got, err := s.store.Query(ctx, audit.Filter{
			OrganizationID: "org-1",
			From:           base.Add(30 * time.Second),
			To:             base.Add(90 * time.Second),
		})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(upload.ID, got[0].ID)
	})

	s.Run("with limit", func() {
		got, err := s.store.Query(ctx, audit.Filter{OrganizationID: "org-1", Limit: 2})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(login.ID, got[0].ID)
	})
}

func (s *PostgresStoreSuite) TestQueryOrdersByTime() {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// Append newest first to prove ordering comes from occurred_at.
	for i := 3; i >= 0; i-- {
		e := makeEvent("org-1", audit.EventRecordAccessed, audit.LevelInfo, base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.store.Append(ctx, e))
	}

	got, err := s.store.Query(ctx, audit.Filter{OrganizationID: "org-1"})
	s.Require().NoError(err)
	s.Require().Len(got, 4)
	for i := 1; i < len(got); i++ {
		s.True(got[i].Timestamp.After(got[i-1].Timestamp))
	}
}

func (s *PostgresStoreSuite) TestEnsureSchemaIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.store.EnsureSchema(ctx))
	s.Require().NoError(s.store.EnsureSchema(ctx))
}
