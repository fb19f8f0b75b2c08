package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"medivault/internal/audit"
	auditmem "medivault/internal/audit/store/memory"
	"medivault/internal/auth/models"
	"medivault/internal/auth/store/lockout"
	"medivault/internal/auth/store/session"
	"medivault/internal/identity"
	dErrors "medivault/pkg/domain-errors"
	"medivault/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	identity *identity.InMemoryStore
	sessions *session.InMemoryStore
	failures *lockout.InMemoryStore
	events   *auditmem.InMemoryStore
	svc      *Service

	now time.Time
	ctx context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.identity = identity.NewInMemoryStore()
	s.sessions = session.New()
	s.failures = lockout.New()
	s.events = auditmem.New()

	recorder, err := audit.NewRecorder(s.events, []byte("0123456789abcdef0123456789abcdef"))
	s.Require().NoError(err)

	tokens := NewTokenService([]byte("test-signing-key-test-signing-ke"), "medivault", "medivault-api")

	s.svc, err = New(s.identity, s.sessions, s.failures, tokens, recorder)
	s.Require().NoError(err)

	s.Require().NoError(s.identity.Seed(identity.Credential{
		UserID:         "u-1",
		Username:       "dr.osei",
		OrganizationID: "org-1",
		Role:           "clinician",
		Permissions:    []string{"records:read", "records:write"},
		IsActive:       true,
	}, "correct horse battery"))
	s.Require().NoError(s.identity.Seed(identity.Credential{
		UserID:         "u-2",
		Username:       "suspended",
		OrganizationID: "org-1",
		Role:           "clinician",
		IsActive:       false,
	}, "still knows it"))

	s.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *ServiceSuite) login() *models.AuthenticateResult {
	res, err := s.svc.Authenticate(s.ctx, models.AuthenticateRequest{
		Username: "dr.osei",
		Password: "correct horse battery",
		Client:   models.ClientContext{IP: "10.0.0.7"},
	})
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) TestAuthenticateIssuesUsableSession() {
	res := s.login()

	s.NotEmpty(res.Token)
	s.Equal("u-1", res.Session.UserID)
	s.Equal("org-1", res.Session.OrganizationID)
	s.Equal(models.SessionStatusActive, res.Session.Status)
	s.Equal(s.now.Add(time.Hour), res.Session.ExpiresAt)

	sess, err := s.svc.Verify(s.ctx, res.Token)
	s.Require().NoError(err)
	s.Equal(res.Session.ID, sess.ID)
	s.True(sess.HasPermission("records:read"))
	s.False(sess.HasPermission("records:purge"))
}

func (s *ServiceSuite) TestWrongPasswordAndUnknownUserAreIndistinguishable() {
	_, errWrong := s.svc.Authenticate(s.ctx, models.AuthenticateRequest{
		Username: "dr.osei", Password: "nope",
	})
	_, errUnknown := s.svc.Authenticate(s.ctx, models.AuthenticateRequest{
		Username: "nobody", Password: "nope",
	})

	s.Require().Error(errWrong)
	s.Require().Error(errUnknown)
	s.True(dErrors.HasCode(errWrong, dErrors.CodeInvalidCredentials))
	s.True(dErrors.HasCode(errUnknown, dErrors.CodeInvalidCredentials))
	s.Equal(errWrong.Error(), errUnknown.Error())
}

func (s *ServiceSuite) TestDisabledAccountRejectedEvenWithCorrectPassword() {
	_, err := s.svc.Authenticate(s.ctx, models.AuthenticateRequest{
		Username: "suspended", Password: "still knows it",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeAccountDisabled))
}

func (s *ServiceSuite) TestRepeatedFailuresTripRateLimit() {
	req := models.AuthenticateRequest{
		Username: "dr.osei",
		Password: "wrong every time",
		Client:   models.ClientContext{IP: "10.0.0.7"},
	}

	for i := 0; i < 5; i++ {
		_, err := s.svc.Authenticate(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials), "attempt %d", i+1)
	}

	_, err := s.svc.Authenticate(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

	// Even the right password is refused while the window holds.
	req.Password = "correct horse battery"
	_, err = s.svc.Authenticate(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
}

func (s *ServiceSuite) TestRateLimitKeyedByClientIP() {
	bad := models.AuthenticateRequest{
		Username: "dr.osei",
		Password: "wrong every time",
		Client:   models.ClientContext{IP: "203.0.113.50"},
	}
	for i := 0; i < 6; i++ {
		_, err := s.svc.Authenticate(s.ctx, bad)
		s.Require().Error(err)
	}

	// The legitimate user on another address is unaffected.
	res, err := s.svc.Authenticate(s.ctx, models.AuthenticateRequest{
		Username: "dr.osei",
		Password: "correct horse battery",
		Client:   models.ClientContext{IP: "10.0.0.7"},
	})
	s.Require().NoError(err)
	s.NotNil(res.Session)
}

func (s *ServiceSuite) TestRateLimitWindowSlides() {
	req := models.AuthenticateRequest{
		Username: "dr.osei",
		Password: "wrong",
		Client:   models.ClientContext{IP: "10.0.0.7"},
	}
	for i := 0; i < 5; i++ {
		_, err := s.svc.Authenticate(s.ctx, req)
		s.Require().Error(err)
	}
	_, err := s.svc.Authenticate(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

	// Sixteen minutes later the fifteen-minute window has rolled past the
	// old failures.
	later := s.at(s.now.Add(16 * time.Minute))
	req.Password = "correct horse battery"
	res, err := s.svc.Authenticate(later, req)
	s.Require().NoError(err)
	s.NotNil(res.Session)
}

func (s *ServiceSuite) TestSuccessfulLoginClearsFailureHistory() {
	req := models.AuthenticateRequest{
		Username: "dr.osei",
		Password: "wrong",
		Client:   models.ClientContext{IP: "10.0.0.7"},
	}
	for i := 0; i < 4; i++ {
		_, err := s.svc.Authenticate(s.ctx, req)
		s.Require().Error(err)
	}

	req.Password = "correct horse battery"
	_, err := s.svc.Authenticate(s.ctx, req)
	s.Require().NoError(err)

	// The slate is clean: four more wrong guesses do not trip the limit.
	req.Password = "wrong"
	for i := 0; i < 4; i++ {
		_, err := s.svc.Authenticate(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	}
}

func (s *ServiceSuite) TestVerifyAfterExpiry() {
	res := s.login()

	afterExpiry := s.at(s.now.Add(time.Hour + time.Second))
	_, err := s.svc.Verify(afterExpiry, res.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeSessionExpired))
}

func (s *ServiceSuite) TestRevocationIsPermanent() {
	res := s.login()

	s.Require().NoError(s.svc.Revoke(s.ctx, res.Session.ID))

	// The token is still inside its lifetime; revocation wins anyway.
	_, err := s.svc.Verify(s.ctx, res.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))

	_, err = s.svc.Verify(s.at(s.now.Add(30*time.Minute)), res.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
}

func (s *ServiceSuite) TestRevokeIsIdempotent() {
	res := s.login()

	s.Require().NoError(s.svc.Revoke(s.ctx, res.Session.ID))
	s.Require().NoError(s.svc.Revoke(s.ctx, res.Session.ID))
	s.Require().NoError(s.svc.Revoke(s.ctx, "never-existed"))
}

func (s *ServiceSuite) TestTamperedTokenRejected() {
	res := s.login()

	tampered := res.Token[:len(res.Token)-2] + "xx"
	_, err := s.svc.Verify(s.ctx, tampered)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
}

func (s *ServiceSuite) TestConcurrentLoginsGetDistinctSessions() {
	const n = 16
	ids := make([]string, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := s.svc.Authenticate(s.ctx, models.AuthenticateRequest{
				Username: "dr.osei",
				Password: "correct horse battery",
				Client:   models.ClientContext{IP: "10.0.0.7"},
			})
			if err != nil {
				return err
			}
			ids[i] = res.Session.ID
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		s.NotEmpty(id)
		seen[id] = struct{}{}
	}
	s.Len(seen, n)
}

func (s *ServiceSuite) TestAuthEventsLandInAuditTrail() {
	res := s.login()
	s.Require().NoError(s.svc.Revoke(s.ctx, res.Session.ID))

	events, err := s.events.Query(s.ctx, audit.Filter{OrganizationID: "org-1"})
	s.Require().NoError(err)

	var types []audit.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	s.Contains(types, audit.EventOperatorLogin)
}
