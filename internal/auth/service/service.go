// Package service implements the session manager: operator authentication,
// token issuance and verification, revocation, and failure throttling.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"

	"medivault/internal/audit"
	"medivault/internal/auth/models"
	"medivault/internal/auth/store/lockout"
	"medivault/internal/auth/store/session"
	"medivault/internal/identity"
	dErrors "medivault/pkg/domain-errors"
	"medivault/pkg/platform/sentinel"
	"medivault/pkg/requestcontext"
)

var (
	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medivault_auth_attempts_total",
		Help: "Authentication attempts by outcome",
	}, []string{"outcome"})

	sessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medivault_sessions_swept_total",
		Help: "Expired sessions removed by the background sweep",
	})
)

// dummyHash keeps credential checks constant-shape when the username is
// unknown: bcrypt runs either way, so response timing does not reveal
// whether an account exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// genericAuthMessage is the only credential-failure message callers ever
// see; the precise cause lives in the audit trail.
const genericAuthMessage = "invalid username or password"

// Config carries the session manager's tunables.
type Config struct {
	SessionTTL    time.Duration
	MaxFailures   int
	FailureWindow time.Duration
}

// DefaultConfig matches the documented throttling contract: five failures
// per rolling fifteen-minute window, hour-long sessions.
func DefaultConfig() Config {
	return Config{
		SessionTTL:    time.Hour,
		MaxFailures:   5,
		FailureWindow: 15 * time.Minute,
	}
}

// Service owns session records. Sessions are created here on successful
// authentication and mutated nowhere else.
type Service struct {
	identity identity.Store
	sessions session.Store
	failures lockout.Store
	tokens   *TokenService
	recorder *audit.Recorder
	logger   *slog.Logger
	config   Config
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

func New(
	identityStore identity.Store,
	sessionStore session.Store,
	failureStore lockout.Store,
	tokens *TokenService,
	recorder *audit.Recorder,
	opts ...Option,
) (*Service, error) {
	if identityStore == nil || sessionStore == nil || failureStore == nil {
		return nil, errors.New("identity, session and lockout stores are required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}

	svc := &Service{
		identity: identityStore,
		sessions: sessionStore,
		failures: failureStore,
		tokens:   tokens,
		recorder: recorder,
		logger:   slog.Default(),
		config:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Authenticate verifies a credential and issues a session plus signed token.
// Unknown-user and wrong-password outcomes are indistinguishable to the
// caller; the audit trail records the precise cause.
func (s *Service) Authenticate(ctx context.Context, req models.AuthenticateRequest) (*models.AuthenticateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	key := lockout.Key(req.Username, req.Client.IP)
	actor := audit.ActorContext{IP: req.Client.IP}

	count, err := s.failures.Failures(ctx, key, now, s.config.FailureWindow)
	if err != nil {
		// Throttling state being unreachable must not disable login, but it
		// is worth an operator's attention.
		s.logger.Error("lockout store unreachable", "error", err)
	}
	if count >= s.config.MaxFailures {
		authAttempts.WithLabelValues("rate_limited").Inc()
		s.recorder.Record(ctx, audit.LevelWarning, audit.EventRateLimitTripped, actor,
			audit.Public("username", req.Username),
			audit.Public("failures_in_window", strconv.Itoa(count)),
		)
		return nil, dErrors.New(dErrors.CodeRateLimited, "too many failed attempts, try again later")
	}

	cred, err := s.identity.LookupCredential(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Burn a bcrypt comparison anyway so unknown users cost the
			// same as wrong passwords.
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(req.Password))
			return nil, s.failAuth(ctx, key, req.Username, actor, "unknown_user", now)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential lookup failed")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.failAuth(ctx, key, req.Username, actor, "wrong_password", now)
	}

	if !cred.IsActive {
		authAttempts.WithLabelValues("disabled").Inc()
		s.recorder.Record(ctx, audit.LevelWarning, audit.EventAuthFailed, actor,
			audit.Public("username", req.Username),
			audit.Public("reason", "account_disabled"),
		)
		return nil, dErrors.New(dErrors.CodeAccountDisabled, "account is disabled")
	}

	if err := s.failures.Clear(ctx, key); err != nil {
		s.logger.Warn("could not clear failure history", "error", err)
	}

	sess := &models.Session{
		ID:             uuid.NewString(),
		UserID:         cred.UserID,
		Username:       cred.Username,
		OrganizationID: cred.OrganizationID,
		Role:           cred.Role,
		Permissions:    cred.Permissions,
		Client:         req.Client,
		Status:         models.SessionStatusActive,
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.config.SessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not persist session")
	}

	token, err := s.tokens.Issue(sess)
	if err != nil {
		return nil, err
	}

	authAttempts.WithLabelValues("success").Inc()
	s.recorder.Record(ctx, audit.LevelInfo, audit.EventOperatorLogin,
		audit.ActorContext{
			UserID:         sess.UserID,
			SessionID:      sess.ID,
			OrganizationID: sess.OrganizationID,
			IP:             req.Client.IP,
		},
		audit.Public("username", req.Username),
	)

	return &models.AuthenticateResult{Session: sess, Token: token}, nil
}

func (s *Service) failAuth(ctx context.Context, key, username string, actor audit.ActorContext, reason string, now time.Time) error {
	count, err := s.failures.RecordFailure(ctx, key, now, s.config.FailureWindow)
	if err != nil {
		s.logger.Error("could not record auth failure", "error", err)
	}

	authAttempts.WithLabelValues("failed").Inc()
	s.recorder.Record(ctx, audit.LevelWarning, audit.EventAuthFailed, actor,
		audit.Public("username", username),
		audit.Public("reason", reason),
		audit.Public("failures_in_window", strconv.Itoa(count)),
	)

	return dErrors.New(dErrors.CodeInvalidCredentials, genericAuthMessage)
}

// Verify checks a token's signature and expiry and that its session is still
// usable. Revocation wins over everything: once Revoke is visible in the
// store, no subsequent Verify succeeds.
func (s *Service) Verify(ctx context.Context, token string) (*models.Session, error) {
	now := requestcontext.Now(ctx)

	claims, err := s.tokens.Validate(token, now)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}

	if sess.Status == models.SessionStatusRevoked {
		s.recorder.Record(ctx, audit.LevelWarning, audit.EventTokenRejected,
			audit.ActorContext{UserID: sess.UserID, SessionID: sess.ID, OrganizationID: sess.OrganizationID},
			audit.Public("reason", "session_revoked"),
		)
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token")
	}
	if sess.IsExpiredAt(now) {
		return nil, dErrors.New(dErrors.CodeSessionExpired, "session expired")
	}
	return sess, nil
}


// Revoke marks a session revoked. Idempotent: revoking a missing or
// already-revoked session succeeds without complaint.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return dErrors.New(dErrors.CodeValidation, "session ID is required")
	}

	now := requestcontext.Now(ctx)
	if err := s.sessions.Revoke(ctx, sessionID, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not revoke session")
	}

	s.recorder.Record(ctx, audit.LevelInfo, audit.EventSessionRevoked,
		audit.ActorContext{SessionID: sessionID, UserID: requestcontext.ActorID(ctx)},
	)
	return nil
}
