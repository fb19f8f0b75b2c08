package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"medivault/internal/auth/models"
	dErrors "medivault/pkg/domain-errors"
)

// Claims is the identity claims contract carried by issued tokens. The exact
// field set is part of the session manager's interface; transports must not
// extend it.
type Claims struct {
	UserID         string   `json:"user_id"`
	Username       string   `json:"username"`
	OrganizationID string   `json:"organization_id"`
	Role           string   `json:"role"`
	Permissions    []string `json:"permissions"`
	SessionID      string   `json:"session_id"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed session tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewTokenService(signingKey []byte, issuer, audience string) *TokenService {
	return &TokenService{
		signingKey: signingKey,
		issuer:     issuer,
		audience:   audience,
	}
}

// Issue produces a signed, time-bounded token carrying the session's
// identity claims. Token lifetime tracks the session's.
func (s *TokenService) Issue(session *models.Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:         session.UserID,
		Username:       session.Username,
		OrganizationID: session.OrganizationID,
		Role:           session.Role,
		Permissions:    session.Permissions,
		SessionID:      session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, nil
}

// Validate checks signature and expiry and returns the embedded claims.
func (s *TokenService) Validate(tokenString string, now time.Time) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeSessionExpired, "session expired")
		}
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token")
	}
	return claims, nil
}
