// Package token signs and validates session tokens.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "grc/pkg/domain-errors"
	mwauth "grc/pkg/platform/middleware/auth"
)

// Claims are the JWT claims of a session token.
type Claims struct {
	PersonID  int64  `json:"person_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Service handles session token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Issue signs a token for the session.
func (s *Service) Issue(personID int64, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		PersonID:  personID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(personID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := t.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}
	return signed, nil
}

// Parse validates the signature, issuer and expiry of a token.
func (s *Service) Parse(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.PersonID == 0 || claims.SessionID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return claims, nil
}

// ValidateToken adapts Parse to the session middleware.
func (s *Service) ValidateToken(raw string) (*mwauth.SessionClaims, error) {
	c, err := s.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &mwauth.SessionClaims{PersonID: c.PersonID, SessionID: c.SessionID}, nil
}
