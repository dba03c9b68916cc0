// Package models holds the login session records.
package models

import (
	"time"

	dErrors "grc/pkg/domain-errors"
)

// Session is a signed-in browser or API client.
type Session struct {
	ID        string     `json:"id"`
	PersonID  int64      `json:"person_id"`
	Device    string     `json:"device,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the session can still authenticate requests.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// ApplyRevocation ends the session; revoking twice keeps the first time.
func (s *Session) ApplyRevocation(at time.Time) {
	if s.RevokedAt == nil {
		s.RevokedAt = &at
	}
}

// Validate checks a session before it is stored.
func (s *Session) Validate() error {
	switch {
	case s.ID == "":
		return dErrors.New(dErrors.CodeInvariantViolation, "session id is required")
	case s.PersonID == 0:
		return dErrors.New(dErrors.CodeInvariantViolation, "session person is required")
	case !s.ExpiresAt.After(s.CreatedAt):
		return dErrors.New(dErrors.CodeInvariantViolation, "session must expire after it is created")
	}
	return nil
}
