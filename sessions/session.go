package sessions

import (
	"fmt"
	"time"

	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Session is the authenticated identity of the device user.
// At most one is persisted per device; a new login overwrites it.
type Session struct {
	Token     string    `json:"token"`                // Opaque bearer credential (an HS256 JWT from the backend)
	UserID    string    `json:"user_id"`              // Backend user id
	Role      Role      `json:"role"`                 // patient or doctor
	Name      string    `json:"name,omitempty"`       // Display name, when known
	Email     string    `json:"email,omitempty"`      // Login email, when known
	ExpiresAt time.Time `json:"expires_at,omitempty"` // Zero when the token carries no exp claim
}

// Validate normalizes the role and rejects sessions that cannot authenticate anything.
func (s *Session) Validate() error {
	if s.Token == "" {
		return fmt.Errorf("%w: session token is required", medErrors.ErrInvalidInput)
	}
	if s.Role == "" {
		s.Role = RolePatient
	}
	if !s.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", medErrors.ErrInvalidInput, s.Role)
	}
	return nil
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
