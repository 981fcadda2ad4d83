package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity attached to a session. It is read-only on the client.
type User struct {
	ID    uuid.UUID `json:"id"`
	Phone string    `json:"phone"`
}

// Session is the token bundle issued by the auth backend for an authenticated user
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// Expired reports whether the access token is expired, or will be within leeway.
func (s *Session) Expired(now time.Time, leeway time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(s.ExpiresAt)
}

// EventKind names an auth state transition reported by the backend
type EventKind string

const (
	EventInitialSession EventKind = "INITIAL_SESSION"
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventUserUpdated    EventKind = "USER_UPDATED"
)

// AuthEvent is a session-change notification. Session is nil for SIGNED_OUT.
type AuthEvent struct {
	Kind    EventKind
	Session *Session
}

// ProfileStatus tracks whether the signed-in user has completed the business profile
type ProfileStatus int

const (
	ProfileUnknown ProfileStatus = iota
	ProfileIncomplete
	ProfileComplete
)

func (p ProfileStatus) String() string {
	switch p {
	case ProfileIncomplete:
		return "incomplete"
	case ProfileComplete:
		return "complete"
	default:
		return "unknown"
	}
}
