package backend

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/promovista/app/internal/model"
)

// AccessClaims are the claims the client reads from a backend access token
type AccessClaims struct {
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParseAccessToken decodes the claims of an access token without verifying the
// signature. Only the user id and expiry are taken from it.
func ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	return claims, nil
}

// userFromClaims derives the user from the token subject and phone claim
func userFromClaims(claims *AccessClaims) (*model.User, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", err)
	}
	return &model.User{ID: id, Phone: claims.Phone}, nil
}

// tokenResponse is the session body returned by /verify and /token
type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`
}

// userResponse is the user object in auth API responses
type userResponse struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
}

// toSession converts a token response into a session. A response without an
// access token yields (nil, nil): the backend accepted the call but did not
// open a session.
func (r *tokenResponse) toSession(now time.Time) (*model.Session, error) {
	if r.AccessToken == "" {
		return nil, nil
	}

	s := &model.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
	if s.TokenType == "" {
		s.TokenType = "bearer"
	}

	claims, claimsErr := ParseAccessToken(r.AccessToken)

	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	case claimsErr == nil && claims.ExpiresAt != nil:
		s.ExpiresAt = claims.ExpiresAt.Time
	}

	if r.User != nil && r.User.ID != "" {
		id, err := uuid.Parse(r.User.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", r.User.ID, err)
		}
		s.User = &model.User{ID: id, Phone: r.User.Phone}
		if s.User.Phone == "" && claimsErr == nil {
			s.User.Phone = claims.Phone
		}
		return s, nil
	}

	if claimsErr != nil {
		return nil, claimsErr
	}
	user, err := userFromClaims(claims)
	if err != nil {
		return nil, err
	}
	s.User = user
	return s, nil
}
