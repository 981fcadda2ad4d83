package screen

import (
	"context"
	"errors"

	"github.com/promovista/app/internal/session"
)

// MsgSignOutFailed is alerted when the backend refuses to end the session
const MsgSignOutFailed = "Could not sign out."

// ErrNoUser is returned by actions that need a signed-in user
var ErrNoUser = errors.New("no signed-in user")

// SignOuter ends the current session
type SignOuter interface {
	Current() session.State
	SignOut(ctx context.Context) error
}

// HomeView is what the home screen renders
type HomeView struct {
	Phone   string `json:"phone"`
	Loading bool   `json:"loading"`
}

// Home is the main screen shown once the profile is complete
type Home struct {
	base
	sessions SignOuter
}

// NewHome creates the home screen
func NewHome(d Deps, sessions SignOuter) *Home {
	return &Home{base: newBase(d), sessions: sessions}
}

// View returns the current render state
func (s *Home) View() HomeView {
	v := HomeView{Loading: s.Loading()}
	if u := s.sessions.Current().User; u != nil {
		v.Phone = u.Phone
	}
	return v
}

// SignOut ends the session. The app leaves the main screens once the
// backend confirms; a failure keeps the user signed in.
func (s *Home) SignOut() error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	ctx := s.ctx
	s.loading = true
	s.mu.Unlock()

	err := s.sessions.SignOut(ctx)
	if !s.finish(ctx) {
		// the sign-out notification usually unmounts us first
		return err
	}
	if err != nil {
		s.alert.Alert(TitleError, MsgSignOutFailed)
		return err
	}
	return nil
}
