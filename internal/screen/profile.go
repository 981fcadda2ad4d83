package screen

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/promovista/app/internal/profile"
	"github.com/promovista/app/internal/session"
	"go.uber.org/zap"
)

// Profile screen messages
const (
	MsgProfileSaved = "Profile saved"
	MsgUnknownUser  = "Could not identify the signed-in user."
	TitleSaveFailed = "Could not save profile"
	msgSaveFallback = "Something went wrong. Please try again."
)

// SessionState exposes the signed-in user and records profile completion
type SessionState interface {
	Current() session.State
	MarkProfileComplete(userID uuid.UUID)
}

// ProfileView is what the profile completion screen renders
type ProfileView struct {
	Draft   profile.Draft `json:"draft"`
	Loading bool          `json:"loading"`
}

// Profile is the business profile completion screen
type Profile struct {
	base
	store    profile.Store
	sessions SessionState

	draft profile.Draft
}

// NewProfile creates the profile completion screen
func NewProfile(d Deps, store profile.Store, sessions SessionState) *Profile {
	return &Profile{base: newBase(d), store: store, sessions: sessions}
}

// SetDraft replaces the typed form values
func (s *Profile) SetDraft(d profile.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return
	}
	s.draft = d
}

// View returns the current render state
func (s *Profile) View() ProfileView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ProfileView{Draft: s.draft, Loading: s.loading}
}

// Submit validates and saves the profile, then marks it complete so the app
// moves on to the main screens. Invalid drafts never reach the store.
func (s *Profile) Submit() error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	draft := s.draft
	if err := draft.Validate(); err != nil {
		s.mu.Unlock()
		var verr *profile.ValidationError
		if errors.As(err, &verr) {
			return s.fail(verr.Message)
		}
		return s.fail(err.Error())
	}

	user := s.sessions.Current().User
	if user == nil {
		s.mu.Unlock()
		s.alert.Alert(TitleError, MsgUnknownUser)
		return ErrNoUser
	}
	ctx := s.ctx
	s.loading = true
	s.mu.Unlock()

	err := s.save(ctx, user.ID, draft)
	if !s.finish(ctx) {
		return ErrNotMounted
	}
	if err != nil {
		s.log.Warn("save profile failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		s.alert.Alert(TitleSaveFailed, errorMessage(err, msgSaveFallback))
		return err
	}

	s.alert.Alert(TitleSuccess, MsgProfileSaved)
	s.sessions.MarkProfileComplete(user.ID)
	return nil
}

func (s *Profile) save(ctx context.Context, userID uuid.UUID, d profile.Draft) error {
	if s.store == nil {
		return errors.New("profile store not configured")
	}
	return s.store.Save(ctx, userID, d)
}
