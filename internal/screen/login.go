package screen

import (
	"context"
	"errors"

	"github.com/promovista/app/internal/nav"
	"github.com/promovista/app/internal/phone"
	"go.uber.org/zap"
)

// Login screen messages
const (
	MsgInvalidPhone = "Please enter a valid phone number (10 digits)."
	MsgNotNational  = "The phone number must be in local format (07xx...) or international format (+407xx...)."
	MsgCodeSent     = "OTP code sent"
	TitleSendFailed = "Could not send OTP"
	msgSendFallback = "Something went wrong. Please try again."
)

// OTPRequester asks the backend to send a one-time code
type OTPRequester interface {
	RequestOTP(ctx context.Context, phoneE164 string) error
}

// LoginView is what the phone entry screen renders
type LoginView struct {
	Phone   string `json:"phone"`
	Loading bool   `json:"loading"`
}

// Login is the phone entry screen
type Login struct {
	base
	auth   OTPRequester
	phones phone.Normalizer

	input string
}

// NewLogin creates the phone entry screen
func NewLogin(d Deps, auth OTPRequester, phones phone.Normalizer) *Login {
	return &Login{base: newBase(d), auth: auth, phones: phones}
}

// SetPhone updates the typed phone number
func (s *Login) SetPhone(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return
	}
	s.input = raw
}

// View returns the current render state
func (s *Login) View() LoginView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoginView{Phone: s.input, Loading: s.loading}
}

// Submit validates the number, requests a code and moves on to code entry.
// Invalid input is rejected before any backend call. On failure the typed
// number is kept.
func (s *Login) Submit() error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	formatted, err := s.phones.Normalize(s.input)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, phone.ErrNotNational) {
			return s.fail(MsgNotNational)
		}
		return s.fail(MsgInvalidPhone)
	}
	ctx := s.ctx
	s.loading = true
	s.mu.Unlock()

	err = s.auth.RequestOTP(ctx, formatted)
	if !s.finish(ctx) {
		return ErrNotMounted
	}
	if err != nil {
		s.log.Warn("request otp failed", zap.String("phone", phone.Mask(formatted)), zap.Error(err))
		s.alert.Alert(TitleSendFailed, errorMessage(err, msgSendFallback))
		return err
	}

	s.alert.Alert(TitleSuccess, MsgCodeSent)
	if err := s.nav.Navigate(nav.RouteOtp, nav.Params{"phone": formatted}); err != nil {
		s.log.Warn("navigate to otp screen failed", zap.Error(err))
		return err
	}
	return nil
}
