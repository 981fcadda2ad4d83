package screen

import (
	"context"
	"regexp"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/promovista/app/internal/backend"
	"github.com/promovista/app/internal/nav"
	"github.com/promovista/app/internal/phone"
	"go.uber.org/zap"
)

// OTP screen messages
const (
	MsgInvalidCode    = "The OTP code must have 6 digits."
	MsgSignedIn       = "Signed in"
	MsgNoSession      = "Could not establish a session. Please contact support."
	MsgCodeResent     = "A new code was sent"
	MsgResendFailed   = "Could not resend the OTP code."
	TitleVerifyFailed = "OTP verification failed"
	msgVerifyFallback = "Invalid or expired code. Please try again."
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

// OTPClient is the backend surface the code entry screen uses
type OTPClient interface {
	OTPRequester
	VerifyOTP(ctx context.Context, phoneE164, code string) (*backend.VerifyResult, error)
}

// OTPView is what the code entry screen renders
type OTPView struct {
	Phone         string        `json:"phone"`
	Code          string        `json:"code"`
	Loading       bool          `json:"loading"`
	SubmitEnabled bool          `json:"submit_enabled"`
	ResendEnabled bool          `json:"resend_enabled"`
	Cooldown      CooldownState `json:"cooldown"`
}

// OTP is the code entry screen for one phone number
type OTP struct {
	base
	auth     OTPClient
	phone    string
	cooldown *Cooldown

	code string
}

// NewOTP creates the code entry screen. clock drives the resend cooldown.
func NewOTP(d Deps, auth OTPClient, phoneE164 string, clock clockwork.Clock) *OTP {
	return &OTP{
		base:     newBase(d),
		auth:     auth,
		phone:    phoneE164,
		cooldown: NewCooldown(clock, DefaultCooldown),
	}
}

// Mount activates the screen and starts the resend cooldown, since the
// previous screen has just sent a code.
func (s *OTP) Mount(ctx context.Context) {
	s.base.Mount(ctx)
	s.cooldown.Start()
}

// Unmount stops the cooldown timer and drops in-flight work
func (s *OTP) Unmount() {
	s.base.Unmount()
	s.cooldown.Stop()
}

// Phone returns the number the code was sent to
func (s *OTP) Phone() string {
	return s.phone
}

// SetCode updates the typed code. Anything but exactly six digits keeps
// submission disabled.
func (s *OTP) SetCode(code string) {
	code = strings.TrimSpace(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return
	}
	s.code = code
}

// SubmitEnabled reports whether the code can be submitted
func (s *OTP) SubmitEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.loading && sixDigits.MatchString(s.code)
}

// View returns the current render state
func (s *OTP) View() OTPView {
	cd := s.cooldown.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return OTPView{
		Phone:         s.phone,
		Code:          s.code,
		Loading:       s.loading,
		SubmitEnabled: !s.loading && sixDigits.MatchString(s.code),
		ResendEnabled: !s.loading && !cd.Active,
		Cooldown:      cd,
	}
}

// Verify submits the code. A session moves the user on to profile
// completion; a verified code without a session is reported as an error.
func (s *OTP) Verify() error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	code := s.code
	if !sixDigits.MatchString(code) {
		s.mu.Unlock()
		return s.fail(MsgInvalidCode)
	}
	ctx := s.ctx
	s.loading = true
	s.mu.Unlock()

	res, err := s.auth.VerifyOTP(ctx, s.phone, code)
	if !s.finish(ctx) {
		return ErrNotMounted
	}

	switch {
	case err != nil:
		s.log.Warn("otp verification failed", zap.String("phone", phone.Mask(s.phone)), zap.Error(err))
		s.alert.Alert(TitleVerifyFailed, errorMessage(err, msgVerifyFallback))
		return err
	case res == nil || res.Session == nil:
		s.log.Error("otp verified without a session", zap.String("phone", phone.Mask(s.phone)))
		s.alert.Alert(TitleError, MsgNoSession)
		return backend.ErrNoSession
	}

	s.alert.Alert(TitleSuccess, MsgSignedIn)
	// the session watcher may already have moved the stack on
	if err := s.nav.Replace(nav.RouteCompleteProfile, nil); err != nil {
		s.log.Debug("replace with profile screen skipped", zap.Error(err))
	}
	return nil
}

// Resend requests a new code and restarts the cooldown. It is rejected while
// the cooldown runs.
func (s *OTP) Resend() error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.cooldown.Snapshot().Active {
		s.mu.Unlock()
		return ErrResendDisabled
	}
	ctx := s.ctx
	s.loading = true
	s.cooldown.Start()
	s.mu.Unlock()

	err := s.auth.RequestOTP(ctx, s.phone)
	if !s.finish(ctx) {
		return ErrNotMounted
	}
	if err != nil {
		s.log.Warn("resend otp failed", zap.String("phone", phone.Mask(s.phone)), zap.Error(err))
		s.alert.Alert(TitleError, MsgResendFailed)
		return err
	}
	s.alert.Alert(TitleSuccess, MsgCodeResent)
	return nil
}
