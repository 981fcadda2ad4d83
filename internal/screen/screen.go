// Package screen implements the form logic of the app's screens,
// independent of how they are rendered.
//
// A screen is mounted with a context and unmounted when navigation leaves it.
// Responses that arrive after unmount are dropped and never touch screen
// state, alerts or navigation.
package screen

import (
	"context"
	"errors"
	"sync"

	"github.com/promovista/app/internal/nav"
	"go.uber.org/zap"
)

var (
	// ErrNotMounted is returned by actions on a screen that is not mounted
	ErrNotMounted = errors.New("screen is not mounted")
	// ErrBusy is returned when an action is already in flight
	ErrBusy = errors.New("request already in progress")
	// ErrResendDisabled is returned while the resend cooldown runs
	ErrResendDisabled = errors.New("resend is not available yet")
)

// Alert titles
const (
	TitleError   = "Error"
	TitleSuccess = "Success"
)

// ValidationError is a form input the user has to fix
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Alerter shows a modal message to the user
type Alerter interface {
	Alert(title, message string)
}

// Navigator moves within the current navigation stack
type Navigator interface {
	Navigate(route nav.Route, params nav.Params) error
	Replace(route nav.Route, params nav.Params) error
}

// Deps are the collaborators every screen needs
type Deps struct {
	Alerter   Alerter
	Navigator Navigator
	Logger    *zap.Logger
}

// base carries the mount lifecycle and loading flag shared by all screens
type base struct {
	alert Alerter
	nav   Navigator
	log   *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	loading bool
}

func newBase(d Deps) base {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return base{alert: d.Alerter, nav: d.Navigator, log: log}
}

// Mount activates the screen. Work started while mounted is cancelled by Unmount.
func (b *base) Mount(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
}

// Unmount deactivates the screen and cancels in-flight work
func (b *base) Unmount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
	b.ctx, b.cancel = nil, nil
	b.loading = false
}

// Mounted reports whether the screen is active
func (b *base) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx != nil
}

// Loading reports whether an action is in flight
func (b *base) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// readyLocked checks the screen can start an action. Caller holds b.mu.
func (b *base) readyLocked() error {
	if b.ctx == nil {
		return ErrNotMounted
	}
	if b.loading {
		return ErrBusy
	}
	return nil
}

// finish clears loading after an action started with ctx. It reports false
// if the screen was unmounted (or remounted) in the meantime.
func (b *base) finish(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != ctx || ctx.Err() != nil {
		return false
	}
	b.loading = false
	return true
}

// fail alerts the validation message and returns it as an error
func (b *base) fail(msg string) error {
	b.alert.Alert(TitleError, msg)
	return &ValidationError{Message: msg}
}

// errorMessage is the user-facing text of err, or fallback if it has none
func errorMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
