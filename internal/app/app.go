// Package app is the root of the client: it follows the session store,
// keeps the navigation stack for the selected screen group and owns the
// mounted screens and pending alerts. Front ends (HTTP shell, terminal UI)
// drive it through the screen accessors and render View snapshots.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/promovista/app/internal/nav"
	"github.com/promovista/app/internal/phone"
	"github.com/promovista/app/internal/profile"
	"github.com/promovista/app/internal/screen"
	"github.com/promovista/app/internal/session"
	"go.uber.org/zap"
)

// ErrLoading is returned by screen accessors while the placeholder is shown
var ErrLoading = errors.New("app is loading")

// SessionStore is the session surface the app and its screens use
type SessionStore interface {
	Current() session.State
	Watch() (<-chan session.State, func())
	MarkProfileComplete(userID uuid.UUID)
	SignOut(ctx context.Context) error
}

// Options configures an App
type Options struct {
	Sessions SessionStore
	Auth     screen.OTPClient
	Profiles profile.Store
	Phones   phone.Normalizer
	Clock    clockwork.Clock
	Logger   *zap.Logger
}

// Alert is a message waiting to be shown
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type mountable interface {
	Mount(ctx context.Context)
	Unmount()
}

// App is the client root
type App struct {
	sessions SessionStore
	auth     screen.OTPClient
	profiles profile.Store
	phones   phone.Normalizer
	clock    clockwork.Clock
	log      *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	target  nav.Target
	stack   *nav.Stack
	screens []mountable
	alerts  []Alert
	changes chan struct{}

	cancel    context.CancelFunc
	unwatch   func()
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// New creates an app. Call Start to follow the session store.
func New(opts Options) *App {
	a := &App{
		sessions: opts.Sessions,
		auth:     opts.Auth,
		profiles: opts.Profiles,
		phones:   opts.Phones,
		clock:    opts.Clock,
		log:      opts.Logger,
		target:   nav.TargetLoading,
		stack:    nav.NewStack(nav.GroupNone),
		changes:  make(chan struct{}, 1),
		ctx:      context.Background(),
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	return a
}

// Start follows session state changes until Close
func (a *App) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		ch, unwatch := a.sessions.Watch()

		a.mu.Lock()
		a.ctx = ctx
		a.cancel = cancel
		a.unwatch = unwatch
		a.mu.Unlock()

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for st := range ch {
				a.apply(st)
			}
		}()
	})
}

// Close stops following the session and unmounts every screen
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		unwatch, cancel := a.unwatch, a.cancel
		a.mu.Unlock()

		if unwatch != nil {
			unwatch()
			cancel()
		}
		a.wg.Wait()

		a.mu.Lock()
		a.unmountAllLocked()
		a.mu.Unlock()
	})
}

// Changes signals that the view may have changed. Signals coalesce.
func (a *App) Changes() <-chan struct{} {
	return a.changes
}

func (a *App) notifyLocked() {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

// apply moves the navigation to match st. While loading the current stack
// stays in place behind the placeholder. A group change resets the stack;
// within the auth group the stack converges on the target's route.
func (a *App) apply(st session.State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.notifyLocked()

	target := nav.Select(st)
	if target != a.target {
		a.log.Debug("navigation target changed",
			zap.Stringer("from", a.target),
			zap.Stringer("to", target),
		)
	}
	a.target = target
	if target == nav.TargetLoading {
		return
	}

	if target.Group() != a.stack.Group() {
		a.resetLocked(target)
		return
	}

	top, ok := a.stack.Current()
	switch {
	case !ok:
		a.resetLocked(target)
	case target == nav.TargetNeedsProfile && top.Route != nav.RouteCompleteProfile:
		if err := a.replaceLocked(nav.RouteCompleteProfile, nil); err != nil {
			a.log.Error("could not open profile completion", zap.Error(err))
		}
	case target == nav.TargetSignedOut && top.Route == nav.RouteCompleteProfile:
		a.resetLocked(target)
	}
}

func (a *App) resetLocked(target nav.Target) {
	a.unmountAllLocked()
	if err := a.stack.Reset(target.Group(), target.InitialRoute()); err != nil {
		a.log.Error("reset navigation failed", zap.Stringer("target", target), zap.Error(err))
		return
	}
	if top, ok := a.stack.Current(); ok {
		a.screens = []mountable{a.mountLocked(top)}
	}
	a.log.Info("navigation reset", zap.Stringer("target", target), zap.Any("routes", a.stack.Routes()))
}

func (a *App) unmountAllLocked() {
	for i := len(a.screens) - 1; i >= 0; i-- {
		a.screens[i].Unmount()
	}
	a.screens = nil
}

func (a *App) pushLocked(route nav.Route, params nav.Params) error {
	if err := a.stack.Navigate(route, params); err != nil {
		return err
	}
	top, _ := a.stack.Current()
	a.screens = append(a.screens, a.mountLocked(top))
	a.notifyLocked()
	return nil
}

func (a *App) replaceLocked(route nav.Route, params nav.Params) error {
	if err := a.stack.Replace(route, params); err != nil {
		return err
	}
	top, _ := a.stack.Current()
	last := len(a.screens) - 1
	a.screens[last].Unmount()
	a.screens[last] = a.mountLocked(top)
	a.notifyLocked()
	return nil
}

// mountLocked builds and mounts the screen for e
func (a *App) mountLocked(e nav.Entry) mountable {
	sn := &screenNav{app: a}
	deps := screen.Deps{
		Alerter:   a,
		Navigator: sn,
		Logger:    a.log.With(zap.String("screen", string(e.Route))),
	}

	var s mountable
	switch e.Route {
	case nav.RouteLogin:
		s = screen.NewLogin(deps, a.auth, a.phones)
	case nav.RouteOtp:
		s = screen.NewOTP(deps, a.auth, e.Params["phone"], a.clock)
	case nav.RouteCompleteProfile:
		s = screen.NewProfile(deps, a.profiles, a.sessions)
	case nav.RouteMainHome:
		s = screen.NewHome(deps, a.sessions)
	default:
		panic(fmt.Sprintf("no screen for route %q", e.Route))
	}
	sn.owner = s
	s.Mount(a.ctx)
	return s
}

// Alert queues a message for the front end
func (a *App) Alert(title, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, Alert{Title: title, Message: message})
	a.notifyLocked()
}

// DismissAlerts drops every pending alert
func (a *App) DismissAlerts() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = nil
	a.notifyLocked()
}

// Back pops the top screen. It reports false at the root of the stack and
// when the screen below is not allowed for the current target.
func (a *App) Back() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.target == nav.TargetLoading {
		return false
	}
	routes := a.stack.Routes()
	if len(routes) < 2 || !a.target.Allows(routes[len(routes)-2]) {
		return false
	}
	if _, ok := a.stack.Back(); !ok {
		return false
	}
	last := len(a.screens) - 1
	a.screens[last].Unmount()
	a.screens = a.screens[:last]
	a.notifyLocked()
	return true
}

// top returns the screen the user interacts with
func (a *App) top() (mountable, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.target == nav.TargetLoading {
		return nil, ErrLoading
	}
	if len(a.screens) == 0 {
		return nil, screen.ErrNotMounted
	}
	return a.screens[len(a.screens)-1], nil
}

// LoginScreen returns the phone entry screen if it is on top
func (a *App) LoginScreen() (*screen.Login, error) {
	s, err := a.top()
	if err != nil {
		return nil, err
	}
	if l, ok := s.(*screen.Login); ok {
		return l, nil
	}
	return nil, screen.ErrNotMounted
}

// OTPScreen returns the code entry screen if it is on top
func (a *App) OTPScreen() (*screen.OTP, error) {
	s, err := a.top()
	if err != nil {
		return nil, err
	}
	if o, ok := s.(*screen.OTP); ok {
		return o, nil
	}
	return nil, screen.ErrNotMounted
}

// ProfileScreen returns the profile completion screen if it is on top
func (a *App) ProfileScreen() (*screen.Profile, error) {
	s, err := a.top()
	if err != nil {
		return nil, err
	}
	if p, ok := s.(*screen.Profile); ok {
		return p, nil
	}
	return nil, screen.ErrNotMounted
}

// HomeScreen returns the home screen if it is on top
func (a *App) HomeScreen() (*screen.Home, error) {
	s, err := a.top()
	if err != nil {
		return nil, err
	}
	if h, ok := s.(*screen.Home); ok {
		return h, nil
	}
	return nil, screen.ErrNotMounted
}

// screenNav is the Navigator handed to one screen. It only acts while that
// screen is on top, so a screen left behind cannot move the stack.
type screenNav struct {
	app   *App
	owner mountable
}

func (n *screenNav) Navigate(route nav.Route, params nav.Params) error {
	a := n.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := n.checkLocked(); err != nil {
		return err
	}
	if err := a.pushLocked(route, params); err != nil {
		return err
	}
	a.log.Info("navigate", zap.String("route", string(route)))
	return nil
}

func (n *screenNav) Replace(route nav.Route, params nav.Params) error {
	a := n.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := n.checkLocked(); err != nil {
		return err
	}
	if err := a.replaceLocked(route, params); err != nil {
		return err
	}
	a.log.Info("replace", zap.String("route", string(route)))
	return nil
}

func (n *screenNav) checkLocked() error {
	screens := n.app.screens
	if len(screens) == 0 || screens[len(screens)-1] != n.owner {
		return screen.ErrNotMounted
	}
	return nil
}
