package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/promovista/app/internal/app"
	"github.com/promovista/app/internal/backend"
	"github.com/promovista/app/internal/model"
	"github.com/promovista/app/internal/nav"
	"github.com/promovista/app/internal/phone"
	"github.com/promovista/app/internal/profile"
	"github.com/promovista/app/internal/screen"
	"github.com/promovista/app/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	*backend.Notifier
}

func (f *fakeBackend) GetCurrentSession(ctx context.Context) (*model.Session, error) {
	return nil, nil
}

func (f *fakeBackend) RequestOTP(ctx context.Context, phoneE164 string) error {
	return nil
}

func (f *fakeBackend) VerifyOTP(ctx context.Context, phoneE164, code string) (*backend.VerifyResult, error) {
	s := &model.Session{AccessToken: "access", User: &model.User{ID: uuid.New(), Phone: phoneE164}}
	f.Emit(model.AuthEvent{Kind: model.EventSignedIn, Session: s})
	return &backend.VerifyResult{Session: s}, nil
}

func (f *fakeBackend) SignOut(ctx context.Context) error {
	f.Emit(model.AuthEvent{Kind: model.EventSignedOut})
	return nil
}

type memProfiles struct {
	mu   sync.Mutex
	rows map[uuid.UUID]profile.Draft
}

func (m *memProfiles) Save(ctx context.Context, id uuid.UUID, d profile.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id] = d
	return nil
}

func (m *memProfiles) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok, nil
}

func newApp(t *testing.T) *app.App {
	t.Helper()
	fb := &fakeBackend{Notifier: backend.NewNotifier()}
	profiles := &memProfiles{rows: make(map[uuid.UUID]profile.Draft)}

	store := session.NewStore(fb, profiles, nil)
	t.Cleanup(store.Close)
	a := app.New(app.Options{
		Sessions: store,
		Auth:     fb,
		Profiles: profiles,
		Phones:   phone.NewNormalizer(""),
		Clock:    clockwork.NewFakeClock(),
	})
	t.Cleanup(a.Close)
	a.Start(context.Background())
	store.Start(context.Background())
	waitRoute(t, a, nav.RouteLogin)
	return a
}

func waitRoute(t *testing.T, a *app.App, route nav.Route) {
	t.Helper()
	require.Eventually(t, func() bool {
		v := a.View()
		return !v.Loading && v.Route == route
	}, 2*time.Second, 5*time.Millisecond, "waiting for %s", route)
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(m Model, s string) Model {
	m, _ = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func press(m Model, k tea.KeyType) Model {
	m, _ = send(m, tea.KeyMsg{Type: k})
	return m
}

// act presses k and runs the screen action it starts
func act(t *testing.T, m Model, k tea.KeyMsg) Model {
	t.Helper()
	m, cmd := send(m, k)
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, actionMsg{}, msg)
	m, _ = send(m, msg)
	return m
}

func loginToOTP(t *testing.T, a *app.App) Model {
	t.Helper()
	m := New(a)
	require.Equal(t, nav.RouteLogin, m.route)
	m = typeText(m, "0722123456")
	m = act(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, nav.RouteOtp, m.route)
	return m
}

func TestModel_loading(t *testing.T) {
	a := app.New(app.Options{})
	defer a.Close()
	m := New(a)
	assert.Contains(t, m.View(), "Loading...")

	m = typeText(m, "0722")
	assert.Empty(t, m.phone.Value())
}

func TestModel_windowSize(t *testing.T) {
	m := New(app.New(app.Options{}))
	m, _ = send(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 40, m.height)
}

func TestModel_loginSendsCode(t *testing.T) {
	a := newApp(t)
	m := loginToOTP(t, a)

	out := m.View()
	assert.Contains(t, out, screen.MsgCodeSent)
	assert.Contains(t, out, "Enter the code sent to +40722123456")
	assert.Contains(t, out, "Resend available in 30s")
	assert.Contains(t, out, "enter dismiss")

	m = press(m, tea.KeyEnter)
	assert.Empty(t, m.view.Alerts)
	assert.NotContains(t, m.View(), screen.MsgCodeSent)
}

func TestModel_invalidPhoneAlerts(t *testing.T) {
	a := newApp(t)
	m := New(a)
	m = typeText(m, "12345")
	m = act(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, nav.RouteLogin, m.route)
	assert.Contains(t, m.View(), screen.MsgInvalidPhone)
	assert.Equal(t, "12345", m.phone.Value())
}

func TestModel_resendDuringCooldown(t *testing.T) {
	a := newApp(t)
	m := loginToOTP(t, a)
	m = press(m, tea.KeyEnter)

	m = act(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Equal(t, screen.ErrResendDisabled.Error(), m.status)
	assert.Contains(t, m.View(), screen.ErrResendDisabled.Error())
}

func TestModel_backKeepsTypedPhone(t *testing.T) {
	a := newApp(t)
	m := loginToOTP(t, a)
	m = press(m, tea.KeyEnter)

	m = press(m, tea.KeyEsc)
	assert.Equal(t, nav.RouteLogin, m.route)
	assert.Equal(t, "0722123456", m.phone.Value())

	m = press(m, tea.KeyEsc)
	assert.Equal(t, nav.RouteLogin, m.route, "the root screen stays")
}

func TestModel_fullFlow(t *testing.T) {
	a := newApp(t)
	m := loginToOTP(t, a)
	m = press(m, tea.KeyEnter)

	m = typeText(m, "123456")
	assert.True(t, m.view.Screen.(screen.OTPView).SubmitEnabled)
	m = act(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	waitRoute(t, a, nav.RouteCompleteProfile)
	m, _ = send(m, changedMsg{})
	require.Equal(t, nav.RouteCompleteProfile, m.route)
	assert.Contains(t, m.View(), screen.MsgSignedIn)
	m = press(m, tea.KeyEnter)

	m = typeText(m, "Promo SRL")
	m = press(m, tea.KeyTab)
	m = typeText(m, "ro12345678")
	m = press(m, tea.KeyTab)
	m = typeText(m, "Str. Lunga 1")
	m = press(m, tea.KeyEnter)
	assert.Equal(t, fieldIBAN, m.focus)
	m = typeText(m, "RO49AAAA1B31007593840000")
	m = act(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	waitRoute(t, a, nav.RouteMainHome)
	m, _ = send(m, changedMsg{})
	require.Equal(t, nav.RouteMainHome, m.route)
	m = press(m, tea.KeyEnter)
	assert.Contains(t, m.View(), "Signed in as +40722123456")

	m = act(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	waitRoute(t, a, nav.RouteLogin)
	m, _ = send(m, changedMsg{})
	assert.Equal(t, nav.RouteLogin, m.route)
	assert.Contains(t, m.View(), "Sign in")
}

func TestModel_profileFocusWraps(t *testing.T) {
	a := newApp(t)
	m := loginToOTP(t, a)
	m = press(m, tea.KeyEnter)
	m = typeText(m, "123456")
	m = act(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	waitRoute(t, a, nav.RouteCompleteProfile)
	m, _ = send(m, changedMsg{})
	m = press(m, tea.KeyEnter)

	m = press(m, tea.KeyShiftTab)
	assert.Equal(t, fieldIBAN, m.focus)
	m = press(m, tea.KeyDown)
	assert.Equal(t, fieldCompany, m.focus)

	m = press(m, tea.KeyShiftTab)
	m = act(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), profile.MsgRequired)
	assert.Equal(t, nav.RouteCompleteProfile, m.route)
}

func TestWaitForChange_returnsWhenDone(t *testing.T) {
	a := app.New(app.Options{})
	defer a.Close()

	done := make(chan struct{})
	out := make(chan tea.Msg, 1)
	go func() { out <- waitForChange(a, done)() }()

	close(done)
	select {
	case msg := <-out:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after done was closed")
	}
}

func TestWaitForChange_deliversChange(t *testing.T) {
	a := app.New(app.Options{})
	defer a.Close()

	a.DismissAlerts()
	assert.Equal(t, changedMsg{}, waitForChange(a, nil)())
}

