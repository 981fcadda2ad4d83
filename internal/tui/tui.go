// Package tui is the terminal front end of the app. It renders app.View
// snapshots and turns key presses into screen actions.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/promovista/app/internal/app"
	"github.com/promovista/app/internal/nav"
	"github.com/promovista/app/internal/profile"
	"github.com/promovista/app/internal/screen"
)

// changedMsg is sent when the app signals a new view
type changedMsg struct{}

// tickMsg refreshes time dependent parts of the view such as the cooldown
type tickMsg time.Time

// actionMsg carries the result of a screen action
type actionMsg struct {
	err error
}

const (
	fieldCompany = iota
	fieldTaxID
	fieldAddress
	fieldIBAN
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldCompany: "Company name",
	fieldTaxID:   "CUI",
	fieldAddress: "Address",
	fieldIBAN:    "IBAN",
}

// Model is the bubbletea model of the terminal client
type Model struct {
	app    *app.App
	styles Styles
	// done ends pending waits on the app once the program exits
	done <-chan struct{}

	view  app.View
	route nav.Route

	phone  textinput.Model
	code   textinput.Model
	fields []textinput.Model
	focus  int

	status string
	width  int
	height int
}

// New creates the terminal model for a
func New(a *app.App) Model {
	m := Model{
		app:    a,
		styles: DefaultStyles(),
		phone:  newInput("07xx xxx xxx", 20),
		code:   newInput("123456", 6),
		fields: []textinput.Model{
			newInput("Promo SRL", 100),
			newInput("RO12345678", 12),
			newInput("Str. Exemplu 1, Bucuresti", 200),
			newInput("RO49AAAA1B31007593840000", 34),
		},
	}
	m.refresh()
	return m
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 40
	return ti
}

// Run shows the client until the user quits or ctx is done
func Run(ctx context.Context, a *app.App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(a)
	m.done = ctx.Done()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init starts listening for app changes
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.app, m.done), tick())
}

func waitForChange(a *app.App, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-a.Changes():
			return changedMsg{}
		case <-done:
			return nil
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func run(action func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{err: action()}
	}
}

// Update handles a message and returns the updated model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case changedMsg:
		cmd := m.refresh()
		return m, tea.Batch(cmd, waitForChange(m.app, m.done))
	case tickMsg:
		cmd := m.refresh()
		return m, tea.Batch(cmd, tick())
	case actionMsg:
		m.status = statusFor(msg.err)
		cmd := m.refresh()
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// refresh takes a new snapshot and resets the inputs when the route changed
func (m *Model) refresh() tea.Cmd {
	m.view = m.app.View()
	if m.view.Loading || m.view.Route == m.route {
		return nil
	}
	return m.enter(m.view.Route)
}

// enter prepares the inputs for route from the screen's own state, so a
// screen revealed by going back shows what was typed before.
func (m *Model) enter(route nav.Route) tea.Cmd {
	m.route = route
	m.status = ""
	m.focus = 0
	m.phone.Blur()
	m.code.Blur()
	for i := range m.fields {
		m.fields[i].Blur()
	}

	switch v := m.view.Screen.(type) {
	case screen.LoginView:
		m.phone.SetValue(v.Phone)
		return m.phone.Focus()
	case screen.OTPView:
		m.code.SetValue(v.Code)
		return m.code.Focus()
	case screen.ProfileView:
		m.fields[fieldCompany].SetValue(v.Draft.CompanyName)
		m.fields[fieldTaxID].SetValue(v.Draft.TaxID)
		m.fields[fieldAddress].SetValue(v.Draft.Address)
		m.fields[fieldIBAN].SetValue(v.Draft.BankAccount)
		return m.fields[fieldCompany].Focus()
	}
	return nil
}

func statusFor(err error) string {
	switch {
	case err == nil, errors.Is(err, screen.ErrNotMounted):
		return ""
	case errors.Is(err, screen.ErrBusy), errors.Is(err, screen.ErrResendDisabled), errors.Is(err, app.ErrLoading):
		return err.Error()
	default:
		// the screen has already alerted
		return ""
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if len(m.view.Alerts) > 0 {
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc {
			m.app.DismissAlerts()
			cmd := m.refresh()
			return m, cmd
		}
		return m, nil
	}
	if m.view.Loading {
		return m, nil
	}
	if msg.Type == tea.KeyEsc {
		m.app.Back()
		cmd := m.refresh()
		return m, cmd
	}

	switch m.view.Route {
	case nav.RouteLogin:
		return m.updateLogin(msg)
	case nav.RouteOtp:
		return m.updateOTP(msg)
	case nav.RouteCompleteProfile:
		return m.updateProfile(msg)
	case nav.RouteMainHome:
		return m.updateHome(msg)
	}
	return m, nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		s, err := m.app.LoginScreen()
		if err != nil {
			m.status = statusFor(err)
			return m, nil
		}
		s.SetPhone(m.phone.Value())
		return m, run(s.Submit)
	}

	var cmd tea.Cmd
	m.phone, cmd = m.phone.Update(msg)
	if s, err := m.app.LoginScreen(); err == nil {
		s.SetPhone(m.phone.Value())
	}
	return m, cmd
}

func (m Model) updateOTP(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s, err := m.app.OTPScreen()
	if err != nil {
		m.status = statusFor(err)
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEnter:
		s.SetCode(m.code.Value())
		return m, run(s.Verify)
	case tea.KeyCtrlR:
		return m, run(s.Resend)
	}

	var cmd tea.Cmd
	m.code, cmd = m.code.Update(msg)
	s.SetCode(m.code.Value())
	m.view = m.app.View()
	return m, cmd
}

func (m Model) updateProfile(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		cmd := m.focusField(m.focus + 1)
		return m, cmd
	case tea.KeyShiftTab, tea.KeyUp:
		cmd := m.focusField(m.focus - 1)
		return m, cmd
	case tea.KeyEnter:
		if m.focus < fieldCount-1 {
			cmd := m.focusField(m.focus + 1)
			return m, cmd
		}
		s, err := m.app.ProfileScreen()
		if err != nil {
			m.status = statusFor(err)
			return m, nil
		}
		s.SetDraft(m.draft())
		return m, run(s.Submit)
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	if s, err := m.app.ProfileScreen(); err == nil {
		s.SetDraft(m.draft())
	}
	return m, cmd
}

func (m *Model) focusField(i int) tea.Cmd {
	i = (i + fieldCount) % fieldCount
	m.fields[m.focus].Blur()
	m.focus = i
	return m.fields[i].Focus()
}

func (m Model) draft() profile.Draft {
	return profile.Draft{
		CompanyName: m.fields[fieldCompany].Value(),
		TaxID:       m.fields[fieldTaxID].Value(),
		Address:     m.fields[fieldAddress].Value(),
		BankAccount: m.fields[fieldIBAN].Value(),
	}
}

func (m Model) updateHome(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "s":
		s, err := m.app.HomeScreen()
		if err != nil {
			m.status = statusFor(err)
			return m, nil
		}
		return m, run(s.SignOut)
	}
	return m, nil
}

// View renders the model
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("PromoVista"))
	b.WriteString("\n\n")

	if m.view.Loading {
		b.WriteString(m.styles.Muted.Render("Loading..."))
		return b.String()
	}

	var help string
	switch v := m.view.Screen.(type) {
	case screen.LoginView:
		b.WriteString(m.viewLogin(v))
		help = "enter send code • ctrl+c quit"
	case screen.OTPView:
		b.WriteString(m.viewOTP(v))
		help = "enter verify • ctrl+r resend • esc back • ctrl+c quit"
	case screen.ProfileView:
		b.WriteString(m.viewProfile(v))
		help = "tab next field • enter save • ctrl+c quit"
	case screen.HomeView:
		b.WriteString(m.viewHome(v))
		help = "s sign out • q quit"
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render(m.status))
	}
	for _, a := range m.view.Alerts {
		b.WriteString("\n")
		b.WriteString(m.viewAlert(a))
	}
	if len(m.view.Alerts) > 0 {
		help = "enter dismiss"
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Footer.Render(help))
	return b.String()
}

func (m Model) viewLogin(v screen.LoginView) string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Sign in"))
	b.WriteString("\n")
	b.WriteString(m.styles.Body.Render("Phone number"))
	b.WriteString("\n")
	b.WriteString(m.phone.View())
	if v.Loading {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("Sending code..."))
	}
	return b.String()
}

func (m Model) viewOTP(v screen.OTPView) string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Verify your number"))
	b.WriteString("\n")
	b.WriteString(m.styles.Body.Render("Enter the code sent to " + v.Phone))
	b.WriteString("\n")
	b.WriteString(m.code.View())
	b.WriteString("\n")
	switch {
	case v.Loading:
		b.WriteString(m.styles.Muted.Render("Checking..."))
	case v.Cooldown.Active:
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("Resend available in %ds", v.Cooldown.Remaining)))
	default:
		b.WriteString(m.styles.Focused.Render("Resend code (ctrl+r)"))
	}
	return b.String()
}

func (m Model) viewProfile(v screen.ProfileView) string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Complete your business profile"))
	for i, f := range m.fields {
		label := m.styles.Body.Render(fieldLabels[i])
		if i == m.focus {
			label = m.styles.Focused.Render(fieldLabels[i])
		}
		b.WriteString("\n")
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(f.View())
	}
	if v.Loading {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("Saving..."))
	}
	return b.String()
}

func (m Model) viewHome(v screen.HomeView) string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Welcome"))
	b.WriteString("\n")
	b.WriteString(m.styles.Body.Render("Signed in as " + v.Phone))
	if v.Loading {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("Signing out..."))
	}
	return b.String()
}

func (m Model) viewAlert(a app.Alert) string {
	title := m.styles.Error.Render(a.Title)
	if a.Title == screen.TitleSuccess {
		title = m.styles.Success.Render(a.Title)
	}
	return m.styles.Alert.Render(title + "\n" + a.Message)
}
