package app

import (
	"github.com/promovista/app/internal/nav"
	"github.com/promovista/app/internal/screen"
)

// View is a render snapshot of the whole app
type View struct {
	Target  string      `json:"target"`
	Loading bool        `json:"loading"`
	Route   nav.Route   `json:"route,omitempty"`
	Params  nav.Params  `json:"params,omitempty"`
	Routes  []nav.Route `json:"routes"`
	// Screen is the top screen's own view (screen.LoginView, screen.OTPView, ...)
	Screen interface{} `json:"screen,omitempty"`
	Alerts []Alert     `json:"alerts"`
}

// View returns the current render snapshot
func (a *App) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := View{
		Target:  a.target.String(),
		Loading: a.target == nav.TargetLoading,
		Routes:  a.stack.Routes(),
		Alerts:  append([]Alert{}, a.alerts...),
	}
	if top, ok := a.stack.Current(); ok {
		v.Route = top.Route
		v.Params = top.Params
	}
	if len(a.screens) > 0 && !v.Loading {
		v.Screen = screenView(a.screens[len(a.screens)-1])
	}
	return v
}

func screenView(s mountable) interface{} {
	switch s := s.(type) {
	case *screen.Login:
		return s.View()
	case *screen.OTP:
		return s.View()
	case *screen.Profile:
		return s.View()
	case *screen.Home:
		return s.View()
	default:
		return nil
	}
}
