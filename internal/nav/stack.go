package nav

import (
	"errors"
	"fmt"
	"strings"
)

// Route names a screen
type Route string

const (
	RouteLogin           Route = "Login"
	RouteOtp             Route = "OtpScreen"
	RouteCompleteProfile Route = "CompleteProfile"
	RouteMainHome        Route = "MainHome"
)

// Params are the navigation parameters of a route
type Params map[string]string

var (
	// ErrUnknownRoute is returned for a route outside the current group
	ErrUnknownRoute = errors.New("unknown route")
	// ErrInvalidParams is returned when params do not match the route's schema
	ErrInvalidParams = errors.New("invalid route params")
	// ErrEmptyStack is returned by operations that need a current entry
	ErrEmptyStack = errors.New("navigation stack is empty")
)

// paramSchema lists the required params per route; routes not listed take none
var paramSchema = map[Route][]string{
	RouteOtp: {"phone"},
}

// groupRoutes lists the routes each stack can show
var groupRoutes = map[Group][]Route{
	GroupAuth: {RouteLogin, RouteOtp, RouteCompleteProfile},
	GroupMain: {RouteMainHome},
}

// ValidateParams checks params against the route schema
func ValidateParams(route Route, params Params) error {
	required := paramSchema[route]
	for _, key := range required {
		if strings.TrimSpace(params[key]) == "" {
			return fmt.Errorf("%w: %s requires %q", ErrInvalidParams, route, key)
		}
	}
	if len(params) > len(required) {
		return fmt.Errorf("%w: %s takes only %v", ErrInvalidParams, route, required)
	}
	return nil
}

// Entry is one screen on the stack
type Entry struct {
	Route  Route
	Params Params
}

// Stack is a named-route navigation stack for one group. It is not safe for
// concurrent use; the app serializes access.
type Stack struct {
	group   Group
	entries []Entry
}

// NewStack creates an empty stack for group
func NewStack(group Group) *Stack {
	return &Stack{group: group}
}

// Group returns the group the stack renders
func (s *Stack) Group() Group {
	return s.group
}

func (s *Stack) check(route Route, params Params) error {
	known := false
	for _, r := range groupRoutes[s.group] {
		if r == route {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownRoute, route)
	}
	return ValidateParams(route, params)
}

// Navigate pushes route on top of the stack
func (s *Stack) Navigate(route Route, params Params) error {
	if err := s.check(route, params); err != nil {
		return err
	}
	s.entries = append(s.entries, Entry{Route: route, Params: copyParams(params)})
	return nil
}

// Replace swaps the top entry for route, so back navigation cannot return to it
func (s *Stack) Replace(route Route, params Params) error {
	if err := s.check(route, params); err != nil {
		return err
	}
	if len(s.entries) == 0 {
		return ErrEmptyStack
	}
	s.entries[len(s.entries)-1] = Entry{Route: route, Params: copyParams(params)}
	return nil
}

// Back pops the top entry. The root entry cannot be popped.
func (s *Stack) Back() (Entry, bool) {
	if len(s.entries) <= 1 {
		return Entry{}, false
	}
	top := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return top, true
}

// Reset switches the stack to group and leaves route as its only entry
func (s *Stack) Reset(group Group, route Route) error {
	s.group = group
	s.entries = nil
	if route == "" {
		return nil
	}
	if err := s.check(route, nil); err != nil {
		return err
	}
	s.entries = []Entry{{Route: route}}
	return nil
}

// Current returns the top entry
func (s *Stack) Current() (Entry, bool) {
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// Routes lists the route names from bottom to top
func (s *Stack) Routes() []Route {
	out := make([]Route, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Route
	}
	return out
}

func copyParams(p Params) Params {
	if len(p) == 0 {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
