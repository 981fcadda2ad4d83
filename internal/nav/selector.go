// Package nav decides which screen group the app shows and keeps the
// named-route stack inside that group.
package nav

import (
	"github.com/promovista/app/internal/model"
	"github.com/promovista/app/internal/session"
)

// Target is what the app renders for a given session state
type Target int

const (
	// TargetLoading shows the placeholder while the session or profile status resolves
	TargetLoading Target = iota
	// TargetSignedOut shows the auth flow starting at phone entry
	TargetSignedOut
	// TargetNeedsProfile shows the auth flow at profile completion
	TargetNeedsProfile
	// TargetSignedIn shows the main app
	TargetSignedIn
)

func (t Target) String() string {
	switch t {
	case TargetLoading:
		return "loading"
	case TargetSignedOut:
		return "signed_out"
	case TargetNeedsProfile:
		return "needs_profile"
	case TargetSignedIn:
		return "signed_in"
	default:
		return "unknown"
	}
}

// Group is a set of routes rendered by one stack
type Group int

const (
	GroupNone Group = iota
	GroupAuth
	GroupMain
)

// Select maps a session state to a render target. It is a pure function.
func Select(st session.State) Target {
	switch {
	case st.Loading:
		return TargetLoading
	case st.Session == nil || st.User == nil:
		return TargetSignedOut
	}

	switch st.Profile {
	case model.ProfileComplete:
		return TargetSignedIn
	case model.ProfileIncomplete:
		return TargetNeedsProfile
	default:
		return TargetLoading
	}
}

// Group returns the stack a target renders in; GroupNone for the placeholder
func (t Target) Group() Group {
	switch t {
	case TargetSignedOut, TargetNeedsProfile:
		return GroupAuth
	case TargetSignedIn:
		return GroupMain
	default:
		return GroupNone
	}
}

// InitialRoute is the route a target's stack opens on
func (t Target) InitialRoute() Route {
	switch t {
	case TargetSignedOut:
		return RouteLogin
	case TargetNeedsProfile:
		return RouteCompleteProfile
	case TargetSignedIn:
		return RouteMainHome
	default:
		return ""
	}
}

// Allows reports whether route may be shown while t is selected. A signed-in
// user without a profile is held on profile completion.
func (t Target) Allows(route Route) bool {
	switch t {
	case TargetSignedOut:
		return route == RouteLogin || route == RouteOtp
	case TargetNeedsProfile:
		return route == RouteCompleteProfile
	case TargetSignedIn:
		return route == RouteMainHome
	default:
		return false
	}
}
