// Package guard decides what a protected view should show for a session.
//
// Decide is pure: it reads a session snapshot and whether a credential sits in
// durable storage, and never touches either.
package guard

import (
	"github.com/aussiebroadwan/dashcore/internal/dashcore/domain"
)

// Kind is the outcome of a guard decision.
type Kind int

const (
	RenderChildren Kind = iota
	ShowLoadingSpinner
	RedirectToLogin
	ShowAccessDenied
)

func (k Kind) String() string {
	switch k {
	case RenderChildren:
		return "render_children"
	case ShowLoadingSpinner:
		return "show_loading_spinner"
	case RedirectToLogin:
		return "redirect_to_login"
	case ShowAccessDenied:
		return "show_access_denied"
	default:
		return "unknown"
	}
}

// Access denied reasons.
const (
	ReasonMissingPermission    = "missing permission"
	ReasonMissingAnyPermission = "missing any required permission"
	ReasonMissingAllPermission = "missing all required permissions"
)

// Decision is what the view should do. Reason is only set for
// ShowAccessDenied.
type Decision struct {
	Kind   Kind
	Reason string
}

// Requirements describe what a view needs. A nil field is no requirement; a
// set but blank Permission is a requirement that can never be met.
type Requirements struct {
	Permission *string
	Any        []string
	All        []string
}

// Option adds a requirement.
type Option func(*Requirements)

// RequirePermission requires the single code.
func RequirePermission(code string) Option {
	return func(r *Requirements) { r.Permission = &code }
}

// RequireAny requires at least one of codes. An empty list is no requirement.
func RequireAny(codes ...string) Option {
	return func(r *Requirements) { r.Any = append(r.Any, codes...) }
}

// RequireAll requires every one of codes. An empty list is no requirement.
func RequireAll(codes ...string) Option {
	return func(r *Requirements) { r.All = append(r.All, codes...) }
}

// Decide applies the guard rules in order:
//
//  1. loading with a stored credential shows the spinner
//  2. unauthenticated without a stored credential redirects to login
//  3. the single permission, then the any-of list, then the all-of list
//  4. otherwise the children render
func Decide(s domain.Session, storedCredential bool, opts ...Option) Decision {
	var req Requirements
	for _, opt := range opts {
		opt(&req)
	}
	return DecideFor(s, storedCredential, req)
}

// DecideFor is Decide with the requirements spelled out.
func DecideFor(s domain.Session, storedCredential bool, req Requirements) Decision {
	if s.IsLoading && storedCredential {
		return Decision{Kind: ShowLoadingSpinner}
	}
	if !s.IsAuthenticated && !storedCredential {
		return Decision{Kind: RedirectToLogin}
	}

	if req.Permission != nil && !s.Permissions.Has(*req.Permission) {
		return denied(ReasonMissingPermission)
	}
	if len(req.Any) > 0 && !s.Permissions.HasAny(req.Any...) {
		return denied(ReasonMissingAnyPermission)
	}
	if len(req.All) > 0 && !s.Permissions.HasAll(req.All...) {
		return denied(ReasonMissingAllPermission)
	}

	return Decision{Kind: RenderChildren}
}

func denied(reason string) Decision {
	return Decision{Kind: ShowAccessDenied, Reason: reason}
}
