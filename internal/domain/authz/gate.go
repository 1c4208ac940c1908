// Package authz decides whether a protected view may render for a session.
//
// Authorize is pure: it reads a session snapshot and a role requirement and returns one of
// four outcomes. Callers own rendering and navigation.
package authz

import (
	"net/url"
	"slices"
	"strings"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
)

// Outcome is the kind of authorization decision.
type Outcome int

const (
	// Pending means the first verification has not finished; render a neutral loading state.
	Pending Outcome = iota
	// Redirect means nobody is logged in; navigate to Decision.Target.
	Redirect
	// Deny means the principal's role does not satisfy the requirement.
	Deny
	// Allow means the view may render.
	Allow
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Redirect:
		return "redirect"
	case Deny:
		return "deny"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// MarshalText renders the outcome name in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Requirement is the set of roles accepted by a view. An empty requirement accepts
// any authenticated principal.
type Requirement []domainauth.Role

// Only requires exactly one role.
func Only(role domainauth.Role) Requirement { return Requirement{role} }

// AnyOf accepts any of the given roles.
func AnyOf(roles ...domainauth.Role) Requirement { return append(Requirement(nil), roles...) }

// Authenticated accepts any logged-in principal.
func Authenticated() Requirement { return nil }

// Allows reports whether role satisfies the requirement.
func (r Requirement) Allows(role domainauth.Role) bool {
	if len(r) == 0 {
		return true
	}
	return slices.Contains(r, role)
}

// String renders the requirement for messages, e.g. "farmer or buyer".
func (r Requirement) String() string {
	if len(r) == 0 {
		return "any role"
	}
	parts := make([]string, len(r))
	for i, role := range r {
		parts[i] = string(role)
	}
	return strings.Join(parts, " or ")
}

// Decision is the result of Authorize.
type Decision struct {
	Outcome Outcome `json:"outcome"`

	// Target is the navigation destination for Redirect.
	Target string `json:"target,omitempty"`
	// ReturnTo is the originally requested location, if the caller supplied one.
	ReturnTo string `json:"return_to,omitempty"`

	// CurrentRole, RequiredRoles and CorrectivePath are set for Deny.
	CurrentRole    domainauth.Role   `json:"current_role,omitempty"`
	RequiredRoles  []domainauth.Role `json:"required_roles,omitempty"`
	CorrectivePath string            `json:"corrective_path,omitempty"`
}

// RedirectURL returns Target with the preserved location as redirect_uri.
func (d Decision) RedirectURL() string {
	if d.Target == "" {
		return ""
	}
	if d.ReturnTo == "" {
		return d.Target
	}
	q := url.Values{}
	q.Set("redirect_uri", d.ReturnTo)
	return d.Target + "?" + q.Encode()
}

type options struct {
	returnTo string
}

// Option customizes Authorize.
type Option func(*options)

// WithReturnTo records the requested location so a later login can return there.
// Anything other than a same-origin relative path is dropped.
func WithReturnTo(path string) Option {
	return func(o *options) { o.returnTo = SafeReturnPath(path) }
}

// Authorize evaluates, in order: verification still pending, no principal,
// role mismatch, allow.
func Authorize(req Requirement, sess domainauth.Session, opts ...Option) Decision {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if !sess.Checked {
		return Decision{Outcome: Pending}
	}

	if sess.Principal == nil {
		return Decision{Outcome: Redirect, Target: domainauth.AuthPath, ReturnTo: o.returnTo}
	}

	role := sess.Principal.Role
	if !req.Allows(role) {
		return Decision{
			Outcome:        Deny,
			CurrentRole:    role,
			RequiredRoles:  append([]domainauth.Role(nil), req...),
			CorrectivePath: domainauth.DashboardFor(role),
		}
	}

	return Decision{Outcome: Allow}
}

// SafeReturnPath returns candidate when it is a relative path beginning with a single
// "/", and "" otherwise.
func SafeReturnPath(candidate string) string {
	if candidate == "" || !strings.HasPrefix(candidate, "/") || strings.HasPrefix(candidate, "//") {
		return ""
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return candidate
}
