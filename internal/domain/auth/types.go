package auth

// Package auth contains domain-level types for the client session: roles, principals,
// the persisted credential pair, and the read-only session snapshot.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role represents a marketplace role. The set is closed; use ParseRole to
// convert untrusted strings. Keep string form for easy persistence.
type Role string

const (
	RoleFarmer      Role = "farmer"
	RoleBuyer       Role = "buyer"
	RoleInputSeller Role = "input_seller"
	RoleExpert      Role = "expert"
	RoleLogistics   Role = "logistics"
	RoleFinancial   Role = "financial"
)

// Roles returns every known role in canonical order.
func Roles() []Role {
	return []Role{RoleFarmer, RoleBuyer, RoleInputSeller, RoleExpert, RoleLogistics, RoleFinancial}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleBuyer, RoleInputSeller, RoleExpert, RoleLogistics, RoleFinancial:
		return true
	default:
		return false
	}
}

// Label returns a human readable name for display.
func (r Role) Label() string {
	switch r {
	case RoleFarmer:
		return "Farmer"
	case RoleBuyer:
		return "Buyer"
	case RoleInputSeller:
		return "Input Seller"
	case RoleExpert:
		return "Expert"
	case RoleLogistics:
		return "Logistics Partner"
	case RoleFinancial:
		return "Financial Institution"
	default:
		return "Unknown"
	}
}

func (r Role) String() string { return string(r) }

// ParseRole converts s into a Role. Matching ignores case and surrounding space,
// and accepts "input-seller" as an alias of input_seller.
func ParseRole(s string) (Role, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	r := Role(v)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// UnmarshalText implements encoding.TextUnmarshaler for Role.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Principal is the authenticated user as established by the authentication service.
// It is immutable for the lifetime of a session; a role change requires a new login.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Validate reports whether the principal is usable for a session.
func (p Principal) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedPrincipal)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrMalformedPrincipal, p.Role)
	}
	return nil
}

// DisplayName returns Name, falling back to Email and then ID.
func (p Principal) DisplayName() string {
	for _, v := range []string{p.Name, p.Email, p.ID} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Credentials is the pair persisted by a credential store. Both fields are
// written and cleared together.
type Credentials struct {
	Token     string    `json:"token"`
	Principal Principal `json:"principal"`
}

// Validate reports whether both halves of the pair are present and well-formed.
func (c Credentials) Validate() error {
	if c.Token == "" {
		return errors.New("token is required")
	}
	return c.Principal.Validate()
}

// Registration carries the profile data submitted when creating an account.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

// Validate checks the fields every backend requires.
func (r Registration) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !strings.Contains(r.Email, "@") {
		errs = append(errs, errors.New("a valid email is required"))
	}
	if r.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}
	if !r.Role.Valid() {
		errs = append(errs, fmt.Errorf("role %q is not a marketplace role", r.Role))
	}
	return errors.Join(errs...)
}

// Phase is the lifecycle status of a session.
type Phase int

const (
	PhaseUnchecked Phase = iota
	PhaseChecking
	PhaseAuthenticated
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnchecked:
		return "unchecked"
	case PhaseChecking:
		return "checking"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Session is a read-only snapshot of the client's belief about who is logged in.
//
// Principal is non-nil only when Phase is PhaseAuthenticated. Checked becomes true once
// the first verification cycle completes. Stale marks a principal retained after a
// verification attempt failed for connectivity reasons.
type Session struct {
	Token      string     `json:"-"`
	Principal  *Principal `json:"principal,omitempty"`
	Phase      Phase      `json:"phase"`
	Checked    bool       `json:"checked"`
	Stale      bool       `json:"stale"`
	VerifiedAt time.Time  `json:"verified_at,omitzero"`
	ExpiresAt  time.Time  `json:"expires_at,omitzero"`
}

// HasToken reports whether a bearer credential is held.
func (s Session) HasToken() bool { return s.Token != "" }

// IsAuthenticated reports whether the session carries a principal.
func (s Session) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated && s.Principal != nil
}

// Role returns the principal's role or the empty role when unauthenticated.
func (s Session) Role() Role {
	if s.Principal == nil {
		return ""
	}
	return s.Principal.Role
}
