package httpx

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/domain/authz"
	apperrors "github.com/agrimarket/agrimarket-ui/internal/errors"
)

// SessionService is the part of the session manager the shell drives.
type SessionService interface {
	SessionSource
	Login(ctx context.Context, identifier, secret string) (domainauth.Principal, error)
	Register(ctx context.Context, reg domainauth.Registration) (domainauth.Principal, error)
	Logout(ctx context.Context) error
}

// AuthHandlers serves the sign-in screen and the session actions.
type AuthHandlers struct {
	Sessions SessionService
	Pages    PageRenderer
	Logger   *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

const (
	modeLogin    = "login"
	modeRegister = "register"
)

type loginRequest struct {
	Email       string `json:"email"`
	Identifier  string `json:"identifier"`
	Password    string `json:"password"`
	RedirectURI string `json:"redirect_uri"`
}

type registerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	Phone       string `json:"phone"`
	Location    string `json:"location"`
	RedirectURI string `json:"redirect_uri"`
}

// Show renders the sign-in or registration form.
// GET /auth?mode=register&redirect_uri=<optional>.
func (h *AuthHandlers) Show(w http.ResponseWriter, r *http.Request) {
	redirectURI := authz.SafeReturnPath(r.URL.Query().Get("redirect_uri"))

	if sess := h.Sessions.Session(); sess.IsAuthenticated() {
		navigate(w, r, postLoginTarget(redirectURI, sess.Principal.Role))
		return
	}

	mode := modeLogin
	if r.URL.Query().Get("mode") == modeRegister {
		mode = modeRegister
	}
	h.renderAuth(w, r, http.StatusOK, authPage{Mode: mode, RedirectURI: redirectURI})
}

// Login signs in with an email and password.
// POST /auth/login (form or JSON).
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if isJSONBody(r) {
		if !DecodeJSON(w, r, &in) {
			return
		}
	} else {
		in = loginRequest{
			Email:       r.PostFormValue("email"),
			Password:    r.PostFormValue("password"),
			RedirectURI: r.PostFormValue("redirect_uri"),
		}
	}
	identifier := in.Email
	if identifier == "" {
		identifier = in.Identifier
	}

	p, err := h.Sessions.Login(r.Context(), identifier, in.Password)
	if err != nil {
		h.logger().InfoContext(r.Context(), "login failed", "error", err)
		h.fail(w, r, err, authPage{
			Mode:        modeLogin,
			RedirectURI: authz.SafeReturnPath(in.RedirectURI),
			Form:        map[string]string{"email": identifier},
		})
		return
	}
	h.signedIn(w, r, p, in.RedirectURI)
}

// Register creates an account and signs in with it.
// POST /auth/register (form or JSON).
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if isJSONBody(r) {
		if !DecodeJSON(w, r, &in) {
			return
		}
	} else {
		in = registerRequest{
			Name:        r.PostFormValue("name"),
			Email:       r.PostFormValue("email"),
			Password:    r.PostFormValue("password"),
			Role:        r.PostFormValue("role"),
			Phone:       r.PostFormValue("phone"),
			Location:    r.PostFormValue("location"),
			RedirectURI: r.PostFormValue("redirect_uri"),
		}
	}

	role, err := domainauth.ParseRole(in.Role)
	if err != nil {
		role = domainauth.Role(in.Role)
	}
	p, err := h.Sessions.Register(r.Context(), domainauth.Registration{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Role:     role,
		Phone:    in.Phone,
		Location: in.Location,
	})
	if err != nil {
		h.logger().InfoContext(r.Context(), "registration failed", "error", err)
		h.fail(w, r, err, authPage{
			Mode:        modeRegister,
			RedirectURI: authz.SafeReturnPath(in.RedirectURI),
			Form: map[string]string{
				"name": in.Name, "email": in.Email, "phone": in.Phone, "location": in.Location,
			},
		})
		return
	}
	h.signedIn(w, r, p, in.RedirectURI)
}

// Logout ends the session. It always succeeds from the user's point of view.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(r.Context()); err != nil {
		h.logger().WarnContext(r.Context(), "logout failed", "error", err)
	}
	h.signedOut(w, r, domainauth.AuthPath)
}

// SwitchAccount signs out and opens the sign-in screen, returning to the page the user
// was denied once they sign in with the right account.
// POST /auth/switch-account.
func (h *AuthHandlers) SwitchAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(r.Context()); err != nil {
		h.logger().WarnContext(r.Context(), "logout during account switch failed", "error", err)
	}

	back := r.PostFormValue("redirect_uri")
	if back == "" {
		back = r.URL.Query().Get("redirect_uri")
	}
	target := domainauth.AuthPath
	if back = authz.SafeReturnPath(back); back != "" {
		q := url.Values{}
		q.Set("redirect_uri", back)
		target += "?" + q.Encode()
	}
	h.signedOut(w, r, target)
}

type statusResponse struct {
	Authenticated bool                  `json:"authenticated"`
	Phase         domainauth.Phase      `json:"phase"`
	Checked       bool                  `json:"checked"`
	Stale         bool                  `json:"stale"`
	Principal     *domainauth.Principal `json:"principal,omitempty"`
	Dashboard     string                `json:"dashboard,omitempty"`
	VerifiedAt    time.Time             `json:"verified_at,omitzero"`
	ExpiresAt     time.Time             `json:"expires_at,omitzero"`
}

// Status reports the current session.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, _ *http.Request) {
	sess := h.Sessions.Session()
	resp := statusResponse{
		Authenticated: sess.IsAuthenticated(),
		Phase:         sess.Phase,
		Checked:       sess.Checked,
		Stale:         sess.Stale,
		Principal:     sess.Principal,
		VerifiedAt:    sess.VerifiedAt,
		ExpiresAt:     sess.ExpiresAt,
	}
	if sess.Principal != nil {
		resp.Dashboard = domainauth.DashboardFor(sess.Principal.Role)
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandlers) signedIn(w http.ResponseWriter, r *http.Request, p domainauth.Principal, redirectURI string) {
	target := postLoginTarget(redirectURI, p.Role)
	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":      "authenticated",
			"principal":   p,
			"redirect_to": target,
		})
		return
	}
	navigate(w, r, target)
}

func (h *AuthHandlers) signedOut(w http.ResponseWriter, r *http.Request, target string) {
	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out", "redirect_to": target})
		return
	}
	navigate(w, r, target)
}

func (h *AuthHandlers) fail(w http.ResponseWriter, r *http.Request, err error, page authPage) {
	status := authFailureStatus(err)
	msg := "authentication failed"
	code := string(apperrors.ErrCodeLoginRejected)
	if page.Mode == modeRegister {
		code = string(apperrors.ErrCodeRegistrationRejected)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
		code = string(appErr.Code)
	}

	if wantsJSON(r) {
		WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: errors.New(msg)})
		return
	}
	page.Error = msg
	h.renderAuth(w, r, status, page)
}

type authPage struct {
	Mode        string
	RedirectURI string
	Error       string
	Form        map[string]string
}

func (h *AuthHandlers) renderAuth(w http.ResponseWriter, r *http.Request, status int, page authPage) {
	title := "Sign in"
	if page.Mode == modeRegister {
		title = "Create account"
	}
	b := NewTemplateData(r, PageMeta{Title: title, Page: PageAuth}).
		WithPrincipal(nil).
		With("Mode", page.Mode).
		With("RedirectURI", page.RedirectURI).
		With("Roles", domainauth.Roles()).
		With("LoginURL", authURL(modeLogin, page.RedirectURI)).
		With("RegisterURL", authURL(modeRegister, page.RedirectURI))
	if page.Form != nil {
		b.With("Form", page.Form)
	}
	if page.Error != "" {
		b.WithError(page.Error)
	}
	renderPage(h.Pages, w, r, status, b.Build())
}

func authURL(mode, redirectURI string) string {
	q := url.Values{}
	if mode == modeRegister {
		q.Set("mode", modeRegister)
	}
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	if len(q) == 0 {
		return domainauth.AuthPath
	}
	return domainauth.AuthPath + "?" + q.Encode()
}

// postLoginTarget returns candidate when it names a route the role may open, and the
// role's dashboard otherwise.
func postLoginTarget(candidate string, role domainauth.Role) string {
	if p := authz.SafeReturnPath(candidate); p != "" {
		if rt, ok := LookupRoute(p); ok && rt.Requirement.Allows(role) {
			return p
		}
	}
	return domainauth.DashboardFor(role)
}

// authFailureStatus maps a failed login or registration to an HTTP status.
func authFailureStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded), domainauth.IsTransient(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, domainauth.ErrMalformedResponse):
		return http.StatusBadGateway
	case domainauth.IsUnauthorized(err):
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

func isJSONBody(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return strings.EqualFold(mt, "application/json")
}
