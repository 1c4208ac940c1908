package httpx

import (
	"log/slog"
	"net/http"
	"net/url"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/domain/authz"
)

// ProtectedRoute is a gated page of the shell.
type ProtectedRoute struct {
	Path        string
	Title       string
	Requirement authz.Requirement
	// SummaryPath is the marketplace API path whose JSON object is shown on the page.
	SummaryPath string
}

//nolint:gochecknoglobals // static route table
var protectedRoutes = []ProtectedRoute{
	{Path: "/farmer-dashboard", Title: "Farmer Dashboard", Requirement: authz.Only(domainauth.RoleFarmer), SummaryPath: "/farmer/summary"},
	{Path: "/buyer-dashboard", Title: "Buyer Dashboard", Requirement: authz.Only(domainauth.RoleBuyer), SummaryPath: "/buyer/summary"},
	{Path: "/input-seller-dashboard", Title: "Input Seller Dashboard", Requirement: authz.Only(domainauth.RoleInputSeller), SummaryPath: "/input-seller/summary"},
	{Path: "/expert-dashboard", Title: "Expert Dashboard", Requirement: authz.Only(domainauth.RoleExpert), SummaryPath: "/expert/summary"},
	{Path: "/logistics-dashboard", Title: "Logistics Dashboard", Requirement: authz.Only(domainauth.RoleLogistics), SummaryPath: "/logistics/summary"},
	{Path: "/financial-dashboard", Title: "Financial Institution Dashboard", Requirement: authz.Only(domainauth.RoleFinancial), SummaryPath: "/financial/summary"},
	{
		Path:        "/marketplace",
		Title:       "Marketplace",
		Requirement: authz.AnyOf(domainauth.RoleFarmer, domainauth.RoleBuyer, domainauth.RoleInputSeller),
		SummaryPath: "/marketplace/summary",
	},
	{Path: "/advisory", Title: "Advisory", Requirement: authz.AnyOf(domainauth.RoleFarmer, domainauth.RoleExpert), SummaryPath: "/advisory/summary"},
	{Path: "/profile", Title: "My Profile", Requirement: authz.Authenticated()},
}

// ProtectedRoutes returns a copy of the shell's route table.
func ProtectedRoutes() []ProtectedRoute {
	return append([]ProtectedRoute(nil), protectedRoutes...)
}

// LookupRoute finds the route for path. Query strings are ignored.
func LookupRoute(path string) (ProtectedRoute, bool) {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	for _, rt := range protectedRoutes {
		if rt.Path == path {
			return rt, true
		}
	}
	return ProtectedRoute{}, false
}

// RouterServices holds everything the shell's router needs.
type RouterServices struct {
	Sessions SessionService
	// Optional: marketplace API used for dashboard summaries.
	Summaries SummaryFetcher
	// Optional: last-known figures for dashboards.
	Cache SummaryCache
	// Optional: navigation requested by the unauthorized channel.
	Navigation *PendingNavigation
	// Optional: HTML pages; plain text is used when nil.
	Renderer PageRenderer
	// Optional: metrics endpoint.
	MetricsHandler http.Handler
	MetricsPath    string
	Logger         *slog.Logger
}

// NewRouter creates the shell's handler with its middleware chain.
func NewRouter(s RouterServices) http.Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	gate := Gate{Sessions: s.Sessions, Pages: s.Renderer, Logger: logger}
	authHandlers := &AuthHandlers{Sessions: s.Sessions, Pages: s.Renderer, Logger: logger}
	dashHandlers := &DashboardHandlers{Sessions: s.Sessions, Summaries: s.Summaries, Cache: s.Cache, Pages: s.Renderer, Logger: logger}

	mux.Handle("GET /healthz", healthHandler(s.Sessions))
	mux.Handle("HEAD /healthz", healthHandler(s.Sessions))
	registerAuthRoutes(mux, authHandlers)

	mux.Handle("GET /{$}", http.RedirectHandler("/dashboard", http.StatusSeeOther))
	mux.Handle("GET /dashboard", gate.RequireRoles(authz.Authenticated())(http.HandlerFunc(dashHandlers.Home)))
	for _, rt := range protectedRoutes {
		mux.Handle("GET "+rt.Path, gate.RequireRoles(rt.Requirement)(dashHandlers.Page(rt)))
	}

	if s.MetricsHandler != nil {
		path := s.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.MetricsHandler)
	}

	var h http.Handler = mux
	if s.Navigation != nil {
		h = s.Navigation.Middleware()(h)
	}
	h = CSRFProtection(CSRFConfig{})(h)
	h = BrowserDetection()(h)
	h = Logging(logger)(h)
	return Recover(logger)(h)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth", h.Show)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("POST /auth/switch-account", h.SwitchAccount)
	mux.HandleFunc("GET /auth/status", h.Status)
}
