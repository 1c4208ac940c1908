package httpx

// Page identifiers used by handlers and the layout template.
const (
	PageAuth      = "auth"
	PagePending   = "pending"
	PageDenied    = "denied"
	PageDashboard = "dashboard"
	PageError     = "error"
)

// Template paths used for loading templates in dev mode and tests.
const (
	TemplatePathFromRoot = "frontend/templates"
	TemplatePathFromTest = "../../frontend/templates"
)

//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageAuth:      "auth-content",
	PagePending:   "pending-content",
	PageDenied:    "denied-content",
	PageDashboard: "dashboard-content",
	PageError:     "error-content",
}

// ContentTemplateFor returns the content template for page.
// Unknown pages fall back to the error page.
func ContentTemplateFor(page string) string {
	if name, ok := contentTemplates[page]; ok {
		return name
	}
	return "error-content"
}
