package httpx

import (
	"net/http"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
)

// PageData is the value handed to the layout template.
type PageData map[string]any

// Page returns the page identifier.
func (d PageData) Page() string {
	s, _ := d["Page"].(string)
	return s
}

// Title returns the document title.
func (d PageData) Title() string {
	s, _ := d["Title"].(string)
	return s
}

// PageMeta identifies the page being rendered.
type PageMeta struct {
	Title string
	Page  string
}

// TemplateDataBuilder provides a fluent API for building template data.
type TemplateDataBuilder struct {
	data PageData
}

// NewTemplateData starts page data with the fields every page uses:
// the CSRF token, the current path and the principal admitted by the gate.
func NewTemplateData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	data := PageData{
		"Title":       meta.Title,
		"Page":        meta.Page,
		"CSRFToken":   GetCSRFToken(r),
		"CurrentPath": r.URL.Path,
		"Form":        map[string]string{},
	}
	if p, ok := PrincipalFromContext(r.Context()); ok {
		data["Principal"] = p
	}
	return &TemplateDataBuilder{data: data}
}

// WithError sets a general error message.
func (b *TemplateDataBuilder) WithError(msg string) *TemplateDataBuilder {
	b.data["ErrorMessage"] = msg
	return b
}

// WithPrincipal overrides the principal shown in the header.
func (b *TemplateDataBuilder) WithPrincipal(p *domainauth.Principal) *TemplateDataBuilder {
	if p == nil {
		delete(b.data, "Principal")
		return b
	}
	b.data["Principal"] = p
	return b
}

// With adds a custom field.
func (b *TemplateDataBuilder) With(key string, value any) *TemplateDataBuilder {
	b.data[key] = value
	return b
}

// Build returns the final page data.
func (b *TemplateDataBuilder) Build() PageData {
	return b.data
}
