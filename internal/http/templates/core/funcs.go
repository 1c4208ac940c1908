package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"strings"
	"time"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
)

// Deps holds dependencies for constructing the core template func map.
type Deps struct {
	Template           **template.Template
	ContentTemplateFor func(string) string
}

// Funcs returns the helpers shared by every shell template.
func Funcs(deps Deps) template.FuncMap {
	funcs := template.FuncMap{
		"sectionTmpl":   deps.ContentTemplateFor,
		"roleLabel":     RoleLabel,
		"requiredLabel": RequiredLabel,
		"friendlyTime":  FriendlyTime,
	}
	addRenderFuncs(funcs, deps)
	return funcs
}

func addRenderFuncs(funcs template.FuncMap, deps Deps) {
	funcs["renderSection"] = func(page string, data any) (template.HTML, error) {
		if deps.Template == nil || *deps.Template == nil {
			return "", errors.New("template not initialized")
		}
		var buf bytes.Buffer
		if err := (*deps.Template).ExecuteTemplate(&buf, deps.ContentTemplateFor(page), data); err != nil {
			return "", err
		}
		// #nosec G203 - output of our own html/template set; values were escaped during ExecuteTemplate.
		return template.HTML(buf.String()), nil
	}

	funcs["toJSON"] = func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// RoleLabel renders a role for display. It accepts a Role or its string form.
func RoleLabel(v any) string {
	switch r := v.(type) {
	case domainauth.Role:
		return r.Label()
	case string:
		return domainauth.Role(r).Label()
	default:
		return ""
	}
}

// RequiredLabel renders a role set as "Farmer or Buyer".
func RequiredLabel(roles []domainauth.Role) string {
	if len(roles) == 0 {
		return "a signed-in account"
	}
	labels := make([]string, len(roles))
	for i, r := range roles {
		labels[i] = r.Label()
	}
	return strings.Join(labels, " or ")
}

// FriendlyTime formats a timestamp in local time; the zero time renders as "".
func FriendlyTime(v any) string {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case *time.Time:
		if x != nil {
			t = *x
		}
	}
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006 3:04 PM")
}
