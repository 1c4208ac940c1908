// Package agrimarket provides the embedded templates of the local web shell.
package agrimarket

import "embed"

// TemplateFS holds the shell's page templates. In dev mode they are read from disk instead.
//
//go:embed all:frontend/templates
var TemplateFS embed.FS
