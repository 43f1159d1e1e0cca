// Package web holds the server-rendered pages of the public site and the
// admin console.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templates embed.FS

// Parse returns every page template. Pages share the "head" and "foot"
// blocks from base.html.
func Parse() (*template.Template, error) {
	return template.ParseFS(templates, "templates/*.html")
}
