// Package template renders the built-in HTML email templates used by
// `mailgoat send --template`. Templates are embedded in the binary;
// user-supplied data is injected with html/template escaping.
package template

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"sort"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer renders named email templates with key/value data.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded template set.
func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

// Render produces the HTML body for the named template. The name may be
// given with or without the .html extension.
func (r *Renderer) Render(name string, data map[string]string) (string, error) {
	if !strings.HasSuffix(name, ".html") {
		name += ".html"
	}

	t := r.templates.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("unknown template %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering template %q: %w", name, err)
	}
	return buf.String(), nil
}

// Names lists the available template names without extensions, sorted.
func (r *Renderer) Names() []string {
	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".html"))
	}
	sort.Strings(names)
	return names
}
