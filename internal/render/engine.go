// Package render orchestrates turning content nodes into artifacts: template
// chain resolution, shortcode expansion, Markdown conversion, and
// post-processing. The template expression evaluator, the Markdown parser,
// the syntax highlighter, and the minifier are external collaborators
// consumed behind narrow interfaces.
package render

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"git.home.luguber.info/inful/novos/internal/config"
)

// Engine evaluates a named template against a context. It is the boundary to
// the external template-expression evaluator.
type Engine interface {
	Render(name string, data any) (string, error)
	// Has reports whether a template with the given name is loaded.
	Has(name string) bool
}

// PageData is the page-scoped portion of a template context.
type PageData struct {
	Slug  string
	Title string
	Date  string
	Tags  []string
	URL   string
	Extra map[string]any
}

// Context is the data every template evaluation receives.
type Context struct {
	Site    config.Site
	BaseURL string
	Base    string
	Page    PageData
	// Content is the pre-rendered HTML body; auto-escaping is off because the
	// Markdown and highlighting collaborators already emit trusted HTML.
	Content string
	// Posts is the pre-rendered post-list fragment.
	Posts string
}

// templateEngine implements Engine on text/template with the sprig function
// map. The lookup table of named templates is built once per build; dispatch
// is a closed set, never reflection at render time.
type templateEngine struct {
	root *template.Template
}

// NewEngine parses the given named template sources into an engine.
func NewEngine(sources map[string]string) (Engine, error) {
	root := template.New("").Funcs(sprig.FuncMap())
	for name, src := range sources {
		if _, err := root.New(name).Parse(src); err != nil {
			return nil, fmt.Errorf("parse template %q: %w", name, err)
		}
	}
	return &templateEngine{root: root}, nil
}

func (e *templateEngine) Render(name string, data any) (string, error) {
	t := e.root.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("template %q not loaded", name)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (e *templateEngine) Has(name string) bool {
	return e.root.Lookup(name) != nil
}
