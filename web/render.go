// Package web renders the console's pages and HTML fragments from
// embedded templates.
package web

import (
	"fmt"
	"html/template"
	"io"
	"time"
)

// NavSection is one group of sidebar links.
type NavSection struct {
	Title string
	Items []NavItem
}

// NavItem is one sidebar link.
type NavItem struct {
	Label string
	Path  string
}

// ContextSection is one group in the external-context rail.
type ContextSection struct {
	Title string
	Items []string
}

// PageData is the common context every page template receives.
type PageData struct {
	Title            string
	Now              string
	Path             string
	ShowContext      bool
	NavSections      []NavSection
	ExternalSections []ContextSection
	Data             any
}

// Renderer holds the parsed template set. Parse once at construction;
// pages and fragments are addressed by file name.
type Renderer struct {
	pages     map[string]*template.Template
	fragments *template.Template
}

var pageNames = []string{"chat", "admin", "integrations", "delegates"}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	fragments, err := template.ParseFS(Files, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse fragments: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(Files,
			"templates/layout.html",
			"templates/partials/*.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, fragments: fragments}, nil
}

// Page renders a full page inside the layout.
func (r *Renderer) Page(w io.Writer, name string, data PageData) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	if data.Now == "" {
		data.Now = time.Now().Format(time.RFC3339)
	}
	data.NavSections = Nav()
	data.ExternalSections = ExternalContext()
	return t.ExecuteTemplate(w, "layout", data)
}

// Fragment renders one partial by template name.
func (r *Renderer) Fragment(w io.Writer, name string, data any) error {
	return r.fragments.ExecuteTemplate(w, name, data)
}

// Nav returns the sidebar sections.
func Nav() []NavSection {
	return []NavSection{
		{Title: "Senses", Items: []NavItem{
			{Label: "Signals", Path: "/chat"},
			{Label: "Presence", Path: "/chat"},
		}},
		{Title: "Extremities", Items: []NavItem{
			{Label: "Commands", Path: "/chat"},
			{Label: "Delegates", Path: "/delegates"},
		}},
		{Title: "Tools", Items: []NavItem{
			{Label: "Tooling", Path: "/chat"},
		}},
		{Title: "Integrations", Items: []NavItem{
			{Label: "Integrations", Path: "/integrations"},
		}},
		{Title: "Admin Mode", Items: []NavItem{
			{Label: "Admin", Path: "/admin"},
		}},
		{Title: "Prompts", Items: []NavItem{
			{Label: "Prompt Library", Path: "/chat"},
		}},
	}
}

// ExternalContext returns the context rail sections.
func ExternalContext() []ContextSection {
	titles := []string{
		"Family", "Friends", "Home", "Devices", "Services",
		"Other Agents", "Delegates", "Contexts", "Jobs / Responsibilities",
	}
	sections := make([]ContextSection, len(titles))
	for i, t := range titles {
		sections[i] = ContextSection{Title: t, Items: []string{"No context linked"}}
	}
	return sections
}
