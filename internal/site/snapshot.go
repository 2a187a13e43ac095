package site

import (
	"errors"
	"time"

	"github.com/norgolith/lith/internal/config"
	"github.com/norgolith/lith/internal/render"
)

// ErrRouteNotFound reports a route with no document in the snapshot.
var ErrRouteNotFound = errors.New("route not found")

// Snapshot is an immutable view of the site model published atomically by
// the build task. Everything reachable from a snapshot is treated as
// read-only after publish.
type Snapshot struct {
	ID          string
	PublishedAt time.Time

	Config    *config.Site
	Templates *render.Set

	// Drafts reports whether draft documents are being served (dev mode).
	Drafts bool

	Docs   map[string]*Document
	Assets map[string]*Asset

	// Posts is the ordered posts index: routes under /posts/, created
	// descending, route ascending, drafts filtered per mode.
	Posts []*Document

	// Categories maps lowercased category names to ordered documents.
	Categories map[string][]*Document

	// postsData and categoriesData are the template-facing projections of
	// the indices, precomputed at publish.
	postsData      []any
	categoriesData map[string]any
}

// Lookup resolves a request path to a document, honoring draft visibility.
func (s *Snapshot) Lookup(route string) (*Document, bool) {
	doc, ok := s.Docs[route]
	if !ok {
		return nil, false
	}
	if doc.Draft && !s.Drafts {
		return nil, false
	}
	return doc, true
}

// Render expands the document's chosen template against the full request
// context. now is the render time, not the build time, so served pages
// show live timestamps.
func (s *Snapshot) Render(route string, now time.Time) (string, error) {
	doc, ok := s.Lookup(route)
	if !ok {
		return "", ErrRouteNotFound
	}
	return s.Templates.Render(doc.TemplateName(), s.Context(doc, now))
}

// Context assembles the template context for one document.
func (s *Snapshot) Context(doc *Document, now time.Time) map[string]any {
	return map[string]any{
		"config":     s.Config.TemplateData(),
		"metadata":   doc.TemplateData(),
		"content":    render.Safe(doc.HTML),
		"posts":      s.postsData,
		"categories": s.categoriesData,
		"now":        now,
	}
}

// globalContext is the document-less context used for the 404 page and
// other synthetic renders.
func (s *Snapshot) globalContext(now time.Time) map[string]any {
	return map[string]any{
		"config":     s.Config.TemplateData(),
		"metadata":   map[string]any{},
		"content":    render.Safe(""),
		"posts":      s.postsData,
		"categories": s.categoriesData,
		"now":        now,
	}
}

// RenderNotFound renders the 404 template when the namespace has one.
func (s *Snapshot) RenderNotFound(now time.Time) (string, bool) {
	if !s.Templates.Has("404.html") {
		return "", false
	}
	out, err := s.Templates.Render("404.html", s.globalContext(now))
	if err != nil {
		return "", false
	}
	return out, true
}
