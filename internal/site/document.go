// Package site holds the authoritative in-memory model of the site: content
// documents, assets, global indices, and the immutable snapshots served by
// the dev server.
package site

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/norgolith/lith/internal/converter"
	"github.com/norgolith/lith/internal/markdown"
)

// Document is one content source file and its derived artifacts.
type Document struct {
	Route      string
	SourcePath string
	SourceHash string

	// Meta is the typed metadata map with defaults applied; unknown keys
	// are preserved verbatim for templates.
	Meta map[string]any

	Title      string
	Layout     string
	Draft      bool
	Created    time.Time
	HasCreated bool
	Updated    time.Time
	Authors    []string
	Categories []string

	// HTML is the rendered content fragment.
	HTML string

	// Links holds resolved internal document routes this fragment links,
	// Assets the internal asset paths it references.
	Links  []string
	Assets []string

	Diags []converter.Diagnostic
}

// NewDocument converts source bytes into a document for the given route.
// Norg sources go through the Norg converter; Markdown sources through
// goldmark. Conversion failures degrade to placeholder documents rather
// than erroring, so dependents survive mid-edit states.
func NewDocument(route, sourcePath string, source []byte) *Document {
	doc := &Document{
		Route:      route,
		SourcePath: sourcePath,
		SourceHash: HashBytes(source),
	}

	var meta map[string]any
	if strings.EqualFold(filepath.Ext(sourcePath), ".md") {
		var html string
		var err error
		meta, html, err = markdown.Convert(source)
		doc.HTML = html
		if err != nil {
			doc.Diags = append(doc.Diags, converter.Diagnostic{Kind: "parse", Message: err.Error()})
		}
	} else {
		result := converter.Convert(string(source), route)
		meta = result.Meta
		doc.HTML = result.HTML
		doc.Links = result.Links
		doc.Assets = result.Assets
		doc.Diags = result.Diags
	}

	converter.ApplyMetaDefaults(meta, route)
	doc.Meta = meta
	doc.Title = converter.MetaString(meta, "title", "")
	doc.Layout = converter.MetaString(meta, "layout", "default")
	doc.Draft = converter.MetaBool(meta, "draft")
	doc.Authors = converter.MetaStrings(meta, "authors")
	doc.Categories = converter.MetaStrings(meta, "categories")
	if t, ok := converter.MetaTime(meta, "created"); ok {
		doc.Created = t
		doc.HasCreated = true
	}
	if t, ok := converter.MetaTime(meta, "updated"); ok {
		doc.Updated = t
	}
	return doc
}

// IsPost reports whether the document belongs to the posts index: any route
// under /posts/ except the posts listing itself.
func (d *Document) IsPost() bool {
	return strings.HasPrefix(d.Route, "/posts/") && d.Route != "/posts/"
}

// TemplateName is the template this document renders through.
func (d *Document) TemplateName() string {
	return d.Layout + ".html"
}

// TemplateData exposes the document to templates: every metadata key
// verbatim, plus the computed route and permalink.
func (d *Document) TemplateData() map[string]any {
	data := make(map[string]any, len(d.Meta)+4)
	for k, v := range d.Meta {
		data[k] = v
	}
	data["route"] = d.Route
	data["permalink"] = d.Route
	if d.HasCreated {
		data["created"] = d.Created
	}
	if !d.Updated.IsZero() {
		data["updated"] = d.Updated
	}
	return data
}

// HashBytes is the content hash used across the pipeline.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
