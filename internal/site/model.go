package site

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/norgolith/lith/internal/config"
	"github.com/norgolith/lith/internal/logfields"
	"github.com/norgolith/lith/internal/render"
)

// knownHighlighters are the engines the default templates ship client-side
// support for.
var knownHighlighters = map[string]bool{
	"prism":        true,
	"highlight.js": true,
	"hljs":         true,
}

// LinkDiagnostic records a cross-document link whose target route does not
// exist in the site model.
type LinkDiagnostic struct {
	Route  string // document containing the link
	Target string // resolved route that was not found
}

// Model is the single authoritative store. All mutating methods are called
// from the build task only; readers interact exclusively through the
// atomically swapped Snapshot.
type Model struct {
	root   string
	drafts bool

	cfg  *config.Site
	tpls *render.Set

	docs   map[string]*Document
	assets map[string]*Asset

	snap atomic.Pointer[Snapshot]

	engineWarned bool
}

// New creates a model rooted at the site directory. Templates are not
// loaded yet; call ReloadTemplates before the first Publish.
func New(root string, cfg *config.Site, drafts bool) *Model {
	m := &Model{
		root:   root,
		drafts: drafts,
		cfg:    cfg,
		docs:   map[string]*Document{},
		assets: map[string]*Asset{},
	}
	m.warnUnknownHighlighter()
	return m
}

// warnUnknownHighlighter reports an unrecognized engine name once; the
// language-* classes are emitted regardless.
func (m *Model) warnUnknownHighlighter() {
	if m.engineWarned || m.cfg.Highlighter == nil || !m.cfg.Highlighter.Enable {
		return
	}
	if engine := m.cfg.HighlighterEngine(); !knownHighlighters[engine] {
		slog.Warn("Unknown syntax highlighting engine; language classes are still emitted", "engine", engine)
		m.engineWarned = true
	}
}

// Config returns the current site configuration.
func (m *Model) Config() *config.Site { return m.cfg }

// UpsertDocument converts source bytes and replaces the entry for route.
func (m *Model) UpsertDocument(route, sourcePath string, source []byte) {
	m.docs[route] = NewDocument(route, sourcePath, source)
}

// InsertDocument replaces the entry for route with an already converted
// document (conversion may have happened on a worker).
func (m *Model) InsertDocument(route string, doc *Document) {
	m.docs[route] = doc
}

// Asset looks up the asset currently served at urlPath.
func (m *Model) Asset(urlPath string) (*Asset, bool) {
	a, ok := m.assets[urlPath]
	return a, ok
}

// RemoveDocument deletes the entry for route.
func (m *Model) RemoveDocument(route string) {
	delete(m.docs, route)
}

// UpsertAsset replaces the asset served at urlPath.
func (m *Model) UpsertAsset(urlPath, sourcePath string, body []byte) {
	m.assets[urlPath] = NewAsset(urlPath, sourcePath, body)
}

// RemoveAsset deletes the asset served at urlPath.
func (m *Model) RemoveAsset(urlPath string) {
	delete(m.assets, urlPath)
}

// ReloadTemplates recompiles the whole template namespace. Coarse but
// correct: templates change rarely and inter-template dependencies are
// cheap to recompute.
func (m *Model) ReloadTemplates() error {
	set, err := render.Load(
		filepath.Join(m.root, "templates"),
		filepath.Join(m.root, "theme", "templates"),
	)
	if err != nil {
		return err
	}
	m.tpls = set
	return nil
}

// ReloadConfig re-reads norgolith.toml. On failure the previous config is
// retained and the error returned for logging.
func (m *Model) ReloadConfig() error {
	cfg, err := config.Load(filepath.Join(m.root, config.ConfigFileName))
	if err != nil {
		return err
	}
	m.cfg = cfg
	m.engineWarned = false
	m.warnUnknownHighlighter()
	return nil
}

// Snapshot returns the currently published snapshot, or nil before the
// first Publish.
func (m *Model) Snapshot() *Snapshot {
	return m.snap.Load()
}

// Publish rebuilds the global indices and atomically swaps in a new
// snapshot. It returns the snapshot together with the broken-link
// diagnostics aggregated over the whole model; publishing is the only point
// at which readers observe change.
func (m *Model) Publish(now time.Time) (*Snapshot, []LinkDiagnostic) {
	snap := &Snapshot{
		ID:          uuid.NewString(),
		PublishedAt: now,
		Config:      m.cfg,
		Templates:   m.tpls,
		Drafts:      m.drafts,
		Docs:        make(map[string]*Document, len(m.docs)),
		Assets:      make(map[string]*Asset, len(m.assets)),
		Categories:  map[string][]*Document{},
	}
	for route, doc := range m.docs {
		snap.Docs[route] = doc
	}
	for path, asset := range m.assets {
		snap.Assets[path] = asset
	}

	snap.Posts = m.buildPostsIndex()
	for _, post := range snap.Posts {
		for _, cat := range post.Categories {
			name := strings.ToLower(cat)
			snap.Categories[name] = append(snap.Categories[name], post)
		}
	}

	snap.postsData = make([]any, 0, len(snap.Posts))
	for _, post := range snap.Posts {
		snap.postsData = append(snap.postsData, post.TemplateData())
	}
	snap.categoriesData = make(map[string]any, len(snap.Categories))
	for name, docs := range snap.Categories {
		data := make([]any, 0, len(docs))
		for _, doc := range docs {
			data = append(data, doc.TemplateData())
		}
		snap.categoriesData[name] = data
	}

	diags := m.collectLinkDiagnostics(snap)
	m.snap.Store(snap)
	slog.Debug("Published site snapshot",
		logfields.SnapshotID(snap.ID),
		logfields.Documents(len(snap.Docs)),
		slog.Int("posts", len(snap.Posts)),
		slog.Int("assets", len(snap.Assets)))
	return snap, diags
}

// buildPostsIndex selects and orders the posts: created descending with
// ties broken by route ascending; drafts appear only in dev mode.
func (m *Model) buildPostsIndex() []*Document {
	var posts []*Document
	for _, doc := range m.docs {
		if !doc.IsPost() {
			continue
		}
		if doc.Draft && !m.drafts {
			continue
		}
		posts = append(posts, doc)
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].Created.Equal(posts[j].Created) {
			return posts[i].Created.After(posts[j].Created)
		}
		return posts[i].Route < posts[j].Route
	})
	return posts
}

// collectLinkDiagnostics finds links whose resolved route has no document.
// Broken links never block a build; they are aggregated per batch.
func (m *Model) collectLinkDiagnostics(snap *Snapshot) []LinkDiagnostic {
	var diags []LinkDiagnostic
	routes := make([]string, 0, len(snap.Docs))
	for route := range snap.Docs {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	for _, route := range routes {
		for _, target := range snap.Docs[route].Links {
			if _, ok := snap.Docs[target]; !ok {
				diags = append(diags, LinkDiagnostic{Route: route, Target: target})
			}
		}
	}
	return diags
}
