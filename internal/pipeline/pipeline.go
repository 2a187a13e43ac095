// Package pipeline wires the incremental build-and-serve loop: the watch
// task feeding debounced change batches, the build task (the sole mutator
// of the site model) and the snapshot publication the server reads from.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/norgolith/lith/internal/config"
	"github.com/norgolith/lith/internal/lerrors"
	"github.com/norgolith/lith/internal/loader"
	"github.com/norgolith/lith/internal/logfields"
	"github.com/norgolith/lith/internal/metrics"
	"github.com/norgolith/lith/internal/server"
	"github.com/norgolith/lith/internal/site"
	"github.com/norgolith/lith/internal/watcher"
)

// Options configure a pipeline run.
type Options struct {
	Drafts   bool
	Debounce time.Duration
}

// Pipeline owns the site model and applies change batches to it. Only the
// build task calls its mutating methods.
type Pipeline struct {
	root    string
	model   *site.Model
	hub     *server.Hub
	metrics *metrics.Recorder
}

// New builds the model, loads templates, and populates it from a full scan
// of the site trees. The first snapshot is published before New returns, so
// a server can start serving immediately.
func New(root string, cfg *config.Site, opts Options, hub *server.Hub, rec *metrics.Recorder) (*Pipeline, error) {
	p := &Pipeline{
		root:    root,
		model:   site.New(root, cfg, opts.Drafts),
		hub:     hub,
		metrics: rec,
	}
	if err := p.model.ReloadTemplates(); err != nil {
		return nil, err
	}
	if err := p.initialScan(); err != nil {
		return nil, err
	}
	snap, diags := p.model.Publish(time.Now())
	logLinkDiagnostics(diags)
	slog.Info("Initial build complete",
		logfields.Documents(len(snap.Docs)), slog.Int("assets", len(snap.Assets)))
	return p, nil
}

// Model exposes the underlying site model (snapshot access for the server).
func (p *Pipeline) Model() *site.Model { return p.model }

// WatchRoots returns the paths the watcher observes.
func (p *Pipeline) WatchRoots() []string {
	return []string{
		filepath.Join(p.root, "content"),
		filepath.Join(p.root, "templates"),
		filepath.Join(p.root, "assets"),
		filepath.Join(p.root, "theme", "templates"),
		filepath.Join(p.root, "theme", "assets"),
		filepath.Join(p.root, config.ConfigFileName),
	}
}

// initialScan populates the model from disk. Document conversion is fanned
// out to a worker pool bounded by CPU count; the results are inserted
// serially so the model only ever sees single-writer mutation.
func (p *Pipeline) initialScan() error {
	events, err := loader.Scan(p.root)
	if err != nil {
		return err
	}

	type converted struct {
		event loader.Event
		doc   *site.Document
		body  []byte
	}

	jobs := make(chan loader.Event)
	results := make(chan converted, len(events))
	var wg sync.WaitGroup
	for i := 0; i < runtime.NumCPU(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range jobs {
				data, ok, err := loader.Read(ev.Path)
				if err != nil || !ok {
					if err != nil {
						slog.Warn("Skipping unreadable file", logfields.Path(ev.Path), logfields.Error(err))
					}
					continue
				}
				out := converted{event: ev}
				if ev.Class == loader.ClassContent {
					out.doc = site.NewDocument(ev.Route, ev.Path, data)
				} else {
					out.body = data
				}
				results <- out
			}
		}()
	}
	for _, ev := range events {
		jobs <- ev
	}
	close(jobs)
	wg.Wait()
	close(results)

	for out := range results {
		switch out.event.Class {
		case loader.ClassContent:
			p.insertDocument(out.event.Route, out.doc)
		case loader.ClassAsset:
			p.insertAsset(out.event, out.body)
		}
	}
	return nil
}

// insertDocument is the single-writer insertion point for converted docs.
func (p *Pipeline) insertDocument(route string, doc *site.Document) {
	for _, diag := range doc.Diags {
		slog.Warn("Conversion diagnostic", logfields.Route(route),
			logfields.Kind(diag.Kind), slog.String("message", diag.Message))
	}
	p.model.InsertDocument(route, doc)
}

func (p *Pipeline) insertAsset(ev loader.Event, body []byte) {
	// Site assets shadow theme assets at the same URL path.
	if p.isThemeAsset(ev.Path) {
		if existing, ok := p.model.Asset(ev.URLPath); ok && !p.isThemeAsset(existing.SourcePath) {
			return
		}
	}
	p.model.UpsertAsset(ev.URLPath, ev.Path, body)
}

func (p *Pipeline) isThemeAsset(path string) bool {
	prefix := filepath.Join(p.root, "theme", "assets") + string(filepath.Separator)
	return strings.HasPrefix(path, prefix)
}

// Run is the build task: it drains batches serially, applies every change
// in a batch, publishes one snapshot, and notifies live-reload clients.
// Shutdown is cooperative: the current batch finishes before Run returns.
func (p *Pipeline) Run(ctx context.Context, w *watcher.Watcher) error {
	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return <-watchErr
		case batch, ok := <-w.Batches():
			if !ok {
				return <-watchErr
			}
			p.applyBatch(batch)
		}
	}
}

// applyBatch applies one coalesced change batch and publishes the result.
// Intermediate states are never visible: readers only observe the publish.
func (p *Pipeline) applyBatch(batch watcher.Batch) {
	start := time.Now()
	templatesDirty := false
	var buildErr error

	for _, change := range batch.Changes {
		ev := loader.Classify(p.root, change.Path)
		switch ev.Class {
		case loader.ClassIgnore:
			continue

		case loader.ClassConfig:
			if err := p.model.ReloadConfig(); err != nil {
				// Keep the previous configuration on a bad reload.
				slog.Error("Config reload failed; keeping previous configuration", logfields.Error(err))
				buildErr = err
				continue
			}
			templatesDirty = true

		case loader.ClassTemplate:
			templatesDirty = true

		case loader.ClassContent:
			p.applyContentChange(ev, change.Kind)

		case loader.ClassAsset:
			p.applyAssetChange(ev, change.Kind)
		}
	}

	if templatesDirty {
		if err := p.model.ReloadTemplates(); err != nil {
			slog.Error("Template reload failed", logfields.Error(err))
			buildErr = err
		}
	}

	snap, diags := p.model.Publish(time.Now())
	logLinkDiagnostics(diags)
	p.metrics.ObserveBuild(time.Since(start), len(snap.Docs))
	slog.Info("Rebuilt site",
		logfields.BatchID(batch.ID),
		slog.Int("changes", len(batch.Changes)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))

	if buildErr != nil {
		p.hub.Broadcast(server.Message{Type: "error", Message: buildErr.Error()})
		return
	}
	p.hub.Broadcast(server.ReloadMessage)
}

func (p *Pipeline) applyContentChange(ev loader.Event, kind watcher.Kind) {
	if kind == watcher.Delete {
		p.model.RemoveDocument(ev.Route)
		return
	}
	data, ok, err := loader.Read(ev.Path)
	if err != nil {
		// Scoped to this file; the rest of the batch proceeds.
		slog.Warn("Content read failed", logfields.Path(ev.Path), logfields.Error(err))
		return
	}
	if !ok {
		p.model.RemoveDocument(ev.Route)
		return
	}
	p.insertDocument(ev.Route, site.NewDocument(ev.Route, ev.Path, data))
}

func (p *Pipeline) applyAssetChange(ev loader.Event, kind watcher.Kind) {
	if kind == watcher.Delete {
		p.removeAssetWithFallback(ev)
		return
	}
	data, ok, err := loader.Read(ev.Path)
	if err != nil {
		slog.Warn("Asset read failed", logfields.Path(ev.Path), logfields.Error(err))
		return
	}
	if !ok {
		p.removeAssetWithFallback(ev)
		return
	}
	p.insertAsset(ev, data)
}

// removeAssetWithFallback drops an asset, falling back to the shadowed
// counterpart (site <-> theme) when one still exists on disk.
func (p *Pipeline) removeAssetWithFallback(ev loader.Event) {
	if alt, ok := p.shadowCounterpart(ev.Path); ok {
		if data, found, err := loader.Read(alt); err == nil && found {
			p.model.UpsertAsset(ev.URLPath, alt, data)
			return
		}
	}
	p.model.RemoveAsset(ev.URLPath)
}

// shadowCounterpart maps a site asset path to its theme twin and back.
func (p *Pipeline) shadowCounterpart(path string) (string, bool) {
	sitePrefix := filepath.Join(p.root, "assets") + string(filepath.Separator)
	themePrefix := filepath.Join(p.root, "theme", "assets") + string(filepath.Separator)
	if rel, ok := strings.CutPrefix(path, sitePrefix); ok {
		return filepath.Join(p.root, "theme", "assets", rel), true
	}
	if rel, ok := strings.CutPrefix(path, themePrefix); ok {
		return filepath.Join(p.root, "assets", rel), true
	}
	return "", false
}

func logLinkDiagnostics(diags []site.LinkDiagnostic) {
	for _, d := range diags {
		slog.Warn("Broken internal link",
			logfields.Route(d.Route), slog.String("target", d.Target),
			logfields.Kind(string(lerrors.KindLink)))
	}
}
