// Package publish produces the production build: every non-draft route
// rendered into public/, the RSS feed, and the copied asset trees.
package publish

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/norgolith/lith/internal/buildcache"
	"github.com/norgolith/lith/internal/config"
	"github.com/norgolith/lith/internal/lerrors"
	"github.com/norgolith/lith/internal/logfields"
	"github.com/norgolith/lith/internal/metrics"
	"github.com/norgolith/lith/internal/pipeline"
	"github.com/norgolith/lith/internal/server"
	"github.com/norgolith/lith/internal/site"
)

// Options configure a production build.
type Options struct {
	Minify    bool
	KeepGoing bool
	Drafts    bool
}

// CacheFileName is the on-disk incremental build cache, kept under the
// site root.
const CacheFileName = ".lith-cache.db"

// Build renders the whole site into <root>/public. It returns an error when
// any fatal-per-file problem occurred, unless KeepGoing is set.
func Build(root string, cfg *config.Site, opts Options) error {
	start := time.Now()

	p, err := pipeline.New(root, cfg, pipeline.Options{Drafts: opts.Drafts},
		server.NewHub(nil), metrics.NewRecorder())
	if err != nil {
		return err
	}
	snap := p.Model().Snapshot()

	cache, err := buildcache.Open(filepath.Join(root, CacheFileName))
	if err != nil {
		// The cache is an accelerator; a broken cache never fails a build.
		slog.Warn("Build cache unavailable; rendering everything", logfields.Error(err))
		cache = nil
	}
	if cache != nil {
		defer func() { _ = cache.Close() }()
	}

	publicDir := filepath.Join(root, "public")
	if err := os.RemoveAll(publicDir); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityFatal, "clear public directory")
	}

	var failures []string
	record := func(route string, err error) {
		slog.Error("Build failure", logfields.Route(route), logfields.Error(err))
		failures = append(failures, route)
	}

	now := time.Now()
	liveRoutes := map[string]bool{}
	rendered, cached := 0, 0

	for route, doc := range snap.Docs {
		if doc.Draft && !opts.Drafts {
			continue
		}
		liveRoutes[route] = true

		// A route fails at most once, so the summary count stays accurate.
		if err := validateSchema(cfg, doc); err != nil {
			record(route, err)
			continue
		}
		if diag := parseFailure(doc); diag != "" {
			record(route, lerrors.New(lerrors.KindParse, lerrors.SeverityError, diag))
			continue
		}

		depsHash := snap.Templates.DependencyHash(doc.TemplateName()) + ":" + cfg.Hash
		if cache != nil {
			if body, hit, err := cache.Get(route, doc.SourceHash, depsHash); err == nil && hit {
				if err := writeRoute(publicDir, route, body, opts.Minify); err != nil {
					record(route, err)
					continue
				}
				cached++
				continue
			}
		}

		html, err := snap.Render(route, now)
		if err != nil {
			record(route, err)
			continue
		}
		body := []byte(html)
		if err := writeRoute(publicDir, route, body, opts.Minify); err != nil {
			record(route, err)
			continue
		}
		if cache != nil {
			if err := cache.Put(route, doc.SourceHash, depsHash, body); err != nil {
				slog.Warn("Build cache write failed", logfields.Route(route), logfields.Error(err))
			}
		}
		rendered++
	}

	if cache != nil {
		if err := cache.Prune(liveRoutes); err != nil {
			slog.Warn("Build cache prune failed", logfields.Error(err))
		}
	}

	if err := writeRSS(publicDir, snap, opts); err != nil {
		record("/rss.xml", err)
	}
	if err := copyAssets(publicDir, snap, opts.Minify); err != nil {
		return err
	}

	slog.Info("Finished site build",
		slog.Int("rendered", rendered),
		slog.Int("cached", cached),
		slog.Int("failures", len(failures)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))

	if len(failures) > 0 && !opts.KeepGoing {
		return lerrors.Newf(lerrors.KindTemplate, "build failed for %d route(s): %s",
			len(failures), strings.Join(failures, ", "))
	}
	return nil
}

// parseFailure reports the first parse diagnostic, which is fatal-per-file
// for production builds (the dev server keeps serving the placeholder).
func parseFailure(doc *site.Document) string {
	for _, diag := range doc.Diags {
		if diag.Kind == "parse" {
			return diag.Message
		}
	}
	return ""
}

func validateSchema(cfg *config.Site, doc *site.Document) error {
	if cfg.ContentSchema == nil {
		return nil
	}
	contentPath := strings.Trim(doc.Route, "/")
	violations := cfg.ContentSchema.Validate(contentPath, doc.Meta)
	if len(violations) == 0 {
		return nil
	}
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.String()
	}
	return lerrors.Newf(lerrors.KindConfig, "metadata schema violations: %s", strings.Join(msgs, "; "))
}

// writeRoute writes a rendered page as <route>/index.html under public/.
func writeRoute(publicDir, route string, body []byte, minify bool) error {
	rel := strings.Trim(route, "/")
	outPath := filepath.Join(publicDir, filepath.FromSlash(rel), "index.html")
	if minify {
		min, err := minifyBytes("text/html", body)
		if err == nil {
			body = min
		}
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "create output directory")
	}
	if err := os.WriteFile(outPath, body, 0o644); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "write "+outPath)
	}
	return nil
}

func writeRSS(publicDir string, snap *site.Snapshot, opts Options) error {
	feed, err := snap.RenderRSS()
	if err != nil {
		return err
	}
	body := []byte(feed)
	if opts.Minify {
		if min, err := minifyBytes("text/xml", body); err == nil {
			body = min
		}
	}
	if err := os.WriteFile(filepath.Join(publicDir, "rss.xml"), body, 0o644); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "write rss.xml")
	}
	return nil
}

// copyAssets writes every asset in the snapshot bit-for-bit (minified for
// CSS/JS when requested).
func copyAssets(publicDir string, snap *site.Snapshot, minify bool) error {
	for urlPath, asset := range snap.Assets {
		outPath := filepath.Join(publicDir, filepath.FromSlash(strings.TrimPrefix(urlPath, "/")))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "create asset directory")
		}
		body := asset.Body
		if minify {
			switch filepath.Ext(outPath) {
			case ".css":
				if min, err := minifyBytes("text/css", body); err == nil {
					body = min
				}
			case ".js":
				if min, err := minifyBytes("application/javascript", body); err == nil {
					body = min
				}
			}
		}
		if err := os.WriteFile(outPath, body, 0o644); err != nil {
			return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, fmt.Sprintf("write asset %s", outPath))
		}
	}
	return nil
}
