// Package loader classifies filesystem paths into pipeline events and reads
// their contents for the build task.
package loader

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/norgolith/lith/internal/converter"
	"github.com/norgolith/lith/internal/lerrors"
)

// Class says which pipeline stage consumes a changed file.
type Class int

const (
	ClassIgnore Class = iota
	ClassContent
	ClassTemplate
	ClassAsset
	ClassConfig
)

func (c Class) String() string {
	switch c {
	case ClassContent:
		return "content"
	case ClassTemplate:
		return "template"
	case ClassAsset:
		return "asset"
	case ClassConfig:
		return "config"
	default:
		return "ignore"
	}
}

// Event is a classified path.
type Event struct {
	Class Class

	// Path is the absolute source path.
	Path string

	// Route is the derived content route (content events only).
	Route string

	// URLPath is the serving path (asset events only).
	URLPath string
}

// isContentExt reports whether ext is a source format the converter understands.
func isContentExt(ext string) bool {
	return ext == ".norg" || ext == ".md"
}

// Classify maps an absolute path within the site root to its event class:
// content under content/ by extension, templates under templates/ and
// theme/templates/, the config file at the root, everything else under the
// content and asset trees is an asset.
func Classify(root, path string) Event {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Event{Class: ClassIgnore, Path: path}
	}
	rel = filepath.ToSlash(rel)

	if rel == "norgolith.toml" {
		return Event{Class: ClassConfig, Path: path}
	}

	ext := strings.ToLower(filepath.Ext(rel))

	switch {
	case strings.HasPrefix(rel, "templates/"), strings.HasPrefix(rel, "theme/templates/"):
		if ext == ".html" || ext == ".xml" {
			return Event{Class: ClassTemplate, Path: path}
		}
		return Event{Class: ClassIgnore, Path: path}

	case strings.HasPrefix(rel, "content/"):
		inner := strings.TrimPrefix(rel, "content/")
		if isContentExt(ext) {
			return Event{Class: ClassContent, Path: path, Route: RouteFor(inner)}
		}
		return Event{Class: ClassAsset, Path: path, URLPath: "/" + inner}

	case strings.HasPrefix(rel, "assets/"):
		return Event{Class: ClassAsset, Path: path, URLPath: "/" + rel}

	case strings.HasPrefix(rel, "theme/assets/"):
		return Event{Class: ClassAsset, Path: path, URLPath: "/assets/" + strings.TrimPrefix(rel, "theme/assets/")}

	default:
		return Event{Class: ClassIgnore, Path: path}
	}
}

// RouteFor derives a document route from a path relative to content/:
// the extension is stripped, index collapses into its directory, and
// non-index documents get a trailing slash.
func RouteFor(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return converter.NormalizeRoute(rel)
}

// Read loads a file's bytes. A missing file reports a nil slice with ok
// false so modify events for vanished files degrade to deletes.
func Read(path string) (data []byte, ok bool, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "read "+path)
	}
	return data, true, nil
}

// Scan walks the site trees and returns every loadable file as a create
// event, for the initial model population.
func Scan(root string) ([]Event, error) {
	var events []Event
	for _, dir := range []string{"content", "assets", filepath.Join("theme", "assets")} {
		base := filepath.Join(root, dir)
		if _, err := os.Stat(base); err != nil {
			continue
		}
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if ev := Classify(root, path); ev.Class != ClassIgnore {
				events = append(events, ev)
			}
			return nil
		})
		if err != nil {
			return nil, lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "scan "+base)
		}
	}
	return events, nil
}
