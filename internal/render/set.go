// Package render adapts the pongo2 template engine to the site pipeline:
// it loads the shadowed site/theme template namespace, registers the
// Norgolith filter set, and surfaces template errors with file and line
// attribution.
package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/flosch/pongo2/v6"

	"github.com/norgolith/lith/internal/lerrors"
)

// Set is an immutable compiled template namespace. Site templates shadow
// theme templates of the same name, including as extends targets.
type Set struct {
	set     *pongo2.TemplateSet
	sources map[string]string // template name -> source text
	origins map[string]string // template name -> file path on disk
	hash    string
	broken  map[string]error // templates implicated in an extends cycle
}

// Load reads every *.html and *.xml template under the site and theme
// template directories into an in-memory set. The theme directory may be
// absent. Sources are read once: the returned Set never touches the
// filesystem again, so it is safe to serve from while files change.
func Load(siteDir, themeDir string) (*Set, error) {
	sources := map[string]string{}
	origins := map[string]string{}

	// Theme first, site second: site templates shadow theme templates.
	for _, dir := range []string{themeDir, siteDir} {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			ext := filepath.Ext(path)
			if ext != ".html" && ext != ".xml" {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(rel)
			sources[name] = string(raw)
			origins[name] = path
			return nil
		})
		if err != nil {
			return nil, lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "read templates")
		}
	}

	registerFilters()

	s := &Set{
		sources: sources,
		origins: origins,
		hash:    hashSources(sources),
		broken:  map[string]error{},
	}
	s.set = pongo2.NewSet("lith", &memLoader{sources: sources})
	s.detectCycles()
	return s, nil
}

// Hash is a digest of every template source, used for staleness checks.
func (s *Set) Hash() string { return s.hash }

// Has reports whether a template with the given name exists.
func (s *Set) Has(name string) bool {
	_, ok := s.sources[name]
	return ok
}

// Names returns the sorted template names in the namespace.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render expands the named template against the given context. Errors carry
// template file and line attribution where the engine provides them.
func (s *Set) Render(name string, ctx map[string]any) (string, error) {
	if err, ok := s.broken[name]; ok {
		return "", err
	}
	if !s.Has(name) {
		return "", lerrors.Newf(lerrors.KindTemplate, "template %q not found", name)
	}
	tpl, err := s.set.FromCache(name)
	if err != nil {
		return "", s.wrapTemplateError(name, err)
	}
	out, err := tpl.Execute(pongo2.Context(ctx))
	if err != nil {
		return "", s.wrapTemplateError(name, err)
	}
	return out, nil
}

func (s *Set) wrapTemplateError(name string, err error) error {
	if perr, ok := err.(*pongo2.Error); ok {
		origin := s.origins[name]
		if perr.Filename != "" && perr.Filename != "<string>" {
			origin = perr.Filename
		}
		return lerrors.Wrap(err, lerrors.KindTemplate, lerrors.SeverityError,
			fmt.Sprintf("%s:%d:%d", origin, perr.Line, perr.Column))
	}
	return lerrors.Wrap(err, lerrors.KindTemplate, lerrors.SeverityError, fmt.Sprintf("render %q", name))
}

var extendsRe = regexp.MustCompile(`\{%-?\s*extends\s+"([^"]+)"`)
var includeRe = regexp.MustCompile(`\{%-?\s*include\s+"([^"]+)"`)

// Dependencies returns the transitive extends/include closure of a
// template, sorted, excluding the template itself.
func (s *Set) Dependencies(name string) []string {
	seen := map[string]bool{}
	var walk func(string)
	walk = func(n string) {
		src, ok := s.sources[n]
		if !ok {
			return
		}
		for _, re := range []*regexp.Regexp{extendsRe, includeRe} {
			for _, m := range re.FindAllStringSubmatch(src, -1) {
				dep := m[1]
				if !seen[dep] {
					seen[dep] = true
					walk(dep)
				}
			}
		}
	}
	walk(name)
	deps := make([]string, 0, len(seen))
	for dep := range seen {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// DependencyHash digests the named template together with its transitive
// extends/include closure, so callers can detect staleness per template
// rather than per namespace.
func (s *Set) DependencyHash(name string) string {
	h := sha256.New()
	for _, dep := range append([]string{name}, s.Dependencies(name)...) {
		h.Write([]byte(dep))
		h.Write([]byte{0})
		h.Write([]byte(s.sources[dep]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// detectCycles walks extends chains with a visited set; every template on a
// cycle (or extending into one) is marked broken so only its routes fail.
func (s *Set) detectCycles() {
	parent := map[string]string{}
	for name, src := range s.sources {
		if m := extendsRe.FindStringSubmatch(src); m != nil {
			parent[name] = m[1]
		}
	}
	for name := range s.sources {
		visited := map[string]bool{name: true}
		current := name
		for {
			next, ok := parent[current]
			if !ok {
				break
			}
			if visited[next] {
				s.broken[name] = lerrors.Newf(lerrors.KindTemplate,
					"template inheritance cycle involving %q via %q", next, name)
				break
			}
			visited[next] = true
			current = next
		}
	}
}

func hashSources(sources map[string]string) string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(sources[name]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// memLoader serves template sources from memory so a compiled Set is
// decoupled from on-disk churn.
type memLoader struct {
	sources map[string]string
}

func (l *memLoader) Abs(base, name string) string { return name }

func (l *memLoader) Get(path string) (io.Reader, error) {
	src, ok := l.sources[path]
	if !ok {
		return nil, fmt.Errorf("template %q not found", path)
	}
	return bytes.NewReader([]byte(src)), nil
}

// FromString compiles a one-off template outside any namespace, used for
// built-in fallbacks such as the default RSS feed.
func FromString(name, source string, ctx map[string]any) (string, error) {
	registerFilters()
	tpl, err := pongo2.FromString(source)
	if err != nil {
		return "", lerrors.Wrap(err, lerrors.KindTemplate, lerrors.SeverityError, "compile "+name)
	}
	out, err := tpl.Execute(pongo2.Context(ctx))
	if err != nil {
		return "", lerrors.Wrap(err, lerrors.KindTemplate, lerrors.SeverityError, "render "+name)
	}
	return out, nil
}
