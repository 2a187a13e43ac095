// Package config loads and validates the norgolith.toml site configuration.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/norgolith/lith/internal/lerrors"
	"github.com/norgolith/lith/internal/schema"
)

// ConfigFileName is the marker file identifying a site root.
const ConfigFileName = "norgolith.toml"

// Highlighter selects the client-side syntax highlighting engine.
type Highlighter struct {
	Enable bool   `toml:"enable"`
	Engine string `toml:"engine"` // falls back to prism if not defined
}

// RSS configures the /rss.xml feed.
type RSS struct {
	Enable      bool   `toml:"enable"`
	TTL         int    `toml:"ttl"`
	Description string `toml:"description"`
	Image       string `toml:"image"`
}

// Site is the immutable site configuration loaded from norgolith.toml.
type Site struct {
	RootURL  string `toml:"rootUrl"`
	Language string `toml:"language"`
	Title    string `toml:"title"`
	Author   string `toml:"author"`

	Highlighter *Highlighter   `toml:"highlighter"`
	RSS         *RSS           `toml:"rss"`
	Extra       map[string]any `toml:"extra"`

	ContentSchema *schema.ContentSchema `toml:"content_schema"`

	// Hash is the sha256 of the raw file contents, used for staleness checks.
	Hash string `toml:"-"`
}

// Load reads and decodes a norgolith.toml file.
func Load(path string) (*Site, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, lerrors.Wrap(err, lerrors.KindConfig, lerrors.SeverityFatal, "read site configuration")
	}
	return Parse(raw)
}

// Parse decodes site configuration from raw TOML bytes.
func Parse(raw []byte) (*Site, error) {
	var site Site
	if err := toml.Unmarshal(raw, &site); err != nil {
		return nil, lerrors.Wrap(err, lerrors.KindConfig, lerrors.SeverityFatal, "parse norgolith.toml")
	}
	sum := sha256.Sum256(raw)
	site.Hash = hex.EncodeToString(sum[:])
	return &site, nil
}

// HighlighterEngine returns the configured engine name, defaulting to prism.
func (s *Site) HighlighterEngine() string {
	if s.Highlighter == nil || s.Highlighter.Engine == "" {
		return "prism"
	}
	return s.Highlighter.Engine
}

// TemplateData exposes the configuration to templates as a plain map so
// free-form extra keys stay addressable.
func (s *Site) TemplateData() map[string]any {
	data := map[string]any{
		"rootUrl":  s.RootURL,
		"language": s.Language,
		"title":    s.Title,
		"author":   s.Author,
		"extra":    s.Extra,
	}
	if s.Highlighter != nil {
		data["highlighter"] = map[string]any{
			"enable": s.Highlighter.Enable,
			"engine": s.HighlighterEngine(),
		}
	}
	if s.RSS != nil {
		data["rss"] = map[string]any{
			"enable":      s.RSS.Enable,
			"ttl":         s.RSS.TTL,
			"description": s.RSS.Description,
			"image":       s.RSS.Image,
		}
	}
	return data
}

// FindRoot walks from dir upward looking for norgolith.toml and returns the
// directory containing it.
func FindRoot(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityFatal, "resolve working directory")
	}
	for {
		candidate := filepath.Join(current, ConfigFileName)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", lerrors.New(lerrors.KindConfig, lerrors.SeverityFatal, "not in a Norgolith site directory")
		}
		current = parent
	}
}
