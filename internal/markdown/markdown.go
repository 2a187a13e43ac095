// Package markdown lowers Markdown content files to HTML fragments so that
// .md sources participate in the site model alongside Norg documents.
package markdown

import (
	"bytes"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/norgolith/lith/internal/lerrors"
)

// frontmatterFence delimits the optional leading TOML frontmatter block.
const frontmatterFence = "+++"

// Convert renders a Markdown source file to an HTML fragment plus its
// frontmatter metadata. The metadata map is always non-nil.
func Convert(source []byte) (map[string]any, string, error) {
	meta, body, err := splitFrontmatter(source)
	if err != nil {
		return map[string]any{}, "", err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))
	var buf bytes.Buffer
	if err := md.Convert(body, &buf); err != nil {
		return meta, "", lerrors.Wrap(err, lerrors.KindParse, lerrors.SeverityError, "render markdown")
	}
	return meta, strings.TrimRight(buf.String(), "\n"), nil
}

// splitFrontmatter peels a +++-fenced TOML block off the top of the source.
func splitFrontmatter(source []byte) (map[string]any, []byte, error) {
	meta := map[string]any{}
	text := string(source)
	if !strings.HasPrefix(strings.TrimLeft(text, "\n"), frontmatterFence) {
		return meta, source, nil
	}
	trimmed := strings.TrimLeft(text, "\n")
	rest := trimmed[len(frontmatterFence):]
	end := strings.Index(rest, "\n"+frontmatterFence)
	if end < 0 {
		return meta, source, lerrors.New(lerrors.KindParse, lerrors.SeverityError, "unterminated markdown frontmatter")
	}
	if err := toml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return meta, source, lerrors.Wrap(err, lerrors.KindParse, lerrors.SeverityError, "parse markdown frontmatter")
	}
	body := rest[end+len(frontmatterFence)+1:]
	return meta, []byte(body), nil
}
