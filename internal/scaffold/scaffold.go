// Package scaffold creates new sites and new content files.
package scaffold

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/norgolith/lith/internal/converter"
	"github.com/norgolith/lith/internal/lerrors"
)

const starterConfig = `rootUrl = "http://localhost:3030"
language = "en"
title = %q
author = %q

[highlighter]
enable = true
engine = "prism"

[rss]
enable = true
ttl = 60
description = "Latest posts"
image = ""
`

const starterTemplate = `<!doctype html>
<html lang="{{ config.language }}">
<head>
<meta charset="utf-8">
<title>{{ metadata.title }} - {{ config.title }}</title>
</head>
<body>
<main>
{{ content }}
</main>
</body>
</html>
`

const helloBody = `* Hello world
  Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut
  labore et dolore magna aliqua.`

// Init creates a new site skeleton in a directory named after the site.
func Init(name string, force bool) error {
	if name == "" {
		return lerrors.New(lerrors.KindConfig, lerrors.SeverityFatal, "missing name for the site")
	}
	if _, err := os.Stat(name); err == nil && !force {
		return lerrors.Newf(lerrors.KindConfig, "target directory %s already exists", name)
	}

	for _, dir := range []string{"content", "templates", "assets", "theme"} {
		if err := os.MkdirAll(filepath.Join(name, dir), 0o755); err != nil {
			return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityFatal, "create site directories")
		}
	}

	cfg := fmt.Sprintf(starterConfig, name, username())
	if err := os.WriteFile(filepath.Join(name, "norgolith.toml"), []byte(cfg), 0o644); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityFatal, "write norgolith.toml")
	}
	if err := os.WriteFile(filepath.Join(name, "templates", "default.html"), []byte(starterTemplate), 0o644); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityFatal, "write default template")
	}

	hello := document("hello", helloBody, false)
	if err := os.WriteFile(filepath.Join(name, "content", "hello.norg"), []byte(hello), 0o644); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityFatal, "write hello.norg")
	}
	return nil
}

// New creates a content document or an empty CSS/JS asset inside an
// existing site. Post documents land under content/posts/ and get the post
// layout.
func New(root, kind, name string) (string, error) {
	switch kind {
	case "content", "post":
		rel := strings.TrimSuffix(name, ".norg") + ".norg"
		if kind == "post" && !strings.HasPrefix(rel, "posts/") {
			rel = filepath.Join("posts", rel)
		}
		target := filepath.Join(root, "content", filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "create content directories")
		}
		stem := strings.TrimSuffix(filepath.Base(rel), ".norg")
		body := document(stem, defaultBody(stem), kind == "post")
		if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
			return "", lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "write "+target)
		}
		return target, nil

	case "css", "js":
		target := filepath.Join(root, "assets", kind, name)
		if filepath.Ext(target) == "" {
			target += "." + kind
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "create asset directories")
		}
		if err := os.WriteFile(target, nil, 0o644); err != nil {
			return "", lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "write "+target)
		}
		return target, nil

	default:
		return "", lerrors.Newf(lerrors.KindConfig,
			"invalid asset kind %q (one of content, post, css, js)", kind)
	}
}

// document assembles a .norg file with a generated metadata block. New
// documents start as drafts.
func document(stem, body string, post bool) string {
	now := time.Now().Format(time.RFC3339)
	var sb strings.Builder
	sb.WriteString("@document.meta\n")
	fmt.Fprintf(&sb, "title: %s\n", converter.DefaultTitle("/"+stem+"/"))
	sb.WriteString("description:\n")
	fmt.Fprintf(&sb, "authors: [\n  %s\n]\n", username())
	sb.WriteString("categories: []\n")
	fmt.Fprintf(&sb, "created: %s\n", now)
	fmt.Fprintf(&sb, "updated: %s\n", now)
	if post {
		sb.WriteString("layout: post\n")
	}
	sb.WriteString("draft: true\n")
	sb.WriteString("version: 1.1.1\n")
	sb.WriteString("@end\n\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	return sb.String()
}

func defaultBody(stem string) string {
	return fmt.Sprintf("* %s\n  Write something here.", converter.DefaultTitle("/"+stem+"/"))
}

func username() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "author"
}
