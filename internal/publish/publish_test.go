package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norgolith/lith/internal/config"
)

func scaffoldSite(t *testing.T) (string, *config.Site) {
	t.Helper()
	root := t.TempDir()
	write := func(rel, body string) {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write("norgolith.toml", "rootUrl = \"https://example.org\"\ntitle = \"T\"\nauthor = \"a\"\nlanguage = \"en\"\n\n[rss]\nenable = true\nttl = 60\ndescription = \"d\"\nimage = \"\"\n")
	write("templates/default.html", `<html><body>{{ content }}</body></html>`)
	write("templates/post.html", `<article>{{ metadata.title }}: {{ content }}</article>`)
	write("content/index.norg", "@document.meta\ntitle: Home\n@end\n\n* Welcome\n")
	write("content/posts/hello.norg", "@document.meta\ntitle: Hello\ncreated: 2024-01-02T10:00:00Z\nlayout: post\n@end\n\nHi\n")
	write("content/posts/wip.norg", "@document.meta\ntitle: WIP\ndraft: true\n@end\n\nsoon\n")
	write("assets/site.css", "body { color : red }")

	cfg, err := config.Load(filepath.Join(root, config.ConfigFileName))
	require.NoError(t, err)
	return root, cfg
}

func TestBuild_WritesRoutesFeedAndAssets(t *testing.T) {
	root, cfg := scaffoldSite(t)
	require.NoError(t, Build(root, cfg, Options{}))

	index, err := os.ReadFile(filepath.Join(root, "public", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), `<h1 id="welcome">Welcome</h1>`)

	post, err := os.ReadFile(filepath.Join(root, "public", "posts", "hello", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(post), "<article>Hello:")

	feed, err := os.ReadFile(filepath.Join(root, "public", "rss.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(feed), "/posts/hello/")

	css, err := os.ReadFile(filepath.Join(root, "public", "assets", "site.css"))
	require.NoError(t, err)
	assert.Equal(t, "body { color : red }", string(css))

	// Drafts stay out of production output.
	_, err = os.Stat(filepath.Join(root, "public", "posts", "wip", "index.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_DraftsIncludedWhenRequested(t *testing.T) {
	root, cfg := scaffoldSite(t)
	require.NoError(t, Build(root, cfg, Options{Drafts: true}))
	_, err := os.Stat(filepath.Join(root, "public", "posts", "wip", "index.html"))
	assert.NoError(t, err)
}

func TestBuild_SecondRunIsByteIdentical(t *testing.T) {
	root, cfg := scaffoldSite(t)
	require.NoError(t, Build(root, cfg, Options{}))
	first, err := os.ReadFile(filepath.Join(root, "public", "index.html"))
	require.NoError(t, err)

	require.NoError(t, Build(root, cfg, Options{}))
	second, err := os.ReadFile(filepath.Join(root, "public", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuild_MinifyShrinksAssets(t *testing.T) {
	root, cfg := scaffoldSite(t)
	require.NoError(t, Build(root, cfg, Options{Minify: true}))
	css, err := os.ReadFile(filepath.Join(root, "public", "assets", "site.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(css))
}

func TestBuild_SchemaViolationFailsUnlessKeepGoing(t *testing.T) {
	root, cfg := scaffoldSite(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "norgolith.toml"), []byte(`
rootUrl = "https://example.org"
title = "T"
author = "a"
language = "en"

[content_schema]
required = ["description"]
`), 0o644))
	cfg, err := config.Load(filepath.Join(root, config.ConfigFileName))
	require.NoError(t, err)

	err = Build(root, cfg, Options{})
	require.Error(t, err)

	require.NoError(t, Build(root, cfg, Options{KeepGoing: true}))
}

func TestBuild_ParseErrorFailsBuild(t *testing.T) {
	root, cfg := scaffoldSite(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "content", "bad.norg"),
		[]byte("@code\nunterminated\n"), 0o644))

	err := Build(root, cfg, Options{})
	require.Error(t, err)

	require.NoError(t, Build(root, cfg, Options{KeepGoing: true}))
}
