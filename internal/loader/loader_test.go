package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	root := "/site"
	cases := []struct {
		path    string
		class   Class
		route   string
		urlPath string
	}{
		{"/site/norgolith.toml", ClassConfig, "", ""},
		{"/site/content/index.norg", ClassContent, "/", ""},
		{"/site/content/about.norg", ClassContent, "/about/", ""},
		{"/site/content/posts/hello.norg", ClassContent, "/posts/hello/", ""},
		{"/site/content/posts/index.norg", ClassContent, "/posts/", ""},
		{"/site/content/notes/readme.md", ClassContent, "/notes/readme/", ""},
		{"/site/content/diagram.png", ClassAsset, "", "/diagram.png"},
		{"/site/templates/default.html", ClassTemplate, "", ""},
		{"/site/theme/templates/post.html", ClassTemplate, "", ""},
		{"/site/templates/notes.txt", ClassIgnore, "", ""},
		{"/site/assets/css/main.css", ClassAsset, "", "/assets/css/main.css"},
		{"/site/theme/assets/logo.svg", ClassAsset, "", "/assets/logo.svg"},
		{"/site/public/index.html", ClassIgnore, "", ""},
		{"/elsewhere/file.norg", ClassIgnore, "", ""},
	}
	for _, tc := range cases {
		ev := Classify(root, tc.path)
		assert.Equal(t, tc.class, ev.Class, "class of %s", tc.path)
		assert.Equal(t, tc.route, ev.Route, "route of %s", tc.path)
		assert.Equal(t, tc.urlPath, ev.URLPath, "url path of %s", tc.path)
	}
}

func TestRead_MissingFileIsNotAnError(t *testing.T) {
	data, ok, err := Read(filepath.Join(t.TempDir(), "ghost.norg"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestScan_FindsContentAndAssets(t *testing.T) {
	root := t.TempDir()
	write := func(rel, body string) {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write("content/index.norg", "* Home")
	write("content/posts/a.norg", "* A")
	write("content/cover.png", "png")
	write("assets/site.css", "body{}")
	write("theme/assets/theme.css", "p{}")

	events, err := Scan(root)
	require.NoError(t, err)

	byClass := map[Class]int{}
	for _, ev := range events {
		byClass[ev.Class]++
	}
	assert.Equal(t, 2, byClass[ClassContent])
	assert.Equal(t, 3, byClass[ClassAsset])
}
