package render

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplates(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

func TestLoad_SiteTemplatesShadowThemeTemplates(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{
		"default.html": "site version",
	})
	themeDir := writeTemplates(t, t.TempDir(), map[string]string{
		"default.html": "theme version",
		"post.html":    "theme post",
	})

	set, err := Load(site, themeDir)
	require.NoError(t, err)

	out, err := set.Render("default.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "site version", out)

	out, err = set.Render("post.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "theme post", out)
}

func TestLoad_MissingThemeDirIsFine(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{"a.html": "a"})
	set, err := Load(site, filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.True(t, set.Has("a.html"))
}

func TestRender_Inheritance(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{
		"base.html":  `<main>{% block content %}{% endblock %}</main>`,
		"child.html": `{% extends "base.html" %}{% block content %}hello{% endblock %}`,
	})
	set, err := Load(site, "")
	require.NoError(t, err)

	out, err := set.Render("child.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "<main>hello</main>", out)
}

func TestRender_ExtendsCycleScopesToImplicatedTemplates(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{
		"a.html":  `{% extends "b.html" %}`,
		"b.html":  `{% extends "a.html" %}`,
		"ok.html": `fine`,
	})
	set, err := Load(site, "")
	require.NoError(t, err)

	_, err = set.Render("a.html", nil)
	require.Error(t, err)
	_, err = set.Render("b.html", nil)
	require.Error(t, err)

	out, err := set.Render("ok.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
}

func TestRender_MissingTemplate(t *testing.T) {
	set, err := Load(writeTemplates(t, t.TempDir(), nil), "")
	require.NoError(t, err)
	_, err = set.Render("ghost.html", nil)
	require.Error(t, err)
}

func TestDependencies_FollowsExtendsAndInclude(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{
		"base.html":    `{% include "nav.html" %}{% block c %}{% endblock %}`,
		"nav.html":     `nav`,
		"post.html":    `{% extends "base.html" %}`,
		"default.html": `flat`,
	})
	set, err := Load(site, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"base.html", "nav.html"}, set.Dependencies("post.html"))
	assert.Empty(t, set.Dependencies("default.html"))
}

func TestHash_ChangesWithSources(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, map[string]string{"a.html": "one"})
	set1, err := Load(dir, "")
	require.NoError(t, err)

	writeTemplates(t, dir, map[string]string{"a.html": "two"})
	set2, err := Load(dir, "")
	require.NoError(t, err)

	assert.NotEqual(t, set1.Hash(), set2.Hash())
	assert.NotEqual(t, set1.DependencyHash("a.html"), set2.DependencyHash("a.html"))
}

func TestFilter_DateStrftime(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{
		"d.html": `{{ when|date:"%a, %d %b %Y %H:%M:%S %z" }}`,
	})
	set, err := Load(site, "")
	require.NoError(t, err)

	when := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	out, err := set.Render("d.html", map[string]any{"when": when})
	require.NoError(t, err)
	assert.Equal(t, "Tue, 02 Jan 2024 10:00:00 +0000", out)
}

func TestFilter_DateAcceptsISOStrings(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{
		"d.html": `{{ when|date:"%Y/%m/%d" }}`,
	})
	set, err := Load(site, "")
	require.NoError(t, err)

	out, err := set.Render("d.html", map[string]any{"when": "2024-01-02T10:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, "2024/01/02", out)
}

func TestFilter_EscapeXML(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{
		"x.html": `{{ v|escape_xml }}`,
	})
	set, err := Load(site, "")
	require.NoError(t, err)

	out, err := set.Render("x.html", map[string]any{"v": `<a & "b">`})
	require.NoError(t, err)
	assert.Equal(t, "&lt;a &amp; &quot;b&quot;&gt;", out)
}

func TestFilter_FilterByAttribute(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{
		"f.html": `{% for p in posts|filter:"categories=go" %}{{ p.title }};{% endfor %}`,
	})
	set, err := Load(site, "")
	require.NoError(t, err)

	posts := []any{
		map[string]any{"title": "one", "categories": []any{"go", "web"}},
		map[string]any{"title": "two", "categories": []any{"rust"}},
		map[string]any{"title": "three", "categories": []string{"go"}},
	}
	out, err := set.Render("f.html", map[string]any{"posts": posts})
	require.NoError(t, err)
	assert.Equal(t, "one;three;", out)
}

func TestFilter_BuiltinsAvailable(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{
		"b.html": `{{ names|join:", " }}|{{ missing|default:"fallback" }}|{{ word|title }}`,
	})
	set, err := Load(site, "")
	require.NoError(t, err)

	out, err := set.Render("b.html", map[string]any{
		"names": []string{"a", "b"},
		"word":  "hello world",
	})
	require.NoError(t, err)
	assert.Equal(t, "a, b|fallback|Hello World", out)
}

func TestRender_AutoescapeOnContextValues(t *testing.T) {
	site := writeTemplates(t, t.TempDir(), map[string]string{
		"e.html": `{{ raw }}{{ safe }}`,
	})
	set, err := Load(site, "")
	require.NoError(t, err)

	out, err := set.Render("e.html", map[string]any{
		"raw":  "<b>",
		"safe": Safe("<b>"),
	})
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;<b>", out)
}
