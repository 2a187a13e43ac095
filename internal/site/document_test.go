package site

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument_NorgSource(t *testing.T) {
	src := []byte("@document.meta\ntitle: Post\ncreated: 2024-03-04T08:00:00Z\nlayout: post\ndraft: false\nauthors: [a, b]\ncategories: [Go]\nshape: hexagonal\n@end\n\n* Hi\n")
	doc := NewDocument("/posts/post/", "content/posts/post.norg", src)

	assert.Equal(t, "Post", doc.Title)
	assert.Equal(t, "post", doc.Layout)
	assert.Equal(t, "post.html", doc.TemplateName())
	assert.False(t, doc.Draft)
	assert.True(t, doc.HasCreated)
	assert.Equal(t, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), doc.Created)
	assert.Equal(t, []string{"a", "b"}, doc.Authors)
	assert.Equal(t, []string{"Go"}, doc.Categories)
	assert.True(t, doc.IsPost())
	assert.NotEmpty(t, doc.SourceHash)

	// Unknown metadata keys survive into the template data untouched.
	data := doc.TemplateData()
	assert.Equal(t, "hexagonal", data["shape"])
	assert.Equal(t, "/posts/post/", data["permalink"])
}

func TestNewDocument_MarkdownSource(t *testing.T) {
	src := []byte("+++\ntitle = \"Note\"\n+++\n# Hi\n")
	doc := NewDocument("/notes/note/", "content/notes/note.md", src)
	assert.Equal(t, "Note", doc.Title)
	assert.Contains(t, doc.HTML, "<h1")
	assert.Equal(t, "default", doc.Layout)
}

func TestNewDocument_DefaultsWhenMetaAbsent(t *testing.T) {
	doc := NewDocument("/some-page/", "content/some-page.norg", []byte("just text\n"))
	assert.Equal(t, "Some Page", doc.Title)
	assert.Equal(t, "default", doc.Layout)
	assert.False(t, doc.Draft)
	assert.False(t, doc.HasCreated)
}

func TestDocument_IsPost(t *testing.T) {
	post := &Document{Route: "/posts/a/"}
	listing := &Document{Route: "/posts/"}
	page := &Document{Route: "/about/"}
	require.True(t, post.IsPost())
	assert.False(t, listing.IsPost())
	assert.False(t, page.IsPost())
}
