package site

import (
	"time"

	"github.com/norgolith/lith/internal/render"
)

// defaultRSSTemplate is used when the template namespace does not provide
// an rss.xml of its own. RSS 2.0 with a self-referencing atom:link;
// pubDate is RFC-822 from the document's created time.
const defaultRSSTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
<channel>
<title>{{ config.title|escape_xml }}</title>
<link>{{ config.rootUrl }}/</link>
<atom:link href="{{ config.rootUrl }}/rss.xml" rel="self" type="application/rss+xml"/>
<description>{{ config.rss.description|escape_xml }}</description>
{% if config.language %}<language>{{ config.language }}</language>{% endif %}
<lastBuildDate>{{ last_build|date:"%a, %d %b %Y %H:%M:%S %z" }}</lastBuildDate>
{% if config.rss.ttl %}<ttl>{{ config.rss.ttl }}</ttl>{% endif %}
{% if config.rss.image %}<image><url>{{ config.rss.image }}</url><title>{{ config.title|escape_xml }}</title><link>{{ config.rootUrl }}/</link></image>{% endif %}
{% for post in posts %}<item>
<title>{{ post.title|escape_xml }}</title>
<link>{{ config.rootUrl }}{{ post.route }}</link>
<guid>{{ config.rootUrl }}{{ post.route }}</guid>
{% if post.description %}<description>{{ post.description|escape_xml }}</description>{% endif %}
{% if post.created %}<pubDate>{{ post.created|date:"%a, %d %b %Y %H:%M:%S %z" }}</pubDate>{% endif %}
{% if post.authors %}<author>{{ post.authors|join:", " }}</author>{% endif %}
{% for category in post.categories %}<category>{{ category|escape_xml }}</category>
{% endfor %}</item>
{% endfor %}</channel>
</rss>
`

// RenderRSS renders the feed against the snapshot. Drafts are always
// filtered out of the feed, regardless of dev mode. lastBuildDate is the
// snapshot publish time.
func (s *Snapshot) RenderRSS() (string, error) {
	var posts []any
	for _, post := range s.Posts {
		if post.Draft {
			continue
		}
		posts = append(posts, post.TemplateData())
	}
	ctx := map[string]any{
		"config":     s.Config.TemplateData(),
		"posts":      posts,
		"last_build": s.PublishedAt,
		"now":        time.Now(),
	}
	if s.Templates != nil && s.Templates.Has("rss.xml") {
		return s.Templates.Render("rss.xml", ctx)
	}
	return render.FromString("rss.xml", defaultRSSTemplate, ctx)
}
