// Package converter lowers a Norg AST to an HTML content fragment and
// extracts the document's typed metadata.
package converter

import (
	"fmt"
	"html"
	"path"
	"strings"

	"github.com/norgolith/lith/internal/norg"
)

// Diagnostic is a non-fatal problem discovered during conversion.
type Diagnostic struct {
	Kind    string // "parse", "link", "node"
	Message string
}

// Result is the outcome of converting one Norg document.
type Result struct {
	// Meta is the typed metadata map; empty (not nil) when the document
	// has no metadata region or failed to parse.
	Meta map[string]any

	// HTML is the content fragment placed in a template's content block.
	HTML string

	// Links holds the resolved routes of internal cross-document links,
	// for broken-link diagnostics at render time.
	Links []string

	// Assets holds internal asset paths referenced by the fragment.
	Assets []string

	Diags []Diagnostic
}

// Convert parses and lowers a Norg source document addressed by route.
// A parser error yields a placeholder fragment carrying the error message
// and empty metadata, so dependents do not vanish mid-edit.
func Convert(source, route string) *Result {
	doc, err := norg.Parse(source)
	if err != nil {
		return &Result{
			Meta: map[string]any{},
			HTML: placeholderFragment(err),
			Diags: []Diagnostic{
				{Kind: "parse", Message: err.Error()},
			},
		}
	}

	c := &lowering{
		route:    route,
		slugs:    map[string]int{},
		footnote: map[string]int{},
	}
	c.numberFootnotes(doc.Blocks)

	var parts []string
	c.lowerBlocks(doc.Blocks, &parts)

	meta := map[string]any{}
	if doc.MetaRaw != "" {
		meta = norg.ParseMeta(doc.MetaRaw)
	}

	return &Result{
		Meta:   meta,
		HTML:   strings.Join(parts, "\n"),
		Links:  c.links,
		Assets: c.assets,
		Diags:  c.diags,
	}
}

func placeholderFragment(err error) string {
	return fmt.Sprintf(
		"<div class=\"norgolith-error\"><p>Failed to parse document:</p><pre>%s</pre></div>",
		html.EscapeString(err.Error()),
	)
}

// lowering carries the per-document traversal state.
type lowering struct {
	route  string
	links  []string
	assets []string
	diags  []Diagnostic

	// slugs tracks heading ids already used so collisions get suffixes.
	slugs map[string]int

	// footnote maps labels to their 1-based display number.
	footnote map[string]int
	nextFn   int

	// carry is the one-slot weak carryover buffer: the last seen
	// +html.* tag applies to the next block's root element, then clears.
	carry *carryover
}

type carryover struct {
	attr   string
	values []string
}

// numberFootnotes assigns display numbers to definitions in document order
// so references and definitions agree regardless of their relative order.
func (c *lowering) numberFootnotes(blocks []norg.Block) {
	for _, b := range blocks {
		if b.Kind == norg.BlockFootnoteDef {
			c.footnoteNumber(b.Name)
		}
		if len(b.Children) > 0 {
			c.numberFootnotes(b.Children)
		}
	}
}

func (c *lowering) footnoteNumber(label string) int {
	if n, ok := c.footnote[label]; ok {
		return n
	}
	c.nextFn++
	c.footnote[label] = c.nextFn
	return c.nextFn
}

// takeCarry consumes the pending weak carryover as an attribute string
// (with leading space), or returns "".
func (c *lowering) takeCarry() string {
	if c.carry == nil {
		return ""
	}
	sep := " "
	if c.carry.attr == "style" {
		sep = ";"
	}
	attr := fmt.Sprintf(" %s=%q", c.carry.attr, strings.Join(c.carry.values, sep))
	c.carry = nil
	return attr
}

func (c *lowering) lowerBlocks(blocks []norg.Block, out *[]string) {
	for _, b := range blocks {
		if h := c.lowerBlock(b); h != "" {
			*out = append(*out, h)
		}
	}
}

func (c *lowering) lowerBlock(b norg.Block) string {
	switch b.Kind {
	case norg.BlockParagraph:
		return fmt.Sprintf("<p%s>%s</p>", c.takeCarry(), c.lowerInlines(b.Inlines))

	case norg.BlockHeading:
		level := b.Level
		if level > 6 {
			level = 6
		}
		title := c.lowerInlines(b.Inlines)
		id := c.slug(inlineText(b.Inlines))
		head := fmt.Sprintf("<h%d id=%q%s>%s</h%d>", level, id, c.takeCarry(), title, level)
		var parts []string
		parts = append(parts, head)
		c.lowerBlocks(b.Children, &parts)
		return strings.Join(parts, "\n")

	case norg.BlockList:
		tag := "ul"
		if b.Ordered {
			tag = "ol"
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "<%s%s>", tag, c.takeCarry())
		for _, item := range b.Children {
			sb.WriteString("<li>")
			sb.WriteString(c.lowerInlines(item.Inlines))
			for _, nested := range item.Children {
				sb.WriteString(c.lowerBlock(nested))
			}
			sb.WriteString("</li>")
		}
		fmt.Fprintf(&sb, "</%s>", tag)
		return sb.String()

	case norg.BlockQuote:
		// Consume the carryover before descending, or the first child
		// paragraph would claim it.
		attr := c.takeCarry()
		var inner []string
		c.lowerBlocks(b.Children, &inner)
		return fmt.Sprintf("<blockquote%s>%s</blockquote>", attr, strings.Join(inner, "\n"))

	case norg.BlockCode:
		body := html.EscapeString(b.Raw)
		if b.Lang == "" {
			return fmt.Sprintf("<pre%s><code>%s</code></pre>", c.takeCarry(), body)
		}
		return fmt.Sprintf("<pre%s><code class=\"language-%s\">%s</code></pre>", c.takeCarry(), b.Lang, body)

	case norg.BlockRawHTML:
		// Strong carryover / html embeds bypass escaping by design of the
		// markup, not of this converter.
		c.carry = nil
		return b.Raw

	case norg.BlockImage:
		src := c.resolveAsset(b.Src)
		return fmt.Sprintf("<img src=%q alt=%q%s>", src, b.Alt, c.takeCarry())

	case norg.BlockRule:
		c.carry = nil
		return "<hr>"

	case norg.BlockTable:
		return c.lowerTable(b)

	case norg.BlockDefList:
		var sb strings.Builder
		fmt.Fprintf(&sb, "<dl%s>", c.takeCarry())
		for _, item := range b.Children {
			fmt.Fprintf(&sb, "<dt>%s</dt>", c.lowerInlines(item.Inlines))
			for _, desc := range item.Children {
				fmt.Fprintf(&sb, "<dd>%s</dd>", c.lowerInlines(desc.Inlines))
			}
		}
		sb.WriteString("</dl>")
		return sb.String()

	case norg.BlockFootnoteDef:
		n := c.footnoteNumber(b.Name)
		var inner []string
		c.lowerBlocks(b.Children, &inner)
		return fmt.Sprintf("<section id=\"fn-%d\" class=\"footnote\"><sup>%d</sup> %s</section>",
			n, n, strings.Join(inner, "\n"))

	case norg.BlockWeakCarryover:
		c.applyCarryover(b)
		return ""

	default:
		c.diags = append(c.diags, Diagnostic{
			Kind:    "node",
			Message: fmt.Sprintf("unknown block kind %d", b.Kind),
		})
		return fmt.Sprintf("<!-- norgolith: unknown node kind %d -->", b.Kind)
	}
}

// applyCarryover stores a weak carryover tag in the one-slot buffer. Only
// the html namespace with exactly one attribute segment is honored.
func (c *lowering) applyCarryover(b norg.Block) {
	segments := strings.Split(b.Name, ".")
	if segments[0] != "html" {
		return
	}
	if len(segments) != 2 {
		c.diags = append(c.diags, Diagnostic{
			Kind:    "node",
			Message: fmt.Sprintf("carryover tag %q needs exactly one attribute name (e.g. html.class)", b.Name),
		})
		return
	}
	c.carry = &carryover{attr: segments[1], values: b.Params}
}

func (c *lowering) lowerTable(b norg.Block) string {
	var head, body strings.Builder
	for _, row := range b.Children {
		cellTag := "td"
		target := &body
		if row.HeaderRow {
			cellTag = "th"
			target = &head
		}
		target.WriteString("<tr>")
		for _, cell := range row.Children {
			fmt.Fprintf(target, "<%s>%s</%s>", cellTag, c.lowerInlines(cell.Inlines), cellTag)
		}
		target.WriteString("</tr>")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "<table%s>", c.takeCarry())
	if head.Len() > 0 {
		fmt.Fprintf(&sb, "<thead>%s</thead>", head.String())
	}
	fmt.Fprintf(&sb, "<tbody>%s</tbody></table>", body.String())
	return sb.String()
}

func (c *lowering) lowerInlines(inlines []norg.Inline) string {
	var sb strings.Builder
	for _, in := range inlines {
		sb.WriteString(c.lowerInline(in))
	}
	return sb.String()
}

func (c *lowering) lowerInline(in norg.Inline) string {
	wrap := func(tag string) string {
		return fmt.Sprintf("<%s>%s</%s>", tag, c.lowerInlines(in.Children), tag)
	}
	switch in.Kind {
	case norg.InlineText:
		return html.EscapeString(in.Text)
	case norg.InlineBold:
		return wrap("strong")
	case norg.InlineItalic:
		return wrap("em")
	case norg.InlineUnderline:
		return wrap("u")
	case norg.InlineStrike:
		return wrap("s")
	case norg.InlineVerbatim:
		return fmt.Sprintf("<code>%s</code>", html.EscapeString(in.Text))
	case norg.InlineFootnoteRef:
		n := c.footnoteNumber(in.Label)
		return fmt.Sprintf("<sup><a href=\"#fn-%d\">%d</a></sup>", n, n)
	case norg.InlineLink:
		href := c.resolveLink(in.Target)
		text := c.lowerInlines(in.Children)
		if text == "" {
			text = html.EscapeString(in.Target)
		}
		return fmt.Sprintf("<a href=%q>%s</a>", href, text)
	default:
		return ""
	}
}

// resolveLink applies the link target resolution rules: absolute and
// root-relative targets pass through, anchors pass through, everything else
// resolves against the current document's route. Internal document routes
// are recorded for broken-link checking.
func (c *lowering) resolveLink(target string) string {
	switch {
	case target == "":
		return ""
	case strings.Contains(target, "://"), strings.HasPrefix(target, "mailto:"):
		return target
	case strings.HasPrefix(target, "#"):
		return target
	case strings.HasPrefix(target, "/"):
		if looksLikeDocument(target) {
			route := NormalizeRoute(strings.TrimSuffix(target, ".norg"))
			c.links = append(c.links, route)
			return target
		}
		c.assets = append(c.assets, target)
		return target
	default:
		resolved := path.Join(c.routeDir(), target)
		if !looksLikeDocument(resolved) {
			c.assets = append(c.assets, resolved)
			return resolved
		}
		route := NormalizeRoute(strings.TrimSuffix(resolved, ".norg"))
		c.links = append(c.links, route)
		return route
	}
}

// looksLikeDocument reports whether a resolved path addresses a content
// document rather than a static asset.
func looksLikeDocument(p string) bool {
	ext := path.Ext(p)
	return ext == "" || ext == ".norg"
}

// routeDir is the directory relative links resolve against: the parent of
// the document's route segment.
func (c *lowering) routeDir() string {
	trimmed := strings.TrimSuffix(c.route, "/")
	if trimmed == "" {
		return "/"
	}
	return path.Dir(trimmed)
}

func (c *lowering) resolveAsset(src string) string {
	if src == "" || strings.Contains(src, "://") || strings.HasPrefix(src, "data:") {
		return src
	}
	resolved := src
	if !strings.HasPrefix(src, "/") {
		resolved = path.Join(c.routeDir(), src)
	}
	c.assets = append(c.assets, resolved)
	return resolved
}

// NormalizeRoute canonicalizes a document route: leading slash, trailing
// slash, index collapsed to its directory.
func NormalizeRoute(route string) string {
	route = "/" + strings.Trim(route, "/")
	if route == "/index" {
		return "/"
	}
	route = strings.TrimSuffix(route, "/index")
	if route == "/" {
		return route
	}
	return route + "/"
}

// slug derives a heading id: lowercased, spaces to dashes, non-word runes
// stripped, collisions disambiguated with a numeric suffix.
func (c *lowering) slug(text string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteByte('-')
		}
	}
	base := strings.Trim(sb.String(), "-")
	if base == "" {
		base = "section"
	}
	n := c.slugs[base]
	c.slugs[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

// inlineText flattens inline content to plain text, for slugs.
func inlineText(inlines []norg.Inline) string {
	var sb strings.Builder
	for _, in := range inlines {
		switch in.Kind {
		case norg.InlineText, norg.InlineVerbatim:
			sb.WriteString(in.Text)
		default:
			sb.WriteString(inlineText(in.Children))
		}
	}
	return sb.String()
}
