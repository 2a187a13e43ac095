package norg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_HeadingWithBody(t *testing.T) {
	doc, err := Parse("* Welcome\n  Hello there.\n")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)

	heading := doc.Blocks[0]
	assert.Equal(t, BlockHeading, heading.Kind)
	assert.Equal(t, 1, heading.Level)
	require.Len(t, heading.Inlines, 1)
	assert.Equal(t, "Welcome", heading.Inlines[0].Text)
	require.Len(t, heading.Children, 1)
	assert.Equal(t, BlockParagraph, heading.Children[0].Kind)
}

func TestParse_NestedHeadingsCloseByLevel(t *testing.T) {
	doc, err := Parse("* One\n** Two\n* Three\n")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, 1, doc.Blocks[0].Level)
	require.Len(t, doc.Blocks[0].Children, 1)
	assert.Equal(t, 2, doc.Blocks[0].Children[0].Level)
	assert.Equal(t, 1, doc.Blocks[1].Level)
}

func TestParse_MetadataRegionIsExtractedNotRendered(t *testing.T) {
	src := "@document.meta\ntitle: Home\ndraft: false\n@end\n\n* Welcome\n"
	doc, err := Parse(src)
	require.NoError(t, err)
	assert.Contains(t, doc.MetaRaw, "title: Home")
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, BlockHeading, doc.Blocks[0].Kind)
}

func TestParse_UnorderedListNesting(t *testing.T) {
	doc, err := Parse("- one\n- two\n-- deeper\n")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	list := doc.Blocks[0]
	assert.Equal(t, BlockList, list.Kind)
	assert.False(t, list.Ordered)
	require.Len(t, list.Children, 2)
	require.Len(t, list.Children[1].Children, 1)
	assert.Equal(t, BlockList, list.Children[1].Children[0].Kind)
}

func TestParse_OrderedList(t *testing.T) {
	doc, err := Parse("~ first\n~ second\n")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.True(t, doc.Blocks[0].Ordered)
	assert.Len(t, doc.Blocks[0].Children, 2)
}

func TestParse_CodeBlockKeepsRawBody(t *testing.T) {
	doc, err := Parse("@code lua\nprint(\"hello\")\n@end\n")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	code := doc.Blocks[0]
	assert.Equal(t, BlockCode, code.Kind)
	assert.Equal(t, "lua", code.Lang)
	assert.Equal(t, "print(\"hello\")", code.Raw)
}

func TestParse_UnterminatedCodeBlockReportsError(t *testing.T) {
	_, err := Parse("@code\nbody\n")
	require.Error(t, err)
}

func TestParse_QuoteAndRuleAndCarryover(t *testing.T) {
	doc, err := Parse("+html.class fancy\n> quoted\n\n___\n")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 3)
	assert.Equal(t, BlockWeakCarryover, doc.Blocks[0].Kind)
	assert.Equal(t, "html.class", doc.Blocks[0].Name)
	assert.Equal(t, []string{"fancy"}, doc.Blocks[0].Params)
	assert.Equal(t, BlockQuote, doc.Blocks[1].Kind)
	assert.Equal(t, BlockRule, doc.Blocks[2].Kind)
}

func TestParse_Table(t *testing.T) {
	doc, err := Parse("@table\n| a | b |\n|---|---|\n| 1 | 2 |\n@end\n")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	table := doc.Blocks[0]
	assert.Equal(t, BlockTable, table.Kind)
	require.Len(t, table.Children, 2)
	assert.True(t, table.Children[0].HeaderRow)
	assert.Len(t, table.Children[0].Children, 2)
}

func TestParse_FootnoteAndDefinitionList(t *testing.T) {
	doc, err := Parse("^ note\n  the details\n\n$ term\n  its description\n")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, BlockFootnoteDef, doc.Blocks[0].Kind)
	assert.Equal(t, "note", doc.Blocks[0].Name)
	assert.Equal(t, BlockDefList, doc.Blocks[1].Kind)
}

func TestParseInlines_AttachedModifiers(t *testing.T) {
	inlines := ParseInlines("some *bold* and /italic/ and `code`")
	kinds := make([]InlineKind, 0, len(inlines))
	for _, in := range inlines {
		kinds = append(kinds, in.Kind)
	}
	assert.Equal(t, []InlineKind{
		InlineText, InlineBold, InlineText, InlineItalic, InlineText, InlineVerbatim,
	}, kinds)
}

func TestParseInlines_LinkWithDescription(t *testing.T) {
	inlines := ParseInlines("see {./other}[the other page]")
	require.Len(t, inlines, 2)
	link := inlines[1]
	assert.Equal(t, InlineLink, link.Kind)
	assert.Equal(t, "./other", link.Target)
	require.Len(t, link.Children, 1)
	assert.Equal(t, "the other page", link.Children[0].Text)
}

func TestParseInlines_FootnoteReference(t *testing.T) {
	inlines := ParseInlines("fact{^ note}")
	require.Len(t, inlines, 2)
	assert.Equal(t, InlineFootnoteRef, inlines[1].Kind)
	assert.Equal(t, "note", inlines[1].Label)
}

func TestParseInlines_HyphenInWordIsNotStrike(t *testing.T) {
	inlines := ParseInlines("well-known words")
	require.Len(t, inlines, 1)
	assert.Equal(t, InlineText, inlines[0].Kind)
	assert.Equal(t, "well-known words", inlines[0].Text)
}

func TestParseMeta_TypedValues(t *testing.T) {
	raw := "title: Home\ndraft: true\nweight: 3\ncreated: 2024-01-02T10:00:00Z\ncustom: anything goes"
	meta := ParseMeta(raw)

	assert.Equal(t, "Home", meta["title"])
	assert.Equal(t, true, meta["draft"])
	assert.Equal(t, int64(3), meta["weight"])
	assert.Equal(t, "anything goes", meta["custom"])

	created, ok := meta["created"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), created)
}

func TestParseMeta_MissingTimezoneReadsAsUTC(t *testing.T) {
	meta := ParseMeta("created: 2024-01-02T10:00:00")
	created, ok := meta["created"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, time.UTC, created.Location())
	assert.Equal(t, 10, created.Hour())
}

func TestParseMeta_MultilineAndInlineLists(t *testing.T) {
	raw := "authors: [\n  alice\n  bob\n]\ncategories: [go, web]\nempty: []"
	meta := ParseMeta(raw)

	assert.Equal(t, []any{"alice", "bob"}, meta["authors"])
	assert.Equal(t, []any{"go", "web"}, meta["categories"])
	assert.Equal(t, []any{}, meta["empty"])
}

func TestParseMeta_NestedObject(t *testing.T) {
	meta := ParseMeta("extra: {\n  foo: bar\n}")
	nested, ok := meta["extra"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "bar", nested["foo"])
}
