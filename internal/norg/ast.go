// Package norg tokenizes and parses Norg markup into a typed AST.
//
// The parser is intentionally independent from the HTML converter: it knows
// nothing about routes, templates, or escaping. It produces a flat-ish tree
// of tagged Block variants with Inline runs inside them.
package norg

// BlockKind tags a block-level AST variant.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockList
	BlockListItem
	BlockQuote
	BlockCode
	BlockRawHTML
	BlockImage
	BlockRule
	BlockTable
	BlockTableRow
	BlockDefList
	BlockDefItem
	BlockFootnoteDef
	BlockWeakCarryover
)

// Block is one block-level element. Which fields are meaningful depends on
// Kind; unused fields stay zero.
type Block struct {
	Kind BlockKind

	// Heading level (1..6) or list nesting depth.
	Level int

	// Ordered distinguishes <ol> from <ul> lists.
	Ordered bool

	// HeaderRow marks the first table row as <thead> material.
	HeaderRow bool

	// Inlines carries paragraph text, heading titles, list item text,
	// quote text, table cells (one block per cell) and definition terms.
	Inlines []Inline

	// Children holds nested blocks: heading sections, nested lists,
	// quote continuations, table rows, definition descriptions.
	Children []Block

	// Name and Params carry tag data: carryover tag names ("html.class"),
	// footnote labels, verbatim tag parameters.
	Name   string
	Params []string

	// Raw is the verbatim body of code blocks and raw HTML embeds.
	Raw string

	// Lang is the code block language.
	Lang string

	// Src and Alt describe image tags.
	Src string
	Alt string
}

// InlineKind tags an inline AST variant.
type InlineKind int

const (
	InlineText InlineKind = iota
	InlineBold
	InlineItalic
	InlineUnderline
	InlineStrike
	InlineVerbatim
	InlineLink
	InlineFootnoteRef
)

// Inline is one inline element inside a paragraph-like run.
type Inline struct {
	Kind InlineKind

	// Text is the literal content for InlineText and InlineVerbatim.
	Text string

	// Target is the raw link target for InlineLink.
	Target string

	// Label is the footnote label for InlineFootnoteRef.
	Label string

	// Children holds the styled content of attached modifiers and link text.
	Children []Inline
}

// Document is a parsed Norg source file.
type Document struct {
	// MetaRaw is the raw text between @document.meta and @end, empty when
	// the document has no metadata region.
	MetaRaw string

	Blocks []Block
}
