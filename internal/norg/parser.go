package norg

import (
	"strings"

	"github.com/norgolith/lith/internal/lerrors"
)

// Parse parses a Norg source document into its AST. A best-effort tree is
// always returned; the error reports the first structural problem (an
// unterminated ranged tag).
func Parse(src string) (*Document, error) {
	p := &parser{lines: splitLines(src)}
	doc := &Document{}

	var err error
	doc.MetaRaw, doc.Blocks, err = p.parseBlocks(0)
	return doc, err
}

func splitLines(src string) []string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	return strings.Split(src, "\n")
}

type parser struct {
	lines []string
	pos   int
}

func (p *parser) eof() bool    { return p.pos >= len(p.lines) }
func (p *parser) peek() string { return p.lines[p.pos] }

func (p *parser) advance() string {
	line := p.lines[p.pos]
	p.pos++
	return line
}

// markerLevel counts leading repetitions of marker in line and requires a
// following space. Returns 0 when the line is not that kind of marker line.
func markerLevel(line string, marker byte) int {
	trimmed := strings.TrimLeft(line, " \t")
	n := 0
	for n < len(trimmed) && trimmed[n] == marker {
		n++
	}
	if n == 0 || n >= len(trimmed) || trimmed[n] != ' ' {
		return 0
	}
	return n
}

func markerText(line string, level int) string {
	trimmed := strings.TrimLeft(line, " \t")
	return strings.TrimSpace(trimmed[level:])
}

func isHorizontalRule(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 3 {
		return false
	}
	for _, r := range trimmed {
		if r != '_' {
			return false
		}
	}
	return true
}

// parseBlocks consumes blocks until a heading at or above headingLevel.
// It returns the metadata region (if one was seen) alongside the blocks.
func (p *parser) parseBlocks(headingLevel int) (string, []Block, error) {
	var meta string
	var blocks []Block
	var firstErr error

	for !p.eof() {
		line := p.peek()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			p.advance()

		case trimmed == "@document.meta":
			p.advance()
			body, err := p.collectUntilEnd()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if meta == "" {
				meta = body
			}

		case strings.HasPrefix(trimmed, "@code"):
			p.advance()
			lang := strings.TrimSpace(strings.TrimPrefix(trimmed, "@code"))
			body, err := p.collectUntilEnd()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			blocks = append(blocks, Block{Kind: BlockCode, Lang: lang, Raw: body})

		case strings.HasPrefix(trimmed, "@embed html"):
			p.advance()
			body, err := p.collectUntilEnd()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			blocks = append(blocks, Block{Kind: BlockRawHTML, Raw: body})

		case strings.HasPrefix(trimmed, "@table"):
			p.advance()
			body, err := p.collectUntilEnd()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			blocks = append(blocks, parseTable(body))

		case strings.HasPrefix(trimmed, ".image "):
			p.advance()
			fields := strings.Fields(strings.TrimPrefix(trimmed, ".image "))
			img := Block{Kind: BlockImage}
			if len(fields) > 0 {
				img.Src = fields[0]
			}
			if len(fields) > 1 {
				img.Alt = strings.Join(fields[1:], " ")
			}
			blocks = append(blocks, img)

		case strings.HasPrefix(trimmed, "+") && len(strings.Fields(trimmed[1:])) > 0:
			p.advance()
			fields := strings.Fields(trimmed[1:])
			blocks = append(blocks, Block{
				Kind:   BlockWeakCarryover,
				Name:   fields[0],
				Params: fields[1:],
			})

		case strings.HasPrefix(trimmed, "#html "):
			// Strong carryover in the html namespace: the annotation body is
			// emitted verbatim, scoped to this block alone.
			p.advance()
			blocks = append(blocks, Block{Kind: BlockRawHTML, Raw: strings.TrimPrefix(trimmed, "#html ")})

		case isHorizontalRule(trimmed):
			p.advance()
			blocks = append(blocks, Block{Kind: BlockRule})

		case markerLevel(trimmed, '*') > 0:
			level := markerLevel(trimmed, '*')
			if level <= headingLevel {
				return meta, blocks, firstErr
			}
			p.advance()
			title := ParseInlines(markerText(trimmed, level))
			childMeta, children, err := p.parseBlocks(level)
			if childMeta != "" && meta == "" {
				meta = childMeta
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
			blocks = append(blocks, Block{
				Kind:     BlockHeading,
				Level:    level,
				Inlines:  title,
				Children: children,
			})

		case markerLevel(trimmed, '-') > 0:
			blocks = append(blocks, p.parseList('-', false))

		case markerLevel(trimmed, '~') > 0:
			blocks = append(blocks, p.parseList('~', true))

		case markerLevel(trimmed, '>') > 0:
			blocks = append(blocks, p.parseQuote())

		case strings.HasPrefix(trimmed, "^ "):
			p.advance()
			label := strings.TrimSpace(trimmed[2:])
			body := p.collectIndented()
			blocks = append(blocks, Block{
				Kind:     BlockFootnoteDef,
				Name:     label,
				Children: []Block{{Kind: BlockParagraph, Inlines: ParseInlines(body)}},
			})

		case strings.HasPrefix(trimmed, "$ "):
			blocks = append(blocks, p.parseDefList())

		default:
			blocks = append(blocks, p.parseParagraph())
		}
	}

	return meta, blocks, firstErr
}

// collectUntilEnd gathers raw lines up to a lone @end marker.
func (p *parser) collectUntilEnd() (string, error) {
	var body []string
	for !p.eof() {
		line := p.advance()
		if strings.TrimSpace(line) == "@end" {
			return strings.Join(body, "\n"), nil
		}
		body = append(body, strings.TrimLeft(line, " \t"))
	}
	return strings.Join(body, "\n"),
		lerrors.New(lerrors.KindParse, lerrors.SeverityError, "unterminated ranged tag: missing @end")
}

// collectIndented gathers the following indented lines into one text run.
func (p *parser) collectIndented() string {
	var parts []string
	for !p.eof() {
		line := p.peek()
		if strings.TrimSpace(line) == "" || !strings.HasPrefix(line, " ") {
			break
		}
		parts = append(parts, strings.TrimSpace(p.advance()))
	}
	return strings.Join(parts, " ")
}

// parseParagraph consumes consecutive plain lines into a single paragraph.
// It always consumes at least one line, so unrecognized tag-like lines fall
// through as text instead of stalling the parser.
func (p *parser) parseParagraph() Block {
	parts := []string{strings.TrimSpace(p.advance())}
	for !p.eof() {
		trimmed := strings.TrimSpace(p.peek())
		if trimmed == "" || isStructural(trimmed) {
			break
		}
		parts = append(parts, trimmed)
		p.advance()
	}
	return Block{Kind: BlockParagraph, Inlines: ParseInlines(strings.Join(parts, " "))}
}

// isStructural reports whether a trimmed line starts a non-paragraph block.
func isStructural(trimmed string) bool {
	if trimmed == "" {
		return true
	}
	if strings.HasPrefix(trimmed, "@") || strings.HasPrefix(trimmed, "+") ||
		strings.HasPrefix(trimmed, "#html ") || strings.HasPrefix(trimmed, ".image ") ||
		strings.HasPrefix(trimmed, "^ ") || strings.HasPrefix(trimmed, "$ ") {
		return true
	}
	if isHorizontalRule(trimmed) {
		return true
	}
	for _, m := range []byte{'*', '-', '~', '>'} {
		if markerLevel(trimmed, m) > 0 {
			return true
		}
	}
	return false
}

// parseList consumes a run of list items with the given marker, nesting by
// marker repetition count.
func (p *parser) parseList(marker byte, ordered bool) Block {
	return p.parseListAt(marker, ordered, 1)
}

func (p *parser) parseListAt(marker byte, ordered bool, level int) Block {
	list := Block{Kind: BlockList, Ordered: ordered, Level: level}
	for !p.eof() {
		trimmed := strings.TrimSpace(p.peek())
		lvl := markerLevel(trimmed, marker)
		if lvl == 0 || lvl < level {
			break
		}
		if lvl > level {
			// Deeper run nests under the last item.
			nested := p.parseListAt(marker, ordered, lvl)
			if len(list.Children) == 0 {
				list.Children = append(list.Children, Block{Kind: BlockListItem, Level: level})
			}
			last := &list.Children[len(list.Children)-1]
			last.Children = append(last.Children, nested)
			continue
		}
		p.advance()
		list.Children = append(list.Children, Block{
			Kind:    BlockListItem,
			Level:   lvl,
			Inlines: ParseInlines(markerText(trimmed, lvl)),
		})
	}
	return list
}

// parseQuote consumes a run of quote lines into one blockquote.
func (p *parser) parseQuote() Block {
	quote := Block{Kind: BlockQuote}
	for !p.eof() {
		trimmed := strings.TrimSpace(p.peek())
		lvl := markerLevel(trimmed, '>')
		if lvl == 0 {
			break
		}
		p.advance()
		quote.Children = append(quote.Children, Block{
			Kind:    BlockParagraph,
			Inlines: ParseInlines(markerText(trimmed, lvl)),
		})
	}
	return quote
}

// parseDefList consumes `$ term` entries with indented descriptions.
func (p *parser) parseDefList() Block {
	dl := Block{Kind: BlockDefList}
	for !p.eof() {
		trimmed := strings.TrimSpace(p.peek())
		if !strings.HasPrefix(trimmed, "$ ") {
			break
		}
		p.advance()
		item := Block{Kind: BlockDefItem, Inlines: ParseInlines(trimmed[2:])}
		desc := p.collectIndented()
		if desc != "" {
			item.Children = append(item.Children, Block{Kind: BlockParagraph, Inlines: ParseInlines(desc)})
		}
		dl.Children = append(dl.Children, item)
	}
	return dl
}

// parseTable turns a @table body into rows of cells. A separator row of
// dashes directly after the first row marks it as the header. Each cell is
// a paragraph block under its row.
func parseTable(body string) Block {
	table := Block{Kind: BlockTable}
	for _, raw := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if isSeparatorRow(trimmed) {
			if len(table.Children) == 1 {
				table.Children[0].HeaderRow = true
			}
			continue
		}
		row := Block{Kind: BlockTableRow}
		for _, cell := range strings.Split(strings.Trim(trimmed, "|"), "|") {
			row.Children = append(row.Children, Block{
				Kind:    BlockParagraph,
				Inlines: ParseInlines(strings.TrimSpace(cell)),
			})
		}
		table.Children = append(table.Children, row)
	}
	return table
}

func isSeparatorRow(trimmed string) bool {
	stripped := strings.Trim(trimmed, "|- ")
	return stripped == "" && strings.Contains(trimmed, "-")
}
