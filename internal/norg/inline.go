package norg

import "strings"

// attached modifier characters and the inline kind they open.
var attachedModifiers = map[byte]InlineKind{
	'*': InlineBold,
	'/': InlineItalic,
	'_': InlineUnderline,
	'-': InlineStrike,
}

// ParseInlines scans a paragraph-like run of text into inline elements:
// attached modifiers (*bold*, /italic/, _underline_, -strike-), inline
// verbatim (`code`), links ({target}[text]) and footnote references
// ({^ label}). Backslash escapes the next character.
func ParseInlines(text string) []Inline {
	var out []Inline
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			out = append(out, Inline{Kind: InlineText, Text: literal.String()})
			literal.Reset()
		}
	}

	i := 0
	for i < len(text) {
		c := text[i]

		switch {
		case c == '\\' && i+1 < len(text):
			literal.WriteByte(text[i+1])
			i += 2

		case c == '`':
			end := strings.IndexByte(text[i+1:], '`')
			if end < 0 {
				literal.WriteByte(c)
				i++
				continue
			}
			flush()
			out = append(out, Inline{Kind: InlineVerbatim, Text: text[i+1 : i+1+end]})
			i += end + 2

		case c == '{':
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				literal.WriteByte(c)
				i++
				continue
			}
			target := text[i+1 : i+end]
			rest := text[i+end+1:]
			var desc string
			consumed := end + 1
			if strings.HasPrefix(rest, "[") {
				if close := strings.IndexByte(rest, ']'); close > 0 {
					desc = rest[1:close]
					consumed += close + 1
				}
			}
			flush()
			if label, ok := strings.CutPrefix(target, "^ "); ok {
				out = append(out, Inline{Kind: InlineFootnoteRef, Label: strings.TrimSpace(label)})
			} else {
				link := Inline{Kind: InlineLink, Target: strings.TrimSpace(target)}
				if desc != "" {
					link.Children = ParseInlines(desc)
				}
				out = append(out, link)
			}
			i += consumed

		default:
			if kind, ok := attachedModifiers[c]; ok && opensModifier(text, i) {
				if end := findModifierClose(text, i); end > 0 {
					flush()
					out = append(out, Inline{Kind: kind, Children: ParseInlines(text[i+1 : end])})
					i = end + 1
					continue
				}
			}
			literal.WriteByte(c)
			i++
		}
	}
	flush()
	return out
}

// opensModifier reports whether the modifier char at position i can open a
// styled span: preceded by start-of-text or whitespace, followed by
// non-space content.
func opensModifier(text string, i int) bool {
	if i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == text[i] {
		return false
	}
	return i == 0 || text[i-1] == ' ' || text[i-1] == '('
}

// findModifierClose returns the index of the closing modifier char, or -1.
// The closer must directly follow non-space content.
func findModifierClose(text string, open int) int {
	c := text[open]
	for j := open + 2; j < len(text); j++ {
		if text[j] == c && text[j-1] != ' ' && text[j-1] != '\\' {
			if j+1 == len(text) || !isWordByte(text[j+1]) {
				return j
			}
		}
	}
	return -1
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
