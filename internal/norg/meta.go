package norg

import (
	"strconv"
	"strings"
	"time"
)

// Metadata value typing follows the original converter's rules: a scalar is
// tried as a datetime, then a boolean, then a number, and falls back to a
// string. Missing timezones are treated as UTC.

var metaDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseMetaValue types a scalar metadata string.
func ParseMetaValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" || s == "nil" {
		return ""
	}
	if t, ok := ParseMetaDate(s); ok {
		return t
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// ParseMetaDate parses an ISO-8601 date/time; a value without a timezone is
// interpreted as UTC.
func ParseMetaDate(s string) (time.Time, bool) {
	for _, layout := range metaDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseMeta decodes the raw @document.meta region into a typed key/value
// map. Lists span lines between `[` and `]`; nested objects between `{` and
// `}`. Unknown keys are preserved verbatim.
func ParseMeta(raw string) map[string]any {
	lines := splitLines(raw)
	meta, _ := parseMetaLines(lines, 0, "")
	return meta
}

// parseMetaLines consumes key/value lines until the terminator (or EOF) and
// returns the map plus the index after the consumed region.
func parseMetaLines(lines []string, start int, terminator string) (map[string]any, int) {
	meta := map[string]any{}
	i := start
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}
		if terminator != "" && line == terminator {
			return meta, i + 1
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			i++
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch {
		case key == "":
			i++
		case value == "[":
			var list []any
			list, i = parseMetaList(lines, i+1)
			meta[key] = list
		case value == "{":
			var nested map[string]any
			nested, i = parseMetaLines(lines, i+1, "}")
			meta[key] = nested
		case strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]"):
			meta[key] = parseInlineList(value)
			i++
		default:
			meta[key] = ParseMetaValue(value)
			i++
		}
	}
	return meta, i
}

func parseMetaList(lines []string, start int) ([]any, int) {
	list := []any{}
	i := start
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "]" {
			return list, i + 1
		}
		if line != "" {
			list = append(list, ParseMetaValue(line))
		}
		i++
	}
	return list, i
}

func parseInlineList(value string) []any {
	inner := strings.TrimSpace(value[1 : len(value)-1])
	if inner == "" {
		return []any{}
	}
	var list []any
	for _, item := range strings.Split(inner, ",") {
		list = append(list, ParseMetaValue(item))
	}
	return list
}
