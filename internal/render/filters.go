package render

import (
	"strings"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"

	"github.com/norgolith/lith/internal/norg"
)

var filterOnce sync.Once

// registerFilters installs the Norgolith filter set on the engine. join,
// default, title and safe are engine built-ins; date is replaced with a
// strftime-style implementation matching the formats templates use.
func registerFilters() {
	filterOnce.Do(func() {
		pongo2.RegisterFilter("escape_xml", filterEscapeXML)
		pongo2.RegisterFilter("filter", filterAttribute)
		pongo2.ReplaceFilter("date", filterDate)
	})
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func filterEscapeXML(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsSafeValue(xmlEscaper.Replace(in.String())), nil
}

// filterDate formats a time.Time (or an ISO-8601 string) with a
// strftime-style format parameter, e.g. {{ post.created|date:"%d %b %Y" }}.
func filterDate(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	var t time.Time
	switch v := in.Interface().(type) {
	case time.Time:
		t = v
	case string:
		parsed, ok := norg.ParseMetaDate(v)
		if !ok {
			return in, nil
		}
		t = parsed
	default:
		return in, nil
	}
	format := "%Y-%m-%d %H:%M:%S"
	if param != nil && param.String() != "" {
		format = param.String()
	}
	return pongo2.AsValue(t.Format(strftimeToLayout(format))), nil
}

// filterAttribute keeps the list entries whose metadata attribute matches a
// value; the parameter is "attribute=value". List-valued attributes match
// when they contain the value.
func filterAttribute(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	attr, want, found := strings.Cut(param.String(), "=")
	if !found {
		return nil, &pongo2.Error{Sender: "filter:filter", OrigError: errBadFilterParam}
	}
	var out []any
	in.Iterate(func(idx, count int, item, _ *pongo2.Value) bool {
		entry, ok := item.Interface().(map[string]any)
		if !ok {
			return true
		}
		switch v := entry[attr].(type) {
		case string:
			if v == want {
				out = append(out, entry)
			}
		case bool:
			if (want == "true") == v {
				out = append(out, entry)
			}
		case []any:
			for _, member := range v {
				if s, ok := member.(string); ok && s == want {
					out = append(out, entry)
					break
				}
			}
		case []string:
			for _, member := range v {
				if member == want {
					out = append(out, entry)
					break
				}
			}
		}
		return true
	}, func() {})
	return pongo2.AsValue(out), nil
}

var errBadFilterParam = &badParamError{}

type badParamError struct{}

func (*badParamError) Error() string {
	return `filter expects an "attribute=value" parameter`
}

// strftime directives to Go reference-time layout fragments. Unknown
// directives are kept literally.
var strftimeTable = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'a': "Mon",
	'A': "Monday",
	'b': "Jan",
	'B': "January",
	'p': "PM",
	'z': "-0700",
	'Z': "MST",
}

func strftimeToLayout(format string) string {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			sb.WriteByte(format[i])
			continue
		}
		i++
		if format[i] == '%' {
			sb.WriteByte('%')
			continue
		}
		if layout, ok := strftimeTable[format[i]]; ok {
			sb.WriteString(layout)
		} else {
			sb.WriteByte('%')
			sb.WriteByte(format[i])
		}
	}
	return sb.String()
}
