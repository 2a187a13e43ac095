package converter

import (
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/norgolith/lith/internal/norg"
)

var titleCaser = cases.Title(language.English)

// ApplyMetaDefaults fills in the well-known metadata defaults for a document
// addressed by route: an absent title becomes a titlecased form of the file
// stem, an absent layout becomes "default".
func ApplyMetaDefaults(meta map[string]any, route string) {
	if _, ok := meta["title"]; !ok {
		meta["title"] = DefaultTitle(route)
	}
	if _, ok := meta["layout"]; !ok {
		meta["layout"] = "default"
	}
}

// DefaultTitle titlecases the last route segment, turning separators into
// spaces. The root route is titled "Index".
func DefaultTitle(route string) string {
	stem := path.Base(strings.Trim(route, "/"))
	if stem == "" || stem == "." {
		stem = "index"
	}
	stem = strings.NewReplacer("-", " ", "_", " ").Replace(stem)
	return titleCaser.String(stem)
}

// MetaString returns a metadata value as a string, or fallback.
func MetaString(meta map[string]any, key, fallback string) string {
	if v, ok := meta[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// MetaBool returns a metadata value as a bool, defaulting to false.
func MetaBool(meta map[string]any, key string) bool {
	if v, ok := meta[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// MetaTime returns a metadata value as a time, accepting both typed values
// and ISO-8601 strings (missing timezone reads as UTC).
func MetaTime(meta map[string]any, key string) (time.Time, bool) {
	v, ok := meta[key]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return norg.ParseMetaDate(t)
	}
	return time.Time{}, false
}

// MetaStrings returns a metadata list value as strings, tolerating scalar
// entries of other types by skipping them.
func MetaStrings(meta map[string]any, key string) []string {
	v, ok := meta[key]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok && s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
