package render

import "github.com/flosch/pongo2/v6"

// Safe marks pre-rendered HTML so the engine's autoescaping leaves it
// alone; the converter output is the only producer of such values.
func Safe(html string) any {
	return pongo2.AsSafeValue(html)
}
