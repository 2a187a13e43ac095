package publish

import (
	"bytes"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/xml"
)

var (
	minifier     *minify.M
	minifierOnce sync.Once
)

func minifyBytes(mediatype string, body []byte) ([]byte, error) {
	minifierOnce.Do(func() {
		minifier = minify.New()
		minifier.AddFunc("text/html", html.Minify)
		minifier.AddFunc("text/css", css.Minify)
		minifier.AddFunc("application/javascript", js.Minify)
		minifier.AddFunc("text/xml", xml.Minify)
	})
	var out bytes.Buffer
	if err := minifier.Minify(mediatype, &out, bytes.NewReader(body)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
