package site

import (
	"mime"
	"path/filepath"
)

// Asset is a static file served bit-for-bit: anything non-.norg under
// content/, plus the site and theme asset trees.
type Asset struct {
	// Path is the URL path the asset is served under.
	Path string

	SourcePath string
	Hash       string
	MIME       string
	Body       []byte
}

// NewAsset builds an asset from raw bytes; the MIME type is guessed from
// the extension.
func NewAsset(urlPath, sourcePath string, body []byte) *Asset {
	return &Asset{
		Path:       urlPath,
		SourcePath: sourcePath,
		Hash:       HashBytes(body),
		MIME:       GuessMIME(sourcePath),
		Body:       body,
	}
}

// GuessMIME maps a file extension to a MIME type, defaulting to
// application/octet-stream.
func GuessMIME(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
