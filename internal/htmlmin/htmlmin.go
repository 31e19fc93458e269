// Package htmlmin collapses insignificant whitespace in HTML documents.
package htmlmin

import (
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

const mediaType = "text/html"

// Minifier collapses whitespace while keeping the document otherwise intact:
// comments, optional tags, attribute quotes and default attribute values
// survive.
type Minifier struct {
	m *minify.M
}

// New creates an HTML minifier.
func New() *Minifier {
	m := minify.New()
	m.Add(mediaType, &html.Minifier{
		KeepComments:        true,
		KeepDefaultAttrVals: true,
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
	})
	return &Minifier{m: m}
}

// Minify returns the minified document. filename is used in error messages.
func (h *Minifier) Minify(filename string, src []byte) ([]byte, error) {
	out, err := h.m.Bytes(mediaType, src)
	if err != nil {
		return nil, fmt.Errorf("minify %s: %w", filename, err)
	}
	return out, nil
}
