package assets

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

// Minifier shrinks HTML and CSS artifacts before they are written.
type Minifier struct {
	m *minify.M
}

// NewMinifier configures minification for the artifact types novos emits.
func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc("text/html", (&html.Minifier{KeepDocumentTags: true, KeepEndTags: true}).Minify)
	m.AddFunc("text/css", (&css.Minifier{}).Minify)
	return &Minifier{m: m}
}

// HTML minifies an HTML document; on failure the input is returned unchanged
// (minification is best-effort, never a build error).
func (mn *Minifier) HTML(src []byte) []byte {
	out, err := mn.m.Bytes("text/html", src)
	if err != nil {
		return src
	}
	return out
}

// CSS minifies a stylesheet, falling back to the input on failure.
func (mn *Minifier) CSS(src []byte) []byte {
	out, err := mn.m.Bytes("text/css", src)
	if err != nil {
		return src
	}
	return out
}
