package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// ChromaHighlighter implements the highlighting collaborator with chroma.
// Unknown language tags pass through to the plain code-block path.
func ChromaHighlighter(theme string) Highlighter {
	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}
	formatter := chromahtml.New(
		chromahtml.WithClasses(false),
		chromahtml.TabWidth(4),
	)

	return func(lang, source string) (string, bool) {
		if lang == "" {
			return "", false
		}
		lexer := lexers.Get(lang)
		if lexer == nil {
			return "", false
		}
		lexer = chroma.Coalesce(lexer)

		iterator, err := lexer.Tokenise(nil, source)
		if err != nil {
			return "", false
		}
		var b strings.Builder
		if err := formatter.Format(&b, style, iterator); err != nil {
			return "", false
		}
		return b.String(), true
	}
}
