package render

import (
	"bytes"
	"fmt"
	stdhtml "html"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	gmutil "github.com/yuin/goldmark/util"
)

// Highlighter converts a fenced code block into highlighted HTML. Returning
// ok=false means pass-through: the caller emits a plain <pre><code> block.
type Highlighter func(lang, source string) (html string, ok bool)

// PassthroughHighlighter never highlights; used when syntax_highlighting is
// disabled.
func PassthroughHighlighter() Highlighter {
	return func(string, string) (string, bool) { return "", false }
}

// Markdown converts Markdown bodies to HTML. Raw HTML passes through
// untouched since shortcode expansion happens before conversion.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown builds the converter with GFM extensions and the given
// highlighter wired into fenced code blocks.
func NewMarkdown(highlight Highlighter) *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				gmhtml.WithUnsafe(),
				renderer.WithNodeRenderers(
					gmutil.Prioritized(&codeBlockRenderer{highlight: highlight}, 200),
				),
			),
		),
	}
}

// Render converts src to HTML.
func (m *Markdown) Render(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.md.Convert(src, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StripText extracts the plain text of a Markdown body for indexing.
func (m *Markdown) StripText(src []byte) string {
	root := m.md.Parser().Parse(text.NewReader(src))
	var b bytes.Buffer
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if t, ok := n.(*gmast.Text); ok {
			b.Write(t.Segment.Value(src))
			b.WriteByte(' ')
		}
		return gmast.WalkContinue, nil
	})
	return string(bytes.TrimSpace(b.Bytes()))
}

// codeBlockRenderer replaces goldmark's fenced-code rendering with the
// injected highlighter.
type codeBlockRenderer struct {
	highlight Highlighter
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(gmast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeBlockRenderer) renderFencedCode(w gmutil.BufWriter, source []byte, n gmast.Node, entering bool) (gmast.WalkStatus, error) {
	if !entering {
		return gmast.WalkContinue, nil
	}
	cb := n.(*gmast.FencedCodeBlock)
	lang := string(cb.Language(source))

	var code bytes.Buffer
	lines := cb.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}

	if highlighted, ok := r.highlight(lang, code.String()); ok {
		_, _ = w.WriteString(highlighted)
		return gmast.WalkSkipChildren, nil
	}

	_, _ = w.WriteString("<pre><code")
	if lang != "" {
		_, _ = fmt.Fprintf(w, " class=%q", "language-"+lang)
	}
	_, _ = w.WriteString(">")
	_, _ = w.WriteString(stdhtml.EscapeString(code.String()))
	_, _ = w.WriteString("</code></pre>\n")
	return gmast.WalkSkipChildren, nil
}
