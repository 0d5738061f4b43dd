package graph

import (
	"regexp"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// htmlRefRe catches src/href attributes in raw HTML passages, which goldmark
// treats as opaque HTML blocks.
var htmlRefRe = regexp.MustCompile(`(?i)(?:src|href)\s*=\s*["']([^"']+)["']`)

// ExtractAssetRefs parses a Markdown body and collects link-like destinations
// (inline links, images, autolinks, and src/href attributes in embedded HTML).
// The linker matches them against known stylesheet/static nodes; unmatched
// refs are simply not edges.
func ExtractAssetRefs(body []byte) []string {
	if len(body) == 0 {
		return nil
	}

	var refs []string
	seen := map[string]bool{}
	add := func(dest string) {
		if dest != "" && !seen[dest] {
			seen[dest] = true
			refs = append(refs, dest)
		}
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Link:
			add(string(node.Destination))
		case *gmast.Image:
			add(string(node.Destination))
		case *gmast.AutoLink:
			add(string(node.URL(body)))
		}
		return gmast.WalkContinue, nil
	})

	for _, m := range htmlRefRe.FindAllSubmatch(body, -1) {
		add(string(m[1]))
	}
	return refs
}
