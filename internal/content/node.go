// Package content defines the content model (tracked input files) and the
// loader that scans a project tree into it.
package content

import (
	"sort"
	"time"
)

// Kind classifies a tracked input file.
type Kind string

const (
	KindPage       Kind = "page"
	KindTemplate   Kind = "template"
	KindShortcode  Kind = "shortcode"
	KindStylesheet Kind = "stylesheet"
	KindStatic     Kind = "static"
	// KindAggregate marks synthetic nodes (search index, feed) that are not
	// backed by a source file but participate in the dependency graph.
	KindAggregate Kind = "aggregate"
)

// ID is the stable identity of a node: its canonical slash-separated path
// relative to the project root. Aggregate nodes use their artifact name.
type ID string

// FrontMatter holds parsed page metadata.
type FrontMatter struct {
	Title string
	Date  time.Time
	Tags  []string
	// Template names the layout this page renders through, without extension.
	// Empty means the kind default (post/page).
	Template string
	// Extra carries any additional front-matter keys untouched.
	Extra map[string]any
}

// Node is one tracked input file.
type Node struct {
	ID   ID
	Kind Kind
	// AbsPath is the absolute filesystem path of the source file. Empty for
	// aggregate nodes.
	AbsPath string
	// Hash is the SHA-256 of the raw file content, used for change detection.
	Hash string
	// Meta is parsed front matter; only populated for pages.
	Meta FrontMatter
	// Body is the file content with front matter stripped. For non-page kinds
	// it is the full content.
	Body    []byte
	ModTime time.Time

	// Slug is the normalized file stem; pages and shortcodes are addressed by
	// it.
	Slug string
	// Section is "posts" or "pages" for pages, empty otherwise.
	Section string
	// OutPath is the artifact path relative to the output root, empty for
	// kinds that produce no direct artifact (templates, shortcodes).
	OutPath string
	// URL is the site-absolute URL of the artifact (pages and assets).
	URL string

	// Err records a per-file load failure. An errored node stays in the graph
	// so dependents can be reported, but renders to nothing.
	Err error
}

// Broken reports whether the node failed to load.
func (n *Node) Broken() bool { return n.Err != nil }

// IsPost reports whether the node is a blog post (dated, feed-eligible) as
// opposed to a standalone page.
func (n *Node) IsPost() bool { return n.Section == "posts" }

// TemplateName resolves the layout a page renders through: the front-matter
// `template:` value, or the section default.
func (n *Node) TemplateName() string {
	if n.Meta.Template != "" {
		return n.Meta.Template
	}
	if n.IsPost() {
		return "post"
	}
	return "page"
}

// Set is the collection of all known nodes, keyed by identity.
//
// Set is not synchronized: it is mutated only by the loader at scan time and
// by the single-threaded serve reconciliation step, never concurrently with a
// render batch.
type Set struct {
	nodes map[ID]*Node
}

// NewSet returns an empty node set.
func NewSet() *Set {
	return &Set{nodes: make(map[ID]*Node)}
}

// Get returns the node with the given identity, or nil.
func (s *Set) Get(id ID) *Node { return s.nodes[id] }

// Put inserts or replaces a node.
func (s *Set) Put(n *Node) { s.nodes[n.ID] = n }

// Remove deletes a node; the caller is responsible for pruning its edges.
func (s *Set) Remove(id ID) { delete(s.nodes, id) }

// Len returns the number of nodes.
func (s *Set) Len() int { return len(s.nodes) }

// IDs returns all node identities in stable sorted order.
func (s *Set) IDs() []ID {
	ids := make([]ID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All returns all nodes in stable ID order.
func (s *Set) All() []*Node {
	out := make([]*Node, 0, len(s.nodes))
	for _, id := range s.IDs() {
		out = append(out, s.nodes[id])
	}
	return out
}

// Pages returns all page nodes in stable ID order.
func (s *Set) Pages() []*Node {
	var out []*Node
	for _, n := range s.All() {
		if n.Kind == KindPage {
			out = append(out, n)
		}
	}
	return out
}

// ByKind returns all nodes of the given kind in stable ID order.
func (s *Set) ByKind(kind Kind) []*Node {
	var out []*Node
	for _, n := range s.All() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// ShortcodeBySlug resolves a shortcode invocation name to its node.
func (s *Set) ShortcodeBySlug(slug string) *Node {
	for _, n := range s.ByKind(KindShortcode) {
		if n.Slug == slug {
			return n
		}
	}
	return nil
}

// TemplateBySlug resolves a template name (front-matter `template:` value or
// kind default) to its node.
func (s *Set) TemplateBySlug(slug string) *Node {
	for _, n := range s.ByKind(KindTemplate) {
		if n.Slug == slug {
			return n
		}
	}
	return nil
}
