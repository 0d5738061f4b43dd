// Package graph maintains the content dependency graph: which node's rendered
// output depends on which other node's content. Edges are derived from
// content, never authored, and are recomputed whenever a node changes.
package graph

import (
	"sort"

	"git.home.luguber.info/inful/novos/internal/content"
)

// EdgeKind classifies a dependency edge.
type EdgeKind string

const (
	// EdgeUsesTemplate: a page (or template) renders through a template.
	EdgeUsesTemplate EdgeKind = "uses-template"
	// EdgeIncludesShortcode: a body invokes a shortcode.
	EdgeIncludesShortcode EdgeKind = "includes-shortcode"
	// EdgeReferencesAsset: a body references a stylesheet or static asset.
	EdgeReferencesAsset EdgeKind = "references-asset"
	// EdgeAggregatesPage: an aggregate artifact (search index, feed) depends
	// on every page's rendered metadata.
	EdgeAggregatesPage EdgeKind = "aggregates-page"
)

// Synthetic aggregate node identities.
const (
	SearchIndexID content.ID = "search.json"
	FeedID        content.ID = "rss.xml"
)

// IndexID is the synthetic home page, rendered from the index template when no
// authored page produces index.html.
const IndexID content.ID = "index.html"

// Graph is the node set plus its derived dependency edges.
//
// Graph structure is mutated only by the single-threaded link/reconciliation
// step, never concurrently with an active render batch.
type Graph struct {
	set *content.Set
	// consumes: consumer -> producer -> edge kind.
	consumes map[content.ID]map[content.ID]EdgeKind
	// consumers: producer -> consumers (reverse index for invalidation).
	consumers map[content.ID]map[content.ID]struct{}

	// pendingTemplates and pendingShortcodes index unresolved references:
	// name -> consumers that referenced it before a node with that name
	// existed. An entry lives until the consumer renders successfully or is
	// relinked, so creating the missing producer can reach its waiters even
	// though no edge was ever recorded.
	pendingTemplates  map[string]map[content.ID]struct{}
	pendingShortcodes map[string]map[content.ID]struct{}
}

// New creates an empty graph over the given node set.
func New(set *content.Set) *Graph {
	return &Graph{
		set:               set,
		consumes:          make(map[content.ID]map[content.ID]EdgeKind),
		consumers:         make(map[content.ID]map[content.ID]struct{}),
		pendingTemplates:  make(map[string]map[content.ID]struct{}),
		pendingShortcodes: make(map[string]map[content.ID]struct{}),
	}
}

// Nodes returns the underlying node set.
func (g *Graph) Nodes() *content.Set { return g.set }

// AddEdge records that consumer's output depends on producer's content.
// Self-edges are recorded too: a template naming itself as its own layout is a
// direct cycle that DetectCycle must see.
func (g *Graph) AddEdge(consumer, producer content.ID, kind EdgeKind) {
	if g.consumes[consumer] == nil {
		g.consumes[consumer] = make(map[content.ID]EdgeKind)
	}
	g.consumes[consumer][producer] = kind
	if g.consumers[producer] == nil {
		g.consumers[producer] = make(map[content.ID]struct{})
	}
	g.consumers[producer][consumer] = struct{}{}
}

// Producers returns the identities consumer depends on, sorted.
func (g *Graph) Producers(consumer content.ID) []content.ID {
	return sortedIDs(g.consumes[consumer])
}

// ProducerEdges returns consumer's outgoing edges with their kinds.
func (g *Graph) ProducerEdges(consumer content.ID) map[content.ID]EdgeKind {
	out := make(map[content.ID]EdgeKind, len(g.consumes[consumer]))
	for p, k := range g.consumes[consumer] {
		out[p] = k
	}
	return out
}

// Consumers returns the identities that depend on producer, sorted.
func (g *Graph) Consumers(producer content.ID) []content.ID {
	return sortedIDs(g.consumers[producer])
}

// RemoveNode drops a node's edges in both directions. The node itself is
// removed from the set by the loader.
func (g *Graph) RemoveNode(id content.ID) {
	for producer := range g.consumes[id] {
		delete(g.consumers[producer], id)
	}
	delete(g.consumes, id)
	for consumer := range g.consumers[id] {
		delete(g.consumes[consumer], id)
	}
	delete(g.consumers, id)
	g.clearPending(id)
}

// SetConsumed replaces consumer's outgoing edges with the producer set the
// renderer actually consumed during its last render. Aggregate edges are
// managed by Link and preserved. A successful render resolves every reference,
// so the consumer's pending entries are cleared as well.
func (g *Graph) SetConsumed(consumer content.ID, producers map[content.ID]EdgeKind) {
	g.clearPending(consumer)
	for producer, kind := range g.consumes[consumer] {
		if kind == EdgeAggregatesPage {
			continue
		}
		delete(g.consumes[consumer], producer)
		delete(g.consumers[producer], consumer)
	}
	for producer, kind := range producers {
		g.AddEdge(consumer, producer, kind)
	}
}

// AffectedBy computes the transitive closure of consumers reachable from the
// changed set by following edges backward. The changed identities themselves
// are included, so the result is directly usable as a scheduler root set.
func (g *Graph) AffectedBy(changed []content.ID) map[content.ID]struct{} {
	affected := make(map[content.ID]struct{}, len(changed))
	queue := make([]content.ID, 0, len(changed))
	for _, id := range changed {
		if _, ok := affected[id]; !ok {
			affected[id] = struct{}{}
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for consumer := range g.consumers[id] {
			if _, ok := affected[consumer]; !ok {
				affected[consumer] = struct{}{}
				queue = append(queue, consumer)
			}
		}
	}
	return affected
}

// Waiters returns the consumers that referenced node's name while no node
// with that name existed, sorted. They become rebuild roots when the node
// appears; entries persist across failed renders so a consumer that fails
// again is still reachable the next time its producer changes.
func (g *Graph) Waiters(node *content.Node) []content.ID {
	switch node.Kind {
	case content.KindTemplate:
		return sortedIDs(g.pendingTemplates[node.Slug])
	case content.KindShortcode:
		return sortedIDs(g.pendingShortcodes[node.Slug])
	}
	return nil
}

func addPending(m map[string]map[content.ID]struct{}, name string, consumer content.ID) {
	if m[name] == nil {
		m[name] = make(map[content.ID]struct{})
	}
	m[name][consumer] = struct{}{}
}

func (g *Graph) clearPending(consumer content.ID) {
	for name, waiters := range g.pendingTemplates {
		delete(waiters, consumer)
		if len(waiters) == 0 {
			delete(g.pendingTemplates, name)
		}
	}
	for name, waiters := range g.pendingShortcodes {
		delete(waiters, consumer)
		if len(waiters) == 0 {
			delete(g.pendingShortcodes, name)
		}
	}
}

func sortedIDs[V any](m map[content.ID]V) []content.ID {
	ids := make([]content.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
