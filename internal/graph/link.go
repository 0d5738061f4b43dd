package graph

import (
	"strings"

	"git.home.luguber.info/inful/novos/internal/config"
	"git.home.luguber.info/inful/novos/internal/content"
)

// Link resolves textual references in the node set into dependency edges and
// returns a fresh graph: front-matter template names become uses-template
// edges, shortcode invocation tokens become includes-shortcode edges, asset
// URLs become references-asset edges, and the synthetic aggregate nodes gain
// an aggregates-page edge per page.
func Link(set *content.Set, cfg *config.Config) *Graph {
	g := New(set)
	urls := AssetIndex(set)

	for _, node := range set.All() {
		switch node.Kind {
		case content.KindPage:
			g.linkTemplateChain(node.ID, node.TemplateName())
			g.linkBody(node, urls)
		case content.KindTemplate, content.KindShortcode:
			if node.Meta.Template != "" {
				g.linkTemplateChain(node.ID, node.Meta.Template)
			}
			g.linkBody(node, urls)
		}
	}

	g.linkIndex(cfg)
	g.linkAggregates(cfg)
	return g
}

// Relink recomputes a single node's outgoing edges in place after a rescan.
// The synthetic home page and aggregate membership are refreshed on every
// relink: a create or delete of any page, template, or shortcode can change
// both.
func (g *Graph) Relink(id content.ID, cfg *config.Config) {
	node := g.set.Get(id)
	if node == nil {
		g.RemoveNode(id)
	} else {
		g.SetConsumed(id, nil)
		urls := AssetIndex(g.set)
		switch node.Kind {
		case content.KindPage:
			g.linkTemplateChain(id, node.TemplateName())
			g.linkBody(node, urls)
		case content.KindTemplate, content.KindShortcode:
			if node.Meta.Template != "" {
				g.linkTemplateChain(id, node.Meta.Template)
			}
			g.linkBody(node, urls)
		}
	}
	g.linkIndex(cfg)
	g.linkAggregates(cfg)
}

func (g *Graph) linkTemplateChain(consumer content.ID, name string) {
	tpl := g.set.TemplateBySlug(name)
	if tpl == nil {
		// Unresolved template: the renderer reports the error. The pending
		// entry makes the consumer a rebuild root once a template with this
		// name appears.
		addPending(g.pendingTemplates, name, consumer)
		return
	}
	g.AddEdge(consumer, tpl.ID, EdgeUsesTemplate)
}

func (g *Graph) linkBody(node *content.Node, urls map[string]content.ID) {
	for _, name := range content.ShortcodeNames(node.Body) {
		if sc := g.set.ShortcodeBySlug(name); sc != nil {
			g.AddEdge(node.ID, sc.ID, EdgeIncludesShortcode)
		} else {
			addPending(g.pendingShortcodes, name, node.ID)
		}
	}
	for _, ref := range ExtractAssetRefs(node.Body) {
		if id, ok := urls[NormalizeAssetRef(ref)]; ok {
			g.AddEdge(node.ID, id, EdgeReferencesAsset)
		}
	}
}

// linkIndex keeps the synthetic home page in step with authored content: when
// the project defines an index template and no page produces index.html, the
// template renders the home page directly with the site title and post list.
func (g *Graph) linkIndex(cfg *config.Config) {
	authored := false
	for _, page := range g.set.Pages() {
		if page.ID != IndexID && page.OutPath == "index.html" {
			authored = true
			break
		}
	}
	if authored || g.set.TemplateBySlug("index") == nil {
		if g.set.Get(IndexID) != nil {
			g.RemoveNode(IndexID)
			g.set.Remove(IndexID)
		}
		return
	}

	if g.set.Get(IndexID) == nil {
		g.set.Put(&content.Node{
			ID:      IndexID,
			Kind:    content.KindPage,
			Slug:    "index",
			Section: "pages",
			OutPath: "index.html",
			URL:     strings.TrimSuffix(cfg.Base, "/") + "/index.html",
			Meta:    content.FrontMatter{Title: cfg.Site.Title, Template: "index"},
		})
	}
	g.SetConsumed(IndexID, nil)
	g.linkTemplateChain(IndexID, "index")
}

func (g *Graph) linkAggregates(cfg *config.Config) {
	wantSearch := cfg.Build.SearchIndex
	wantFeed := cfg.Build.RSS

	if wantSearch && g.set.Get(SearchIndexID) == nil {
		g.set.Put(&content.Node{ID: SearchIndexID, Kind: content.KindAggregate, OutPath: string(SearchIndexID)})
	}
	if wantFeed && g.set.Get(FeedID) == nil {
		g.set.Put(&content.Node{ID: FeedID, Kind: content.KindAggregate, OutPath: string(FeedID)})
	}

	for _, aggregate := range []struct {
		id      content.ID
		enabled bool
	}{
		{SearchIndexID, wantSearch},
		{FeedID, wantFeed},
	} {
		if !aggregate.enabled {
			continue
		}
		g.SetConsumed(aggregate.id, nil)
		for _, page := range g.set.Pages() {
			g.AddEdge(aggregate.id, page.ID, EdgeAggregatesPage)
		}
	}
}

// AssetIndex maps site URLs and output-relative paths to the producing
// stylesheet/static node.
func AssetIndex(set *content.Set) map[string]content.ID {
	urls := make(map[string]content.ID)
	for _, node := range set.All() {
		if node.Kind != content.KindStatic && node.Kind != content.KindStylesheet {
			continue
		}
		if node.OutPath == "" {
			continue
		}
		urls["/"+node.OutPath] = node.ID
		if node.URL != "" {
			urls[node.URL] = node.ID
		}
	}
	return urls
}

func NormalizeAssetRef(ref string) string {
	ref = strings.SplitN(ref, "#", 2)[0]
	ref = strings.SplitN(ref, "?", 2)[0]
	if ref == "" {
		return ref
	}
	if !strings.HasPrefix(ref, "/") && !strings.Contains(ref, "://") {
		ref = "/" + ref
	}
	return ref
}
