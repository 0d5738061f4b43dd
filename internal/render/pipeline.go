package render

import (
	"bytes"
	"context"
	"path"
	"strings"
	"sync"

	"git.home.luguber.info/inful/novos/internal/assets"
	"git.home.luguber.info/inful/novos/internal/build"
	"git.home.luguber.info/inful/novos/internal/config"
	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/graph"
	"git.home.luguber.info/inful/novos/internal/nverr"
	"git.home.luguber.info/inful/novos/internal/site"
)

// templateChainLimit bounds page -> template -> parent layout resolution.
const templateChainLimit = 8

// liveReloadScript is injected before </body> during serve mode. The dev
// server pushes "reload" or "refresh-css" over the SSE endpoint after each
// completed rebuild cycle.
const liveReloadScript = `<script id="novos-live-reload">
(function() {
    var source = new EventSource('/novos/live');
    source.onmessage = function(ev) {
        if (ev.data === 'refresh-css') {
            document.querySelectorAll('link[rel=stylesheet]').forEach(function(link) {
                var href = link.href.replace(/[?&]novos=\d+/, '');
                link.href = href + (href.indexOf('?') < 0 ? '?' : '&') + 'novos=' + Date.now();
            });
        } else {
            location.reload();
        }
    };
})();
</script>`

// Pipeline implements build.NodeRenderer: it dispatches each node kind to its
// render path and records the producer set actually consumed.
type Pipeline struct {
	cfg *config.Config
	set *content.Set

	engine       Engine
	templateErrs map[string]error
	md           *Markdown
	expander     *Expander
	minifier     *assets.Minifier
	sass         assets.SassCompiler
	dev          bool

	assetIndex map[string]content.ID
	postList   string

	metaMu   sync.Mutex
	pageMeta map[content.ID]site.PageMeta
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSassCompiler injects a real Sass engine in place of the passthrough
// default.
func WithSassCompiler(c assets.SassCompiler) Option {
	return func(p *Pipeline) { p.sass = c }
}

// WithDevMode enables live-reload script injection.
func WithDevMode() Option {
	return func(p *Pipeline) { p.dev = true }
}

// NewPipeline builds the renderer for a node set. Call Refresh before the
// first build and after every reconciliation rescan.
func NewPipeline(cfg *config.Config, set *content.Set, opts ...Option) *Pipeline {
	highlight := PassthroughHighlighter()
	if cfg.Build.SyntaxHighlighting {
		highlight = ChromaHighlighter(cfg.Build.SyntaxTheme)
	}
	p := &Pipeline{
		cfg:      cfg,
		set:      set,
		md:       NewMarkdown(highlight),
		minifier: assets.NewMinifier(),
		sass:     assets.PassthroughSass,
		pageMeta: make(map[content.ID]site.PageMeta),
	}
	p.expander = &Expander{
		Lookup:   set.ShortcodeBySlug,
		MaxDepth: cfg.Build.MaxShortcodeDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Refresh rebuilds the per-build lookup tables: the named-template engine
// (with template-level shortcode invocations pre-expanded), the asset URL
// index, the post-list fragment, and prunes metadata of removed pages.
//
// Refresh runs single-threaded, never concurrently with a render batch.
func (p *Pipeline) Refresh() error {
	sources := make(map[string]string)
	p.templateErrs = make(map[string]error)
	for _, tpl := range p.set.ByKind(content.KindTemplate) {
		if tpl.Broken() {
			p.templateErrs[tpl.Slug] = tpl.Err
			continue
		}
		expanded, err := p.expander.Expand(tpl.ID, tpl.Body, nil)
		if err != nil {
			p.templateErrs[tpl.Slug] = err
			continue
		}
		sources[tpl.Slug] = string(expanded)
	}
	engine, err := NewEngine(sources)
	if err != nil {
		return err
	}
	p.engine = engine

	p.assetIndex = graph.AssetIndex(p.set)
	p.postList = site.PostListHTML(p.frontMatterMetas())

	p.metaMu.Lock()
	for id := range p.pageMeta {
		if p.set.Get(id) == nil {
			delete(p.pageMeta, id)
		}
	}
	p.metaMu.Unlock()
	return nil
}

// RenderNode dispatches one node to its kind-specific render path.
func (p *Pipeline) RenderNode(ctx context.Context, node *content.Node, prods build.Producers) (*build.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch node.Kind {
	case content.KindPage:
		return p.renderPage(node)
	case content.KindTemplate, content.KindShortcode:
		return p.renderProducerOnly(node)
	case content.KindStylesheet:
		return p.renderStylesheet(node)
	case content.KindStatic:
		return &build.Result{Artifacts: []build.Artifact{{Path: node.OutPath, Data: node.Body}}}, nil
	case content.KindAggregate:
		return p.renderAggregate(node, prods)
	default:
		return &build.Result{}, nil
	}
}

func (p *Pipeline) renderPage(node *content.Node) (*build.Result, error) {
	consumed := make(map[content.ID]graph.EdgeKind)

	expanded, err := p.expander.Expand(node.ID, node.Body, func(id content.ID) {
		consumed[id] = graph.EdgeIncludesShortcode
	})
	if err != nil {
		return nil, err
	}

	var body []byte
	if strings.EqualFold(path.Ext(string(node.ID)), ".md") {
		body, err = p.md.Render(expanded)
		if err != nil {
			return nil, nverr.RenderFailed(string(node.ID), err)
		}
	} else {
		body = expanded
	}

	// Asset references come from the authored body, so a removed reference
	// drops the edge on the next cycle.
	for _, ref := range graph.ExtractAssetRefs(node.Body) {
		if id, ok := p.assetIndex[graph.NormalizeAssetRef(ref)]; ok {
			consumed[id] = graph.EdgeReferencesAsset
		}
	}

	page, err := p.renderThroughTemplates(node, string(body), consumed)
	if err != nil {
		return nil, err
	}

	final := []byte(page)
	if p.dev {
		final = injectLiveReload(final)
	}
	if p.cfg.Build.Minify {
		final = p.minifier.HTML(final)
	}

	p.recordMeta(node, body)

	return &build.Result{
		Artifacts: []build.Artifact{{Path: node.OutPath, Data: final}},
		Consumed:  consumed,
	}, nil
}

// renderThroughTemplates walks the template chain: named template first, then
// each parent layout, re-wrapping the rendered output as .Content.
func (p *Pipeline) renderThroughTemplates(node *content.Node, body string, consumed map[content.ID]graph.EdgeKind) (string, error) {
	data := Context{
		Site:    p.cfg.Site,
		BaseURL: p.cfg.BaseURL,
		Base:    p.cfg.Base,
		Page:    pageData(node),
		Content: body,
		Posts:   p.postList,
	}

	current := body
	name := node.TemplateName()
	for i := 0; i < templateChainLimit; i++ {
		tpl := p.set.TemplateBySlug(name)
		if tpl == nil {
			return "", nverr.TemplateNotFound(string(node.ID), name)
		}
		if terr := p.templateErrs[name]; terr != nil {
			return "", nverr.RenderFailed(string(node.ID), terr)
		}
		consumed[tpl.ID] = graph.EdgeUsesTemplate

		data.Content = current
		rendered, err := p.engine.Render(name, data)
		if err != nil {
			return "", nverr.RenderFailed(string(node.ID), err)
		}
		current = rendered

		if tpl.Meta.Template == "" {
			return current, nil
		}
		name = tpl.Meta.Template
	}
	return "", nverr.RenderFailed(string(node.ID), nverr.New(nverr.CategoryRender, nverr.SeverityError, "template layout chain too deep"))
}

// renderProducerOnly handles templates and shortcodes: no artifact, but the
// consumed set keeps their own producer edges current.
func (p *Pipeline) renderProducerOnly(node *content.Node) (*build.Result, error) {
	if node.Broken() {
		return nil, node.Err
	}
	consumed := make(map[content.ID]graph.EdgeKind)
	if node.Meta.Template != "" {
		if parent := p.set.TemplateBySlug(node.Meta.Template); parent != nil {
			consumed[parent.ID] = graph.EdgeUsesTemplate
		}
	}
	for _, name := range content.ShortcodeNames(node.Body) {
		if sc := p.set.ShortcodeBySlug(name); sc != nil {
			consumed[sc.ID] = graph.EdgeIncludesShortcode
		}
	}
	return &build.Result{Consumed: consumed}, nil
}

func (p *Pipeline) renderStylesheet(node *content.Node) (*build.Result, error) {
	// Partials compile only through their importers.
	if node.OutPath == "" || !p.cfg.Build.Sass {
		return &build.Result{}, nil
	}

	css, err := p.sass(string(node.ID), node.Body)
	if err != nil {
		return nil, nverr.RenderFailed(string(node.ID), err)
	}

	consumed := make(map[content.ID]graph.EdgeKind)
	for _, name := range assets.SassImports(node.Body) {
		for _, other := range p.set.ByKind(content.KindStylesheet) {
			if other.ID != node.ID && other.Slug == content.Slugify(name) {
				consumed[other.ID] = graph.EdgeReferencesAsset
			}
		}
	}

	if p.cfg.Build.Minify {
		css = p.minifier.CSS(css)
	}
	return &build.Result{
		Artifacts: []build.Artifact{{Path: node.OutPath, Data: css}},
		Consumed:  consumed,
	}, nil
}

func (p *Pipeline) renderAggregate(node *content.Node, prods build.Producers) (*build.Result, error) {
	metas := p.snapshotMetas(prods)

	var data []byte
	var err error
	switch node.ID {
	case graph.SearchIndexID:
		data, err = site.SearchIndex(metas)
	case graph.FeedID:
		data, err = site.Feed(metas, p.cfg)
	default:
		return &build.Result{}, nil
	}
	if err != nil {
		return nil, nverr.IndexFailed(string(node.ID), err)
	}
	return &build.Result{Artifacts: []build.Artifact{{Path: node.OutPath, Data: data}}}, nil
}

func (p *Pipeline) recordMeta(node *content.Node, body []byte) {
	meta := site.PageMeta{
		ID:      node.ID,
		URL:     node.URL,
		Title:   node.Meta.Title,
		Excerpt: Excerpt(body, excerptLength),
		Date:    node.Meta.Date,
		Tags:    node.Meta.Tags,
		IsPost:  node.IsPost(),
	}
	p.metaMu.Lock()
	p.pageMeta[node.ID] = meta
	p.metaMu.Unlock()
}

// snapshotMetas returns the metadata of every page still in the set that has
// rendered successfully at least once, minus any page whose render failed in
// the current cycle. Pages are immutable once rendered, so aggregates read
// this without further synchronization beyond the map lock.
func (p *Pipeline) snapshotMetas(prods build.Producers) []site.PageMeta {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()
	metas := make([]site.PageMeta, 0, len(p.pageMeta))
	for id, m := range p.pageMeta {
		if p.set.Get(id) == nil {
			continue
		}
		if prods != nil && prods.Failed(id) {
			continue
		}
		metas = append(metas, m)
	}
	return metas
}

// frontMatterMetas derives post-list metadata straight from front matter, so
// the fragment is available before any page has rendered.
func (p *Pipeline) frontMatterMetas() []site.PageMeta {
	var metas []site.PageMeta
	for _, page := range p.set.Pages() {
		if page.Broken() {
			continue
		}
		metas = append(metas, site.PageMeta{
			ID:     page.ID,
			URL:    page.URL,
			Title:  page.Meta.Title,
			Date:   page.Meta.Date,
			Tags:   page.Meta.Tags,
			IsPost: page.IsPost(),
		})
	}
	return metas
}

func pageData(node *content.Node) PageData {
	date := ""
	if !node.Meta.Date.IsZero() {
		date = node.Meta.Date.Format("2006-01-02")
	}
	return PageData{
		Slug:  node.Slug,
		Title: node.Meta.Title,
		Date:  date,
		Tags:  node.Meta.Tags,
		URL:   node.URL,
		Extra: node.Meta.Extra,
	}
}

func injectLiveReload(html []byte) []byte {
	if idx := bytes.LastIndex(html, []byte("</body>")); idx >= 0 {
		out := make([]byte, 0, len(html)+len(liveReloadScript))
		out = append(out, html[:idx]...)
		out = append(out, liveReloadScript...)
		out = append(out, html[idx:]...)
		return out
	}
	return append(html, liveReloadScript...)
}
