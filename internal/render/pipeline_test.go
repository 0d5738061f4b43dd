package render

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/novos/internal/config"
	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/graph"
)

func pipelineFixture(t *testing.T, opts ...Option) (*Pipeline, *content.Set, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Build.SyntaxHighlighting = false
	cfg.Build.Minify = false

	set := content.NewSet()
	set.Put(&content.Node{
		ID:   "includes/base.html",
		Kind: content.KindTemplate,
		Slug: "base",
		Body: []byte("<html><body>{{ .Content }}</body></html>"),
	})
	set.Put(&content.Node{
		ID:   "includes/post.html",
		Kind: content.KindTemplate,
		Slug: "post",
		Meta: content.FrontMatter{Template: "base"},
		Body: []byte(`<article data-title="{{ .Page.Title }}">{{ .Content }}</article>`),
	})
	set.Put(&content.Node{
		ID:   "includes/shortcodes/note.html",
		Kind: content.KindShortcode,
		Slug: "note",
		Body: []byte(`<aside><%= .arg1 =%></aside>`),
	})
	set.Put(&content.Node{
		ID:      "posts/hello.md",
		Kind:    content.KindPage,
		Section: "posts",
		Slug:    "hello",
		OutPath: "posts/hello.html",
		URL:     "/posts/hello.html",
		Meta: content.FrontMatter{
			Title: "Hello",
			Date:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Tags:  []string{"intro"},
		},
		Body: []byte("Some **bold** text. <% .note \"remember\" %>\n\n![pic](/img/pic.png)"),
	})
	set.Put(&content.Node{
		ID:      "static/img/pic.png",
		Kind:    content.KindStatic,
		OutPath: "img/pic.png",
		URL:     "/img/pic.png",
		Body:    []byte{1, 2, 3},
	})
	set.Put(&content.Node{
		ID:      "sass/style.scss",
		Kind:    content.KindStylesheet,
		Slug:    "style",
		OutPath: "css/style.css",
		URL:     "/css/style.css",
		Body:    []byte("@import 'colors'\nbody { color: red; }"),
	})
	set.Put(&content.Node{
		ID:   "sass/_colors.scss",
		Kind: content.KindStylesheet,
		Slug: "colors",
		Body: []byte("$fg: red;"),
	})

	p := NewPipeline(cfg, set, opts...)
	require.NoError(t, p.Refresh())
	return p, set, cfg
}

func TestPipeline_RenderPageThroughTemplateChain(t *testing.T) {
	p, set, _ := pipelineFixture(t)

	res, err := p.RenderNode(context.Background(), set.Get("posts/hello.md"), nil)
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	require.Equal(t, "posts/hello.html", res.Artifacts[0].Path)

	html := string(res.Artifacts[0].Data)
	require.Contains(t, html, "<strong>bold</strong>")
	require.Contains(t, html, "<aside>remember</aside>")
	require.Contains(t, html, `data-title="Hello"`)
	// Parent layout wraps the named template's output.
	require.Contains(t, html, "<html><body><article")

	// The consumed set names exactly what the render touched.
	require.Equal(t, graph.EdgeUsesTemplate, res.Consumed["includes/post.html"])
	require.Equal(t, graph.EdgeUsesTemplate, res.Consumed["includes/base.html"])
	require.Equal(t, graph.EdgeIncludesShortcode, res.Consumed["includes/shortcodes/note.html"])
	require.Equal(t, graph.EdgeReferencesAsset, res.Consumed["static/img/pic.png"])
}

func TestPipeline_DevModeInjectsLiveReload(t *testing.T) {
	p, set, _ := pipelineFixture(t, WithDevMode())

	res, err := p.RenderNode(context.Background(), set.Get("posts/hello.md"), nil)
	require.NoError(t, err)

	html := string(res.Artifacts[0].Data)
	require.Contains(t, html, "novos-live-reload")
	// Injected before the closing body tag.
	require.Less(t, strings.Index(html, "novos-live-reload"), strings.Index(html, "</body>"))
}

func TestPipeline_MissingTemplateFails(t *testing.T) {
	p, set, _ := pipelineFixture(t)
	set.Put(&content.Node{
		ID:      "pages/weird.md",
		Kind:    content.KindPage,
		Section: "pages",
		Slug:    "weird",
		OutPath: "weird.html",
		Meta:    content.FrontMatter{Template: "nope"},
		Body:    []byte("x"),
	})

	_, err := p.RenderNode(context.Background(), set.Get("pages/weird.md"), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "template not found")
}

func TestPipeline_StylesheetCompileAndPartials(t *testing.T) {
	p, set, _ := pipelineFixture(t)

	res, err := p.RenderNode(context.Background(), set.Get("sass/style.scss"), nil)
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	require.Equal(t, "css/style.css", res.Artifacts[0].Path)
	// Importing a partial records the dependency for invalidation.
	require.Equal(t, graph.EdgeReferencesAsset, res.Consumed["sass/_colors.scss"])

	// Partials render to nothing on their own.
	res, err = p.RenderNode(context.Background(), set.Get("sass/_colors.scss"), nil)
	require.NoError(t, err)
	require.Empty(t, res.Artifacts)
}

func TestPipeline_StaticCopies(t *testing.T) {
	p, set, _ := pipelineFixture(t)

	res, err := p.RenderNode(context.Background(), set.Get("static/img/pic.png"), nil)
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	require.Equal(t, []byte{1, 2, 3}, res.Artifacts[0].Data)
}

func TestPipeline_AggregatesFromRenderedMeta(t *testing.T) {
	p, set, _ := pipelineFixture(t)
	set.Put(&content.Node{ID: graph.SearchIndexID, Kind: content.KindAggregate, OutPath: string(graph.SearchIndexID)})
	set.Put(&content.Node{ID: graph.FeedID, Kind: content.KindAggregate, OutPath: string(graph.FeedID)})

	// Before any page renders, aggregates are empty but valid.
	res, err := p.RenderNode(context.Background(), set.Get(graph.SearchIndexID), nil)
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(res.Artifacts[0].Data, &entries))
	require.Empty(t, entries)

	_, err = p.RenderNode(context.Background(), set.Get("posts/hello.md"), nil)
	require.NoError(t, err)

	res, err = p.RenderNode(context.Background(), set.Get(graph.SearchIndexID), nil)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(res.Artifacts[0].Data, &entries))
	require.Len(t, entries, 1)
	require.Equal(t, "/posts/hello.html", entries[0]["url"])
	require.Equal(t, "Hello", entries[0]["title"])
	require.Contains(t, entries[0]["excerpt"], "bold text")

	res, err = p.RenderNode(context.Background(), set.Get(graph.FeedID), nil)
	require.NoError(t, err)
	require.Contains(t, string(res.Artifacts[0].Data), "/posts/hello.html")
}

// failedPages stands in for the build report when rendering aggregates.
type failedPages map[content.ID]bool

func (f failedPages) Failed(id content.ID) bool { return f[id] }

func TestPipeline_AggregatesDropPagesFailedThisCycle(t *testing.T) {
	p, set, _ := pipelineFixture(t)
	set.Put(&content.Node{ID: graph.SearchIndexID, Kind: content.KindAggregate, OutPath: string(graph.SearchIndexID)})

	_, err := p.RenderNode(context.Background(), set.Get("posts/hello.md"), nil)
	require.NoError(t, err)

	// A page that failed in this cycle is excluded even though it rendered
	// before.
	res, err := p.RenderNode(context.Background(), set.Get(graph.SearchIndexID), failedPages{"posts/hello.md": true})
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(res.Artifacts[0].Data, &entries))
	require.Empty(t, entries)

	// It returns on the next cycle without re-rendering.
	res, err = p.RenderNode(context.Background(), set.Get(graph.SearchIndexID), failedPages{})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(res.Artifacts[0].Data, &entries))
	require.Len(t, entries, 1)
}

func TestPipeline_RefreshPrunesRemovedPagesFromAggregates(t *testing.T) {
	p, set, _ := pipelineFixture(t)
	set.Put(&content.Node{ID: graph.SearchIndexID, Kind: content.KindAggregate, OutPath: string(graph.SearchIndexID)})

	_, err := p.RenderNode(context.Background(), set.Get("posts/hello.md"), nil)
	require.NoError(t, err)

	set.Remove("posts/hello.md")
	require.NoError(t, p.Refresh())

	res, err := p.RenderNode(context.Background(), set.Get(graph.SearchIndexID), nil)
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(res.Artifacts[0].Data, &entries))
	require.Empty(t, entries)
}

func TestPipeline_PostListAvailableToTemplates(t *testing.T) {
	p, set, _ := pipelineFixture(t)
	set.Put(&content.Node{
		ID:   "includes/index.html",
		Kind: content.KindTemplate,
		Slug: "index",
		Body: []byte("<nav>{{ .Posts }}</nav>"),
	})
	set.Put(&content.Node{
		ID:      "pages/home.md",
		Kind:    content.KindPage,
		Section: "pages",
		Slug:    "home",
		OutPath: "home.html",
		Meta:    content.FrontMatter{Title: "Home", Template: "index"},
		Body:    []byte("welcome"),
	})
	require.NoError(t, p.Refresh())

	res, err := p.RenderNode(context.Background(), set.Get("pages/home.md"), nil)
	require.NoError(t, err)

	html := string(res.Artifacts[0].Data)
	require.Contains(t, html, "post-list")
	require.Contains(t, html, "/posts/hello.html")
}
