package serve

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/novos/internal/build"
	"git.home.luguber.info/inful/novos/internal/config"
	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/graph"
	"git.home.luguber.info/inful/novos/internal/render"
)

type fixture struct {
	root       string
	cfg        *config.Config
	loader     *content.Loader
	set        *content.Set
	graph      *graph.Graph
	runner     *build.Runner
	reconciler *Reconciler
	hub        *LiveReloadHub
}

func write(t *testing.T, root, rel, data string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(data), 0o644))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureFiles(t, nil)
}

func newFixtureFiles(t *testing.T, extra map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	write(t, root, "includes/base.html", "<html><body>{{ .Content }}</body></html>")
	write(t, root, "includes/post.html", "---\ntemplate: base\n---\n<article>{{ .Content }}</article>")
	write(t, root, "includes/page.html", "---\ntemplate: base\n---\n<main>{{ .Content }}</main>")
	write(t, root, "posts/first.md", "---\ntitle: First\ndate: 2024-01-01\n---\nHello.")
	write(t, root, "pages/about.md", "---\ntitle: About\n---\nAbout text.")
	write(t, root, "sass/style.scss", "body { color: red; }")
	for rel, data := range extra {
		write(t, root, rel, data)
	}

	cfg := config.Default()
	cfg.Build.Workers = 2
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	loader := content.NewLoader(root, cfg)
	set, errs := loader.Scan()
	require.Empty(t, errs)

	g := graph.Link(set, cfg)
	pipeline := render.NewPipeline(cfg, set)
	require.NoError(t, pipeline.Refresh())

	runner := &build.Runner{
		Graph:    g,
		Cache:    build.NewCache(),
		Renderer: pipeline,
		Writer:   build.NewWriter(filepath.Join(root, cfg.OutputDir)),
		Workers:  cfg.Build.Workers,
		Logger:   logger,
	}

	report, err := runner.FullBuild(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, build.OutcomeSuccess, report.Outcome())

	hub := NewLiveReloadHub()
	t.Cleanup(hub.Shutdown)

	rec := NewReconciler(cfg, loader, set, g, pipeline, runner, hub, logger)
	rec.lastReport.Store(report)

	return &fixture{
		root:       root,
		cfg:        cfg,
		loader:     loader,
		set:        set,
		graph:      g,
		runner:     runner,
		reconciler: rec,
		hub:        hub,
	}
}

func (f *fixture) output(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, f.cfg.OutputDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestReconciler_PageEditRewritesOnlyThatPage(t *testing.T) {
	f := newFixture(t)
	before := f.output(t, "about.html")

	write(t, f.root, "posts/first.md", "---\ntitle: First\ndate: 2024-01-01\n---\nHello again.")
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "posts/first.md", Op: OpWrite}},
		ChangeCount: 1,
	})

	report := f.reconciler.LastReport()
	require.NotNil(t, report)
	require.Equal(t, build.OutcomeSuccess, report.Outcome())
	require.Contains(t, f.output(t, "posts/first.html"), "Hello again.")

	// The unrelated page was not rescheduled.
	require.Equal(t, build.Status(""), report.Status("pages/about.md"))
	require.Equal(t, before, f.output(t, "about.html"))
}

func TestReconciler_TemplateEditRebuildsDependents(t *testing.T) {
	f := newFixture(t)

	write(t, f.root, "includes/base.html", "<html><body class=\"v2\">{{ .Content }}</body></html>")
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "includes/base.html", Op: OpWrite}},
		ChangeCount: 1,
	})

	require.Contains(t, f.output(t, "posts/first.html"), `class="v2"`)
	require.Contains(t, f.output(t, "about.html"), `class="v2"`)
}

func TestReconciler_NewPostEntersAggregates(t *testing.T) {
	f := newFixture(t)

	write(t, f.root, "posts/second.md", "---\ntitle: Second\ndate: 2024-02-01\n---\nNewer.")
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "posts/second.md", Op: OpWrite}},
		ChangeCount: 1,
	})

	require.Contains(t, f.output(t, "posts/second.html"), "Newer.")
	require.Contains(t, f.output(t, "search.json"), "/posts/second.html")
	require.Contains(t, f.output(t, "rss.xml"), "/posts/second.html")
}

func TestReconciler_RemovedPostLeavesAggregates(t *testing.T) {
	f := newFixture(t)
	require.Contains(t, f.output(t, "search.json"), "/posts/first.html")

	require.NoError(t, os.Remove(filepath.Join(f.root, "posts/first.md")))
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "posts/first.md", Op: OpRemove}},
		ChangeCount: 1,
	})

	require.NotContains(t, f.output(t, "search.json"), "/posts/first.html")
	require.NotContains(t, f.output(t, "rss.xml"), "/posts/first.html")
}

func TestReconciler_BrokenEditReportsPartialFailure(t *testing.T) {
	f := newFixture(t)

	write(t, f.root, "posts/first.md", "---\ntitle: broken\nnever closed")
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "posts/first.md", Op: OpWrite}},
		ChangeCount: 1,
	})

	report := f.reconciler.LastReport()
	require.Equal(t, build.OutcomePartial, report.Outcome())
	require.Equal(t, build.StatusFailed, report.Status("posts/first.md"))

	// Fixing the file recovers on the next cycle.
	write(t, f.root, "posts/first.md", "---\ntitle: First\ndate: 2024-01-01\n---\nFixed.")
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "posts/first.md", Op: OpWrite}},
		ChangeCount: 1,
	})
	require.Equal(t, build.OutcomeSuccess, f.reconciler.LastReport().Outcome())
	require.Contains(t, f.output(t, "posts/first.html"), "Fixed.")
}

func TestReconciler_LateCreatedShortcodeRebuildsWaitingPage(t *testing.T) {
	f := newFixture(t)

	write(t, f.root, "pages/needy.md", "---\ntitle: Needy\n---\n<% .callout \"watch out\" %>")
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "pages/needy.md", Op: OpWrite}},
		ChangeCount: 1,
	})
	require.Equal(t, build.OutcomePartial, f.reconciler.LastReport().Outcome())
	require.Equal(t, build.StatusFailed, f.reconciler.LastReport().Status("pages/needy.md"))

	// Creating the missing shortcode rebuilds the page that failed waiting
	// for it, without touching the page file again.
	write(t, f.root, "includes/shortcodes/callout.html", `<aside class="callout"><%= .arg1 =%></aside>`)
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "includes/shortcodes/callout.html", Op: OpWrite}},
		ChangeCount: 1,
	})
	require.Equal(t, build.OutcomeSuccess, f.reconciler.LastReport().Outcome())
	require.Contains(t, f.output(t, "needy.html"), "watch out")
}

func TestReconciler_LateCreatedTemplateRebuildsWaitingPage(t *testing.T) {
	f := newFixture(t)

	write(t, f.root, "pages/fancy.md", "---\ntitle: Fancy\ntemplate: fancy\n---\nShiny.")
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "pages/fancy.md", Op: OpWrite}},
		ChangeCount: 1,
	})
	require.Equal(t, build.StatusFailed, f.reconciler.LastReport().Status("pages/fancy.md"))

	write(t, f.root, "includes/fancy.html", `<div class="fancy">{{ .Content }}</div>`)
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "includes/fancy.html", Op: OpWrite}},
		ChangeCount: 1,
	})
	require.Equal(t, build.OutcomeSuccess, f.reconciler.LastReport().Outcome())
	require.Contains(t, f.output(t, "fancy.html"), `class="fancy"`)
	require.Contains(t, f.output(t, "fancy.html"), "Shiny.")
}

func TestReconciler_ColdPartialBuildStillWritesAggregates(t *testing.T) {
	root := t.TempDir()
	write(t, root, "includes/base.html", "<html><body>{{ .Content }}</body></html>")
	write(t, root, "includes/post.html", "---\ntemplate: base\n---\n<article>{{ .Content }}</article>")
	write(t, root, "posts/first.md", "---\ntitle: First\ndate: 2024-01-01\n---\nHello.")
	write(t, root, "pages/bad.md", "---\ntitle: broken\nnever closed")

	cfg := config.Default()
	cfg.Build.Workers = 2
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	loader := content.NewLoader(root, cfg)
	set, errs := loader.Scan()
	require.NotEmpty(t, errs)

	g := graph.Link(set, cfg)
	pipeline := render.NewPipeline(cfg, set)
	require.NoError(t, pipeline.Refresh())

	runner := &build.Runner{
		Graph:    g,
		Cache:    build.NewCache(),
		Renderer: pipeline,
		Writer:   build.NewWriter(filepath.Join(root, cfg.OutputDir)),
		Workers:  cfg.Build.Workers,
		Logger:   logger,
	}

	report, err := runner.FullBuild(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, build.OutcomePartial, report.Outcome())

	// One broken page never suppresses the aggregates, even with no earlier
	// artifacts to fall back on.
	search, err := os.ReadFile(filepath.Join(root, cfg.OutputDir, "search.json"))
	require.NoError(t, err)
	require.Contains(t, string(search), "/posts/first.html")
	require.NotContains(t, string(search), "bad")

	_, err = os.Stat(filepath.Join(root, cfg.OutputDir, "rss.xml"))
	require.NoError(t, err)
}

func TestReconciler_SyntheticIndexFollowsAuthoredPage(t *testing.T) {
	f := newFixtureFiles(t, map[string]string{
		"includes/index.html": "<html><body><h1>{{ .Site.Title }}</h1>{{ .Posts }}</body></html>",
	})

	// With no authored index page, the index template renders the home page.
	home := f.output(t, "index.html")
	require.Contains(t, home, f.cfg.Site.Title)
	require.Contains(t, home, "/posts/first.html")

	write(t, f.root, "pages/index.md", "---\ntitle: Home\n---\nCustom home.")
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "pages/index.md", Op: OpWrite}},
		ChangeCount: 1,
	})
	require.Contains(t, f.output(t, "index.html"), "Custom home.")

	// Deleting the authored page brings the generated one back.
	require.NoError(t, os.Remove(filepath.Join(f.root, "pages/index.md")))
	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "pages/index.md", Op: OpRemove}},
		ChangeCount: 1,
	})
	require.Contains(t, f.output(t, "index.html"), "/posts/first.html")
}

func TestReconciler_StateRoundTrip(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, StateIdle, f.reconciler.State())

	f.reconciler.NotifyDebouncing()
	require.Equal(t, StateDebouncing, f.reconciler.State())

	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "pages/about.md", Op: OpWrite}},
		ChangeCount: 1,
	})
	require.Equal(t, StateIdle, f.reconciler.State())
	require.False(t, f.reconciler.Rebuilding())
}

func TestReconciler_IrrelevantPathsAreIgnored(t *testing.T) {
	f := newFixture(t)

	f.reconciler.reconcile(context.Background(), Batch{
		Changes:     []Change{{RelPath: "README.md", Op: OpWrite}},
		ChangeCount: 1,
	})
	// No build ran; the last report is still the initial full build.
	rendered, _, _, _ := f.reconciler.LastReport().Counts()
	require.Positive(t, rendered)
}

func TestWatcherIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	write(t, root, ".gitignore", "node_modules/\n*.log\n# comment\n\n!keep.log\n")
	cfg := config.Default()
	cfg.Serve.Ignore = []string{"drafts/**"}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	w, err := NewWatcher(root, cfg, logger)
	require.NoError(t, err)
	defer w.Close()

	require.True(t, w.ignored(".build/index.html"))
	require.True(t, w.ignored(".git/HEAD"))
	require.True(t, w.ignored("drafts/wip.md"))
	require.True(t, w.ignored("node_modules/pkg/index.js"))
	require.True(t, w.ignored("debug.log"))
	require.True(t, w.ignored("posts/.draft.md"))
	require.True(t, w.ignored("posts/first.md~"))
	require.False(t, w.ignored("posts/first.md"))
	require.False(t, w.ignored("sass/style.scss"))
}
