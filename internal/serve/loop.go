package serve

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/novos/internal/build"
	"git.home.luguber.info/inful/novos/internal/config"
	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/graph"
	"git.home.luguber.info/inful/novos/internal/metrics"
	"git.home.luguber.info/inful/novos/internal/render"
)

// Run is the serve-mode entry point: initial full build, then the
// watch/debounce/reconcile loop alongside the HTTP server, until ctx is
// cancelled.
func Run(ctx context.Context, root string, cfg *config.Config, logger *slog.Logger) error {
	loader := content.NewLoader(root, cfg)
	set, errs := loader.Scan()
	for _, err := range errs {
		logger.Warn("scan", "error", err)
	}

	g := graph.Link(set, cfg)
	pipeline := render.NewPipeline(cfg, set, render.WithDevMode())
	if err := pipeline.Refresh(); err != nil {
		return err
	}

	outputDir := filepath.Join(root, cfg.OutputDir)
	recorder := metrics.NewPrometheusRecorder()
	runner := &build.Runner{
		Graph:    g,
		Cache:    build.NewCache(),
		Renderer: pipeline,
		Writer:   build.NewWriter(outputDir),
		Workers:  cfg.Build.Workers,
		Logger:   logger,
		Metrics:  recorder,
	}

	report, err := runner.FullBuild(ctx, cfg.Build.CleanOutput)
	if err != nil {
		return err
	}
	report.LogSummary(logger)

	hub := NewLiveReloadHub()
	reconciler := NewReconciler(cfg, loader, set, g, pipeline, runner, hub, logger)
	reconciler.lastReport.Store(report)

	debouncer, err := NewDebouncer(DebouncerConfig{
		QuietWindow:         cfg.DebounceWindow(),
		MaxDelay:            cfg.DebounceMaxDelay(),
		CheckRebuildRunning: reconciler.Rebuilding,
	})
	if err != nil {
		return err
	}

	watcher, err := NewWatcher(root, cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		watcher.Run()
	}()

	changes := make(chan Change)
	go func() {
		defer wg.Done()
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-watcher.Changes():
				if !ok {
					return
				}
				reconciler.NotifyDebouncing()
				select {
				case changes <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		debouncer.Run(ctx, changes)
	}()

	go func() {
		defer wg.Done()
		reconciler.Run(ctx, debouncer.Batches())
	}()

	server := NewServer(cfg.Serve.Port, outputDir, hub, reconciler, recorder, logger)
	serveErr := server.Run(ctx)

	cancel()
	_ = watcher.Close()
	wg.Wait()
	return serveErr
}
