package serve

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/novos/internal/build"
	"git.home.luguber.info/inful/novos/internal/config"
	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/graph"
	"git.home.luguber.info/inful/novos/internal/render"
)

// State is the reconciler's lifecycle phase, exposed for the status endpoint.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateRebuilding State = "rebuilding"
)

// Reconciler owns the serve-mode build loop: it applies debounced change
// batches to the node set and dependency graph, reruns the affected
// subgraph, and notifies browsers.
//
// All graph and set mutation happens on the reconciler goroutine; render
// workers only touch their own cache entries.
type Reconciler struct {
	cfg      *config.Config
	loader   *content.Loader
	set      *content.Set
	graph    *graph.Graph
	pipeline *render.Pipeline
	runner   *build.Runner
	hub      *LiveReloadHub
	logger   *slog.Logger

	state      atomic.Value
	rebuilding atomic.Bool
	lastReport atomic.Pointer[build.Report]
}

func NewReconciler(cfg *config.Config, loader *content.Loader, set *content.Set, g *graph.Graph, pipeline *render.Pipeline, runner *build.Runner, hub *LiveReloadHub, logger *slog.Logger) *Reconciler {
	r := &Reconciler{
		cfg:      cfg,
		loader:   loader,
		set:      set,
		graph:    g,
		pipeline: pipeline,
		runner:   runner,
		hub:      hub,
		logger:   logger,
	}
	r.state.Store(StateIdle)
	return r
}

// State reports the current lifecycle phase.
func (r *Reconciler) State() State { return r.state.Load().(State) }

// Rebuilding reports whether a rebuild cycle is in progress. Wired into the
// debouncer so a batch arriving mid-rebuild queues exactly one follow-up.
func (r *Reconciler) Rebuilding() bool { return r.rebuilding.Load() }

// LastReport returns the most recent completed cycle's report, or nil.
func (r *Reconciler) LastReport() *build.Report { return r.lastReport.Load() }

// Run consumes debounced batches until ctx is cancelled or the channel
// closes.
func (r *Reconciler) Run(ctx context.Context, batches <-chan Batch) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			r.reconcile(ctx, batch)
		}
	}
}

// NotifyDebouncing flips the visible state when the first change of a burst
// lands. Called by the serve loop, not the debouncer, to keep the debouncer
// free of reconciler knowledge.
func (r *Reconciler) NotifyDebouncing() {
	if r.State() == StateIdle {
		r.state.Store(StateDebouncing)
	}
}

func (r *Reconciler) reconcile(ctx context.Context, batch Batch) {
	r.state.Store(StateRebuilding)
	r.rebuilding.Store(true)
	defer func() {
		r.rebuilding.Store(false)
		r.state.Store(StateIdle)
	}()

	start := time.Now()

	paths := make([]string, 0, len(batch.Changes))
	for _, c := range batch.Changes {
		paths = append(paths, c.RelPath)
	}
	r.logger.Info("reconciling",
		"changes", batch.ChangeCount,
		"paths", len(paths),
		"cause", batch.FlushedCause,
	)

	changed, removed, errs := r.loader.Rescan(r.set, paths)
	for _, err := range errs {
		r.logger.Warn("rescan", "error", err)
	}

	// Consumers of a removed node are captured before its edges go away;
	// after Relink drops the node, AffectedBy can no longer reach them.
	var orphaned []content.ID
	for _, id := range removed {
		orphaned = append(orphaned, r.graph.Consumers(id)...)
		r.graph.Relink(id, r.cfg)
	}
	for _, id := range changed {
		r.graph.Relink(id, r.cfg)
	}

	roots := make([]content.ID, 0, len(changed)+len(orphaned))
	roots = append(roots, changed...)
	roots = append(roots, orphaned...)
	// A created template or shortcode re-roots the consumers that failed
	// waiting for it; they carry no edge to follow.
	for _, id := range changed {
		if node := r.set.Get(id); node != nil {
			roots = append(roots, r.graph.Waiters(node)...)
		}
	}
	if len(roots) == 0 {
		r.logger.Debug("no content changes after rescan")
		return
	}
	// The synthetic home page bakes the post list, so it re-renders every
	// cycle; the writer skips the write when the bytes are identical.
	if r.set.Get(graph.IndexID) != nil {
		roots = append(roots, graph.IndexID)
	}

	if err := r.pipeline.Refresh(); err != nil {
		r.logger.Error("template refresh failed", "error", err)
		return
	}

	report := r.runner.Run(ctx, roots)
	r.lastReport.Store(report)
	report.LogSummary(r.logger)

	r.broadcast(batch, report)
	r.logger.Info("reconcile complete", "duration", time.Since(start))
}

// broadcast picks the reload message: stylesheet-only batches refresh CSS in
// place, anything else reloads the page.
func (r *Reconciler) broadcast(batch Batch, report *build.Report) {
	if report.Outcome() == build.OutcomeFatal {
		// Keep the stale page; the terminal carries the error.
		return
	}
	rendered, _, failed, _ := report.Counts()
	if rendered == 0 && failed == 0 {
		return
	}

	msg := MsgReload
	if r.stylesheetOnly(batch) {
		msg = MsgRefreshCSS
	}
	r.hub.Broadcast(msg)
}

func (r *Reconciler) stylesheetOnly(batch Batch) bool {
	for _, c := range batch.Changes {
		kind, ok := r.loader.Classify(c.RelPath)
		if !ok || kind != content.KindStylesheet {
			return false
		}
	}
	return len(batch.Changes) > 0
}
