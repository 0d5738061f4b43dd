package build

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/graph"
	"git.home.luguber.info/inful/novos/internal/metrics"
	"git.home.luguber.info/inful/novos/internal/nverr"
)

// Producers lets a renderer ask about the settled state of nodes it
// aggregates over: a page that failed this cycle drops out of the search
// index and feed until it renders again. Pages skipped behind a failed
// producer keep their last rendered entry, since their artifacts are intact.
type Producers interface {
	Failed(id content.ID) bool
}

// Result is a successful render: the artifacts to write plus the exact
// producer set consumed, which becomes the node's edges for the next
// invalidation cycle.
type Result struct {
	Artifacts []Artifact
	Consumed  map[content.ID]graph.EdgeKind
}

// NodeRenderer turns one content node into its artifacts. Implementations
// must be safe for concurrent calls on distinct nodes.
type NodeRenderer interface {
	RenderNode(ctx context.Context, node *content.Node, prods Producers) (*Result, error)
}

// Runner executes build cycles: cycle check, topological batching, parallel
// rendering across a bounded worker pool, cache and graph bookkeeping.
type Runner struct {
	Graph    *graph.Graph
	Cache    *Cache
	Renderer NodeRenderer
	Writer   *Writer
	Workers  int
	Logger   *slog.Logger
	Metrics  metrics.Recorder

	// inflight enforces at-most-one concurrent render per node, even when two
	// overlapping root-set computations race during a burst of file events.
	inflight sync.Map
}

// Run executes one build cycle over roots. A nil root set means a full build
// of every node. The returned report is always non-nil.
func (r *Runner) Run(ctx context.Context, roots []content.ID) *Report {
	report := NewReport(uuid.NewString())
	logger := r.logger().With("build.id", report.BuildID)
	rec := r.metrics()

	defer func() {
		report.End = time.Now()
		rec.ObserveDuration("novos_build_duration_seconds", report.Duration())
		rec.IncCounter("novos_builds_total")
	}()

	// Cycles are a fatal build error, reported before any rendering.
	if err := r.Graph.DetectCycle(); err != nil {
		report.SetFatal(err)
		rec.IncCounter("novos_build_cycle_errors_total")
		return report
	}

	rootSet := r.resolveRoots(roots)
	batches, err := Schedule(r.Graph, rootSet)
	if err != nil {
		report.SetFatal(nverr.Wrap(err, nverr.CategoryCycle, nverr.SeverityFatal, "scheduling failed"))
		return report
	}

	logger.Debug("scheduled build", "nodes", len(rootSet), "batches", len(batches))

	for _, batch := range batches {
		select {
		case <-ctx.Done():
			report.AddError(ctx.Err())
			return report
		default:
		}
		r.runBatch(ctx, batch, report)
	}

	// Graph edges self-correct from the consumed sets recorded by the
	// renderer. This mutation happens here, single-threaded, after every
	// batch has settled.
	for id, consumed := range r.Cache.ConsumedSets() {
		if report.Succeeded(id) {
			r.Graph.SetConsumed(id, consumed)
		}
	}

	rendered, unchanged, failed, skipped := report.Counts()
	rec.AddCounter("novos_nodes_rendered_total", float64(rendered))
	rec.AddCounter("novos_nodes_failed_total", float64(failed))
	rec.SetGauge("novos_last_build_nodes", float64(rendered+unchanged+failed+skipped))
	return report
}

// resolveRoots expands the changed set to everything it invalidates, or the
// whole graph for a full build.
func (r *Runner) resolveRoots(roots []content.ID) map[content.ID]struct{} {
	if roots == nil {
		all := make(map[content.ID]struct{})
		for _, id := range r.Graph.Nodes().IDs() {
			all[id] = struct{}{}
		}
		return all
	}
	return r.Graph.AffectedBy(roots)
}

func (r *Runner) runBatch(ctx context.Context, batch []content.ID, report *Report) {
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(batch) {
		workers = len(batch)
	}

	jobs := make(chan content.ID)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for id := range jobs {
				r.renderOne(ctx, id, report)
			}
		}()
	}
	for _, id := range batch {
		jobs <- id
	}
	close(jobs)
	wg.Wait()
}

func (r *Runner) renderOne(ctx context.Context, id content.ID, report *Report) {
	node := r.Graph.Nodes().Get(id)
	if node == nil {
		return
	}

	// Dependents of a failed node are reported, never silently omitted.
	if failedProducer, ok := r.failedProducer(id, report); ok {
		report.SetStatus(id, StatusSkippedDependency)
		report.AddError(nverr.SkippedDependency(string(id), string(failedProducer)))
		return
	}

	if node.Broken() {
		report.SetStatus(id, StatusFailed)
		report.AddError(node.Err)
		r.Cache.Invalidate(id)
		return
	}

	// At-most-one concurrent render per node: checked-and-set atomically
	// before dispatch. A node already in flight from an overlapping cycle is
	// left to that cycle.
	if _, loaded := r.inflight.LoadOrStore(id, struct{}{}); loaded {
		return
	}
	defer r.inflight.Delete(id)

	start := time.Now()
	result, err := r.Renderer.RenderNode(ctx, node, report)
	r.metrics().ObserveDuration("novos_render_duration_seconds", time.Since(start))
	if err != nil {
		report.SetStatus(id, StatusFailed)
		report.AddError(err)
		r.Cache.Invalidate(id)
		return
	}

	wrote := false
	var paths []string
	for _, artifact := range result.Artifacts {
		w, werr := r.Writer.Write(artifact)
		if werr != nil {
			report.SetStatus(id, StatusFailed)
			report.AddError(werr)
			r.Cache.Invalidate(id)
			return
		}
		wrote = wrote || w
		if artifact.Path != "" {
			paths = append(paths, artifact.Path)
		}
	}

	r.Cache.Update(id, Entry{Hash: node.Hash, Artifacts: paths, Consumed: result.Consumed})

	if wrote {
		report.SetStatus(id, StatusRendered)
	} else {
		report.SetStatus(id, StatusUnchanged)
	}
}

// failedProducer reports whether any producer of id settled as failed or
// skipped in this cycle. Aggregate membership edges are exempt: the search
// index and feed render from the pages that did succeed, so one broken page
// never suppresses them.
func (r *Runner) failedProducer(id content.ID, report *Report) (content.ID, bool) {
	edges := r.Graph.ProducerEdges(id)
	for _, producer := range r.Graph.Producers(id) {
		if edges[producer] == graph.EdgeAggregatesPage {
			continue
		}
		switch report.Status(producer) {
		case StatusFailed, StatusSkippedDependency:
			return producer, true
		}
	}
	return "", false
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) metrics() metrics.Recorder {
	if r.Metrics != nil {
		return r.Metrics
	}
	return metrics.Noop{}
}

// FullBuild is a convenience wrapper for one-shot builds: clean the output
// tree if configured, then run every node.
func (r *Runner) FullBuild(ctx context.Context, clean bool) (*Report, error) {
	if clean {
		if err := r.Writer.Clean(); err != nil {
			return nil, fmt.Errorf("clean output: %w", err)
		}
	}
	return r.Run(ctx, nil), nil
}
