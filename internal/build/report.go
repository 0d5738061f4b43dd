package build

import (
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/novos/internal/content"
)

// Status is the settled state of one node in a build cycle.
type Status string

const (
	StatusRendered Status = "rendered"
	// StatusUnchanged: rendered successfully but every artifact was a write
	// skip, so dependents see no new invalidation.
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
	// StatusSkippedDependency: not rendered because a producer failed.
	StatusSkippedDependency Status = "skipped-dependency-failure"
)

// Outcome is the overall result of a build cycle.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial-failure"
	OutcomeFatal   Outcome = "fatal"
)

// Report collects per-node outcomes and errors for one build cycle. Errors
// accumulate here instead of aborting the run: a single broken page never
// prevents the rest of the site from building.
type Report struct {
	BuildID string
	Start   time.Time
	End     time.Time

	mu             sync.Mutex
	statuses       map[content.ID]Status
	errors         []error
	stageDurations map[string]time.Duration
	// fatal is set for errors that abort before scheduling (cycles).
	fatal error
}

// NewReport creates an empty report for the given build ID.
func NewReport(buildID string) *Report {
	return &Report{
		BuildID:        buildID,
		Start:          time.Now(),
		statuses:       make(map[content.ID]Status),
		stageDurations: make(map[string]time.Duration),
	}
}

// SetStatus records a node's settled state.
func (r *Report) SetStatus(id content.ID, s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = s
}

// Status returns a node's settled state ("" if the node was not scheduled).
func (r *Report) Status(id content.ID) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[id]
}

// Succeeded reports whether a node rendered (or was already up to date) in
// this cycle.
func (r *Report) Succeeded(id content.ID) bool {
	s := r.Status(id)
	return s == StatusRendered || s == StatusUnchanged
}

// Failed reports whether a node's own render failed in this cycle. Nodes
// skipped behind a failed producer do not count: their last artifacts are
// still valid.
func (r *Report) Failed(id content.ID) bool {
	return r.Status(id) == StatusFailed
}

// AddError appends a collected error.
func (r *Report) AddError(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

// SetFatal records an error that aborted the build before scheduling.
func (r *Report) SetFatal(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = err
	r.errors = append(r.errors, err)
}

// Errors returns all collected errors.
func (r *Report) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

// RecordStage accumulates a named stage duration.
func (r *Report) RecordStage(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stageDurations[name] += d
}

// Counts returns the number of nodes per settled state.
func (r *Report) Counts() (rendered, unchanged, failed, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statuses {
		switch s {
		case StatusRendered:
			rendered++
		case StatusUnchanged:
			unchanged++
		case StatusFailed:
			failed++
		case StatusSkippedDependency:
			skipped++
		}
	}
	return
}

// Outcome derives the overall result.
func (r *Report) Outcome() Outcome {
	r.mu.Lock()
	fatal := r.fatal
	r.mu.Unlock()
	if fatal != nil {
		return OutcomeFatal
	}
	_, _, failed, _ := r.Counts()
	if failed > 0 {
		return OutcomePartial
	}
	return OutcomeSuccess
}

// ExitCode maps the report to the CLI exit status: zero only when no node
// failed.
func (r *Report) ExitCode() int {
	if r.Outcome() == OutcomeSuccess {
		return 0
	}
	return 1
}

// Duration returns the wall time of the cycle.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// LogSummary emits the per-node error summary and totals.
func (r *Report) LogSummary(logger *slog.Logger) {
	rendered, unchanged, failed, skipped := r.Counts()
	logger.Info("build finished",
		"build.id", r.BuildID,
		"outcome", string(r.Outcome()),
		"rendered", rendered,
		"unchanged", unchanged,
		"failed", failed,
		"skipped", skipped,
		"duration", r.Duration().Round(time.Millisecond))
	for _, err := range r.Errors() {
		logger.Error("build issue", "build.id", r.BuildID, "error", err)
	}
}
