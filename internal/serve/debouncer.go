package serve

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/novos/internal/nverr"
)

// DebouncerConfig controls change coalescing.
type DebouncerConfig struct {
	QuietWindow time.Duration
	MaxDelay    time.Duration

	// CheckRebuildRunning reports whether a rebuild cycle is in progress.
	// When true the debouncer holds the batch and schedules exactly one
	// follow-up emission after the running cycle finishes.
	CheckRebuildRunning func() bool

	// PollInterval controls how often the debouncer checks for rebuild
	// completion once it has deferred a batch.
	PollInterval time.Duration
}

// Batch is one coalesced set of changes, emitted at most once per quiet
// window expiry.
type Batch struct {
	Changes      []Change
	FirstChange  time.Time
	LastChange   time.Time
	ChangeCount  int
	FlushedCause string
}

// Debouncer coalesces bursts of filesystem changes into single rebuild
// batches:
//   - quiet window debounce
//   - max delay (a steady stream of writes cannot postpone indefinitely)
//   - while a rebuild runs, exactly one follow-up batch is queued
//
// It runs as a single goroutine.
type Debouncer struct {
	cfg DebouncerConfig
	out chan Batch

	mu              sync.Mutex
	changes         map[string]Change
	pending         bool
	pendingAfterRun bool
	pollingAfterRun bool
	firstChangeAt   time.Time
	lastChangeAt    time.Time
	changeCount     int
}

func NewDebouncer(cfg DebouncerConfig) (*Debouncer, error) {
	if cfg.QuietWindow <= 0 {
		return nil, nverr.New(nverr.CategoryConfig, nverr.SeverityFatal, "debounce quiet window must be > 0")
	}
	if cfg.MaxDelay <= 0 {
		return nil, nverr.New(nverr.CategoryConfig, nverr.SeverityFatal, "debounce max delay must be > 0")
	}
	if cfg.CheckRebuildRunning == nil {
		cfg.CheckRebuildRunning = func() bool { return false }
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	return &Debouncer{
		cfg:     cfg,
		out:     make(chan Batch, 1),
		changes: make(map[string]Change),
	}, nil
}

// Batches is the stream of coalesced change sets.
func (d *Debouncer) Batches() <-chan Batch { return d.out }

// Run consumes changes until ctx is cancelled or the input channel closes.
func (d *Debouncer) Run(ctx context.Context, in <-chan Change) {
	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	pollTimer := newStoppedTimer()

	var (
		quietC <-chan time.Time
		maxC   <-chan time.Time
		pollC  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-in:
			if !ok {
				return
			}
			d.onChange(change)

			resetTimer(quietTimer, d.cfg.QuietWindow)
			quietC = quietTimer.C

			if d.shouldStartMaxTimer() {
				resetTimer(maxTimer, d.cfg.MaxDelay)
				maxC = maxTimer.C
			}

		case <-quietC:
			if d.tryEmit("quiet") {
				quietC = nil
				maxC = nil
			}

		case <-maxC:
			if d.tryEmit("max_delay") {
				quietC = nil
				maxC = nil
			}

		case <-pollC:
			if d.tryEmitAfterRunning() {
				pollC = nil
				quietC = nil
				maxC = nil
				continue
			}
			resetTimer(pollTimer, d.cfg.PollInterval)
			pollC = pollTimer.C
		}

		if d.shouldPollAfterRun() && pollC == nil {
			resetTimer(pollTimer, d.cfg.PollInterval)
			pollC = pollTimer.C
		}
	}
}

func (d *Debouncer) onChange(c Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if !d.pending {
		d.pending = true
		d.firstChangeAt = now
		d.changeCount = 0
	}
	// Last op per path wins: a write followed by a remove reconciles as a
	// removal, and vice versa.
	d.changes[c.RelPath] = c
	d.lastChangeAt = now
	d.changeCount++
}

func (d *Debouncer) shouldStartMaxTimer() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending && d.changeCount == 1
}

func (d *Debouncer) shouldPollAfterRun() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingAfterRun && !d.pollingAfterRun
}

func (d *Debouncer) tryEmit(cause string) bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return true
	}
	if d.cfg.CheckRebuildRunning() {
		d.pendingAfterRun = true
		d.mu.Unlock()
		return false
	}

	batch := Batch{
		Changes:      make([]Change, 0, len(d.changes)),
		FirstChange:  d.firstChangeAt,
		LastChange:   d.lastChangeAt,
		ChangeCount:  d.changeCount,
		FlushedCause: cause,
	}
	for _, c := range d.changes {
		batch.Changes = append(batch.Changes, c)
	}
	d.changes = make(map[string]Change)
	d.pending = false
	d.pendingAfterRun = false
	d.pollingAfterRun = false
	d.mu.Unlock()

	d.out <- batch
	return true
}

func (d *Debouncer) tryEmitAfterRunning() bool {
	d.mu.Lock()
	if !d.pendingAfterRun {
		d.mu.Unlock()
		return true
	}
	d.pollingAfterRun = true
	d.mu.Unlock()

	if d.cfg.CheckRebuildRunning() {
		return false
	}
	return d.tryEmit("after_running")
}

// newStoppedTimer returns a timer that will not fire until reset.
func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	stopTimer(t)
	return t
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, after time.Duration) {
	stopTimer(t)
	t.Reset(after)
}
