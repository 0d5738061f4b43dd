package serve

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncer_BurstCoalescesToSingleBatch(t *testing.T) {
	var running atomic.Bool
	d, err := NewDebouncer(DebouncerConfig{
		QuietWindow:         25 * time.Millisecond,
		MaxDelay:            200 * time.Millisecond,
		CheckRebuildRunning: running.Load,
		PollInterval:        10 * time.Millisecond,
	})
	require.NoError(t, err)

	in := make(chan Change, 16)
	go d.Run(context.Background(), in)

	for i := 0; i < 5; i++ {
		in <- Change{RelPath: "posts/a.md", Op: OpWrite}
		if i%2 == 0 {
			in <- Change{RelPath: "posts/b.md", Op: OpWrite}
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case batch := <-d.Batches():
		require.Equal(t, "quiet", batch.FlushedCause)
		require.Len(t, batch.Changes, 2)
		require.GreaterOrEqual(t, batch.ChangeCount, 5)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for batch")
	}

	select {
	case <-d.Batches():
		t.Fatal("expected only one batch for burst")
	case <-time.After(75 * time.Millisecond):
	}
}

func TestDebouncer_MaxDelayForcesBatch(t *testing.T) {
	d, err := NewDebouncer(DebouncerConfig{
		QuietWindow: 40 * time.Millisecond,
		MaxDelay:    120 * time.Millisecond,
	})
	require.NoError(t, err)

	in := make(chan Change)
	go d.Run(context.Background(), in)

	// A steady stream of writes keeps resetting the quiet window; the max
	// delay still fires.
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.After(400 * time.Millisecond)
		for {
			select {
			case in <- Change{RelPath: "pages/about.md", Op: OpWrite}:
				time.Sleep(15 * time.Millisecond)
			case <-deadline:
				return
			}
		}
	}()

	select {
	case batch := <-d.Batches():
		require.Equal(t, "max_delay", batch.FlushedCause)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for max delay batch")
	}
	<-done
}

func TestDebouncer_QueuesOneFollowUpWhileRebuilding(t *testing.T) {
	var running atomic.Bool
	running.Store(true)

	d, err := NewDebouncer(DebouncerConfig{
		QuietWindow:         15 * time.Millisecond,
		MaxDelay:            100 * time.Millisecond,
		CheckRebuildRunning: running.Load,
		PollInterval:        10 * time.Millisecond,
	})
	require.NoError(t, err)

	in := make(chan Change, 16)
	go d.Run(context.Background(), in)

	in <- Change{RelPath: "posts/a.md", Op: OpWrite}
	in <- Change{RelPath: "posts/b.md", Op: OpRemove}

	// Nothing may be emitted while the rebuild runs.
	select {
	case <-d.Batches():
		t.Fatal("batch emitted while rebuild running")
	case <-time.After(150 * time.Millisecond):
	}

	running.Store(false)

	select {
	case batch := <-d.Batches():
		require.Equal(t, "after_running", batch.FlushedCause)
		require.Len(t, batch.Changes, 2)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for follow-up batch")
	}
}

func TestDebouncer_LastOpPerPathWins(t *testing.T) {
	d, err := NewDebouncer(DebouncerConfig{
		QuietWindow: 20 * time.Millisecond,
		MaxDelay:    200 * time.Millisecond,
	})
	require.NoError(t, err)

	in := make(chan Change, 4)
	go d.Run(context.Background(), in)

	in <- Change{RelPath: "posts/a.md", Op: OpWrite}
	in <- Change{RelPath: "posts/a.md", Op: OpRemove}

	select {
	case batch := <-d.Batches():
		require.Len(t, batch.Changes, 1)
		require.Equal(t, OpRemove, batch.Changes[0].Op)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for batch")
	}
}

func TestDebouncer_RejectsInvalidConfig(t *testing.T) {
	_, err := NewDebouncer(DebouncerConfig{QuietWindow: 0, MaxDelay: time.Second})
	require.Error(t, err)

	_, err = NewDebouncer(DebouncerConfig{QuietWindow: time.Second, MaxDelay: 0})
	require.Error(t, err)
}
