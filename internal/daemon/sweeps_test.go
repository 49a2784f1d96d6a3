package daemon

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/takumi-oki/chorus/internal/logging"
)

func newTestSweepSet() *sweepSet {
	return newSweepSet(logging.New(io.Discard, logging.LevelError, "test"))
}

func TestSweepSkipsOverlappingRun(t *testing.T) {
	ss := newTestSweepSet()

	var runs atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	ss.register("slow", time.Second, func(context.Context) {
		runs.Add(1)
		close(started)
		<-release
	})
	sw := ss.byName["slow"]

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ss.run(context.Background(), sw)
	}()
	<-started

	// A tick arriving mid-run is dropped, not queued.
	ss.run(context.Background(), sw)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	wg.Wait()

	ss.run(context.Background(), sw)
	assert.Equal(t, int32(2), runs.Load())
}

func TestSweepRecoversPanic(t *testing.T) {
	ss := newTestSweepSet()

	var runs atomic.Int32
	ss.register("flaky", time.Second, func(context.Context) {
		if runs.Add(1) == 1 {
			panic("first run explodes")
		}
	})
	sw := ss.byName["flaky"]

	ss.run(context.Background(), sw)
	ss.run(context.Background(), sw)
	assert.Equal(t, int32(2), runs.Load(), "a panic must not poison later runs")
}

func TestConcurrentTriggersCoalesce(t *testing.T) {
	ss := newTestSweepSet()

	var runs atomic.Int32
	ss.register("once", time.Second, func(context.Context) {
		runs.Add(1)
		time.Sleep(50 * time.Millisecond)
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ss.trigger("once")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load(), "simultaneous triggers share one execution")
}

func TestTriggerUnknownSweepIsNoop(t *testing.T) {
	ss := newTestSweepSet()
	ss.trigger("nonexistent")
}

func TestRegisterPreservesOrder(t *testing.T) {
	ss := newTestSweepSet()
	ss.register("a", time.Second, func(context.Context) {})
	ss.register("b", time.Second, func(context.Context) {})
	ss.register("c", time.Second, func(context.Context) {})

	var names []string
	for _, sw := range ss.all() {
		names = append(names, sw.name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
