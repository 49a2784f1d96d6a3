package daemon

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/takumi-oki/chorus/internal/logging"
	"github.com/takumi-oki/chorus/internal/metrics"
)

const (
	sweepSchedule     = "schedule"
	sweepHealth       = "health"
	sweepCoordination = "coordination"
	sweepLearning     = "learning"
)

type sweep struct {
	name     string
	interval time.Duration
	fn       func(context.Context)
	inFlight atomic.Bool
}

// sweepSet holds the daemon's periodic sweeps. Each sweep is guarded so
// overlapping ticks cannot interleave: a tick that arrives while the
// previous run is still in flight is skipped, and concurrent manual triggers
// for the same sweep coalesce into one run.
type sweepSet struct {
	logger *logging.Logger
	sf     singleflight.Group
	order  []*sweep
	byName map[string]*sweep
}

func newSweepSet(logger *logging.Logger) *sweepSet {
	return &sweepSet{
		logger: logger,
		byName: make(map[string]*sweep),
	}
}

func (ss *sweepSet) register(name string, interval time.Duration, fn func(context.Context)) {
	sw := &sweep{name: name, interval: interval, fn: fn}
	ss.order = append(ss.order, sw)
	ss.byName[name] = sw
}

func (ss *sweepSet) all() []*sweep {
	return ss.order
}

// run executes one sweep iteration. A panic inside the sweep is recovered
// and logged; one bad iteration must not stop the ticker or other sweeps.
func (ss *sweepSet) run(ctx context.Context, sw *sweep) {
	if !sw.inFlight.CompareAndSwap(false, true) {
		ss.logger.Debugf("sweep=%s still in flight, skipping tick", sw.name)
		return
	}
	defer sw.inFlight.Store(false)

	start := time.Now()
	defer func() {
		metrics.SweepDurationSeconds.WithLabelValues(sw.name).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			ss.logger.Errorf("sweep=%s panic recovered: %v", sw.name, r)
		}
	}()

	sw.fn(ctx)
}

// trigger runs a sweep outside its ticker. Concurrent triggers for the same
// sweep share a single execution.
func (ss *sweepSet) trigger(name string) {
	sw, ok := ss.byName[name]
	if !ok {
		return
	}
	ss.sf.Do(name, func() (any, error) {
		ss.run(context.Background(), sw)
		return nil, nil
	})
}

func (d *Daemon) registerSweeps(ctx context.Context) {
	secs := func(n int) time.Duration { return time.Duration(n) * time.Second }

	d.sweeps.register(sweepSchedule, secs(d.cfg.Scheduler.ScheduleCheckIntervalSec), d.Scheduler.ScheduleSweep)
	d.sweeps.register(sweepHealth, secs(d.cfg.Scheduler.HealthCheckIntervalSec), d.Scheduler.HealthSweep)
	d.sweeps.register(sweepCoordination, secs(d.cfg.Scheduler.CoordinationIntervalSec), d.coordinationSweep)
	d.sweeps.register(sweepLearning, secs(d.cfg.Scheduler.LearningIntervalSec), d.Learner.Sweep)
}

// coordinationSweep drives collaboration monitoring, conflict resolution,
// and opportunistic auto-collaboration over running jobs.
func (d *Daemon) coordinationSweep(ctx context.Context) {
	d.Collabs.Monitor(ctx)
	d.Conflicts.CheckResolutions(ctx)

	if !d.cfg.Collaboration.AutoCreate {
		return
	}
	for _, job := range d.Scheduler.RunningJobs() {
		if _, err := d.Collabs.MaybeAutoCollaborate(ctx, job); err != nil {
			d.logger.Errorf("auto_collab job=%s: %v", job.ID, err)
		}
	}
}

func (d *Daemon) tickLoop(ctx context.Context, sw *sweep) error {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.sweeps.run(ctx, sw)
		}
	}
}
