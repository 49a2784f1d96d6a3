// Package daemon hosts the chorus engine as a long-running process: it wires
// the scheduler, collaboration manager, conflict resolver, and learner
// together and drives them with independently-ticking periodic sweeps.
package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/takumi-oki/chorus/internal/clock"
	"github.com/takumi-oki/chorus/internal/collab"
	"github.com/takumi-oki/chorus/internal/comms"
	"github.com/takumi-oki/chorus/internal/conflict"
	"github.com/takumi-oki/chorus/internal/events"
	"github.com/takumi-oki/chorus/internal/knowledge"
	"github.com/takumi-oki/chorus/internal/learning"
	"github.com/takumi-oki/chorus/internal/lock"
	"github.com/takumi-oki/chorus/internal/logging"
	"github.com/takumi-oki/chorus/internal/model"
	"github.com/takumi-oki/chorus/internal/registry"
	"github.com/takumi-oki/chorus/internal/scheduler"
)

// Daemon is the chorus daemon process.
type Daemon struct {
	dataDir    string
	configPath string
	cfg        model.Config

	logger  *logging.Logger
	logFile io.Closer

	fileLock *lock.FileLock
	bus      *events.Bus

	Knowledge *knowledge.Store
	Comms     *comms.Bus
	Conflicts *conflict.Resolver
	Collabs   *collab.Manager
	Scheduler *scheduler.Scheduler
	Learner   *learning.Learner

	sweeps     *sweepSet
	metricsSrv *http.Server

	cancel   context.CancelFunc
	shutdown sync.Once
}

// New assembles a daemon around the given task registry. All engine state is
// in-memory; dataDir holds only the log file and the daemon lock.
func New(dataDir, configPath string, cfg model.Config, reg registry.TaskRegistry) (*Daemon, error) {
	logPath := filepath.Join(dataDir, "logs", "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "locks"), 0755); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	d := newDaemon(dataDir, configPath, cfg, reg, logFile, logFile)
	return d, nil
}

// newDaemon is the internal constructor, split out for tests that log to a
// buffer instead of a file.
func newDaemon(dataDir, configPath string, cfg model.Config, reg registry.TaskRegistry, w io.Writer, closer io.Closer) *Daemon {
	logger := logging.New(w, logging.ParseLevel(cfg.Logging.Level), "daemon")
	clk := clock.Real{}

	bus := events.NewBus(256)
	notifier := events.NewBusNotifier(bus)
	events.AuditLogger(bus, logging.StdLogger(w))

	store := knowledge.NewStore(clk)
	commsBus := comms.NewBus(store, notifier, clk, logger.WithComponent("comms"))
	resolver := conflict.NewResolver(commsBus, reg, notifier, clk, logger.WithComponent("conflict"))
	collabs := collab.NewManager(cfg, commsBus, reg, store, notifier, clk, logger.WithComponent("collab"))
	sched := scheduler.New(cfg, reg, notifier, clk, clk, logger.WithComponent("scheduler"))
	learner := learning.New(reg, store, notifier, clk, logger.WithComponent("learning"))

	return &Daemon{
		dataDir:    dataDir,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		logFile:    closer,
		fileLock:   lock.NewFileLock(filepath.Join(dataDir, "locks", "daemon.lock")),
		bus:        bus,
		Knowledge:  store,
		Comms:      commsBus,
		Conflicts:  resolver,
		Collabs:    collabs,
		Scheduler:  sched,
		Learner:    learner,
		sweeps:     newSweepSet(logger),
	}
}

// Run starts the sweeps and blocks until ctx is cancelled and shutdown has
// drained.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.logger.Infof("daemon starting pid=%d", os.Getpid())

	ctx, d.cancel = context.WithCancel(ctx)
	defer d.cancel()

	d.registerSweeps(ctx)

	if d.cfg.Metrics.Enabled {
		d.startMetricsServer()
	}

	watcherDone, err := d.watchConfig(ctx)
	if err != nil {
		// Hot reload is a convenience; run without it.
		d.logger.Warnf("config watch disabled: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, sw := range d.sweeps.all() {
		sw := sw
		g.Go(func() error {
			return d.tickLoop(ctx, sw)
		})
	}

	// One pass up front so a freshly started daemon does not wait a full
	// interval before noticing due jobs.
	d.sweeps.trigger(sweepSchedule)
	d.logger.Infof("daemon ready sweeps=%d", len(d.sweeps.all()))

	<-ctx.Done()
	if watcherDone != nil {
		<-watcherDone
	}
	g.Wait()
	d.Shutdown()
	return nil
}

// Shutdown drains supervision loops with a timeout and releases resources.
// Idempotent.
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.logger.Infof("shutdown started")
		if d.cancel != nil {
			d.cancel()
		}

		if d.metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			d.metricsSrv.Shutdown(shutdownCtx)
			cancel()
		}

		timeout := time.Duration(d.cfg.Daemon.ShutdownTimeoutSec) * time.Second
		done := make(chan struct{})
		go func() {
			d.Scheduler.Wait()
			close(done)
		}()
		select {
		case <-done:
			d.logger.Infof("supervision loops drained")
		case <-time.After(timeout):
			d.logger.Warnf("shutdown timeout after %s, some supervision loops may be incomplete", timeout)
		}

		d.bus.Close()
		d.fileLock.Unlock()
		if d.logFile != nil {
			d.logFile.Close()
		}
		d.logger.Infof("daemon stopped")
	})
}

func (d *Daemon) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	d.metricsSrv = &http.Server{Addr: d.cfg.Metrics.ListenAddr, Handler: mux}
	go func() {
		d.logger.Infof("metrics listening on %s", d.cfg.Metrics.ListenAddr)
		if err := d.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Errorf("metrics server: %v", err)
		}
	}()
}
