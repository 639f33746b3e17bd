package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gearfall-games/gearfall/internal/api"
	"github.com/gearfall-games/gearfall/internal/app/offline"
	"github.com/gearfall-games/gearfall/internal/app/reward"
	"github.com/gearfall-games/gearfall/internal/app/scheduler"
	"github.com/gearfall-games/gearfall/internal/app/syncer"
	"github.com/gearfall-games/gearfall/internal/infra/store"
)

// Daemon is the core Gearfall runtime. It wires together all services.
type Daemon struct {
	Config    Config
	Store     *store.Store
	Hub       *api.Hub
	Syncer    *syncer.Service
	Scheduler *scheduler.Scheduler
	Offline   *offline.Calculator
	Server    *api.Server
	cancel    context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	hub := api.NewHub()

	syncCfg := syncer.DefaultConfig()
	syncCfg.StaleAfter = parseDuration(cfg.Sync.StaleAfter, syncCfg.StaleAfter)
	syncCfg.DropAfter = parseDuration(cfg.Sync.DropAfter, syncCfg.DropAfter)
	sync := syncer.New(st, hub, syncCfg)
	hub.SetSyncer(sync)

	schedCfg := scheduler.DefaultConfig()
	if cfg.Scheduler.MaxQueueSize > 0 {
		schedCfg.MaxQueueSize = cfg.Scheduler.MaxQueueSize
	}
	if cfg.Scheduler.DefaultMaxRetries > 0 {
		schedCfg.DefaultMaxRetries = cfg.Scheduler.DefaultMaxRetries
	}
	sched := scheduler.New(st, reward.NewEngine(nil), sync, schedCfg)

	off := offline.NewCalculator(st)

	srv := api.NewServer(st, sched, sync, off, hub)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:    cfg,
		Store:     st,
		Hub:       hub,
		Syncer:    sync,
		Scheduler: sched,
		Offline:   off,
		Server:    srv,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// In-process drivers are optional: with tick_interval unset, ticks
	// come only through POST /admin/tick.
	if interval := parseDuration(d.Config.Scheduler.TickInterval, 0); interval > 0 {
		go d.tickLoop(ctx, interval)
	}
	if interval := parseDuration(d.Config.Sync.CleanupInterval, 0); interval > 0 {
		go d.cleanupLoop(ctx, interval)
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.Store.Close()
	}()

	fmt.Printf("Gearfall serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// tickLoop drives the scheduler at a fixed interval.
func (d *Daemon) tickLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := d.Scheduler.RunCycle(ctx)
			if report.Errors > 0 {
				log.Printf("[daemon] tick: %d queues, %d errors", report.Queues, report.Errors)
			}
		}
	}
}

// cleanupLoop sweeps stale connections at a fixed interval.
func (d *Daemon) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			marked, dropped := d.Syncer.CleanupStaleConnections()
			if marked > 0 || dropped > 0 {
				log.Printf("[daemon] cleanup: %d marked unhealthy, %d dropped", marked, dropped)
			}
		}
	}
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return dur
}
