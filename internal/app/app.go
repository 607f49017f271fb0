// Package app wires the scheduler daemon: config loading and hot reload,
// logging, the provider, and the timer that fires ticks.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"fleetsched/internal/config"
	"fleetsched/internal/eventbus"
	"fleetsched/internal/fleet"
	"fleetsched/internal/provider/awsec2"
	"fleetsched/internal/report"
	"fleetsched/internal/tick"
	logx "fleetsched/pkg/logx"
)

// App is the long-running daemon. One App owns one config file, one provider
// and one timer; ticks themselves stay stateless.
type App struct {
	mgr    *config.Manager
	logSvc *logx.Service
	log    logx.Logger
	bus    eventbus.Bus

	mu       sync.Mutex
	settings config.Settings
	provider fleet.Provider
	runner   *tick.Runner
	c        *cron.Cron
	entry    cron.EntryID

	// ticking guards against overlap: if a tick outlives the interval the
	// next fire is skipped, not queued.
	ticking atomic.Bool

	stopWatch context.CancelFunc
	updates   chan *config.Config
	wg        sync.WaitGroup
}

// New loads and validates the config and builds the daemon. The provider is
// created in Start so New stays cheap and credential-free for validation use.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	settings, err := cfg.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig(cfg.Logging.File),
	})
	mgr.SetLogger(log)
	mgr.SetValidator(func(c *config.Config) error {
		_, err := c.Resolve()
		return err
	})

	return &App{
		mgr:      mgr,
		logSvc:   logSvc,
		log:      log,
		bus:      eventbus.New(),
		settings: settings,
	}, nil
}

func (a *App) Logger() logx.Logger { return a.log }
func (a *App) Bus() eventbus.Bus   { return a.bus }

// Start creates the provider, begins config watching, and arms the timer.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.c != nil {
		return nil
	}

	if err := a.buildProviderLocked(ctx); err != nil {
		return err
	}

	// Config watch + reload handling.
	wctx, cancel := context.WithCancel(context.Background())
	a.stopWatch = cancel
	updates := a.mgr.Subscribe(1)
	a.updates = updates
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.mgr.Watch(wctx)
	}()
	go func() {
		defer a.wg.Done()
		for cfg := range updates {
			a.applyConfig(wctx, cfg)
		}
	}()

	a.c = cron.New(cron.WithLocation(time.UTC))
	if err := a.armTimerLocked(ctx); err != nil {
		cancel()
		return err
	}
	a.c.Start()

	notifyReady(a.log)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		watchdogLoop(wctx, a.log)
	}()

	a.log.Info("scheduler started",
		logx.Duration("interval", a.settings.Interval),
		logx.Duration("tolerance", a.settings.Tolerance),
		logx.String("tz", a.settings.Location.String()),
	)
	return nil
}

func (a *App) buildProviderLocked(ctx context.Context) error {
	p, err := awsec2.New(ctx, awsec2.Options{
		StartTagKey: a.settings.StartTagKey,
		StopTagKey:  a.settings.StopTagKey,
		CallTimeout: a.settings.CallTimeout,
	}, a.log)
	if err != nil {
		return fmt.Errorf("aws provider: %w", err)
	}
	a.provider = p
	a.runner = tick.New(p, a.settings, a.log, a.bus)
	return nil
}

func (a *App) armTimerLocked(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", a.settings.Interval)
	id, err := a.c.AddFunc(spec, func() { a.runTick(ctx) })
	if err != nil {
		return fmt.Errorf("arm timer %q: %w", spec, err)
	}
	a.entry = id
	return nil
}

func (a *App) runTick(ctx context.Context) {
	if !a.ticking.CompareAndSwap(false, true) {
		a.log.Warn("previous tick still running, skipping this fire")
		return
	}
	defer a.ticking.Store(false)

	a.mu.Lock()
	runner := a.runner
	a.mu.Unlock()
	if runner == nil {
		return
	}
	runner.Run(ctx, time.Now())
}

// RunOnce executes a single tick immediately. Used by the -once CLI mode and
// the Lambda handler.
func (a *App) RunOnce(ctx context.Context) (report.Report, error) {
	a.mu.Lock()
	if a.runner == nil {
		if err := a.buildProviderLocked(ctx); err != nil {
			a.mu.Unlock()
			return report.Report{}, err
		}
	}
	runner := a.runner
	a.mu.Unlock()

	return runner.Run(ctx, time.Now()), nil
}

// applyConfig applies a validated reload: logging always, and the timer,
// reconciler and executor settings by rebuilding the runner.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	settings, err := cfg.Resolve()
	if err != nil {
		// Validator should have caught this; keep running on old settings.
		a.log.Warn("reloaded config failed to resolve", logx.Err(err))
		return
	}

	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig(cfg.Logging.File),
	})

	a.mu.Lock()
	defer a.mu.Unlock()

	rearm := a.c != nil && settings.Interval != a.settings.Interval
	a.settings = settings
	if a.provider != nil {
		// Tag keys or timeouts may have changed; rebuild the provider view.
		if err := a.buildProviderLocked(ctx); err != nil {
			a.log.Error("provider rebuild failed, keeping previous", logx.Err(err))
		}
	}
	if rearm {
		a.c.Remove(a.entry)
		if err := a.armTimerLocked(ctx); err != nil {
			a.log.Error("timer rearm failed", logx.Err(err))
		}
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.EventConfigReloaded})
	a.log.Info("config applied", logx.Duration("interval", settings.Interval))
}

// Stop halts the timer and waits for background goroutines. A tick in flight
// finishes on its own; its work is per-instance safe to abandon anyway.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	c := a.c
	a.c = nil
	cancel := a.stopWatch
	a.stopWatch = nil
	updates := a.updates
	a.updates = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if updates != nil {
		// Closes the channel and releases the reload goroutine.
		a.mgr.Unsubscribe(updates)
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	a.wg.Wait()
	notifyStopping(a.log)
	return a.logSvc.Close()
}
