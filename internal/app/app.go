// Package app runs Lua scripts against the event system. It wires the Lua
// state, the executor that owns it, the host events, file watching and
// metrics together and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	glua "github.com/yuin/gopher-lua"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/dshills/eventsys/internal/config"
	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/plugin/lua"
	"github.com/dshills/eventsys/internal/telemetry"
	"github.com/dshills/eventsys/internal/watcher"
)

// shutdownTimeout bounds the shutdown fire and metric collection.
const shutdownTimeout = 5 * time.Second

// App is the central coordinator for a script run.
type App struct {
	cfg    *config.Config
	logger *Logger
	output io.Writer

	state *lua.State
	exec  *lua.Executor
	host  *Host

	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider

	running atomic.Bool
	closed  atomic.Bool

	// busy is set while a script executes.
	busy atomic.Bool
}

// Option configures an App.
type Option func(*App)

// WithOutput sets where text reports are written. Defaults to os.Stderr.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		if w != nil {
			a.output = w
		}
	}
}

// New creates an App from cfg. A nil cfg means config.Default().
func New(cfg *config.Config, logger *Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = NewNopLogger()
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.bootstrap(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// bootstrap initializes all components in dependency order.
func (a *App) bootstrap() error {
	eventOpts := []event.Option{
		event.WithMaxArgs(a.cfg.Event.MaxArgs),
		event.WithReporter(a.reporter()),
	}

	// 1. Metrics
	if a.cfg.Metrics.Enabled {
		a.reader = sdkmetric.NewManualReader()
		a.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(a.reader))

		observer, err := telemetry.NewMetricsObserver(a.provider.Meter("github.com/dshills/eventsys"))
		if err != nil {
			return &InitError{Component: "metrics", Err: err}
		}
		eventOpts = append(eventOpts, event.WithObserver(observer))
	}

	// 2. Lua state with the event module
	state, err := lua.NewState(
		lua.WithUnsafe(a.cfg.Lua.Unsafe),
		lua.WithModuleOptions(
			lua.WithEventOptions(eventOpts...),
			lua.WithMaxResumeArgs(a.cfg.Lua.MaxResumeArgs),
		),
	)
	if err != nil {
		return &InitError{Component: "lua", Err: err}
	}
	a.state = state

	// 3. Host events
	a.host, err = newHost(state, a.logger)
	if err != nil {
		return &InitError{Component: "host", Err: err}
	}

	// 4. Executor
	a.exec = lua.NewExecutor(state.LuaState(), a.cfg.Lua.QueueSize)

	a.logger.Debug("bootstrap complete (unsafe=%t, metrics=%t)", a.cfg.Lua.Unsafe, a.cfg.Metrics.Enabled)
	return nil
}

// reporter returns the Reporter selected by the configuration.
func (a *App) reporter() event.Reporter {
	if a.cfg.Report.Format == config.ReportLog {
		return NewLogReporter(a.logger)
	}
	return event.NewTextReporter(a.output)
}

// Run executes scripts in order, then with watching enabled re-runs each
// script when it changes until ctx is done. Host shutdown fires before Run
// returns.
//
// A script still executing when ctx is done is interrupted, along with the
// coroutines it created. Otherwise Lua waiters stay alive until host
// shutdown has fired.
func (a *App) Run(ctx context.Context, scripts ...string) error {
	if len(scripts) == 0 {
		return ErrNoScripts
	}
	if a.closed.Load() {
		return ErrNotRunning
	}
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	// The executor outlives ctx so shutdown can still reach Lua.
	execCtx, stopExec := context.WithCancel(context.Background())
	execDone := make(chan struct{})
	go func() {
		defer close(execDone)
		a.exec.Run(execCtx)
	}()
	defer func() {
		stopExec()
		<-execDone
	}()

	luaCtx, interrupt := context.WithCancel(context.Background())
	defer interrupt()
	a.state.SetContext(luaCtx)
	stop := context.AfterFunc(ctx, func() {
		if a.busy.Load() {
			interrupt()
		}
	})
	defer stop()

	err := a.exec.Execute(ctx, func(*glua.LState) error {
		return a.host.trackChanges(a.cfg.Task.MaxArgs)
	})
	if err != nil {
		return NewComponentError("host", "track changes", err)
	}

	err = a.run(ctx, scripts)
	if shutdownErr := a.shutdown(interrupt); shutdownErr != nil {
		a.logger.Warn("shutdown: %v", shutdownErr)
	}
	return err
}

// run executes the scripts and, when watching, waits for changes.
func (a *App) run(ctx context.Context, scripts []string) error {
	for _, path := range scripts {
		if err := a.runScript(ctx, path); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !a.cfg.Watch.Enabled {
				return err
			}
			// Keep watching so the script can be fixed.
			a.logger.Error("%v", err)
		}
	}

	if !a.cfg.Watch.Enabled {
		return nil
	}
	return a.watch(ctx, scripts)
}

// runScript executes one script on the executor.
func (a *App) runScript(ctx context.Context, path string) error {
	a.logger.Debug("running %s", path)
	err := a.exec.Execute(ctx, func(*glua.LState) error {
		return a.script(ctx, path)
	})
	if err != nil {
		return NewOperationError("run", path, err)
	}
	return nil
}

// script runs path on the executor goroutine, marking the state busy so a
// cancelled ctx interrupts it.
func (a *App) script(ctx context.Context, path string) error {
	a.busy.Store(true)
	defer a.busy.Store(false)

	if err := ctx.Err(); err != nil {
		return err
	}
	return a.state.DoFile(path)
}

// watch fires host.changed and re-runs a script each time it changes.
func (a *App) watch(ctx context.Context, scripts []string) error {
	w, err := watcher.New(
		watcher.WithDebounce(a.cfg.Watch.Debounce),
		watcher.WithErrorHandler(func(err error) {
			a.logger.WithComponent("watcher").Warn("%v", err)
		}),
	)
	if err != nil {
		return NewComponentError("watcher", "create", err)
	}
	defer w.Close()

	for _, path := range scripts {
		if err := w.Watch(path); err != nil {
			return NewComponentError("watcher", "watch "+path, err)
		}
	}

	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			a.logger.Warn("%s %s", ev.Path, ev.Op)
			return
		}
		change := Change{Path: ev.Path, Op: ev.Op.String(), Time: ev.Time}
		err := a.exec.Post(func(*glua.LState) error {
			return a.reload(ctx, change)
		}, func(err error) {
			a.logger.Error("%v", err)
		})
		if err != nil {
			a.logger.Warn("drop change to %s: %v", ev.Path, err)
		}
	})

	if err := w.Start(ctx); err != nil {
		return NewComponentError("watcher", "start", err)
	}
	a.logger.Info("watching %d script(s)", len(w.WatchedFiles()))

	<-ctx.Done()
	return nil
}

// reload fires host.changed and re-runs the changed script. It runs on the
// executor goroutine.
func (a *App) reload(ctx context.Context, change Change) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := a.host.Changed.Fire(change); err != nil {
		return NewOperationError("fire", a.host.Changed.Name(), err)
	}
	if err := a.script(ctx, change.Path); err != nil {
		return NewOperationError("reload", change.Path, err).WithContext(change.Op)
	}
	a.logger.Info("reloaded %s", change.Path)
	return nil
}

// shutdown fires host.shutdown and reports metric totals. interrupt stops a
// script that keeps the executor past the timeout.
func (a *App) shutdown(interrupt context.CancelFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := NewErrorList()
	err := a.exec.Execute(ctx, func(*glua.LState) error {
		// The main thread may have been interrupted.
		a.state.SetContext(context.Background())
		return a.host.stop()
	})
	if err != nil {
		interrupt()
		errs.Add(NewOperationError("fire", a.host.Shutdown.Name(), err))
	}

	if a.reader != nil {
		errs.Add(a.logTotals(ctx))
	}
	return errs.AsError()
}

// logTotals writes every collected counter at info level.
func (a *App) logTotals(ctx context.Context) error {
	totals, err := a.Metrics(ctx)
	if err != nil {
		return err
	}
	l := a.logger.WithComponent("metrics")
	for _, name := range telemetry.SortedNames(totals) {
		l.Info("%s=%d", name, totals[name])
	}
	return nil
}

// Metrics returns the counter totals collected so far. It returns an error
// when metrics are disabled.
func (a *App) Metrics(ctx context.Context) (map[string]int64, error) {
	if a.reader == nil {
		return nil, errors.New("metrics disabled")
	}
	return telemetry.Totals(ctx, a.reader)
}

// Host returns the host events.
func (a *App) Host() *Host {
	return a.host
}

// State returns the Lua state. It must only be used while Run is not active.
func (a *App) State() *lua.State {
	return a.state
}

// IsRunning returns true if Run is active.
func (a *App) IsRunning() bool {
	return a.running.Load()
}

// Close releases the Lua state and the meter provider.
func (a *App) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}

	errs := NewErrorList()
	if a.exec != nil {
		a.exec.Close()
	}
	if a.host != nil {
		errs.Add(a.host.close())
	}
	if a.state != nil {
		errs.Add(a.state.Close())
	}
	if a.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs.Add(a.provider.Shutdown(ctx))
	}
	if errs.HasErrors() {
		return fmt.Errorf("close: %w", errs)
	}
	return nil
}
