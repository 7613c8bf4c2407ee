package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jina-lang/jinart/config"
	"github.com/jina-lang/jinart/core"
	"github.com/jina-lang/jinart/logging"
	"github.com/jina-lang/jinart/program"
)

// Options configures an Application
type Options struct {
	// ConfigFile is the configuration to load. When empty the loader's search
	// paths are tried and defaults are used if nothing is found. Only an
	// explicit file is watched for changes.
	ConfigFile string

	// Configure adjusts the loaded configuration, for example from command
	// line flags. It is applied again on every reload.
	Configure func(*config.Config)

	// Program is the instruction stream to execute, optional
	Program *program.Program

	// Registry resolves the program's behaviors, defaults to
	// program.DefaultRegistry()
	Registry *program.Registry

	// ExitWhenIdle makes Run return once every queued message has been
	// processed instead of waiting for a signal
	ExitWhenIdle bool

	// LogWriter replaces the configured log output
	LogWriter io.Writer

	// OnFatal overrides the runtime's fatal error handler
	OnFatal func(error)
}

// Application owns the configuration, the logger and the actor system.
type Application struct {
	opts      Options
	cfg       *config.Config
	logger    *logging.Logger
	sys       *core.System
	events    *core.ChanSource
	lifecycle *Lifecycle
	program   *ProgramService

	mu      sync.Mutex
	running bool
	level   config.LogLevel
	stats   []core.ActorStats
}

// New loads the configuration and builds every component. Nothing runs until
// Run.
func New(opts Options) (*Application, error) {
	loader := config.NewLoader()
	cfg, err := loader.Load(opts.ConfigFile)
	if err != nil {
		return nil, &ApplicationError{Operation: "load config", Err: err}
	}
	if opts.Configure != nil {
		opts.Configure(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, &ApplicationError{Operation: "configure", Err: err}
		}
	}

	logger, err := newLogger(cfg.Log, opts.LogWriter)
	if err != nil {
		return nil, &ApplicationError{Operation: "create logger", Err: err}
	}

	app := &Application{
		opts:      opts,
		cfg:       cfg,
		logger:    logger,
		lifecycle: NewLifecycle(logger.Logger),
		level:     cfg.Log.Level,
	}
	app.lifecycle.SetTimeout(cfg.Runtime.ShutdownTimeout)

	sysOpts := core.Options{
		Workers:          cfg.Runtime.Workers,
		MaxCellsPerActor: cfg.Runtime.MaxCellsPerActor,
		FatalExitCode:    cfg.Runtime.FatalExitCode,
		Logger:           logger.With("app", cfg.App.Name),
		OnFatal:          opts.OnFatal,
	}
	if opts.Program != nil {
		sysOpts.ExpectedActors = opts.Program.WorkerActors()
	}
	if cfg.Runtime.UI.Enabled {
		app.events = core.NewChanSource(cfg.Runtime.UI.EventBuffer)
		sysOpts.EventSource = app.events
	}
	app.sys = core.New(sysOpts)

	if err := app.lifecycle.Register(&RuntimeService{sys: app.sys}); err != nil {
		return nil, err
	}

	if opts.ConfigFile != "" {
		watcher, err := config.NewWatcher(opts.ConfigFile, loader, logger.Logger)
		if err != nil {
			return nil, &ApplicationError{Operation: "watch config", Err: err}
		}
		watcher.OnChange(app.applyConfig)
		if err := app.lifecycle.Register(&WatcherService{watcher: watcher}); err != nil {
			return nil, err
		}
	}

	if opts.Program != nil {
		reg := opts.Registry
		if reg == nil {
			reg = program.DefaultRegistry()
		}
		app.program = &ProgramService{
			sys:      app.sys,
			program:  opts.Program,
			registry: reg,
			logger:   logger.With("component", "program"),
		}
		if err := app.lifecycle.Register(app.program, "runtime"); err != nil {
			return nil, err
		}
	}

	return app, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*logging.Logger, error) {
	if w == nil {
		return logging.New(cfg)
	}
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(w, cfg.Format, level, cfg.Fields, nil)
}

// applyConfig reacts to a reloaded configuration file. Only the log level
// changes at runtime; other settings need a restart.
func (app *Application) applyConfig(_, newCfg *config.Config) {
	next := *newCfg
	if app.opts.Configure != nil {
		app.opts.Configure(&next)
	}

	app.mu.Lock()
	current := app.level
	app.level = next.Log.Level
	app.mu.Unlock()

	if next.Log.Level != current {
		if err := app.logger.SetLevel(next.Log.Level); err != nil {
			app.logger.Warn("ignoring log level", "level", next.Log.Level, "error", err)
			return
		}
		app.logger.Info("log level changed", "from", current, "to", next.Log.Level)
	}
	if next.Runtime != app.cfg.Runtime {
		app.logger.Warn("runtime settings changed, restart to apply")
	}
}

// Run starts the services and blocks until ctx is done, SIGINT or SIGTERM
// arrives or, with ExitWhenIdle, the system becomes idle. The services are
// then stopped within the configured shutdown timeout. A ctx deadline that
// expires before the system is idle is reported as an error.
func (app *Application) Run(ctx context.Context) error {
	app.mu.Lock()
	if app.running {
		app.mu.Unlock()
		return errors.New("application is already running")
	}
	app.running = true
	app.mu.Unlock()

	defer app.logger.Close()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.logger.Info("starting",
		"app", app.cfg.App.Name,
		"environment", app.cfg.App.Environment,
		"version", core.Version,
		"runtime_id", app.sys.ID())

	if err := app.lifecycle.Start(sigCtx); err != nil {
		return err
	}

	var runErr error
	if app.opts.ExitWhenIdle {
		runErr = app.sys.WaitIdle(sigCtx)
	} else {
		<-sigCtx.Done()
		runErr = sigCtx.Err()
	}
	switch {
	case runErr == nil:
		app.logger.Info("system idle, shutting down")
	case errors.Is(runErr, context.DeadlineExceeded):
		app.logger.Warn("deadline reached before the system became idle")
		runErr = fmt.Errorf("run: %w", runErr)
	default:
		app.logger.Info("shutdown requested")
		runErr = nil
	}

	app.mu.Lock()
	app.stats = app.sys.Stats()
	app.mu.Unlock()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.cfg.Runtime.ShutdownTimeout)
	defer cancel()
	if err := app.lifecycle.Stop(stopCtx); err != nil {
		return errors.Join(runErr, err)
	}
	app.logger.Info("stopped", "metrics", app.sys.Metrics())
	return runErr
}

// Config returns the configuration the application was built with.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// System returns the actor system.
func (app *Application) System() *core.System {
	return app.sys
}

// Events returns the event source feeding UI actors, or nil when the UI
// event source is disabled.
func (app *Application) Events() *core.ChanSource {
	return app.events
}

// Lifecycle returns the service lifecycle.
func (app *Application) Lifecycle() *Lifecycle {
	return app.lifecycle
}

// Actors returns the actors spawned by the program, by name.
func (app *Application) Actors() map[string]core.ActorID {
	if app.program == nil {
		return nil
	}
	return app.program.Actors()
}

// Stats returns the per-actor statistics captured just before shutdown.
func (app *Application) Stats() []core.ActorStats {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.stats
}
