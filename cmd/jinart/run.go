package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jina-lang/jinart/bootstrap"
	"github.com/jina-lang/jinart/config"
)

// runOptions holds options for the run command
type runOptions struct {
	workers  int
	logLevel string
	timeout  time.Duration
	stats    bool
	serve    bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run an instruction stream",
		Long: `Run an instruction stream on a fresh actor system.

The command returns once every injected message has been processed, or keeps
the system up until interrupted with --serve. Runtime settings come from the
config file and JINA_* environment variables; flags override both.`,
		Example: `  # Run a program and print actor statistics
  jinart run app.yaml --stats

  # Use four workers and give up after ten seconds
  jinart run app.yaml --workers 4 --timeout 10s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "worker pool size (0 derives it from the available CPUs)")
	cmd.Flags().StringVarP(&opts.logLevel, "log-level", "l", "", "log level (debug|info|warn|error)")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 0, "fail if the program is not idle within this duration")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print actor statistics on exit")
	cmd.Flags().BoolVar(&opts.serve, "serve", false, "keep running after the program is idle until interrupted")

	_ = cmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runRun(cmd *cobra.Command, global *globalOptions, opts *runOptions, path string) error {
	p, err := loadProgram(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	app, err := bootstrap.New(bootstrap.Options{
		ConfigFile:   global.configFile,
		Configure:    func(cfg *config.Config) { applyFlags(flags, opts, cfg) },
		Program:      p,
		ExitWhenIdle: !opts.serve,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	runErr := app.Run(ctx)
	if opts.stats {
		if err := renderStats(cmd.OutOrStdout(), app.Stats(), app.System().Metrics()); err != nil {
			return err
		}
	}
	return runErr
}

// applyFlags copies the flags the user set onto cfg.
func applyFlags(fs *pflag.FlagSet, opts *runOptions, cfg *config.Config) {
	if fs.Changed("workers") {
		cfg.Runtime.Workers = opts.workers
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = config.LogLevel(opts.logLevel)
	}
}
