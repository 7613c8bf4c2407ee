package main

import (
	"github.com/spf13/cobra"

	"github.com/jina-lang/jinart/core"
)

// globalOptions holds flags shared by every command
type globalOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "jinart",
		Short: "jinart - actor runtime",
		Long: `jinart executes instruction streams produced by the compiler on an
actor runtime with per-actor heaps, a worker pool and a dedicated UI loop.`,
		Version:       core.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: search ./jinart.yaml, ./config, /etc/jinart, ~/.jinart)")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newCheckCmd())
	root.AddCommand(newVersionCmd())
	return root
}
