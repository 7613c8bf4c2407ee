package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jina-lang/jinart/core"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "jinart v%s\n", core.Version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s/%s, %d CPUs available\n",
				runtime.Version(), runtime.GOOS, runtime.GOARCH, core.AvailableCPUs())
		},
	}
}
