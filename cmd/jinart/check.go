package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jina-lang/jinart/core"
	"github.com/jina-lang/jinart/program"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <program>",
		Short: "Validate an instruction stream without running it",
		Long: `Decode and validate an instruction stream, verify its abi constraint
against this runtime and make sure every behavior it spawns is known.`,
		Example: `  jinart check app.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProgram(args[0])
			if err != nil {
				return err
			}

			ui := p.UIActors()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  instructions: %d\n", len(p.Instructions))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  actors:       %d (%d ui)\n", p.WorkerActors()+ui, ui)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  abi:          %s (runtime %s)\n", p.ABI, core.Version)
			return nil
		},
	}
}

// loadProgram reads a program and runs every static check on it.
func loadProgram(path string) (*program.Program, error) {
	p, err := program.Load(path)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := program.Check(p); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := program.DefaultRegistry().Resolve(p); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
