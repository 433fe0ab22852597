package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/blockberries/blocksim/local"
	"github.com/blockberries/blocksim/runtime"

	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Genesis string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against an in-process simulator",
		Long: `Run the steps of a scenario file against a fresh simulator and
check their expectations.

Contracts are given as paths relative to the scenario or as one of
builtin:statusmessage, builtin:crosscontract and builtin:counter.

Example:
  blocksim run ./scenarios/status.yaml
  blocksim run --genesis ./genesis.yaml --cache-dir /tmp/blocksim ./status.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runScenario(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Genesis, "genesis", "", "genesis file (overrides the scenario's)")

	return cmd
}

func runScenario(ctx context.Context, opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := log15.New("module", "cli", "cmd", "run")

	s, err := LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	genesisPath := opts.Genesis
	if genesisPath == "" {
		genesisPath = s.GenesisPath()
	}

	cfg := runtime.DefaultGenesisConfig()
	var gf *GenesisFile
	if genesisPath != "" {
		if gf, err = LoadGenesis(genesisPath); err != nil {
			return WrapExitError(ExitCommandError, "failed to load genesis", err)
		}
		if cfg, err = gf.Config(); err != nil {
			return WrapExitError(ExitCommandError, "invalid genesis", err)
		}
	}

	rtOpts := []runtime.Option{runtime.WithLogger(logger)}
	if opts.CacheDir != "" {
		rtOpts = append(rtOpts, runtime.WithArtifactCacheDir(opts.CacheDir))
	}
	conn, _, _, err := local.Open(cfg, rtOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start simulator", err)
	}
	defer conn.Close()

	op := NewOperator(conn, logger)
	if gf != nil {
		gf.RegisterSigners(op)
	}

	out := cmd.OutOrStdout()
	name := s.Name
	if name == "" {
		name = path
	}
	fmt.Fprintf(out, "scenario %s\n", name)
	failed, err := s.Run(ctx, conn, op, out)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario aborted", err)
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d steps failed", failed, len(s.Steps)))
	}
	fmt.Fprintf(out, "all %d steps passed\n", len(s.Steps))
	return nil
}
