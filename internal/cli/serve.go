package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockberries/blocksim"
	simgrpc "github.com/blockberries/blocksim/grpc"
	"github.com/blockberries/blocksim/local"
	"github.com/blockberries/blocksim/runtime"

	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Genesis       string
	BlockInterval time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose a simulator over gRPC",
		Long: `Start a simulator and serve it over gRPC on --addr until interrupted.

Blocks are produced on demand by clients. With --block-interval the
server also produces one block per interval.

Example:
  blocksim serve --addr 127.0.0.1:3030
  blocksim serve --genesis ./genesis.yaml --block-interval 1s`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Genesis, "genesis", "", "genesis file")
	cmd.Flags().DurationVar(&opts.BlockInterval, "block-interval", 0, "produce a block every interval (0 disables)")

	return cmd
}

func serve(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	logger := log15.New("module", "cli", "cmd", "serve")

	cfg := runtime.DefaultGenesisConfig()
	if opts.Genesis != "" {
		gf, err := LoadGenesis(opts.Genesis)
		if err != nil {
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
	conn, _, root, err := local.Open(cfg, rtOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start simulator", err)
	}
	defer conn.Close()

	lis, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "serving simulator on %s (root account %s)\n", lis.Addr(), root)

	return serveListener(ctx, conn, lis, opts.BlockInterval, logger)
}

// serveListener serves drv on lis until ctx is done, producing a
// block every interval when it is positive.
func serveListener(ctx context.Context, drv blocksim.Driver, lis net.Listener, interval time.Duration, logger log15.Logger) error {
	gs := grpc.NewServer(simgrpc.ServerOptions()...)
	simgrpc.NewGRPCServer(drv, logger).Register(gs)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		gs.GracefulStop()
		return nil
	})
	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := drv.ProduceBlocks(ctx, 1); err != nil {
						if ctx.Err() != nil {
							return nil
						}
						logger.Error("block production failed", "err", err)
						if errors.Is(err, blocksim.ErrHalted) {
							return err
						}
					}
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server stopped", err)
	}
	return nil
}
