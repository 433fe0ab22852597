package cli

import (
	"context"
	"time"

	simgrpc "github.com/blockberries/blocksim/grpc"
	"github.com/blockberries/blocksim/runtime"
	"github.com/blockberries/blocksim/types"

	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const dialTimeout = 5 * time.Second

// SignerOptions selects the key remote transactions are signed with.
type SignerOptions struct {
	*RootOptions
	Signer string
	Seed   string
}

func (opts *SignerOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&opts.Signer, "signer", string(runtime.RootAccount), "signing account")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "key seed of the signer (defaults to the account id, or the root seed for root)")
}

func (opts *SignerOptions) seed() string {
	switch {
	case opts.Seed != "":
		return opts.Seed
	case types.AccountID(opts.Signer) == runtime.RootAccount:
		return runtime.RootSignerSeed
	default:
		return opts.Signer
	}
}

// connect dials the simulator at opts.Addr and returns an operator
// for it with signer registered.
func connect(ctx context.Context, opts *RootOptions, signer *SignerOptions) (*Operator, func(), error) {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	client, err := simgrpc.Dial(dctx, opts.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to connect", err)
	}
	op := NewOperator(client, log15.New("module", "cli", "addr", opts.Addr))
	if signer != nil {
		op.AddSigner(types.AccountID(signer.Signer), signer.seed())
	}
	return op, func() { _ = client.Close() }, nil
}

// NewAccountCommand creates the account command.
func NewAccountCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "account <account-id>",
		Short: "Show an account of a running simulator",
		Example: `  blocksim account root
  blocksim account status.root --addr 127.0.0.1:3030`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, done, err := connect(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer done()
			id := types.AccountID(args[0])
			acc, err := op.drv.ViewAccount(cmd.Context(), id)
			if err != nil {
				return WrapExitError(ExitFailure, "view account", err)
			}
			printAccount(cmd.OutOrStdout(), id, acc)
			return nil
		},
	}
}

// NewViewCommand creates the view command.
func NewViewCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "view <contract> <method> [json-args]",
		Short:         "Run a read-only contract call",
		Example:       `  blocksim view status.root get_status '{"account_id":"root"}'`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, done, err := connect(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer done()
			res, err := op.View(cmd.Context(), types.AccountID(args[0]), args[1], optionalArgs(args, 2))
			if err != nil {
				return WrapExitError(ExitFailure, "view call", err)
			}
			printView(cmd.OutOrStdout(), args[0]+"."+args[1], res)
			if !res.OK() {
				return NewExitError(ExitFailure, res.Error)
			}
			return nil
		},
	}
}

// CallOptions holds flags for the call command.
type CallOptions struct {
	SignerOptions
	Gas     uint64
	Deposit uint64
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{SignerOptions: SignerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "call <contract> <method> [json-args]",
		Short: "Sign and resolve a function call",
		Example: `  blocksim call status.root set_status '{"message":"hello"}'
  blocksim call counter.root increment --signer alice.root --gas 50`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, done, err := connect(cmd.Context(), rootOpts, &opts.SignerOptions)
			if err != nil {
				return err
			}
			defer done()
			res, err := op.Call(cmd.Context(), types.AccountID(opts.Signer), types.AccountID(args[0]), args[1],
				optionalArgs(args, 2), opts.Gas*types.TeraGas, types.Tokens(opts.Deposit))
			if err != nil {
				return WrapExitError(ExitFailure, "call", err)
			}
			printOutcome(cmd.OutOrStdout(), args[0]+"."+args[1], res)
			return outcomeExit(res)
		},
	}
	opts.bind(cmd)
	cmd.Flags().Uint64Var(&opts.Gas, "gas", 300, "prepaid gas in Tgas")
	cmd.Flags().Uint64Var(&opts.Deposit, "deposit", 0, "attached deposit in tokens")

	return cmd
}

// DeployOptions holds flags for the deploy command.
type DeployOptions struct {
	SignerOptions
	Amount uint64
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{SignerOptions: SignerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "deploy <account-id> <contract.js|builtin:name>",
		Short: "Create an account with a contract deployed",
		Long: `Create a sub-account of the signer holding the given contract. The
new account's key is derived from its id.`,
		Example:       `  blocksim deploy status.root builtin:statusmessage --amount 10`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := loadCode(".", args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load contract", err)
			}
			op, done, err := connect(cmd.Context(), rootOpts, &opts.SignerOptions)
			if err != nil {
				return err
			}
			defer done()
			res, err := op.Deploy(cmd.Context(), types.AccountID(opts.Signer), types.AccountID(args[0]), code, types.Tokens(opts.Amount))
			if err != nil {
				return WrapExitError(ExitFailure, "deploy", err)
			}
			printOutcome(cmd.OutOrStdout(), "deploy "+args[0], res)
			return outcomeExit(res)
		},
	}
	opts.bind(cmd)
	cmd.Flags().Uint64Var(&opts.Amount, "amount", 10, "initial balance in tokens")

	return cmd
}

func optionalArgs(args []string, i int) []byte {
	if len(args) > i {
		return []byte(args[i])
	}
	return nil
}

func outcomeExit(res types.ExecutionOutcomeWithID) error {
	if res.Outcome.Status.Kind != types.StatusSuccessValue {
		return NewExitError(ExitFailure, res.Outcome.Status.String())
	}
	return nil
}
