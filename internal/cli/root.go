package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables that override flags,
// e.g. BLOCKSIM_CACHE_DIR for --cache-dir.
const EnvPrefix = "BLOCKSIM"

// DefaultAddr is the address serve listens on and remote commands dial.
const DefaultAddr = "127.0.0.1:3030"

// RootOptions holds global flags for all commands. Values are resolved
// through viper, so the config file and environment apply as well.
type RootOptions struct {
	Verbose    bool
	ConfigFile string
	CacheDir   string
	Addr       string

	v *viper.Viper
}

// NewRootCommand creates the root command for the blocksim CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "blocksim",
		Short: "blocksim - local blockchain simulator",
		Long: `Run contracts against a simulated chain without a network.

Scenarios run in process; serve exposes a simulator over gRPC that the
account, view, call and deploy commands talk to.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd.Flags()); err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			setupLogging(opts.Verbose)
			return nil
		},
	}

	opts.bindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewAccountCommand(opts))
	cmd.AddCommand(NewViewCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewDeployCommand(opts))

	return cmd
}

func (opts *RootOptions) bindFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	fs.StringVar(&opts.ConfigFile, "config", "", "config file (yaml)")
	fs.StringVar(&opts.CacheDir, "cache-dir", "", "directory for compiled contract artifacts")
	fs.StringVar(&opts.Addr, "addr", DefaultAddr, "simulator gRPC address")
}

// load binds fs to viper, reads the config file if one is set and
// copies the resolved values back into opts.
func (opts *RootOptions) load(fs *pflag.FlagSet) error {
	v := opts.v
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", opts.ConfigFile, err)
		}
	}
	opts.Verbose = v.GetBool("verbose")
	opts.CacheDir = v.GetString("cache-dir")
	opts.Addr = v.GetString("addr")
	return nil
}

func setupLogging(verbose bool) {
	lvl := log15.LvlInfo
	if verbose {
		lvl = log15.LvlDebug
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.TerminalFormat())))
}
