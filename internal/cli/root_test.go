package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "blocksim", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "serve", "account", "view", "call", "deploy"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	addrFlag := cmd.PersistentFlags().Lookup("addr")
	require.NotNil(t, addrFlag)
	assert.Equal(t, DefaultAddr, addrFlag.DefValue)

	for _, name := range []string{"config", "cache-dir"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func newTestOptions(t *testing.T, args ...string) (*RootOptions, *pflag.FlagSet) {
	t.Helper()
	opts := &RootOptions{v: viper.New()}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.bindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return opts, fs
}

func TestLoad_Defaults(t *testing.T) {
	opts, fs := newTestOptions(t)
	require.NoError(t, opts.load(fs))
	assert.Equal(t, DefaultAddr, opts.Addr)
	assert.Empty(t, opts.CacheDir)
	assert.False(t, opts.Verbose)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("BLOCKSIM_CACHE_DIR", "/tmp/artifacts")
	t.Setenv("BLOCKSIM_ADDR", "127.0.0.1:9999")

	opts, fs := newTestOptions(t)
	require.NoError(t, opts.load(fs))
	assert.Equal(t, "/tmp/artifacts", opts.CacheDir)
	assert.Equal(t, "127.0.0.1:9999", opts.Addr)
}

func TestLoad_FlagBeatsEnvironment(t *testing.T) {
	t.Setenv("BLOCKSIM_CACHE_DIR", "/tmp/from-env")

	opts, fs := newTestOptions(t, "--cache-dir", "/tmp/from-flag")
	require.NoError(t, opts.load(fs))
	assert.Equal(t, "/tmp/from-flag", opts.CacheDir)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocksim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: 10.0.0.1:3030\nverbose: true\n"), 0644))

	opts, fs := newTestOptions(t, "--config", path)
	require.NoError(t, opts.load(fs))
	assert.Equal(t, "10.0.0.1:3030", opts.Addr)
	assert.True(t, opts.Verbose)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	opts, fs := newTestOptions(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	err := opts.load(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}
