package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterScenario = `
name: counter
steps:
  - action: deploy
    account: counter.root
    code: builtin:counter
    amount: 10
  - action: create_account
    account: alice.root
    amount: 5
  - action: call
    signer: alice.root
    account: counter.root
    method: increment
    args: "5"
    gas: 50
    expect:
      status: success
      logs: ["count is 5"]
  - action: call
    signer: alice.root
    account: counter.root
    method: decrement
    args: "6"
    expect:
      status: failure
  - action: blocks
    blocks: 3
  - action: view
    account: counter.root
    method: get_num
    expect:
      value: "5"
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRun_Scenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "counter.yaml", counterScenario)

	out, err := execute(t, "run", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "scenario counter")
	assert.Contains(t, out, "log:      count is 5")
	assert.Contains(t, out, "step 6 view counter.root: 5")
	assert.Contains(t, out, "all 6 steps passed")
}

func TestRun_FailedExpectation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", `
steps:
  - action: deploy
    account: counter.root
    code: builtin:counter
    amount: 10
  - action: view
    account: counter.root
    method: get_num
    expect:
      value: "7"
`)
	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 steps failed")
	assert.Contains(t, out, `FAIL: expected value "7", got "0"`)
}

func TestRun_MissingScenario(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_ScenarioGenesis(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "genesis.yaml", testGenesis)
	path := writeFile(t, dir, "s.yaml", `
genesis: genesis.yaml
steps:
  - action: call
    signer: alice
    account: counter
    method: increment
    expect:
      logs: ["count is 1"]
`)
	out, err := execute(t, "run", path)
	require.NoError(t, err, out)
}

func TestRun_CacheDirFromEnvironment(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("BLOCKSIM_CACHE_DIR", cache)
	path := writeFile(t, t.TempDir(), "s.yaml", `
steps:
  - action: deploy
    account: counter.root
    code: builtin:counter
    amount: 10
  - action: call
    account: counter.root
    method: increment
`)
	out, err := execute(t, "run", path)
	require.NoError(t, err, out)

	entries, err := os.ReadDir(cache)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "compiled artifacts are kept in the cache dir")
}
