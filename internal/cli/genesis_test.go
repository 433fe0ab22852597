package cli

import (
	"context"
	"testing"
	"time"

	"github.com/blockberries/blocksim/local"
	"github.com/blockberries/blocksim/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGenesis = `
genesis_time: 2024-01-01T00:00:00Z
epoch_length: 5
block_prod_time: 500ms
gas_price: 2
accounts:
  - id: alice
    balance: 50
  - id: counter
    balance: 20
    seed: counter-key
    code: builtin:counter
validators:
  - id: alice
    stake: 10
`

func TestLoadGenesis_Config(t *testing.T) {
	path := writeFile(t, t.TempDir(), "genesis.yaml", testGenesis)
	g, err := LoadGenesis(path)
	require.NoError(t, err)

	cfg, err := g.Config()
	require.NoError(t, err)
	assert.Equal(t, types.TimestampNanos(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), cfg.GenesisTime)
	assert.Equal(t, uint64(5), cfg.EpochLength)
	assert.Equal(t, 500*time.Millisecond, cfg.BlockProdTime)
	assert.Equal(t, types.Balance(2), cfg.GasPrice)
	assert.Equal(t, types.DefaultMaxTotalPrepaidGas, cfg.GasLimit, "unset fields keep defaults")
	assert.Len(t, cfg.StateRecords, 5)
	require.Len(t, cfg.Validators, 1)
	assert.Equal(t, types.Tokens(10), cfg.Validators[0].Amount)
}

func TestLoadGenesis_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "epoch_lenght: 3\n", "epoch_lenght"},
		{"invalid id", "accounts:\n  - id: \"Not Valid\"\n    balance: 1\n", "genesis account 0"},
		{"root", "accounts:\n  - id: root\n    balance: 1\n", "created by the simulator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGenesis(writeFile(t, t.TempDir(), "genesis.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenesis_Simulate(t *testing.T) {
	g, err := LoadGenesis(writeFile(t, t.TempDir(), "genesis.yaml", testGenesis))
	require.NoError(t, err)
	cfg, err := g.Config()
	require.NoError(t, err)

	conn, _, _, err := local.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	ctx := context.Background()

	acc, err := conn.ViewAccount(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, types.Tokens(50), acc.Amount)

	view, err := conn.ViewMethodCall(ctx, "counter", "get_num", nil)
	require.NoError(t, err)
	require.True(t, view.OK(), view.Error)
	assert.Equal(t, "0", string(view.Result))

	op := NewOperator(conn, nil)
	g.RegisterSigners(op)
	res, err := op.Call(ctx, "counter", "counter", "reset", nil, 50*types.TeraGas, 0)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccessValue, res.Outcome.Status.Kind, res.Outcome.Status.String())
}
