package runtime

import (
	"errors"
	"time"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/types"
)

// RootSignerSeed is the seed of every signer created by InitRootSigner.
const RootSignerSeed = "test"

// RootAccount is the account InitRuntime funds at genesis.
const RootAccount types.AccountID = "root"

const nanosPerYear = 365 * 24 * 3600 * uint64(time.Second)

// GenesisConfig describes the initial state and chain parameters of a
// simulation. It is read-only once a Runtime was built from it.
type GenesisConfig struct {
	// GenesisTime is the timestamp of the genesis block in nanoseconds.
	GenesisTime   uint64
	GasPrice      types.Balance
	GasLimit      types.Gas
	GenesisHeight types.BlockHeight
	EpochLength   uint64
	BlockProdTime time.Duration
	RuntimeConfig types.RuntimeConfig
	StateRecords  []types.StateRecord
	Validators    []types.AccountInfo
}

// DefaultGenesisConfig returns a single-node configuration starting at
// height 1 with three-block epochs and one-second blocks.
func DefaultGenesisConfig() *GenesisConfig {
	cfg := types.DefaultRuntimeConfig()
	return &GenesisConfig{
		GenesisTime:   types.TimestampNanos(time.Now()),
		GasPrice:      types.DefaultGasPrice,
		GasLimit:      cfg.MaxTotalPrepaidGas,
		GenesisHeight: 1,
		EpochLength:   3,
		BlockProdTime: time.Second,
		RuntimeConfig: cfg,
	}
}

// Validate checks the parameters block production depends on.
func (g *GenesisConfig) Validate() error {
	if g.EpochLength == 0 {
		return errors.New("genesis: epoch length must be positive")
	}
	if g.BlockProdTime <= 0 {
		return errors.New("genesis: block production time must be positive")
	}
	return nil
}

// InitRootSigner adds accountID with the root balance and a full
// access key for a signer derived from RootSignerSeed.
func (g *GenesisConfig) InitRootSigner(accountID types.AccountID) *types.InMemorySigner {
	signer := types.NewSignerFromSeed(accountID, RootSignerSeed)
	g.StateRecords = append(g.StateRecords,
		types.AccountRecord(accountID, types.NewAccount(types.RootBalance, 0, types.CryptoHash{}, 0)),
		types.AccessKeyRecord(accountID, signer.PublicKey(), types.FullAccessKey()),
	)
	return signer
}

// Genesis converts the configuration into what the engine consumes.
func (g *GenesisConfig) Genesis() *types.Genesis {
	records := make([]types.StateRecord, len(g.StateRecords))
	copy(records, g.StateRecords)
	validators := make([]types.AccountInfo, len(g.Validators))
	copy(validators, g.Validators)

	return &types.Genesis{
		Config: types.ChainConfig{
			GenesisTime:           g.GenesisTime,
			GenesisHeight:         g.GenesisHeight,
			GasLimit:              g.GasLimit,
			MinGasPrice:           g.GasPrice,
			EpochLength:           g.EpochLength,
			NumBlocksPerYear:      nanosPerYear / uint64(g.BlockProdTime),
			NumBlockProducerSeats: uint64(len(g.Validators)),
			ProtocolVersion:       blocksim.ProtocolVersion,
			RuntimeConfig:         g.RuntimeConfig,
			Validators:            validators,
		},
		Records: records,
	}
}
