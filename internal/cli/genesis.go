package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blockberries/blocksim/runtime"
	"github.com/blockberries/blocksim/types"

	"gopkg.in/yaml.v3"
)

// GenesisFile is the YAML form of a genesis configuration. Zero
// fields keep the defaults of runtime.DefaultGenesisConfig.
type GenesisFile struct {
	// GenesisTime defaults to the current time.
	GenesisTime   time.Time     `yaml:"genesis_time,omitempty"`
	GenesisHeight uint64        `yaml:"genesis_height,omitempty"`
	EpochLength   uint64        `yaml:"epoch_length,omitempty"`
	BlockProdTime time.Duration `yaml:"block_prod_time,omitempty"`
	GasPrice      uint64        `yaml:"gas_price,omitempty"`
	// GasLimit is in Tgas and also bounds the gas of one transaction.
	GasLimit   uint64             `yaml:"gas_limit_tgas,omitempty"`
	Accounts   []GenesisAccount   `yaml:"accounts,omitempty"`
	Validators []GenesisValidator `yaml:"validators,omitempty"`

	dir string
}

// GenesisAccount is an account created at genesis. Balance is in
// whole tokens. The full access key is derived from Seed, which
// defaults to the account id.
type GenesisAccount struct {
	ID      types.AccountID `yaml:"id"`
	Balance uint64          `yaml:"balance"`
	Seed    string          `yaml:"seed,omitempty"`
	// Code is a contract path relative to the file, or a builtin name.
	Code string `yaml:"code,omitempty"`
}

// GenesisValidator is a validator seat with its stake in whole tokens.
type GenesisValidator struct {
	ID    types.AccountID `yaml:"id"`
	Stake uint64          `yaml:"stake"`
	Seed  string          `yaml:"seed,omitempty"`
}

func (a GenesisAccount) seed() string {
	if a.Seed != "" {
		return a.Seed
	}
	return string(a.ID)
}

// LoadGenesis reads a genesis YAML file, rejecting unknown fields.
func LoadGenesis(path string) (*GenesisFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file: %w", err)
	}
	var g GenesisFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to parse genesis YAML: %w", err)
	}
	for i, a := range g.Accounts {
		if err := a.ID.Validate(); err != nil {
			return nil, fmt.Errorf("genesis account %d: %w", i, err)
		}
		if a.ID == runtime.RootAccount {
			return nil, fmt.Errorf("genesis account %d: %s is created by the simulator", i, runtime.RootAccount)
		}
	}
	g.dir = filepath.Dir(path)
	return &g, nil
}

// Config builds the runtime genesis configuration.
func (g *GenesisFile) Config() (*runtime.GenesisConfig, error) {
	cfg := runtime.DefaultGenesisConfig()
	if !g.GenesisTime.IsZero() {
		cfg.GenesisTime = types.TimestampNanos(g.GenesisTime)
	}
	if g.GenesisHeight != 0 {
		cfg.GenesisHeight = g.GenesisHeight
	}
	if g.EpochLength != 0 {
		cfg.EpochLength = g.EpochLength
	}
	if g.BlockProdTime != 0 {
		cfg.BlockProdTime = g.BlockProdTime
	}
	if g.GasPrice != 0 {
		cfg.GasPrice = g.GasPrice
	}
	if g.GasLimit != 0 {
		cfg.GasLimit = g.GasLimit * types.TeraGas
	}

	for _, a := range g.Accounts {
		var codeHash types.CryptoHash
		if a.Code != "" {
			code, err := loadCode(g.dir, a.Code)
			if err != nil {
				return nil, fmt.Errorf("genesis account %s: %w", a.ID, err)
			}
			codeHash = types.HashBytes(code)
			cfg.StateRecords = append(cfg.StateRecords, types.ContractRecord(a.ID, code))
		}
		signer := types.NewSignerFromSeed(a.ID, a.seed())
		cfg.StateRecords = append(cfg.StateRecords,
			types.AccountRecord(a.ID, types.NewAccount(types.Tokens(a.Balance), 0, codeHash, 0)),
			types.AccessKeyRecord(a.ID, signer.PublicKey(), types.FullAccessKey()),
		)
	}
	for _, v := range g.Validators {
		seed := v.Seed
		if seed == "" {
			seed = string(v.ID)
		}
		cfg.Validators = append(cfg.Validators, types.AccountInfo{
			AccountID: v.ID,
			PublicKey: types.NewSignerFromSeed(v.ID, seed).PublicKey(),
			Amount:    types.Tokens(v.Stake),
		})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RegisterSigners makes o able to sign for every genesis account.
func (g *GenesisFile) RegisterSigners(o *Operator) {
	for _, a := range g.Accounts {
		o.AddSigner(a.ID, a.seed())
	}
}
