package engine

import (
	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/types"
)

var _ blocksim.EpochInfoProvider = (*MockEpochInfoProvider)(nil)

// MockEpochInfoProvider answers validator questions from a fixed set
// of stakes. The validator set never rotates.
type MockEpochInfoProvider struct {
	stakes  map[types.AccountID]types.Balance
	minimum types.Balance
}

// NewMockEpochInfoProvider creates a provider for validators.
func NewMockEpochInfoProvider(validators []types.AccountInfo) *MockEpochInfoProvider {
	stakes := make(map[types.AccountID]types.Balance, len(validators))
	for _, v := range validators {
		stakes[v.AccountID] = v.Amount
	}
	return &MockEpochInfoProvider{stakes: stakes}
}

// WithMinimumStake sets the smallest stake a new validator may lock.
func (p *MockEpochInfoProvider) WithMinimumStake(stake types.Balance) *MockEpochInfoProvider {
	p.minimum = stake
	return p
}

func (p *MockEpochInfoProvider) ValidatorStake(account types.AccountID) (types.Balance, bool) {
	stake, ok := p.stakes[account]
	return stake, ok
}

func (p *MockEpochInfoProvider) ValidatorTotalStake() types.Balance {
	var total types.Balance
	for _, s := range p.stakes {
		total += s
	}
	return total
}

func (p *MockEpochInfoProvider) MinimumStake() types.Balance {
	return p.minimum
}
