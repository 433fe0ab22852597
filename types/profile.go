package types

import (
	"fmt"
	"strings"
)

// Cost names recorded in profiles.
const (
	CostActionReceiptCreation = "ACTION_RECEIPT_CREATION"
	CostDataReceiptCreation   = "DATA_RECEIPT_CREATION"
	CostCreateAccount         = "CREATE_ACCOUNT"
	CostDeployContract        = "DEPLOY_CONTRACT"
	CostFunctionCall          = "FUNCTION_CALL"
	CostTransfer              = "TRANSFER"
	CostStake                 = "STAKE"
	CostAddKey                = "ADD_KEY"
	CostDeleteKey             = "DELETE_KEY"
	CostDeleteAccount         = "DELETE_ACCOUNT"
	CostContractLoad          = "CONTRACT_LOADING"
	CostHostBase              = "BASE"
	CostStorageRead           = "STORAGE_READ"
	CostStorageWrite          = "STORAGE_WRITE"
	CostStorageRemove         = "STORAGE_REMOVE"
	CostStorageHasKey         = "STORAGE_HAS_KEY"
	CostLog                   = "LOG"
	CostPromise               = "PROMISE"
)

// ProfileEntry is the gas charged under one cost name.
type ProfileEntry struct {
	Cost string `cramberry:"1"`
	Gas  Gas    `cramberry:"2"`
}

// ProfileData breaks the gas of one receipt down by cost, in the order
// costs were first charged.
type ProfileData struct {
	Entries []ProfileEntry `cramberry:"1"`
}

// Add charges gas under cost.
func (p *ProfileData) Add(cost string, gas Gas) {
	for i := range p.Entries {
		if p.Entries[i].Cost == cost {
			p.Entries[i].Gas += gas
			return
		}
	}
	p.Entries = append(p.Entries, ProfileEntry{Cost: cost, Gas: gas})
}

// Merge adds every entry of other.
func (p *ProfileData) Merge(other ProfileData) {
	for _, e := range other.Entries {
		p.Add(e.Cost, e.Gas)
	}
}

// Get returns the gas charged under cost.
func (p ProfileData) Get(cost string) Gas {
	for _, e := range p.Entries {
		if e.Cost == cost {
			return e.Gas
		}
	}
	return 0
}

// Total returns the sum over all costs.
func (p ProfileData) Total() Gas {
	var total Gas
	for _, e := range p.Entries {
		total += e.Gas
	}
	return total
}

func (p ProfileData) String() string {
	var b strings.Builder
	for _, e := range p.Entries {
		fmt.Fprintf(&b, "%-24s %d\n", e.Cost, e.Gas)
	}
	return b.String()
}
