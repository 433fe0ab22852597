package vm

import (
	"fmt"

	"github.com/blockberries/blocksim/types"
)

// gasCounter tracks the gas of one call. Burnt gas is spent for good;
// used gas also covers gas handed on to promises.
type gasCounter struct {
	prepaid     types.Gas
	maxBurnt    types.Gas
	burnt, used types.Gas
	profile     types.ProfileData
}

func newGasCounter(prepaid, maxBurnt types.Gas) *gasCounter {
	if maxBurnt == 0 || maxBurnt > prepaid {
		maxBurnt = prepaid
	}
	return &gasCounter{prepaid: prepaid, maxBurnt: maxBurnt}
}

// burn charges gas that is burnt right away.
func (g *gasCounter) burn(cost string, gas types.Gas) error {
	return g.pay(cost, gas, gas)
}

// pay burns burn and uses use, where use >= burn.
func (g *gasCounter) pay(cost string, burn, use types.Gas) error {
	newBurnt, ok1 := addGas(g.burnt, burn)
	newUsed, ok2 := addGas(g.used, use)
	if !ok1 || !ok2 || newUsed > g.prepaid || newBurnt > g.maxBurnt {
		g.exhaust()
		return &types.TxExecutionError{
			Kind:    types.ErrGasExceeded,
			Message: fmt.Sprintf("exceeded the prepaid gas charging %s", cost),
		}
	}
	g.burnt, g.used = newBurnt, newUsed
	if burn > 0 {
		g.profile.Add(cost, burn)
	}
	return nil
}

// exhaust burns everything that is left.
func (g *gasCounter) exhaust() {
	if g.maxBurnt > g.burnt {
		g.profile.Add(types.CostHostBase, g.maxBurnt-g.burnt)
	}
	g.burnt = g.maxBurnt
	g.used = g.prepaid
}

func addGas(a, b types.Gas) (types.Gas, bool) {
	s := a + b
	return s, s >= a
}
