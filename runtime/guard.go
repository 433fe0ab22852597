package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/blockberries/blocksim"
)

// guardState is a state of the block production state machine.
type guardState uint32

const (
	// stateIdle: no block is being produced.
	stateIdle guardState = iota
	// stateProducing: a block-producing call is running. Nested
	// production is a programming error.
	stateProducing
	// stateHalted: an invariant was violated. Terminal.
	stateHalted
)

func (s guardState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateProducing:
		return "Producing"
	case stateHalted:
		return "Halted"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Guard enforces that blocks are produced one at a time and latches
// the halted state after an invariant violation. Closing is latched
// separately and wins over both.
type Guard struct {
	state  atomic.Uint32
	closed atomic.Bool

	mu   sync.Mutex
	halt *blocksim.InvariantError
}

// NewGuard creates a guard in the Idle state.
func NewGuard() *Guard {
	g := &Guard{}
	g.state.Store(uint32(stateIdle))
	return g
}

// State returns the current state name.
func (g *Guard) State() string {
	if g.closed.Load() {
		return "Closed"
	}
	return guardState(g.state.Load()).String()
}

// AcquireProduce transitions Idle → Producing. It returns ErrClosed
// after Close, the halt error once the guard is halted, and panics on
// re-entrant production.
func (g *Guard) AcquireProduce() error {
	if g.closed.Load() {
		return ErrClosed
	}
	if g.state.CompareAndSwap(uint32(stateIdle), uint32(stateProducing)) {
		return nil
	}
	if err := g.Err(); err != nil {
		return err
	}
	panic(fmt.Sprintf("github.com/blockberries/blocksim/runtime: block production re-entered in state %s (expected Idle)",
		guardState(g.state.Load())))
}

// CompleteProduce transitions Producing → Idle.
func (g *Guard) CompleteProduce() {
	g.state.CompareAndSwap(uint32(stateProducing), uint32(stateIdle))
}

// Halt latches err. Every later AcquireProduce fails with an error
// matching both err and blocksim.ErrHalted.
func (g *Guard) Halt(err *blocksim.InvariantError) {
	g.mu.Lock()
	if g.halt == nil {
		g.halt = err
	}
	g.mu.Unlock()
	g.state.Store(uint32(stateHalted))
}

// Err returns the halt error, or nil while the guard is not halted.
func (g *Guard) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.halt == nil {
		return nil
	}
	return blocksim.NewInvariantError(g.halt.Height, g.halt.Reason, fmt.Errorf("%w: %w", blocksim.ErrHalted, g.halt))
}

// Open returns ErrClosed after Close and nil otherwise.
func (g *Guard) Open() error {
	if g.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close latches the closed state. It reports whether this call closed
// the guard.
func (g *Guard) Close() bool {
	return g.closed.CompareAndSwap(false, true)
}

// IsHalted reports whether an invariant violation halted production.
func (g *Guard) IsHalted() bool {
	return guardState(g.state.Load()) == stateHalted
}
