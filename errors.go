package blocksim

import (
	"errors"
	"fmt"
)

var (
	// ErrLostOutcome means an awaited outcome is missing while no
	// receipts remain pending, so it can never appear.
	ErrLostOutcome = errors.New("outcome lost: no outcome recorded and no receipts pending")

	// ErrUnknownStatus means an outcome with Unknown status was recorded.
	ErrUnknownStatus = errors.New("outcome with unknown status")

	// ErrCorruptArtifact means a cached artifact could not be decoded.
	ErrCorruptArtifact = errors.New("corrupt compiled artifact")

	// ErrStateRootMismatch means the store committed a root other than
	// the one the engine computed.
	ErrStateRootMismatch = errors.New("state root mismatch")

	// ErrHalted is returned by every block-producing call once an
	// invariant was violated.
	ErrHalted = errors.New("simulator halted")

	// ErrBlockLimit means a bounded resolve ran out of blocks.
	ErrBlockLimit = errors.New("block limit reached before the outcome was terminal")
)

// InvariantError signals that the simulator detected an internal
// inconsistency. It is never caused by user input: a failing contract
// produces a Failure outcome instead.
//
// Once the runtime reports an InvariantError it stops producing blocks.
type InvariantError struct {
	Reason string
	Height uint64
	Err    error
}

func (e *InvariantError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("INVARIANT violated at height %d: %s: %v", e.Height, e.Reason, e.Err)
	}
	return fmt.Sprintf("INVARIANT violated at height %d: %s", e.Height, e.Reason)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// NewInvariantError creates a new InvariantError.
func NewInvariantError(height uint64, reason string, err error) *InvariantError {
	return &InvariantError{Height: height, Reason: reason, Err: err}
}

// IsInvariant checks whether an error is an InvariantError and returns it.
func IsInvariant(err error) (*InvariantError, bool) {
	var inv *InvariantError
	if errors.As(err, &inv) {
		return inv, true
	}
	return nil, false
}
