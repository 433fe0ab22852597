package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/blockberries/blocksim/types"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // A scenario expectation failed
	ExitCommandError = 2 // Command error (bad flags, unreadable files, unreachable server)
)

// ExitError carries the exit code a command should end with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are
// not an ExitError are command errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

func printOutcome(w io.Writer, label string, res types.ExecutionOutcomeWithID) {
	o := res.Outcome
	fmt.Fprintf(w, "%s: %s\n", label, o.Status)
	fmt.Fprintf(w, "  id:       %s\n", res.ID)
	fmt.Fprintf(w, "  executor: %s\n", o.ExecutorID)
	fmt.Fprintf(w, "  gas:      %d\n", o.GasBurnt)
	for _, l := range o.Logs {
		fmt.Fprintf(w, "  log:      %s\n", l)
	}
}

func printView(w io.Writer, label string, res types.ViewCallResult) {
	if !res.OK() {
		fmt.Fprintf(w, "%s: error: %s\n", label, res.Error)
	} else {
		fmt.Fprintf(w, "%s: %s\n", label, res.Result)
	}
	for _, l := range res.Logs {
		fmt.Fprintf(w, "  log: %s\n", l)
	}
}

func printAccount(w io.Writer, id types.AccountID, acc *types.Account) {
	if acc == nil {
		fmt.Fprintf(w, "%s: does not exist\n", id)
		return
	}
	fmt.Fprintf(w, "%s\n", id)
	fmt.Fprintf(w, "  amount:        %d\n", acc.Amount)
	fmt.Fprintf(w, "  locked:        %d\n", acc.Locked)
	fmt.Fprintf(w, "  code hash:     %s\n", acc.CodeHash)
	fmt.Fprintf(w, "  storage usage: %d\n", acc.StorageUsage)
}
