package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/blockberries/blocksim"
	"github.com/blockberries/blocksim/example/counter"
	"github.com/blockberries/blocksim/example/crosscontract"
	"github.com/blockberries/blocksim/example/statusmessage"
	"github.com/blockberries/blocksim/runtime"
	"github.com/blockberries/blocksim/types"

	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionCreateAccount = "create_account"
	ActionDeploy        = "deploy"
	ActionCall          = "call"
	ActionView          = "view"
	ActionTransfer      = "transfer"
	ActionBlocks        = "blocks"
)

// builtinPrefix names contracts compiled into the binary.
const builtinPrefix = "builtin:"

var builtins = map[string][]byte{
	"statusmessage": statusmessage.Code,
	"crosscontract": crosscontract.Code,
	"counter":       counter.Code,
}

// Scenario is a sequence of steps executed against a fresh simulator.
type Scenario struct {
	Name string `yaml:"name"`

	// Genesis is an optional genesis file relative to the scenario.
	Genesis string `yaml:"genesis,omitempty"`

	Steps []Step `yaml:"steps"`

	dir string
}

// Step is one action of a scenario. Amounts and deposits are whole
// tokens, gas is Tgas. Signer defaults to the root account.
type Step struct {
	Action  string          `yaml:"action"`
	Signer  types.AccountID `yaml:"signer,omitempty"`
	Account types.AccountID `yaml:"account,omitempty"`
	Code    string          `yaml:"code,omitempty"`
	Method  string          `yaml:"method,omitempty"`
	Args    string          `yaml:"args,omitempty"`
	Amount  uint64          `yaml:"amount,omitempty"`
	Deposit uint64          `yaml:"deposit,omitempty"`
	Gas     uint64          `yaml:"gas,omitempty"`
	Blocks  uint64          `yaml:"blocks,omitempty"`
	Expect  *Expect         `yaml:"expect,omitempty"`
}

// Expect checks the result of a step. Nil fields are not checked.
type Expect struct {
	// Status is "success" or "failure".
	Status string   `yaml:"status,omitempty"`
	Value  *string  `yaml:"value,omitempty"`
	Logs   []string `yaml:"logs,omitempty"`
}

// LoadScenario reads a scenario YAML file, rejecting unknown fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	s.dir = filepath.Dir(path)
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	for i, st := range s.Steps {
		switch st.Action {
		case ActionBlocks:
		case ActionCreateAccount, ActionTransfer:
			if st.Account == "" {
				return fmt.Errorf("step %d (%s): account is required", i+1, st.Action)
			}
		case ActionDeploy:
			if st.Account == "" || st.Code == "" {
				return fmt.Errorf("step %d (%s): account and code are required", i+1, st.Action)
			}
		case ActionCall, ActionView:
			if st.Account == "" || st.Method == "" {
				return fmt.Errorf("step %d (%s): account and method are required", i+1, st.Action)
			}
		default:
			return fmt.Errorf("step %d: unknown action %q", i+1, st.Action)
		}
		if e := st.Expect; e != nil && e.Status != "" && e.Status != "success" && e.Status != "failure" {
			return fmt.Errorf("step %d: expect.status must be success or failure", i+1)
		}
	}
	return nil
}

// GenesisPath returns the genesis file path, or "" when none is set.
func (s *Scenario) GenesisPath() string {
	if s.Genesis == "" {
		return ""
	}
	return filepath.Join(s.dir, s.Genesis)
}

// loadCode reads a contract from a builtin name or a file relative to
// dir.
func loadCode(dir, ref string) ([]byte, error) {
	if name, ok := strings.CutPrefix(ref, builtinPrefix); ok {
		code, ok := builtins[name]
		if !ok {
			return nil, fmt.Errorf("unknown builtin contract %q", name)
		}
		return code, nil
	}
	if !filepath.IsAbs(ref) {
		ref = filepath.Join(dir, ref)
	}
	return os.ReadFile(ref)
}

// Run executes every step and reports each result to w. It returns
// the number of failed expectations; an error means a step could not
// be executed at all.
func (s *Scenario) Run(ctx context.Context, drv blocksim.Driver, o *Operator, w io.Writer) (int, error) {
	failed := 0
	for i, st := range s.Steps {
		label := fmt.Sprintf("step %d %s", i+1, st.Action)
		if st.Account != "" {
			label += " " + string(st.Account)
		}
		signer := st.Signer
		if signer == "" {
			signer = runtime.RootAccount
		}
		gas := types.Gas(st.Gas) * types.TeraGas
		if gas == 0 {
			gas = types.DefaultMaxTotalPrepaidGas
		}

		var (
			res  types.ExecutionOutcomeWithID
			view types.ViewCallResult
			err  error
		)
		switch st.Action {
		case ActionBlocks:
			err = drv.ProduceBlocks(ctx, st.Blocks)
			if err == nil {
				fmt.Fprintf(w, "%s: produced %d\n", label, st.Blocks)
			}
		case ActionCreateAccount:
			res, err = o.CreateAccount(ctx, signer, st.Account, types.Tokens(st.Amount))
		case ActionDeploy:
			var code []byte
			if code, err = loadCode(s.dir, st.Code); err == nil {
				res, err = o.Deploy(ctx, signer, st.Account, code, types.Tokens(st.Amount))
			}
		case ActionCall:
			res, err = o.Call(ctx, signer, st.Account, st.Method, []byte(st.Args), gas, types.Tokens(st.Deposit))
		case ActionTransfer:
			res, err = o.Transfer(ctx, signer, st.Account, types.Tokens(st.Amount))
		case ActionView:
			view, err = o.View(ctx, st.Account, st.Method, []byte(st.Args))
		}
		if err != nil {
			return failed, fmt.Errorf("%s: %w", label, err)
		}

		var mismatch []string
		switch st.Action {
		case ActionBlocks:
		case ActionView:
			printView(w, label, view)
			mismatch = st.Expect.checkView(view)
		default:
			printOutcome(w, label, res)
			mismatch = st.Expect.checkOutcome(res.Outcome)
		}
		for _, m := range mismatch {
			fmt.Fprintf(w, "  FAIL: %s\n", m)
		}
		if len(mismatch) > 0 {
			failed++
		}
	}
	return failed, nil
}

func (e *Expect) checkOutcome(o types.ExecutionOutcome) []string {
	if e == nil {
		return nil
	}
	ok := o.Status.Kind == types.StatusSuccessValue
	return e.check(ok, o.Status.Value, o.Logs)
}

func (e *Expect) checkView(v types.ViewCallResult) []string {
	if e == nil {
		return nil
	}
	return e.check(v.OK(), v.Result, v.Logs)
}

func (e *Expect) check(ok bool, value []byte, logs []string) []string {
	var out []string
	switch {
	case e.Status == "success" && !ok:
		out = append(out, "expected success")
	case e.Status == "failure" && ok:
		out = append(out, "expected failure")
	}
	if e.Value != nil && *e.Value != string(value) {
		out = append(out, fmt.Sprintf("expected value %q, got %q", *e.Value, value))
	}
	if e.Logs != nil && !slices.Equal(e.Logs, logs) {
		out = append(out, fmt.Sprintf("expected logs %q, got %q", e.Logs, logs))
	}
	return out
}
