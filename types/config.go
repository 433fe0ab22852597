package types

import "time"

// Token scale used by the simulator's defaults.
const (
	OneToken    Balance = 1_000_000_000_000_000
	RootBalance Balance = 1_000 * OneToken

	// DefaultGasPrice is the balance charged per unit of gas.
	DefaultGasPrice Balance = 1

	TeraGas Gas = 1_000_000_000_000

	// MaxViewGas bounds read-only method calls.
	MaxViewGas Gas = 200 * TeraGas

	// DefaultMaxTotalPrepaidGas bounds the gas one transaction may attach.
	DefaultMaxTotalPrepaidGas Gas = 300 * TeraGas
)

// Tokens returns n whole tokens.
func Tokens(n uint64) Balance {
	return n * OneToken
}

// Fee is charged once when an action is sent and once when it executes.
type Fee struct {
	Send      Gas `cramberry:"1"`
	Execution Gas `cramberry:"2"`
}

// Total returns send plus execution.
func (f Fee) Total() Gas { return f.Send + f.Execution }

// ActionFees lists the static cost of every action.
type ActionFees struct {
	ActionReceiptCreation      Fee `cramberry:"1"`
	DataReceiptCreationBase    Fee `cramberry:"2"`
	DataReceiptCreationPerByte Fee `cramberry:"3"`
	CreateAccount              Fee `cramberry:"4"`
	DeployContract             Fee `cramberry:"5"`
	DeployContractPerByte      Fee `cramberry:"6"`
	FunctionCall               Fee `cramberry:"7"`
	FunctionCallPerByte        Fee `cramberry:"8"`
	Transfer                   Fee `cramberry:"9"`
	Stake                      Fee `cramberry:"10"`
	AddKeyFullAccess           Fee `cramberry:"11"`
	AddKeyFunctionCall         Fee `cramberry:"12"`
	DeleteKey                  Fee `cramberry:"13"`
	DeleteAccount              Fee `cramberry:"14"`
}

// HostCosts lists the gas charged by contract host functions.
type HostCosts struct {
	Base                 Gas `cramberry:"1"`
	ContractLoadBase     Gas `cramberry:"2"`
	ContractLoadPerByte  Gas `cramberry:"3"`
	StorageWriteBase     Gas `cramberry:"4"`
	StorageWritePerByte  Gas `cramberry:"5"`
	StorageReadBase      Gas `cramberry:"6"`
	StorageReadPerByte   Gas `cramberry:"7"`
	StorageRemoveBase    Gas `cramberry:"8"`
	StorageHasKeyBase    Gas `cramberry:"9"`
	LogBase              Gas `cramberry:"10"`
	LogPerByte           Gas `cramberry:"11"`
	PromiseBase          Gas `cramberry:"12"`
	PromiseResultPerByte Gas `cramberry:"13"`
}

// VMConfig configures the contract interpreter.
type VMConfig struct {
	Costs            HostCosts `cramberry:"1"`
	MaxGasBurnt      Gas       `cramberry:"2"`
	MaxContractSize  uint64    `cramberry:"3"`
	MaxLogs          uint32    `cramberry:"4"`
	MaxCallStackSize uint32    `cramberry:"5"`
	// ExecutionTimeout bounds wall-clock time of one call. A call that
	// hits it burns all of its prepaid gas.
	ExecutionTimeout Duration `cramberry:"6"`
}

// RuntimeConfig holds the protocol parameters the engine applies.
type RuntimeConfig struct {
	StorageAmountPerByte Balance    `cramberry:"1"`
	Fees                 ActionFees `cramberry:"2"`
	VM                   VMConfig   `cramberry:"3"`
	MaxTotalPrepaidGas   Gas        `cramberry:"4"`
	NumBytesAccount      uint64     `cramberry:"5"`
	NumExtraBytesRecord  uint64     `cramberry:"6"`
}

func fee(g Gas) Fee { return Fee{Send: g, Execution: g} }

// DefaultRuntimeConfig returns the parameters used by default.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		StorageAmountPerByte: 10_000_000_000,
		Fees: ActionFees{
			ActionReceiptCreation:      fee(108_059_500_000),
			DataReceiptCreationBase:    fee(4_697_339_419_375),
			DataReceiptCreationPerByte: fee(17_212_011),
			CreateAccount:              fee(99_607_375_000),
			DeployContract:             fee(184_765_750_000),
			DeployContractPerByte:      fee(6_812_999),
			FunctionCall:               fee(2_319_861_500_000),
			FunctionCallPerByte:        fee(2_235_934),
			Transfer:                   fee(115_123_062_500),
			Stake:                      fee(141_715_687_500),
			AddKeyFullAccess:           fee(101_765_125_000),
			AddKeyFunctionCall:         fee(102_217_625_000),
			DeleteKey:                  fee(94_946_625_000),
			DeleteAccount:              fee(147_489_000_000),
		},
		VM: VMConfig{
			Costs: HostCosts{
				Base:                 264_768_111,
				ContractLoadBase:     35_445_963,
				ContractLoadPerByte:  216_750,
				StorageWriteBase:     64_196_736_000,
				StorageWritePerByte:  31_018_539,
				StorageReadBase:      56_356_845_750,
				StorageReadPerByte:   5_611_005,
				StorageRemoveBase:    53_473_030_500,
				StorageHasKeyBase:    54_039_896_625,
				LogBase:              3_543_313_050,
				LogPerByte:           13_198_791,
				PromiseBase:          1_000_000_000,
				PromiseResultPerByte: 1_000_000,
			},
			MaxGasBurnt:      DefaultMaxTotalPrepaidGas,
			MaxContractSize:  4 << 20,
			MaxLogs:          100,
			MaxCallStackSize: 256,
			ExecutionTimeout: DurationFromGo(2 * time.Second),
		},
		MaxTotalPrepaidGas:  DefaultMaxTotalPrepaidGas,
		NumBytesAccount:     100,
		NumExtraBytesRecord: 40,
	}
}
