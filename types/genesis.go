package types

import "fmt"

// StateRecordKind selects the payload of a StateRecord.
type StateRecordKind uint8

const (
	RecordAccount StateRecordKind = iota + 1
	RecordAccessKey
	RecordContract
	RecordData
)

func (k StateRecordKind) String() string {
	switch k {
	case RecordAccount:
		return "Account"
	case RecordAccessKey:
		return "AccessKey"
	case RecordContract:
		return "Contract"
	case RecordData:
		return "Data"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// StateRecord is one initial state entry of the genesis.
type StateRecord struct {
	Kind      StateRecordKind `cramberry:"1"`
	AccountID AccountID       `cramberry:"2"`
	Account   *Account        `cramberry:"3"`
	PublicKey PublicKey       `cramberry:"4"`
	AccessKey *AccessKey      `cramberry:"5"`
	Code      []byte          `cramberry:"6"`
	DataKey   []byte          `cramberry:"7"`
	Value     []byte          `cramberry:"8"`
}

// AccountRecord returns an Account state record.
func AccountRecord(id AccountID, account Account) StateRecord {
	return StateRecord{Kind: RecordAccount, AccountID: id, Account: &account}
}

// AccessKeyRecord returns an AccessKey state record.
func AccessKeyRecord(id AccountID, pk PublicKey, key AccessKey) StateRecord {
	return StateRecord{Kind: RecordAccessKey, AccountID: id, PublicKey: pk, AccessKey: &key}
}

// ContractRecord returns a Contract state record.
func ContractRecord(id AccountID, code []byte) StateRecord {
	return StateRecord{Kind: RecordContract, AccountID: id, Code: code}
}

// DataRecord returns a contract Data state record.
func DataRecord(id AccountID, key, value []byte) StateRecord {
	return StateRecord{Kind: RecordData, AccountID: id, DataKey: key, Value: value}
}

// AccountInfo describes a genesis validator.
type AccountInfo struct {
	AccountID AccountID `cramberry:"1"`
	PublicKey PublicKey `cramberry:"2"`
	Amount    Balance   `cramberry:"3"`
}

// ChainConfig holds the chain-level parameters derived from the
// simulator's genesis configuration.
type ChainConfig struct {
	GenesisTime           uint64        `cramberry:"1"`
	GenesisHeight         BlockHeight   `cramberry:"2"`
	GasLimit              Gas           `cramberry:"3"`
	MinGasPrice           Balance       `cramberry:"4"`
	EpochLength           uint64        `cramberry:"5"`
	NumBlocksPerYear      uint64        `cramberry:"6"`
	NumBlockProducerSeats uint64        `cramberry:"7"`
	ProtocolVersion       uint32        `cramberry:"8"`
	RuntimeConfig         RuntimeConfig `cramberry:"9"`
	Validators            []AccountInfo `cramberry:"10"`
}

// Genesis is what the engine needs to build the initial state.
type Genesis struct {
	Config  ChainConfig   `cramberry:"1"`
	Records []StateRecord `cramberry:"2"`
}
