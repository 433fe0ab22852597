package types

// BlockHeader is a copyable snapshot of a simulated block.
type BlockHeader struct {
	Height        BlockHeight `cramberry:"1"`
	EpochHeight   EpochHeight `cramberry:"2"`
	Timestamp     uint64      `cramberry:"3"`
	GasPrice      Balance     `cramberry:"4"`
	GasLimit      Gas         `cramberry:"5"`
	GasBurnt      Gas         `cramberry:"6"`
	StateRoot     CryptoHash  `cramberry:"7"`
	PrevStateRoot CryptoHash  `cramberry:"8"`
}

// ViewCallResult is the wire form of a read-only method call. Error is
// empty on success.
type ViewCallResult struct {
	Result []byte   `cramberry:"1"`
	Error  string   `cramberry:"2"`
	Logs   []string `cramberry:"3"`
}

// OK reports whether the call succeeded.
func (r ViewCallResult) OK() bool {
	return r.Error == ""
}
