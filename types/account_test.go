package types_test

import (
	"testing"

	"github.com/blockberries/blocksim/types"
)

func TestAccountID_Validate(t *testing.T) {
	tests := []struct {
		id    types.AccountID
		valid bool
	}{
		{"ab", true},
		{"alice.root", true},
		{"a-b_c.d", true},
		{"a", false},
		{"Alice", false},
		{".alice", false},
		{"alice.", false},
		{"alice..root", false},
		{"al ice", false},
		{types.AccountID(make([]byte, 65)), false},
	}
	for _, tt := range tests {
		err := tt.id.Validate()
		if (err == nil) != tt.valid {
			t.Errorf("%q: valid=%v, err=%v", tt.id, tt.valid, err)
		}
	}
}

func TestAccountID_Hierarchy(t *testing.T) {
	if !types.AccountID("alice.root").IsSubAccountOf("root") {
		t.Error("alice.root should be a sub-account of root")
	}
	if types.AccountID("a.alice.root").IsSubAccountOf("root") {
		t.Error("only direct children are sub-accounts")
	}
	if types.AccountID("alice.root").IsTopLevel() {
		t.Error("alice.root is not top-level")
	}
	if !types.AccountID("0123456789abcdef0123456789abcdef").IsImplicit() {
		t.Error("32 character top-level ids are implicit")
	}
}

func TestPublicKey_StringParse(t *testing.T) {
	pk := types.NewSignerFromSeed("alice.root", "seed").PublicKey()
	got, err := types.ParsePublicKey(pk.String())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(pk) {
		t.Fatalf("parsed %s, want %s", got, pk)
	}
	if _, err := types.ParsePublicKey("secp256k1:abc"); err == nil {
		t.Fatal("unsupported key type accepted")
	}
}

func TestSigner_Deterministic(t *testing.T) {
	a := types.NewSignerFromSeed("root", "test").PublicKey()
	b := types.NewSignerFromSeed("root", "test").PublicKey()
	c := types.NewSignerFromSeed("root", "other").PublicKey()
	if !a.Equal(b) || a.Equal(c) {
		t.Fatal("keys must depend only on the seed")
	}
}

func TestDeriveReceiptID(t *testing.T) {
	parent := types.CryptoHash{1}
	r0 := types.DeriveReceiptID(parent, 5, 0)
	if r0 == types.DeriveReceiptID(parent, 5, 1) || r0 == types.DeriveReceiptID(parent, 6, 0) {
		t.Fatal("receipt ids must differ by index and height")
	}
	if r0 == types.DeriveDataID(parent, 5, 0) {
		t.Fatal("receipt and data ids share a namespace")
	}
	if r0 != types.DeriveReceiptID(parent, 5, 0) {
		t.Fatal("receipt ids must be deterministic")
	}
}

func TestAction_Validate(t *testing.T) {
	if err := types.Transfer(1).Validate(); err != nil {
		t.Fatal(err)
	}
	if err := (types.Action{Kind: types.ActionTransfer}).Validate(); err == nil {
		t.Fatal("missing payload accepted")
	}
	call := types.FunctionCall("m", nil, 10, 3)
	if call.Deposit() != 3 || call.PrepaidGas() != 10 {
		t.Fatalf("deposit %d gas %d", call.Deposit(), call.PrepaidGas())
	}
}
