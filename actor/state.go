package actor

import (
	"fmt"

	"github.com/filecoin-project/go-address"
	cbornode "github.com/ipfs/go-ipld-cbor"

	"github.com/tablelandnetwork/go-query-actor/internal/pagetree"
)

// State is the actor's persisted root: the page tree backing the single
// SQL database file, plus the owner address design §C.1 adds to the
// distilled spec's state. The owner is informational: Actor.Owner returns
// it, and no method checks a caller against it.
//
// State is a plain struct with no untagged-union fields, so — unlike
// Value — it round-trips through go-ipld-cbor's reflection-based
// DumpObject/DecodeInto the same way PageTree does, rather than needing
// hand-written CBOR.
type State struct {
	DB    pagetree.PageTree
	Owner []byte
}

// OwnerAddress decodes the persisted owner bytes back into an address.
// Owner is stored as raw bytes (address.Address.Bytes()) rather than the
// address.Address struct itself, since that struct's unexported fields
// don't round-trip through reflection-based CBOR.
func (s State) OwnerAddress() (address.Address, error) {
	return address.NewFromBytes(s.Owner)
}

// MarshalCBOR encodes State via go-ipld-cbor, the same codec pagetree
// uses for its own nodes.
func (s State) MarshalCBOR() ([]byte, error) {
	return cbornode.DumpObject(s)
}

// UnmarshalState decodes a State previously written by MarshalCBOR.
func UnmarshalState(data []byte) (State, error) {
	var st State
	if err := cbornode.DecodeInto(data, &st); err != nil {
		return State{}, fmt.Errorf("actor: decode state: %w", err)
	}
	return st, nil
}
