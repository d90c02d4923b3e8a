// Package cas defines the content-addressed block store contract the rest
// of the actor is built against.
//
// What: a key/value interface over immutable byte blobs, keyed by the
// Blake2b-256 multihash of their content (§6 of the design: "Blake2b-256
// multihash, CBOR codec"). Equality of bytes implies equality of CID.
// How: Store is intentionally the narrowest interface that the page tree,
// page store, and VFS adapter need — Put and Get — so any CAS
// implementation the host runtime provides can be substituted without
// touching the tree/store logic above it.
// Why: the actor's only persistent storage is the host-provided CAS; every
// other component in this module is a pure function of (Store, CID).
package cas

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// Codec is the CID multicodec used for every block this actor writes.
// DAG-CBOR, matching the CBOR encoding used for PageTree nodes and State.
const Codec = cid.DagCBOR

// HashFn is the multihash function used to derive a CID from bytes.
// Blake2b-256, matching the CAS contract in spec §6.
const HashFn = mh.BLAKE2B_MIN + 31 // blake2b-256

// Store is the CAS contract: put immutable bytes, get them back by CID.
// Implementations must be deterministic (same bytes -> same CID) and
// idempotent (Put of already-stored bytes is a cheap no-op).
type Store interface {
	Put(ctx context.Context, block []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
}

// ErrBlockNotFound is returned by Get when no block exists for the CID.
type ErrBlockNotFound struct{ CID cid.Cid }

func (e *ErrBlockNotFound) Error() string {
	return fmt.Sprintf("cas: block not found: %s", e.CID)
}

// Sum computes the CID that Put(block) would return, without storing
// anything. Used by callers that need to predict a CID (tests, dedup
// checks) without a live Store.
func Sum(block []byte) (cid.Cid, error) {
	hash, err := mh.Sum(block, HashFn, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("cas: hash block: %w", err)
	}
	return cid.NewCidV1(uint64(Codec), hash), nil
}
