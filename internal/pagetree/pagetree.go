// Package pagetree implements the PageTree descriptor from the design: a
// shallow, bounded fan-out tree of CIDs that maps a logical page index to
// the CAS block holding that page's bytes.
//
// What: Construct builds a PageTree from a raw byte image; GetPage looks a
// page up in O(tree height); Append/Replace/Truncate mutate the tree
// functionally, returning a new PageTree without touching the CAS blocks
// reachable from the old one (so an abandoned mutation leaves no trace in
// the committed state — see PageTree invariants and the atomicity property
// this gives the actor for free).
// How: grounded on the same shape of problem the teacher's
// internal/storage/pager solves — a page-indexed structure with a small
// root kept inline and larger structure pushed out to a block store — but
// here the "disk" is the CAS and the root is the in-state PageTree struct
// rather than a superblock page. See pagestore for the mutation entry
// points actually exercised by the VFS.
package pagetree

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"

	"github.com/tablelandnetwork/go-query-actor/internal/cas"
)

// DefaultPageSize matches the SQL engine's page granularity.
const DefaultPageSize = 4096

// PageTree is the persistent descriptor described in the design doc §3.
// It is serialized as part of the actor's State.
type PageTree struct {
	PageSize   uint64     `refmt:"pageSize"`
	BuckSize   uint64     `refmt:"buckSize"`
	PageCount  uint64     `refmt:"pageCount"`
	TreeHeight uint64     `refmt:"treeHeight"`
	Nodes      []cid.Cid  `refmt:"nodes"`
}

// Empty returns a zero-page PageTree for the given page/bucket size.
func Empty(pageSize, buckSize uint64) (PageTree, error) {
	if buckSize < 2 {
		return PageTree{}, fmt.Errorf("pagetree: bucket size must be >= 2, got %d", buckSize)
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	return PageTree{PageSize: pageSize, BuckSize: buckSize}, nil
}

// Construct builds a PageTree from a raw byte image, per design §4.1: chop
// into pages, put each page, then fold levels of up-to-buckSize CIDs until
// one level fits in a single bucket.
func Construct(ctx context.Context, store cas.Store, data []byte, pageSize, buckSize uint64) (PageTree, error) {
	if buckSize < 2 {
		return PageTree{}, fmt.Errorf("pagetree: bucket size must be >= 2, got %d", buckSize)
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	pageCount := uint64(0)
	if len(data) > 0 {
		pageCount = (uint64(len(data)) + pageSize - 1) / pageSize
	}

	leaves := make([]cid.Cid, 0, pageCount)
	for i := uint64(0); i < pageCount; i++ {
		start := i * pageSize
		end := start + pageSize
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		id, err := store.Put(ctx, data[start:end])
		if err != nil {
			return PageTree{}, fmt.Errorf("pagetree: put page %d: %w", i, err)
		}
		leaves = append(leaves, id)
	}

	level := leaves
	height := uint64(0)
	for uint64(len(level)) > buckSize {
		next := make([]cid.Cid, 0, (uint64(len(level))+buckSize-1)/buckSize)
		for start := 0; start < len(level); start += int(buckSize) {
			end := start + int(buckSize)
			if end > len(level) {
				end = len(level)
			}
			id, err := putBucket(ctx, store, level[start:end])
			if err != nil {
				return PageTree{}, fmt.Errorf("pagetree: put bucket level %d: %w", height, err)
			}
			next = append(next, id)
		}
		level = next
		height++
	}

	return PageTree{
		PageSize:   pageSize,
		BuckSize:   buckSize,
		PageCount:  pageCount,
		TreeHeight: height,
		Nodes:      level,
	}, nil
}

// GetPage fetches the bytes for logical page i, in exactly tree_height+1
// CAS reads (design §4.1, property P2). Pages past EOF read as zeros.
func GetPage(ctx context.Context, store cas.Store, pt PageTree, i uint64) ([]byte, error) {
	if i >= pt.PageCount {
		return make([]byte, pt.PageSize), nil
	}
	if pt.TreeHeight == 0 {
		return store.Get(ctx, pt.Nodes[i])
	}

	level := pt.Nodes
	remaining := i
	for h := pt.TreeHeight; h >= 1; h-- {
		capacity := pow(pt.BuckSize, h)
		idx := remaining / capacity
		remaining = remaining % capacity
		if idx >= uint64(len(level)) {
			return nil, fmt.Errorf("pagetree: page %d out of range at height %d", i, h)
		}
		children, err := getBucket(ctx, store, level[idx])
		if err != nil {
			return nil, fmt.Errorf("pagetree: load bucket at height %d: %w", h, err)
		}
		level = children
	}
	if remaining >= uint64(len(level)) {
		return nil, fmt.Errorf("pagetree: page %d out of range in leaf bucket", i)
	}
	return store.Get(ctx, level[remaining])
}

// pow computes base^exp for small, non-negative exponents without risking
// the overflow a generic math/big round trip would cost on every lookup;
// tree heights stay in the single digits for any realistic bucket size.
func pow(base, exp uint64) uint64 {
	result := uint64(1)
	for i := uint64(0); i < exp; i++ {
		result *= base
	}
	return result
}

func putBucket(ctx context.Context, store cas.Store, children []cid.Cid) (cid.Cid, error) {
	cp := make([]cid.Cid, len(children))
	copy(cp, children)
	raw, err := cbor.DumpObject(cp)
	if err != nil {
		return cid.Undef, fmt.Errorf("pagetree: encode bucket: %w", err)
	}
	return store.Put(ctx, raw)
}

func getBucket(ctx context.Context, store cas.Store, id cid.Cid) ([]cid.Cid, error) {
	raw, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var children []cid.Cid
	if err := cbor.DecodeInto(raw, &children); err != nil {
		return nil, fmt.Errorf("pagetree: decode bucket: %w", err)
	}
	return children, nil
}
