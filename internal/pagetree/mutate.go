package pagetree

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
)

// Replace rewrites page i (i < pt.PageCount) to newPage, touching only the
// CIDs on the path from root to that page — every sibling bucket is left
// byte-identical, so CAS content-addressing dedups them for free.
func Replace(ctx context.Context, store Store, pt PageTree, i uint64, newPage []byte) (PageTree, error) {
	if i >= pt.PageCount {
		return PageTree{}, fmt.Errorf("pagetree: replace index %d out of range (count %d)", i, pt.PageCount)
	}
	newPageCID, err := store.Put(ctx, newPage)
	if err != nil {
		return PageTree{}, fmt.Errorf("pagetree: put replacement page: %w", err)
	}

	if pt.TreeHeight == 0 {
		nodes := append([]cid.Cid(nil), pt.Nodes...)
		nodes[i] = newPageCID
		pt.Nodes = nodes
		return pt, nil
	}

	type step struct {
		arr []cid.Cid
		idx uint64
	}
	path := make([]step, 0, pt.TreeHeight)
	level := pt.Nodes
	remaining := i
	for h := pt.TreeHeight; h >= 1; h-- {
		capacity := pow(pt.BuckSize, h)
		idx := remaining / capacity
		remaining = remaining % capacity
		path = append(path, step{arr: level, idx: idx})
		children, err := getBucket(ctx, store, level[idx])
		if err != nil {
			return PageTree{}, fmt.Errorf("pagetree: load bucket at height %d: %w", h, err)
		}
		level = children
	}
	// level is now the leaf page-CID bucket, remaining the index within it.
	leaf := append([]cid.Cid(nil), level...)
	leaf[remaining] = newPageCID
	childCID, err := putBucket(ctx, store, leaf)
	if err != nil {
		return PageTree{}, err
	}
	for k := len(path) - 1; k >= 0; k-- {
		arr := append([]cid.Cid(nil), path[k].arr...)
		arr[path[k].idx] = childCID
		if k == 0 {
			pt.Nodes = arr
			return pt, nil
		}
		childCID, err = putBucket(ctx, store, arr)
		if err != nil {
			return PageTree{}, err
		}
	}
	return pt, nil
}

// Append adds newPage as page pt.PageCount, growing the tree's right spine
// and, when the root overflows buck_size entries, increasing tree height
// by one (design §4.1's "rebuild the affected right spine").
func Append(ctx context.Context, store Store, pt PageTree, newPage []byte) (PageTree, error) {
	pageCID, err := store.Put(ctx, newPage)
	if err != nil {
		return PageTree{}, fmt.Errorf("pagetree: put appended page: %w", err)
	}

	if pt.TreeHeight == 0 {
		if uint64(len(pt.Nodes)) < pt.BuckSize {
			pt.Nodes = append(append([]cid.Cid(nil), pt.Nodes...), pageCID)
			pt.PageCount++
			return pt, nil
		}
		bucket1, err := putBucket(ctx, store, pt.Nodes)
		if err != nil {
			return PageTree{}, err
		}
		bucket2, err := putBucket(ctx, store, []cid.Cid{pageCID})
		if err != nil {
			return PageTree{}, err
		}
		pt.Nodes = []cid.Cid{bucket1, bucket2}
		pt.TreeHeight = 1
		pt.PageCount++
		return pt, nil
	}

	newRoot, full, err := appendAt(ctx, store, pt.Nodes, pt.TreeHeight-1, pt.BuckSize, pageCID)
	if err != nil {
		return PageTree{}, err
	}
	if !full {
		pt.Nodes = newRoot
		pt.PageCount++
		return pt, nil
	}
	// Root level is also full: add a sibling of the same height holding
	// just the new page, and promote.
	rootBucket, err := putBucket(ctx, store, pt.Nodes)
	if err != nil {
		return PageTree{}, err
	}
	siblingCID, err := newSubtree(ctx, store, pt.TreeHeight, pageCID)
	if err != nil {
		return PageTree{}, err
	}
	pt.Nodes = []cid.Cid{rootBucket, siblingCID}
	pt.TreeHeight++
	pt.PageCount++
	return pt, nil
}

// appendAt tries to append pageCID under the rightmost child of children
// (which live at the given childHeight: 0 means each child is a leaf bucket
// holding page CIDs, >0 means each child is a bucket of further bucket
// CIDs, shaped like newSubtree(childHeight)). It returns the
// updated array and, if there was no room anywhere in this subtree, full=true
// so the caller can add a new sibling one level up.
func appendAt(ctx context.Context, store Store, children []cid.Cid, childHeight, buckSize uint64, pageCID cid.Cid) ([]cid.Cid, bool, error) {
	if childHeight == 0 {
		last := len(children) - 1
		leafChildren, err := getBucket(ctx, store, children[last])
		if err != nil {
			return nil, false, err
		}
		if uint64(len(leafChildren)) < buckSize {
			leafChildren = append(append([]cid.Cid(nil), leafChildren...), pageCID)
			newCID, err := putBucket(ctx, store, leafChildren)
			if err != nil {
				return nil, false, err
			}
			out := append([]cid.Cid(nil), children...)
			out[last] = newCID
			return out, false, nil
		}
		if uint64(len(children)) < buckSize {
			newLeaf, err := putBucket(ctx, store, []cid.Cid{pageCID})
			if err != nil {
				return nil, false, err
			}
			return append(append([]cid.Cid(nil), children...), newLeaf), false, nil
		}
		return nil, true, nil
	}

	last := len(children) - 1
	grandchildren, err := getBucket(ctx, store, children[last])
	if err != nil {
		return nil, false, err
	}
	newGrandchildren, full, err := appendAt(ctx, store, grandchildren, childHeight-1, buckSize, pageCID)
	if err != nil {
		return nil, false, err
	}
	if !full {
		newCID, err := putBucket(ctx, store, newGrandchildren)
		if err != nil {
			return nil, false, err
		}
		out := append([]cid.Cid(nil), children...)
		out[last] = newCID
		return out, false, nil
	}
	if uint64(len(children)) < buckSize {
		newChild, err := newSubtree(ctx, store, childHeight, pageCID)
		if err != nil {
			return nil, false, err
		}
		return append(append([]cid.Cid(nil), children...), newChild), false, nil
	}
	return nil, true, nil
}

// newSubtree builds a fresh subtree of the given height containing exactly
// one page, pageCID, and returns its root CID.
func newSubtree(ctx context.Context, store Store, height uint64, pageCID cid.Cid) (cid.Cid, error) {
	if height == 0 {
		return putBucket(ctx, store, []cid.Cid{pageCID})
	}
	childCID, err := newSubtree(ctx, store, height-1, pageCID)
	if err != nil {
		return cid.Undef, err
	}
	return putBucket(ctx, store, []cid.Cid{childCID})
}

// Truncate drops pages with index >= retain, collapsing right-spine
// buckets that no longer hold any retained page. retain must be <=
// pt.PageCount; callers (pagestore) no-op when retain >= PageCount.
func Truncate(ctx context.Context, store Store, pt PageTree, retain uint64) (PageTree, error) {
	if retain == 0 {
		pt.Nodes = nil
		pt.PageCount = 0
		pt.TreeHeight = 0
		return pt, nil
	}
	if pt.TreeHeight == 0 {
		pt.Nodes = append([]cid.Cid(nil), pt.Nodes[:retain]...)
		pt.PageCount = retain
		return pt, nil
	}

	capacity := pow(pt.BuckSize, pt.TreeHeight)
	full := retain / capacity
	remainder := retain % capacity
	if remainder == 0 {
		pt.Nodes = append([]cid.Cid(nil), pt.Nodes[:full]...)
	} else {
		nodes := append([]cid.Cid(nil), pt.Nodes[:full+1]...)
		newLast, err := truncateAt(ctx, store, nodes[full], pt.TreeHeight-1, pt.BuckSize, remainder)
		if err != nil {
			return PageTree{}, err
		}
		nodes[full] = newLast
		pt.Nodes = nodes
	}
	pt.PageCount = retain
	return pt, nil
}

func truncateAt(ctx context.Context, store Store, nodeCID cid.Cid, height, buckSize, retain uint64) (cid.Cid, error) {
	children, err := getBucket(ctx, store, nodeCID)
	if err != nil {
		return cid.Undef, err
	}
	if height == 0 {
		return putBucket(ctx, store, children[:retain])
	}
	capacity := pow(buckSize, height)
	full := retain / capacity
	remainder := retain % capacity
	if remainder == 0 {
		return putBucket(ctx, store, children[:full])
	}
	kept := append([]cid.Cid(nil), children[:full+1]...)
	newLast, err := truncateAt(ctx, store, kept[full], height-1, buckSize, remainder)
	if err != nil {
		return cid.Undef, err
	}
	kept[full] = newLast
	return putBucket(ctx, store, kept)
}

// Store/Putter/getter are the narrow put/get surface Replace/Append/Truncate
// need. Store has the same method set as cas.Store, so any cas.Store (such
// as the one pagestore.PageStore holds) satisfies it.
type Putter interface {
	Put(ctx context.Context, block []byte) (cid.Cid, error)
}

type getter interface {
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
}

type Store interface {
	Putter
	getter
}
