// Package pagestore is the mutable front the VFS adapter drives: get/put a
// page by index, or truncate to a page count, returning the resulting
// PageTree from every mutating call.
//
// Grounded on the teacher's internal/storage/pager read/write/truncate
// surface (backend.go), but simplified to whole-page granularity over a
// CAS instead of *os.File offsets — here "persisting" a mutation means
// returning the new PageTree for the caller (the actor's Execute method)
// to fold into its State before StateCommit, not an fsync.
package pagestore

import (
	"context"
	"fmt"

	"github.com/tablelandnetwork/go-query-actor/internal/cas"
	"github.com/tablelandnetwork/go-query-actor/internal/pagetree"
)

// PageStore wraps a CAS and the PageTree describing the current logical
// file. It holds no other state: every call takes the tree it should
// operate on and returns the tree that resulted, so callers decide when
// (and whether) to commit it.
type PageStore struct {
	CAS cas.Store
}

// New returns a PageStore backed by store.
func New(store cas.Store) *PageStore {
	return &PageStore{CAS: store}
}

// GetPage reads page i of pt. Reads past EOF return a zeroed page, and a
// short final page (left by constructing from a byte image whose length
// is not a page multiple) is zero-padded to the full page size.
func (s *PageStore) GetPage(ctx context.Context, pt pagetree.PageTree, i uint64) ([]byte, error) {
	b, err := pagetree.GetPage(ctx, s.CAS, pt, i)
	if err != nil {
		return nil, fmt.Errorf("pagestore: get page %d: %w", i, err)
	}
	if uint64(len(b)) < pt.PageSize {
		b = append(b, make([]byte, pt.PageSize-uint64(len(b)))...)
	}
	return b, nil
}

// PutPage writes page i of pt. i == pt.PageCount appends a new page;
// i < pt.PageCount replaces an existing one; i > pt.PageCount is rejected
// (the VFS adapter never asks for a page gap — SetLen covers growth).
func (s *PageStore) PutPage(ctx context.Context, pt pagetree.PageTree, i uint64, data []byte) (pagetree.PageTree, error) {
	if uint64(len(data)) != pt.PageSize {
		return pagetree.PageTree{}, fmt.Errorf("pagestore: page write must be exactly %d bytes, got %d", pt.PageSize, len(data))
	}
	switch {
	case i < pt.PageCount:
		next, err := pagetree.Replace(ctx, s.CAS, pt, i, data)
		if err != nil {
			return pagetree.PageTree{}, fmt.Errorf("pagestore: replace page %d: %w", i, err)
		}
		return next, nil
	case i == pt.PageCount:
		next, err := pagetree.Append(ctx, s.CAS, pt, data)
		if err != nil {
			return pagetree.PageTree{}, fmt.Errorf("pagestore: append page %d: %w", i, err)
		}
		return next, nil
	default:
		return pagetree.PageTree{}, fmt.Errorf("pagestore: write at page %d leaves a gap (page count %d)", i, pt.PageCount)
	}
}

// Truncate drops pages at or beyond retainPages. A retainPages >= the
// current page count is a no-op, matching VFS SetLen growing a file by
// appending zero pages instead (handled by the VFS adapter, not here).
func (s *PageStore) Truncate(ctx context.Context, pt pagetree.PageTree, retainPages uint64) (pagetree.PageTree, error) {
	if retainPages >= pt.PageCount {
		return pt, nil
	}
	next, err := pagetree.Truncate(ctx, s.CAS, pt, retainPages)
	if err != nil {
		return pagetree.PageTree{}, fmt.Errorf("pagestore: truncate to %d pages: %w", retainPages, err)
	}
	return next, nil
}
