// Package vfs presents the actor's single logical database file to the
// SQL engine, routing every file-level and handle-level call the engine
// makes through pagestore onto the CAS (design §4.4). It plays the role
// the teacher's internal/storage/pager plays for tinySQL's own engine —
// the thing standing between "the engine wants bytes at an offset" and
// wherever those bytes actually live — but the backing medium here is
// content-addressed blocks, not an *os.File.
package vfs

import (
	"context"
	"fmt"

	"github.com/tablelandnetwork/go-query-actor/internal/cas"
	"github.com/tablelandnetwork/go-query-actor/internal/envshim"
	"github.com/tablelandnetwork/go-query-actor/internal/locktable"
	"github.com/tablelandnetwork/go-query-actor/internal/pagestore"
	"github.com/tablelandnetwork/go-query-actor/internal/pagetree"
)

// MainFile is the single logical file name this VFS ever serves to the
// engine (design §6's "VFS registration name").
const MainFile = "main.db"

// Adapter is the actor's VFS. It owns the current PageTree and lock
// table for MainFile; every mutating call updates Tree() in place so the
// actor method driving the engine can fold the result back into State
// once the whole statement completes successfully.
type Adapter struct {
	Store *pagestore.PageStore
	Env   *envshim.EnvShim

	tree  pagetree.PageTree
	locks *locktable.Table
	temps map[string]*tempFile
}

// New returns a VFS adapter over an existing PageTree (an empty one for a
// freshly constructed actor, per Constructor in design §4.5).
func New(store cas.Store, env *envshim.EnvShim, tree pagetree.PageTree) *Adapter {
	return &Adapter{
		Store: pagestore.New(store),
		Env:   env,
		tree:  tree,
		locks: locktable.New(),
		temps: make(map[string]*tempFile),
	}
}

// Tree returns the PageTree as it currently stands, for the caller to
// persist into State after a successful invocation.
func (a *Adapter) Tree() pagetree.PageTree { return a.tree }

// Exists reports whether name refers to a file this VFS knows about.
// MainFile always exists (even with zero pages); anything else must have
// been created via Open(name, temporary=true).
func (a *Adapter) Exists(name string) bool {
	if name == MainFile {
		return true
	}
	_, ok := a.temps[name]
	return ok
}

// Delete removes a temporary file. MainFile cannot be deleted through
// this call (design §9: the logical db file is the actor's entire
// persistent state, not something a statement can unlink).
func (a *Adapter) Delete(name string) error {
	if name == MainFile {
		return fmt.Errorf("vfs: %s cannot be deleted", MainFile)
	}
	delete(a.temps, name)
	return nil
}

// Random returns n deterministic pseudo-random bytes (design §4.6).
func (a *Adapter) Random(n int) []byte { return a.Env.Random(n) }

// TemporaryName returns the fixed name handed out for temp-file
// requests (design §4.6).
func (a *Adapter) TemporaryName() string { return envshim.TemporaryName }

// Open returns a handle to name. If temporary is true and name hasn't
// been seen before, a fresh in-memory temp file is created; these never
// touch the CAS and vanish once the invocation ends, matching the
// actor's single-invocation lifetime.
func (a *Adapter) Open(name string, temporary bool) (*File, error) {
	if name == MainFile {
		return &File{adapter: a, name: name, handle: a.locks.NewHandle()}, nil
	}
	if !temporary {
		return nil, fmt.Errorf("vfs: unknown non-temporary file %q", name)
	}
	tf, ok := a.temps[name]
	if !ok {
		tf = &tempFile{}
		a.temps[name] = tf
	}
	return &File{adapter: a, name: name, temp: tf, handle: a.locks.NewHandle()}, nil
}

// tempFile is a plain in-memory byte buffer; temp files are scratch
// space for the engine's own sort/spill operations, never part of
// persisted state.
type tempFile struct {
	data []byte
}

// File is a single engine connection's handle onto either MainFile (CAS
// backed, through Store) or a temp file (in-memory).
type File struct {
	adapter *Adapter
	name    string
	temp    *tempFile
	handle  *locktable.Handle
}

// Size reports the file's current length in bytes.
func (f *File) Size(ctx context.Context) (int64, error) {
	if f.temp != nil {
		return int64(len(f.temp.data)), nil
	}
	t := f.adapter.tree
	return int64(t.PageCount * t.PageSize), nil
}

// ReadAt fills buf from the file starting at offset, zero-padding any
// portion that lies beyond the current file length (SQLite VFS
// semantics: short reads past EOF are zero-filled, not errors).
func (f *File) ReadAt(ctx context.Context, buf []byte, offset int64) error {
	if f.temp != nil {
		n := copy(buf, sliceFrom(f.temp.data, offset))
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		return nil
	}
	t := f.adapter.tree
	if t.PageSize == 0 {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	remaining := buf
	pos := offset
	for len(remaining) > 0 {
		pageIdx := uint64(pos) / t.PageSize
		within := int(uint64(pos) % t.PageSize)
		page, err := f.adapter.Store.GetPage(ctx, t, pageIdx)
		if err != nil {
			return fmt.Errorf("vfs: read page %d: %w", pageIdx, err)
		}
		n := copy(remaining, page[within:])
		remaining = remaining[n:]
		pos += int64(n)
	}
	return nil
}

// WriteAt writes data at offset, growing the file with zero pages first
// if offset lies beyond the current length. Every call rewrites the
// PageTree held on the adapter; there is no separate flush step, since a
// CAS write is already durable the instant Put succeeds.
func (f *File) WriteAt(ctx context.Context, data []byte, offset int64) error {
	if f.temp != nil {
		end := int(offset) + len(data)
		if end > len(f.temp.data) {
			grown := make([]byte, end)
			copy(grown, f.temp.data)
			f.temp.data = grown
		}
		copy(f.temp.data[offset:], data)
		return nil
	}

	t := f.adapter.tree
	if t.PageSize == 0 {
		return fmt.Errorf("vfs: write to a file with no page size configured")
	}
	if err := f.growTo(ctx, uint64(offset)+uint64(len(data))); err != nil {
		return err
	}
	t = f.adapter.tree

	remaining := data
	pos := offset
	for len(remaining) > 0 {
		pageIdx := uint64(pos) / t.PageSize
		within := int(uint64(pos) % t.PageSize)
		page, err := f.adapter.Store.GetPage(ctx, t, pageIdx)
		if err != nil {
			return fmt.Errorf("vfs: read page %d for partial write: %w", pageIdx, err)
		}
		n := copy(page[within:], remaining)
		newTree, err := f.adapter.Store.PutPage(ctx, t, pageIdx, page)
		if err != nil {
			return fmt.Errorf("vfs: write page %d: %w", pageIdx, err)
		}
		t = newTree
		f.adapter.tree = t
		remaining = remaining[n:]
		pos += int64(n)
	}
	return nil
}

// growTo ensures the file is at least size bytes long by appending
// zero-filled pages.
func (f *File) growTo(ctx context.Context, size uint64) error {
	t := f.adapter.tree
	wantPages := (size + t.PageSize - 1) / t.PageSize
	for t.PageCount < wantPages {
		zero := make([]byte, t.PageSize)
		next, err := f.adapter.Store.PutPage(ctx, t, t.PageCount, zero)
		if err != nil {
			return fmt.Errorf("vfs: grow file: %w", err)
		}
		t = next
		f.adapter.tree = t
	}
	return nil
}

// SetLen truncates or zero-extends the file to size bytes. A temp file
// gets exactly size bytes; MainFile is sized in whole pages, so its length
// becomes size rounded up to the next page boundary.
func (f *File) SetLen(ctx context.Context, size int64) error {
	if f.temp != nil {
		grown := make([]byte, size)
		copy(grown, f.temp.data)
		f.temp.data = grown
		return nil
	}
	t := f.adapter.tree
	wantPages := uint64(0)
	if size > 0 {
		wantPages = (uint64(size) + t.PageSize - 1) / t.PageSize
	}
	if wantPages < t.PageCount {
		next, err := f.adapter.Store.Truncate(ctx, t, wantPages)
		if err != nil {
			return fmt.Errorf("vfs: truncate: %w", err)
		}
		f.adapter.tree = next
		return nil
	}
	return f.growTo(ctx, uint64(size))
}

// Sync is a no-op: a CAS write is durable the moment Put returns, so
// there is nothing to flush (design §4.6 — no OS fsync to model).
func (f *File) Sync(ctx context.Context) error { return nil }

// Lock and Unlock drive this handle's locktable state machine.
func (f *File) Lock(level locktable.Level) error   { return f.handle.Lock(level) }
func (f *File) Unlock(level locktable.Level) error { return f.handle.Unlock(level) }
func (f *File) CurrentLock() locktable.Level       { return f.handle.Level() }

// ChunkSize reports the engine's natural allocation granularity, which is
// simply the page size backing this file.
func (f *File) ChunkSize() int64 { return int64(f.adapter.tree.PageSize) }

// WalIndex always fails: WAL journaling is out of scope (spec.md
// Non-goals) and this VFS never hands out the shared-memory region a WAL
// implementation would map.
func (f *File) WalIndex() ([]byte, error) {
	return nil, fmt.Errorf("vfs: WAL indexing is not supported")
}

func sliceFrom(b []byte, offset int64) []byte {
	if offset >= int64(len(b)) {
		return nil
	}
	return b[offset:]
}
