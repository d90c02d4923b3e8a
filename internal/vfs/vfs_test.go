package vfs

import (
	"bytes"
	"context"
	"testing"

	"github.com/tablelandnetwork/go-query-actor/internal/cas"
	"github.com/tablelandnetwork/go-query-actor/internal/envshim"
	"github.com/tablelandnetwork/go-query-actor/internal/locktable"
	"github.com/tablelandnetwork/go-query-actor/internal/pagetree"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	store := cas.NewMemStore()
	env, err := envshim.New(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("envshim.New: %v", err)
	}
	tree, err := pagetree.Empty(64, 8)
	if err != nil {
		t.Fatalf("pagetree.Empty: %v", err)
	}
	return New(store, env, tree)
}

func TestWriteAtGrowsFileAndReadsBack(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	f, err := a.Open(MainFile, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	payload := []byte("hello tableland")
	if err := f.WriteAt(ctx, payload, 100); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	size, err := f.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size < int64(100+len(payload)) {
		t.Fatalf("file did not grow to cover the write, size=%d", size)
	}
	got := make([]byte, len(payload))
	if err := f.ReadAt(ctx, got, 100); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestReadPastEOFReturnsZero(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	f, err := a.Open(MainFile, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, 16)
	if err := f.ReadAt(ctx, buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(buf, make([]byte, 16)) {
		t.Fatal("expected zero bytes reading an empty file")
	}
}

func TestSetLenTruncates(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	f, err := a.Open(MainFile, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.WriteAt(ctx, bytes.Repeat([]byte{1}, 200), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := f.SetLen(ctx, 64); err != nil {
		t.Fatalf("SetLen: %v", err)
	}
	size, err := f.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 64 {
		t.Fatalf("expected size 64 after truncate, got %d", size)
	}
}

func TestTemporaryFilesAreInMemoryAndIsolated(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	name := a.TemporaryName()
	f, err := a.Open(name, true)
	if err != nil {
		t.Fatalf("Open temp: %v", err)
	}
	if err := f.WriteAt(ctx, []byte("scratch"), 0); err != nil {
		t.Fatalf("WriteAt temp: %v", err)
	}
	if a.Exists(MainFile) == false {
		t.Fatal("MainFile should always exist")
	}
	if !a.Exists(name) {
		t.Fatal("temp file should exist after open+write")
	}
	if err := a.Delete(name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if a.Exists(name) {
		t.Fatal("temp file should be gone after Delete")
	}
}

func TestLockEscalationDeniedAcrossHandles(t *testing.T) {
	a := newTestAdapter(t)
	f1, err := a.Open(MainFile, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f2, err := a.Open(MainFile, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f1.Lock(locktable.Shared); err != nil {
		t.Fatalf("f1 Lock(Shared): %v", err)
	}
	if err := f1.Lock(locktable.Reserved); err != nil {
		t.Fatalf("f1 Lock(Reserved): %v", err)
	}
	if err := f2.Lock(locktable.Shared); err != nil {
		t.Fatalf("f2 Lock(Shared): %v", err)
	}
	if err := f2.Lock(locktable.Reserved); err != locktable.ErrDenied {
		t.Fatalf("expected f2 to be denied Reserved while f1 holds it, got %v", err)
	}
}
