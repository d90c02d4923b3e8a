package pagestore

import (
	"bytes"
	"context"
	"testing"

	"github.com/tablelandnetwork/go-query-actor/internal/cas"
	"github.com/tablelandnetwork/go-query-actor/internal/pagetree"
)

func TestPutPageAppendThenReplace(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	s := New(store)
	pt, err := pagetree.Empty(8, 4)
	if err != nil {
		t.Fatalf("Empty: %v", err)
	}

	page0 := bytes.Repeat([]byte{1}, 8)
	pt, err = s.PutPage(ctx, pt, 0, page0)
	if err != nil {
		t.Fatalf("PutPage append: %v", err)
	}
	if pt.PageCount != 1 {
		t.Fatalf("expected page count 1, got %d", pt.PageCount)
	}

	page0b := bytes.Repeat([]byte{2}, 8)
	pt, err = s.PutPage(ctx, pt, 0, page0b)
	if err != nil {
		t.Fatalf("PutPage replace: %v", err)
	}
	got, err := s.GetPage(ctx, pt, 0)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !bytes.Equal(got, page0b) {
		t.Fatal("replace did not take effect")
	}
}

func TestPutPageRejectsGapAndWrongSize(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	s := New(store)
	pt, _ := pagetree.Empty(8, 4)

	if _, err := s.PutPage(ctx, pt, 1, bytes.Repeat([]byte{0}, 8)); err == nil {
		t.Fatal("expected error writing past page count (gap)")
	}
	if _, err := s.PutPage(ctx, pt, 0, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for wrong page size")
	}
}

func TestTruncateNoOpWhenRetainingAllPages(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	s := New(store)
	pt, _ := pagetree.Empty(8, 4)
	pt, err := s.PutPage(ctx, pt, 0, bytes.Repeat([]byte{1}, 8))
	if err != nil {
		t.Fatalf("PutPage: %v", err)
	}
	pt2, err := s.Truncate(ctx, pt, 5)
	if err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if pt2.PageCount != pt.PageCount {
		t.Fatal("truncate to a count >= current should be a no-op")
	}
}

func TestTruncateThenAppendRebuildsCleanly(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	s := New(store)
	pt, _ := pagetree.Empty(8, 2)
	for i := 0; i < 6; i++ {
		var err error
		pt, err = s.PutPage(ctx, pt, uint64(i), bytes.Repeat([]byte{byte(i)}, 8))
		if err != nil {
			t.Fatalf("PutPage(%d): %v", i, err)
		}
	}
	pt, err := s.Truncate(ctx, pt, 2)
	if err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	pt, err = s.PutPage(ctx, pt, 2, bytes.Repeat([]byte{0xAA}, 8))
	if err != nil {
		t.Fatalf("PutPage after truncate: %v", err)
	}
	got, err := s.GetPage(ctx, pt, 2)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0xAA}, 8)) {
		t.Fatal("page written after truncate+append mismatch")
	}
	for i := 0; i < 2; i++ {
		got, err := s.GetPage(ctx, pt, uint64(i))
		if err != nil {
			t.Fatalf("GetPage(%d): %v", i, err)
		}
		if !bytes.Equal(got, bytes.Repeat([]byte{byte(i)}, 8)) {
			t.Fatalf("retained page %d mismatch", i)
		}
	}
}
