package pagetree

import (
	"bytes"
	"context"
	"testing"

	"github.com/tablelandnetwork/go-query-actor/internal/cas"
)

func TestConstructEmpty(t *testing.T) {
	store := cas.NewMemStore()
	pt, err := Construct(context.Background(), store, nil, 16, 4)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if pt.PageCount != 0 || pt.TreeHeight != 0 || len(pt.Nodes) != 0 {
		t.Fatalf("expected empty tree, got %+v", pt)
	}
}

func TestConstructRejectsSmallBucket(t *testing.T) {
	store := cas.NewMemStore()
	if _, err := Construct(context.Background(), store, []byte("x"), 16, 1); err == nil {
		t.Fatal("expected error for bucket size < 2")
	}
}

func TestConstructAndGetPageHeightZero(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	data := bytes.Repeat([]byte{0xAB}, 16*3) // 3 full pages, pageSize 16
	pt, err := Construct(ctx, store, data, 16, 8)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if pt.TreeHeight != 0 || pt.PageCount != 3 {
		t.Fatalf("expected height 0, count 3, got %+v", pt)
	}
	for i := uint64(0); i < 3; i++ {
		page, err := GetPage(ctx, store, pt, i)
		if err != nil {
			t.Fatalf("GetPage(%d): %v", i, err)
		}
		if !bytes.Equal(page, data[i*16:(i+1)*16]) {
			t.Fatalf("page %d mismatch", i)
		}
	}
}

func TestGetPageOutOfRangeReadsZero(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	pt, err := Construct(ctx, store, bytes.Repeat([]byte{1}, 16), 16, 4)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	page, err := GetPage(ctx, store, pt, 100)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !bytes.Equal(page, make([]byte, 16)) {
		t.Fatal("expected zero page past EOF")
	}
}

func TestConstructMultiLevel(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	pageSize := uint64(16)
	buckSize := uint64(4)
	pageCount := uint64(20) // 20 leaves, 5 level-1 buckets, 2 root-level buckets (of 4 and 1)
	data := make([]byte, pageSize*pageCount)
	for i := range data {
		data[i] = byte(i)
	}
	pt, err := Construct(ctx, store, data, pageSize, buckSize)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if pt.TreeHeight != 2 {
		t.Fatalf("expected tree height 2, got %d", pt.TreeHeight)
	}
	for i := uint64(0); i < pageCount; i++ {
		page, err := GetPage(ctx, store, pt, i)
		if err != nil {
			t.Fatalf("GetPage(%d): %v", i, err)
		}
		want := data[i*pageSize : (i+1)*pageSize]
		if !bytes.Equal(page, want) {
			t.Fatalf("page %d mismatch: got %v want %v", i, page, want)
		}
	}
}

func TestReplacePreservesOtherPages(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	pageSize := uint64(8)
	data := make([]byte, pageSize*10)
	for i := range data {
		data[i] = byte(i)
	}
	pt, err := Construct(ctx, store, data, pageSize, 3)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	newPage := bytes.Repeat([]byte{0xFF}, int(pageSize))
	pt2, err := Replace(ctx, store, pt, 5, newPage)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, err := GetPage(ctx, store, pt2, 5)
	if err != nil {
		t.Fatalf("GetPage(5): %v", err)
	}
	if !bytes.Equal(got, newPage) {
		t.Fatal("replaced page not updated")
	}
	for i := uint64(0); i < 10; i++ {
		if i == 5 {
			continue
		}
		got, err := GetPage(ctx, store, pt2, i)
		if err != nil {
			t.Fatalf("GetPage(%d): %v", i, err)
		}
		want := data[i*pageSize : (i+1)*pageSize]
		if !bytes.Equal(got, want) {
			t.Fatalf("page %d changed unexpectedly", i)
		}
	}
}

func TestAppendGrowsAndPromotes(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	pageSize := uint64(8)
	buckSize := uint64(2)
	pt, err := Empty(pageSize, buckSize)
	if err != nil {
		t.Fatalf("Empty: %v", err)
	}
	const n = 25
	pages := make([][]byte, n)
	for i := 0; i < n; i++ {
		pages[i] = bytes.Repeat([]byte{byte(i + 1)}, int(pageSize))
		pt, err = Append(ctx, store, pt, pages[i])
		if err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
		if pt.PageCount != uint64(i+1) {
			t.Fatalf("after append %d, page count = %d", i, pt.PageCount)
		}
	}
	for i := 0; i < n; i++ {
		got, err := GetPage(ctx, store, pt, uint64(i))
		if err != nil {
			t.Fatalf("GetPage(%d): %v", i, err)
		}
		if !bytes.Equal(got, pages[i]) {
			t.Fatalf("page %d mismatch after repeated append/promote", i)
		}
	}
}

func TestTruncateDropsTrailingPages(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	pageSize := uint64(8)
	data := make([]byte, pageSize*17)
	for i := range data {
		data[i] = byte(i)
	}
	pt, err := Construct(ctx, store, data, pageSize, 3)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	pt2, err := Truncate(ctx, store, pt, 5)
	if err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if pt2.PageCount != 5 {
		t.Fatalf("expected page count 5, got %d", pt2.PageCount)
	}
	for i := uint64(0); i < 5; i++ {
		got, err := GetPage(ctx, store, pt2, i)
		if err != nil {
			t.Fatalf("GetPage(%d): %v", i, err)
		}
		want := data[i*pageSize : (i+1)*pageSize]
		if !bytes.Equal(got, want) {
			t.Fatalf("page %d mismatch after truncate", i)
		}
	}
	// Pages beyond the new count read as zero, same as any other EOF read.
	got, err := GetPage(ctx, store, pt2, 5)
	if err != nil {
		t.Fatalf("GetPage(5): %v", err)
	}
	if !bytes.Equal(got, make([]byte, pageSize)) {
		t.Fatal("expected zero page beyond truncated count")
	}
}

func TestTruncateToZero(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	pt, err := Construct(ctx, store, bytes.Repeat([]byte{1}, 64), 8, 4)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	pt2, err := Truncate(ctx, store, pt, 0)
	if err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if pt2.PageCount != 0 || pt2.TreeHeight != 0 || len(pt2.Nodes) != 0 {
		t.Fatalf("expected fully empty tree, got %+v", pt2)
	}
}

func TestAbandonedMutationLeavesOriginalIntact(t *testing.T) {
	ctx := context.Background()
	store := cas.NewMemStore()
	pageSize := uint64(8)
	data := make([]byte, pageSize*4)
	pt, err := Construct(ctx, store, data, pageSize, 4)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	_, err = Replace(ctx, store, pt, 0, bytes.Repeat([]byte{9}, int(pageSize)))
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	// pt itself (the "abandoned" mutation's base) must still read the
	// original bytes: Replace never mutates its input tree in place.
	got, err := GetPage(ctx, store, pt, 0)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !bytes.Equal(got, data[:pageSize]) {
		t.Fatal("original tree mutated by an abandoned Replace call")
	}
}
