package locktable

import "testing"

func TestSharedAllowsMultipleReaders(t *testing.T) {
	tbl := New()
	h1 := tbl.NewHandle()
	h2 := tbl.NewHandle()
	if err := h1.Lock(Shared); err != nil {
		t.Fatalf("h1 Lock(Shared): %v", err)
	}
	if err := h2.Lock(Shared); err != nil {
		t.Fatalf("h2 Lock(Shared): %v", err)
	}
}

func TestOnlyOneReservedAtATime(t *testing.T) {
	tbl := New()
	h1 := tbl.NewHandle()
	h2 := tbl.NewHandle()
	mustLock(t, h1, Shared)
	mustLock(t, h2, Shared)
	mustLock(t, h1, Reserved)
	if err := h2.Lock(Reserved); err != ErrDenied {
		t.Fatalf("expected ErrDenied for second Reserved, got %v", err)
	}
}

func TestExclusiveWaitsForOtherReaders(t *testing.T) {
	tbl := New()
	writer := tbl.NewHandle()
	reader := tbl.NewHandle()
	mustLock(t, writer, Shared)
	mustLock(t, reader, Shared)
	mustLock(t, writer, Reserved)
	if err := writer.Lock(Exclusive); err != ErrDenied {
		t.Fatalf("expected ErrDenied while another reader holds Shared, got %v", err)
	}
	if writer.Level() != Pending {
		t.Fatalf("expected a denied Exclusive attempt to leave the writer at Pending, got %s", writer.Level())
	}
	if err := reader.Unlock(None); err != nil {
		t.Fatalf("reader Unlock: %v", err)
	}
	if err := writer.Lock(Exclusive); err != nil {
		t.Fatalf("writer Lock(Exclusive) after reader released: %v", err)
	}
}

func TestPendingCannotBeRequestedDirectly(t *testing.T) {
	tbl := New()
	h := tbl.NewHandle()
	mustLock(t, h, Shared)
	mustLock(t, h, Reserved)
	if err := h.Lock(Pending); err == nil {
		t.Fatalf("expected a direct Pending request to be rejected")
	}
}

func TestPendingBlocksNewSharedAndReservedFromOthers(t *testing.T) {
	tbl := New()
	writer := tbl.NewHandle()
	reader := tbl.NewHandle()
	other := tbl.NewHandle() // already holds Shared before the writer goes Pending
	mustLock(t, writer, Shared)
	mustLock(t, reader, Shared)
	mustLock(t, other, Shared)
	mustLock(t, writer, Reserved)
	if err := writer.Lock(Exclusive); err != ErrDenied {
		t.Fatalf("expected ErrDenied while other readers hold Shared, got %v", err)
	}
	if err := other.Lock(Reserved); err != ErrDenied {
		t.Fatalf("expected another handle to be denied Reserved while writer holds Reserved, got %v", err)
	}

	newcomer := tbl.NewHandle()
	if err := newcomer.Lock(Shared); err != ErrDenied {
		t.Fatalf("expected a brand-new Shared request to be denied while writer is Pending, got %v", err)
	}
}

func TestUnlockReleasesWriterSlot(t *testing.T) {
	tbl := New()
	h1 := tbl.NewHandle()
	h2 := tbl.NewHandle()
	mustLock(t, h1, Shared)
	mustLock(t, h1, Reserved)
	if err := h1.Unlock(Shared); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	mustLock(t, h2, Shared)
	if err := h2.Lock(Reserved); err != nil {
		t.Fatalf("expected h2 to acquire Reserved after h1 released it: %v", err)
	}
}

func mustLock(t *testing.T, h *Handle, level Level) {
	t.Helper()
	if err := h.Lock(level); err != nil {
		t.Fatalf("Lock(%s): %v", level, err)
	}
}
