package sqlengine

import (
	"context"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	db := NewDB()
	mustExec(t, db, "CREATE TABLE widgets (id integer, name text)")
	mustExec(t, db, "INSERT INTO widgets (id, name) VALUES (1, 'a'), (2, 'b')")

	snap, err := SaveSnapshot(db)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	loaded, err := LoadSnapshot(snap)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	stmt, err := ParseSQL("SELECT * FROM widgets")
	if err != nil {
		t.Fatalf("ParseSQL: %v", err)
	}
	rs, err := Execute(context.Background(), loaded, stmt)
	if err != nil {
		t.Fatalf("Execute on loaded snapshot: %v", err)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("expected 2 rows after round trip, got %d", len(rs.Rows))
	}
}

func TestLoadSnapshotOfEmptyFileIsEmptyCatalog(t *testing.T) {
	db, err := LoadSnapshot(nil)
	if err != nil {
		t.Fatalf("LoadSnapshot(nil): %v", err)
	}
	if len(db.Tables) != 0 {
		t.Fatal("expected an empty catalog")
	}
}

func TestSnapshotSurvivesZeroPagePadding(t *testing.T) {
	db := NewDB()
	mustExec(t, db, "CREATE TABLE t (id integer)")
	mustExec(t, db, "INSERT INTO t (id) VALUES (1)")

	snap, err := SaveSnapshot(db)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	padded := make([]byte, len(snap)+512)
	copy(padded, snap)

	loaded, err := LoadSnapshot(padded)
	if err != nil {
		t.Fatalf("LoadSnapshot with trailing zero padding: %v", err)
	}
	if len(loaded.Tables) != 1 {
		t.Fatalf("expected 1 table after padded round trip, got %d", len(loaded.Tables))
	}
}
