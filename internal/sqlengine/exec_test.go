package sqlengine

import (
	"context"
	"testing"
)

func mustExec(t *testing.T, db *DB, sql string) *ResultSet {
	t.Helper()
	stmt, err := ParseSQL(sql)
	if err != nil {
		t.Fatalf("ParseSQL(%q): %v", sql, err)
	}
	rs, err := Execute(context.Background(), db, stmt)
	if err != nil {
		t.Fatalf("Execute(%q): %v", sql, err)
	}
	return rs
}

func TestCreateInsertSelectRoundTrip(t *testing.T) {
	db := NewDB()
	mustExec(t, db, "CREATE TABLE widgets (id integer primary key, name text, price real)")
	rs := mustExec(t, db, "INSERT INTO widgets (id, name, price) VALUES (1, 'sprocket', 1.5), (2, 'gear', 2.25)")
	if rs.AffectedRows() != 2 {
		t.Fatalf("expected 2 inserted rows, got %d", rs.AffectedRows())
	}
	rs = mustExec(t, db, "SELECT id, name FROM widgets WHERE price > 2")
	if len(rs.Rows) != 1 || rs.Rows[0]["name"] != "gear" {
		t.Fatalf("unexpected select result: %+v", rs.Rows)
	}
}

func TestUpdateAndDeleteReportAffectedRows(t *testing.T) {
	db := NewDB()
	mustExec(t, db, "CREATE TABLE t (id integer, flag integer)")
	mustExec(t, db, "INSERT INTO t (id, flag) VALUES (1, 0), (2, 0), (3, 1)")

	rs := mustExec(t, db, "UPDATE t SET flag = 1 WHERE id < 3")
	if rs.AffectedRows() != 2 {
		t.Fatalf("expected 2 updated rows, got %d", rs.AffectedRows())
	}

	rs = mustExec(t, db, "DELETE FROM t WHERE flag = 1")
	if rs.AffectedRows() != 3 {
		t.Fatalf("expected 3 deleted rows, got %d", rs.AffectedRows())
	}
	rs = mustExec(t, db, "SELECT * FROM t")
	if len(rs.Rows) != 0 {
		t.Fatalf("expected table to be empty, got %d rows", len(rs.Rows))
	}
}

func TestJoinOrderByLimit(t *testing.T) {
	db := NewDB()
	mustExec(t, db, "CREATE TABLE Genre (GenreId integer, Name text)")
	mustExec(t, db, "CREATE TABLE Track (TrackId integer, Name text, GenreId integer)")
	mustExec(t, db, "INSERT INTO Genre (GenreId, Name) VALUES (1, 'Rock'), (2, 'Jazz')")
	mustExec(t, db, "INSERT INTO Track (TrackId, Name, GenreId) VALUES (1, 'Aaa', 1), (2, 'Bbb', 2), (3, 'Ccc', 1)")

	rs := mustExec(t, db, `SELECT Track.Name, Genre.Name FROM Track
		JOIN Genre ON Track.GenreId = Genre.GenreId
		WHERE Genre.Name = 'Rock'
		ORDER BY Track.Name DESC
		LIMIT 1`)
	if len(rs.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %+v", len(rs.Rows), rs.Rows)
	}
}

func TestAggregates(t *testing.T) {
	db := NewDB()
	mustExec(t, db, "CREATE TABLE nums (n integer)")
	mustExec(t, db, "INSERT INTO nums (n) VALUES (1), (2), (3), (4)")
	rs := mustExec(t, db, "SELECT COUNT(*), SUM(n), AVG(n), MIN(n), MAX(n) FROM nums")
	row := rs.Rows[0]
	if row["count"] != int64(4) {
		t.Fatalf("COUNT(*) = %v", row["count"])
	}
	if row["sum"] != int64(10) {
		t.Fatalf("SUM(n) = %v", row["sum"])
	}
	if row["min"] != int64(1) || row["max"] != int64(4) {
		t.Fatalf("MIN/MAX = %v/%v", row["min"], row["max"])
	}
}

func TestReadOnlyRejectsWriteStatements(t *testing.T) {
	stmt, err := ParseSQL("DELETE FROM t WHERE id = 1")
	if err != nil {
		t.Fatalf("ParseSQL: %v", err)
	}
	if stmt.ReadOnly() {
		t.Fatal("DELETE must not be ReadOnly")
	}
	selStmt, err := ParseSQL("SELECT * FROM t")
	if err != nil {
		t.Fatalf("ParseSQL: %v", err)
	}
	if !selStmt.ReadOnly() {
		t.Fatal("SELECT must be ReadOnly")
	}
}
