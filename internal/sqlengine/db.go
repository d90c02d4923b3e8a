package sqlengine

import "fmt"

// Row is one row of a table or result set, keyed by column name — the
// same shape tinySQL's internal/engine.Row takes.
type Row map[string]any

// Table is an in-memory table: its schema plus its rows, in insertion
// order (no secondary indexes; this engine never needs one at the scale
// an actor invocation can touch).
type Table struct {
	Name string
	Cols []Column
	Rows []Row
}

func (t *Table) colNames() []string {
	names := make([]string, len(t.Cols))
	for i, c := range t.Cols {
		names[i] = c.Name
	}
	return names
}

func (t *Table) hasCol(name string) bool {
	for _, c := range t.Cols {
		if c.Name == name {
			return true
		}
	}
	return false
}

// DB is the whole in-memory catalog this engine operates on — the
// payload that persist.go snapshots into the VFS's logical file.
type DB struct {
	Tables map[string]*Table
}

// NewDB returns an empty catalog.
func NewDB() *DB {
	return &DB{Tables: make(map[string]*Table)}
}

// ResultSet is what Execute returns: column names plus the matching
// rows. Write statements return the "updated"/"deleted" single-row shape
// tinySQL's own executor uses to report affected-row counts.
type ResultSet struct {
	Cols []string
	Rows []Row
}

// AffectedRows reads back the single-column/single-row convention write
// statements encode their row count in.
func (rs *ResultSet) AffectedRows() int64 {
	if len(rs.Cols) != 1 || len(rs.Rows) != 1 {
		return 0
	}
	col := rs.Cols[0]
	if col != "updated" && col != "deleted" && col != "inserted" {
		return 0
	}
	n, _ := rs.Rows[0][col].(int64)
	return n
}

func (db *DB) createTable(stmt CreateTable) (*ResultSet, error) {
	if _, exists := db.Tables[stmt.Table]; exists {
		return nil, fmt.Errorf("sqlengine: table %q already exists", stmt.Table)
	}
	db.Tables[stmt.Table] = &Table{Name: stmt.Table, Cols: stmt.Cols}
	return &ResultSet{}, nil
}

func (db *DB) table(name string) (*Table, error) {
	t, ok := db.Tables[name]
	if !ok {
		return nil, fmt.Errorf("sqlengine: no such table: %s", name)
	}
	return t, nil
}
