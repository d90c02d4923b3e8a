package sqlengine

// Package sqlengine is a small SQL engine in the teacher's idiom: a
// hand-rolled lexer/parser producing a compact AST (parser.go/ast.go,
// grounded on tinySQL's internal/engine/parser.go shape — Parser{lx, cur,
// peek}, expectKeyword/expectSymbol helpers, Row/ResultSet types), an
// Execute dispatch (exec.go, grounded on tinySQL's
// internal/engine/exec.go switch-over-statement-type and its
// "updated"/"deleted" single-row ResultSet convention for affected-row
// counts), and a GOB-based snapshot format (persist.go, grounded on
// tinySQL's db.go SaveToWriter/LoadFromReader) used to carry the whole
// catalog through the VFS's single logical file instead of an *os.File.
//
// It implements the subset of SQL the actor surface needs: CREATE TABLE,
// INSERT, UPDATE, DELETE, and SELECT with inner joins, WHERE, ORDER BY,
// LIMIT and the five standard aggregates. Anything beyond that (views,
// CTEs, window functions, JSON/geometry types) is out of scope the same
// way it's out of scope for the actor this engine serves.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokKeyword
	tokNumber
	tokString
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
}

var keywords = map[string]bool{
	"select": true, "from": true, "where": true, "insert": true, "into": true,
	"values": true, "update": true, "set": true, "delete": true, "create": true,
	"table": true, "join": true, "inner": true, "on": true, "and": true, "or": true,
	"not": true, "null": true, "order": true, "by": true, "asc": true, "desc": true,
	"limit": true, "as": true, "distinct": true, "group": true, "having": true,
	"integer": true, "int": true, "text": true, "real": true, "blob": true,
	"primary": true, "key": true, "true": true, "false": true, "like": true,
	"in": true, "is": true, "between": true,
}
