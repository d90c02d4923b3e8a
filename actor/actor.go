package actor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/filecoin-project/go-address"

	"github.com/tablelandnetwork/go-query-actor/internal/envshim"
	"github.com/tablelandnetwork/go-query-actor/internal/locktable"
	"github.com/tablelandnetwork/go-query-actor/internal/pagetree"
	"github.com/tablelandnetwork/go-query-actor/internal/sqlengine"
	"github.com/tablelandnetwork/go-query-actor/internal/vfs"
)

// pageSize sizes the PageTree backing every actor's database file
// (design §4.1). It's a fixed constant rather than a constructor param:
// every instance of this actor speaks the same on-chain page format,
// the same way a real builtin actor's state layout is fixed by its
// code, not chosen per instance. buck_size, by contrast, is a
// Constructor parameter (design §4.5/§6) — different databases can
// trade tree height for node size.
const pageSize = 4096

// journalNonceSize is how many bytes the connection bootstrap draws
// from the VFS's randomness source on a database's first-ever write
// (design §4.6's "journal header nonce" rationale for why VFS random is
// consulted at all).
const journalNonceSize = 16

// firstExportedMethodNumber mirrors the FVM's well-known boundary
// between an actor's reserved low method numbers and the exported
// method range (design §4.5): Fallback treats anything at or above it
// as a no-op rather than an error.
const firstExportedMethodNumber = 1 << 24

// Actor implements the Constructor/Execute/Query/Fallback surface.
// Actor itself holds no state between invocations — state round-trips
// entirely through Runtime.StateGet/StateCommit, matching how a real FVM
// actor is instantiated fresh for every message.
type Actor struct{}

// Constructor initializes a fresh actor: a database built from the
// given byte image (design §4.1/§4.5 — an empty image yields an empty
// database) and the owner address that Owner reports (design §C.1). No
// method checks its caller against the owner.
func (Actor) Constructor(rt Runtime, params *ConstructorParams) {
	rt.ValidateImmediateCallerAcceptAny()

	if _, err := address.NewFromBytes(params.Owner); err != nil {
		Abort(rt, newErr(ClassBadParameter, "constructor: invalid owner address: %v", err))
	}
	if params.BuckSize < 2 {
		Abort(rt, newErr(ClassBadParameter, "constructor: bucket size must be >= 2, got %d", params.BuckSize))
	}

	tree, err := pagetree.Construct(rt.Context(), rt.Store(), params.DB, pageSize, params.BuckSize)
	if err != nil {
		Abort(rt, newErr(ClassCasFailure, "constructor: %v", err))
	}
	rt.StateCommit(State{DB: tree, Owner: params.Owner})
}

// Owner returns the actor's owner address (design §C.1's supplemented
// read-only admin query).
func (Actor) Owner(rt Runtime, _ *struct{}) *OwnerReturn {
	rt.ValidateImmediateCallerAcceptAny()
	st := mustState(rt)
	return &OwnerReturn{Owner: st.Owner}
}

// Execute runs a batch of write (or read) statements against the
// database, committing the resulting state only if every statement in
// the batch succeeds (design §4.3, §9's single-invocation atomicity: an
// aborted Execute never calls StateCommit, so the PageTree blocks it
// wrote along the way are simply unreferenced garbage).
func (a Actor) Execute(rt Runtime, params *ExecuteParams) *ExecuteReturn {
	rt.ValidateImmediateCallerAcceptAny()
	st := mustState(rt)

	env, err := deriveEnv(rt)
	if err != nil {
		Abort(rt, newErr(ClassBadParameter, "execute: %v", err))
	}
	adapter := vfs.New(rt.Store(), env, st.DB)

	f, err := openConnection(adapter, true)
	if err != nil {
		Abort(rt, classifyConnError(err))
	}
	defer closeConnection(f)

	db, err := loadCatalog(rt, f)
	if err != nil {
		Abort(rt, newErr(ClassCasFailure, "execute: %v", err))
	}

	var effected int64
	for i, s := range params.Statements {
		rs, err := runStatement(rt.Context(), db, s, false)
		if err != nil {
			Abort(rt, withStatementIndex(classifyError(err), i))
		}
		effected += rs.AffectedRows()
	}

	newTree, err := saveCatalog(rt, f, adapter, db)
	if err != nil {
		Abort(rt, newErr(ClassCasFailure, "execute: persist snapshot: %v", err))
	}
	rt.StateCommit(State{DB: newTree, Owner: st.Owner})
	return &ExecuteReturn{EffectedRows: effected}
}

// Query runs a single read-only SELECT and returns its result set. It
// never calls StateCommit: design §C.3 requires every statement Query
// accepts be read-only, so there is nothing to persist.
func (a Actor) Query(rt Runtime, params *QueryParams) *QueryReturn {
	rt.ValidateImmediateCallerAcceptAny()
	st := mustState(rt)

	env, err := deriveEnv(rt)
	if err != nil {
		Abort(rt, newErr(ClassBadParameter, "query: %v", err))
	}
	adapter := vfs.New(rt.Store(), env, st.DB)

	f, err := openConnection(adapter, false)
	if err != nil {
		Abort(rt, classifyConnError(err))
	}
	defer closeConnection(f)

	db, err := loadCatalog(rt, f)
	if err != nil {
		Abort(rt, newErr(ClassCasFailure, "query: %v", err))
	}

	rs, err := runStatement(rt.Context(), db, StatementParams{SQL: params.SQL, Params: params.Params}, true)
	if err != nil {
		Abort(rt, classifyError(err))
	}

	rows := make([][]Value, len(rs.Rows))
	for i, row := range rs.Rows {
		cells := make([]Value, len(rs.Cols))
		for j, col := range rs.Cols {
			cells[j] = FromSQLValue(row[col])
		}
		rows[i] = cells
	}
	return &QueryReturn{Columns: rs.Cols, Rows: rows}
}

// Fallback handles any method number this actor doesn't otherwise
// export. Per design §4.5, a method at or above the exported-method
// boundary is simply not this actor's business — it returns no body
// rather than erroring, the same way a real FVM actor lets unknown
// exported selectors no-op. Anything below that boundary is a genuinely
// unhandled system-reserved method number, which does abort.
func (Actor) Fallback(rt Runtime, method uint64) {
	rt.ValidateImmediateCallerAcceptAny()
	if method >= firstExportedMethodNumber {
		return
	}
	Abort(rt, newErr(ClassUnhandledMethod, "unhandled method %d", method))
}

func mustState(rt Runtime) State {
	st, ok := rt.StateGet()
	if !ok {
		Abort(rt, newErr(ClassBadParameter, "actor has not been constructed"))
	}
	return st
}

// deriveEnv seeds the per-invocation EnvShim from beacon randomness tied
// to the current epoch (design §4.6/§6): every statement in the same
// invocation sees the same deterministic stream, and replaying the same
// epoch reproduces it byte for byte.
func deriveEnv(rt Runtime) (*envshim.EnvShim, error) {
	digest := rt.GetRandomnessFromBeacon(EvmPrevRandaoTag, rt.CurrentEpoch(), []byte("tableland-query-actor"))
	return envshim.New(digest)
}

// openConnection opens the adapter's single logical file and runs the
// connection bootstrap handshake every statement batch performs before
// touching the database (design §4.5): a Shared lock is always taken
// first (the SQL engine's connection layer expects to probe the file
// before committing to anything stronger); write connections then
// escalate through Reserved to Exclusive. Pending is never requested
// directly here — it only ever shows up as locktable's own internal
// side effect of a denied Exclusive attempt.
func openConnection(adapter *vfs.Adapter, write bool) (*vfs.File, error) {
	f, err := adapter.Open(vfs.MainFile, false)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	if err := f.Lock(locktable.Shared); err != nil {
		return nil, fmt.Errorf("acquire shared lock: %w", err)
	}
	if err := bootstrapConnection(adapter, f, write); err != nil {
		return nil, err
	}
	if write {
		if err := f.Lock(locktable.Reserved); err != nil {
			return nil, fmt.Errorf("acquire reserved lock: %w", err)
		}
		if err := f.Lock(locktable.Exclusive); err != nil {
			return nil, fmt.Errorf("acquire exclusive lock: %w", err)
		}
	}
	return f, nil
}

// closeConnection drops whatever lock level the connection ended at.
func closeConnection(f *vfs.File) {
	if f.CurrentLock() != locktable.None {
		_ = f.Unlock(locktable.None)
	}
}

// bootstrapConnection runs the two PRAGMA checks design §4.5 requires of
// every connection before it touches the database: a fresh database
// (page_count == 0) is only ever written at this actor's fixed
// pageSize, checked here rather than taken on faith; and the VFS never
// backs a WAL, so journal_mode is unconditionally MEMORY — if the
// engine ever reported otherwise, that would mean a VFS bug, not a
// caller mistake, hence the engine-class abort rather than a
// bad-parameter one.
func bootstrapConnection(adapter *vfs.Adapter, f *vfs.File, write bool) error {
	tree := adapter.Tree()
	if write && tree.PageCount == 0 {
		if f.ChunkSize() != pageSize {
			return fmt.Errorf("PRAGMA page_size: only legal before any page is written; engine reports chunk size %d, want %d", f.ChunkSize(), pageSize)
		}
		adapter.Random(journalNonceSize) // journal header nonce, drawn once per connection's first write
	}
	if adapter.Env.WALEnabled() {
		return fmt.Errorf("PRAGMA journal_mode: expected the engine to echo MEMORY")
	}
	return nil
}

func classifyConnError(err error) *ActorError {
	if errors.Is(err, locktable.ErrDenied) {
		return newErr(ClassLockDenied, "%v", err)
	}
	return newErr(ClassEngineError, "%v", err)
}

func loadCatalog(rt Runtime, f *vfs.File) (*sqlengine.DB, error) {
	size, err := f.Size(rt.Context())
	if err != nil {
		return nil, fmt.Errorf("stat database file: %w", err)
	}
	buf := make([]byte, size)
	if err := f.ReadAt(rt.Context(), buf, 0); err != nil {
		return nil, fmt.Errorf("read database file: %w", err)
	}
	db, err := sqlengine.LoadSnapshot(buf)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return db, nil
}

func saveCatalog(rt Runtime, f *vfs.File, adapter *vfs.Adapter, db *sqlengine.DB) (pagetree.PageTree, error) {
	snap, err := sqlengine.SaveSnapshot(db)
	if err != nil {
		return pagetree.PageTree{}, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.SetLen(rt.Context(), int64(len(snap))); err != nil {
		return pagetree.PageTree{}, fmt.Errorf("size database file: %w", err)
	}
	if err := f.WriteAt(rt.Context(), snap, 0); err != nil {
		return pagetree.PageTree{}, fmt.Errorf("write database file: %w", err)
	}
	return adapter.Tree(), nil
}

// runStatement parses and executes one statement, first substituting its
// bind parameters into the SQL text. readOnly rejects any statement
// whose AST marks itself as a write (design §C.3).
func runStatement(ctx context.Context, db *sqlengine.DB, s StatementParams, readOnly bool) (*sqlengine.ResultSet, error) {
	bound, err := bindParams(s.SQL, s.Params)
	if err != nil {
		return nil, fmt.Errorf("bind parameters: %w", err)
	}
	stmt, err := sqlengine.ParseSQL(bound)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if readOnly && !stmt.ReadOnly() {
		return nil, fmt.Errorf("statement is not read-only")
	}
	return sqlengine.Execute(ctx, db, stmt)
}

// bindParams splices params into sql in place of each unquoted `?`
// placeholder, in order. The engine's own parser has no placeholder
// syntax of its own (design §4.3 describes positional bind parameters at
// the actor's wire boundary, not inside the embedded engine), so binding
// happens here, one level up, by rewriting the text before it ever
// reaches the lexer.
func bindParams(sql string, params []Value) (string, error) {
	if len(params) == 0 {
		if !strings.ContainsRune(sql, '?') {
			return sql, nil
		}
	}
	var out strings.Builder
	used := 0
	inString := false
	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'':
			inString = !inString
			out.WriteRune(r)
		case r == '?' && !inString:
			if used >= len(params) {
				return "", fmt.Errorf("not enough bind parameters for placeholder %d", used+1)
			}
			out.WriteString(formatLiteral(params[used]))
			used++
		default:
			out.WriteRune(r)
		}
	}
	if used != len(params) {
		return "", fmt.Errorf("got %d bind parameters, statement uses %d", len(params), used)
	}
	return out.String(), nil
}

// formatLiteral renders v as SQL source the engine's own parser will
// read back as that same literal. The engine's grammar has no blob
// literal, so a blob is rendered as a quoted text literal of its bytes and
// reads back as text.
func formatLiteral(v Value) string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.Integer, 10)
	case KindReal:
		// Plain decimal with a '.', since the lexer reads no exponent and
		// parses a number without a '.' as an integer.
		s := strconv.FormatFloat(v.Real, 'f', -1, 64)
		if !strings.ContainsRune(s, '.') {
			s += ".0"
		}
		return s
	case KindText:
		return "'" + strings.ReplaceAll(v.Text, "'", "''") + "'"
	case KindBlob:
		return "'" + strings.ReplaceAll(string(v.Blob), "'", "''") + "'"
	default:
		return "NULL"
	}
}

// classifyError maps a raw sqlengine/parser error onto an ActorError of
// the engine-failure class, for Abort to report.
func classifyError(err error) *ActorError {
	return newErr(ClassEngineError, "%v", err)
}
