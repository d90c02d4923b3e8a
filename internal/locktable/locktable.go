// Package locktable implements the 5-state SQLite-VFS-style lock machine
// the VFS adapter exposes to the SQL engine (design §4.3): None, Shared,
// Reserved, Pending and Exclusive, with the usual split between Pending
// and Exclusive so a writer waiting to upgrade doesn't starve existing
// readers out of finishing their Shared-held statement.
//
// There is only ever one invocation executing at a time (the actor has no
// concurrency to defend against within a call — design §5), so this isn't
// guarding real contention the way it would inside SQLite's own VFS; it
// exists because the SQL engine's connection layer expects to be able to
// call Lock/Unlock and get SQLite's documented transition behaviour,
// including outright denial when an invariant would be violated (e.g. two
// handles each holding Reserved).
package locktable

import "errors"

// Level mirrors SQLite's five VFS lock levels.
type Level int

const (
	None Level = iota
	Shared
	Reserved
	Pending
	Exclusive
)

func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case Shared:
		return "shared"
	case Reserved:
		return "reserved"
	case Pending:
		return "pending"
	case Exclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// ErrDenied is returned when a lock request cannot be granted under the
// current table state. Callers map this to the actor's LockDenied error
// class.
var ErrDenied = errors.New("locktable: lock request denied")

// Table is the lock state shared by every Handle opened against the same
// logical file.
type Table struct {
	readCount int
	writer    *Handle
}

// New returns an unlocked Table.
func New() *Table {
	return &Table{}
}

// NewHandle returns a fresh, unlocked Handle against t.
func (t *Table) NewHandle() *Handle {
	return &Handle{table: t}
}

// Handle is one connection's view of a Table: its own current level, plus
// the shared bookkeeping needed to decide whether an upgrade is legal.
type Handle struct {
	table *Table
	level Level
}

// Level reports the level currently held.
func (h *Handle) Level() Level {
	return h.level
}

// Lock attempts to raise h's level to at least want. It is a no-op if h
// already holds want or higher. Pending cannot be requested directly —
// it is only ever entered as the side effect of an Exclusive attempt
// that finds other readers still holding Shared, exactly the state a
// real SQLite VFS uses to stop those readers' eventual re-acquisition
// from starving the escalating writer.
func (h *Handle) Lock(want Level) error {
	if want <= h.level {
		return nil
	}
	t := h.table
	switch want {
	case Shared:
		if t.writer != nil && t.writer != h && (t.writer.level == Exclusive || t.writer.level == Pending) {
			return ErrDenied
		}
		t.readCount++
		h.level = Shared
	case Reserved:
		if h.level < Shared {
			return errors.New("locktable: Reserved requires holding Shared first")
		}
		if t.writer != nil && t.writer != h {
			return ErrDenied
		}
		t.writer = h
		h.level = Reserved
	case Pending:
		return errors.New("locktable: Pending cannot be requested directly")
	case Exclusive:
		if h.level < Reserved {
			return errors.New("locktable: Exclusive requires holding Reserved first")
		}
		otherReaders := t.readCount
		if h.level >= Shared {
			otherReaders--
		}
		if otherReaders > 0 {
			h.level = Pending
			return ErrDenied
		}
		h.level = Exclusive
	default:
		return errors.New("locktable: unknown lock level")
	}
	return nil
}

// Unlock lowers h's level to want. It is a no-op if h is already at or
// below want.
func (h *Handle) Unlock(want Level) error {
	if want >= h.level {
		return nil
	}
	t := h.table
	if h.level >= Reserved && want < Reserved && t.writer == h {
		t.writer = nil
	}
	if h.level >= Shared && want < Shared {
		t.readCount--
	}
	h.level = want
	return nil
}
