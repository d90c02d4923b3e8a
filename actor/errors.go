package actor

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"
)

// ErrClass names the taxonomy design §7 groups actor failures into. Each
// class maps to one exitcode.ExitCode, the same way a real builtin actor
// picks from exitcode's fixed set rather than inventing its own numbers.
type ErrClass int

const (
	// ClassBadParameter covers malformed constructor params (owner
	// address, bucket size), a call on an actor that has not been
	// constructed, or a beacon digest the EnvShim cannot be seeded from.
	ClassBadParameter ErrClass = iota
	// ClassCallerForbidden maps to exitcode.ErrForbidden. No method of
	// this actor aborts with it: every method accepts any caller.
	ClassCallerForbidden
	// ClassEngineError covers SQL the engine rejects, whether at parse
	// time or at execution time (unknown table/column, type mismatch),
	// bad bind parameters, and a failed connection bootstrap.
	ClassEngineError
	// ClassLockDenied covers a lock escalation the lock table refused.
	ClassLockDenied
	// ClassCasFailure covers a content-store Get/Put failure — design
	// §7 treats this as unreachable in a well-formed store, but the
	// class exists so a corrupt CID still aborts cleanly rather than
	// panicking.
	ClassCasFailure
	// ClassUnhandledMethod covers Fallback's low, system-reserved method
	// numbers that this actor genuinely doesn't implement (design §4.5).
	ClassUnhandledMethod
)

func (c ErrClass) exitCode() exitcode.ExitCode {
	switch c {
	case ClassBadParameter:
		return exitcode.ErrIllegalArgument
	case ClassCallerForbidden:
		return exitcode.ErrForbidden
	case ClassEngineError:
		return exitcode.ErrIllegalState
	case ClassLockDenied:
		return exitcode.ErrIllegalState
	case ClassCasFailure:
		return exitcode.ErrIllegalState
	case ClassUnhandledMethod:
		return exitcode.ErrUnhandledMessage
	default:
		return exitcode.ErrIllegalState
	}
}

// ActorError is a classified failure an actor method can return before
// Abort turns it into an rt.Abortf call. Keeping it as a plain error
// value (rather than aborting immediately at the failure site) lets
// Execute prefix it with the failing statement's index (design
// §C.2) before it ever reaches the runtime.
type ActorError struct {
	Class ErrClass
	Msg   string
}

func (e *ActorError) Error() string { return e.Msg }

func newErr(class ErrClass, format string, args ...interface{}) *ActorError {
	return &ActorError{Class: class, Msg: fmt.Sprintf(format, args...)}
}

// Abort reports err on rt, picking the exit code from its class. It
// never returns: rt.Abortf doesn't either.
func Abort(rt Runtime, err *ActorError) {
	rt.Abortf(err.Class.exitCode(), "%s", err.Msg)
}

// withStatementIndex prefixes msg with the 0-based index of the
// statement within a multi-statement batch that failed, per design
// §C.2's batch error reporting.
func withStatementIndex(err *ActorError, idx int) *ActorError {
	return &ActorError{Class: err.Class, Msg: fmt.Sprintf("statement %d: %s", idx, err.Msg)}
}
