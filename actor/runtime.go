// Package actor implements the Tableland query actor surface: the
// Constructor/Execute/Query/Fallback methods, their CBOR-tuple wire
// types, and the error taxonomy that maps engine/CAS/lock failures onto
// actor exit codes.
//
// Runtime is modeled on go-state-types' rt.Runtime, the interface every
// real Filecoin builtin actor is written against
// (filecoin-project/go-state-types/rt, and the migration-function
// pattern in the retrieved specs-actors nv9 migration file: a narrow
// interface threading caller/epoch/randomness/abort/state-commit through
// actor code without the actor ever touching the VM directly).
package actor

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/tablelandnetwork/go-query-actor/internal/cas"
)

// DomainSeparationTag distinguishes randomness drawn for different
// purposes, the role filecoin-project/go-state-types/crypto's tag enum
// plays for real FVM actors. This actor only ever draws one kind of
// randomness (design §6's "EvmPrevRandao-style domain separation tag"),
// so a single local constant stands in for the full registry.
type DomainSeparationTag int64

// EvmPrevRandaoTag is the one randomness domain this actor uses.
const EvmPrevRandaoTag DomainSeparationTag = 1

// Runtime is the host surface an actor method is written against. A real
// deployment backs it with the FVM; cmd/tablelandctl backs it with a
// small in-process fake (see cmd/tablelandctl/runtime.go) driving the
// same actor code through a REPL or gRPC front door.
type Runtime interface {
	// Context carries cancellation/deadline for CAS calls; the actor
	// itself does no I/O of its own outside of Store().
	Context() context.Context

	// Caller is the address that invoked the current method.
	Caller() address.Address

	// ValidateImmediateCallerAcceptAny asserts nothing about the caller.
	// Every method on this actor accepts any caller (design §4.5, §7);
	// calling this at the top of each method matches the real
	// convention of always validating the caller explicitly, even when
	// the validation is "anyone".
	ValidateImmediateCallerAcceptAny()

	// CurrentEpoch is the chain epoch the current invocation runs at.
	CurrentEpoch() abi.ChainEpoch

	// Abortf aborts the current invocation with the given exit code and
	// message. Like rt.Runtime.Abortf, it never returns to the caller.
	Abortf(code exitcode.ExitCode, msg string, args ...interface{})

	// GetRandomnessFromBeacon returns the beacon-derived digest for the
	// given domain tag, epoch and entropy (design §6's randomness
	// source).
	GetRandomnessFromBeacon(tag DomainSeparationTag, epoch abi.ChainEpoch, entropy []byte) abi.Randomness

	// Store is the CAS backing this invocation.
	Store() cas.Store

	// StateGet reads the actor's current persisted state. ok is false
	// before Constructor has ever run.
	StateGet() (st State, ok bool)

	// StateCommit replaces the actor's persisted state. It is only
	// called once a method is about to return successfully — see
	// design §9's atomicity note: an aborted method simply never calls
	// this, leaving any CAS blocks it wrote unreferenced.
	StateCommit(st State)
}
