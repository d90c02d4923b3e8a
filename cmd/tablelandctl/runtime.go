package main

import (
	"context"
	"log"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/tablelandnetwork/go-query-actor/actor"
	"github.com/tablelandnetwork/go-query-actor/internal/cas"
)

// localHost is a small in-process stand-in for the FVM, the same role
// tinySQL's own cmd/repl and cmd/server give a bare storage.DB: something
// to drive the real engine from a terminal or a listener without a
// blockchain underneath it. It backs Runtime with an in-memory CAS and a
// local clock-like epoch counter instead of chain state.
type localHost struct {
	store cas.Store
	epoch abi.ChainEpoch
	state *actor.State
	hasSt bool
}

func newLocalHost() *localHost {
	return &localHost{store: cas.NewMemStore()}
}

// abortError turns rt.Abortf's "never returns" contract into a Go panic
// the REPL/gRPC handler recovers from, logging and continuing rather
// than crashing the process — this process outlives any single
// invocation, unlike a real actor's one-shot VM execution.
type abortError struct {
	code exitcode.ExitCode
	msg  string
}

func (e *abortError) Error() string { return e.msg }

// invocation is one Runtime instance scoped to a single actor call,
// sharing the host's store/state/epoch but carrying its own caller
// address and context (design §9: state only commits once per
// successful invocation).
type invocation struct {
	host   *localHost
	ctx    context.Context
	caller address.Address
}

func (h *localHost) newInvocation(ctx context.Context, caller address.Address) *invocation {
	return &invocation{host: h, ctx: ctx, caller: caller}
}

func (iv *invocation) Context() context.Context { return iv.ctx }
func (iv *invocation) Caller() address.Address   { return iv.caller }

func (iv *invocation) ValidateImmediateCallerAcceptAny() {}

func (iv *invocation) CurrentEpoch() abi.ChainEpoch { return iv.host.epoch }

func (iv *invocation) Abortf(code exitcode.ExitCode, msg string, args ...interface{}) {
	panic(&abortError{code: code, msg: sprintfCompat(msg, args...)})
}

func (iv *invocation) GetRandomnessFromBeacon(tag actor.DomainSeparationTag, epoch abi.ChainEpoch, entropy []byte) abi.Randomness {
	// A local dev host has no verifiable random beacon; epoch + entropy
	// are hashed together deterministically so repeated Query calls at
	// the same epoch still see a stable EnvShim stream.
	return deriveFakeBeacon(epoch, entropy)
}

func (iv *invocation) Store() cas.Store { return iv.host.store }

func (iv *invocation) StateGet() (actor.State, bool) {
	if !iv.host.hasSt {
		return actor.State{}, false
	}
	return *iv.host.state, true
}

func (iv *invocation) StateCommit(st actor.State) {
	s := st
	iv.host.state = &s
	iv.host.hasSt = true
	iv.host.epoch++
}

// runInvocation recovers an abortError panic from one actor call and
// reports it as a plain error, logging the code for operator visibility
// the way a real chain's receipt would carry the exit code separately
// from the error message.
func runInvocation(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*abortError); ok {
				log.Printf("actor aborted: exit code %d: %s", ae.code, ae.msg)
				err = ae
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
