// Package envshim provides the deterministic substitutes for OS facilities
// the SQL engine expects an environment layer to supply (design §4.6):
// randomness, sleep, and a temporary file name. Every call must be a pure
// function of the actor's inputs so two executions of the same Execute
// call, on the same state, produce byte-identical results.
package envshim

import (
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20"
)

// TemporaryName is the fixed name handed back for any VFS temp-file
// request; there is no filesystem underneath to collide on, so a
// constant is as good as a random one and stays deterministic.
const TemporaryName = "tableland-tmp"

// EnvShim expands a beacon digest into a deterministic byte stream used
// to answer the engine's randomness requests. A naive implementation that
// truncates or repeats the beacon's raw bytes into a larger buffer
// (spec's Open Question #2) overruns once the engine asks for more bytes
// than the beacon supplied, or — worse — repeats a predictable pattern;
// chacha20, seeded from the digest, gives an arbitrarily long stream with
// neither problem.
type EnvShim struct {
	stream *chacha20.Cipher
}

// New builds an EnvShim from a 32-byte beacon digest (the randomness
// source named in design §6, domain-separated by the caller before it
// reaches here).
func New(beaconDigest []byte) (*EnvShim, error) {
	if len(beaconDigest) != chacha20.KeySize {
		return nil, fmt.Errorf("envshim: beacon digest must be %d bytes, got %d", chacha20.KeySize, len(beaconDigest))
	}
	nonce := make([]byte, chacha20.NonceSize)
	stream, err := chacha20.NewUnauthenticatedCipher(beaconDigest, nonce)
	if err != nil {
		return nil, fmt.Errorf("envshim: init stream cipher: %w", err)
	}
	return &EnvShim{stream: stream}, nil
}

// Random returns the next n deterministic pseudo-random bytes.
func (e *EnvShim) Random(n int) []byte {
	out := make([]byte, n)
	e.stream.XORKeyStream(out, out)
	return out
}

// Sleep is a no-op: the actor has no wall clock, so every requested sleep
// duration collapses to zero (design §4.6, §9).
func (e *EnvShim) Sleep(time.Duration) {}

// WALEnabled always reports false: WAL/crash-recovery journals are out of
// scope (spec.md Non-goals) and the VFS never exposes the second file a
// WAL implementation would need.
func (e *EnvShim) WALEnabled() bool { return false }
