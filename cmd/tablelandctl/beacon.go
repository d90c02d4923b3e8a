package main

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
)

// sprintfCompat mirrors rt.Abortf's printf-style message formatting.
func sprintfCompat(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// deriveFakeBeacon stands in for a verifiable drand beacon: a SHA-256 of
// the epoch and entropy, stretched to the 32 bytes EnvShim's chacha20
// seed requires. Deterministic per (epoch, entropy) pair, which is all a
// local dev host needs.
func deriveFakeBeacon(epoch abi.ChainEpoch, entropy []byte) []byte {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(epoch))
	h.Write(buf[:])
	h.Write(entropy)
	return h.Sum(nil)
}
