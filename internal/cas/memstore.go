package cas

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
)

// MemStore is an in-memory Store, used by tests and by cmd/tablelandctl's
// local dev host in place of a real CAS-backed host runtime.
type MemStore struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

// NewMemStore returns an empty in-memory CAS.
func NewMemStore() *MemStore {
	return &MemStore{blocks: make(map[cid.Cid][]byte)}
}

func (m *MemStore) Put(_ context.Context, block []byte) (cid.Cid, error) {
	id, err := Sum(block)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[id]; !ok {
		cp := make([]byte, len(block))
		copy(cp, block)
		m.blocks[id] = cp
	}
	return id, nil
}

func (m *MemStore) Get(_ context.Context, id cid.Cid) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	block, ok := m.blocks[id]
	if !ok {
		return nil, &ErrBlockNotFound{CID: id}
	}
	cp := make([]byte, len(block))
	copy(cp, block)
	return cp, nil
}

// Len reports the number of distinct blocks currently stored, for tests
// asserting garbage-collection/dedup behaviour.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}
