// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package roster

import "sync"

// Table is the node-wide set of admitted clients, keyed by canonicalized
// public key. A key is present for exactly the duration of one session:
// Insert replaces any prior entry under the same key (the returning-client
// MergeFrom path), and Remove clears it on disconnect.
type Table struct {
	mu      sync.RWMutex
	clients map[string]*Record
}

// NewTable builds an empty client table.
func NewTable() *Table {
	return &Table{clients: make(map[string]*Record)}
}

// Insert adds or replaces the record under its public key. Callers must
// set PublicKey via SetPublicKey before calling Insert.
func (t *Table) Insert(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clients[r.PublicKey] = r
}

// Get returns the record for publicKey, or nil if no session holds it.
func (t *Table) Get(publicKey string) *Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.clients[publicKey]
}

// Remove clears the entry for publicKey. Removing an absent key is a
// no-op, matching the idempotent-close property sessions rely on.
func (t *Table) Remove(publicKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, publicKey)
}

// Len reports the number of admitted sessions.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}

// Each calls fn for every admitted record. fn must not call back into the
// table — Each holds the read lock for its duration.
func (t *Table) Each(fn func(*Record)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.clients {
		fn(r)
	}
}

// Keys returns a snapshot of currently admitted public keys, safe to range
// over after the table's lock has been released.
func (t *Table) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.clients))
	for k := range t.clients {
		keys = append(keys, k)
	}
	return keys
}
