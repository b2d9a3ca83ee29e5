// Package mempool implements the node's bounded, top-K-by-difficulty
// transaction and open pools, grounded on the reference Mempool's
// filtered-space-saving-style eviction, re-expressed over this project's
// CenterMap (used single-sided here: everything lands on the "greater"
// side, capped at the pool's configured size, evicting the weakest
// member on overflow).
package mempool

import (
	"github.com/sltlabs/slt-node/internal/centermap"
)

// Mempool is a generic bounded pool keyed by a caller-chosen dedup key,
// prioritized by PoW difficulty.
type Mempool[K comparable, V any] struct {
	m *centermap.Map[K, V]
}

// New creates an empty pool capped at size entries.
func New[K comparable, V any](size int) *Mempool[K, V] {
	return &Mempool[K, V]{m: centermap.New[K, V](0, size)}
}

// Insert adds v under key with the given difficulty as priority. If key
// is already present, the existing entry is left untouched (first-seen
// wins, matching the reference Mempool's get-before-insert guard) and
// Insert returns false.
func (p *Mempool[K, V]) Insert(key K, difficulty uint64, v V) bool {
	if _, exists := p.m.Get(key); exists {
		return false
	}
	return p.m.Insert(key, float64(difficulty), v)
}

// Drain removes and returns every item currently held, leaving the pool
// empty but at its original capacity.
func (p *Mempool[K, V]) Drain() []V {
	entries := p.m.Entries()
	out := make([]V, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Value)
	}
	p.m.Clear()
	return out
}

// Clear empties the pool without returning its contents, used when a
// leader slot ends.
func (p *Mempool[K, V]) Clear() {
	p.m.Clear()
}

// Len reports the number of items currently held.
func (p *Mempool[K, V]) Len() int { return p.m.Len() }
