package directory

import (
	"fmt"
	"sync"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
)

// Directory is the in-memory mapping from account public key to its dense
// bank index, spec.md §4.10. Indices are allocated contiguously starting
// at 0 and are only ever removed from the top (LIFO), matching the Bank's
// revert semantics for undoing an Open.
type Directory struct {
	mu      sync.RWMutex
	byKey   map[cryptoprim.Public]uint64
	byIndex []cryptoprim.Public
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{byKey: make(map[cryptoprim.Public]uint64)}
}

// Insert allocates the next dense index for pub, erroring if pub is
// already present.
func (d *Directory) Insert(pub cryptoprim.Public) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byKey[pub]; exists {
		return 0, fmt.Errorf("directory: account already exists")
	}
	idx := uint64(len(d.byIndex))
	d.byKey[pub] = idx
	d.byIndex = append(d.byIndex, pub)
	return idx, nil
}

// Lookup resolves pub to its dense index, if known.
func (d *Directory) Lookup(pub cryptoprim.Public) (uint64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.byKey[pub]
	return idx, ok
}

// KeyAt returns the public key holding index i, if any.
func (d *Directory) KeyAt(i uint64) (cryptoprim.Public, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i >= uint64(len(d.byIndex)) {
		return cryptoprim.Public{}, false
	}
	return d.byIndex[i], true
}

// Len reports how many accounts are known.
func (d *Directory) Len() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return uint64(len(d.byIndex))
}

// PopLast removes the most recently inserted account, used to undo an
// Open during a batch revert (indices are reused LIFO within a
// reversion, spec.md §4.5).
func (d *Directory) PopLast() (cryptoprim.Public, uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.byIndex) == 0 {
		return cryptoprim.Public{}, 0, false
	}
	idx := uint64(len(d.byIndex) - 1)
	pub := d.byIndex[idx]
	d.byIndex = d.byIndex[:idx]
	delete(d.byKey, pub)
	return pub, idx, true
}
