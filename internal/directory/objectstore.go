package directory

import (
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// ObjectStore memory-maps a single fixed-size value, used to persist small
// singleton state such as the next_batch counter (spec.md §6's persisted
// state layout: "next_batch: single 8-byte counter").
type ObjectStore struct {
	mu   sync.Mutex
	file *os.File
	mm   mmap.MMap
	size int
}

// OpenObjectStore opens (creating as needed) a fixed-size object file at
// path, zero-filling it on first creation.
func OpenObjectStore(path string, size int) (*ObjectStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("directory: opening object store %s: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("directory: truncating object store %s: %w", path, err)
	}
	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("directory: mapping object store %s: %w", path, err)
	}
	return &ObjectStore{file: f, mm: mm, size: size}, nil
}

// Get returns a copy of the stored bytes.
func (o *ObjectStore) Get() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]byte, o.size)
	copy(out, o.mm)
	return out
}

// Put overwrites the stored bytes with b, which must be exactly size bytes.
func (o *ObjectStore) Put(b []byte) error {
	if len(b) != o.size {
		return fmt.Errorf("directory: object store value is %d bytes, want %d", len(b), o.size)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	copy(o.mm, b)
	return nil
}

// Close unmaps and closes the backing file.
func (o *ObjectStore) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.mm.Unmap(); err != nil {
		return err
	}
	return o.file.Close()
}
