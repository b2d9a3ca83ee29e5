package directory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// SegmentSize is the fixed size of each backing memory-mapped file, per
// spec.md §4.10 ("4 MiB memory-mapped files").
const SegmentSize = 4 * 1024 * 1024

// segment wraps one memory-mapped backing file.
type segment struct {
	file *os.File
	mm   mmap.MMap
}

func openSegment(path string) (*segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("directory: opening segment %s: %w", path, err)
	}
	if err := f.Truncate(SegmentSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("directory: truncating segment %s: %w", path, err)
	}
	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("directory: mapping segment %s: %w", path, err)
	}
	return &segment{file: f, mm: mm}, nil
}

func (s *segment) close() error {
	if err := s.mm.Unmap(); err != nil {
		return err
	}
	return s.file.Close()
}

// ListStore is an append-only, random-access vector of fixed-size records,
// backed by a growing sequence of SegmentSize memory-mapped files. It
// implements spec.md §4.10's ListStore, used to persist the dense account
// vector.
type ListStore struct {
	mu         sync.Mutex
	dir        string
	recordSize int
	perSegment int
	segments   []*segment
	length     int
}

// OpenListStore opens (creating as needed) a ListStore rooted at dir,
// holding fixed-size records of recordSize bytes.
func OpenListStore(dir string, recordSize int) (*ListStore, error) {
	if recordSize <= 0 {
		return nil, fmt.Errorf("directory: recordSize must be positive, got %d", recordSize)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("directory: creating list store dir: %w", err)
	}
	ls := &ListStore{
		dir:        dir,
		recordSize: recordSize,
		perSegment: SegmentSize / recordSize,
	}
	if ls.perSegment == 0 {
		return nil, fmt.Errorf("directory: recordSize %d exceeds segment size %d", recordSize, SegmentSize)
	}
	return ls, nil
}

func (ls *ListStore) segmentPath(n int) string {
	return filepath.Join(ls.dir, fmt.Sprintf("memmap_%d.bin", n))
}

func (ls *ListStore) ensureSegment(n int) (*segment, error) {
	for len(ls.segments) <= n {
		seg, err := openSegment(ls.segmentPath(len(ls.segments)))
		if err != nil {
			return nil, err
		}
		ls.segments = append(ls.segments, seg)
	}
	return ls.segments[n], nil
}

// Push appends record, growing into a new segment file once the current
// one is full.
func (ls *ListStore) Push(record []byte) error {
	if len(record) != ls.recordSize {
		return fmt.Errorf("directory: record is %d bytes, want %d", len(record), ls.recordSize)
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	idx := ls.length
	segIdx := idx / ls.perSegment
	offsetInSeg := (idx % ls.perSegment) * ls.recordSize
	seg, err := ls.ensureSegment(segIdx)
	if err != nil {
		return err
	}
	copy(seg.mm[offsetInSeg:offsetInSeg+ls.recordSize], record)
	ls.length++
	return nil
}

// Pop removes and returns the last record.
func (ls *ListStore) Pop() ([]byte, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.length == 0 {
		return nil, fmt.Errorf("directory: pop from empty list store")
	}
	idx := ls.length - 1
	segIdx := idx / ls.perSegment
	offsetInSeg := (idx % ls.perSegment) * ls.recordSize
	out := make([]byte, ls.recordSize)
	copy(out, ls.segments[segIdx].mm[offsetInSeg:offsetInSeg+ls.recordSize])
	ls.length--
	return out, nil
}

// Get returns a copy of the record at index i.
func (ls *ListStore) Get(i int) ([]byte, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if i < 0 || i >= ls.length {
		return nil, fmt.Errorf("directory: index %d out of range [0,%d)", i, ls.length)
	}
	segIdx := i / ls.perSegment
	offsetInSeg := (i % ls.perSegment) * ls.recordSize
	out := make([]byte, ls.recordSize)
	copy(out, ls.segments[segIdx].mm[offsetInSeg:offsetInSeg+ls.recordSize])
	return out, nil
}

// Len reports the number of records currently pushed.
func (ls *ListStore) Len() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.length
}

// Close unmaps and closes every backing segment file.
func (ls *ListStore) Close() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	var firstErr error
	for _, seg := range ls.segments {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
