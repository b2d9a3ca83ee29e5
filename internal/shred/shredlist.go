package shred

import (
	"fmt"
)

// batch accumulates the shreds of one erasure-coded group until it holds
// enough to reconstruct, or is abandoned.
type batch struct {
	chunkLen    int
	nData       int
	nProvided   int
	shards      [][]byte
	initialized bool
}

func (b *batch) init(chunkLen, nData int) {
	nTotal := DataToTotal[nData]
	b.chunkLen = chunkLen
	b.nData = nData
	b.shards = make([][]byte, nTotal)
	b.initialized = true
}

func (b *batch) ready() bool {
	return b.initialized && b.nProvided >= b.nData
}

// ShredList reassembles an in-flight payload from its constituent shreds,
// bounded by maxDataSize so a malicious sender cannot force unbounded
// allocation.
type ShredList struct {
	maxDataSize int

	initialized     bool
	nBatches        int
	overallDataSize uint32
	batches         []batch
}

// NewShredList creates an empty reassembler bounded by maxDataSize bytes.
func NewShredList(maxDataSize int) *ShredList {
	return &ShredList{maxDataSize: maxDataSize}
}

// Provide offers one shred to the list. It returns an error for shreds
// that disagree with already-accepted structure (inconsistent chunk_len,
// out-of-range indices, or a claimed size exceeding maxDataSize) — all
// local errors per the node's error classification, to be counted and
// dropped by the caller rather than propagated.
func (sl *ShredList) Provide(s Shred) error {
	if !sl.initialized {
		if int(s.Header.OverallDataSize) > sl.maxDataSize {
			return fmt.Errorf("shred: claimed size %d exceeds bound %d", s.Header.OverallDataSize, sl.maxDataSize)
		}
		sl.nBatches = int(s.Header.NBatches)
		sl.overallDataSize = s.Header.OverallDataSize
		sl.batches = make([]batch, sl.nBatches)
		sl.initialized = true
	}

	batchIdx := int(s.Header.BatchIndex)
	if batchIdx < 0 || batchIdx >= len(sl.batches) {
		return fmt.Errorf("shred: batch index %d out of range [0,%d)", batchIdx, len(sl.batches))
	}
	b := &sl.batches[batchIdx]

	if !b.initialized {
		b.init(len(s.Data), int(s.Header.NDataShreds))
	} else if len(s.Data) != b.chunkLen {
		return fmt.Errorf("shred: chunk length mismatch in batch %d: got %d, want %d", batchIdx, len(s.Data), b.chunkLen)
	}

	shredIdx := int(s.Header.ShredIndex)
	if shredIdx < 0 || shredIdx >= len(b.shards) {
		return fmt.Errorf("shred: shred index %d out of range [0,%d) in batch %d", shredIdx, len(b.shards), batchIdx)
	}
	if b.shards[shredIdx] != nil {
		return nil // duplicate shred, already held
	}
	b.shards[shredIdx] = s.Data
	b.nProvided++
	return nil
}

// NeedShred reports whether batchIdx/shredIdx is still missing, letting
// the gossip layer prune re-broadcast of shreds this node already holds.
func (sl *ShredList) NeedShred(batchIdx, shredIdx int) bool {
	if !sl.initialized || batchIdx < 0 || batchIdx >= len(sl.batches) {
		return true
	}
	b := &sl.batches[batchIdx]
	if !b.initialized || shredIdx < 0 || shredIdx >= len(b.shards) {
		return true
	}
	return b.shards[shredIdx] == nil
}

// Reconstructible reports whether every batch has at least n_data shreds.
func (sl *ShredList) Reconstructible() bool {
	if !sl.initialized {
		return false
	}
	for i := range sl.batches {
		if !sl.batches[i].ready() {
			return false
		}
	}
	return true
}

// Reconstruct runs Reed-Solomon recovery on every batch and concatenates
// the original data, truncated to the claimed overall size.
func (sl *ShredList) Reconstruct() ([]byte, error) {
	if !sl.Reconstructible() {
		return nil, fmt.Errorf("shred: not all batches are ready")
	}

	out := make([]byte, 0, sl.overallDataSize)
	for i := range sl.batches {
		b := &sl.batches[i]
		nTotal := len(b.shards)
		nCoding := nTotal - b.nData
		if nCoding > 0 {
			enc, err := encoderFor(b.nData, nCoding)
			if err != nil {
				return nil, err
			}
			if err := enc.Reconstruct(b.shards); err != nil {
				return nil, fmt.Errorf("shred: reconstructing batch %d: %w", i, err)
			}
		}
		for d := 0; d < b.nData; d++ {
			out = append(out, b.shards[d]...)
		}
	}
	if uint32(len(out)) > sl.overallDataSize {
		out = out[:sl.overallDataSize]
	}
	return out, nil
}
