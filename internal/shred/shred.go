// Package shred implements Reed-Solomon erasure coding and reassembly of
// arbitrary byte payloads into fixed-size shreds, grounded on the
// process-wide encoder cache and DATA_TO_TOTAL batching scheme captured
// from the reference shredder, re-expressed with klauspost/reedsolomon in
// place of the reference's GF(2^8) library.
package shred

import (
	"fmt"
	"sync"

	"github.com/klauspost/reedsolomon"

	"github.com/sltlabs/slt-node/internal/wire"
)

// MaxDataShredsPerBatch is the largest number of data shreds one erasure
// batch may hold.
const MaxDataShredsPerBatch = 32

// DataToTotal maps a batch's data-shred count to its total (data+coding)
// shred count, chosen so every batch size recovers with the same
// probability as a full 32:32 batch. Index 0 (an empty batch) is unused.
var DataToTotal = [MaxDataShredsPerBatch + 1]int{
	0, 18, 20, 22, 23, 25, 27, 28, 30, // 8
	32, 33, 35, 36, 38, 39, 41, 42, // 16
	43, 45, 46, 48, 49, 51, 52, 53, // 24
	55, 56, 58, 59, 60, 62, 63, 64, // 32
}

// Shred is one erasure-coded chunk of a larger payload, self-describing
// enough for the decoder to reassemble it without any out-of-band state.
type Shred struct {
	Header wire.ShredHeader
	Data   []byte
}

var (
	encoderCacheMu sync.Mutex
	encoderCache   = map[[2]int]reedsolomon.Encoder{}
)

// encoderFor returns the cached Reed-Solomon encoder for the given
// (data, coding) shard counts, constructing and caching it on first use —
// the Go analogue of the reference implementation's process-wide
// ReedSolomonCache.
func encoderFor(dataShards, codingShards int) (reedsolomon.Encoder, error) {
	key := [2]int{dataShards, codingShards}
	encoderCacheMu.Lock()
	defer encoderCacheMu.Unlock()
	if enc, ok := encoderCache[key]; ok {
		return enc, nil
	}
	enc, err := reedsolomon.New(dataShards, codingShards)
	if err != nil {
		return nil, fmt.Errorf("shred: building reed-solomon encoder(%d,%d): %w", dataShards, codingShards, err)
	}
	encoderCache[key] = enc
	return enc, nil
}

// Encode splits data into shredLen-byte data shreds, grouped into batches
// of up to MaxDataShredsPerBatch, each expanded with Reed-Solomon coding
// shreds per DataToTotal. An empty input yields no shreds.
func Encode(data []byte, shredLen int) ([]Shred, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if shredLen <= 0 {
		return nil, fmt.Errorf("shred: shredLen must be positive, got %d", shredLen)
	}

	nDataShreds := ceilDiv(len(data), shredLen)
	nBatches := ceilDiv(nDataShreds, MaxDataShredsPerBatch)
	overallSize := uint32(len(data))

	out := make([]Shred, 0, nDataShreds)
	remaining := nDataShreds
	offset := 0
	for batchIdx := 0; batchIdx < nBatches; batchIdx++ {
		nData := MaxDataShredsPerBatch
		if remaining < MaxDataShredsPerBatch {
			nData = remaining
		}
		remaining -= nData
		nTotal := DataToTotal[nData]
		nCoding := nTotal - nData

		shards := make([][]byte, nTotal)
		for i := 0; i < nData; i++ {
			shard := make([]byte, shredLen)
			end := offset + shredLen
			if end > len(data) {
				end = len(data)
			}
			copy(shard, data[offset:end])
			offset = end
			shards[i] = shard
		}
		for i := nData; i < nTotal; i++ {
			shards[i] = make([]byte, shredLen)
		}

		if nCoding > 0 {
			enc, err := encoderFor(nData, nCoding)
			if err != nil {
				return nil, err
			}
			if err := enc.Encode(shards); err != nil {
				return nil, fmt.Errorf("shred: encoding batch %d: %w", batchIdx, err)
			}
		}

		for i, shard := range shards {
			out = append(out, Shred{
				Header: wire.ShredHeader{
					NBatches:        uint32(nBatches),
					NDataShreds:     uint32(nData),
					OverallDataSize: overallSize,
					BatchIndex:      uint32(batchIdx),
					ShredIndex:      uint32(i),
				},
				Data: shard,
			})
		}
	}
	return out, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
