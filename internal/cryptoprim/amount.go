package cryptoprim

import "math"

// Amount is a raw account balance, denominated in the smallest unit.
// Unit is the number of raw units per whole coin, and InitialSupply is the
// total raw balance minted into the genesis account at node index 0.
const (
	Unit          uint64 = 10_000_000_000
	InitialSupply uint64 = math.MaxInt64
)

// Amount wraps a raw u64 balance with saturating arithmetic, matching the
// original design's refusal to let transfers over/underflow a balance.
type Amount uint64

// Add returns a+b, saturating at math.MaxUint64 instead of wrapping.
func (a Amount) Add(b Amount) Amount {
	if uint64(a) > math.MaxUint64-uint64(b) {
		return Amount(math.MaxUint64)
	}
	return a + b
}

// Sub returns a-b, saturating at 0 instead of wrapping.
func (a Amount) Sub(b Amount) Amount {
	if b > a {
		return 0
	}
	return a - b
}

// GreaterOrEqual reports whether a >= b.
func (a Amount) GreaterOrEqual(b Amount) bool { return a >= b }

func (a Amount) Uint64() uint64 { return uint64(a) }
