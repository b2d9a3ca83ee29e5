package cryptoprim

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// SeedLen is the size in bytes of a Seed.
const SeedLen = 32

// Seed is a 256-bit master secret from which any number of account
// private keys can be deterministically derived by index.
type Seed [SeedLen]byte

// RandomSeed generates a new random seed using crypto/rand.
func RandomSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("cryptoprim: generating seed: %w", err)
	}
	return s, nil
}

// Derive deterministically derives the private key at the given account
// index: BLAKE2b-256 of the seed bytes followed by the big-endian index.
func (s Seed) Derive(index uint32) Private {
	var buf [SeedLen + 4]byte
	copy(buf[:SeedLen], s[:])
	binary.BigEndian.PutUint32(buf[SeedLen:], index)
	return Private(DigestHash(buf[:]))
}

func (s Seed) Bytes() []byte { return s[:] }

func SeedFromBytes(b []byte) (Seed, error) {
	var s Seed
	if len(b) != SeedLen {
		return s, fmt.Errorf("cryptoprim: wrong seed length %d", len(b))
	}
	copy(s[:], b)
	return s, nil
}
