// Package cryptoprim implements the node's cryptographic primitives: hashes,
// keys, signatures, amounts, slots, proof-of-work and the address codec.
//
// Hashing follows the teacher's pattern of a package-level digest helper
// (see core/security.go's ComputeMerkleRoot) generalized to a 32-byte
// BLAKE2b digest used everywhere a content hash is needed.
package cryptoprim

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashLen is the fixed digest size used throughout the wire protocol.
const HashLen = 32

// Hash is a 32-byte BLAKE2b digest.
type Hash [HashLen]byte

// ZeroHash is the all-zero digest, used as Merkle padding.
var ZeroHash = Hash{}

// DigestHash hashes arbitrary bytes into a Hash using BLAKE2b-256.
func DigestHash(data ...[]byte) Hash {
	h, err := blake2b.New(HashLen, nil)
	if err != nil {
		panic(fmt.Sprintf("cryptoprim: blake2b init: %v", err))
	}
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// digestN hashes data into an n-byte BLAKE2b digest, for uses (PoW, address
// checksums) that need an output shorter than a full Hash.
func digestN(n int, data ...[]byte) []byte {
	h, err := blake2b.New(n, nil)
	if err != nil {
		panic(fmt.Sprintf("cryptoprim: blake2b init: %v", err))
	}
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Equal performs a constant-time comparison, matching the teacher's use of
// crypto/subtle in core/security.go for signature/key comparisons.
func (h Hash) Equal(other Hash) bool {
	return subtle.ConstantTimeCompare(h[:], other[:]) == 1
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h.Equal(ZeroHash)
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// HashFromBytes copies a byte slice into a Hash, erroring on wrong length.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashLen {
		return h, fmt.Errorf("cryptoprim: wrong hash length %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// MerkleRoot computes the Merkle root over leaves built by applying f to
// each item. An empty list yields the zero hash; a single item's hash is
// returned directly; otherwise leaves are hashed pairwise bottom-up, with
// an odd leaf list padded with ZeroHash before combining (Testable
// Property 4: commutative up to padding).
func MerkleRoot[T any](items []T, f func(T) Hash) Hash {
	switch len(items) {
	case 0:
		return ZeroHash
	case 1:
		return f(items[0])
	}
	leaves := make([]Hash, 0, len(items)+1)
	for _, it := range items {
		leaves = append(leaves, f(it))
	}
	return merkleRootDirect(leaves)
}

// merkleRootDirect reduces a leaf list to its root, padding each odd-length
// level with a trailing ZeroHash before pairing (spec.md Testable Property
// 4: odd-length result equals the even-length list with an appended zero).
func merkleRootDirect(leaves []Hash) Hash {
	row := leaves
	for len(row) > 1 {
		if len(row)%2 != 0 {
			row = append(row, ZeroHash)
		}
		next := make([]Hash, len(row)/2)
		for i := range next {
			next[i] = DigestHash(row[2*i][:], row[2*i+1][:])
		}
		row = next
	}
	return row[0]
}
