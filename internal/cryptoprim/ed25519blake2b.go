package cryptoprim

import (
	"crypto/subtle"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/blake2b"
)

// This file implements the BLAKE2b-keyed Ed25519 variant the reference
// network uses (`ed25519_dalek_blake2_feeless` in
// original_source/src/keys/{private,public}.rs): RFC 8032's point
// arithmetic, unchanged, with BLAKE2b-512 substituted for every SHA-512
// call in seed expansion, signing and verification. filippo.io/edwards25519
// supplies the scalar/point arithmetic (the same library crypto/ed25519
// itself is built on); only the hash function differs from the standard
// library's implementation.

// blake2b512 returns the unkeyed 64-byte BLAKE2b digest of data, matching
// the original's default (unkeyed, 64-byte) blake2b_simd::Params.
func blake2b512(data ...[]byte) []byte {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic("cryptoprim: blake2b-512 init failed: " + err.Error())
	}
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// blake2bPublicFromSeed expands a 32-byte seed into its Ed25519 public
// key under the BLAKE2b variant.
func blake2bPublicFromSeed(seed []byte) [PublicLen]byte {
	h := blake2b512(seed)
	s, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		panic("cryptoprim: clamping seed scalar: " + err.Error())
	}
	A := new(edwards25519.Point).ScalarBaseMult(s)
	var pub [PublicLen]byte
	copy(pub[:], A.Bytes())
	return pub
}

// blake2bSign signs message with the seed's expanded secret scalar.
func blake2bSign(seed, message []byte) [SignatureLen]byte {
	h := blake2b512(seed)
	s, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		panic("cryptoprim: clamping seed scalar: " + err.Error())
	}
	prefix := h[32:]
	public := new(edwards25519.Point).ScalarBaseMult(s).Bytes()

	r, err := edwards25519.NewScalar().SetUniformBytes(blake2b512(prefix, message))
	if err != nil {
		panic("cryptoprim: reducing nonce scalar: " + err.Error())
	}
	R := new(edwards25519.Point).ScalarBaseMult(r)

	k, err := edwards25519.NewScalar().SetUniformBytes(blake2b512(R.Bytes(), public, message))
	if err != nil {
		panic("cryptoprim: reducing challenge scalar: " + err.Error())
	}

	S := edwards25519.NewScalar().MultiplyAdd(k, s, r)

	var sig [SignatureLen]byte
	copy(sig[:32], R.Bytes())
	copy(sig[32:], S.Bytes())
	return sig
}

// blake2bVerify reports whether sig is a valid BLAKE2b-Ed25519 signature
// of message under pub.
func blake2bVerify(pub, message, sig []byte) bool {
	if len(sig) != SignatureLen || sig[63]&224 != 0 {
		return false
	}
	A, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return false
	}

	k, err := edwards25519.NewScalar().SetUniformBytes(blake2b512(sig[:32], pub, message))
	if err != nil {
		return false
	}
	S, err := edwards25519.NewScalar().SetCanonicalBytes(sig[32:])
	if err != nil {
		return false
	}

	minusA := new(edwards25519.Point).Negate(A)
	R := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(k, minusA, S)

	return subtle.ConstantTimeCompare(sig[:32], R.Bytes()) == 1
}
