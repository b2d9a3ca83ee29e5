package cryptoprim

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// PublicLen and SignatureLen mirror the wire-format sizes from spec.md §3.
const (
	PublicLen    = 32
	PrivateLen   = 32
	SignatureLen = 64
)

// Public is a 32-byte Ed25519 public key, identifying an account.
type Public [PublicLen]byte

// Private is a 32-byte Ed25519 seed (not the expanded 64-byte key).
type Private [PrivateLen]byte

// Signature is a 64-byte Ed25519 signature.
type Signature [SignatureLen]byte

func (p Public) Equal(other Public) bool {
	return subtle.ConstantTimeCompare(p[:], other[:]) == 1
}

func (p Public) IsZero() bool { return p.Equal(Public{}) }

func (p Public) String() string { return hex.EncodeToString(p[:]) }

func (p Public) Bytes() []byte { return p[:] }

// PublicFromBytes copies b into a Public, erroring on wrong length.
func PublicFromBytes(b []byte) (Public, error) {
	var p Public
	if len(b) != PublicLen {
		return p, fmt.Errorf("cryptoprim: wrong public key length %d", len(b))
	}
	copy(p[:], b)
	return p, nil
}

// BurnPublic is the all-zero public key reserved for the burn address
// (spec.md §3: "index 1 is the burn address").
func BurnPublic() Public { return Public{} }

// RandomPrivate generates a new random seed using crypto/rand.
func RandomPrivate() (Private, error) {
	var priv Private
	if _, err := rand.Read(priv[:]); err != nil {
		return priv, fmt.Errorf("cryptoprim: generating private key: %w", err)
	}
	return priv, nil
}

// ToPublic derives the Ed25519 public key for this seed, using the
// reference network's BLAKE2b-keyed Ed25519 variant
// (original_source/src/keys/private.rs's ed25519_dalek_blake2_feeless)
// rather than the standard library's SHA-512 expansion, so derived keys
// match the reference network's (Testable Scenario S3) exactly.
func (priv Private) ToPublic() Public {
	return Public(blake2bPublicFromSeed(priv[:]))
}

// Sign signs the given hash with the BLAKE2b-Ed25519 variant, matching
// the teacher's core/security.go AlgoEd25519 call site but swapping in the
// reference network's hash.
func (priv Private) Sign(h Hash) Signature {
	return Signature(blake2bSign(priv[:], h[:]))
}

// Verify checks sig over h against pub under the same BLAKE2b-Ed25519
// variant.
func (pub Public) Verify(h Hash, sig Signature) bool {
	return blake2bVerify(pub[:], h[:], sig[:])
}

var errBadSignatureLen = errors.New("cryptoprim: wrong signature length")

func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != SignatureLen {
		return s, errBadSignatureLen
	}
	copy(s[:], b)
	return s, nil
}
