package cryptoprim

import (
	"fmt"
	"math/big"
	"strings"
)

// addressAlphabet is the custom base-32 alphabet used for account address
// encoding, chosen by the original design to avoid visually ambiguous
// characters (no 0/2/l/v), ported byte-for-byte from
// original_source/src/keys/public.rs's ACCOUNT_LOOKUP.
const addressAlphabet = "13456789abcdefghijkmnopqrstuwxyz"

// addressPrefix is prepended to every encoded address.
const addressPrefix = "slt_"

// addressChecksumLen is the number of BLAKE2b checksum bytes folded into
// the encoded value alongside the public key.
const addressChecksumLen = 5

// addressDigits is the number of base-32 characters in an encoded
// address body: the original packs the 256-bit public key and the 40-bit
// checksum into a single 296-bit value, then emits it 5 bits at a time as
// 60 characters (60*5 = 300 bits, high-padded with 4 zero bits above the
// 296 bits of real data).
const addressDigits = 60

var addressAlphabetIndex = func() map[byte]uint64 {
	m := make(map[byte]uint64, len(addressAlphabet))
	for i := 0; i < len(addressAlphabet); i++ {
		m[addressAlphabet[i]] = uint64(i)
	}
	return m
}()

// Address renders pub as the human-facing slt_ address, following
// original_source/src/keys/public.rs's to_address exactly: the 256-bit
// public key (big-endian) is shifted up 40 bits and OR'd with the 5-byte
// BLAKE2b checksum (read little-endian) into one 296-bit value, which is
// then emitted 5 bits at a time starting from the least-significant end
// and reversed, so the most-significant group becomes the first digit.
func Address(pub Public) string {
	checksum := digestN(addressChecksumLen, pub[:])

	combined := new(big.Int).SetBytes(pub[:])
	combined.Lsh(combined, addressChecksumLen*8)
	combined.Or(combined, checksumToInt(checksum))

	digits := make([]byte, addressDigits)
	mask := big.NewInt(0x1f)
	group := new(big.Int)
	for i := 0; i < addressDigits; i++ {
		group.And(combined, mask)
		digits[i] = addressAlphabet[group.Uint64()]
		combined.Rsh(combined, 5)
	}
	reverseBytes(digits)
	return addressPrefix + string(digits)
}

// ParseAddress decodes a slt_-prefixed address back into a Public key,
// rejecting malformed encodings and checksum mismatches.
func ParseAddress(s string) (Public, error) {
	var pub Public
	if !strings.HasPrefix(s, addressPrefix) {
		return pub, fmt.Errorf("cryptoprim: address missing %q prefix", addressPrefix)
	}
	body := s[len(addressPrefix):]
	if len(body) != addressDigits {
		return pub, fmt.Errorf("cryptoprim: address has %d digits, want %d", len(body), addressDigits)
	}

	combined := new(big.Int)
	for i := 0; i < len(body); i++ {
		v, ok := addressAlphabetIndex[body[i]]
		if !ok {
			return pub, fmt.Errorf("cryptoprim: invalid character %q at offset %d", body[i], i)
		}
		combined.Lsh(combined, 5)
		combined.Or(combined, new(big.Int).SetUint64(v))
	}

	checksumMask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), addressChecksumLen*8), big.NewInt(1))
	gotChecksumInt := new(big.Int).And(combined, checksumMask)
	pubInt := new(big.Int).Rsh(combined, addressChecksumLen*8)

	pubBytes := pubInt.FillBytes(make([]byte, PublicLen))
	copy(pub[:], pubBytes)

	want := digestN(addressChecksumLen, pub[:])
	if !intEqualsLEChecksum(gotChecksumInt, want) {
		return Public{}, fmt.Errorf("cryptoprim: address checksum mismatch")
	}
	return pub, nil
}

// checksumToInt interprets a 5-byte checksum as a little-endian integer
// (original_source's U512::from_little_endian), i.e. checksum[0] is the
// least-significant byte.
func checksumToInt(checksum []byte) *big.Int {
	be := make([]byte, len(checksum))
	for i, b := range checksum {
		be[len(checksum)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}

// intEqualsLEChecksum reports whether n, read as the little-endian
// integer checksumToInt would have produced, equals want.
func intEqualsLEChecksum(n *big.Int, want []byte) bool {
	got := n.FillBytes(make([]byte, addressChecksumLen)) // big-endian, MSB first
	for i := range want {
		if want[i] != got[addressChecksumLen-1-i] {
			return false
		}
	}
	return true
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
