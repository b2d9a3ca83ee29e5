package cryptoprim

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashEqualAndZero(t *testing.T) {
	h := DigestHash([]byte("hello"))
	require.False(t, h.IsZero())
	require.True(t, h.Equal(h))
	require.True(t, ZeroHash.IsZero())
}

func TestMerkleRootSingleAndEmpty(t *testing.T) {
	require.True(t, MerkleRoot([]Hash{}, func(h Hash) Hash { return h }).IsZero())

	single := DigestHash([]byte("a"))
	require.Equal(t, single, MerkleRoot([]Hash{single}, func(h Hash) Hash { return h }))
}

func TestMerkleRootOddPaddingEquivalence(t *testing.T) {
	a := DigestHash([]byte("a"))
	b := DigestHash([]byte("b"))
	c := DigestHash([]byte("c"))

	odd := MerkleRoot([]Hash{a, b, c}, func(h Hash) Hash { return h })
	padded := MerkleRoot([]Hash{a, b, c, ZeroHash}, func(h Hash) Hash { return h })
	require.Equal(t, padded, odd)
}

func TestMerkleRootTerminatesOnPowerOfTwo(t *testing.T) {
	leaves := make([]Hash, 4)
	for i := range leaves {
		leaves[i] = DigestHash([]byte{byte(i)})
	}
	root := MerkleRoot(leaves, func(h Hash) Hash { return h })
	require.False(t, root.IsZero())
}

func TestKeysSignVerifyRoundTrip(t *testing.T) {
	priv, err := RandomPrivate()
	require.NoError(t, err)
	pub := priv.ToPublic()

	h := DigestHash([]byte("message"))
	sig := priv.Sign(h)
	require.True(t, pub.Verify(h, sig))

	other := DigestHash([]byte("tampered"))
	require.False(t, pub.Verify(other, sig))
}

func TestAddressRoundTrip(t *testing.T) {
	priv, err := RandomPrivate()
	require.NoError(t, err)
	pub := priv.ToPublic()

	addr := Address(pub)
	require.Regexp(t, `^slt_`, addr)

	decoded, err := ParseAddress(addr)
	require.NoError(t, err)
	require.Equal(t, pub, decoded)
}

func TestAddressRejectsBadChecksum(t *testing.T) {
	priv, err := RandomPrivate()
	require.NoError(t, err)
	pub := priv.ToPublic()
	addr := Address(pub)

	tampered := addr[:len(addr)-1] + "1"
	if tampered == addr {
		tampered = addr[:len(addr)-1] + "3"
	}
	_, err = ParseAddress(tampered)
	require.Error(t, err)
}

// TestVectorS3 pins the reference network's Scenario S3: seed 00...00,
// account index 0, must derive the exact private/public key and address
// the reference implementation produces, under the BLAKE2b-keyed Ed25519
// variant and the original account-address packing.
func TestVectorS3(t *testing.T) {
	var seed Seed // all-zero
	priv := seed.Derive(0)
	pub := priv.ToPublic()

	privHex := strings.ToUpper(hex.EncodeToString(priv[:]))
	pubHex := strings.ToUpper(hex.EncodeToString(pub[:]))
	require.True(t, strings.HasPrefix(privHex, "9F0E"), "private key %s", privHex)
	require.True(t, strings.HasSuffix(privHex, "120F"), "private key %s", privHex)
	require.True(t, strings.HasPrefix(pubHex, "C008"), "public key %s", pubHex)
	require.True(t, strings.HasSuffix(pubHex, "552B"), "public key %s", pubHex)

	require.Equal(t, "slt_3i1aq1cchnmbn9x5rsbap8b15akfh7wj7pwskuzi7ahz8oq6cobd99d4r3b7", Address(pub))
}

func TestSeedDerivationIsDeterministic(t *testing.T) {
	seed, err := RandomSeed()
	require.NoError(t, err)

	p1 := seed.Derive(0)
	p2 := seed.Derive(0)
	require.Equal(t, p1, p2)

	p3 := seed.Derive(1)
	require.NotEqual(t, p1, p3)
}

func TestAmountSaturatingArithmetic(t *testing.T) {
	var a Amount = 5
	require.Equal(t, Amount(3), a.Sub(2))
	require.Equal(t, Amount(0), a.Sub(10))

	max := Amount(^uint64(0))
	require.Equal(t, max, max.Add(1))
}

func TestWorkVerifyAgainstGeneratedWork(t *testing.T) {
	subject := DigestHash([]byte("subject"))
	// A low difficulty threshold so the search terminates quickly in tests.
	min := Difficulty(0x0000000100000000)
	w := Generate(subject, min, 0)
	require.True(t, w.Verify(subject, min))
}

func TestDifficultyStringRoundTrip(t *testing.T) {
	d := BaseDifficulty
	parsed, err := ParseDifficulty(d.String())
	require.NoError(t, err)
	require.Equal(t, d, parsed)
}

func TestSlotEpochArithmetic(t *testing.T) {
	s := Slot(EpochLen + 5)
	require.Equal(t, Epoch(1), s.Epoch())
	require.Equal(t, uint64(5), s.IndexInEpoch())
	require.Equal(t, s, Epoch(1).FirstSlot()+5)
}
