package wire

import (
	"testing"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/stretchr/testify/require"
)

func samplePublic(seed byte) cryptoprim.Public {
	var p cryptoprim.Public
	for i := range p {
		p[i] = seed
	}
	return p
}

func TestTelemetryNoteRoundTrip(t *testing.T) {
	n := TelemetryNote{
		From: samplePublic(1),
		Slot: 42,
		Endpoint: Endpoint{
			Addr: [4]byte{127, 0, 0, 1},
			Port: 9000,
		},
		Version: Version{Major: 1, Minor: 2, Patch: 3},
	}
	buf, err := EncodeTelemetryNote(n)
	require.NoError(t, err)

	env, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, TagTelemetryNote, env.Tag)
	require.NotNil(t, env.Telemetry)
	require.Equal(t, n.From, env.Telemetry.From)
	require.Equal(t, n.Slot, env.Telemetry.Slot)
	require.Equal(t, n.Endpoint, env.Telemetry.Endpoint)
	require.Equal(t, n.Version, env.Telemetry.Version)
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := Transaction{
		Nonce:  7,
		From:   samplePublic(2),
		Amount: 1000,
		To:     samplePublic(3),
	}
	buf, err := EncodeTransaction(tx)
	require.NoError(t, err)

	env, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, TagTransaction, env.Tag)
	require.Equal(t, tx.Nonce, env.Tx.Nonce)
	require.Equal(t, tx.Amount, env.Tx.Amount)
	require.Equal(t, tx.From, env.Tx.From)
	require.Equal(t, tx.To, env.Tx.To)
}

func TestOpenRoundTrip(t *testing.T) {
	o := Open{
		Account:        samplePublic(4),
		Representative: samplePublic(5),
	}
	buf, err := EncodeOpen(o)
	require.NoError(t, err)

	env, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, TagOpen, env.Tag)
	require.Equal(t, o.Account, env.Open.Account)
	require.Equal(t, o.Representative, env.Open.Representative)
}

func TestShredNoteRoundTrip(t *testing.T) {
	s := ShredNote{
		From: samplePublic(6),
		Slot: 99,
		Header: ShredHeader{
			NBatches:        1,
			NDataShreds:     32,
			OverallDataSize: 4096,
			BatchIndex:      0,
			ShredIndex:      5,
		},
		Data: []byte("shred-payload"),
	}
	buf, err := EncodeShredNote(s)
	require.NoError(t, err)

	env, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, TagShredNote, env.Tag)
	require.Equal(t, s.Header, env.Shred.Header)
	require.Equal(t, s.Data, env.Shred.Data)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf, err := EncodeOpen(Open{})
	require.NoError(t, err)
	buf[0] ^= 0xff

	_, err = Decode(buf)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeRejectsOversized(t *testing.T) {
	buf := make([]byte, MaxDatagram+1)
	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrOversized)
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	buf, err := EncodeOpen(Open{})
	require.NoError(t, err)
	buf[len(Magic)] = 0xfe

	_, err = Decode(buf)
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestBlockSelfHashDeterministic(t *testing.T) {
	b := Block{
		Slot:     10,
		Previous: cryptoprim.ZeroHash,
	}
	h1 := b.ComputeSelfHash()
	h2 := b.ComputeSelfHash()
	require.Equal(t, h1, h2)
}
