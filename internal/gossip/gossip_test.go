package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/wire"
)

func TestFanoutFormula(t *testing.T) {
	require.Equal(t, 5, Fanout(5))
	require.Equal(t, 5, Fanout(10))
	require.Equal(t, 10, Fanout(30))
	require.Equal(t, 15, Fanout(60))
	require.Equal(t, 15, Fanout(100)) // ceil(100^0.58) = ceil(14.45...)
}

func TestPolicyRejectsVersionMismatch(t *testing.T) {
	p := Policy{VersionMajor: 2}
	ok, reason := p.Accept([32]byte{1}, wire.Endpoint{Addr: [4]byte{8, 8, 8, 8}}, wire.Version{Major: 1})
	require.False(t, ok)
	require.Equal(t, "version_major_mismatch", reason)
}

func TestPolicyRejectsSelfOrigin(t *testing.T) {
	self := [32]byte{9}
	p := Policy{VersionMajor: 1, SelfPublic: self}
	ok, reason := p.Accept(self, wire.Endpoint{Addr: [4]byte{8, 8, 8, 8}}, wire.Version{Major: 1})
	require.False(t, ok)
	require.Equal(t, "self_origin", reason)
}

func TestPolicyRejectsPrivateIPUnlessAllowed(t *testing.T) {
	p := Policy{VersionMajor: 1}
	ok, reason := p.Accept([32]byte{2}, wire.Endpoint{Addr: [4]byte{10, 0, 0, 5}}, wire.Version{Major: 1})
	require.False(t, ok)
	require.Equal(t, "private_ip", reason)

	p.AllowPrivateIPAddresses = true
	ok, _ = p.Accept([32]byte{2}, wire.Endpoint{Addr: [4]byte{10, 0, 0, 5}}, wire.Version{Major: 1})
	require.True(t, ok)
}

func TestPeerTableEvictsStale(t *testing.T) {
	pt := NewPeerTable(10, 10)
	var pub cryptoprim.Public
	pub[0] = 1
	pt.Upsert(pub, 1.0, &Peer{PublicKey: pub, contactedAt: time.Now().Add(-PeerEvictAfter * 2)})
	require.Equal(t, 1, pt.Len())

	pt.EvictStale(time.Now())
	require.Equal(t, 0, pt.Len())
}
