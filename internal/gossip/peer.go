// Package gossip implements the UDP gossip fabric: the Transmitter,
// Receiver, and Broadcaster actors that share one socket to disseminate
// telemetry, shreds, transactions, and opens, grounded on the teacher's
// core/network.go Node (peer bookkeeping, self-origin rejection) with the
// libp2p transport replaced by a raw net.PacketConn per the wire format.
package gossip

import (
	"math"
	"net"
	"time"

	"github.com/sltlabs/slt-node/internal/centermap"
	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/wire"
)

// PeerUpdate is the Transmitter's heartbeat interval.
const PeerUpdate = 15 * time.Second

// PeerEvictAfter is how long a peer may go without contact before it is
// evicted from the table.
const PeerEvictAfter = 3 * PeerUpdate

// Peer is one entry in the gossip peer table.
type Peer struct {
	PublicKey   cryptoprim.Public
	Endpoint    wire.Endpoint
	Version     wire.Version
	LastContact cryptoprim.Slot
	contactedAt time.Time
}

// PeerTable holds known peers in a CenterMap keyed by public key, keeping
// a capped set of entries below and above the node's own weight. The
// Transmitter inserts each new peer with the node's own SelfWeight as its
// priority; the peer's own weight is not looked up. Broadcast fanout picks
// among all tracked peers uniformly at random.
type PeerTable struct {
	m *centermap.Map[cryptoprim.Public, *Peer]
}

// NewPeerTable creates an empty table with the configured side caps.
func NewPeerTable(maxLess, maxGreater int) *PeerTable {
	return &PeerTable{m: centermap.New[cryptoprim.Public, *Peer](maxLess, maxGreater)}
}

// UpdateCenter re-centers the table on the node's current self-weight.
func (t *PeerTable) UpdateCenter(selfWeight float64) {
	t.m.UpdateCenter(selfWeight)
}

// Upsert inserts a new peer or replaces a known peer's entry with p at the
// given weight, returning whether the entry is now in the table (see
// centermap.Map.Insert). It performs no staleness check: the caller is
// responsible for the "now - last_contact >= PEER_UPDATE" check before
// calling this for known peers.
func (t *PeerTable) Upsert(pub cryptoprim.Public, weight float64, p *Peer) bool {
	return t.m.Insert(pub, weight, p)
}

// Get returns the known peer for pub, if any.
func (t *PeerTable) Get(pub cryptoprim.Public) (*Peer, bool) {
	return t.m.Get(pub)
}

// EvictStale removes peers whose last contact exceeds PeerEvictAfter.
func (t *PeerTable) EvictStale(now time.Time) {
	var stale []cryptoprim.Public
	t.m.Each(func(e centermap.Entry[cryptoprim.Public, *Peer]) {
		if now.Sub(e.Value.contactedAt) >= PeerEvictAfter {
			stale = append(stale, e.Key)
		}
	})
	for _, k := range stale {
		t.m.Remove(k)
	}
}

// Len returns the number of tracked peers.
func (t *PeerTable) Len() int { return t.m.Len() }

// Each iterates peers in table order.
func (t *PeerTable) Each(f func(*Peer)) {
	t.m.Each(func(e centermap.Entry[cryptoprim.Public, *Peer]) { f(e.Value) })
}

// Endpoints returns the UDP addresses of every tracked peer.
func (t *PeerTable) Endpoints() []*net.UDPAddr {
	out := make([]*net.UDPAddr, 0, t.Len())
	t.Each(func(p *Peer) {
		out = append(out, endpointToUDPAddr(p.Endpoint))
	})
	return out
}

func endpointToUDPAddr(ep wire.Endpoint) *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.IPv4(ep.Addr[0], ep.Addr[1], ep.Addr[2], ep.Addr[3]),
		Port: int(ep.Port),
	}
}

// Fanout computes the number of peers a broadcast should reach, a
// decreasing function of table size to bound per-tick work.
func Fanout(n int) int {
	switch {
	case n < 8:
		return n
	case n < 16:
		return n / 2
	case n < 32:
		return n / 3
	case n < 64:
		return n / 4
	default:
		return ceilPow(n, 0.58)
	}
}

func ceilPow(n int, exp float64) int {
	return int(math.Ceil(math.Pow(float64(n), exp)))
}
