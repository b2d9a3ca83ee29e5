package gossip

import (
	"context"
	"math/rand/v2"
	"net"
	"time"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/process"
	"github.com/sltlabs/slt-node/internal/telemetry"
	"github.com/sltlabs/slt-node/internal/wire"
)

// tickMessage drives the Transmitter's periodic heartbeat; it is injected
// into the actor's own mailbox by a ticker goroutine so the actor body
// only ever has to read from one channel of events (its mailbox).
type tickMessage struct{}

func (tickMessage) Kind() string { return "gossip.tick" }

// inboundTelemetryMessage carries a decoded peer heartbeat plus the raw
// bytes it arrived as, so an accepted-and-novel note can be re-broadcast
// verbatim.
type inboundTelemetryMessage struct {
	Note wire.TelemetryNote
	Raw  []byte
}

func (inboundTelemetryMessage) Kind() string { return "gossip.inbound_telemetry" }

// OutboundShred asks the Transmitter to fan a leader's already-encoded
// ShredNote datagram out to the peer table, reusing the same fanout and
// broadcaster path as the periodic telemetry heartbeat.
type OutboundShred struct {
	Payload []byte
}

func (OutboundShred) Kind() string { return "gossip.outbound_shred" }

// TransmitterConfig bundles everything the Transmitter needs to build and
// disseminate its own heartbeat and to admit peers' heartbeats.
type TransmitterConfig struct {
	SelfPrivate    cryptoprim.Private
	SelfPublic     cryptoprim.Public
	SelfEndpoint   wire.Endpoint
	Version        wire.Version
	Policy         Policy
	InitialPeers   []*net.UDPAddr
	SelfWeight     func() float64
	CurrentSlot    func() cryptoprim.Slot
}

// Transmitter owns the peer table, periodically broadcasts a signed
// TelemetryNote, and folds in inbound notes forwarded by the Receiver.
type Transmitter struct {
	cfg         TransmitterConfig
	peers       *PeerTable
	broadcaster process.Handle
}

// NewTransmitter creates a Transmitter over the given peer table,
// off-loading every send to the Broadcaster actor behind broadcaster.
func NewTransmitter(cfg TransmitterConfig, peers *PeerTable, broadcaster process.Handle) *Transmitter {
	return &Transmitter{cfg: cfg, peers: peers, broadcaster: broadcaster}
}

// Run is the Transmitter's actor body: a ticker goroutine feeds tick
// messages into mb at PeerUpdate cadence, and the loop below handles both
// ticks and forwarded inbound telemetry until ctx is cancelled.
func (tr *Transmitter) Run(ctx context.Context, mb *process.Mailbox) error {
	stopTicker := make(chan struct{})
	go func() {
		t := time.NewTicker(PeerUpdate)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				mb.Send(tickMessage{})
			case <-stopTicker:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	defer close(stopTicker)

	for {
		if ctx.Err() != nil {
			return nil
		}
		m, ok := mb.Recv()
		if !ok {
			return nil
		}
		switch msg := m.(type) {
		case tickMessage:
			tr.onTick()
		case inboundTelemetryMessage:
			tr.onInboundTelemetry(msg)
		case OutboundShred:
			tr.broadcastFanout(msg.Payload)
		}
	}
}

func (tr *Transmitter) onTick() {
	tr.peers.UpdateCenter(tr.cfg.SelfWeight())
	tr.peers.EvictStale(time.Now())

	note := wire.TelemetryNote{
		From:     tr.cfg.SelfPublic,
		Slot:     tr.cfg.CurrentSlot(),
		Endpoint: tr.cfg.SelfEndpoint,
		Version:  tr.cfg.Version,
	}
	note.Signature = tr.cfg.SelfPrivate.Sign(telemetryNoteHash(note))

	payload, err := wire.EncodeTelemetryNote(note)
	if err != nil {
		log.WithError(err).Warn("failed to encode outbound telemetry note")
		return
	}
	tr.broadcastFanout(payload)
}

func (tr *Transmitter) broadcastFanout(payload []byte) {
	endpoints := tr.peers.Endpoints()
	if len(endpoints) == 0 {
		tr.broadcaster.Send(BroadcastRequest{Endpoints: tr.cfg.InitialPeerAddrs(), Payload: payload})
		return
	}
	n := Fanout(len(endpoints))
	chosen := make([]*net.UDPAddr, 0, n)
	perm := rand.Perm(len(endpoints))
	for i := 0; i < n && i < len(perm); i++ {
		chosen = append(chosen, endpoints[perm[i]])
	}
	tr.broadcaster.Send(BroadcastRequest{Endpoints: chosen, Payload: payload})
	telemetry.GossipBroadcastTotal.Inc()
}

// InitialPeerAddrs returns the configured bootstrap peers, used only when
// the peer table is still empty.
func (cfg TransmitterConfig) InitialPeerAddrs() []*net.UDPAddr {
	return cfg.InitialPeers
}

func (tr *Transmitter) onInboundTelemetry(msg inboundTelemetryMessage) {
	ok, reason := tr.cfg.Policy.Accept(msg.Note.From, msg.Note.Endpoint, msg.Note.Version)
	if !ok {
		telemetry.GossipDropsTotal.WithLabelValues(reason).Inc()
		return
	}
	if !msg.Note.From.Verify(telemetryNoteHash(msg.Note), msg.Note.Signature) {
		telemetry.GossipDropsTotal.WithLabelValues("bad_signature").Inc()
		return
	}

	mutated := tr.admitPeer(msg.Note)
	telemetry.GossipPeersGauge.Set(float64(tr.peers.Len()))
	if mutated {
		tr.broadcastFanout(msg.Raw)
	}
}

// admitPeer updates a known peer (subject to the PEER_UPDATE staleness
// gate) or inserts a new one, returning whether the table was mutated. A
// new peer's priority is this node's own SelfWeight, not the peer's weight.
func (tr *Transmitter) admitPeer(note wire.TelemetryNote) bool {
	now := time.Now()
	if existing, ok := tr.peers.Get(note.From); ok {
		if now.Sub(existing.contactedAt) < PeerUpdate {
			return false
		}
		existing.Endpoint = note.Endpoint
		existing.Version = note.Version
		existing.LastContact = note.Slot
		existing.contactedAt = now
		return true
	}
	return tr.peers.Upsert(note.From, tr.cfg.SelfWeight(), &Peer{
		PublicKey:   note.From,
		Endpoint:    note.Endpoint,
		Version:     note.Version,
		LastContact: note.Slot,
		contactedAt: now,
	})
}

// telemetryNoteHash is the subject hash a TelemetryNote's Signature
// authenticates.
func telemetryNoteHash(n wire.TelemetryNote) cryptoprim.Hash {
	var slotBytes [8]byte
	for i := 0; i < 8; i++ {
		slotBytes[i] = byte(uint64(n.Slot) >> (8 * i))
	}
	return cryptoprim.DigestHash(n.From[:], slotBytes[:], n.Endpoint.Addr[:])
}
