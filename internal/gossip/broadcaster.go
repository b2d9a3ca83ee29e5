package gossip

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/sltlabs/slt-node/internal/process"
)

// log is the package logger, overridable like process.SetLogger.
var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger overrides the package logger.
func SetLogger(l logrus.FieldLogger) { log = l }

// BroadcastRequest asks the Broadcaster to fire-and-forget bytes to a set
// of endpoints.
type BroadcastRequest struct {
	Endpoints []*net.UDPAddr
	Payload   []byte
}

func (BroadcastRequest) Kind() string { return "gossip.broadcast" }

// Broadcaster off-loads the syscalls of sending one payload to many
// endpoints, so the Transmitter's tick loop never blocks on a slow peer.
type Broadcaster struct {
	conn net.PacketConn
}

// NewBroadcaster wraps an already-bound UDP connection.
func NewBroadcaster(conn net.PacketConn) *Broadcaster {
	return &Broadcaster{conn: conn}
}

// Broadcast sends payload to every endpoint, ignoring individual send
// errors (outbound sends are fire-and-forget per spec.md §4.4).
func (b *Broadcaster) Broadcast(endpoints []*net.UDPAddr, payload []byte) {
	for _, ep := range endpoints {
		if _, err := b.conn.WriteTo(payload, ep); err != nil {
			log.WithFields(logrus.Fields{"endpoint": ep.String(), "error": err}).Debug("broadcast send failed")
		}
	}
}

// Run is the Broadcaster's actor body, per spec.md §4.4: "exposes a
// single Broadcast(endpoints, bytes) message used by the Transmitter to
// off-load syscalls". The Transmitter sends BroadcastRequest rather than
// calling Broadcast directly, so a slow batch of sendto syscalls never
// blocks the tick loop that decides fanout.
func (b *Broadcaster) Run(ctx context.Context, mb *process.Mailbox) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		m, ok := mb.Recv()
		if !ok {
			return nil
		}
		req, ok := m.(BroadcastRequest)
		if !ok {
			continue
		}
		b.Broadcast(req.Endpoints, req.Payload)
	}
}
