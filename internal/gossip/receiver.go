package gossip

import (
	"context"
	"errors"
	"net"

	"github.com/sltlabs/slt-node/internal/mempool"
	"github.com/sltlabs/slt-node/internal/process"
	"github.com/sltlabs/slt-node/internal/shred"
	"github.com/sltlabs/slt-node/internal/telemetry"
	"github.com/sltlabs/slt-node/internal/wire"
)

// Receiver owns the UDP read loop, decoding datagrams and dispatching them
// to the appropriate downstream actor by envelope tag.
type Receiver struct {
	conn         net.PacketConn
	transmitter  process.Handle
	reassembler  process.Handle
	txPool       process.Handle
	openPool     process.Handle
	readBuf      []byte
}

// NewReceiver wraps a bound UDP connection, dispatching decoded envelopes
// to the given downstream handles.
func NewReceiver(conn net.PacketConn, transmitter, reassembler, txPool, openPool process.Handle) *Receiver {
	return &Receiver{
		conn:        conn,
		transmitter: transmitter,
		reassembler: reassembler,
		txPool:      txPool,
		openPool:    openPool,
		readBuf:     make([]byte, wire.MaxDatagram),
	}
}

// Run is the Receiver's actor body: a restartable loop that crashes (and
// is restarted by the supervisor) on anything but a transient read error.
func (r *Receiver) Run(ctx context.Context, mb *process.Mailbox) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, _, err := r.conn.ReadFrom(r.readBuf)
		if err != nil {
			if isTransientNetError(err) {
				continue
			}
			return err
		}
		r.dispatch(r.readBuf[:n])
	}
}

func (r *Receiver) dispatch(datagram []byte) {
	env, err := wire.Decode(datagram)
	if err != nil {
		reason := "malformed"
		switch {
		case errors.Is(err, wire.ErrBadMagic):
			reason = "bad_magic"
		case errors.Is(err, wire.ErrOversized):
			reason = "oversized"
		case errors.Is(err, wire.ErrUnknownTag):
			reason = "unknown_tag"
		}
		telemetry.GossipDropsTotal.WithLabelValues(reason).Inc()
		return
	}

	switch env.Tag {
	case wire.TagTelemetryNote:
		note := *env.Telemetry
		raw := append([]byte(nil), datagram...)
		r.transmitter.Send(inboundTelemetryMessage{Note: note, Raw: raw})
	case wire.TagShredNote:
		r.reassembler.Send(shred.InboundShred{Note: *env.Shred})
	case wire.TagTransaction:
		r.txPool.Send(mempool.InboundTx{Tx: *env.Tx})
	case wire.TagOpen:
		r.openPool.Send(mempool.InboundOpen{Open: *env.Open})
	}
}

func isTransientNetError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, errWouldBlock)
}

var errWouldBlock = errors.New("gossip: would block")
