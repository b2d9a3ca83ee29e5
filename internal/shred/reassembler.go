package shred

import (
	"context"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/process"
	"github.com/sltlabs/slt-node/internal/wire"
)

// InboundShred is forwarded by the gossip Receiver for every ShredNote
// datagram it decodes.
type InboundShred struct{ Note wire.ShredNote }

func (InboundShred) Kind() string { return "shred.inbound_shred" }

// BlockReassembled is emitted once every batch of a block's payload has
// been reconstructed, keyed by the slot it belongs to.
type BlockReassembled struct {
	Slot cryptoprim.Slot
	Data []byte
}

func (BlockReassembled) Kind() string { return "shred.block_reassembled" }

// Reassembler tracks one in-flight ShredList per slot, reconstructing and
// forwarding a block's payload to State once every batch is ready.
type Reassembler struct {
	maxDataSize int
	state       process.Handle
	inFlight    map[cryptoprim.Slot]*ShredList
}

// NewReassembler creates a Reassembler bounded by maxDataSize per block.
func NewReassembler(maxDataSize int, state process.Handle) *Reassembler {
	return &Reassembler{
		maxDataSize: maxDataSize,
		state:       state,
		inFlight:    make(map[cryptoprim.Slot]*ShredList),
	}
}

// Run is the Reassembler's actor body.
func (r *Reassembler) Run(ctx context.Context, mb *process.Mailbox) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		m, ok := mb.Recv()
		if !ok {
			return nil
		}
		msg, ok := m.(InboundShred)
		if !ok {
			continue
		}
		r.onShred(msg.Note)
	}
}

func (r *Reassembler) onShred(note wire.ShredNote) {
	sl, ok := r.inFlight[note.Slot]
	if !ok {
		sl = NewShredList(r.maxDataSize)
		r.inFlight[note.Slot] = sl
	}
	if err := sl.Provide(Shred{Header: note.Header, Data: note.Data}); err != nil {
		return
	}
	if !sl.Reconstructible() {
		return
	}
	data, err := sl.Reconstruct()
	if err != nil {
		return
	}
	delete(r.inFlight, note.Slot)
	r.state.Send(BlockReassembled{Slot: note.Slot, Data: data})
}
