package mempool

import (
	"context"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/executor"
	"github.com/sltlabs/slt-node/internal/process"
	"github.com/sltlabs/slt-node/internal/telemetry"
	"github.com/sltlabs/slt-node/internal/wire"
)

// InboundOpen wraps a freshly received account-open request.
type InboundOpen struct{ Open wire.Open }

func (InboundOpen) Kind() string { return "mempool.inbound_open" }

// OpenDrained is sent to State with the drained open batch for a slot.
type OpenDrained struct {
	Slot  cryptoprim.Slot
	Items []executor.OpenVerified
}

func (OpenDrained) Kind() string { return "mempool.open_drained" }

// OpenPool accumulates verified account-open requests, deduplicated by
// account, bounded to its top-K by PoW difficulty.
type OpenPool struct {
	pool          *Mempool[cryptoprim.Public, executor.OpenVerified]
	minDifficulty cryptoprim.Difficulty
	state         process.Handle
	leaderMode    bool
}

// NewOpenPool creates an OpenPool capped at size entries, handing drained
// batches to state.
func NewOpenPool(size int, minDifficulty cryptoprim.Difficulty, state process.Handle) *OpenPool {
	return &OpenPool{
		pool:          New[cryptoprim.Public, executor.OpenVerified](size),
		minDifficulty: minDifficulty,
		state:         state,
	}
}

// Run is the OpenPool's actor body.
func (op *OpenPool) Run(ctx context.Context, mb *process.Mailbox) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		m, ok := mb.Recv()
		if !ok {
			return nil
		}
		switch msg := m.(type) {
		case StartLeaderMode:
			op.leaderMode = true
		case EndLeaderMode:
			op.pool.Clear()
			op.leaderMode = false
		case InboundOpen:
			if op.leaderMode {
				op.onInboundOpen(msg.Open)
			}
		case NewLeaderSlot:
			items := op.pool.Drain()
			telemetry.MempoolSizeGauge.WithLabelValues("open").Set(0)
			op.state.Send(OpenDrained{Slot: msg.Slot, Items: items})
		}
	}
}

func (op *OpenPool) onInboundOpen(o wire.Open) {
	hash, ok := executor.VerifyOpenAndHash(o, op.minDifficulty)
	if !ok {
		telemetry.BankTasksTotal.WithLabelValues("verify_open", "rejected").Inc()
		return
	}
	difficulty := o.Work.Difficulty(hash)
	if op.pool.Insert(o.Account, uint64(difficulty), executor.OpenVerified{Open: o, Hash: hash}) {
		telemetry.MempoolSizeGauge.WithLabelValues("open").Set(float64(op.pool.Len()))
	}
}
