package mempool

import (
	"context"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/executor"
	"github.com/sltlabs/slt-node/internal/process"
	"github.com/sltlabs/slt-node/internal/telemetry"
	"github.com/sltlabs/slt-node/internal/wire"
)

// txKey dedups the pool by (sender, nonce): a sender may only have one
// queued transaction per nonce at a time.
type txKey struct {
	From  cryptoprim.Public
	Nonce uint64
}

// StartLeaderMode and EndLeaderMode toggle a pool between accumulating
// and idle; NewLeaderSlot triggers a drain.
type StartLeaderMode struct{}

func (StartLeaderMode) Kind() string { return "mempool.start_leader_mode" }

type EndLeaderMode struct{}

func (EndLeaderMode) Kind() string { return "mempool.end_leader_mode" }

type NewLeaderSlot struct{ Slot cryptoprim.Slot }

func (NewLeaderSlot) Kind() string { return "mempool.new_leader_slot" }

// InboundTx wraps a freshly received transaction for insertion.
type InboundTx struct{ Tx wire.Transaction }

func (InboundTx) Kind() string { return "mempool.inbound_tx" }

// TxPool accumulates verified transactions, bounded to its top-K by PoW
// difficulty, draining to the filler at each leader slot.
type TxPool struct {
	pool          *Mempool[txKey, executor.TxHalf]
	minDifficulty cryptoprim.Difficulty
	filler        process.Handle
	leaderMode    bool
}

// NewTxPool creates a TxPool capped at size entries, handing drained
// batches to filler.
func NewTxPool(size int, minDifficulty cryptoprim.Difficulty, filler process.Handle) *TxPool {
	return &TxPool{
		pool:          New[txKey, executor.TxHalf](size),
		minDifficulty: minDifficulty,
		filler:        filler,
	}
}

// Run is the TxPool's actor body.
func (tp *TxPool) Run(ctx context.Context, mb *process.Mailbox) error {
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
			tp.leaderMode = true
		case EndLeaderMode:
			tp.pool.Clear()
			tp.leaderMode = false
		case InboundTx:
			if tp.leaderMode {
				tp.onInboundTx(msg.Tx)
			}
		case NewLeaderSlot:
			items := tp.pool.Drain()
			telemetry.MempoolSizeGauge.WithLabelValues("tx").Set(0)
			tp.filler.Send(executor.TxDrained{Slot: msg.Slot, Items: items})
		}
	}
}

func (tp *TxPool) onInboundTx(tx wire.Transaction) {
	hash, ok := executor.VerifyAndHash(tx, tp.minDifficulty)
	if !ok {
		telemetry.BankTasksTotal.WithLabelValues("verify_tx", "rejected").Inc()
		return
	}
	difficulty := tx.Work.Difficulty(hash)
	key := txKey{From: tx.From, Nonce: tx.Nonce}
	if tp.pool.Insert(key, uint64(difficulty), executor.TxHalf{Tx: tx, Hash: hash}) {
		telemetry.MempoolSizeGauge.WithLabelValues("tx").Set(float64(tp.pool.Len()))
	}
}
