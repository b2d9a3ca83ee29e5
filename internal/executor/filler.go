package executor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/directory"
	"github.com/sltlabs/slt-node/internal/process"
	"github.com/sltlabs/slt-node/internal/telemetry"
)

// fillerRetrieveTimeout bounds how long the filler waits on the
// directory's batched lookup before abandoning the whole slot's batch,
// per spec.md §4.9.
const fillerRetrieveTimeout = 500 * time.Millisecond

// TxDrained is emitted by the TxPool to the filler handle with the
// drained TxHalf batch for a given slot.
type TxDrained struct {
	Slot  cryptoprim.Slot
	Items []TxHalf
}

func (TxDrained) Kind() string { return "executor.tx_drained" }

// TxFullList is the filler's output, sent to the chain state actor once a
// slot's drained transactions have had their directory indices resolved.
type TxFullList struct {
	Slot  cryptoprim.Slot
	Items []TxFull
}

func (TxFullList) Kind() string { return "executor.tx_full_list" }

// TxFiller resolves the sender and receiver public keys of a drained
// batch of TxHalf into dense bank indices via one round-trip to the
// Directory actor, grounded on the reference tx_filler.rs staged-refinement
// design and implemented here atop the directory's batched-lookup
// message protocol.
type TxFiller struct {
	directory process.Handle
	state     process.Handle
}

// NewTxFiller creates a filler that queries dir and forwards resolved
// batches to state.
func NewTxFiller(dir, state process.Handle) *TxFiller {
	return &TxFiller{directory: dir, state: state}
}

// Run is the TxFiller's actor body.
func (f *TxFiller) Run(ctx context.Context, mb *process.Mailbox) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		m, ok := mb.Recv()
		if !ok {
			return nil
		}
		drained, ok := m.(TxDrained)
		if !ok {
			continue
		}
		f.fill(ctx, drained)
	}
}

func (f *TxFiller) fill(ctx context.Context, drained TxDrained) {
	if len(drained.Items) == 0 {
		f.state.Send(TxFullList{Slot: drained.Slot})
		return
	}

	keys := make([]cryptoprim.Public, 0, len(drained.Items)*2)
	for _, item := range drained.Items {
		keys = append(keys, item.Tx.From, item.Tx.To)
	}

	once := process.NewOncebox()
	f.directory.Send(directory.BatchedRetrieveRequest{ReplyTo: once, Keys: keys})

	reply, ok := once.RecvTimeout(ctx, fillerRetrieveTimeout)
	if !ok {
		logrus.WithField("slot", drained.Slot).Warn("executor: directory lookup timed out, dropping slot batch")
		telemetry.BankTasksTotal.WithLabelValues("fill_tx", "timeout").Inc()
		return
	}
	resp, ok := reply.(directory.BatchedRetrieveResponse)
	if !ok || len(resp.Indices) != len(keys) {
		logrus.WithField("slot", drained.Slot).Warn("executor: directory response malformed, dropping slot batch")
		telemetry.BankTasksTotal.WithLabelValues("fill_tx", "malformed_response").Inc()
		return
	}

	full := make([]TxFull, 0, len(drained.Items))
	for i, item := range drained.Items {
		fromIdx := resp.Indices[2*i]
		toIdx := resp.Indices[2*i+1]
		if !fromIdx.Present || !toIdx.Present {
			telemetry.BankTasksTotal.WithLabelValues("fill_tx", "unknown_account").Inc()
			continue
		}
		full = append(full, TxFull{TxHalf: item, FromIndex: fromIdx.Index, ToIndex: toIdx.Index})
	}

	telemetry.BankTasksTotal.WithLabelValues("fill_tx", "resolved").Add(float64(len(full)))
	f.state.Send(TxFullList{Slot: drained.Slot, Items: full})
}
