package chain

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/sirupsen/logrus"

	"github.com/sltlabs/slt-node/internal/bank"
	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/executor"
	"github.com/sltlabs/slt-node/internal/gossip"
	"github.com/sltlabs/slt-node/internal/mempool"
	"github.com/sltlabs/slt-node/internal/process"
	"github.com/sltlabs/slt-node/internal/shred"
	"github.com/sltlabs/slt-node/internal/telemetry"
	"github.com/sltlabs/slt-node/internal/wire"
)

// log is the package logger, overridable like process.SetLogger.
var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger overrides the package logger.
func SetLogger(l logrus.FieldLogger) { log = l }

// finalizationNumerator/finalizationDenominator is the fraction of total stake a checkpoint's
// accumulated vote weight must cross before State finalizes it: the
// conventional 2/3 BFT threshold (an Open Question of spec.md, decided
// here — see DESIGN.md).
const (
	finalizationNumerator   = 2
	finalizationDenominator = 3
)

// pendingSlot accumulates a leader slot's two halves until both have
// arrived, per spec.md §4.6's "waits to receive both an OpenList and a
// TxList tagged with slot".
type pendingSlot struct {
	opens    []executor.OpenVerified
	hasOpens bool
	txs      []executor.TxFull
	hasTxs   bool
}

// appliedRecord remembers exactly what a committed block did to the
// Bank, so a later reorg can revert it and a later finalization can
// finalize the same tasks without recomputing them.
type appliedRecord struct {
	batch    uint64
	hadOpens bool
	tasks    []bank.Task
}

// voteTally accumulates distinct voters' weight behind one checkpoint
// hash, deduplicated by voter so a double vote cannot count twice.
type voteTally struct {
	seen   map[cryptoprim.Public]struct{}
	weight cryptoprim.Amount
}

// State owns the Bank, the fork DAG, and in-flight leader-slot
// production, grounded on the teacher's core/ledger.go block-acceptance
// loop generalized to spec.md §4.6's explicit four-case algorithm.
type State struct {
	bank *bank.Bank
	dag  *ForkDAG

	nodeKey     cryptoprim.Private
	nodePub     cryptoprim.Public
	transmitter process.Handle
	shredLen    int

	pending map[cryptoprim.Slot]*pendingSlot
	applied map[cryptoprim.Hash]appliedRecord
	tallies map[cryptoprim.Hash]*voteTally

	finalizedOrder []cryptoprim.Hash
}

// NewState creates a State over b, rooted at the given fork DAG, signing
// any block it produces itself with nodeKey and broadcasting shreds
// through transmitter.
func NewState(b *bank.Bank, dag *ForkDAG, nodeKey cryptoprim.Private, transmitter process.Handle, shredLen int) *State {
	return &State{
		bank:        b,
		dag:         dag,
		nodeKey:     nodeKey,
		nodePub:     nodeKey.ToPublic(),
		transmitter: transmitter,
		shredLen:    shredLen,
		pending:     make(map[cryptoprim.Slot]*pendingSlot),
		applied:     make(map[cryptoprim.Hash]appliedRecord),
		tallies:     make(map[cryptoprim.Hash]*voteTally),
	}
}

// Bank exposes the underlying Bank, e.g. for RPC status reporting.
func (s *State) Bank() *bank.Bank { return s.bank }

// Dag exposes the underlying fork DAG, e.g. for RPC status reporting.
func (s *State) Dag() *ForkDAG { return s.dag }

// Run is the State's actor body.
func (s *State) Run(ctx context.Context, mb *process.Mailbox) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		m, ok := mb.Recv()
		if !ok {
			return nil
		}
		switch msg := m.(type) {
		case shred.BlockReassembled:
			s.onBlockReassembled(msg)
		case mempool.OpenDrained:
			s.onOpenDrained(msg)
		case executor.TxFullList:
			s.onTxFullList(msg)
		}
	}
}

func (s *State) slotSlot(slot cryptoprim.Slot) *pendingSlot {
	p, ok := s.pending[slot]
	if !ok {
		p = &pendingSlot{}
		s.pending[slot] = p
	}
	return p
}

func (s *State) onOpenDrained(msg mempool.OpenDrained) {
	p := s.slotSlot(msg.Slot)
	p.opens = msg.Items
	p.hasOpens = true
	s.tryProduceBlock(msg.Slot)
}

func (s *State) onTxFullList(msg executor.TxFullList) {
	p := s.slotSlot(msg.Slot)
	p.txs = msg.Items
	p.hasTxs = true
	s.tryProduceBlock(msg.Slot)
}

// tryProduceBlock builds and broadcasts this node's block for slot once
// both halves of its leader-slot input have arrived, per spec.md §4.6's
// leader-slot block production: a fresh batch, opens before
// transactions, finish every queued task, sign, insert, shred.
func (s *State) tryProduceBlock(slot cryptoprim.Slot) {
	p, ok := s.pending[slot]
	if !ok || !p.hasOpens || !p.hasTxs {
		return
	}
	delete(s.pending, slot)

	batch := s.bank.NextBatch()
	var opens []wire.Open
	hadOpens := false
	for _, ov := range p.opens {
		if err := s.bank.ProcessOpen(ov.Open, batch); err != nil {
			log.WithError(err).Debug("chain: dropping ineligible open from own block")
			continue
		}
		opens = append(opens, ov.Open)
		hadOpens = true
	}

	var txs []wire.Transaction
	var tasks []bank.Task
	for _, tf := range p.txs {
		task, err := s.bank.ProcessTransaction(tf.TxHalf.Tx)
		if err != nil {
			log.WithError(err).Debug("chain: dropping ineligible transaction from own block")
			continue
		}
		if err := s.bank.QueueTask(task, batch); err != nil {
			log.WithError(err).Debug("chain: dropping unqueueable transaction from own block")
			continue
		}
		if err := s.bank.FinishTask(task); err != nil {
			log.WithError(err).Error("chain: finish_task failed for a just-queued task")
			continue
		}
		txs = append(txs, tf.TxHalf.Tx)
		tasks = append(tasks, task)
	}

	prevHash, _ := s.dag.LongestChain()
	block := wire.Block{
		Leader:       s.nodePub,
		Slot:         slot,
		Previous:     prevHash,
		Opens:        opens,
		Transactions: txs,
	}
	block.SelfHash = block.ComputeSelfHash()
	block.Signature = s.nodeKey.Sign(block.SelfHash)

	if _, err := s.dag.Insert(block.SelfHash, block, prevHash); err != nil {
		log.WithError(err).Error("chain: failed to insert own produced block")
		return
	}
	s.applied[block.SelfHash] = appliedRecord{batch: batch, hadOpens: hadOpens, tasks: tasks}

	s.shredAndBroadcast(block)
}

func (s *State) shredAndBroadcast(block wire.Block) {
	data, err := wire.EncodeBlock(block)
	if err != nil {
		log.WithError(err).Error("chain: failed to encode block for shredding")
		return
	}
	shreds, err := shred.Encode(data, s.shredLen)
	if err != nil {
		log.WithError(err).Error("chain: failed to shred block")
		return
	}
	for _, sh := range shreds {
		note := wire.ShredNote{
			From:   s.nodePub,
			Slot:   block.Slot,
			Header: sh.Header,
			Data:   sh.Data,
		}
		note.Signature = s.nodeKey.Sign(shredNoteHash(note))
		payload, err := wire.EncodeShredNote(note)
		if err != nil {
			log.WithError(err).Error("chain: failed to encode shred note")
			continue
		}
		s.transmitter.Send(gossip.OutboundShred{Payload: payload})
	}
}

func shredNoteHash(n wire.ShredNote) cryptoprim.Hash {
	return cryptoprim.DigestHash(n.From[:], n.Data)
}

// onBlockReassembled decodes a fully-reconstructed block payload and
// runs it through block acceptance.
func (s *State) onBlockReassembled(msg shred.BlockReassembled) {
	block, err := wire.DecodeBlock(msg.Data)
	if err != nil {
		log.WithError(err).Warn("chain: dropping malformed reassembled block")
		return
	}
	hash := block.ComputeSelfHash()
	if hash != block.SelfHash {
		log.Warn("chain: dropping block with hash mismatch")
		return
	}
	s.acceptBlock(hash, block)
}

// acceptBlock runs spec.md §4.6's four-case block acceptance algorithm.
func (s *State) acceptBlock(hash cryptoprim.Hash, block wire.Block) {
	oldTip, _ := s.dag.LongestChain()

	changed, err := s.dag.Insert(hash, block, block.Previous)
	if err != nil {
		log.WithError(err).Debug("chain: rejecting block (known hash or unknown prev)")
		return
	}

	switch {
	case block.Previous == oldTip:
		if err := s.commitBlock(hash, block); err != nil {
			log.WithError(err).Warn("chain: direct-apply block failed validation, removing")
			_ = s.dag.RemoveSubtree(hash)
			s.tallyVotes(block)
			return
		}
	case !changed:
		// insert did not change the longest tip: no bank action.
	default:
		s.reorg(oldTip, hash)
	}

	s.tallyVotes(block)
}

// commitBlock applies block's opens and transactions to the Bank as one
// unit, recording exactly what it did so a later revert or finalize can
// act on the same tasks.
func (s *State) commitBlock(hash cryptoprim.Hash, block wire.Block) error {
	batch := s.bank.NextBatch()
	hadOpens := false

	rollback := func() {
		if hadOpens {
			_ = s.bank.RevertOpen(batch)
		}
	}

	for _, o := range block.Opens {
		if err := s.bank.ProcessOpen(o, batch); err != nil {
			rollback()
			return fmt.Errorf("chain: commit block %x: process_open: %w", hash, err)
		}
		hadOpens = true
	}

	var tasks []bank.Task
	for _, tx := range block.Transactions {
		task, err := s.bank.ProcessTransaction(tx)
		if err != nil {
			for i := len(tasks) - 1; i >= 0; i-- {
				_ = s.bank.RevertTask(tasks[i])
			}
			rollback()
			return fmt.Errorf("chain: commit block %x: process_transaction: %w", hash, err)
		}
		if err := s.bank.QueueTask(task, batch); err != nil {
			for i := len(tasks) - 1; i >= 0; i-- {
				_ = s.bank.RevertTask(tasks[i])
			}
			rollback()
			return fmt.Errorf("chain: commit block %x: queue_task: %w", hash, err)
		}
		if err := s.bank.FinishTask(task); err != nil {
			for i := len(tasks) - 1; i >= 0; i-- {
				_ = s.bank.RevertTask(tasks[i])
			}
			rollback()
			return fmt.Errorf("chain: commit block %x: finish_task: %w", hash, err)
		}
		tasks = append(tasks, task)
	}

	s.applied[hash] = appliedRecord{batch: batch, hadOpens: hadOpens, tasks: tasks}
	return nil
}

// revertBlock undoes a previously committed block, inverse of
// commitBlock (Testable Property 7, applied block-at-a-time).
func (s *State) revertBlock(hash cryptoprim.Hash) {
	rec, ok := s.applied[hash]
	if !ok {
		return
	}
	for i := len(rec.tasks) - 1; i >= 0; i-- {
		if err := s.bank.RevertTask(rec.tasks[i]); err != nil {
			log.WithError(err).Error("chain: revert_task failed during reorg")
		}
	}
	if rec.hadOpens {
		if err := s.bank.RevertOpen(rec.batch); err != nil {
			log.WithError(err).Error("chain: revert_open failed during reorg")
		}
	}
	delete(s.applied, hash)
}

// reorg implements spec.md §4.6 case 4: find the common ancestor of the
// old and new tips, revert the old branch back to it, then apply the new
// branch from it up to the new tip, rolling the whole new-branch
// application back and restoring the old branch if anything fails
// validation along the way.
func (s *State) reorg(oldTip, newTip cryptoprim.Hash) {
	telemetry.ChainReorgsTotal.Inc()

	ancestor, err := s.dag.CommonAncestor(oldTip, newTip)
	if err != nil {
		log.WithError(err).Error("chain: reorg: no common ancestor")
		return
	}

	oldPath, err := s.dag.Path(oldTip, ancestor) // oldTip, ..., ancestor
	if err != nil {
		log.WithError(err).Error("chain: reorg: no path from old tip to ancestor")
		return
	}
	for _, hash := range oldPath {
		if hash == ancestor {
			break
		}
		s.revertBlock(hash)
	}

	newPath, err := s.dag.Path(ancestor, newTip) // ancestor, ..., newTip
	if err != nil {
		log.WithError(err).Error("chain: reorg: no path from ancestor to new tip")
		s.reapplyOldBranch(oldPath)
		return
	}

	var appliedSoFar []cryptoprim.Hash
	for _, hash := range newPath {
		if hash == ancestor {
			continue
		}
		block, ok := s.dag.Block(hash)
		if !ok {
			continue
		}
		if err := s.commitBlock(hash, block); err != nil {
			log.WithError(err).Warn("chain: reorg: new branch block failed validation, rolling back")
			_ = s.dag.RemoveSubtree(hash)
			for i := len(appliedSoFar) - 1; i >= 0; i-- {
				s.revertBlock(appliedSoFar[i])
			}
			s.reapplyOldBranch(oldPath)
			return
		}
		appliedSoFar = append(appliedSoFar, hash)
	}
}

// reapplyOldBranch re-commits oldPath (ordered tip...ancestor) from the
// ancestor back out to the tip, used to restore the previous chain when
// a reorg's new branch fails validation partway through.
func (s *State) reapplyOldBranch(oldPath []cryptoprim.Hash) {
	for i := len(oldPath) - 2; i >= 0; i-- {
		hash := oldPath[i]
		block, ok := s.dag.Block(hash)
		if !ok {
			continue
		}
		if err := s.commitBlock(hash, block); err != nil {
			log.WithError(err).Error("chain: reorg: failed to restore old branch, bank state may be inconsistent")
		}
	}
}

// finalize implements spec.md §4.6's finalization algorithm for hash h.
func (s *State) finalize(h cryptoprim.Hash) {
	tip, _ := s.dag.LongestChain()
	root := s.dag.Root()

	if s.isAncestorOf(h, tip) {
		path, err := s.dag.Path(root, h)
		if err != nil {
			log.WithError(err).Error("chain: finalize: no path from root to target")
			return
		}
		for _, hash := range path {
			if hash == root {
				continue
			}
			s.finalizeBlock(hash)
		}
		if err := s.dag.SetRoot(h); err != nil {
			log.WithError(err).Error("chain: finalize: set_root failed")
		}
		return
	}

	ancestor, err := s.dag.CommonAncestor(tip, h)
	if err != nil {
		log.WithError(err).Error("chain: finalize: no common ancestor of tip and target")
		return
	}
	revertPath, err := s.dag.Path(tip, ancestor)
	if err != nil {
		log.WithError(err).Error("chain: finalize: no path from tip to ancestor")
		return
	}
	for _, hash := range revertPath {
		if hash == ancestor {
			break
		}
		s.revertBlock(hash)
	}

	applyPath, err := s.dag.Path(root, h)
	if err != nil {
		log.WithError(err).Error("chain: finalize: no path from root to target")
		return
	}
	for _, hash := range applyPath {
		if hash == root {
			continue
		}
		block, ok := s.dag.Block(hash)
		if !ok {
			continue
		}
		if err := s.commitBlock(hash, block); err != nil {
			log.WithError(err).Error("chain: finalize: off-chain target block failed to commit")
			return
		}
		s.finalizeBlock(hash)
	}
	if err := s.dag.SetRoot(h); err != nil {
		log.WithError(err).Error("chain: finalize: set_root failed")
	}
}

// isAncestorOf reports whether h lies on the path from the DAG's root to
// tip, i.e. h is on the longest chain.
func (s *State) isAncestorOf(h, tip cryptoprim.Hash) bool {
	if h == s.dag.Root() {
		return true
	}
	ancestor, err := s.dag.CommonAncestor(h, tip)
	if err != nil {
		return false
	}
	return ancestor == h
}

func (s *State) finalizeBlock(hash cryptoprim.Hash) {
	rec, ok := s.applied[hash]
	if !ok {
		return
	}
	for _, task := range rec.tasks {
		if err := s.bank.FinalizeTask(task); err != nil {
			panic(fmt.Sprintf("chain: finalize_task failed for block %x: %v", hash, err))
		}
	}
	s.finalizedOrder = append(s.finalizedOrder, hash)
}

// tallyVotes folds block's embedded votes into the per-checkpoint weight
// tally, finalizing the first checkpoint whose accumulated distinct-voter
// weight crosses 2/3 of total stake (spec.md's vote-tallying Open
// Question, decided in DESIGN.md).
func (s *State) tallyVotes(block wire.Block) {
	for _, v := range block.Votes {
		if !v.From.Verify(v.VoteHash(), v.Signature) {
			continue
		}
		target := v.Right.Hash
		tally, ok := s.tallies[target]
		if !ok {
			tally = &voteTally{seen: make(map[cryptoprim.Public]struct{})}
			s.tallies[target] = tally
		}
		if _, already := tally.seen[v.From]; already {
			continue
		}
		tally.seen[v.From] = struct{}{}
		tally.weight = tally.weight.Add(s.bank.GetWeight(v.From))

		lhsHi, lhsLo := bits.Mul64(tally.weight.Uint64(), finalizationDenominator)
		rhsHi, rhsLo := bits.Mul64(cryptoprim.InitialSupply, finalizationNumerator)
		if lhsHi > rhsHi || (lhsHi == rhsHi && lhsLo >= rhsLo) {
			delete(s.tallies, target)
			s.finalize(target)
		}
	}
}
