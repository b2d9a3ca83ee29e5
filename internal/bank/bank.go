package bank

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/directory"
	"github.com/sltlabs/slt-node/internal/telemetry"
	"github.com/sltlabs/slt-node/internal/wire"
)

// GenesisIndex and BurnIndex are the two accounts every Bank is seeded
// with, per spec.md §3's invariant that account indices are contiguous
// starting at 0 with a fixed genesis/burn layout.
const (
	GenesisIndex uint64 = 0
	BurnIndex    uint64 = 1
)

// Errors returned by Bank operations; callers classify these as local
// per spec.md §7 (malformed/ineligible requests, dropped not propagated)
// except where noted.
var (
	ErrAccountExists        = errors.New("bank: account already exists")
	ErrUnknownRepresentative = errors.New("bank: unknown representative")
	ErrUnknownAccount       = errors.New("bank: unknown account")
	ErrNonceMismatch        = errors.New("bank: nonce mismatch")
	ErrInsufficientBalance  = errors.New("bank: insufficient balance")
	ErrAlreadyQueuedInBatch = errors.New("bank: sender already queued in this batch")
	ErrNothingToRevertOpen  = errors.New("bank: no open to revert")
)

// Task is a Bank-internal record of an authenticated transaction after
// public keys have been resolved to dense account indices (spec.md
// GLOSSARY). IsRepChange mirrors Transaction.IsRepChange(): when true,
// ToIndex names the new representative rather than a transfer recipient.
// PriorRepIndex is only meaningful when IsRepChange is true: it captures
// the sender's representative at the moment the task was built, so a
// later FinalizeTask or RevertTask can still name "the previous
// representative" after FinishTask has already repointed rep_index.
type Task struct {
	Nonce         uint64
	FromIndex     uint64
	Amount        cryptoprim.Amount
	ToIndex       uint64
	IsRepChange   bool
	PriorRepIndex uint64
}

// Bank is the node's dense account table and the sole mutator of account
// cells (spec.md §5). All other actors read it only through the
// operations below.
type Bank struct {
	dir *directory.Directory

	mu       sync.RWMutex // guards only the accounts slice's length (append/pop)
	accounts []*Account

	batchCounter atomic.Uint64

	batchMu       sync.Mutex // guards openedInBatch bookkeeping for revert
	openedInBatch map[uint64][]uint64
}

// New creates a Bank seeded with the genesis holder (index 0, holding the
// full initial supply, self-represented) and the burn address (index 1,
// zero balance, self-represented), per spec.md §3 and Testable
// Property 5.
func New(genesisPub cryptoprim.Public) *Bank {
	b := &Bank{
		dir:           directory.New(),
		openedInBatch: make(map[uint64][]uint64),
	}

	genIdx, err := b.dir.Insert(genesisPub)
	if err != nil || genIdx != GenesisIndex {
		panic("bank: genesis account must be index 0")
	}
	gen := &Account{}
	gen.latestBalance.Store(cryptoprim.InitialSupply)
	gen.finalizedBalance.Store(cryptoprim.InitialSupply)
	gen.weight.Store(cryptoprim.InitialSupply)
	gen.repIndex.Store(GenesisIndex)
	b.accounts = append(b.accounts, gen)

	burnIdx, err := b.dir.Insert(cryptoprim.BurnPublic())
	if err != nil || burnIdx != BurnIndex {
		panic("bank: burn account must be index 1")
	}
	burn := &Account{}
	burn.repIndex.Store(BurnIndex)
	b.accounts = append(b.accounts, burn)

	return b
}

// Directory exposes the shared public-key directory, e.g. for the
// executor's filler actor to serve batched lookups from the same
// underlying table the Bank resolves against.
func (b *Bank) Directory() *directory.Directory { return b.dir }

// Account returns the account at idx, for read-only inspection (tests,
// RPC status reporting).
func (b *Bank) Account(idx uint64) (*Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if idx >= uint64(len(b.accounts)) {
		return nil, false
	}
	return b.accounts[idx], true
}

// GetWeight resolves pub's representative weight, 0 if pub is unknown.
func (b *Bank) GetWeight(pub cryptoprim.Public) cryptoprim.Amount {
	idx, ok := b.dir.Lookup(pub)
	if !ok {
		return 0
	}
	acc, ok := b.Account(idx)
	if !ok {
		return 0
	}
	return cryptoprim.Amount(acc.Weight())
}

// NextBatch allocates a fresh, monotonically increasing batch id. Batch 0
// is reserved to mean "no batch" (spec.md §4.5).
func (b *Bank) NextBatch() uint64 {
	return b.batchCounter.Add(1)
}

// RestoreBatchCounter sets the batch counter to a value recovered from
// persisted state (spec.md §6's data_dir "next_batch" object), so a
// restarted node does not reissue batch ids a prior run already handed
// out.
func (b *Bank) RestoreBatchCounter(v uint64) {
	b.batchCounter.Store(v)
}

// BatchCounter returns the current batch counter value, for persisting
// to the "next_batch" object store on shutdown.
func (b *Bank) BatchCounter() uint64 {
	return b.batchCounter.Load()
}

// ProcessOpen creates a new account for open.Account, pointed at
// open.Representative, provided the account does not already exist and
// the representative does. The new account is recorded as opened under
// batch so RevertOpen can undo it.
func (b *Bank) ProcessOpen(open wire.Open, batch uint64) error {
	if _, exists := b.dir.Lookup(open.Account); exists {
		telemetry.BankTasksTotal.WithLabelValues("process_open", "rejected").Inc()
		return fmt.Errorf("%w: %s", ErrAccountExists, open.Account)
	}
	repIdx, ok := b.dir.Lookup(open.Representative)
	if !ok {
		telemetry.BankTasksTotal.WithLabelValues("process_open", "rejected").Inc()
		return fmt.Errorf("%w: %s", ErrUnknownRepresentative, open.Representative)
	}

	b.mu.Lock()
	idx, err := b.dir.Insert(open.Account)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	acc := &Account{}
	acc.repIndex.Store(repIdx)
	if uint64(len(b.accounts)) != idx {
		b.mu.Unlock()
		panic("bank: directory/accounts index drift")
	}
	b.accounts = append(b.accounts, acc)
	b.mu.Unlock()

	b.batchMu.Lock()
	b.openedInBatch[batch] = append(b.openedInBatch[batch], idx)
	b.batchMu.Unlock()

	telemetry.BankTasksTotal.WithLabelValues("process_open", "ok").Inc()
	return nil
}

// RevertOpen undoes every ProcessOpen recorded under batch, popping
// accounts LIFO so indices remain contiguous (spec.md §4.5: "for opens,
// pop the account; indices are reused LIFO within a reversion").
func (b *Bank) RevertOpen(batch uint64) error {
	b.batchMu.Lock()
	opened := b.openedInBatch[batch]
	delete(b.openedInBatch, batch)
	b.batchMu.Unlock()

	for i := len(opened) - 1; i >= 0; i-- {
		b.mu.Lock()
		if len(b.accounts) == 0 || uint64(len(b.accounts)-1) != opened[i] {
			b.mu.Unlock()
			return ErrNothingToRevertOpen
		}
		b.accounts = b.accounts[:len(b.accounts)-1]
		b.mu.Unlock()

		if _, _, ok := b.dir.PopLast(); !ok {
			return ErrNothingToRevertOpen
		}
	}
	return nil
}

// ProcessTransaction resolves tx's sender and receiver to dense indices,
// producing a Task ready to be queued.
func (b *Bank) ProcessTransaction(tx wire.Transaction) (Task, error) {
	fromIdx, ok := b.dir.Lookup(tx.From)
	if !ok {
		telemetry.BankTasksTotal.WithLabelValues("process_transaction", "rejected").Inc()
		return Task{}, fmt.Errorf("%w: from %s", ErrUnknownAccount, tx.From)
	}
	toIdx, ok := b.dir.Lookup(tx.To)
	if !ok {
		telemetry.BankTasksTotal.WithLabelValues("process_transaction", "rejected").Inc()
		return Task{}, fmt.Errorf("%w: to %s", ErrUnknownAccount, tx.To)
	}
	task := Task{
		Nonce:       tx.Nonce,
		FromIndex:   fromIdx,
		Amount:      tx.Amount,
		ToIndex:     toIdx,
		IsRepChange: tx.IsRepChange(),
	}
	if task.IsRepChange {
		fromAcc, ok := b.Account(fromIdx)
		if !ok {
			return Task{}, fmt.Errorf("%w: index %d", ErrUnknownAccount, fromIdx)
		}
		task.PriorRepIndex = fromAcc.RepIndex()
	}
	telemetry.BankTasksTotal.WithLabelValues("process_transaction", "ok").Inc()
	return task, nil
}

// QueueTask admits task into batch: it verifies the sender's current
// nonce and balance, then claims the sender's batch tag via
// compare-and-swap, the single linearization point serializing writers
// per account (spec.md §4.5, §5). A second queue for the same sender in
// the same batch fails.
func (b *Bank) QueueTask(task Task, batch uint64) error {
	acc, ok := b.Account(task.FromIndex)
	if !ok {
		telemetry.BankTasksTotal.WithLabelValues("queue_task", "rejected").Inc()
		return fmt.Errorf("%w: index %d", ErrUnknownAccount, task.FromIndex)
	}
	if acc.nonce.Load() != task.Nonce {
		telemetry.BankTasksTotal.WithLabelValues("queue_task", "rejected").Inc()
		return ErrNonceMismatch
	}
	if acc.latestBalance.Load() < task.Amount.Uint64() {
		telemetry.BankTasksTotal.WithLabelValues("queue_task", "rejected").Inc()
		return ErrInsufficientBalance
	}
	for {
		cur := acc.batch.Load()
		if cur == batch {
			telemetry.BankTasksTotal.WithLabelValues("queue_task", "rejected").Inc()
			return ErrAlreadyQueuedInBatch
		}
		if acc.batch.CompareAndSwap(cur, batch) {
			telemetry.BankTasksTotal.WithLabelValues("queue_task", "ok").Inc()
			return nil
		}
	}
}

// FinishTask applies task's effect to latest (unfinalized) balances: a
// transfer increments the sender's nonce and moves Amount; a
// representative change (Amount == 0) repoints the sender's rep_index.
func (b *Bank) FinishTask(task Task) error {
	from, ok := b.Account(task.FromIndex)
	if !ok {
		return fmt.Errorf("%w: index %d", ErrUnknownAccount, task.FromIndex)
	}
	if task.IsRepChange {
		from.nonce.Add(1)
		from.repIndex.Store(task.ToIndex)
		telemetry.BankTasksTotal.WithLabelValues("finish_task", "ok").Inc()
		return nil
	}
	to, ok := b.Account(task.ToIndex)
	if !ok {
		return fmt.Errorf("%w: index %d", ErrUnknownAccount, task.ToIndex)
	}
	from.nonce.Add(1)
	subtractSaturating(&from.latestBalance, task.Amount.Uint64())
	to.latestBalance.Add(task.Amount.Uint64())
	telemetry.BankTasksTotal.WithLabelValues("finish_task", "ok").Inc()
	return nil
}

// RevertTask is the exact inverse of FinishTask, for undoing a finished
// task during a fork reorg (spec.md §4.6, Testable Property 7). It
// panics on an inconsistency that would indicate bank corruption, per
// spec.md §7's fatal-error classification for revert/finalize.
func (b *Bank) RevertTask(task Task) error {
	from, ok := b.Account(task.FromIndex)
	if !ok {
		panic(fmt.Sprintf("bank: revert_task: unknown sender index %d", task.FromIndex))
	}
	if from.nonce.Load() == 0 {
		panic("bank: revert_task: sender nonce underflow")
	}
	if task.IsRepChange {
		from.nonce.Add(^uint64(0)) // -1
		from.repIndex.Store(task.PriorRepIndex)
		telemetry.BankTasksTotal.WithLabelValues("revert_task", "ok").Inc()
		return nil
	}
	to, ok := b.Account(task.ToIndex)
	if !ok {
		panic(fmt.Sprintf("bank: revert_task: unknown receiver index %d", task.ToIndex))
	}
	from.nonce.Add(^uint64(0)) // -1
	from.latestBalance.Add(task.Amount.Uint64())
	subtractSaturating(&to.latestBalance, task.Amount.Uint64())
	telemetry.BankTasksTotal.WithLabelValues("revert_task", "ok").Inc()
	return nil
}

// FinalizeTask permanently commits task: for a transfer, Amount moves
// from the sender's finalized_balance to the receiver's, and the same
// amount of weight moves from the sender's representative to the
// receiver's; for a representative change, the sender's entire
// finalized_balance worth of weight shifts from the old representative
// to the new one and rep_index is repointed. Panics on an inconsistency
// (fatal, spec.md §7).
func (b *Bank) FinalizeTask(task Task) error {
	from, ok := b.Account(task.FromIndex)
	if !ok {
		panic(fmt.Sprintf("bank: finalize_task: unknown sender index %d", task.FromIndex))
	}
	if task.IsRepChange {
		oldRepIdx := task.PriorRepIndex
		newRepIdx := task.ToIndex
		bal := from.finalizedBalance.Load()

		oldRep, ok := b.Account(oldRepIdx)
		if !ok {
			panic(fmt.Sprintf("bank: finalize_task: unknown old representative %d", oldRepIdx))
		}
		newRep, ok := b.Account(newRepIdx)
		if !ok {
			panic(fmt.Sprintf("bank: finalize_task: unknown new representative %d", newRepIdx))
		}
		subtractSaturating(&oldRep.weight, bal)
		newRep.weight.Add(bal)
		from.repIndex.Store(newRepIdx)
		telemetry.BankTasksTotal.WithLabelValues("finalize_task", "ok").Inc()
		return nil
	}

	to, ok := b.Account(task.ToIndex)
	if !ok {
		panic(fmt.Sprintf("bank: finalize_task: unknown receiver index %d", task.ToIndex))
	}
	subtractSaturating(&from.finalizedBalance, task.Amount.Uint64())
	to.finalizedBalance.Add(task.Amount.Uint64())

	fromRep, ok := b.Account(from.repIndex.Load())
	if !ok {
		panic("bank: finalize_task: sender representative vanished")
	}
	toRep, ok := b.Account(to.repIndex.Load())
	if !ok {
		panic("bank: finalize_task: receiver representative vanished")
	}
	subtractSaturating(&fromRep.weight, task.Amount.Uint64())
	toRep.weight.Add(task.Amount.Uint64())
	telemetry.BankTasksTotal.WithLabelValues("finalize_task", "ok").Inc()
	return nil
}

// subtractSaturating atomically subtracts delta from *a, saturating at 0
// instead of wrapping — the atomic analogue of cryptoprim.Amount.Sub.
func subtractSaturating(a *atomic.Uint64, delta uint64) {
	for {
		cur := a.Load()
		next := uint64(0)
		if cur > delta {
			next = cur - delta
		}
		if a.CompareAndSwap(cur, next) {
			return
		}
	}
}
