// Package bank implements the node's lock-free account engine: a dense
// account table resolved through a shared directory, with atomic
// per-account cells and batch-gated queue/finish/revert/finalize
// operations, grounded on the teacher's account_and_balance_operations.go
// AccountManager (balance transfer guarded by a mutex over a ledger map)
// generalized to per-account atomics plus a batch tag, per spec.md §4.5.
package bank

import "sync/atomic"

// Account is one entry of the dense account table. All fields are
// accessed through sync/atomic so concurrent worker actors can read and
// update them without a per-account mutex; the single linearization
// point for a batch of concurrent writers is the Batch compare-and-swap
// in Bank.QueueTask.
type Account struct {
	latestBalance    atomic.Uint64
	finalizedBalance atomic.Uint64
	weight           atomic.Uint64
	nonce            atomic.Uint64
	repIndex         atomic.Uint64
	batch            atomic.Uint64
}

func (a *Account) LatestBalance() uint64    { return a.latestBalance.Load() }
func (a *Account) FinalizedBalance() uint64 { return a.finalizedBalance.Load() }
func (a *Account) Weight() uint64           { return a.weight.Load() }
func (a *Account) Nonce() uint64            { return a.nonce.Load() }
func (a *Account) RepIndex() uint64         { return a.repIndex.Load() }
func (a *Account) Batch() uint64            { return a.batch.Load() }
