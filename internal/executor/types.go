// Package executor implements the staged transaction pipeline
// (TxEmpty -> TxHalf -> TxFull) and the directory-backed filler that
// resolves public keys to dense bank indices before a transaction becomes
// a bank Task, grounded on the reference tx_executor.rs/tx_filler.rs
// staged-refinement design.
package executor

import (
	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/wire"
)

// TxEmpty is a transaction as received off the wire: unverified, no hash
// computed yet.
type TxEmpty struct {
	Tx wire.Transaction
}

// TxHalf is a transaction that has passed signature and PoW verification,
// with its signed hash computed and cached.
type TxHalf struct {
	Tx   wire.Transaction
	Hash cryptoprim.Hash
}

// TxFull is a TxHalf whose sender and receiver public keys have been
// resolved to dense bank indices by the directory, ready to become a bank
// Task.
type TxFull struct {
	TxHalf
	FromIndex uint64
	ToIndex   uint64
}

// VerifyAndHash checks tx's PoW and signature, returning the computed
// signed-hash on success.
func VerifyAndHash(tx wire.Transaction, minDifficulty cryptoprim.Difficulty) (cryptoprim.Hash, bool) {
	if !tx.Work.Verify(tx.WorkHash(), minDifficulty) {
		return cryptoprim.Hash{}, false
	}
	hash := tx.TxHash()
	if !tx.From.Verify(hash, tx.Signature) {
		return cryptoprim.Hash{}, false
	}
	return hash, true
}

// OpenVerified is an Open that has passed signature and PoW verification.
type OpenVerified struct {
	Open wire.Open
	Hash cryptoprim.Hash
}

// VerifyOpenAndHash checks o's PoW and signature, returning the computed
// signed-hash on success.
func VerifyOpenAndHash(o wire.Open, minDifficulty cryptoprim.Difficulty) (cryptoprim.Hash, bool) {
	if !o.Work.Verify(o.WorkHash(), minDifficulty) {
		return cryptoprim.Hash{}, false
	}
	hash := o.OpenHash()
	if !o.Account.Verify(hash, o.Signature) {
		return cryptoprim.Hash{}, false
	}
	return hash, true
}
