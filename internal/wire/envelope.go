// Package wire implements the node's envelope types and the byte-level UDP
// codec used by the gossip fabric, grounded on the teacher's wire-format
// helpers in core/network.go generalized to this project's tagged-union
// datagram layout.
package wire

import (
	"github.com/sltlabs/slt-node/internal/cryptoprim"
)

// Endpoint is an IPv4 address and port, as carried in TelemetryNote.
type Endpoint struct {
	Addr [4]byte
	Port uint16
}

// Version is a node's major.minor.patch build identifier.
type Version struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// TelemetryNote is the periodic heartbeat broadcast by the Transmitter.
type TelemetryNote struct {
	From      cryptoprim.Public
	Signature cryptoprim.Signature
	Slot      cryptoprim.Slot
	Endpoint  Endpoint
	Version   Version
}

// ShredHeader describes a shred's position within its batch and payload.
type ShredHeader struct {
	NBatches        uint32
	NDataShreds     uint32
	OverallDataSize uint32
	BatchIndex      uint32
	ShredIndex      uint32
}

// ShredNote carries one erasure-coded shred of a block payload.
type ShredNote struct {
	From      cryptoprim.Public
	Signature cryptoprim.Signature
	Slot      cryptoprim.Slot
	Header    ShredHeader
	Data      []byte
}

// Transaction is an authenticated transfer or representative change.
// Amount == 0 marks a representative change rather than a transfer.
type Transaction struct {
	Nonce     uint64
	From      cryptoprim.Public
	Amount    cryptoprim.Amount
	To        cryptoprim.Public
	Work      cryptoprim.Work
	Signature cryptoprim.Signature
}

// IsRepChange reports whether tx changes the sender's representative
// rather than transferring value.
func (tx Transaction) IsRepChange() bool { return tx.Amount == 0 }

// WorkHash is the subject hash a Transaction's Work must satisfy:
// BLAKE(nonce || from).
func (tx Transaction) WorkHash() cryptoprim.Hash {
	var nonceBytes [8]byte
	putUint64LE(nonceBytes[:], tx.Nonce)
	return cryptoprim.DigestHash(nonceBytes[:], tx.From[:])
}

// TxHash is the hash signed by the sender: BLAKE(nonce || from || amount || to).
func (tx Transaction) TxHash() cryptoprim.Hash {
	var nonceBytes, amountBytes [8]byte
	putUint64LE(nonceBytes[:], tx.Nonce)
	putUint64LE(amountBytes[:], tx.Amount.Uint64())
	return cryptoprim.DigestHash(nonceBytes[:], tx.From[:], amountBytes[:], tx.To[:])
}

// Open is a request to create a new account with an initial representative.
type Open struct {
	Account        cryptoprim.Public
	Representative cryptoprim.Public
	Work           cryptoprim.Work
	Signature      cryptoprim.Signature
}

// WorkHash is the subject hash an Open's Work must satisfy:
// BLAKE(account || representative).
func (o Open) WorkHash() cryptoprim.Hash {
	return cryptoprim.DigestHash(o.Account[:], o.Representative[:])
}

// OpenHash is the hash signed by the account: BLAKE(account || representative || work).
func (o Open) OpenHash() cryptoprim.Hash {
	return cryptoprim.DigestHash(o.Account[:], o.Representative[:], o.Work[:])
}

// Vote is an ordered approval pair over two (slot,hash) checkpoints.
type Vote struct {
	From      cryptoprim.Public
	Left      Checkpoint
	Right     Checkpoint
	Signature cryptoprim.Signature
}

// Checkpoint names a block by slot and hash.
type Checkpoint struct {
	Slot cryptoprim.Slot
	Hash cryptoprim.Hash
}

// VoteHash is the hash signed by the voter.
func (v Vote) VoteHash() cryptoprim.Hash {
	var leftSlot, rightSlot [8]byte
	putUint64LE(leftSlot[:], uint64(v.Left.Slot))
	putUint64LE(rightSlot[:], uint64(v.Right.Slot))
	return cryptoprim.DigestHash(leftSlot[:], v.Left.Hash[:], rightSlot[:], v.Right.Hash[:])
}

// Block is a leader-produced, slot-tagged batch of opens, transactions, and
// votes, chained to its predecessor by hash.
type Block struct {
	Leader       cryptoprim.Public
	Signature    cryptoprim.Signature
	Slot         cryptoprim.Slot
	Previous     cryptoprim.Hash
	SelfHash     cryptoprim.Hash
	StateHash    cryptoprim.Hash
	Opens        []Open
	Transactions []Transaction
	Votes        []Vote
}

// ComputeSelfHash derives the block's self hash: BLAKE of
// (slot || previous || merkle(opens) || merkle(transactions) || merkle(votes)).
func (b Block) ComputeSelfHash() cryptoprim.Hash {
	var slotBytes [8]byte
	putUint64LE(slotBytes[:], uint64(b.Slot))

	opensRoot := cryptoprim.MerkleRoot(b.Opens, Open.OpenHash)
	txsRoot := cryptoprim.MerkleRoot(b.Transactions, Transaction.TxHash)
	votesRoot := cryptoprim.MerkleRoot(b.Votes, Vote.VoteHash)

	return cryptoprim.DigestHash(
		slotBytes[:],
		b.Previous[:],
		opensRoot[:],
		txsRoot[:],
		votesRoot[:],
	)
}

func putUint64LE(dst []byte, v uint64) {
	_ = dst[7]
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
	dst[4] = byte(v >> 32)
	dst[5] = byte(v >> 40)
	dst[6] = byte(v >> 48)
	dst[7] = byte(v >> 56)
}
