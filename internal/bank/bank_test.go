package bank

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/wire"
)

func pub(b byte) cryptoprim.Public {
	var p cryptoprim.Public
	p[0] = b
	return p
}

func TestNewBankGenesisInvariants(t *testing.T) {
	genesis := pub(1)
	b := New(genesis)

	require.Equal(t, cryptoprim.Amount(cryptoprim.InitialSupply), b.GetWeight(genesis))
	require.Equal(t, cryptoprim.Amount(0), b.GetWeight(cryptoprim.BurnPublic()))

	acc, ok := b.Account(GenesisIndex)
	require.True(t, ok)
	require.Equal(t, cryptoprim.InitialSupply, acc.LatestBalance())
}

func TestProcessTransactionRejectsUnknownTo(t *testing.T) {
	genesis := pub(1)
	b := New(genesis)

	other := pub(2)
	_, err := b.ProcessTransaction(wire.Transaction{From: genesis, To: other, Amount: 1})
	require.ErrorIs(t, err, ErrUnknownAccount)

	require.NoError(t, b.ProcessOpen(wire.Open{Account: other, Representative: genesis}, b.NextBatch()))

	task, err := b.ProcessTransaction(wire.Transaction{From: genesis, To: other, Amount: 1})
	require.NoError(t, err)
	require.Equal(t, GenesisIndex, task.FromIndex)
}

func TestQueueFinishConservesSupply(t *testing.T) {
	genesis := pub(1)
	b := New(genesis)
	other := pub(2)
	batch0 := b.NextBatch()
	require.NoError(t, b.ProcessOpen(wire.Open{Account: other, Representative: genesis}, batch0))

	batch := b.NextBatch()
	task, err := b.ProcessTransaction(wire.Transaction{From: genesis, To: other, Amount: 1000})
	require.NoError(t, err)
	require.NoError(t, b.QueueTask(task, batch))
	require.NoError(t, b.FinishTask(task))

	genAcc, _ := b.Account(GenesisIndex)
	otherAcc, _ := b.Account(1 + 1) // index 2: genesis=0, burn=1, other=2
	total := genAcc.LatestBalance() + otherAcc.LatestBalance()
	require.Equal(t, cryptoprim.InitialSupply, total)
	require.Equal(t, uint64(1000), otherAcc.LatestBalance())
	require.Equal(t, uint64(1), genAcc.Nonce())
}

func TestQueueTaskRejectsDoubleQueueInSameBatch(t *testing.T) {
	genesis := pub(1)
	b := New(genesis)
	other := pub(2)
	require.NoError(t, b.ProcessOpen(wire.Open{Account: other, Representative: genesis}, b.NextBatch()))

	batch := b.NextBatch()
	task1, _ := b.ProcessTransaction(wire.Transaction{From: genesis, To: other, Amount: 1, Nonce: 0})
	require.NoError(t, b.QueueTask(task1, batch))

	task2, _ := b.ProcessTransaction(wire.Transaction{From: genesis, To: other, Amount: 1, Nonce: 0})
	require.ErrorIs(t, b.QueueTask(task2, batch), ErrAlreadyQueuedInBatch)
}

func TestRevertTaskInvertsFinishTask(t *testing.T) {
	genesis := pub(1)
	b := New(genesis)
	other := pub(2)
	require.NoError(t, b.ProcessOpen(wire.Open{Account: other, Representative: genesis}, b.NextBatch()))

	batch := b.NextBatch()
	task, _ := b.ProcessTransaction(wire.Transaction{From: genesis, To: other, Amount: 500})
	require.NoError(t, b.QueueTask(task, batch))
	require.NoError(t, b.FinishTask(task))
	require.NoError(t, b.RevertTask(task))

	genAcc, _ := b.Account(GenesisIndex)
	otherAcc, _ := b.Account(2)
	require.Equal(t, cryptoprim.InitialSupply, genAcc.LatestBalance())
	require.Equal(t, uint64(0), otherAcc.LatestBalance())
	require.Equal(t, uint64(0), genAcc.Nonce())
}

func TestRevertOpenPopsAccountLIFO(t *testing.T) {
	genesis := pub(1)
	b := New(genesis)
	batch := b.NextBatch()
	require.NoError(t, b.ProcessOpen(wire.Open{Account: pub(2), Representative: genesis}, batch))
	require.NoError(t, b.ProcessOpen(wire.Open{Account: pub(3), Representative: genesis}, batch))
	require.Equal(t, uint64(4), b.Directory().Len())

	require.NoError(t, b.RevertOpen(batch))
	require.Equal(t, uint64(2), b.Directory().Len())
	_, ok := b.Directory().Lookup(pub(2))
	require.False(t, ok)
	_, ok = b.Directory().Lookup(pub(3))
	require.False(t, ok)
}

func TestFinalizeTaskMovesWeight(t *testing.T) {
	genesis := pub(1)
	b := New(genesis)
	other := pub(2)
	require.NoError(t, b.ProcessOpen(wire.Open{Account: other, Representative: cryptoprim.BurnPublic()}, b.NextBatch()))

	batch := b.NextBatch()
	task, _ := b.ProcessTransaction(wire.Transaction{From: genesis, To: other, Amount: 777})
	require.NoError(t, b.QueueTask(task, batch))
	require.NoError(t, b.FinishTask(task))
	require.NoError(t, b.FinalizeTask(task))

	require.Equal(t, cryptoprim.Amount(cryptoprim.InitialSupply-777), b.GetWeight(genesis))
	require.Equal(t, cryptoprim.Amount(777), b.GetWeight(cryptoprim.BurnPublic()))
}

func TestFinalizeRepChangeShiftsWeight(t *testing.T) {
	genesis := pub(1)
	b := New(genesis)
	holder := pub(2)
	newRep := pub(3)
	require.NoError(t, b.ProcessOpen(wire.Open{Account: holder, Representative: genesis}, b.NextBatch()))
	require.NoError(t, b.ProcessOpen(wire.Open{Account: newRep, Representative: genesis}, b.NextBatch()))

	fundBatch := b.NextBatch()
	fundTask, err := b.ProcessTransaction(wire.Transaction{From: genesis, To: holder, Amount: 1000})
	require.NoError(t, err)
	require.NoError(t, b.QueueTask(fundTask, fundBatch))
	require.NoError(t, b.FinishTask(fundTask))
	require.NoError(t, b.FinalizeTask(fundTask))
	require.Equal(t, cryptoprim.Amount(cryptoprim.InitialSupply), b.GetWeight(genesis))

	repBatch := b.NextBatch()
	repTask, err := b.ProcessTransaction(wire.Transaction{From: holder, To: newRep, Amount: 0})
	require.NoError(t, err)
	require.True(t, repTask.IsRepChange)
	require.Equal(t, GenesisIndex, repTask.PriorRepIndex)
	require.NoError(t, b.QueueTask(repTask, repBatch))
	require.NoError(t, b.FinishTask(repTask))
	require.NoError(t, b.FinalizeTask(repTask))

	require.Equal(t, cryptoprim.Amount(cryptoprim.InitialSupply-1000), b.GetWeight(genesis))
	require.Equal(t, cryptoprim.Amount(1000), b.GetWeight(newRep))

	require.NoError(t, b.RevertTask(repTask))
	holderAcc, _ := b.Account(2)
	require.Equal(t, GenesisIndex, holderAcc.RepIndex())
}
