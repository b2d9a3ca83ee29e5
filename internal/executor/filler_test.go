package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/directory"
	"github.com/sltlabs/slt-node/internal/process"
	"github.com/sltlabs/slt-node/internal/wire"
)

func pub(b byte) cryptoprim.Public {
	var p cryptoprim.Public
	p[0] = b
	return p
}

func TestTxFillerResolvesKnownAccounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := process.NewRegistry()

	dir := directory.New()
	_, _ = dir.Insert(pub(1))
	_, _ = dir.Insert(pub(2))
	dirHandle := process.SpawnRestartable(ctx, reg, "directory", dir.Run)

	stateMb := process.NewMailbox()
	stateHandle := reg.Register(stateMb)

	filler := NewTxFiller(dirHandle, stateHandle)
	fillerHandle := process.SpawnRestartable(ctx, reg, "filler", filler.Run)

	tx := wire.Transaction{From: pub(1), To: pub(2), Amount: 5}
	fillerHandle.Send(TxDrained{Slot: 7, Items: []TxHalf{{Tx: tx, Hash: cryptoprim.Hash{0xAB}}}})

	m, ok := stateMb.Recv()
	require.True(t, ok)
	list := m.(TxFullList)
	require.Equal(t, cryptoprim.Slot(7), list.Slot)
	require.Len(t, list.Items, 1)
	require.Equal(t, uint64(0), list.Items[0].FromIndex)
	require.Equal(t, uint64(1), list.Items[0].ToIndex)
}

func TestTxFillerDropsUnknownAccounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := process.NewRegistry()

	dir := directory.New()
	_, _ = dir.Insert(pub(1))
	dirHandle := process.SpawnRestartable(ctx, reg, "directory", dir.Run)

	stateMb := process.NewMailbox()
	stateHandle := reg.Register(stateMb)

	filler := NewTxFiller(dirHandle, stateHandle)
	fillerHandle := process.SpawnRestartable(ctx, reg, "filler", filler.Run)

	known := wire.Transaction{From: pub(1), To: pub(1), Amount: 1}
	unknown := wire.Transaction{From: pub(1), To: pub(9), Amount: 2}
	fillerHandle.Send(TxDrained{Slot: 1, Items: []TxHalf{
		{Tx: known, Hash: cryptoprim.Hash{1}},
		{Tx: unknown, Hash: cryptoprim.Hash{2}},
	}})

	m, ok := stateMb.Recv()
	require.True(t, ok)
	list := m.(TxFullList)
	require.Len(t, list.Items, 1)
	require.Equal(t, cryptoprim.Hash{1}, list.Items[0].Hash)
}

func TestTxFillerEmptyBatchStillNotifiesState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := process.NewRegistry()

	dir := directory.New()
	dirHandle := process.SpawnRestartable(ctx, reg, "directory", dir.Run)

	stateMb := process.NewMailbox()
	stateHandle := reg.Register(stateMb)

	filler := NewTxFiller(dirHandle, stateHandle)
	fillerHandle := process.SpawnRestartable(ctx, reg, "filler", filler.Run)

	fillerHandle.Send(TxDrained{Slot: 3})

	m, ok := stateMb.Recv()
	require.True(t, ok)
	list := m.(TxFullList)
	require.Equal(t, cryptoprim.Slot(3), list.Slot)
	require.Empty(t, list.Items)
}
