package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sltlabs/slt-node/internal/bank"
	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/wire"
)

func TestStubSubmitForwardsToSink(t *testing.T) {
	var self cryptoprim.Public
	self[0] = 7
	b := bank.New(self)
	txSink := make(chan wire.Transaction, 1)
	openSink := make(chan wire.Open, 1)
	s := NewStub(b, txSink, openSink)

	var tx wire.Transaction
	tx.From = self
	require.NoError(t, s.Submit(context.Background(), tx))

	select {
	case got := <-txSink:
		require.Equal(t, tx.From, got.From)
	default:
		t.Fatal("expected a transaction on txSink")
	}
}

func TestStubSubmitOpenForwardsToSink(t *testing.T) {
	var self cryptoprim.Public
	self[0] = 9
	b := bank.New(self)
	txSink := make(chan wire.Transaction, 1)
	openSink := make(chan wire.Open, 1)
	s := NewStub(b, txSink, openSink)

	var open wire.Open
	open.Account = self
	require.NoError(t, s.SubmitOpen(context.Background(), open))

	select {
	case got := <-openSink:
		require.Equal(t, open.Account, got.Account)
	default:
		t.Fatal("expected an open on openSink")
	}
}

func TestStubSubmitContextCancelled(t *testing.T) {
	var self cryptoprim.Public
	b := bank.New(self)
	txSink := make(chan wire.Transaction)
	openSink := make(chan wire.Open)
	s := NewStub(b, txSink, openSink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Submit(ctx, wire.Transaction{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestStubStatusReportsAccountCount(t *testing.T) {
	var self cryptoprim.Public
	self[0] = 1
	b := bank.New(self)
	s := NewStub(b, make(chan wire.Transaction, 1), make(chan wire.Open, 1))

	status, err := s.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), status.AccountCount)
}
