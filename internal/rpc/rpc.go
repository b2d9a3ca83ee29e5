// Package rpc specifies the node's RPC surface as a narrow collaborator
// interface only — the concrete protocol is out of scope (spec.md §1:
// "the RPC surface (treated as an external collaborator with a narrow
// command/response contract)"). Grounded on the teacher's
// core/rpc_webrtc.go RPCWebRTC, which exposes the same kind of minimal
// submit/status surface over a different transport (HTTP+WebRTC); this
// package keeps the contract and drops the transport, since spec.md
// names no wire protocol for it.
package rpc

import (
	"context"

	"github.com/sltlabs/slt-node/internal/bank"
	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/wire"
)

// NodeStatus is the snapshot an RPC collaborator reports back about the
// node's current chain position.
type NodeStatus struct {
	LongestTip   cryptoprim.Hash
	RootHash     cryptoprim.Hash
	AccountCount uint64
}

// Collaborator is the contract the node's actors depend on; a real RPC
// server implements it on top of whatever transport it chooses (HTTP,
// gRPC, WebRTC — unspecified, spec.md §1 Non-goals). cmd/node wires a
// Stub satisfying it so the node boots end-to-end without a concrete RPC
// server.
type Collaborator interface {
	Submit(ctx context.Context, tx wire.Transaction) error
	SubmitOpen(ctx context.Context, open wire.Open) error
	Status(ctx context.Context) (NodeStatus, error)
}

// Stub is a minimal Collaborator backed directly by the node's own Bank,
// useful for local testing and as the default wiring in cmd/node until a
// real RPC transport is attached. It accepts submissions unconditionally
// into the caller-provided sink channels rather than performing PoW/
// signature checks itself — those live in the mempools, which is where a
// real RPC server would forward to as well.
type Stub struct {
	bank    *bank.Bank
	txSink  chan<- wire.Transaction
	openSink chan<- wire.Open
}

// NewStub creates a Stub reporting status from b and forwarding
// submissions onto txSink/openSink (typically the gossip-ingress
// channels a real transport would otherwise feed).
func NewStub(b *bank.Bank, txSink chan<- wire.Transaction, openSink chan<- wire.Open) *Stub {
	return &Stub{bank: b, txSink: txSink, openSink: openSink}
}

func (s *Stub) Submit(ctx context.Context, tx wire.Transaction) error {
	select {
	case s.txSink <- tx:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stub) SubmitOpen(ctx context.Context, open wire.Open) error {
	select {
	case s.openSink <- open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stub) Status(ctx context.Context) (NodeStatus, error) {
	return NodeStatus{AccountCount: s.bank.Directory().Len()}, nil
}
