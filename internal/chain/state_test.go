package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sltlabs/slt-node/internal/bank"
	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/process"
	"github.com/sltlabs/slt-node/internal/wire"
)

func pub(b byte) cryptoprim.Public {
	var p cryptoprim.Public
	p[0] = b
	return p
}

func newTestState(t *testing.T) (*State, cryptoprim.Public, cryptoprim.Private) {
	t.Helper()
	priv, err := cryptoprim.RandomPrivate()
	require.NoError(t, err)
	genesis := priv.ToPublic()
	b := bank.New(genesis)
	dag := NewForkDAG(h(0), 0)

	reg := process.NewRegistry()
	mb := process.NewMailbox()
	transmitter := reg.Register(mb)

	s := NewState(b, dag, priv, transmitter, 1024)
	return s, genesis, priv
}

func openAndFundBlock(t *testing.T, s *State, genesis cryptoprim.Public, account cryptoprim.Public, amount cryptoprim.Amount, nonce uint64, prev cryptoprim.Hash) wire.Block {
	t.Helper()
	block := wire.Block{
		Previous: prev,
		Opens:    []wire.Open{{Account: account, Representative: genesis}},
		Transactions: []wire.Transaction{
			{Nonce: nonce, From: genesis, To: account, Amount: amount},
		},
	}
	block.SelfHash = block.ComputeSelfHash()
	return block
}

func TestStateAcceptBlockDirectApplyCommitsToBank(t *testing.T) {
	s, genesis, _ := newTestState(t)
	holder := pub(2)

	root := s.dag.Root()
	block := openAndFundBlock(t, s, genesis, holder, 1000, 0, root)

	s.acceptBlock(block.SelfHash, block)

	tip, _ := s.dag.LongestChain()
	require.Equal(t, block.SelfHash, tip)

	idx, ok := s.bank.Directory().Lookup(holder)
	require.True(t, ok)
	acc, ok := s.bank.Account(idx)
	require.True(t, ok)
	require.Equal(t, uint64(1000), acc.LatestBalance())

	rec, ok := s.applied[block.SelfHash]
	require.True(t, ok)
	require.Len(t, rec.tasks, 1)
}

func TestStateAcceptBlockSideBranchDoesNotMutateBank(t *testing.T) {
	s, genesis, _ := newTestState(t)
	holderA := pub(2)
	holderB := pub(3)

	root := s.dag.Root()
	blockA := openAndFundBlock(t, s, genesis, holderA, 1000, 0, root)
	s.acceptBlock(blockA.SelfHash, blockA)

	second := openAndFundBlock(t, s, genesis, holderB, 500, 1, blockA.SelfHash)
	s.acceptBlock(second.SelfHash, second)

	// A sibling of blockA off the same root: shorter chain, must not move the tip
	// or touch the bank (case 3: insert did not change the longest tip).
	sibling := wire.Block{Previous: root, Opens: []wire.Open{{Account: pub(4), Representative: genesis}}}
	sibling.SelfHash = sibling.ComputeSelfHash()
	s.acceptBlock(sibling.SelfHash, sibling)

	tip, _ := s.dag.LongestChain()
	require.Equal(t, second.SelfHash, tip)
	_, applied := s.applied[sibling.SelfHash]
	require.False(t, applied)

	_, ok := s.bank.Directory().Lookup(pub(4))
	require.False(t, ok)
}

func TestStateReorgRevertsOldBranchAndAppliesNewBranch(t *testing.T) {
	s, genesis, _ := newTestState(t)
	holderA := pub(2)
	holderB := pub(3)
	holderC := pub(4)

	root := s.dag.Root()
	blockA := openAndFundBlock(t, s, genesis, holderA, 1000, 0, root)
	s.acceptBlock(blockA.SelfHash, blockA)

	oldTip := openAndFundBlock(t, s, genesis, holderB, 500, 1, blockA.SelfHash)
	s.acceptBlock(oldTip.SelfHash, oldTip)

	_, ok := s.bank.Directory().Lookup(holderB)
	require.True(t, ok)

	// A longer branch off blockA: two blocks, overtaking the old 2-block tip.
	branch1 := openAndFundBlock(t, s, genesis, holderC, 250, 1, blockA.SelfHash)
	s.acceptBlock(branch1.SelfHash, branch1)
	// still shorter than or equal oldTip's height; add one more to force a reorg.
	branch2 := wire.Block{Previous: branch1.SelfHash}
	branch2.SelfHash = branch2.ComputeSelfHash()
	s.acceptBlock(branch2.SelfHash, branch2)

	tip, _ := s.dag.LongestChain()
	require.Equal(t, branch2.SelfHash, tip)

	// holderB's open lived only on the reverted branch: it must be gone now.
	_, stillThere := s.bank.Directory().Lookup(holderB)
	require.False(t, stillThere)
	_, onNewBranch := s.bank.Directory().Lookup(holderC)
	require.True(t, onNewBranch)

	_, oldApplied := s.applied[oldTip.SelfHash]
	require.False(t, oldApplied)
	_, newApplied := s.applied[branch2.SelfHash]
	require.True(t, newApplied)
}

func TestStateFinalizeOnLongestChainAdvancesRootAndFinalizesTasks(t *testing.T) {
	s, genesis, _ := newTestState(t)
	holder := pub(2)

	root := s.dag.Root()
	block := openAndFundBlock(t, s, genesis, holder, 1000, 0, root)
	s.acceptBlock(block.SelfHash, block)

	s.finalize(block.SelfHash)

	require.Equal(t, block.SelfHash, s.dag.Root())
	require.Contains(t, s.finalizedOrder, block.SelfHash)

	idx, ok := s.bank.Directory().Lookup(holder)
	require.True(t, ok)
	acc, _ := s.bank.Account(idx)
	require.Equal(t, uint64(1000), acc.FinalizedBalance())
}

func TestStateTallyVotesFinalizesAtTwoThirdsWeight(t *testing.T) {
	s, genesis, genesisPriv := newTestState(t)

	root := s.dag.Root()
	target := openAndFundBlock(t, s, genesis, pub(2), 1000, 0, root)
	s.acceptBlock(target.SelfHash, target)

	cp := wire.Checkpoint{Slot: 1, Hash: target.SelfHash}
	vote := wire.Vote{From: genesis, Left: wire.Checkpoint{}, Right: cp}
	vote.Signature = genesisPriv.Sign(vote.VoteHash())

	voteBlock := wire.Block{Previous: target.SelfHash, Votes: []wire.Vote{vote}}
	voteBlock.SelfHash = voteBlock.ComputeSelfHash()
	s.acceptBlock(voteBlock.SelfHash, voteBlock)

	// Genesis alone holds the entire initial supply, so a single vote from
	// it already crosses 2/3 of total stake.
	require.Equal(t, target.SelfHash, s.dag.Root())
}

func TestStateTallyVotesRejectsBadSignature(t *testing.T) {
	s, genesis, _ := newTestState(t)
	other, err := cryptoprim.RandomPrivate()
	require.NoError(t, err)

	root := s.dag.Root()
	target := openAndFundBlock(t, s, genesis, pub(2), 1000, 0, root)
	s.acceptBlock(target.SelfHash, target)

	cp := wire.Checkpoint{Slot: 1, Hash: target.SelfHash}
	vote := wire.Vote{From: genesis, Right: cp}
	vote.Signature = other.Sign(vote.VoteHash()) // signed by the wrong key

	voteBlock := wire.Block{Previous: target.SelfHash, Votes: []wire.Vote{vote}}
	voteBlock.SelfHash = voteBlock.ComputeSelfHash()
	s.acceptBlock(voteBlock.SelfHash, voteBlock)

	require.NotEqual(t, target.SelfHash, s.dag.Root())
}
