package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/mempool"
	"github.com/sltlabs/slt-node/internal/process"
)

// TestSchedulerCyclesLeaderAndNonLeaderPhases drives a Scheduler with a
// 2-leader/2-non-leader policy through one full cycle and asserts the
// exact message sequence spec.md §4.7/§5 requires: StartLeaderMode,
// then one NewLeaderSlot per leader slot, then EndLeaderMode, with no
// NewLeaderSlot sent during the non-leader window.
func TestSchedulerCyclesLeaderAndNonLeaderPhases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := process.NewRegistry()

	subMb := process.NewMailbox()
	subHandle := reg.Register(subMb)

	sched := NewScheduler(2, 2, subHandle)
	mb := process.NewMailbox()
	reg.Register(mb)
	go sched.Run(ctx, mb)

	for i := 0; i < 4; i++ {
		mb.Send(SlotTick{Slot: cryptoprim.Slot(100 + i)})
	}

	expectKind := func(want string) process.Message {
		m, ok := subMb.Recv()
		require.True(t, ok)
		require.Equal(t, want, m.Kind())
		return m
	}

	expectKind("mempool.start_leader_mode")
	first := expectKind("mempool.new_leader_slot").(mempool.NewLeaderSlot)
	require.Equal(t, cryptoprim.Slot(100), first.Slot)
	second := expectKind("mempool.new_leader_slot").(mempool.NewLeaderSlot)
	require.Equal(t, cryptoprim.Slot(101), second.Slot)
	expectKind("mempool.end_leader_mode")

	require.Equal(t, 0, subMb.Len())
}
