package scheduler

import (
	"context"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/mempool"
	"github.com/sltlabs/slt-node/internal/process"
)

// Scheduler cycles the node between leader and non-leader phases on
// every SlotTick, broadcasting mode-change and per-slot notifications to
// its subscribers (the mempools and the chain state actor), per spec.md
// §4.7's example policy of symmetric leader/non-leader windows.
type Scheduler struct {
	leaderSlots    int
	nonLeaderSlots int
	subscribers    []process.Handle

	inLeaderPhase  bool
	slotsRemaining int
}

// NewScheduler creates a Scheduler alternating leaderSlots consecutive
// leader slots with nonLeaderSlots consecutive non-leader slots,
// notifying subscribers of every phase change and leader slot.
func NewScheduler(leaderSlots, nonLeaderSlots int, subscribers ...process.Handle) *Scheduler {
	return &Scheduler{
		leaderSlots:    leaderSlots,
		nonLeaderSlots: nonLeaderSlots,
		subscribers:    subscribers,
	}
}

// Run is the Scheduler's actor body, driven by SlotTick messages from
// the Clock.
func (s *Scheduler) Run(ctx context.Context, mb *process.Mailbox) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		m, ok := mb.Recv()
		if !ok {
			return nil
		}
		tick, ok := m.(SlotTick)
		if !ok {
			continue
		}
		s.onTick(tick.Slot)
	}
}

// onTick advances the phase state machine by one slot. StartLeaderMode
// always precedes the phase's first NewLeaderSlot, and EndLeaderMode is
// sent on the first tick of the following non-leader phase, strictly
// after the window's last NewLeaderSlot (spec.md §5 ordering guarantee).
func (s *Scheduler) onTick(slot cryptoprim.Slot) {
	if s.slotsRemaining == 0 {
		s.inLeaderPhase = !s.inLeaderPhase
		if s.inLeaderPhase {
			s.broadcast(mempool.StartLeaderMode{})
			s.slotsRemaining = s.leaderSlots
		} else {
			s.broadcast(mempool.EndLeaderMode{})
			s.slotsRemaining = s.nonLeaderSlots
		}
	}

	if s.inLeaderPhase {
		s.broadcast(mempool.NewLeaderSlot{Slot: slot})
	}
	s.slotsRemaining--
}

func (s *Scheduler) broadcast(m process.Message) {
	for _, sub := range s.subscribers {
		sub.Send(m)
	}
}
