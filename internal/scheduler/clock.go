// Package scheduler implements the node's slot clock, the leader/
// non-leader phase cycling that drives mempool drains and block
// production, and the per-epoch weighted leader schedule, grounded on the
// reference Slot type's monotone, genesis-relative slot arithmetic.
package scheduler

import (
	"context"
	"time"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/process"
)

// SlotTick is emitted once per slot boundary.
type SlotTick struct{ Slot cryptoprim.Slot }

func (SlotTick) Kind() string { return "scheduler.slot_tick" }

// Clock emits a monotone, non-repeating sequence of slot boundaries,
// sleeping until each boundary rather than free-running, so a slow
// consumer never causes slots to be skipped or repeated.
type Clock struct {
	subscribers []process.Handle
}

// NewClock creates a Clock that notifies the given subscribers on every
// slot boundary.
func NewClock(subscribers ...process.Handle) *Clock {
	return &Clock{subscribers: subscribers}
}

// Run is the Clock's actor body: an endless, infallible loop.
func (c *Clock) Run(ctx context.Context, mb *process.Mailbox) {
	current := cryptoprim.SlotAt(time.Now())
	for {
		next := current.Next()
		sleepUntil := next.Time()
		timer := time.NewTimer(time.Until(sleepUntil))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
		current = next
		for _, sub := range c.subscribers {
			sub.Send(SlotTick{Slot: current})
		}
	}
}
