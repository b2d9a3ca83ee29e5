// Package process implements the node's actor substrate: single-threaded
// processes communicating over unbounded mailboxes, addressed by opaque
// Handles, with a small set of spawn variants matching different crash
// policies. The mutex-guarded-map-plus-background-goroutine shape follows
// the teacher's core/connection_pool.go ConnPool/reaper pattern, adapted
// here to mailbox delivery and process supervision instead of connection
// pooling.
package process

import (
	"sync"
)

// Message is the envelope carried on a mailbox. Concrete message types
// implement this marker interface; Kind distinguishes them without a type
// switch at every call site.
type Message interface {
	Kind() string
}

// Mailbox is an unbounded, FIFO, multi-producer single-consumer queue of
// Messages. Sends never block; Recv blocks until a message is available or
// the mailbox is closed.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Message
	closed bool
}

// NewMailbox allocates an empty mailbox.
func NewMailbox() *Mailbox {
	mb := &Mailbox{}
	mb.cond = sync.NewCond(&mb.mu)
	return mb
}

// Send enqueues m. Send on a closed mailbox is a silent no-op, matching
// the gossip fabric's best-effort delivery: a process that has already
// exited should not cause its former correspondents to fail.
func (mb *Mailbox) Send(m Message) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.queue = append(mb.queue, m)
	mb.cond.Signal()
}

// Recv blocks until a message is available, returning ok=false once the
// mailbox is closed and drained.
func (mb *Mailbox) Recv() (m Message, ok bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for len(mb.queue) == 0 && !mb.closed {
		mb.cond.Wait()
	}
	if len(mb.queue) == 0 {
		return nil, false
	}
	m = mb.queue[0]
	mb.queue = mb.queue[1:]
	return m, true
}

// TryRecv returns immediately, ok=false if the mailbox is currently empty.
func (mb *Mailbox) TryRecv() (m Message, ok bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.queue) == 0 {
		return nil, false
	}
	m = mb.queue[0]
	mb.queue = mb.queue[1:]
	return m, true
}

// Len reports the number of messages currently queued.
func (mb *Mailbox) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.queue)
}

// Close marks the mailbox closed and wakes any blocked receiver.
func (mb *Mailbox) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	mb.cond.Broadcast()
}
