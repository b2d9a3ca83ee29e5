package process

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type pingMessage struct{}

func (pingMessage) Kind() string { return "ping" }

func TestMailboxSendRecvOrder(t *testing.T) {
	mb := NewMailbox()
	mb.Send(pingMessage{})
	mb.Send(pingMessage{})
	require.Equal(t, 2, mb.Len())

	m, ok := mb.TryRecv()
	require.True(t, ok)
	require.Equal(t, "ping", m.Kind())
}

func TestMailboxCloseUnblocksRecv(t *testing.T) {
	mb := NewMailbox()
	done := make(chan struct{})
	go func() {
		_, ok := mb.Recv()
		require.False(t, ok)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	mb.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	mb := NewMailbox()
	h := reg.Register(mb)

	got, ok := reg.Lookup(h.Token())
	require.True(t, ok)
	got.Send(pingMessage{})
	require.Equal(t, 1, mb.Len())

	reg.Unregister(h.Token())
	_, ok = reg.Lookup(h.Token())
	require.False(t, ok)
}

func TestSpawnRestartableRetriesAfterError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	reg := NewRegistry()
	SpawnRestartable(ctx, reg, "flaky", func(ctx context.Context, mb *Mailbox) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			panic("boom")
		}
		cancel()
		return nil
	})

	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	require.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(3))
}

func TestOnceboxFillAndRecv(t *testing.T) {
	ob := NewOncebox()
	ob.Fill(pingMessage{})
	m, ok := ob.RecvTimeout(context.Background(), time.Second)
	require.True(t, ok)
	require.Equal(t, "ping", m.Kind())
}

func TestOnceboxRecvTimeoutExpires(t *testing.T) {
	ob := NewOncebox()
	_, ok := ob.RecvTimeout(context.Background(), 10*time.Millisecond)
	require.False(t, ok)
}
