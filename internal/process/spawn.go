package process

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// log is the package-level logger, following the teacher's convention of a
// package-scoped logrus.FieldLogger overridable via SetLogger (see
// core/security.go's logger setter pattern).
var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger overrides the package logger, e.g. to attach node-wide fields.
func SetLogger(l logrus.FieldLogger) { log = l }

// restartBackoff is the fixed delay before a restartable process re-runs
// after a crash.
const restartBackoff = 20 * time.Millisecond

// Fallible is a process body that can fail and is given its own mailbox to
// receive messages on.
type Fallible func(ctx context.Context, mb *Mailbox) error

// Infallible is a process body that never returns an error.
type Infallible func(ctx context.Context, mb *Mailbox)

// SolitaryFallible is a process body with no inbound mailbox, that can fail.
type SolitaryFallible func(ctx context.Context) error

// SolitaryInfallible is a process body with no inbound mailbox that never fails.
type SolitaryInfallible func(ctx context.Context)

// SpawnRestartable runs body in its own goroutine with a fresh mailbox. A
// returned error is logged and the body is re-run after restartBackoff;
// ctx cancellation stops the loop for good. Returns the Handle for sending
// to this process.
func SpawnRestartable(ctx context.Context, reg *Registry, name string, body Fallible) Handle {
	mb := NewMailbox()
	h := reg.Register(mb)
	go func() {
		defer mb.Close()
		defer reg.Unregister(h.Token())
		for {
			err := runFallible(ctx, name, func() error { return body(ctx, mb) })
			if err == nil {
				return
			}
			if ctx.Err() != nil {
				return
			}
			log.WithFields(logrus.Fields{"process": name, "error": err}).Warn("process crashed, restarting")
			select {
			case <-time.After(restartBackoff):
			case <-ctx.Done():
				return
			}
		}
	}()
	return h
}

// SpawnFallibleSolitary runs body with no mailbox; a returned error
// terminates the process for good (it is not restarted).
func SpawnFallibleSolitary(ctx context.Context, name string, body SolitaryFallible) {
	go func() {
		if err := runFallible(ctx, name, func() error { return body(ctx) }); err != nil && ctx.Err() == nil {
			log.WithFields(logrus.Fields{"process": name, "error": err}).Error("solitary process terminated")
		}
	}()
}

// SpawnEndlessInfallible runs body with a mailbox; it is expected to run
// until ctx is cancelled and never return an error.
func SpawnEndlessInfallible(ctx context.Context, reg *Registry, name string, body Infallible) Handle {
	mb := NewMailbox()
	h := reg.Register(mb)
	go func() {
		defer mb.Close()
		defer reg.Unregister(h.Token())
		body(ctx, mb)
	}()
	return h
}

// SpawnSolitaryEndless runs body with no mailbox; it is expected to run
// until ctx is cancelled.
func SpawnSolitaryEndless(ctx context.Context, name string, body SolitaryInfallible) {
	go body(ctx)
}

// runFallible recovers a panic from fn into an error, so a single
// misbehaving process body cannot take down the whole node.
func runFallible(ctx context.Context, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process %s panicked: %v", name, r)
		}
	}()
	return fn()
}
