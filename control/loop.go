// Package control runs the device's single control loop. Every piece of
// protocol state is touched only from the goroutine running Loop.Run.
package control

import (
	"context"
	"time"
)

// DefaultInterval is the pause between loop iterations.
const DefaultInterval = 2 * time.Millisecond

// Poller is serviced once per iteration and must not block.
type Poller interface {
	Poll()
}

type task struct {
	fn   func()
	done chan struct{}
}

type Loop struct {
	reset    *Reset
	serial   Poller
	sessions Poller
	interval time.Duration

	tasks chan task
}

// New builds a loop; serial and sessions may be nil.
func New(reset *Reset, serial, sessions Poller, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		reset:    reset,
		serial:   serial,
		sessions: sessions,
		interval: interval,
		tasks:    make(chan task, 16),
	}
}

func (l *Loop) Run(ctx context.Context) error {
	t := time.NewTicker(l.interval)
	defer t.Stop()
	for {
		l.Step()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Step runs one iteration: reset button, queued web tasks, the serial
// channel, then the TCP sessions.
func (l *Loop) Step() {
	if l.reset != nil {
		l.reset.Poll()
	}
	l.runTasks()
	if l.serial != nil {
		l.serial.Poll()
	}
	if l.sessions != nil {
		l.sessions.Poll()
	}
}

func (l *Loop) runTasks() {
	for {
		select {
		case t := <-l.tasks:
			t.fn()
			close(t.done)
		default:
			return
		}
	}
}

// Call runs fn on the loop goroutine during its next iteration and waits
// for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case l.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
