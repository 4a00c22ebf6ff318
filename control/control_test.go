package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/dsc_interface/encoder"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

type resetHarness struct {
	pressed  bool
	beeps    int
	restarts int
	clock    *fakeClock
	counter  *encoder.Counter
	reset    *Reset
}

func newResetHarness() *resetHarness {
	h := &resetHarness{
		clock:   &fakeClock{t: time.Unix(1000, 0)},
		counter: encoder.NewCounter(),
	}
	h.reset = NewReset(
		ButtonFunc(func() bool { return h.pressed }),
		h.counter,
		BeeperFunc(func() { h.beeps++ }),
		RestarterFunc(func() { h.restarts++ }),
	)
	h.reset.now = h.clock.now
	return h
}

func (h *resetHarness) advance(d time.Duration) {
	h.clock.t = h.clock.t.Add(d)
	h.reset.Poll()
}

func TestResetPressClears(t *testing.T) {
	h := newResetHarness()
	h.counter.SetCount(encoder.Azimuth, 100)
	h.counter.SetCount(encoder.Altitude, -5)

	h.reset.Poll()
	if h.counter.Count(encoder.Azimuth) != 100 {
		t.Fatal("cleared without a press")
	}

	h.pressed = true
	h.reset.Poll()
	if h.counter.Count(encoder.Azimuth) != 0 || h.counter.Count(encoder.Altitude) != 0 {
		t.Errorf("counts = %d, %d, want 0, 0", h.counter.Count(encoder.Azimuth), h.counter.Count(encoder.Altitude))
	}
	if h.beeps != 1 {
		t.Errorf("beeps = %d, want 1", h.beeps)
	}
	if h.reset.State() != Held {
		t.Errorf("state = %v, want held", h.reset.State())
	}

	// Short press: released before the hold time.
	h.pressed = false
	h.advance(time.Second)
	if h.reset.State() != Idle {
		t.Errorf("state = %v, want idle", h.reset.State())
	}
	h.advance(5 * time.Second)
	if h.restarts != 0 {
		t.Errorf("restarted after a short press")
	}
}

func TestResetHoldRestarts(t *testing.T) {
	h := newResetHarness()
	h.pressed = true
	h.reset.Poll()

	// Movement while held is not cleared again.
	h.counter.Add(encoder.Azimuth, 3)
	h.advance(RestartHoldTime - time.Millisecond)
	if h.restarts != 0 {
		t.Fatal("restarted early")
	}
	if got := h.counter.Count(encoder.Azimuth); got != 3 {
		t.Errorf("azimuth = %d, want 3", got)
	}
	h.advance(time.Millisecond)
	if h.restarts != 1 {
		t.Errorf("restarts = %d, want 1", h.restarts)
	}
	if h.beeps != 1 {
		t.Errorf("beeps = %d, want 1", h.beeps)
	}
}

func TestResetRepress(t *testing.T) {
	h := newResetHarness()
	h.pressed = true
	h.reset.Poll()
	h.pressed = false
	h.advance(2 * time.Second)
	h.pressed = true
	h.advance(0)
	// The hold time restarts with the new press.
	h.advance(2 * time.Second)
	if h.restarts != 0 {
		t.Fatal("hold time carried over between presses")
	}
	h.advance(time.Second)
	if h.restarts != 1 {
		t.Errorf("restarts = %d, want 1", h.restarts)
	}
	if h.beeps != 2 {
		t.Errorf("beeps = %d, want 2", h.beeps)
	}
}

type recorder struct {
	name  string
	calls *[]string
}

func (r recorder) Poll() { *r.calls = append(*r.calls, r.name) }

func TestStepOrder(t *testing.T) {
	var calls []string
	button := ButtonFunc(func() bool {
		calls = append(calls, "reset")
		return false
	})
	l := New(NewReset(button, encoder.NewCounter(), nil, nil), recorder{"serial", &calls}, recorder{"sessions", &calls}, 0)
	l.tasks <- task{fn: func() { calls = append(calls, "task") }, done: make(chan struct{})}
	l.Step()
	l.Step()
	want := []string{"reset", "task", "serial", "sessions", "reset", "serial", "sessions"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("unexpected order: (-want +got):\n%s", diff)
	}
}

func TestCallRunsOnLoop(t *testing.T) {
	c := encoder.NewCounter()
	l := New(nil, nil, nil, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- l.Run(ctx) }()

	var got int64
	if err := l.Call(ctx, func() {
		c.SetCount(encoder.Altitude, 77)
		got = c.Count(encoder.Altitude)
	}); err != nil {
		t.Fatal(err)
	}
	if got != 77 {
		t.Errorf("got %d, want 77", got)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestCallCanceled(t *testing.T) {
	l := New(nil, nil, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Nobody runs the loop and the queue may accept the task, so Call must
	// still return once ctx is done.
	if err := l.Call(ctx, func() {}); !errors.Is(err, context.Canceled) {
		t.Errorf("Call = %v, want context.Canceled", err)
	}
}
