package encoder

import "sync/atomic"

// quadrature maps (previous AB << 2 | current AB) to a step. Invalid
// double transitions count as zero.
var quadrature = [16]int64{0, -1, 1, 0, 1, 0, 0, -1, -1, 0, 0, 1, 0, 1, -1, 0}

type channel struct {
	count   atomic.Int64
	state   atomic.Uint32
	flipped atomic.Bool
	pinA    atomic.Int32
	pinB    atomic.Int32
}

// Counter is a software quadrature counter. Edge and Add may be called from
// any goroutine (an input watcher or a simulator) while the control loop
// reads counts.
type Counter struct {
	axes [2]channel
}

func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) Count(axis Axis) int64 {
	return c.axes[axis].count.Load()
}

func (c *Counter) ClearCount(axis Axis) {
	c.axes[axis].count.Store(0)
}

func (c *Counter) SetCount(axis Axis, count int64) {
	c.axes[axis].count.Store(count)
}

func (c *Counter) Attach(axis Axis, pinA, pinB int, flipped bool) {
	ch := &c.axes[axis]
	ch.pinA.Store(int32(pinA))
	ch.pinB.Store(int32(pinB))
	ch.flipped.Store(flipped)
	ch.state.Store(0)
}

// Pins returns the inputs an axis was attached to.
func (c *Counter) Pins(axis Axis) Pins {
	ch := &c.axes[axis]
	return Pins{A: int(ch.pinA.Load()), B: int(ch.pinB.Load())}
}

// Edge feeds the current levels of an axis' A and B inputs. Every edge of
// either input moves the count by one; A leading B counts up.
func (c *Counter) Edge(axis Axis, a, b bool) {
	ch := &c.axes[axis]
	var cur uint32
	if a {
		cur |= 2
	}
	if b {
		cur |= 1
	}
	prev := ch.state.Swap(cur)
	if step := quadrature[prev<<2|cur]; step != 0 {
		c.Add(axis, step)
	}
}

// Add moves an axis by delta ticks, honoring the flip flag.
func (c *Counter) Add(axis Axis, delta int64) {
	ch := &c.axes[axis]
	if ch.flipped.Load() {
		delta = -delta
	}
	ch.count.Add(delta)
}
