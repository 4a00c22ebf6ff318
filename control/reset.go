package control

import (
	"log"
	"time"

	"github.com/w1xm/dsc_interface/encoder"
)

// RestartHoldTime is how long the reset button must stay down to restart
// the device.
const RestartHoldTime = 3 * time.Second

// Button is the reset input.
type Button interface {
	Pressed() bool
}

type ButtonFunc func() bool

func (f ButtonFunc) Pressed() bool { return f() }

// Beeper sounds the short acknowledgement cue.
type Beeper interface {
	Beep()
}

type BeeperFunc func()

func (f BeeperFunc) Beep() { f() }

// Restarter restarts the whole device. It is not expected to return.
type Restarter interface {
	Restart()
}

type RestarterFunc func()

func (f RestarterFunc) Restart() { f() }

type ResetState int

const (
	Idle ResetState = iota
	Held
)

func (s ResetState) String() string {
	if s == Held {
		return "held"
	}
	return "idle"
}

// Reset watches the reset button. A press zeroes both encoders at once;
// holding it for RestartHoldTime restarts the device. The hold is tracked
// with a deadline instead of a sleep so the loop keeps serving clients.
type Reset struct {
	button    Button
	src       encoder.Source
	beeper    Beeper
	restarter Restarter
	now       func() time.Time

	state    ResetState
	deadline time.Time
}

func NewReset(button Button, src encoder.Source, beeper Beeper, restarter Restarter) *Reset {
	if beeper == nil {
		beeper = BeeperFunc(func() {})
	}
	return &Reset{
		button:    button,
		src:       src,
		beeper:    beeper,
		restarter: restarter,
		now:       time.Now,
	}
}

func (r *Reset) State() ResetState {
	return r.state
}

func (r *Reset) Poll() {
	switch r.state {
	case Idle:
		if !r.button.Pressed() {
			return
		}
		log.Print("reset pressed; clearing positions")
		encoder.ClearAll(r.src)
		r.beeper.Beep()
		r.state = Held
		r.deadline = r.now().Add(RestartHoldTime)
	case Held:
		if !r.button.Pressed() {
			r.state = Idle
			return
		}
		if r.now().Before(r.deadline) {
			return
		}
		log.Printf("reset held for %v; restarting", RestartHoldTime)
		r.state = Idle
		r.restarter.Restart()
	}
}
