// Package encoder abstracts the two rotary position counters of the setting
// circles.
package encoder

import (
	"fmt"

	"github.com/w1xm/dsc_interface/config"
)

type Axis int

const (
	Azimuth Axis = iota
	Altitude
)

// Axes lists both axes in protocol order.
var Axes = [...]Axis{Azimuth, Altitude}

func (a Axis) String() string {
	switch a {
	case Azimuth:
		return "azimuth"
	case Altitude:
		return "altitude"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// Source is a pair of free-running tick counters. Count never blocks and
// never wraps modulo the axis resolution.
type Source interface {
	Count(axis Axis) int64
	ClearCount(axis Axis)
	SetCount(axis Axis, count int64)
	// Attach binds an axis to its A/B inputs. A flipped axis counts in the
	// opposite direction.
	Attach(axis Axis, pinA, pinB int, flipped bool)
}

// Pins are the A/B quadrature inputs of one axis.
type Pins struct {
	A, B int
}

// Position is the startup description of one axis.
type Position struct {
	Axis        Axis
	Resolution  uint32
	StartOffset int64
	Flipped     bool
}

func keys(axis Axis) (steps, start, flip string) {
	if axis == Altitude {
		return config.AltitudeSteps, config.AltitudeStart, config.FlipAltitude
	}
	return config.AzimuthSteps, config.AzimuthStart, config.FlipAzimuth
}

// LoadPosition reads an axis' resolution, start offset and flip flag.
func LoadPosition(store config.Store, axis Axis) Position {
	steps, start, flip := keys(axis)
	return Position{
		Axis:        axis,
		Resolution:  uint32(store.Int(steps)),
		StartOffset: int64(store.Int(start)),
		Flipped:     store.Bool(flip),
	}
}

// Setup attaches both axes and loads their start offsets from the store.
func Setup(src Source, store config.Store, pins [2]Pins) [2]Position {
	var positions [2]Position
	for _, axis := range Axes {
		p := LoadPosition(store, axis)
		src.Attach(axis, pins[axis].A, pins[axis].B, p.Flipped)
		src.SetCount(axis, p.StartOffset)
		positions[axis] = p
	}
	return positions
}

// ClearAll zeroes both axes.
func ClearAll(src Source) {
	for _, axis := range Axes {
		src.ClearCount(axis)
	}
}
