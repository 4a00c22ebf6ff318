// Package protocol implements the single-letter encoder protocol spoken by
// planetarium and push-to software (the "BBox" protocol).
//
// A request is one command byte optionally followed by argument bytes, with
// no terminator: whatever is buffered when the request is read belongs to
// it. Responses are short lines of ASCII text.
package protocol

import (
	"fmt"
	"log"
	"strconv"

	"github.com/w1xm/dsc_interface/config"
	"github.com/w1xm/dsc_interface/encoder"
)

const (
	// MaxRequestLength caps the argument bytes of one request.
	MaxRequestLength = 30
	// MaxResponseLength is the size of the response buffer.
	MaxResponseLength = 30
)

// Commands
const (
	Query          = 'Q'
	GetResolution  = 'G'
	Resolution     = 'H'
	Zero           = 'Z'
	SetResolutions = 'S'
)

// Dispatcher executes requests against the encoders and settings. It keeps
// one response buffer shared by every transport: a request that produces
// no new response (a malformed S) returns whatever the buffer held before.
type Dispatcher struct {
	src   encoder.Source
	store config.Store

	buf [MaxResponseLength]byte
	n   int
}

func NewDispatcher(src encoder.Source, store config.Store) *Dispatcher {
	return &Dispatcher{src: src, store: store}
}

// set replaces the response buffer, truncating to its size.
func (d *Dispatcher) set(resp string) {
	d.n = copy(d.buf[:], resp)
}

func (d *Dispatcher) Dispatch(cmd byte, details string) string {
	switch cmd {
	case Query:
		d.set(fmt.Sprintf("%d\t%d\t\n", d.src.Count(encoder.Azimuth), d.src.Count(encoder.Altitude)))
	case GetResolution:
		d.set(fmt.Sprintf("%d-%d\n", d.store.Int(config.AzimuthSteps), d.store.Int(config.AltitudeSteps)))
	case Resolution:
		d.set(fmt.Sprintf("%d\t%d\t\n", d.store.Int(config.AzimuthSteps), d.store.Int(config.AltitudeSteps)))
	case Zero:
		encoder.ClearAll(d.src)
		d.set("OK\n")
	case SetResolutions:
		var az, alt int
		if n, _ := fmt.Sscanf(details, "%d,%d", &az, &alt); n != 2 {
			log.Printf("ignoring malformed resolutions %q", details)
			break
		}
		if err := d.setResolutions(az, alt); err != nil {
			log.Printf("saving resolutions: %v", err)
		}
		d.set("OK\n")
	default:
		log.Printf("unknown command %q", cmd)
		d.set("\n")
	}
	return string(d.buf[:d.n])
}

func (d *Dispatcher) setResolutions(az, alt int) error {
	if err := d.store.SetValue(config.AzimuthSteps, strconv.Itoa(az)); err != nil {
		return err
	}
	return d.store.SetValue(config.AltitudeSteps, strconv.Itoa(alt))
}
