package encoder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/w1xm/dsc_interface/internal/modbus"
)

// registerReader is the part of a Modbus client the counter poll needs.
type registerReader interface {
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
}

type remoteAxis struct {
	// raw is the unwrapped module count; base is subtracted from it.
	raw     atomic.Int64
	base    atomic.Int64
	flipped atomic.Bool
	channel atomic.Int32

	// last module reading, touched only by the poller
	last   uint32
	primed bool
}

func (r *remoteAxis) value() int64 {
	v := r.raw.Load()
	if r.flipped.Load() {
		v = -v
	}
	return v
}

// Modbus is a Source backed by a Modbus RTU counter module holding one
// 32-bit counter per input channel. The module's counters wrap at 32 bits;
// Modbus unwraps them into free 64-bit counts. Counting starts from the
// first reading, so a fresh Modbus reads zero whatever the module holds.
type Modbus struct {
	client *modbus.Client
	reader registerReader

	mu   sync.Mutex // serializes polls
	axes [2]remoteAxis
}

// NewModbus returns a Source polling the counter module on port.
func NewModbus(port string, baud int, slaveID byte, interval time.Duration) *Modbus {
	m := &Modbus{
		client: &modbus.Client{
			Port:     port,
			BaudRate: baud,
			SlaveId:  slaveID,
			Interval: interval,
		},
	}
	m.client.Poll = m.pollOnce
	m.reader = m.client
	return m
}

// NewModbusBridge returns a Source polling a counter module attached to a
// modbus bridge at url.
func NewModbusBridge(url, password string, slaveID byte, interval time.Duration) *Modbus {
	m := &Modbus{
		client: &modbus.Client{
			URL:      url,
			Password: password,
			SlaveId:  slaveID,
			Interval: interval,
		},
	}
	m.client.Poll = m.pollOnce
	m.reader = m.client
	return m
}

// Run polls the module until ctx is canceled.
func (m *Modbus) Run(ctx context.Context) error {
	return m.client.Run(ctx)
}

func (m *Modbus) pollOnce() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, axis := range Axes {
		a := &m.axes[axis]
		ch := uint16(a.channel.Load())
		results, err := m.reader.ReadInputRegisters(2*ch, 2)
		if err != nil {
			return fmt.Errorf("reading %v counter: %w", axis, err)
		}
		v := modbus.Uint32(results)
		if a.primed {
			a.raw.Add(int64(int32(v - a.last)))
		}
		a.last = v
		a.primed = true
	}
	return nil
}

func (m *Modbus) Count(axis Axis) int64 {
	a := &m.axes[axis]
	return a.value() - a.base.Load()
}

func (m *Modbus) ClearCount(axis Axis) {
	m.SetCount(axis, 0)
}

func (m *Modbus) SetCount(axis Axis, count int64) {
	a := &m.axes[axis]
	a.base.Store(a.value() - count)
}

// Attach selects the module channel pinA for an axis; its counter lives in
// input registers 2*pinA and 2*pinA+1. pinB is wired to the same channel on
// the module and is not addressed separately.
func (m *Modbus) Attach(axis Axis, pinA, pinB int, flipped bool) {
	a := &m.axes[axis]
	a.channel.Store(int32(pinA))
	a.flipped.Store(flipped)
}
