// Package config holds the device settings consulted by the protocol
// dispatcher: encoder resolutions, start offsets and orientation flags.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Keys used by the encoder and protocol code.
const (
	AzimuthSteps    = "azsteps"
	AltitudeSteps   = "alsteps"
	AzimuthStart    = "azstart"
	AltitudeStart   = "alstart"
	FlipAzimuth     = "flpaz"
	FlipAltitude    = "flpalt"
	NetworkSSID     = "ssid"
	NetworkPass     = "password"
	AccessPointSSID = "apname"
)

var ErrUnknownKey = errors.New("unknown config key")

type Type int

const (
	Text Type = iota
	Password
	Number
	Checkbox
)

func (t Type) String() string {
	switch t {
	case Text:
		return "text"
	case Password:
		return "password"
	case Number:
		return "number"
	case Checkbox:
		return "checkbox"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Entry is one named setting.
type Entry struct {
	Name  string
	Label string
	Value string
	Type  Type
}

// Checked is the value stored for a ticked checkbox.
const Checked = "selected"

// Defaults returns the settings table with factory values.
func Defaults() []Entry {
	return []Entry{
		{Name: NetworkSSID, Label: "WiFi SSID", Type: Text},
		{Name: NetworkPass, Label: "WiFi password", Type: Password},
		{Name: AccessPointSSID, Label: "Access point name", Value: "dsc", Type: Text},
		{Name: AzimuthSteps, Label: "Azimuth resolution", Value: "10000", Type: Number},
		{Name: AltitudeSteps, Label: "Altitude resolution", Value: "10000", Type: Number},
		{Name: AzimuthStart, Label: "Azimuth start", Value: "0", Type: Number},
		{Name: AltitudeStart, Label: "Altitude start", Value: "0", Type: Number},
		{Name: FlipAzimuth, Label: "Flip azimuth", Type: Checkbox},
		{Name: FlipAltitude, Label: "Flip altitude", Type: Checkbox},
	}
}

// Store is the key/value interface the core reads and writes settings through.
type Store interface {
	Int(key string) int
	Bool(key string) bool
	Value(key string) string
	SetValue(key, value string) error
}

// Memory is a Store over an in-memory entry table. It is not safe for
// concurrent use; callers serialize access through the control loop.
type Memory struct {
	entries []Entry
	index   map[string]int
}

func NewMemory(entries []Entry) *Memory {
	m := &Memory{
		entries: append([]Entry(nil), entries...),
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range m.entries {
		m.index[e.Name] = i
	}
	return m
}

// Entries returns a copy of the table in declaration order.
func (m *Memory) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

func (m *Memory) Lookup(key string) (Entry, bool) {
	i, ok := m.index[key]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

func (m *Memory) Value(key string) string {
	e, _ := m.Lookup(key)
	return e.Value
}

// Int parses the leading decimal integer of the value, returning 0 when
// there is none.
func (m *Memory) Int(key string) int {
	return atoi(m.Value(key))
}

func (m *Memory) Bool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(m.Value(key))) {
	case Checked, "true", "1", "on", "yes":
		return true
	}
	return false
}

func (m *Memory) SetValue(key, value string) error {
	i, ok := m.index[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	m.entries[i].Value = value
	return nil
}

func atoi(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}
