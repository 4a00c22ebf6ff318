package modbus

import (
	"encoding/binary"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/google/go-cmp/cmp"
)

func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

func withCRC(adu []byte) []byte {
	crc := crc16(adu)
	return append(adu, byte(crc), byte(crc>>8))
}

// counterModule answers input register reads from a table of 32-bit
// counters, two registers per counter.
type counterModule struct {
	counters map[uint16]uint32
	requests int
}

func (m *counterModule) Send(adu []byte) ([]byte, error) {
	m.requests++
	if len(adu) != 8 || adu[1] != 0x04 {
		return nil, errors.New("unsupported request")
	}
	addr := binary.BigEndian.Uint16(adu[2:])
	qty := binary.BigEndian.Uint16(adu[4:])
	resp := []byte{adu[0], adu[1], byte(2 * qty)}
	for r := addr; r < addr+qty; r++ {
		v := m.counters[r/2]
		if r%2 == 0 {
			resp = binary.BigEndian.AppendUint16(resp, uint16(v>>16))
		} else {
			resp = binary.BigEndian.AppendUint16(resp, uint16(v))
		}
	}
	return withCRC(resp), nil
}

func TestUint32(t *testing.T) {
	if got := Uint32([]byte{0x12, 0x34, 0x56, 0x78}); got != 0x12345678 {
		t.Errorf("Uint32 = %#x", got)
	}
}

func TestBridge(t *testing.T) {
	module := &counterModule{counters: map[uint16]uint32{1: 0xDEADBEEF}}
	srv := httptest.NewServer(&Bridge{t: module, password: "secret"})
	defer srv.Close()

	client := modbus.NewClient(NewHTTPHandler(srv.URL, "secret", 1))
	results, err := client.ReadInputRegisters(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0xDE, 0xAD, 0xBE, 0xEF}, results); diff != "" {
		t.Errorf("registers: (-want +got):\n%s", diff)
	}
}

func TestBridgePassword(t *testing.T) {
	module := &counterModule{}
	srv := httptest.NewServer(&Bridge{t: module, password: "secret"})
	defer srv.Close()

	client := modbus.NewClient(NewHTTPHandler(srv.URL, "wrong", 1))
	if _, err := client.ReadInputRegisters(0, 2); err == nil {
		t.Error("expected an error with the wrong password")
	}
	if module.requests != 0 {
		t.Errorf("module saw %d requests, want 0", module.requests)
	}
}

func TestBridgeForwardsErrors(t *testing.T) {
	srv := httptest.NewServer(&Bridge{t: &counterModule{}})
	defer srv.Close()

	h := NewHTTPHandler(srv.URL, "", 1)
	_, err := h.Send([]byte{1, 2, 3})
	if err == nil || err.Error() != "unsupported request" {
		t.Errorf("Send = %v, want the module's error", err)
	}
}
