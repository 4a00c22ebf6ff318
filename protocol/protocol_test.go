package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/dsc_interface/config"
	"github.com/w1xm/dsc_interface/encoder"
)

func newDispatcher() (*Dispatcher, *encoder.Counter, *config.Memory) {
	c := encoder.NewCounter()
	store := config.NewMemory(config.Defaults())
	return NewDispatcher(c, store), c, store
}

type step struct {
	cmd     byte
	details string
	want    string
}

func TestDispatch(t *testing.T) {
	for _, test := range []struct {
		name  string
		steps []step
	}{
		{"fresh query", []step{{'Q', "", "0\t0\t\n"}}},
		{"set then query resolution", []step{
			{'S', " 1800,22140", "OK\n"},
			{'H', "", "1800\t22140\t\n"},
			{'G', "", "1800-22140\n"},
		}},
		{"set without space", []step{
			{'S', "4000,8000", "OK\n"},
			{'H', "", "4000\t8000\t\n"},
		}},
		{"set ignores trailing text", []step{
			{'S', "10,20\r\n", "OK\n"},
			{'H', "", "10\t20\t\n"},
		}},
		{"set allows space after comma", []step{
			{'S', "10, 20", "OK\n"},
			{'H', "", "10\t20\t\n"},
		}},
		{"unknown", []step{{'X', "", "\n"}}},
		{"lowercase is unknown", []step{{'q', "", "\n"}}},
		{"malformed set keeps previous response", []step{
			{'H', "", "10000\t10000\t\n"},
			{'S', "badinput", "10000\t10000\t\n"},
			{'S', "12", "10000\t10000\t\n"},
			{'S', "12;13", "10000\t10000\t\n"},
			{'H', "", "10000\t10000\t\n"},
		}},
		{"malformed set after unknown", []step{
			{'X', "", "\n"},
			{'S', " badinput", "\n"},
		}},
	} {
		t.Run(test.name, func(t *testing.T) {
			d, _, _ := newDispatcher()
			for i, s := range test.steps {
				if got := d.Dispatch(s.cmd, s.details); got != s.want {
					t.Errorf("step %d: %c%q = %q, want %q", i, s.cmd, s.details, got, s.want)
				}
			}
		})
	}
}

func TestMalformedSetDoesNotMutate(t *testing.T) {
	d, c, store := newDispatcher()
	c.SetCount(encoder.Azimuth, 12)
	d.Dispatch('S', "badinput")
	if got := store.Value(config.AzimuthSteps); got != "10000" {
		t.Errorf("azsteps = %q, want unchanged", got)
	}
	if got := c.Count(encoder.Azimuth); got != 12 {
		t.Errorf("azimuth = %d, want 12", got)
	}
}

func TestZero(t *testing.T) {
	d, c, _ := newDispatcher()
	c.SetCount(encoder.Azimuth, 1234)
	c.SetCount(encoder.Altitude, -99)
	if got := d.Dispatch('Q', ""); got != "1234\t-99\t\n" {
		t.Errorf("Q = %q", got)
	}
	if got := d.Dispatch('Z', ""); got != "OK\n" {
		t.Errorf("Z = %q", got)
	}
	if got := d.Dispatch('Q', ""); got != "0\t0\t\n" {
		t.Errorf("Q after Z = %q", got)
	}
}

func TestSetWritesDecimalStrings(t *testing.T) {
	d, _, store := newDispatcher()
	d.Dispatch('S', "+0036,-5")
	got := []string{store.Value(config.AzimuthSteps), store.Value(config.AltitudeSteps)}
	if diff := cmp.Diff([]string{"36", "-5"}, got); diff != "" {
		t.Errorf("stored values: (-want +got):\n%s", diff)
	}
}

func TestResponseTruncated(t *testing.T) {
	d, c, _ := newDispatcher()
	c.SetCount(encoder.Azimuth, -9223372036854775808)
	c.SetCount(encoder.Altitude, -9223372036854775808)
	got := d.Dispatch('Q', "")
	if len(got) != MaxResponseLength {
		t.Errorf("len = %d, want %d", len(got), MaxResponseLength)
	}
	if !strings.HasPrefix(got, "-9223372036854775808\t") {
		t.Errorf("Q = %q", got)
	}
}

// bufferInput is an Input over a fixed buffer.
type bufferInput struct {
	bytes.Buffer
}

func (b *bufferInput) Available() int { return b.Len() }

func TestReadRequest(t *testing.T) {
	long := strings.Repeat("1234567890", 5)
	for _, test := range []struct {
		input   string
		cmd     byte
		details string
	}{
		{"Q", 'Q', ""},
		{"S1800,22140", 'S', "1800,22140"},
		{"S 1800,22140\r\n", 'S', " 1800,22140\r\n"},
		{"QQ", 'Q', "Q"},
		{"S" + long, 'S', long[:MaxRequestLength]},
	} {
		t.Run(test.input, func(t *testing.T) {
			in := &bufferInput{}
			in.WriteString(test.input)
			cmd, details, ok := ReadRequest(in)
			if !ok {
				t.Fatal("no request")
			}
			if cmd != test.cmd || details != test.details {
				t.Errorf("ReadRequest = %q %q, want %q %q", cmd, details, test.cmd, test.details)
			}
			if in.Available() != 0 {
				t.Errorf("%d bytes left buffered", in.Available())
			}
		})
	}
}

func TestReadRequestEmpty(t *testing.T) {
	if _, _, ok := ReadRequest(&bufferInput{}); ok {
		t.Error("got a request from an empty buffer")
	}
}

func TestOverflowDoesNotLeak(t *testing.T) {
	d, _, _ := newDispatcher()
	in := &bufferInput{}
	in.WriteString("S1,2" + strings.Repeat(" ", 40) + "Z")
	cmd, details, _ := ReadRequest(in)
	if got := d.Dispatch(cmd, details); got != "OK\n" {
		t.Errorf("S = %q", got)
	}
	in.WriteString("H")
	cmd, details, _ = ReadRequest(in)
	if got := d.Dispatch(cmd, details); got != "1\t2\t\n" {
		t.Errorf("H = %q", got)
	}
}
