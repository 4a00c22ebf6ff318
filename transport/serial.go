package transport

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
	"github.com/w1xm/dsc_interface/protocol"
)

// Channel serves requests from a single always-present stream. Responses
// are written verbatim.
type Channel struct {
	s Stream
	d Dispatcher
}

func NewChannel(s Stream, d Dispatcher) *Channel {
	return &Channel{s: s, d: d}
}

// Poll decodes and answers at most one request.
func (c *Channel) Poll() {
	cmd, details, ok := protocol.ReadRequest(c.s)
	if !ok {
		return
	}
	resp := c.d.Dispatch(cmd, details)
	if _, err := io.WriteString(c.s, resp); err != nil {
		log.Printf("writing serial response: %v", err)
	}
}

// Serial is a Stream over a serial port that is reopened a second after it
// fails. While the port is closed it reads as empty and discards writes.
type Serial struct {
	name string
	baud int

	cur atomic.Pointer[BufferedStream]
}

func NewSerial(name string, baud int) *Serial {
	return &Serial{name: name, baud: baud}
}

// Run keeps the port open until ctx is canceled.
func (s *Serial) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if st := s.cur.Swap(nil); st != nil {
				st.Close()
			}
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
		if st := s.cur.Load(); st != nil {
			if st.Err() == nil {
				continue
			}
			log.Printf("reading %q: %v", s.name, st.Err())
			s.cur.Store(nil)
			st.Close()
		}
		port, err := serial.OpenPort(&serial.Config{Name: s.name, Baud: s.baud})
		if err != nil {
			log.Printf("opening %q: %v", s.name, err)
			continue
		}
		log.Printf("opened %q", s.name)
		s.cur.Store(NewStream(port, 0))
	}
}

func (s *Serial) Available() int {
	if st := s.cur.Load(); st != nil {
		return st.Available()
	}
	return 0
}

func (s *Serial) Read(p []byte) (int, error) {
	if st := s.cur.Load(); st != nil {
		return st.Read(p)
	}
	return 0, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	if st := s.cur.Load(); st != nil {
		return st.Write(p)
	}
	return len(p), nil
}

func (s *Serial) Connected() bool {
	st := s.cur.Load()
	return st != nil && st.Connected()
}

func (s *Serial) Close() error {
	if st := s.cur.Swap(nil); st != nil {
		return st.Close()
	}
	return nil
}
