package transport

import (
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/w1xm/dsc_interface/protocol"
)

// MaxClients is the number of concurrent TCP clients.
const MaxClients = 3

// Dispatcher answers one decoded request.
type Dispatcher interface {
	Dispatch(cmd byte, details string) string
}

type session struct {
	id     uuid.UUID
	slot   int
	stream Stream
}

func (s *session) String() string {
	if str, ok := s.stream.(interface{ String() string }); ok {
		return str.String() + " (" + s.id.String()[:8] + ")"
	}
	return s.id.String()[:8]
}

// Sessions is a fixed table of client slots. A slot whose client went away
// is only reclaimed when a new client needs it; a client arriving while
// every slot is live is disconnected immediately.
type Sessions struct {
	l     Listener
	d     Dispatcher
	slots [MaxClients]*session
}

func NewSessions(l Listener, d Dispatcher) *Sessions {
	return &Sessions{l: l, d: d}
}

// Poll accepts at most one pending client, then services every connected
// slot in order, decoding at most one request per slot.
func (s *Sessions) Poll() {
	s.accept()
	s.service()
}

func (s *Sessions) accept() {
	stream, ok := s.l.Pending()
	if !ok {
		return
	}
	for i, old := range s.slots {
		if old != nil && old.stream.Connected() {
			continue
		}
		if old != nil {
			log.Printf("slot %d: reclaiming %v", i, old)
			old.stream.Close()
		}
		sess := &session{id: uuid.New(), slot: i, stream: stream}
		s.slots[i] = sess
		log.Printf("slot %d: accepted connection from %v", i, sess)
		return
	}
	log.Printf("all %d slots busy; rejecting connection", MaxClients)
	stream.Close()
}

func (s *Sessions) service() {
	for _, sess := range s.slots {
		if sess == nil || !sess.stream.Connected() {
			continue
		}
		cmd, details, ok := protocol.ReadRequest(sess.stream)
		if !ok {
			continue
		}
		log.Printf("%v command: %q args: %q", sess, cmd, details)
		resp := s.d.Dispatch(cmd, details)
		if _, err := io.WriteString(sess.stream, resp+"\n"); err != nil {
			log.Printf("writing to %v: %v", sess, err)
		}
	}
}

// Connected returns the number of slots holding a live client.
func (s *Sessions) Connected() int {
	n := 0
	for _, sess := range s.slots {
		if sess != nil && sess.stream.Connected() {
			n++
		}
	}
	return n
}

// Close disconnects every client.
func (s *Sessions) Close() {
	for i, sess := range s.slots {
		if sess == nil {
			continue
		}
		sess.stream.Close()
		s.slots[i] = nil
	}
}
