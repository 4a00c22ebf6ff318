// Package transport feeds protocol requests from TCP clients and a serial
// port to a dispatcher without ever blocking the control loop.
package transport

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/w1xm/dsc_interface/protocol"
)

// Stream is one duplex client connection as seen by the control loop.
// Available, Read and Connected never block.
type Stream interface {
	protocol.Input
	io.Writer
	// Connected reports whether the peer is still there or unread input
	// remains.
	Connected() bool
	Close() error
}

const (
	// maxBuffered caps unread input per stream; bytes beyond it are
	// dropped, like overflow past a request's argument cap.
	maxBuffered = 4096
	// DefaultWriteTimeout bounds how long a response write may take.
	DefaultWriteTimeout = 100 * time.Millisecond
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// BufferedStream turns a blocking io.ReadWriteCloser into a Stream. A
// background goroutine moves received bytes into a buffer, standing in for
// a network stack's or UART's receive buffer.
type BufferedStream struct {
	rwc          io.ReadWriteCloser
	writeTimeout time.Duration

	mu     sync.Mutex
	buf    bytes.Buffer
	err    error
	closed bool
}

// NewStream starts buffering rwc. If rwc supports write deadlines, each
// Write is bounded by writeTimeout.
func NewStream(rwc io.ReadWriteCloser, writeTimeout time.Duration) *BufferedStream {
	s := &BufferedStream{rwc: rwc, writeTimeout: writeTimeout}
	go s.reader()
	return s
}

func (s *BufferedStream) reader() {
	b := make([]byte, 512)
	for {
		n, err := s.rwc.Read(b)
		s.mu.Lock()
		if room := maxBuffered - s.buf.Len(); n > room {
			n = room
		}
		if n > 0 {
			s.buf.Write(b[:n])
		}
		if err != nil {
			s.err = err
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

func (s *BufferedStream) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

func (s *BufferedStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, nil
	}
	return s.buf.Read(p)
}

func (s *BufferedStream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && (s.err == nil || s.buf.Len() > 0)
}

// Err returns the error that ended the reader, if any.
func (s *BufferedStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *BufferedStream) Write(p []byte) (int, error) {
	if d, ok := s.rwc.(writeDeadliner); ok && s.writeTimeout > 0 {
		d.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.rwc.Write(p)
}

func (s *BufferedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.rwc.Close()
}
