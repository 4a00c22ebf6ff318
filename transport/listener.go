package transport

import (
	"errors"
	"log"
	"net"
	"time"
)

// DefaultPort is the TCP port push-to clients connect to.
const DefaultPort = 4030

// Listener hands out newly arrived client streams without blocking.
type Listener interface {
	Pending() (Stream, bool)
}

// TCPListener accepts connections in the background and offers them one at
// a time through Pending. Connections not yet taken wait in the kernel's
// backlog.
type TCPListener struct {
	ln    net.Listener
	conns chan net.Conn
	done  chan struct{}

	WriteTimeout time.Duration
}

func Listen(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &TCPListener{
		ln:           ln,
		conns:        make(chan net.Conn),
		done:         make(chan struct{}),
		WriteTimeout: DefaultWriteTimeout,
	}
	go l.acceptLoop()
	return l, nil
}

func (l *TCPListener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("failed to accept: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		select {
		case l.conns <- conn:
		case <-l.done:
			conn.Close()
			return
		}
	}
}

func (l *TCPListener) Pending() (Stream, bool) {
	select {
	case conn := <-l.conns:
		return &tcpStream{
			BufferedStream: NewStream(conn, l.WriteTimeout),
			remote:         conn.RemoteAddr(),
		}, true
	default:
		return nil, false
	}
}

func (l *TCPListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *TCPListener) Close() error {
	close(l.done)
	return l.ln.Close()
}

type tcpStream struct {
	*BufferedStream
	remote net.Addr
}

func (s *tcpStream) String() string {
	return s.remote.String()
}
