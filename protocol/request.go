package protocol

// Input is a receive buffer that can be inspected and read without
// blocking.
type Input interface {
	// Available returns the number of bytes that can be read right now.
	Available() int
	// Read reads at most len(p) already-buffered bytes.
	Read(p []byte) (int, error)
}

// ReadRequest decodes one request from in: a command byte, then up to
// MaxRequestLength argument bytes. Anything else already buffered is
// discarded so that it cannot leak into the next request. ok is false when
// nothing was buffered.
func ReadRequest(in Input) (cmd byte, details string, ok bool) {
	if in.Available() <= 0 {
		return 0, "", false
	}
	var c [1]byte
	if n, err := in.Read(c[:]); n != 1 || err != nil {
		return 0, "", false
	}

	var buf [MaxRequestLength]byte
	n := 0
	for n < len(buf) && in.Available() > 0 {
		m, err := in.Read(buf[n:])
		n += m
		if err != nil || m == 0 {
			break
		}
	}
	drain(in)
	return c[0], string(buf[:n]), true
}

func drain(in Input) {
	var scratch [64]byte
	for in.Available() > 0 {
		if m, err := in.Read(scratch[:]); err != nil || m == 0 {
			return
		}
	}
}
