// Package sock wraps a net.Conn with a FIFO pushback buffer and a
// per-call deadline, giving the HTTP reader read/read-line/send
// primitives with bounded line lengths.
package sock

import (
	"errors"
	"net"
	"time"

	"github.com/caldervale/go-rawhttpd/pkg/fifobuf"
)

// ErrLineTooLong is returned by ReadLine when limit bytes are consumed
// without finding a terminating '\n'.
var ErrLineTooLong = errors.New("sock: line exceeds limit")

// DefaultTimeout is the per-call wall-clock timeout applied to Read and
// ReadLine when none is configured, per spec.md §4.2.
const DefaultTimeout = 10 * time.Second

// Socket is a buffered wrapper around a net.Conn. It is not safe for
// concurrent use — one connection is handled by exactly one worker, per
// spec.md §5.
type Socket struct {
	conn    net.Conn
	buf     *fifobuf.Buffer
	Timeout time.Duration
}

// New wraps conn with a fresh pushback buffer and the default timeout.
func New(conn net.Conn) *Socket {
	return &Socket{
		conn:    conn,
		buf:     fifobuf.New(2048),
		Timeout: DefaultTimeout,
	}
}

// Read returns up to n bytes: buffered pushback first, else a single
// kernel read bounded by the socket's deadline.
func (s *Socket) Read(n int) ([]byte, error) {
	if !s.buf.Empty() {
		return s.buf.Pop(n), nil
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(s.Timeout)); err != nil {
		return nil, err
	}
	tmp := make([]byte, n)
	read, err := s.conn.Read(tmp)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return tmp[:read], nil
}

// ErrTimeout is returned when a Read or ReadLine call exceeds the
// socket's configured wall-clock timeout.
var ErrTimeout = errors.New("sock: read timed out")

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ReadLine returns the next CRLF- or LF-terminated line (the terminator
// stripped), pulling first from any buffered prefix and otherwise reading
// from the connection in chunks of max(buffered length, 1024) bytes,
// pushing back anything read past the newline. Fails with ErrTimeout if
// wall time exceeds Timeout, or ErrLineTooLong if limit bytes are
// consumed without finding '\n'.
func (s *Socket) ReadLine(limit int) ([]byte, error) {
	line := s.buf.PopLine()
	if n := len(line); n > 0 && line[n-1] == '\n' {
		return trimCRLF(line), nil
	}

	start := time.Now()
	remaining := limit - len(line)
	for {
		readSize := s.readChunkSize()
		if readSize > remaining {
			readSize = remaining
		}
		if readSize <= 0 {
			return nil, ErrLineTooLong
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(s.Timeout)); err != nil {
			return nil, err
		}
		tmp := make([]byte, readSize)
		n, err := s.conn.Read(tmp)
		if err != nil {
			if isTimeout(err) {
				return nil, ErrTimeout
			}
			return nil, err
		}
		received := tmp[:n]
		remaining -= n

		if idx := indexByte(received, '\n'); idx != -1 {
			line = append(line, received[:idx+1]...)
			s.buf.Push(received[idx+1:])
			return trimCRLF(line), nil
		}
		line = append(line, received...)
		if remaining <= 0 {
			return nil, ErrLineTooLong
		}
		if time.Since(start) > s.Timeout {
			return nil, ErrTimeout
		}
	}
}

func (s *Socket) readChunkSize() int {
	if n := s.buf.Len(); n > 1024 {
		return n
	}
	return 1024
}

func trimCRLF(line []byte) []byte {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	return line[:n]
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Send writes data in full.
func (s *Socket) Send(data []byte) error {
	_, err := s.conn.Write(data)
	return err
}

// Close closes the underlying connection. Safe to call multiple times
// and from a deferred scope exit to guarantee closure on any return
// path, including a panic unwind.
func (s *Socket) Close() error {
	return s.conn.Close()
}
