package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Stream is the byte cursor every codec primitive is written against.
type Stream interface {
	// ReadExact returns exactly n bytes or ErrEndOfStream.
	ReadExact(n int) ([]byte, error)
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
}

// Flusher is implemented by streams that buffer writes.
type Flusher interface {
	Flush() error
}

// MemStream is a growable in-memory Stream. Reads advance a monotonic
// position; writes append.
type MemStream struct {
	buf []byte
	pos int
}

var _ Stream = (*MemStream)(nil)

// NewMemStream returns a stream positioned at the start of a copy of b.
func NewMemStream(b []byte) *MemStream {
	buf := make([]byte, len(b))
	copy(buf, b)
	return &MemStream{buf: buf}
}

func (m *MemStream) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrInvalidLength
	}
	if n > len(m.buf)-m.pos {
		return nil, ErrEndOfStream
	}
	out := make([]byte, n)
	copy(out, m.buf[m.pos:m.pos+n])
	m.pos += n
	return out, nil
}

func (m *MemStream) ReadByte() (byte, error) {
	if m.pos >= len(m.buf) {
		return 0, ErrEndOfStream
	}
	b := m.buf[m.pos]
	m.pos++
	return b, nil
}

func (m *MemStream) Write(p []byte) (int, error) {
	m.buf = append(m.buf, p...)
	return len(p), nil
}

// Bytes exposes the whole buffered content without consuming it.
func (m *MemStream) Bytes() []byte {
	return m.buf
}

// Len is the total number of bytes written.
func (m *MemStream) Len() int {
	return len(m.buf)
}

// Position is the current read offset.
func (m *MemStream) Position() int {
	return m.pos
}

// Remaining is the number of unread bytes.
func (m *MemStream) Remaining() int {
	return len(m.buf) - m.pos
}

// Rest consumes and returns every unread byte.
func (m *MemStream) Rest() []byte {
	out, _ := m.ReadExact(m.Remaining())
	return out
}

// ConnStream is a socket-backed Stream with buffered reads and writes.
// It is owned by exactly one connection worker.
type ConnStream struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

var (
	_ Stream  = (*ConnStream)(nil)
	_ Flusher = (*ConnStream)(nil)
)

func NewConnStream(conn net.Conn) *ConnStream {
	return &ConnStream{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

func (c *ConnStream) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrInvalidLength
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(c.r, out); err != nil {
		return nil, mapReadErr(err)
	}
	return out, nil
}

func (c *ConnStream) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err != nil {
		return 0, mapReadErr(err)
	}
	return b, nil
}

func (c *ConnStream) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: write: %w", ErrIO, err)
	}
	return n, nil
}

func (c *ConnStream) Flush() error {
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrIO, err)
	}
	return nil
}

func (c *ConnStream) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *ConnStream) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *ConnStream) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *ConnStream) Close() error {
	return c.conn.Close()
}

// mapReadErr folds a peer close into ErrEndOfStream and every other
// transport failure into ErrIO.
func mapReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrEndOfStream
	}
	return fmt.Errorf("%w: read: %w", ErrIO, err)
}
