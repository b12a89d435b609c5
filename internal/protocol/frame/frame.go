package frame

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/mcwire/internal/protocol"
)

var (
	ErrInvalidFrameLength = errors.New("frame: invalid frame length")
	ErrFrameTooLarge      = errors.New("frame: frame too large")
	ErrBelowThreshold     = errors.New("frame: compressed payload below threshold")
	ErrDecompress         = errors.New("frame: decompression failed")
	// ErrMalformedFrame marks a frame that ended before its declared
	// contents. It always wraps the underlying read error.
	ErrMalformedFrame = errors.New("frame: malformed frame")
)

// MaxWireFrame is the largest frame length a three-byte varint can carry.
const MaxWireFrame = 1<<21 - 1

// Frame is one packet: a state-scoped ID and its still-encoded body.
type Frame struct {
	ID   int32
	Body []byte
}

// Stream returns a fresh cursor over the body so decode failures stay
// local to this frame.
func (f Frame) Stream() *protocol.MemStream {
	return protocol.NewMemStream(f.Body)
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxFrameBytes        int
	MaxUncompressedBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes:        MaxWireFrame,
		MaxUncompressedBytes: 8 * 1024 * 1024,
	}
}

// Compression is the per-connection compression setting. A negative
// threshold disables the compression sub-layer entirely.
type Compression struct {
	Threshold int32
}

func Disabled() Compression {
	return Compression{Threshold: -1}
}

func (c Compression) Enabled() bool {
	return c.Threshold >= 0
}

// ReadFrame reads one length-prefixed frame. The payload is buffered in
// full before any field is interpreted. Only an end of stream before the
// first length byte is returned as a bare protocol.ErrEndOfStream; a frame
// cut short anywhere after that is ErrMalformedFrame.
func ReadFrame(s protocol.Stream, c Compression, limits Limits) (Frame, error) {
	cs := &countingStream{Stream: s}
	length, err := protocol.ReadVarInt(cs)
	if err != nil {
		if cs.n > 0 {
			return Frame{}, malformed("length prefix", err)
		}
		return Frame{}, err
	}
	if length <= 0 {
		return Frame{}, ErrInvalidFrameLength
	}
	if int(length) > limits.MaxFrameBytes {
		return Frame{}, ErrFrameTooLarge
	}
	raw, err := s.ReadExact(int(length))
	if err != nil {
		return Frame{}, malformed("payload", err)
	}
	payload := protocol.NewMemStream(raw)

	if c.Enabled() {
		payload, err = inflatePayload(payload, c, limits)
		if err != nil {
			return Frame{}, err
		}
	}

	id, err := protocol.ReadVarInt(payload)
	if err != nil {
		return Frame{}, malformed("packet id", err)
	}
	return Frame{ID: id, Body: payload.Rest()}, nil
}

func malformed(what string, err error) error {
	if errors.Is(err, protocol.ErrEndOfStream) {
		return fmt.Errorf("%w: truncated %s: %w", ErrMalformedFrame, what, err)
	}
	return err
}

// countingStream counts bytes taken through ReadByte.
type countingStream struct {
	protocol.Stream
	n int
}

func (c *countingStream) ReadByte() (byte, error) {
	b, err := c.Stream.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

func inflatePayload(payload *protocol.MemStream, c Compression, limits Limits) (*protocol.MemStream, error) {
	dataLen, err := protocol.ReadVarInt(payload)
	if err != nil {
		return nil, malformed("uncompressed length", err)
	}
	switch {
	case dataLen == 0:
		return payload, nil
	case dataLen < 0:
		return nil, ErrInvalidFrameLength
	case dataLen < c.Threshold:
		return nil, ErrBelowThreshold
	case int(dataLen) > limits.MaxUncompressedBytes:
		return nil, ErrFrameTooLarge
	}

	src := bytes.NewReader(payload.Rest())
	zr, err := zlib.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", protocol.ErrIO, ErrDecompress, err)
	}
	defer zr.Close()

	out := make([]byte, dataLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", protocol.ErrIO, ErrDecompress, err)
	}
	// The declared length must be exact and the zlib trailer must verify.
	var extra [1]byte
	n, err := zr.Read(extra[:])
	if n > 0 {
		return nil, fmt.Errorf("%w: %w: inflated past declared length %d", protocol.ErrIO, ErrDecompress, dataLen)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w: %w", protocol.ErrIO, ErrDecompress, err)
	}
	if src.Len() > 0 {
		return nil, fmt.Errorf("%w: %w: %d bytes after zlib stream", protocol.ErrIO, ErrDecompress, src.Len())
	}
	return protocol.NewMemStream(out), nil
}

// WriteFrame encodes f, applies compression when configured, and hands the
// whole frame to s in a single Write before flushing.
func WriteFrame(s protocol.Stream, f Frame, c Compression, limits Limits) error {
	data := protocol.AppendVarInt(make([]byte, 0, protocol.MaxVarIntLen+len(f.Body)), f.ID)
	data = append(data, f.Body...)
	if len(data) > limits.MaxUncompressedBytes {
		return ErrFrameTooLarge
	}

	var payload []byte
	if c.Enabled() {
		if len(data) >= int(c.Threshold) {
			compressed, err := deflate(data)
			if err != nil {
				return err
			}
			payload = protocol.AppendVarInt(make([]byte, 0, protocol.MaxVarIntLen+len(compressed)), int32(len(data)))
			payload = append(payload, compressed...)
		} else {
			payload = append([]byte{0x00}, data...)
		}
	} else {
		payload = data
	}
	if len(payload) > limits.MaxFrameBytes {
		return ErrFrameTooLarge
	}

	out := protocol.AppendVarInt(make([]byte, 0, protocol.MaxVarIntLen+len(payload)), int32(len(payload)))
	out = append(out, payload...)
	if _, err := s.Write(out); err != nil {
		return err
	}
	if fl, ok := s.(protocol.Flusher); ok {
		return fl.Flush()
	}
	return nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("%w: deflate: %w", protocol.ErrIO, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: deflate: %w", protocol.ErrIO, err)
	}
	return buf.Bytes(), nil
}
