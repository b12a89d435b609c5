package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/danmuck/mcwire/internal/observability"
	"github.com/danmuck/mcwire/internal/protocol"
	"github.com/danmuck/mcwire/internal/protocol/frame"
	"github.com/danmuck/mcwire/internal/protocol/packet"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidTransition = errors.New("session: invalid state transition")
	ErrHandlerPanic      = errors.New("session: handler panicked")
)

// Handler handles one decoded packet on its connection's worker.
type Handler func(c *Conn, p packet.Packet) error

// Conn is one client connection. It is owned by a single worker goroutine
// for its whole lifetime and shares no mutable state with other Conns.
type Conn struct {
	id          string
	stream      *protocol.ConnStream
	state       packet.State
	compression frame.Compression
	cfg         Config
	log         zerolog.Logger

	closing bool
}

// NewConn takes ownership of nc. cfg is expected to have been through
// WithDefaults; NewConn applies it again when the dispatch table is unset.
func NewConn(nc net.Conn, cfg Config) *Conn {
	if cfg.Registry == nil || cfg.Handlers == nil {
		cfg = cfg.WithDefaults()
	}
	id := uuid.NewString()
	return &Conn{
		id:          id,
		stream:      protocol.NewConnStream(nc),
		state:       packet.StateHandshake,
		compression: cfg.Compression,
		cfg:         cfg,
		log: log.With().
			Str("conn_id", id).
			Str("remote", nc.RemoteAddr().String()).
			Logger(),
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) State() packet.State {
	return c.state
}

func (c *Conn) Compression() frame.Compression {
	return c.compression
}

func (c *Conn) Logger() *zerolog.Logger {
	return &c.log
}

// SetState applies a forward transition. Handshake is only ever left, and
// Play is only reachable from Login.
func (c *Conn) SetState(next packet.State) error {
	ok := false
	switch c.state {
	case packet.StateHandshake:
		ok = next == packet.StateStatus || next == packet.StateLogin
	case packet.StateLogin:
		ok = next == packet.StatePlay
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, next)
	}
	c.log.Debug().Str("from", c.state.String()).Str("to", next.String()).Msg("state transition")
	c.state = next
	return nil
}

// Close asks the loop to stop once the current packet is handled.
func (c *Conn) Close() {
	c.closing = true
}

// Send encodes p, frames it with the connection's compression setting and
// flushes it to the socket.
func (c *Conn) Send(p packet.Encoder) error {
	f, err := packet.EncodeFrame(p)
	if err != nil {
		return err
	}
	if c.cfg.WriteTimeout > 0 {
		_ = c.stream.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := frame.WriteFrame(c.stream, f, c.compression, c.cfg.Limits); err != nil {
		return err
	}
	observability.RecordFrame("out", len(f.Body))
	c.log.Trace().Int32("packet_id", f.ID).Int("bytes", len(f.Body)).Msg("sent packet")
	return nil
}

// Run reads, dispatches and answers frames until the peer disconnects, a
// codec error occurs, a handler closes the connection, or ctx is done.
// The socket is always closed on return. The returned error is nil for
// orderly endings. A panicking handler ends only this connection and is
// returned as ErrHandlerPanic.
func (c *Conn) Run(ctx context.Context) (err error) {
	observability.RecordConnOpened()
	stop := context.AfterFunc(ctx, func() {
		_ = c.stream.Close()
	})
	defer stop()
	defer c.stream.Close()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("packet handler panicked")
			err = c.finish(observability.CloseReasonPanic, fmt.Errorf("%w: %v", ErrHandlerPanic, r))
		}
	}()

	c.log.Debug().Msg("connection opened")
	for !c.closing {
		if c.cfg.ReadTimeout > 0 {
			_ = c.stream.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		f, err := frame.ReadFrame(c.stream, c.compression, c.cfg.Limits)
		if err != nil {
			if ctx.Err() != nil {
				return c.finish(observability.CloseReasonShutdown, nil)
			}
			return c.finish(closeReason(err), err)
		}
		observability.RecordFrame("in", len(f.Body))

		if err := c.dispatch(f); err != nil {
			if ctx.Err() != nil {
				return c.finish(observability.CloseReasonShutdown, nil)
			}
			reason := closeReason(err)
			if reason == observability.CloseReasonEOF {
				// A short body inside a complete frame is the peer's fault.
				reason = observability.CloseReasonProtocol
			}
			return c.finish(reason, err)
		}
	}
	return c.finish(observability.CloseReasonHandler, nil)
}

func (c *Conn) dispatch(f frame.Frame) error {
	key := packet.Key{State: c.state, ID: f.ID}
	h, ok := c.cfg.Handlers[key]
	if !ok || !c.cfg.Registry.Known(key) {
		observability.RecordPacket(c.state.String(), f.ID, false)
		c.log.Debug().
			Str("state", c.state.String()).
			Int32("packet_id", f.ID).
			Int("bytes", len(f.Body)).
			Msg("dropping unknown packet")
		return nil
	}

	p, err := c.cfg.Registry.Decode(c.state, f)
	if err != nil {
		return err
	}
	observability.RecordPacket(c.state.String(), f.ID, true)
	c.log.Trace().Str("state", c.state.String()).Int32("packet_id", f.ID).Msg("received packet")
	return h(c, p)
}

func (c *Conn) finish(reason string, err error) error {
	observability.RecordConnClosed(reason)
	event := c.log.Debug()
	switch reason {
	case observability.CloseReasonProtocol, observability.CloseReasonIO:
		event = c.log.Warn()
	case observability.CloseReasonPanic:
		event = c.log.Error()
	}
	event.Str("reason", reason).Str("state", c.state.String()).Err(err).Msg("connection closed")
	if reason == observability.CloseReasonEOF {
		return nil
	}
	return err
}

func closeReason(err error) string {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return observability.CloseReasonTimeout
	case errors.Is(err, frame.ErrMalformedFrame):
		return observability.CloseReasonProtocol
	case errors.Is(err, protocol.ErrEndOfStream):
		return observability.CloseReasonEOF
	case errors.Is(err, protocol.ErrIO), errors.Is(err, net.ErrClosed):
		return observability.CloseReasonIO
	default:
		return observability.CloseReasonProtocol
	}
}
