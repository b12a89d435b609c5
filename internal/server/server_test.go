package server

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/mcwire/internal/protocol"
	"github.com/danmuck/mcwire/internal/protocol/frame"
	"github.com/danmuck/mcwire/internal/protocol/packet"
	"github.com/danmuck/mcwire/internal/protocol/session"
	"github.com/danmuck/mcwire/internal/testutil/testlog"
)

type client struct {
	t      *testing.T
	conn   net.Conn
	stream *protocol.ConnStream
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn, stream: protocol.NewConnStream(conn)}
}

func (c *client) send(p packet.Encoder) {
	c.t.Helper()
	f, err := packet.EncodeFrame(p)
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	if err := frame.WriteFrame(c.stream, f, frame.Disabled(), frame.DefaultLimits()); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *client) recv() (frame.Frame, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return frame.ReadFrame(c.stream, frame.Disabled(), frame.DefaultLimits())
}

func (c *client) ping(payload int64) int64 {
	c.t.Helper()
	c.send(packet.PingRequest{Payload: payload})
	f, err := c.recv()
	if err != nil {
		c.t.Fatalf("pong: %v", err)
	}
	if f.ID != packet.IDPong {
		c.t.Fatalf("pong id=%d", f.ID)
	}
	v, err := protocol.ReadInt64(f.Stream())
	if err != nil {
		c.t.Fatalf("pong body: %v", err)
	}
	return v
}

func statusHandshake() packet.Handshake {
	return packet.Handshake{ProtocolVersion: 759, ServerAddress: "localhost", ServerPort: 25565, NextState: packet.NextStateStatus}
}

func startServer(t *testing.T, cfg Config) (*Server, string, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln)
	}()
	t.Cleanup(cancel)
	return srv, ln.Addr().String(), cancel, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestServeStatusAndPing(t *testing.T) {
	testlog.Start(t)
	_, addr, cancel, done := startServer(t, DefaultConfig())

	c := dial(t, addr)
	c.send(statusHandshake())
	c.send(packet.StatusRequest{})
	f, err := c.recv()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if f.ID != packet.IDStatusResponse {
		t.Fatalf("status id=%d", f.ID)
	}
	if got := c.ping(0x1234); got != 0x1234 {
		t.Fatalf("pong payload=%x", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("serve exit err: %v", err)
	}
}

func TestMalformedConnectionIsIsolated(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Session.KeepOpenAfterPong = true
	srv, addr, cancel, done := startServer(t, cfg)

	b := dial(t, addr)
	b.send(statusHandshake())
	if got := b.ping(1); got != 1 {
		t.Fatalf("b pong=%d", got)
	}

	a := dial(t, addr)
	waitFor(t, func() bool { return srv.ActiveConns() == 2 })
	// Declares a 16 byte frame, sends three bytes and hangs up.
	if _, err := a.conn.Write([]byte{0x10, 0x00, 0x01, 0x02}); err != nil {
		t.Fatalf("a write: %v", err)
	}
	_ = a.conn.(*net.TCPConn).CloseWrite()
	if _, err := a.recv(); !errors.Is(err, protocol.ErrEndOfStream) {
		t.Fatalf("expected a to be closed, got %v", err)
	}
	waitFor(t, func() bool { return srv.ActiveConns() == 1 })

	if got := b.ping(2); got != 2 {
		t.Fatalf("b pong after a failed=%d", got)
	}

	c := dial(t, addr)
	c.send(statusHandshake())
	if got := c.ping(3); got != 3 {
		t.Fatalf("accept loop stopped serving new connections")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("serve exit err: %v", err)
	}
}

func TestOverlongVarIntClosesOnlyThatConnection(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Session.KeepOpenAfterPong = true
	_, addr, _, _ := startServer(t, cfg)

	b := dial(t, addr)
	b.send(statusHandshake())

	a := dial(t, addr)
	if _, err := a.conn.Write([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("a write: %v", err)
	}
	if _, err := a.recv(); !errors.Is(err, protocol.ErrEndOfStream) && !errors.Is(err, protocol.ErrIO) {
		t.Fatalf("expected a to be closed, got %v", err)
	}
	if got := b.ping(42); got != 42 {
		t.Fatalf("b pong=%d", got)
	}
}

func TestShutdownClosesIdleConnections(t *testing.T) {
	testlog.Start(t)
	srv, addr, cancel, done := startServer(t, DefaultConfig())

	c := dial(t, addr)
	waitFor(t, func() bool { return srv.ActiveConns() == 1 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve exit err: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
	if srv.ActiveConns() != 0 {
		t.Fatalf("workers still active: %d", srv.ActiveConns())
	}
	if _, err := c.recv(); err == nil {
		t.Fatalf("expected closed connection after shutdown")
	}
}

func TestListenerClosedElsewhereReleasesWorkers(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Session.ReadTimeout = -1
	srv := New(cfg)
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(context.Background(), ln)
	}()

	c := dial(t, ln.Addr().String())
	waitFor(t, func() bool { return srv.ActiveConns() == 1 })

	_ = ln.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve exit err: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not return after listener close; active=%d", srv.ActiveConns())
	}
	if srv.ActiveConns() != 0 {
		t.Fatalf("workers still active: %d", srv.ActiveConns())
	}
	if _, err := c.recv(); err == nil {
		t.Fatalf("expected idle connection to be closed")
	}
}

func TestHandlerPanicClosesOnlyThatConnection(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Session.Handlers = map[packet.Key]session.Handler{
		{State: packet.StateStatus, ID: packet.IDStatusRequest}: func(*session.Conn, packet.Packet) error {
			panic("status exploded")
		},
	}
	srv, addr, _, _ := startServer(t, cfg)

	a := dial(t, addr)
	b := dial(t, addr)
	waitFor(t, func() bool { return srv.ActiveConns() == 2 })

	a.send(statusHandshake())
	a.send(packet.StatusRequest{})
	if _, err := a.recv(); err == nil {
		t.Fatalf("expected panicking connection to be closed")
	}
	waitFor(t, func() bool { return srv.ActiveConns() == 1 })

	b.send(statusHandshake())
	if got := b.ping(77); got != 77 {
		t.Fatalf("b pong=%d", got)
	}
}

func TestMaxConnsRejectsExtraConnections(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.MaxConns = 1
	srv, addr, _, _ := startServer(t, cfg)

	first := dial(t, addr)
	waitFor(t, func() bool { return srv.ActiveConns() == 1 })

	second := dial(t, addr)
	if _, err := second.recv(); err == nil {
		t.Fatalf("expected second connection to be closed")
	}

	first.send(statusHandshake())
	if got := first.ping(9); got != 9 {
		t.Fatalf("first pong=%d", got)
	}
}

func TestListenAndServeBindError(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := DefaultConfig()
	cfg.ListenAddr = ln.Addr().String()
	err = New(cfg).ListenAndServe(context.Background())
	if err == nil {
		t.Fatalf("expected bind error")
	}
}

func TestListenAndServeRejectsMalformedAddr(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.ListenAddr = "no-port-here"
	err := New(cfg).ListenAndServe(context.Background())
	if !errors.Is(err, ErrInvalidListenAddr) {
		t.Fatalf("expected ErrInvalidListenAddr, got %v", err)
	}
}

func TestListenAddrForPort(t *testing.T) {
	if got := ListenAddrForPort(25565); got != "0.0.0.0:25565" {
		t.Fatalf("addr=%q", got)
	}
}

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	if got := NextBackoffDelay(cfg, 1); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2.0, Jitter: true}
	for i := 0; i < 50; i++ {
		got := NextBackoffDelay(cfg, 2)
		if got < 100*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
}
