package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/mcwire/internal/observability"
	"github.com/danmuck/mcwire/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

var ErrInvalidListenAddr = errors.New("server: invalid listen address")

// Config configures the game protocol listener.
type Config struct {
	ListenAddr string
	// MaxConns caps concurrently served connections; zero is unlimited.
	MaxConns      int
	AcceptBackoff BackoffConfig
	Session       session.Config
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:    "0.0.0.0:25565",
		AcceptBackoff: DefaultBackoff(),
		Session:       session.DefaultConfig(),
	}
}

// ListenAddrForPort returns the all-interfaces address for port.
func ListenAddrForPort(port int) string {
	return fmt.Sprintf("0.0.0.0:%d", port)
}

// Server accepts connections and runs each on its own worker goroutine.
// Workers share nothing but the read-only session configuration.
type Server struct {
	cfg Config

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	workers sync.WaitGroup
	active  atomic.Int64
}

func New(cfg Config) *Server {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = DefaultConfig().ListenAddr
	}
	if cfg.AcceptBackoff.InitialDelay <= 0 {
		cfg.AcceptBackoff = DefaultBackoff()
	}
	cfg.Session = cfg.Session.WithDefaults()
	return &Server{
		cfg:   cfg,
		conns: make(map[net.Conn]struct{}),
	}
}

// ActiveConns reports the number of connections with a running worker.
func (s *Server) ActiveConns() int {
	return int(s.active.Load())
}

// ListenAndServe binds the configured address and serves until ctx is done.
// Bind errors are returned immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if _, _, err := net.SplitHostPort(s.cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidListenAddr, s.cfg.ListenAddr, err)
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: bind %q: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln. When ctx is done the listener and every
// tracked connection are closed, and Serve returns after all workers exit.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeAllConns()
	})
	defer stop()
	defer s.workers.Wait()

	log.Info().Str("addr", ln.Addr().String()).Int("max_conns", s.cfg.MaxConns).Msg("accepting connections")
	attempt := 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Str("addr", ln.Addr().String()).Msg("listener closed")
				s.closeAllConns()
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() || isTemporary(err) {
				attempt++
				delay := NextBackoffDelay(s.cfg.AcceptBackoff, attempt)
				log.Warn().Err(err).Dur("retry_in", delay).Msg("accept failed")
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			s.closeAllConns()
			return fmt.Errorf("server: accept: %w", err)
		}
		attempt = 0

		if s.cfg.MaxConns > 0 && s.ActiveConns() >= s.cfg.MaxConns {
			log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("connection limit reached")
			observability.RecordConnRejected(observability.CloseReasonLimit)
			_ = conn.Close()
			continue
		}

		s.trackConn(conn)
		s.workers.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// handleConn is the worker body: it owns conn until the session loop exits.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.workers.Done()
	defer s.untrackConn(conn)
	defer func() {
		// Run recovers its own handler panics; anything caught here happened
		// before the session was counted as open.
		if r := recover(); r != nil {
			observability.RecordConnRejected(observability.CloseReasonPanic)
			log.Error().
				Str("remote", conn.RemoteAddr().String()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("connection worker panicked")
			_ = conn.Close()
		}
	}()

	c := session.NewConn(conn, s.cfg.Session)
	if err := c.Run(ctx); err != nil {
		c.Logger().Debug().Err(err).Msg("session ended with error")
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
	s.active.Add(1)
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
	s.active.Add(-1)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

func isTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}
