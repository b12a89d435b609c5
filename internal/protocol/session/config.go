package session

import (
	"time"

	"github.com/danmuck/mcwire/internal/protocol/frame"
	"github.com/danmuck/mcwire/internal/protocol/packet"
)

// Config defines per-connection protocol and transport settings.
type Config struct {
	// ReadTimeout is the idle limit between frames; zero disables it.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Compression starts disabled (Threshold -1) in DefaultConfig.
	Compression frame.Compression
	Limits      frame.Limits

	Status                StatusFunc
	LoginDisconnectReason string
	// KeepOpenAfterPong keeps status connections reading after the ping
	// echo until the client hangs up or goes idle. The default closes them
	// right after Pong, as vanilla servers do.
	KeepOpenAfterPong bool

	Registry *packet.Registry
	// Handlers override or extend DefaultHandlers per (state, id).
	Handlers map[packet.Key]Handler
}

func DefaultConfig() Config {
	return Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          10 * time.Second,
		Compression:           frame.Disabled(),
		Limits:                frame.DefaultLimits(),
		Status:                StaticStatus(DefaultStatus()),
		LoginDisconnectReason: "This server only answers status requests.",
	}
}

// WithDefaults fills unset fields and resolves the dispatch table once so
// every connection shares the same read-only maps.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Limits.MaxFrameBytes <= 0 {
		c.Limits.MaxFrameBytes = def.Limits.MaxFrameBytes
	}
	if c.Limits.MaxUncompressedBytes <= 0 {
		c.Limits.MaxUncompressedBytes = def.Limits.MaxUncompressedBytes
	}
	if c.Status == nil {
		c.Status = def.Status
	}
	if c.LoginDisconnectReason == "" {
		c.LoginDisconnectReason = def.LoginDisconnectReason
	}
	if c.Registry == nil {
		c.Registry = packet.DefaultRegistry()
	}
	merged := DefaultHandlers()
	for k, h := range c.Handlers {
		if h == nil {
			delete(merged, k)
			continue
		}
		merged[k] = h
	}
	c.Handlers = merged
	return c
}
