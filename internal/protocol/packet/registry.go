package packet

import (
	"fmt"

	"github.com/danmuck/mcwire/internal/protocol"
	"github.com/danmuck/mcwire/internal/protocol/frame"
)

// Decoder consumes exactly one packet body from s.
type Decoder func(s protocol.Stream) (Packet, error)

type entry struct {
	decode Decoder
	// open bodies may carry version-dependent trailing fields.
	open bool
}

// Registry maps a state-scoped packet key onto its decoder.
type Registry struct {
	entries map[Key]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]entry)}
}

// DefaultRegistry knows every serverbound packet this server understands.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Key{StateHandshake, IDHandshake}, DecodeHandshake)
	r.Register(Key{StateStatus, IDStatusRequest}, DecodeStatusRequest)
	r.Register(Key{StateStatus, IDPingRequest}, DecodePingRequest)
	r.RegisterOpen(Key{StateLogin, IDLoginStart}, DecodeLoginStart)
	return r
}

// Register adds a decoder whose body must be consumed exactly.
func (r *Registry) Register(k Key, d Decoder) {
	r.entries[k] = entry{decode: d}
}

// RegisterOpen adds a decoder that may leave trailing body bytes unread.
func (r *Registry) RegisterOpen(k Key, d Decoder) {
	r.entries[k] = entry{decode: d, open: true}
}

func (r *Registry) Known(k Key) bool {
	_, ok := r.entries[k]
	return ok
}

// Decode interprets f in the given state. Unregistered keys return
// ErrUnknownPacket.
func (r *Registry) Decode(state State, f frame.Frame) (Packet, error) {
	k := Key{State: state, ID: f.ID}
	e, ok := r.entries[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPacket, k)
	}
	body := f.Stream()
	p, err := e.decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", k, err)
	}
	if !e.open && body.Remaining() > 0 {
		return nil, fmt.Errorf("decode %s: %w (%d bytes)", k, ErrTrailingBytes, body.Remaining())
	}
	return p, nil
}

// EncodeFrame serializes a clientbound packet body into a frame.
func EncodeFrame(p Encoder) (frame.Frame, error) {
	body := protocol.NewMemStream(nil)
	if err := p.Encode(body); err != nil {
		return frame.Frame{}, err
	}
	return frame.Frame{ID: p.PacketID(), Body: body.Bytes()}, nil
}
