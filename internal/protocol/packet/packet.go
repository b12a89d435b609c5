package packet

import (
	"errors"
	"fmt"

	"github.com/danmuck/mcwire/internal/protocol"
)

var (
	ErrUnknownPacket    = errors.New("packet: unknown packet")
	ErrTrailingBytes    = errors.New("packet: trailing bytes after packet body")
	ErrInvalidNextState = errors.New("packet: invalid handshake next state")
)

const (
	maxServerAddressLen = 255
	maxPlayerNameLen    = 16
)

// Packet is a decoded, immutable protocol record.
type Packet interface {
	PacketID() int32
	State() State
}

// Encoder is implemented by clientbound packets.
type Encoder interface {
	Packet
	Encode(s protocol.Stream) error
}

// Handshake opens every connection and names the target state.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

func (Handshake) PacketID() int32 { return IDHandshake }
func (Handshake) State() State    { return StateHandshake }

// Target maps NextState onto a connection state. Transfer (3) enters Login.
func (h Handshake) Target() (State, error) {
	switch h.NextState {
	case NextStateStatus:
		return StateStatus, nil
	case NextStateLogin, NextStateTransfer:
		return StateLogin, nil
	default:
		return StateHandshake, fmt.Errorf("%w: %d", ErrInvalidNextState, h.NextState)
	}
}

func (h Handshake) Encode(s protocol.Stream) error {
	if err := protocol.WriteVarInt(s, h.ProtocolVersion); err != nil {
		return err
	}
	if err := protocol.WriteString(s, h.ServerAddress); err != nil {
		return err
	}
	if err := protocol.WriteUint16(s, h.ServerPort); err != nil {
		return err
	}
	return protocol.WriteVarInt(s, h.NextState)
}

func DecodeHandshake(s protocol.Stream) (Packet, error) {
	version, err := protocol.ReadVarInt(s)
	if err != nil {
		return nil, err
	}
	addr, err := protocol.ReadString(s, maxServerAddressLen)
	if err != nil {
		return nil, err
	}
	port, err := protocol.ReadUint16(s)
	if err != nil {
		return nil, err
	}
	next, err := protocol.ReadVarInt(s)
	if err != nil {
		return nil, err
	}
	return Handshake{
		ProtocolVersion: version,
		ServerAddress:   addr,
		ServerPort:      port,
		NextState:       next,
	}, nil
}

type StatusRequest struct{}

func (StatusRequest) PacketID() int32              { return IDStatusRequest }
func (StatusRequest) State() State                 { return StateStatus }
func (StatusRequest) Encode(protocol.Stream) error { return nil }

func DecodeStatusRequest(protocol.Stream) (Packet, error) {
	return StatusRequest{}, nil
}

type PingRequest struct {
	Payload int64
}

func (PingRequest) PacketID() int32 { return IDPingRequest }
func (PingRequest) State() State    { return StateStatus }

func (p PingRequest) Encode(s protocol.Stream) error {
	return protocol.WriteInt64(s, p.Payload)
}

func DecodePingRequest(s protocol.Stream) (Packet, error) {
	payload, err := protocol.ReadInt64(s)
	if err != nil {
		return nil, err
	}
	return PingRequest{Payload: payload}, nil
}

// LoginStart carries the player name the client wants to log in as.
// Fields newer protocol versions append after the name are left unread.
type LoginStart struct {
	Name string
}

func (LoginStart) PacketID() int32 { return IDLoginStart }
func (LoginStart) State() State    { return StateLogin }

func (p LoginStart) Encode(s protocol.Stream) error {
	return protocol.WriteString(s, p.Name)
}

func DecodeLoginStart(s protocol.Stream) (Packet, error) {
	name, err := protocol.ReadString(s, maxPlayerNameLen)
	if err != nil {
		return nil, err
	}
	return LoginStart{Name: name}, nil
}

// StatusResponse carries the server list JSON document.
type StatusResponse struct {
	JSON string
}

func (StatusResponse) PacketID() int32 { return IDStatusResponse }
func (StatusResponse) State() State    { return StateStatus }

func (p StatusResponse) Encode(s protocol.Stream) error {
	return protocol.WriteString(s, p.JSON)
}

// Pong echoes the ping payload byte for byte.
type Pong struct {
	Payload int64
}

func (Pong) PacketID() int32 { return IDPong }
func (Pong) State() State    { return StateStatus }

func (p Pong) Encode(s protocol.Stream) error {
	return protocol.WriteInt64(s, p.Payload)
}

// LoginDisconnect ends a login attempt with a JSON chat reason.
type LoginDisconnect struct {
	Reason string
}

func (LoginDisconnect) PacketID() int32 { return IDLoginDisconnect }
func (LoginDisconnect) State() State    { return StateLogin }

func (p LoginDisconnect) Encode(s protocol.Stream) error {
	return protocol.WriteString(s, p.Reason)
}
