package session

import (
	"fmt"

	"github.com/danmuck/mcwire/internal/protocol/packet"
)

// DefaultHandlers returns a fresh dispatch table for the packets this
// server answers. Login and Play entries are added through Config.Handlers.
func DefaultHandlers() map[packet.Key]Handler {
	return map[packet.Key]Handler{
		{State: packet.StateHandshake, ID: packet.IDHandshake}:  handleHandshake,
		{State: packet.StateStatus, ID: packet.IDStatusRequest}: handleStatusRequest,
		{State: packet.StateStatus, ID: packet.IDPingRequest}:   handlePingRequest,
		{State: packet.StateLogin, ID: packet.IDLoginStart}:     handleLoginStart,
	}
}

func handleHandshake(c *Conn, p packet.Packet) error {
	h, ok := p.(packet.Handshake)
	if !ok {
		return fmt.Errorf("session: handshake handler got %T", p)
	}
	target, err := h.Target()
	if err != nil {
		return err
	}
	c.log.Debug().
		Int32("protocol_version", h.ProtocolVersion).
		Str("server_address", h.ServerAddress).
		Uint16("server_port", h.ServerPort).
		Str("next_state", target.String()).
		Msg("handshake")
	return c.SetState(target)
}

func handleStatusRequest(c *Conn, _ packet.Packet) error {
	doc, err := c.cfg.Status().JSON()
	if err != nil {
		return fmt.Errorf("session: encode status: %w", err)
	}
	return c.Send(packet.StatusResponse{JSON: doc})
}

func handlePingRequest(c *Conn, p packet.Packet) error {
	ping, ok := p.(packet.PingRequest)
	if !ok {
		return fmt.Errorf("session: ping handler got %T", p)
	}
	if err := c.Send(packet.Pong{Payload: ping.Payload}); err != nil {
		return err
	}
	if !c.cfg.KeepOpenAfterPong {
		c.Close()
	}
	return nil
}

func handleLoginStart(c *Conn, p packet.Packet) error {
	start, ok := p.(packet.LoginStart)
	if !ok {
		return fmt.Errorf("session: login handler got %T", p)
	}
	reason, err := chatJSON(c.cfg.LoginDisconnectReason)
	if err != nil {
		return fmt.Errorf("session: encode disconnect: %w", err)
	}
	c.log.Info().Str("player", start.Name).Msg("login refused")
	if err := c.Send(packet.LoginDisconnect{Reason: reason}); err != nil {
		return err
	}
	c.Close()
	return nil
}
