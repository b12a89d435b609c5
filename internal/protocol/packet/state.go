package packet

import "fmt"

// State is the connection protocol phase that scopes packet IDs.
type State uint8

const (
	StateHandshake State = iota
	StateStatus
	StateLogin
	StatePlay
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	case StatePlay:
		return "play"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Key addresses one packet type: the same ID means different packets in
// different states.
type Key struct {
	State State
	ID    int32
}

func (k Key) String() string {
	return fmt.Sprintf("%s/0x%02x", k.State, k.ID)
}

// Serverbound packet IDs.
const (
	IDHandshake     int32 = 0x00
	IDStatusRequest int32 = 0x00
	IDPingRequest   int32 = 0x01
	IDLoginStart    int32 = 0x00
)

// Clientbound packet IDs.
const (
	IDStatusResponse  int32 = 0x00
	IDPong            int32 = 0x01
	IDLoginDisconnect int32 = 0x00
)

// Handshake next-state values.
const (
	NextStateStatus   int32 = 1
	NextStateLogin    int32 = 2
	NextStateTransfer int32 = 3
)
