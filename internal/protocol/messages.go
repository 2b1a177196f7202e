// Package protocol defines the wire envelopes exchanged over the signal
// socket and the protocol-level error taxonomy. Payloads stay opaque.
package protocol

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Relay/internal/domain"
)

// Protocol errors. All of them are answered as a non-fatal "error"
// envelope to the originating connection only.
var (
	ErrIdentityRequired   = errors.New("identity required: send hello first")
	ErrInvalidIdentity    = errors.New("invalid identity: id must not be empty")
	ErrMissingRoomID      = errors.New("missing room id")
	ErrMissingTarget      = errors.New("missing relay target")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Broadcast sentinels accepted in the relay "to" field.
const (
	BroadcastStar = "*"
	BroadcastAll  = "all"
)

// Envelope is the minimal shape every inbound message must decode to.
type Envelope struct {
	Type string `json:"type"`
}

// Inbound payloads. Unknown extra fields are ignored by the decoder.

type Hello struct {
	ID string `json:"id"`
}

type Ping struct {
	T0 int64 `json:"t0"`
}

type CreateRoom struct {
	Room string `json:"room"`
}

type JoinRoom struct {
	Room string `json:"room"`
}

type Relay struct {
	Room    string          `json:"room,omitempty"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound envelopes.

type HelloAck struct {
	Type      string          `json:"type"`
	ID        domain.ClientID `json:"id"`
	ServerNow int64           `json:"serverNow"`
}

type Pong struct {
	Type      string `json:"type"`
	T0        int64  `json:"t0"`
	ServerNow int64  `json:"serverNow"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type RoomCreated struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room"`
}

type RoomJoined struct {
	Type   string          `json:"type"`
	Room   domain.RoomID   `json:"room"`
	HostID domain.ClientID `json:"hostId"`
	Peers  []string        `json:"peers"`
}

type PeerJoined struct {
	Type   string          `json:"type"`
	PeerID domain.ClientID `json:"peerId"`
}

type PeerLeft struct {
	Type   string          `json:"type"`
	PeerID domain.ClientID `json:"peerId"`
}

type HostUpdate struct {
	Type   string          `json:"type"`
	HostID domain.ClientID `json:"hostId"`
}

type RelayOut struct {
	Type      string          `json:"type"`
	From      domain.ClientID `json:"from"`
	Payload   json.RawMessage `json:"payload"`
	ServerNow int64           `json:"serverNow"`
}

func NewError(err error) Error {
	return Error{Type: "error", Message: err.Error()}
}
