package signaling

import (
	"encoding/json"

	"github.com/Tayyab-Ali-786/Chattify/internal/registry"
)

// Message represents all WebSocket messages between participants and the relay.
type Message struct {
	Type string `json:"type"`

	// Routing
	RoomID string `json:"roomId,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`

	// Identity
	DisplayName   string `json:"displayName,omitempty"`
	ClientType    string `json:"clientType,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`

	// Negotiation
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`

	// Chat relayed through the server
	Text string `json:"text,omitempty"`

	Participants []registry.Participant `json:"participants,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// Client to server message types.
const (
	MessageTypeJoin      = "join"
	MessageTypeLeave     = "leave"
	MessageTypeOffer     = "offer"
	MessageTypeAnswer    = "answer"
	MessageTypeCandidate = "candidate"
	MessageTypeChat      = "chat"
)

// Server to client message types.
const (
	MessageTypeWelcome    = "welcome"
	MessageTypeRoomState  = "room-state"
	MessageTypePeerJoined = "peer-joined"
	MessageTypePeerLeft   = "peer-left"
	MessageTypeError      = "error"
)

// Client types advertised on join, used to pick the data channel codec.
const (
	ClientTypeWeb = "web"
	ClientTypeCLI = "cli"
)

// IsTargeted reports whether the message is forwarded to a single named
// participant rather than handled by the relay itself.
func (m *Message) IsTargeted() bool {
	switch m.Type {
	case MessageTypeOffer, MessageTypeAnswer, MessageTypeCandidate:
		return true
	}
	return false
}
