package relay

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Tayyab-Ali-786/Chattify/internal/registry"
	"github.com/Tayyab-Ali-786/Chattify/internal/signaling"
)

const (
	maxDisplayNameLength = 64
	defaultDisplayName   = "Anonymous"
)

// inbound pairs a message with the client that sent it.
type inbound struct {
	client *Client
	msg    *signaling.Message
}

// Hub is the central brain of the signaling relay.
// It owns every connected client and routes messages between them.
type Hub struct {
	registry *registry.Registry

	// clients maps participant IDs to live connections.
	// Only the Run goroutine touches it.
	clients map[string]*Client

	registerCh   chan *Client
	unregisterCh chan *Client
	inboundCh    chan inbound

	done chan struct{}
}

// NewHub creates a new Hub backed by the given room registry.
func NewHub(reg *registry.Registry) *Hub {
	return &Hub{
		registry:     reg,
		clients:      make(map[string]*Client),
		registerCh:   make(chan *Client),
		unregisterCh: make(chan *Client),
		inboundCh:    make(chan inbound, 256),
		done:         make(chan struct{}),
	}
}

// Registry returns the room registry the hub routes with.
func (h *Hub) Registry() *registry.Registry {
	return h.registry
}

// Run starts the hub's main processing loop.
// This is the single goroutine that safely manages all client state.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.registerCh:
			h.handleRegister(client)

		case client := <-h.unregisterCh:
			h.handleUnregister(client)

		case in := <-h.inboundCh:
			h.handleMessage(in.client, in.msg)

		case <-ctx.Done():
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			slog.Info("hub stopped")
			return
		}
	}
}

// register hands a freshly upgraded client to the hub.
func (h *Hub) register(c *Client) bool {
	select {
	case h.registerCh <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.unregisterCh <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(c *Client, msg *signaling.Message) {
	select {
	case h.inboundCh <- inbound{client: c, msg: msg}:
	case <-h.done:
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c.ID] = c
	slog.Info("client registered", "participant", c.ID, "addr", c.remoteAddr())

	h.deliver(c, &signaling.Message{
		Type:          signaling.MessageTypeWelcome,
		ParticipantID: c.ID,
	})
}

func (h *Hub) handleUnregister(c *Client) {
	// A client dropped for being slow unregisters again when its pumps exit.
	if current, ok := h.clients[c.ID]; !ok || current != c {
		return
	}

	slog.Info("client unregistered", "participant", c.ID)
	h.leaveRoom(c)
	delete(h.clients, c.ID)
	close(c.Send)
}

func (h *Hub) handleMessage(c *Client, msg *signaling.Message) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}

	// Never trust the sender's claim about who it is.
	msg.From = c.ID

	slog.Debug("message received", "type", msg.Type, "from", c.ID, "to", msg.To)

	if msg.IsTargeted() {
		h.forward(c, msg)
		return
	}

	switch msg.Type {
	case signaling.MessageTypeJoin:
		h.handleJoin(c, msg)

	case signaling.MessageTypeLeave:
		h.leaveRoom(c)

	case signaling.MessageTypeChat:
		h.handleChat(c, msg)

	case messageTypeMalformed:
		h.deliver(c, &signaling.Message{
			Type:  signaling.MessageTypeError,
			Error: "malformed message",
		})

	default:
		slog.Warn("unknown message type", "type", msg.Type, "from", c.ID)
		h.deliver(c, &signaling.Message{
			Type:  signaling.MessageTypeError,
			Error: "unknown message type: " + msg.Type,
		})
	}
}

// handleJoin registers the client in a room and fans a peer-joined
// notification out to everyone already there.
func (h *Hub) handleJoin(c *Client, msg *signaling.Message) {
	roomID := strings.TrimSpace(msg.RoomID)
	if roomID == "" {
		h.deliver(c, &signaling.Message{
			Type:  signaling.MessageTypeError,
			Error: "roomId is required",
		})
		return
	}

	if msg.DisplayName != "" {
		c.DisplayName = sanitizeDisplayName(msg.DisplayName)
	}
	if msg.ClientType != "" {
		c.ClientType = msg.ClientType
	}

	// Moving rooms is a leave followed by a join.
	h.leaveRoom(c)

	self := registry.Participant{ID: c.ID, DisplayName: c.DisplayName, ClientType: c.ClientType}
	others := h.registry.Join(roomID, self)
	c.RoomID = roomID

	slog.Info("client joined room", "participant", c.ID, "room", roomID, "name", c.DisplayName, "occupants", len(others)+1)

	h.deliver(c, &signaling.Message{
		Type:         signaling.MessageTypeRoomState,
		RoomID:       roomID,
		Participants: others,
	})

	for _, other := range others {
		if target, ok := h.clients[other.ID]; ok {
			h.deliver(target, &signaling.Message{
				Type:        signaling.MessageTypePeerJoined,
				RoomID:      roomID,
				From:        c.ID,
				DisplayName: c.DisplayName,
				ClientType:  c.ClientType,
			})
		}
	}
}

// leaveRoom removes the client from its room and tells the remaining
// occupants. It is a no-op for clients that are not in a room.
func (h *Hub) leaveRoom(c *Client) {
	roomID, remaining, ok := h.registry.Leave(c.ID)
	c.RoomID = ""
	if !ok {
		return
	}

	slog.Info("client left room", "participant", c.ID, "room", roomID, "remaining", len(remaining))

	for _, other := range remaining {
		if target, ok := h.clients[other.ID]; ok {
			h.deliver(target, &signaling.Message{
				Type:   signaling.MessageTypePeerLeft,
				RoomID: roomID,
				From:   c.ID,
			})
		}
	}
}

// forward relays a negotiation message to exactly the named participant.
// An unknown target already left; that is expected and not an error.
func (h *Hub) forward(c *Client, msg *signaling.Message) {
	target, ok := h.clients[msg.To]
	if !ok {
		slog.Debug("dropping message for unknown participant", "type", msg.Type, "from", c.ID, "to", msg.To)
		return
	}

	out := *msg
	if out.Type == signaling.MessageTypeOffer {
		if out.DisplayName == "" {
			out.DisplayName = c.DisplayName
		}
		out.ClientType = c.ClientType
	}
	h.deliver(target, &out)
}

// handleChat relays text to one participant, or to the sender's room when
// the target is the room ID (or empty).
func (h *Hub) handleChat(c *Client, msg *signaling.Message) {
	out := *msg
	out.DisplayName = c.DisplayName

	if target, ok := h.clients[msg.To]; ok {
		h.deliver(target, &out)
		return
	}

	if c.RoomID == "" || (msg.To != "" && msg.To != c.RoomID) {
		slog.Debug("dropping chat for unknown target", "from", c.ID, "to", msg.To)
		return
	}

	out.RoomID = c.RoomID
	for _, other := range h.registry.Occupants(c.RoomID) {
		if other.ID == c.ID {
			continue
		}
		if target, ok := h.clients[other.ID]; ok {
			h.deliver(target, &out)
		}
	}
}

// deliver queues a message on a client's send channel. A client whose queue
// is full is disconnected; silently skipping a message would break the
// per-recipient ordering negotiation depends on.
func (h *Hub) deliver(c *Client, msg *signaling.Message) {
	if current, ok := h.clients[c.ID]; !ok || current != c {
		return
	}

	select {
	case c.Send <- msg:
	default:
		slog.Warn("send queue full, dropping client", "participant", c.ID)
		delete(h.clients, c.ID)
		close(c.Send)
		h.leaveRoom(c)
	}
}

func sanitizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultDisplayName
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		runes := []rune(name)
		name = string(runes[:maxDisplayNameLength])
	}
	return name
}
