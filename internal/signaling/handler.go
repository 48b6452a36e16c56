package signaling

import (
	"context"
	"log/slog"
)

// Handler routes incoming relay messages to typed channels. Every message
// that drives negotiation goes through Signal so that peer-joined, offer,
// answer, candidate and peer-left keep their relative order.
type Handler struct {
	incoming <-chan *Message

	Welcome   chan string
	RoomState chan *Message
	Signal    chan *Message
	Chat      chan *Message
	Error     chan string
}

// NewHandler creates a new message handler.
func NewHandler(incoming <-chan *Message) *Handler {
	return &Handler{
		incoming:  incoming,
		Welcome:   make(chan string, 1),
		RoomState: make(chan *Message, 1),
		Signal:    make(chan *Message, 64),
		Chat:      make(chan *Message, 16),
		Error:     make(chan string, 4),
	}
}

// Start routes messages until the incoming channel closes or ctx ends.
// All handler channels are closed on return.
func (h *Handler) Start(ctx context.Context) {
	defer h.close()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-h.incoming:
			if !ok {
				return
			}
			if !h.route(ctx, msg) {
				return
			}
		}
	}
}

func (h *Handler) route(ctx context.Context, msg *Message) bool {
	switch msg.Type {
	case MessageTypeWelcome:
		return emit(ctx, h.Welcome, msg.ParticipantID)

	case MessageTypeRoomState:
		return emit(ctx, h.RoomState, msg)

	case MessageTypePeerJoined, MessageTypePeerLeft,
		MessageTypeOffer, MessageTypeAnswer, MessageTypeCandidate:
		return emit(ctx, h.Signal, msg)

	case MessageTypeChat:
		return emit(ctx, h.Chat, msg)

	case MessageTypeError:
		return emit(ctx, h.Error, msg.Error)

	default:
		slog.Debug("ignoring relay message", "type", msg.Type)
		return true
	}
}

func emit[T any](ctx context.Context, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *Handler) close() {
	close(h.Welcome)
	close(h.RoomState)
	close(h.Signal)
	close(h.Chat)
	close(h.Error)
}
