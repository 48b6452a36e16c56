package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"

	pion "github.com/pion/webrtc/v4"

	"github.com/Tayyab-Ali-786/Chattify/internal/signaling"
)

// ErrManagerStopped is returned by calls made after Run has returned.
var ErrManagerStopped = errors.New("negotiation manager stopped")

// Signaler delivers messages to the relay.
type Signaler interface {
	Send(msg *signaling.Message) error
}

// Sink receives callbacks from one session's transport. Implementations are
// handed out by the manager and may be called from any goroutine.
type Sink interface {
	LocalCandidate(c pion.ICECandidateInit)
	ConnectionState(state pion.PeerConnectionState)
}

// Factory creates the transport for a new session.
type Factory interface {
	NewTransport(peer Peer, role Role, sink Sink) (Transport, error)
}

// Options configure a Manager.
type Options struct {
	LocalName  string
	ClientType string

	// OnState is called from the manager loop whenever a session changes
	// state, including when it is closed.
	OnState func(peer Peer, state State)

	// OnDeparted is called from the manager loop when a session ends because
	// the peer left the room or its connection failed. Sessions closed by
	// the manager itself (shutdown, replacement) do not count.
	OnDeparted func(peer Peer)
}

// PeerStatus is a point-in-time view of one session.
type PeerStatus struct {
	Peer  Peer
	Role  Role
	State State
}

type eventKind int

const (
	eventCandidate eventKind = iota
	eventState
	eventCall
)

type event struct {
	kind      eventKind
	session   *Session
	candidate pion.ICECandidateInit
	state     pion.PeerConnectionState
	call      func()
}

// Manager owns every negotiation session of the local participant. All
// session state is touched only by Run.
type Manager struct {
	signaler Signaler
	factory  Factory
	opts     Options

	events   chan event
	done     chan struct{}
	sessions map[string]*Session
}

// NewManager creates a manager. Nothing happens until Run is called.
func NewManager(signaler Signaler, factory Factory, opts Options) *Manager {
	if opts.ClientType == "" {
		opts.ClientType = signaling.ClientTypeCLI
	}
	return &Manager{
		signaler: signaler,
		factory:  factory,
		opts:     opts,
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		sessions: make(map[string]*Session),
	}
}

// Run processes relay messages and transport events until ctx is done or
// signals is closed. Every session is closed on return.
func (m *Manager) Run(ctx context.Context, signals <-chan *signaling.Message) error {
	defer close(m.done)
	defer m.closeAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-signals:
			if !ok {
				return nil
			}
			m.handleSignal(msg)

		case ev := <-m.events:
			m.handleEvent(ev)
		}
	}
}

// Peers returns the current sessions. It must not be called from OnState.
func (m *Manager) Peers(ctx context.Context) ([]PeerStatus, error) {
	var out []PeerStatus
	err := m.do(ctx, func() {
		for _, s := range m.sessions {
			out = append(out, PeerStatus{Peer: s.peer, Role: s.role, State: s.state})
		}
	})
	slices.SortFunc(out, func(a, b PeerStatus) int { return strings.Compare(a.Peer.ID, b.Peer.ID) })
	return out, err
}

// ReplaceTrack swaps the outgoing track toward peerID.
func (m *Manager) ReplaceTrack(ctx context.Context, peerID string, kind pion.RTPCodecType, track pion.TrackLocal) error {
	var err error
	callErr := m.do(ctx, func() {
		s, ok := m.sessions[peerID]
		if !ok {
			err = ErrUnknownPeer
			return
		}
		err = s.ReplaceTrack(kind, track)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// do runs fn on the loop and waits for it.
func (m *Manager) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	ev := event{kind: eventCall, call: func() {
		fn()
		close(done)
	}}

	select {
	case m.events <- ev:
	case <-m.done:
		return ErrManagerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-m.done:
		return ErrManagerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) handleSignal(msg *signaling.Message) {
	switch msg.Type {
	case signaling.MessageTypePeerJoined:
		m.handlePeerJoined(msg)
	case signaling.MessageTypeOffer:
		m.handleOffer(msg)
	case signaling.MessageTypeAnswer:
		m.handleAnswer(msg)
	case signaling.MessageTypeCandidate:
		m.handleCandidate(msg)
	case signaling.MessageTypePeerLeft:
		if s, ok := m.sessions[msg.From]; ok {
			slog.Info("peer left", "peer", msg.From)
			m.teardown(s)
			m.departed(s)
		}
	default:
		slog.Debug("ignoring signal", "type", msg.Type)
	}
}

func (m *Manager) handlePeerJoined(msg *signaling.Message) {
	if old, ok := m.sessions[msg.From]; ok {
		slog.Info("peer rejoined, replacing session", "peer", msg.From)
		m.teardown(old)
	}

	peer := Peer{ID: msg.From, DisplayName: msg.DisplayName, ClientType: msg.ClientType}
	s, err := m.open(peer, RoleOfferer)
	if err != nil {
		slog.Error("failed to create session", "peer", peer.ID, "error", err)
		return
	}

	offer, err := s.offer()
	if err != nil {
		slog.Error("failed to create offer", "peer", peer.ID, "error", err)
		m.teardown(s)
		return
	}
	m.notify(s)

	m.send(&signaling.Message{
		Type:        signaling.MessageTypeOffer,
		To:          peer.ID,
		SDP:         offer.SDP,
		DisplayName: m.opts.LocalName,
		ClientType:  m.opts.ClientType,
	})
}

func (m *Manager) handleOffer(msg *signaling.Message) {
	s, ok := m.sessions[msg.From]
	if ok && s.role == RoleOfferer {
		slog.Warn("ignoring offer from peer we are offering to", "peer", msg.From)
		return
	}

	if !ok {
		var err error
		peer := Peer{ID: msg.From, DisplayName: msg.DisplayName, ClientType: msg.ClientType}
		if s, err = m.open(peer, RoleAnswerer); err != nil {
			slog.Error("failed to create session", "peer", peer.ID, "error", err)
			return
		}
	} else {
		slog.Debug("renegotiating", "peer", msg.From)
	}

	before := s.state
	answer, err := s.acceptOffer(msg.SDP)
	if err != nil {
		slog.Error("failed to answer offer", "peer", msg.From, "error", err)
		if !ok {
			m.teardown(s)
		}
		return
	}
	if s.state != before {
		m.notify(s)
	}

	m.send(&signaling.Message{
		Type: signaling.MessageTypeAnswer,
		To:   msg.From,
		SDP:  answer.SDP,
	})
}

func (m *Manager) handleAnswer(msg *signaling.Message) {
	s, ok := m.sessions[msg.From]
	if !ok {
		slog.Warn("ignoring answer for unknown peer", "peer", msg.From)
		return
	}

	before := s.state
	if err := s.acceptAnswer(msg.SDP); err != nil {
		slog.Warn("ignoring answer", "peer", msg.From, "error", err)
		return
	}
	if s.state != before {
		m.notify(s)
	}
}

func (m *Manager) handleCandidate(msg *signaling.Message) {
	s, ok := m.sessions[msg.From]
	if !ok {
		slog.Debug("dropping candidate for unknown peer", "peer", msg.From)
		return
	}

	var c pion.ICECandidateInit
	if err := json.Unmarshal(msg.Candidate, &c); err != nil {
		slog.Warn("dropping malformed candidate", "peer", msg.From, "error", err)
		return
	}

	if err := s.addCandidate(c); err != nil {
		slog.Warn("failed to add candidate", "peer", msg.From, "error", err)
	}
}

func (m *Manager) handleEvent(ev event) {
	if ev.kind == eventCall {
		ev.call()
		return
	}

	// Late callbacks from a replaced or closed session.
	if cur, ok := m.sessions[ev.session.peer.ID]; !ok || cur != ev.session {
		return
	}
	s := ev.session

	switch ev.kind {
	case eventCandidate:
		data, err := json.Marshal(ev.candidate)
		if err != nil {
			slog.Warn("failed to encode candidate", "peer", s.peer.ID, "error", err)
			return
		}
		m.send(&signaling.Message{
			Type:      signaling.MessageTypeCandidate,
			To:        s.peer.ID,
			Candidate: data,
		})

	case eventState:
		slog.Debug("connection state", "peer", s.peer.ID, "state", ev.state.String())
		switch ev.state {
		case pion.PeerConnectionStateConnected:
			if s.markConnected() {
				slog.Info("peer connected", "peer", s.peer.ID)
				m.notify(s)
			}
		case pion.PeerConnectionStateFailed, pion.PeerConnectionStateClosed:
			slog.Warn("peer connection ended", "peer", s.peer.ID, "state", ev.state.String())
			m.teardown(s)
			m.departed(s)
		}
	}
}

func (m *Manager) open(peer Peer, role Role) (*Session, error) {
	s := newSession(peer, role, nil)
	t, err := m.factory.NewTransport(peer, role, &sessionSink{m: m, s: s})
	if err != nil {
		return nil, err
	}
	s.transport = t
	m.sessions[peer.ID] = s
	return s, nil
}

func (m *Manager) teardown(s *Session) {
	if cur, ok := m.sessions[s.peer.ID]; ok && cur == s {
		delete(m.sessions, s.peer.ID)
	}
	if s.state == StateClosed {
		return
	}
	s.close()
	m.notify(s)
}

func (m *Manager) closeAll() {
	for _, s := range m.sessions {
		m.teardown(s)
	}
}

func (m *Manager) departed(s *Session) {
	if m.opts.OnDeparted != nil {
		m.opts.OnDeparted(s.peer)
	}
}

func (m *Manager) notify(s *Session) {
	if m.opts.OnState != nil {
		m.opts.OnState(s.peer, s.state)
	}
}

func (m *Manager) send(msg *signaling.Message) {
	if err := m.signaler.Send(msg); err != nil {
		slog.Error("failed to send signal", "type", msg.Type, "to", msg.To, "error", err)
	}
}

// sessionSink posts transport callbacks for one session to the loop.
type sessionSink struct {
	m *Manager
	s *Session
}

func (k *sessionSink) LocalCandidate(c pion.ICECandidateInit) {
	k.post(event{kind: eventCandidate, session: k.s, candidate: c})
}

func (k *sessionSink) ConnectionState(state pion.PeerConnectionState) {
	k.post(event{kind: eventState, session: k.s, state: state})
}

func (k *sessionSink) post(ev event) {
	select {
	case k.m.events <- ev:
	case <-k.m.done:
	}
}
