package negotiation

import (
	"errors"
	"fmt"
	"log/slog"

	pion "github.com/pion/webrtc/v4"
)

var (
	ErrSessionClosed    = errors.New("session closed")
	ErrUnexpectedAnswer = errors.New("unexpected answer")
	ErrUnknownPeer      = errors.New("unknown peer")
)

// Role is the side a session plays in the offer/answer exchange.
type Role int

const (
	RoleOfferer Role = iota
	RoleAnswerer
)

func (r Role) String() string {
	if r == RoleOfferer {
		return "offerer"
	}
	return "answerer"
}

// State tracks how far a session has come.
type State int

const (
	StateIdle State = iota
	StateHaveLocal
	StateHaveRemote
	StateStable
	StateConnected
	StateClosed
)

var stateNames = [...]string{"idle", "have-local", "have-remote", "stable", "connected", "closed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Peer identifies the remote participant of a session.
type Peer struct {
	ID          string
	DisplayName string
	ClientType  string
}

// Transport is the peer connection a session drives.
type Transport interface {
	CreateOffer() (pion.SessionDescription, error)
	CreateAnswer() (pion.SessionDescription, error)
	SetLocalDescription(desc pion.SessionDescription) error
	SetRemoteDescription(desc pion.SessionDescription) error
	AddICECandidate(c pion.ICECandidateInit) error
	ReplaceTrack(kind pion.RTPCodecType, track pion.TrackLocal) error
	Close() error
}

// Session is the negotiation with one remote peer. It is owned by the
// manager's loop and is not safe for concurrent use.
type Session struct {
	peer      Peer
	role      Role
	state     State
	transport Transport

	hasLocal  bool
	hasRemote bool
	pending   []pion.ICECandidateInit
}

func newSession(peer Peer, role Role, t Transport) *Session {
	return &Session{peer: peer, role: role, transport: t}
}

func (s *Session) Peer() Peer   { return s.peer }
func (s *Session) Role() Role   { return s.role }
func (s *Session) State() State { return s.state }

// Pending returns how many remote candidates wait for the remote description.
func (s *Session) Pending() int { return len(s.pending) }

// offer creates the local offer and sets it as the local description.
func (s *Session) offer() (pion.SessionDescription, error) {
	if s.state == StateClosed {
		return pion.SessionDescription{}, ErrSessionClosed
	}

	offer, err := s.transport.CreateOffer()
	if err != nil {
		return offer, fmt.Errorf("create offer: %w", err)
	}
	if err := s.transport.SetLocalDescription(offer); err != nil {
		return offer, fmt.Errorf("set local description: %w", err)
	}

	s.hasLocal = true
	s.state = StateHaveLocal
	return offer, nil
}

// acceptOffer applies a remote offer and produces the answer. On a session
// that is already up this is a renegotiation and the state is kept.
func (s *Session) acceptOffer(sdp string) (pion.SessionDescription, error) {
	if s.state == StateClosed {
		return pion.SessionDescription{}, ErrSessionClosed
	}

	err := s.transport.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp})
	if err != nil {
		return pion.SessionDescription{}, fmt.Errorf("set remote description: %w", err)
	}
	s.hasRemote = true
	if s.state != StateConnected {
		s.state = StateHaveRemote
	}
	s.drain()

	answer, err := s.transport.CreateAnswer()
	if err != nil {
		return answer, fmt.Errorf("create answer: %w", err)
	}
	if err := s.transport.SetLocalDescription(answer); err != nil {
		return answer, fmt.Errorf("set local description: %w", err)
	}

	s.hasLocal = true
	if s.state != StateConnected {
		s.state = StateStable
	}
	return answer, nil
}

// acceptAnswer applies the remote answer to our offer.
func (s *Session) acceptAnswer(sdp string) error {
	switch {
	case s.state == StateClosed:
		return ErrSessionClosed
	case s.role != RoleOfferer:
		return fmt.Errorf("%w: session is the answerer", ErrUnexpectedAnswer)
	case s.hasRemote:
		return fmt.Errorf("%w: remote description already set", ErrUnexpectedAnswer)
	case !s.hasLocal:
		return fmt.Errorf("%w: no offer sent", ErrUnexpectedAnswer)
	}

	err := s.transport.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sdp})
	if err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	s.hasRemote = true
	if s.state != StateConnected {
		s.state = StateStable
	}
	s.drain()
	return nil
}

// addCandidate applies c now if the remote description is set, and queues it
// otherwise.
func (s *Session) addCandidate(c pion.ICECandidateInit) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if !s.hasRemote {
		s.pending = append(s.pending, c)
		return nil
	}
	return s.transport.AddICECandidate(c)
}

// drain applies queued candidates in arrival order. The queue is detached
// first so a candidate is never applied twice.
func (s *Session) drain() {
	queued := s.pending
	s.pending = nil

	for _, c := range queued {
		if err := s.transport.AddICECandidate(c); err != nil {
			slog.Warn("failed to apply buffered candidate", "peer", s.peer.ID, "error", err)
		}
	}
}

func (s *Session) markConnected() bool {
	if s.state == StateClosed || s.state == StateConnected {
		return false
	}
	s.state = StateConnected
	return true
}

// ReplaceTrack swaps the outgoing track of the given kind without another
// offer/answer round.
func (s *Session) ReplaceTrack(kind pion.RTPCodecType, track pion.TrackLocal) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	return s.transport.ReplaceTrack(kind, track)
}

func (s *Session) close() {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.pending = nil
	if err := s.transport.Close(); err != nil {
		slog.Debug("closing transport", "peer", s.peer.ID, "error", err)
	}
}
