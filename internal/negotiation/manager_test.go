package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tayyab-Ali-786/Chattify/internal/signaling"
)

type fakeTransport struct {
	mu      sync.Mutex
	label   string
	sink    Sink
	local   []pion.SessionDescription
	remote  []pion.SessionDescription
	applied []string
	tracks  []pion.RTPCodecType
	closed  bool

	// onStable runs once both descriptions are set.
	onStable func(t *fakeTransport)
}

func (f *fakeTransport) CreateOffer() (pion.SessionDescription, error) {
	return pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: "offer:" + f.label}, nil
}

func (f *fakeTransport) CreateAnswer() (pion.SessionDescription, error) {
	return pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: "answer:" + f.label}, nil
}

func (f *fakeTransport) SetLocalDescription(d pion.SessionDescription) error {
	f.mu.Lock()
	f.local = append(f.local, d)
	f.mu.Unlock()
	f.checkStable()
	return nil
}

func (f *fakeTransport) SetRemoteDescription(d pion.SessionDescription) error {
	f.mu.Lock()
	f.remote = append(f.remote, d)
	f.mu.Unlock()
	f.checkStable()
	return nil
}

func (f *fakeTransport) checkStable() {
	f.mu.Lock()
	ready := len(f.local) > 0 && len(f.remote) > 0 && f.onStable != nil
	hook := f.onStable
	if ready {
		f.onStable = nil
	}
	f.mu.Unlock()
	if ready {
		go hook(f)
	}
}

func (f *fakeTransport) AddICECandidate(c pion.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, c.Candidate)
	return nil
}

func (f *fakeTransport) ReplaceTrack(kind pion.RTPCodecType, _ pion.TrackLocal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, kind)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) snapshot() (applied []string, remote int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...), len(f.remote), f.closed
}

type fakeFactory struct {
	mu         sync.Mutex
	local      string
	transports []*fakeTransport
	onStable   func(t *fakeTransport)
	fail       error
}

func (f *fakeFactory) NewTransport(peer Peer, role Role, sink Sink) (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	t := &fakeTransport{label: f.local + "->" + peer.ID, sink: sink, onStable: f.onStable}
	f.transports = append(f.transports, t)
	return t, nil
}

func (f *fakeFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transports[len(f.transports)-1]
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []*signaling.Message
	fwd  func(*signaling.Message)
}

func (s *fakeSignaler) Send(msg *signaling.Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	fwd := s.fwd
	s.mu.Unlock()
	if fwd != nil {
		fwd(msg)
	}
	return nil
}

func (s *fakeSignaler) of(kind string) []*signaling.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*signaling.Message
	for _, m := range s.sent {
		if m.Type == kind {
			out = append(out, m)
		}
	}
	return out
}

type stateLog struct {
	mu     sync.Mutex
	states map[string][]State
}

func (l *stateLog) record(p Peer, s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.states == nil {
		l.states = make(map[string][]State)
	}
	l.states[p.ID] = append(l.states[p.ID], s)
}

func (l *stateLog) last(id string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.states[id]
	if len(s) == 0 {
		return StateIdle
	}
	return s[len(s)-1]
}

func newTestManager(name string) (*Manager, *fakeFactory, *fakeSignaler, *stateLog) {
	factory := &fakeFactory{local: name}
	sig := &fakeSignaler{}
	log := &stateLog{}
	m := NewManager(sig, factory, Options{LocalName: name, OnState: log.record})
	return m, factory, sig, log
}

func candidate(t *testing.T, from, c string) *signaling.Message {
	t.Helper()
	data, err := json.Marshal(pion.ICECandidateInit{Candidate: c})
	require.NoError(t, err)
	return &signaling.Message{Type: signaling.MessageTypeCandidate, From: from, Candidate: data}
}

func TestPeerJoinedStartsOffer(t *testing.T) {
	m, factory, sig, log := newTestManager("alice")

	m.handleSignal(&signaling.Message{
		Type: signaling.MessageTypePeerJoined, From: "b", DisplayName: "bob", ClientType: signaling.ClientTypeWeb,
	})

	offers := sig.of(signaling.MessageTypeOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "b", offers[0].To)
	assert.Equal(t, "offer:alice->b", offers[0].SDP)
	assert.Equal(t, "alice", offers[0].DisplayName)
	assert.Equal(t, signaling.ClientTypeCLI, offers[0].ClientType)

	s := m.sessions["b"]
	require.NotNil(t, s)
	assert.Equal(t, RoleOfferer, s.Role())
	assert.Equal(t, StateHaveLocal, s.State())
	assert.Equal(t, "bob", s.Peer().DisplayName)
	assert.Equal(t, StateHaveLocal, log.last("b"))
	assert.Len(t, factory.transports, 1)
}

func TestOfferCreatesAnswerer(t *testing.T) {
	m, factory, sig, _ := newTestManager("bob")

	m.handleSignal(&signaling.Message{
		Type: signaling.MessageTypeOffer, From: "a", SDP: "offer-from-a", ClientType: signaling.ClientTypeCLI,
	})

	answers := sig.of(signaling.MessageTypeAnswer)
	require.Len(t, answers, 1)
	assert.Equal(t, "a", answers[0].To)
	assert.Equal(t, "answer:bob->a", answers[0].SDP)

	s := m.sessions["a"]
	require.NotNil(t, s)
	assert.Equal(t, RoleAnswerer, s.Role())
	assert.Equal(t, StateStable, s.State())
	assert.Equal(t, signaling.ClientTypeCLI, s.Peer().ClientType)

	tr := factory.last()
	require.Len(t, tr.remote, 1)
	assert.Equal(t, "offer-from-a", tr.remote[0].SDP)
	assert.Equal(t, pion.SDPTypeOffer, tr.remote[0].Type)
}

func TestCandidatesBufferedUntilAnswer(t *testing.T) {
	m, factory, _, _ := newTestManager("alice")
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})

	for _, c := range []string{"c1", "c2", "c3"} {
		m.handleSignal(candidate(t, "b", c))
	}
	tr := factory.last()
	applied, _, _ := tr.snapshot()
	assert.Empty(t, applied)
	assert.Equal(t, 3, m.sessions["b"].Pending())

	m.handleSignal(&signaling.Message{Type: signaling.MessageTypeAnswer, From: "b", SDP: "answer-from-b"})
	applied, _, _ = tr.snapshot()
	assert.Equal(t, []string{"c1", "c2", "c3"}, applied)
	assert.Zero(t, m.sessions["b"].Pending())
	assert.Equal(t, StateStable, m.sessions["b"].State())

	m.handleSignal(candidate(t, "b", "c4"))
	applied, _, _ = tr.snapshot()
	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, applied)
}

func TestCandidateForUnknownPeerDropped(t *testing.T) {
	m, factory, sig, _ := newTestManager("bob")

	m.handleSignal(candidate(t, "ghost", "c1"))

	assert.Empty(t, m.sessions)
	assert.Empty(t, factory.transports)
	assert.Empty(t, sig.sent)
}

func TestMalformedCandidateDropped(t *testing.T) {
	m, factory, _, _ := newTestManager("alice")
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})

	m.handleSignal(&signaling.Message{Type: signaling.MessageTypeCandidate, From: "b", Candidate: json.RawMessage(`"nope`)})

	assert.Zero(t, m.sessions["b"].Pending())
	applied, _, _ := factory.last().snapshot()
	assert.Empty(t, applied)
}

func TestUnexpectedAnswersIgnored(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		m, factory, _, _ := newTestManager("alice")
		m.handleSignal(&signaling.Message{Type: signaling.MessageTypeAnswer, From: "b", SDP: "x"})
		assert.Empty(t, factory.transports)
	})

	t.Run("answerer session", func(t *testing.T) {
		m, factory, _, _ := newTestManager("bob")
		m.handleSignal(&signaling.Message{Type: signaling.MessageTypeOffer, From: "a", SDP: "offer"})
		m.handleSignal(&signaling.Message{Type: signaling.MessageTypeAnswer, From: "a", SDP: "stray"})

		_, remote, _ := factory.last().snapshot()
		assert.Equal(t, 1, remote)
		assert.Equal(t, StateStable, m.sessions["a"].State())
	})

	t.Run("remote already set", func(t *testing.T) {
		m, factory, _, _ := newTestManager("alice")
		m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})
		m.handleSignal(&signaling.Message{Type: signaling.MessageTypeAnswer, From: "b", SDP: "first"})
		m.handleSignal(&signaling.Message{Type: signaling.MessageTypeAnswer, From: "b", SDP: "second"})

		tr := factory.last()
		_, remote, _ := tr.snapshot()
		assert.Equal(t, 1, remote)
		assert.Equal(t, "first", tr.remote[0].SDP)
	})
}

func TestGlareOfferIgnored(t *testing.T) {
	m, factory, sig, _ := newTestManager("alice")
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})

	m.handleSignal(&signaling.Message{Type: signaling.MessageTypeOffer, From: "b", SDP: "competing"})

	assert.Empty(t, sig.of(signaling.MessageTypeAnswer))
	assert.Equal(t, RoleOfferer, m.sessions["b"].Role())
	_, remote, _ := factory.last().snapshot()
	assert.Zero(t, remote)
}

func TestRenegotiationReusesSession(t *testing.T) {
	m, factory, sig, _ := newTestManager("bob")
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypeOffer, From: "a", SDP: "v1"})
	s := m.sessions["a"]
	s.markConnected()

	m.handleSignal(&signaling.Message{Type: signaling.MessageTypeOffer, From: "a", SDP: "v2"})

	assert.Len(t, factory.transports, 1)
	assert.Same(t, s, m.sessions["a"])
	assert.Len(t, sig.of(signaling.MessageTypeAnswer), 2)
	assert.Equal(t, StateConnected, s.State())
}

func TestPeerJoinedReplacesExistingSession(t *testing.T) {
	m, factory, sig, log := newTestManager("alice")
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})
	old := factory.last()

	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})

	require.Len(t, factory.transports, 2)
	_, _, closed := old.snapshot()
	assert.True(t, closed)
	assert.Len(t, sig.of(signaling.MessageTypeOffer), 2)
	assert.Contains(t, log.states["b"], StateClosed)

	// late callbacks from the replaced transport go nowhere
	old.sink.LocalCandidate(pion.ICECandidateInit{Candidate: "stale"})
	m.handleEvent(<-m.events)
	assert.Empty(t, sig.of(signaling.MessageTypeCandidate))
}

func TestLocalCandidateForwarded(t *testing.T) {
	m, factory, sig, _ := newTestManager("alice")
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})

	factory.last().sink.LocalCandidate(pion.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host"})
	m.handleEvent(<-m.events)

	sent := sig.of(signaling.MessageTypeCandidate)
	require.Len(t, sent, 1)
	assert.Equal(t, "b", sent[0].To)

	var c pion.ICECandidateInit
	require.NoError(t, json.Unmarshal(sent[0].Candidate, &c))
	assert.Equal(t, "candidate:1 1 udp 1 10.0.0.1 5000 typ host", c.Candidate)
}

func TestTransportStateDrivesSession(t *testing.T) {
	m, factory, _, log := newTestManager("alice")
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypeAnswer, From: "b", SDP: "answer"})
	tr := factory.last()

	tr.sink.ConnectionState(pion.PeerConnectionStateConnected)
	m.handleEvent(<-m.events)
	assert.Equal(t, StateConnected, m.sessions["b"].State())
	assert.Equal(t, StateConnected, log.last("b"))

	tr.sink.ConnectionState(pion.PeerConnectionStateFailed)
	m.handleEvent(<-m.events)
	assert.NotContains(t, m.sessions, "b")
	assert.Equal(t, StateClosed, log.last("b"))
	_, _, closed := tr.snapshot()
	assert.True(t, closed)
}

func TestPeerLeftTearsDownSession(t *testing.T) {
	m, factory, _, log := newTestManager("alice")
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})

	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerLeft, From: "b"})
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerLeft, From: "b"})

	assert.Empty(t, m.sessions)
	_, _, closed := factory.last().snapshot()
	assert.True(t, closed)
	assert.Equal(t, []State{StateHaveLocal, StateClosed}, log.states["b"])
}

func TestDepartureOnlyForPeerLeftOrFailure(t *testing.T) {
	m, factory, _, _ := newTestManager("alice")
	var gone []string
	m.opts.OnDeparted = func(p Peer) { gone = append(gone, p.ID) }

	// replacement on rejoin is not a departure
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})
	assert.Empty(t, gone)

	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerLeft, From: "b"})
	assert.Equal(t, []string{"b"}, gone)

	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "c"})
	factory.last().sink.ConnectionState(pion.PeerConnectionStateFailed)
	m.handleEvent(<-m.events)
	assert.Equal(t, []string{"b", "c"}, gone)

	// our own shutdown is not a departure
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "d"})
	m.closeAll()
	assert.Equal(t, []string{"b", "c"}, gone)
	assert.Empty(t, m.sessions)
}

func TestFactoryFailureCreatesNoSession(t *testing.T) {
	m, factory, sig, _ := newTestManager("alice")
	factory.fail = errors.New("no ice")

	m.handleSignal(&signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b"})
	m.handleSignal(&signaling.Message{Type: signaling.MessageTypeOffer, From: "c", SDP: "x"})

	assert.Empty(t, m.sessions)
	assert.Empty(t, sig.sent)
}

func TestRunServesCallsAndClosesSessions(t *testing.T) {
	m, factory, _, _ := newTestManager("alice")
	signals := make(chan *signaling.Message, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, signals) }()

	signals <- &signaling.Message{Type: signaling.MessageTypePeerJoined, From: "b", DisplayName: "bob"}
	require.Eventually(t, func() bool {
		peers, err := m.Peers(ctx)
		return err == nil && len(peers) == 1
	}, time.Second, 5*time.Millisecond)

	peers, err := m.Peers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", peers[0].Peer.DisplayName)
	assert.Equal(t, RoleOfferer, peers[0].Role)

	require.NoError(t, m.ReplaceTrack(ctx, "b", pion.RTPCodecTypeVideo, nil))
	assert.ErrorIs(t, m.ReplaceTrack(ctx, "nobody", pion.RTPCodecTypeVideo, nil), ErrUnknownPeer)
	assert.Equal(t, []pion.RTPCodecType{pion.RTPCodecTypeVideo}, factory.last().tracks)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	_, _, closed := factory.last().snapshot()
	assert.True(t, closed)

	_, err = m.Peers(context.Background())
	assert.ErrorIs(t, err, ErrManagerStopped)
}

// Two participants, A and B, join "standup". A learns about B from the
// relay, offers, B answers, candidates trickle and both sides connect.
func TestStandupScenario(t *testing.T) {
	a, aFactory, aSig, aLog := newTestManager("alice")
	b, bFactory, bSig, bLog := newTestManager("bob")

	toA := make(chan *signaling.Message, 32)
	toB := make(chan *signaling.Message, 32)

	relay := func(from string, out chan<- *signaling.Message) func(*signaling.Message) {
		return func(msg *signaling.Message) {
			fwd := *msg
			fwd.From = from
			out <- &fwd
		}
	}
	aSig.fwd = relay("A", toB)
	bSig.fwd = relay("B", toA)

	connect := func(t *fakeTransport) {
		t.sink.LocalCandidate(pion.ICECandidateInit{Candidate: "host:" + t.label})
		t.sink.ConnectionState(pion.PeerConnectionStateConnected)
	}
	aFactory.onStable = connect
	bFactory.onStable = connect

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx, toA)
	go b.Run(ctx, toB)

	toA <- &signaling.Message{Type: signaling.MessageTypePeerJoined, From: "B", DisplayName: "bob", ClientType: signaling.ClientTypeCLI}

	require.Eventually(t, func() bool {
		return aLog.last("B") == StateConnected && bLog.last("A") == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		aApplied, _, _ := aFactory.last().snapshot()
		bApplied, _, _ := bFactory.last().snapshot()
		return len(aApplied) == 1 && len(bApplied) == 1
	}, 2*time.Second, 5*time.Millisecond)

	aApplied, _, _ := aFactory.last().snapshot()
	assert.Equal(t, []string{"host:bob->A"}, aApplied)

	// B goes away
	toA <- &signaling.Message{Type: signaling.MessageTypePeerLeft, From: "B"}
	require.Eventually(t, func() bool {
		return aLog.last("B") == StateClosed
	}, time.Second, 5*time.Millisecond)
}
