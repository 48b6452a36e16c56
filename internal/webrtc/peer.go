package webrtc

import (
	"errors"

	pion "github.com/pion/webrtc/v4"

	"github.com/Tayyab-Ali-786/Chattify/internal/config"
	"github.com/Tayyab-Ali-786/Chattify/internal/transfer"
	"github.com/Tayyab-Ali-786/Chattify/internal/utils"
)

// ChannelLabel names the single ordered data channel between two peers.
const ChannelLabel = "chattify"

var ErrNoSender = errors.New("no sender for track kind")

// Configuration builds the ICE setup from the participant config.
func Configuration(cfg *config.Config) pion.Configuration {
	var iceServers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || utils.ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// Peer adapts a pion peer connection to the negotiation transport.
type Peer struct {
	pc *pion.PeerConnection
}

func NewPeer(cfg pion.Configuration) (*Peer, error) {
	pc, err := pion.NewPeerConnection(cfg)
	if err != nil {
		return nil, transfer.NewError("create peer connection", err)
	}
	return &Peer{pc: pc}, nil
}

// PeerConnection exposes the underlying connection.
func (p *Peer) PeerConnection() *pion.PeerConnection {
	return p.pc
}

func (p *Peer) CreateOffer() (pion.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return offer, transfer.NewError("create offer", err)
	}
	return offer, nil
}

func (p *Peer) CreateAnswer() (pion.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return answer, transfer.NewError("create answer", err)
	}
	return answer, nil
}

func (p *Peer) SetLocalDescription(desc pion.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *Peer) SetRemoteDescription(desc pion.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *Peer) AddICECandidate(c pion.ICECandidateInit) error {
	if err := p.pc.AddICECandidate(c); err != nil {
		return transfer.NewError("add ICE candidate", err)
	}
	return nil
}

// ReplaceTrack swaps the track on the first sender carrying kind. The
// transceiver keeps its negotiated parameters, so no new offer is needed.
func (p *Peer) ReplaceTrack(kind pion.RTPCodecType, track pion.TrackLocal) error {
	for _, sender := range p.pc.GetSenders() {
		if t := sender.Track(); t != nil && t.Kind() == kind {
			return sender.ReplaceTrack(track)
		}
	}
	return transfer.WrapError("replace track", ErrNoSender, kind.String())
}

func (p *Peer) Close() error {
	return p.pc.Close()
}

func createDataChannel(pc *pion.PeerConnection, label string) (*pion.DataChannel, error) {
	ordered := true

	dc, err := pc.CreateDataChannel(label, &pion.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, transfer.NewError("create data channel", err)
	}
	return dc, nil
}
