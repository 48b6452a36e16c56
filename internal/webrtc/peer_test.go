package webrtc

import (
	"testing"

	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tayyab-Ali-786/Chattify/internal/config"
	"github.com/Tayyab-Ali-786/Chattify/internal/negotiation"
)

func TestConfigurationSTUNOnly(t *testing.T) {
	cfg := &config.Config{STUNServer: "stun:stun.l.google.com:19302", ForceRelay: true}

	c := Configuration(cfg)
	require.Len(t, c.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, c.ICEServers[0].URLs)
	// relay-only makes no sense without a TURN server
	assert.Equal(t, pion.ICETransportPolicyAll, c.ICETransportPolicy)
}

func TestConfigurationForcedRelay(t *testing.T) {
	cfg := &config.Config{
		STUNServer: "stun:stun.l.google.com:19302",
		TURNServer: "turn.example.com",
		TURNUser:   "user",
		TURNPass:   "pass",
		ForceRelay: true,
	}

	c := Configuration(cfg)
	require.Len(t, c.ICEServers, 2)
	turn := c.ICEServers[1]
	assert.Equal(t, "turn:turn.example.com:3478?transport=udp", turn.URLs[0])
	assert.Equal(t, "user", turn.Username)
	assert.Equal(t, "pass", turn.Credential)
	assert.Equal(t, pion.ICETransportPolicyRelay, c.ICETransportPolicy)
}

func TestReplaceTrack(t *testing.T) {
	p, err := NewPeer(pion.Configuration{})
	require.NoError(t, err)
	defer p.Close()

	assert.ErrorIs(t, p.ReplaceTrack(pion.RTPCodecTypeAudio, nil), ErrNoSender)

	mic, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus}, "audio", "mic")
	require.NoError(t, err)
	_, err = p.PeerConnection().AddTrack(mic)
	require.NoError(t, err)

	assert.ErrorIs(t, p.ReplaceTrack(pion.RTPCodecTypeVideo, nil), ErrNoSender)

	other, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus}, "audio", "headset")
	require.NoError(t, err)
	require.NoError(t, p.ReplaceTrack(pion.RTPCodecTypeAudio, other))

	senders := p.PeerConnection().GetSenders()
	require.Len(t, senders, 1)
	assert.Equal(t, pion.TrackLocal(other), senders[0].Track())
}

func TestOffererTransportCarriesDataChannel(t *testing.T) {
	f := NewFactory(&config.Config{DisplayName: "alice"}, nil, nil)

	tr, err := f.NewTransport(negotiation.Peer{ID: "b"}, negotiation.RoleOfferer, nopSink{})
	require.NoError(t, err)
	defer tr.Close()

	offer, err := tr.CreateOffer()
	require.NoError(t, err)
	assert.Contains(t, offer.SDP, "m=application")
}

type nopSink struct{}

func (nopSink) LocalCandidate(pion.ICECandidateInit)     {}
func (nopSink) ConnectionState(pion.PeerConnectionState) {}
