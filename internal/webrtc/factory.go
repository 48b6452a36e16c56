package webrtc

import (
	"log/slog"

	pion "github.com/pion/webrtc/v4"

	"github.com/Tayyab-Ali-786/Chattify/internal/config"
	"github.com/Tayyab-Ali-786/Chattify/internal/datachannel"
	"github.com/Tayyab-Ali-786/Chattify/internal/negotiation"
)

// ChannelHandler learns about data channels as they come and go.
type ChannelHandler interface {
	ChannelOpened(peer negotiation.Peer, e *datachannel.Engine)
	ChannelClosed(peer negotiation.Peer, e *datachannel.Engine)
}

// Factory creates pion-backed transports for the negotiation manager and
// runs a protocol engine on every data channel they bring up.
type Factory struct {
	cfg      *config.Config
	ice      pion.Configuration
	listener datachannel.Listener
	handler  ChannelHandler
}

func NewFactory(cfg *config.Config, listener datachannel.Listener, handler ChannelHandler) *Factory {
	return &Factory{
		cfg:      cfg,
		ice:      Configuration(cfg),
		listener: listener,
		handler:  handler,
	}
}

// NewTransport implements negotiation.Factory. The offerer creates the data
// channel; the answerer waits for it to arrive.
func (f *Factory) NewTransport(peer negotiation.Peer, role negotiation.Role, sink negotiation.Sink) (negotiation.Transport, error) {
	p, err := NewPeer(f.ice)
	if err != nil {
		return nil, err
	}
	pc := p.pc

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		sink.LocalCandidate(c.ToJSON())
	})
	pc.OnConnectionStateChange(sink.ConnectionState)

	if role == negotiation.RoleOfferer {
		dc, err := createDataChannel(pc, ChannelLabel)
		if err != nil {
			pc.Close()
			return nil, err
		}
		f.bind(peer, dc)
		return p, nil
	}

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != ChannelLabel {
			slog.Warn("ignoring unexpected data channel", "peer", peer.ID, "label", dc.Label())
			return
		}
		f.bind(peer, dc)
	})
	return p, nil
}

func (f *Factory) bind(peer negotiation.Peer, dc *pion.DataChannel) {
	engine, err := datachannel.New(dc, f.listener, datachannel.Options{
		PeerID:         peer.ID,
		PeerClientType: peer.ClientType,
		LocalName:      f.cfg.DisplayName,
		ChunkSize:      f.cfg.ChunkSize,
		MaxFileSize:    f.cfg.MaxFileSize,
		Encrypt:        f.cfg.Encrypt,
	})
	if err != nil {
		slog.Error("failed to start data channel engine", "peer", peer.ID, "error", err)
		dc.Close()
		return
	}

	dc.OnOpen(func() {
		slog.Debug("data channel open", "peer", peer.ID, "codec", engine.Codec().Name())
		if err := engine.Open(); err != nil {
			slog.Warn("failed to send key exchange", "peer", peer.ID, "error", err)
		}
		f.handler.ChannelOpened(peer, engine)
	})

	dc.OnMessage(func(msg pion.DataChannelMessage) {
		engine.HandleMessage(msg.IsString, msg.Data)
	})

	dc.OnClose(func() {
		slog.Debug("data channel closed", "peer", peer.ID)
		engine.Close()
		f.handler.ChannelClosed(peer, engine)
	})
}
