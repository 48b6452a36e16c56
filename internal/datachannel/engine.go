package datachannel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/Tayyab-Ali-786/Chattify/internal/keyexchange"
	"github.com/Tayyab-Ali-786/Chattify/internal/transfer"
)

var (
	ErrClosed          = errors.New("data channel engine closed")
	ErrNestedEncrypted = errors.New("nested encrypted envelope")
	ErrNoSessionKey    = errors.New("encrypted envelope before key exchange")
	ErrUnknownKind     = errors.New("unknown envelope kind")
)

// Channel is the pion data channel surface the engine drives.
type Channel interface {
	transfer.Channel
	SendText(s string) error
}

// Listener receives decoded application events for one peer. Calls happen
// on the channel's read goroutine, one at a time.
type Listener interface {
	OnChat(peerID string, msg ChatMessage)
	OnFileStart(peerID string, meta transfer.Meta)
	OnFile(peerID string, file *transfer.File)
	OnFileAborted(peerID, name string, err error)
	OnDraw(peerID string, seg Segment)
	OnWhiteboard(peerID string, open bool)
	OnSecured(peerID string)
}

// Options configure one engine.
type Options struct {
	PeerID         string
	PeerClientType string
	LocalName      string
	ChunkSize      int
	MaxFileSize    int64
	Encrypt        bool
}

// Engine speaks the application protocol over one peer's data channel.
type Engine struct {
	opts     Options
	channel  Channel
	codec    Codec
	listener Listener
	keys     *keyexchange.KeyPair

	// sendMu serializes frames on the wire, fileMu whole files.
	sendMu sync.Mutex
	fileMu sync.Mutex

	mu        sync.Mutex
	session   *keyexchange.SessionKey
	incoming  *transfer.Incoming
	pen       pen
	boardOpen bool
	closed    bool
}

// New builds an engine. The key pair is generated up front so a peer's
// key-exchange can be honoured even if it races our own open event.
func New(ch Channel, l Listener, opts Options) (*Engine, error) {
	e := &Engine{
		opts:     opts,
		channel:  ch,
		codec:    SelectCodec(opts.PeerClientType),
		listener: l,
	}

	if opts.Encrypt {
		keys, err := keyexchange.Generate()
		if err != nil {
			return nil, err
		}
		e.keys = keys
	}
	return e, nil
}

// PeerID returns the remote participant this engine talks to.
func (e *Engine) PeerID() string {
	return e.opts.PeerID
}

// Codec returns the envelope encoding in use.
func (e *Engine) Codec() Codec {
	return e.codec
}

// Open announces our public key. Call it once the channel is open.
func (e *Engine) Open() error {
	if e.keys == nil {
		return nil
	}

	pub, err := e.keys.PublicKeyBase64()
	if err != nil {
		return err
	}
	return e.send(KeyExchange{Kind: KindKeyExchange, PublicKey: pub}, false)
}

// Secured reports whether envelopes are now encrypted.
func (e *Engine) Secured() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// WhiteboardOpen reports the peer-driven whiteboard state.
func (e *Engine) WhiteboardOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boardOpen
}

// SendChat sends a chat line.
func (e *Engine) SendChat(text string) error {
	return e.send(ChatMessage{
		Kind:   KindChat,
		Text:   text,
		From:   e.opts.LocalName,
		SentAt: time.Now().UnixMilli(),
	}, true)
}

// SendDraw sends one normalized pen sample.
func (e *Engine) SendDraw(p Point, color string, width float64, penDown bool) error {
	return e.send(Drawing{
		Kind:    KindDrawing,
		X:       clamp01(p.X),
		Y:       clamp01(p.Y),
		Color:   color,
		Width:   width,
		PenDown: penDown,
	}, true)
}

// SendWhiteboard opens or closes the peer's whiteboard.
func (e *Engine) SendWhiteboard(open bool) error {
	return e.send(WhiteboardToggle{Kind: KindWhiteboard, Open: open}, true)
}

// SendFile announces a file, streams size bytes from r as binary frames and
// finishes with an advisory file-end. Only one file is in flight at a time.
func (e *Engine) SendFile(ctx context.Context, meta transfer.Meta, r io.Reader, onProgress func(int64)) error {
	e.fileMu.Lock()
	defer e.fileMu.Unlock()

	if err := e.send(FileMeta{
		Kind:     KindFileMeta,
		Name:     meta.Name,
		Size:     meta.Size,
		MimeType: meta.MimeType,
	}, true); err != nil {
		return transfer.NewFileError("send meta", meta.Name, err)
	}

	sender := transfer.NewChunkSender(lockedChannel{e}, e.opts.ChunkSize)
	sent, err := sender.SendChunks(ctx, io.LimitReader(r, meta.Size), onProgress)
	if err != nil {
		return transfer.NewFileError("send", meta.Name, err)
	}
	if sent != meta.Size {
		return transfer.NewFileError("send", meta.Name,
			fmt.Errorf("%w: read %d of %d bytes", transfer.ErrInvalidFile, sent, meta.Size))
	}

	if err := e.send(FileEnd{Kind: KindFileEnd, Name: meta.Name}, true); err != nil {
		return transfer.NewFileError("send end", meta.Name, err)
	}

	sender.WaitForDrain(ctx)
	return nil
}

// send encodes v and writes it as a string frame, wrapping it when a session
// key exists and encryptable is set.
func (e *Engine) send(v any, encryptable bool) error {
	e.mu.Lock()
	closed, session := e.closed, e.session
	e.mu.Unlock()

	if closed {
		return ErrClosed
	}

	data, err := e.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	if encryptable && session != nil {
		sealed, err := session.Encrypt(data)
		if err != nil {
			return fmt.Errorf("encrypt envelope: %w", err)
		}
		if data, err = e.codec.Marshal(Encrypted{Encrypted: true, Payload: sealed}); err != nil {
			return fmt.Errorf("encode wrapper: %w", err)
		}
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	return e.channel.SendText(string(data))
}

// HandleMessage processes one inbound frame. String frames carry envelopes,
// binary frames carry file content.
func (e *Engine) HandleMessage(isString bool, data []byte) {
	if isString {
		e.handleEnvelope(data, false)
		return
	}
	e.handleChunk(data)
}

func (e *Engine) handleChunk(data []byte) {
	e.mu.Lock()
	in := e.incoming
	if in == nil || e.closed {
		e.mu.Unlock()
		slog.Warn("dropping binary frame without an open transfer", "peer", e.opts.PeerID, "bytes", len(data))
		return
	}

	done, err := in.Append(data)
	if err != nil || done {
		e.incoming = nil
	}
	e.mu.Unlock()

	switch {
	case err != nil:
		slog.Warn("file transfer aborted", "peer", e.opts.PeerID, "file", in.Name, "error", err)
		e.listener.OnFileAborted(e.opts.PeerID, in.Name, err)
	case done:
		slog.Debug("file received", "peer", e.opts.PeerID, "file", in.Name, "bytes", in.Size)
		e.listener.OnFile(e.opts.PeerID, in.File())
	}
}

func (e *Engine) handleEnvelope(data []byte, decrypted bool) {
	var env Envelope
	if err := sniffCodec(data).Unmarshal(data, &env); err != nil {
		slog.Warn("dropping malformed envelope", "peer", e.opts.PeerID, "error", err)
		return
	}

	if env.Encrypted {
		if decrypted {
			slog.Warn("dropping envelope", "peer", e.opts.PeerID, "error", ErrNestedEncrypted)
			return
		}
		e.handleEncrypted(env.Payload)
		return
	}

	if err := e.dispatch(&env); err != nil {
		slog.Warn("dropping envelope", "peer", e.opts.PeerID, "kind", env.Kind, "error", err)
	}
}

func (e *Engine) handleEncrypted(payload string) {
	e.mu.Lock()
	session := e.session
	e.mu.Unlock()

	if session == nil {
		slog.Warn("dropping envelope", "peer", e.opts.PeerID, "error", ErrNoSessionKey)
		return
	}

	plain, err := session.Decrypt(payload)
	if err != nil {
		slog.Warn("dropping undecryptable envelope", "peer", e.opts.PeerID, "error", err)
		return
	}
	e.handleEnvelope(plain, true)
}

func (e *Engine) dispatch(env *Envelope) error {
	peer := e.opts.PeerID

	switch env.Kind {
	case KindChat:
		e.listener.OnChat(peer, ChatMessage{Kind: KindChat, Text: env.Text, From: env.From, SentAt: env.SentAt})

	case KindFileMeta:
		e.handleFileMeta(env)

	case KindFileEnd:
		e.mu.Lock()
		pending := e.incoming != nil && e.incoming.Name == env.Name
		e.mu.Unlock()
		if pending {
			slog.Debug("file-end before all bytes arrived, waiting", "peer", peer, "file", env.Name)
		}

	case KindDrawing:
		e.mu.Lock()
		opened := !e.boardOpen
		e.boardOpen = true
		seg, ok := e.pen.add(*env)
		e.mu.Unlock()

		if opened {
			e.listener.OnWhiteboard(peer, true)
		}
		if ok {
			e.listener.OnDraw(peer, seg)
		}

	case KindWhiteboard:
		e.mu.Lock()
		e.boardOpen = env.Open
		if !env.Open {
			e.pen.reset()
		}
		e.mu.Unlock()
		e.listener.OnWhiteboard(peer, env.Open)

	case KindKeyExchange:
		return e.handleKeyExchange(env.PublicKey)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	return nil
}

func (e *Engine) handleFileMeta(env *Envelope) {
	peer := e.opts.PeerID
	meta := transfer.Meta{Name: env.Name, Size: env.Size, MimeType: env.MimeType}

	in, err := transfer.NewIncoming(meta, e.opts.MaxFileSize)

	e.mu.Lock()
	replaced := e.incoming
	e.incoming = nil
	if err == nil && !in.Complete() {
		e.incoming = in
	}
	e.mu.Unlock()

	if replaced != nil {
		replaced.Discard()
		e.listener.OnFileAborted(peer, replaced.Name, transfer.NewFileError("receive", replaced.Name, transfer.ErrTransferReplaced))
	}

	if err != nil {
		e.listener.OnFileAborted(peer, meta.Name, err)
		return
	}

	e.listener.OnFileStart(peer, meta)
	if in.Complete() {
		e.listener.OnFile(peer, in.File())
	}
}

func (e *Engine) handleKeyExchange(publicKey string) error {
	if e.keys == nil {
		slog.Debug("ignoring key exchange, encryption disabled", "peer", e.opts.PeerID)
		return nil
	}

	e.mu.Lock()
	if e.session != nil || e.closed {
		e.mu.Unlock()
		slog.Debug("ignoring repeated key exchange", "peer", e.opts.PeerID)
		return nil
	}
	e.mu.Unlock()

	session, err := e.keys.Derive(publicKey)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.session = session
	e.mu.Unlock()

	slog.Debug("data channel secured", "peer", e.opts.PeerID)
	e.listener.OnSecured(e.opts.PeerID)
	return nil
}

// Close drops any partial transfer and the session key. A transfer cut
// short is reported to the listener as aborted.
func (e *Engine) Close() {
	e.mu.Lock()
	in := e.incoming
	e.closed = true
	e.incoming = nil
	e.session = nil
	e.pen.reset()
	e.mu.Unlock()

	if in == nil || in.Complete() {
		return
	}
	slog.Debug("discarding partial transfer", "peer", e.opts.PeerID, "file", in.Name,
		"received", in.Received(), "size", in.Size)
	in.Discard()
	e.listener.OnFileAborted(e.opts.PeerID, in.Name, transfer.NewFileError("receive", in.Name, transfer.ErrTransferAborted))
}

// lockedChannel routes chunk writes through the engine's frame lock so they
// never interleave with a half-written envelope.
type lockedChannel struct {
	e *Engine
}

func (c lockedChannel) Send(data []byte) error {
	c.e.sendMu.Lock()
	defer c.e.sendMu.Unlock()
	return c.e.channel.Send(data)
}

func (c lockedChannel) BufferedAmount() uint64 { return c.e.channel.BufferedAmount() }

func (c lockedChannel) SetBufferedAmountLowThreshold(th uint64) {
	c.e.channel.SetBufferedAmountLowThreshold(th)
}

func (c lockedChannel) OnBufferedAmountLow(f func()) { c.e.channel.OnBufferedAmountLow(f) }

func (c lockedChannel) ReadyState() pion.DataChannelState { return c.e.channel.ReadyState() }
