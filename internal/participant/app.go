package participant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Tayyab-Ali-786/Chattify/internal/config"
	"github.com/Tayyab-Ali-786/Chattify/internal/datachannel"
	"github.com/Tayyab-Ali-786/Chattify/internal/files"
	"github.com/Tayyab-Ali-786/Chattify/internal/negotiation"
	"github.com/Tayyab-Ali-786/Chattify/internal/registry"
	"github.com/Tayyab-Ali-786/Chattify/internal/signaling"
	"github.com/Tayyab-Ali-786/Chattify/internal/transfer"
	"github.com/Tayyab-Ali-786/Chattify/internal/ui"
	"github.com/Tayyab-Ali-786/Chattify/internal/utils"
)

const (
	drawColor = "#a78bfa"
	drawWidth = 2.0

	// Remote strokes are reported, and pixel input read, on a canvas of this size.
	canvasWidth  = 800
	canvasHeight = 600
)

// App is one participant in a room: it owns the data channel engines and
// turns terminal commands into envelopes.
type App struct {
	cfg     *config.Config
	room    string
	relay   negotiation.Signaler
	manager *negotiation.Manager

	// progress enables the live transfer bars; off in tests.
	progress bool

	mu      sync.Mutex
	selfID  string
	names   map[string]string
	engines map[string]*datachannel.Engine
	board   bool

	sends sync.WaitGroup
}

func New(cfg *config.Config, room string, relay negotiation.Signaler) *App {
	return &App{
		cfg:     cfg,
		room:    room,
		relay:   relay,
		names:   make(map[string]string),
		engines: make(map[string]*datachannel.Engine),
	}
}

func (a *App) name(peerID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n, ok := a.names[peerID]; ok && n != "" {
		return n
	}
	return utils.TruncateString(peerID, 8)
}

func (a *App) remember(peerID, displayName string) {
	displayName = ui.CleanName(displayName)
	if displayName == "" {
		return
	}
	a.mu.Lock()
	a.names[peerID] = displayName
	a.mu.Unlock()
}

func (a *App) rememberAll(participants []registry.Participant) {
	for _, p := range participants {
		a.remember(p.ID, p.DisplayName)
	}
}

// openEngines returns the engines of every peer with an open channel,
// ordered by peer id.
func (a *App) openEngines() []*datachannel.Engine {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*datachannel.Engine, 0, len(a.engines))
	for _, e := range a.engines {
		out = append(out, e)
	}
	slices.SortFunc(out, func(x, y *datachannel.Engine) int { return strings.Compare(x.PeerID(), y.PeerID()) })
	return out
}

// HandleLine runs one line of input and reports whether the user asked to
// leave.
func (a *App) HandleLine(ctx context.Context, line string) bool {
	cmd, err := parseCommand(line)
	if err != nil {
		ui.PrintWarning(err.Error())
		return false
	}

	switch cmd.kind {
	case cmdChat:
		if err := a.sendChat(cmd.text); err != nil {
			ui.PrintErrorf("chat failed: %v", err)
		}

	case cmdSend:
		infos, err := files.ValidateFiles(cmd.paths)
		if err != nil {
			ui.PrintError(err.Error())
			return false
		}
		a.sends.Add(1)
		go func() {
			defer a.sends.Done()
			a.sendFiles(ctx, infos)
		}()

	case cmdBoard:
		a.setBoard(cmd.open)

	case cmdDraw:
		a.draw(cmd.point, cmd.penDown)

	case cmdPeers:
		ui.RenderRoster(a.roster(ctx))

	case cmdHelp:
		fmt.Println(helpText)

	case cmdQuit:
		return true
	}
	return false
}

// sendChat sends over every open data channel, or through the relay when
// none is open yet.
func (a *App) sendChat(text string) error {
	engines := a.openEngines()
	if len(engines) == 0 {
		return a.relay.Send(&signaling.Message{
			Type: signaling.MessageTypeChat,
			To:   a.room,
			Text: text,
		})
	}

	var errs []error
	for _, e := range engines {
		if err := e.SendChat(text); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.name(e.PeerID()), err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) setBoard(open bool) {
	a.mu.Lock()
	a.board = open
	a.mu.Unlock()

	for _, e := range a.openEngines() {
		if err := e.SendWhiteboard(open); err != nil {
			slog.Warn("whiteboard toggle failed", "peer", e.PeerID(), "error", err)
		}
	}
}

func (a *App) draw(p datachannel.Point, penDown bool) {
	if p.X > 1 || p.Y > 1 {
		p = datachannel.Normalize(p.X, p.Y, canvasWidth, canvasHeight)
	}

	a.mu.Lock()
	opened := !a.board
	a.board = true
	a.mu.Unlock()

	for _, e := range a.openEngines() {
		if opened {
			if err := e.SendWhiteboard(true); err != nil {
				slog.Warn("whiteboard toggle failed", "peer", e.PeerID(), "error", err)
				continue
			}
		}
		if err := e.SendDraw(p, drawColor, drawWidth, penDown); err != nil {
			slog.Warn("draw failed", "peer", e.PeerID(), "error", err)
		}
	}
}

// sendFiles streams every file to every open channel, one goroutine per peer.
func (a *App) sendFiles(ctx context.Context, infos []files.FileInfo) {
	engines := a.openEngines()
	if len(engines) == 0 {
		ui.PrintWarning("no connected peers to send to")
		return
	}

	model := ui.NewProgressModel()
	for _, e := range engines {
		for _, f := range infos {
			model.Track(progressKey(e.PeerID(), f.Name), a.name(e.PeerID()), f.Name, f.Size)
		}
	}

	var bars *ui.ProgressUI
	if a.progress {
		bars = ui.NewProgressUI(model)
		bars.Start()
	}

	start := time.Now()
	var wg sync.WaitGroup
	for _, e := range engines {
		wg.Add(1)
		go func(e *datachannel.Engine) {
			defer wg.Done()
			for _, f := range infos {
				key := progressKey(e.PeerID(), f.Name)
				if err := a.sendFile(ctx, e, f, func(n int64) { model.SetProgress(key, n) }); err != nil {
					slog.Warn("file send failed", "peer", e.PeerID(), "file", f.Name, "error", err)
					model.MarkError(key, err.Error())
					continue
				}
				model.MarkComplete(key)
			}
		}(e)
	}
	wg.Wait()

	if bars != nil {
		bars.Wait()
	}

	total := files.GetTotalSize(infos)
	elapsed := time.Since(start)
	speed := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		speed = float64(total*int64(len(engines))) / secs
	}

	names := make([]string, 0, len(engines))
	for _, e := range engines {
		names = append(names, a.name(e.PeerID()))
	}
	ui.RenderTransferSummary(ui.TransferSummary{
		Status:   summaryStatus(model),
		File:     fileList(infos),
		Peer:     strings.Join(names, ", "),
		Size:     utils.FormatSize(total),
		Duration: utils.FormatTimeDuration(elapsed),
		Speed:    utils.FormatSpeed(speed),
	})
}

func (a *App) sendFile(ctx context.Context, e *datachannel.Engine, f files.FileInfo, onProgress func(int64)) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return transfer.NewFileError("open", f.Name, err)
	}
	defer fh.Close()

	return e.SendFile(ctx, f.Meta(), fh, onProgress)
}

func progressKey(peerID, name string) string {
	return peerID + "/" + name
}

func summaryStatus(m *ui.ProgressModel) string {
	if strings.Contains(m.View(), ui.IconError) {
		return "Completed with errors"
	}
	return "Sent"
}

func fileList(infos []files.FileInfo) string {
	names := make([]string, len(infos))
	for i, f := range infos {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

// roster merges the negotiation sessions with the open channels.
func (a *App) roster(ctx context.Context) []ui.RosterRow {
	var statuses []negotiation.PeerStatus
	if a.manager != nil {
		var err error
		if statuses, err = a.manager.Peers(ctx); err != nil {
			slog.Debug("listing peers", "error", err)
		}
	}

	a.mu.Lock()
	engines := make(map[string]*datachannel.Engine, len(a.engines))
	for id, e := range a.engines {
		engines[id] = e
	}
	a.mu.Unlock()

	rows := make([]ui.RosterRow, 0, len(statuses))
	seen := make(map[string]bool)
	for _, s := range statuses {
		e := engines[s.Peer.ID]
		rows = append(rows, ui.RosterRow{
			Name:       a.name(s.Peer.ID),
			ID:         s.Peer.ID,
			ClientType: s.Peer.ClientType,
			Role:       s.Role.String(),
			State:      s.State.String(),
			Channel:    e != nil,
			Secured:    e != nil && e.Secured(),
		})
		seen[s.Peer.ID] = true
	}

	for id, e := range engines {
		if seen[id] {
			continue
		}
		rows = append(rows, ui.RosterRow{
			Name:    a.name(id),
			ID:      id,
			Channel: true,
			Secured: e.Secured(),
		})
	}
	return rows
}

// onState follows negotiation progress; a closed session takes its engine
// with it. Departures are announced by onDeparted.
func (a *App) onState(peer negotiation.Peer, state negotiation.State) {
	a.remember(peer.ID, peer.DisplayName)

	switch state {
	case negotiation.StateConnected:
		slog.Info("peer connected", "peer", peer.ID)

	case negotiation.StateClosed:
		a.mu.Lock()
		e := a.engines[peer.ID]
		delete(a.engines, peer.ID)
		a.mu.Unlock()

		if e != nil {
			e.Close()
		}
	}
}

// onDeparted reports a peer that left the room or dropped its connection.
func (a *App) onDeparted(peer negotiation.Peer) {
	ui.PrintInfof("%s %s left", ui.IconPeer, a.name(peer.ID))
}

func (a *App) ChannelOpened(peer negotiation.Peer, e *datachannel.Engine) {
	a.remember(peer.ID, peer.DisplayName)

	a.mu.Lock()
	old := a.engines[peer.ID]
	a.engines[peer.ID] = e
	board := a.board
	a.mu.Unlock()

	if old != nil && old != e {
		old.Close()
	}

	ui.PrintSuccessf("Connected to %s", ui.NameStyle.Render(a.name(peer.ID)))
	if board {
		if err := e.SendWhiteboard(true); err != nil {
			slog.Warn("whiteboard toggle failed", "peer", peer.ID, "error", err)
		}
	}
}

func (a *App) ChannelClosed(peer negotiation.Peer, e *datachannel.Engine) {
	a.mu.Lock()
	if a.engines[peer.ID] == e {
		delete(a.engines, peer.ID)
	}
	a.mu.Unlock()
}

// OnChat labels the line with the name the relay announced for the peer;
// the envelope's own "from" is only shown when it claims something else.
func (a *App) OnChat(peerID string, msg datachannel.ChatMessage) {
	from := a.name(peerID)
	var via string
	if claimed := ui.CleanName(msg.From); claimed != "" && claimed != from {
		via = "as " + claimed
	}
	at := time.Now()
	if msg.SentAt > 0 {
		at = time.UnixMilli(msg.SentAt)
	}
	ui.PrintChat(at, from, msg.Text, via)
}

func (a *App) OnFileStart(peerID string, meta transfer.Meta) {
	ui.PrintInfof("%s %s is sending %s", ui.IconReceive, a.name(peerID), transfer.Describe(ui.CleanName(meta.Name), meta.Size))
}

func (a *App) OnFile(peerID string, f *transfer.File) {
	name := ui.CleanName(f.Name)
	path, err := transfer.Save(a.cfg.OutputDir, f)
	if err != nil {
		ui.PrintErrorf("could not save %s from %s: %s", name, a.name(peerID), ui.CleanText(err.Error(), 0))
		return
	}
	ui.PrintSuccessf("Received %s from %s, saved to %s",
		transfer.Describe(name, int64(len(f.Data))), a.name(peerID), ui.CleanText(path, 0))
}

func (a *App) OnFileAborted(peerID, name string, err error) {
	ui.PrintWarningf("Transfer of %s from %s aborted: %s", ui.CleanName(name), a.name(peerID), ui.CleanText(err.Error(), 0))
}

func (a *App) OnDraw(peerID string, seg datachannel.Segment) {
	x0, y0, x1, y1 := seg.Scale(canvasWidth, canvasHeight)
	fmt.Printf("%s %s %s\n", ui.IconBoard, ui.NameStyle.Render(a.name(peerID)),
		ui.MutedStyle.Render(fmt.Sprintf("(%.0f,%.0f) → (%.0f,%.0f) %s", x0, y0, x1, y1, ui.CleanName(seg.Color))))
}

func (a *App) OnWhiteboard(peerID string, open bool) {
	a.mu.Lock()
	a.board = open
	a.mu.Unlock()

	verb := "closed"
	if open {
		verb = "opened"
	}
	ui.PrintInfof("%s %s %s the whiteboard", ui.IconBoard, a.name(peerID), verb)
}

func (a *App) OnSecured(peerID string) {
	ui.PrintInfof("%s Messages with %s are now end-to-end encrypted", ui.IconLock, a.name(peerID))
}
