package participant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Tayyab-Ali-786/Chattify/internal/config"
	"github.com/Tayyab-Ali-786/Chattify/internal/datachannel"
	"github.com/Tayyab-Ali-786/Chattify/internal/negotiation"
	"github.com/Tayyab-Ali-786/Chattify/internal/signaling"
	"github.com/Tayyab-Ali-786/Chattify/internal/transfer"
	"github.com/Tayyab-Ali-786/Chattify/internal/ui"
	"github.com/Tayyab-Ali-786/Chattify/internal/webrtc"
)

const relayTimeout = 15 * time.Second

var (
	ErrRelayClosed = errors.New("relay connection closed")
	ErrTimeout     = errors.New("timed out waiting for the relay")
	ErrRelay       = errors.New("relay error")
)

// Run joins room and runs the participant until the user quits, the relay
// goes away or ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, room string, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := signaling.NewClient(cfg.ServerURL)
	stop := ui.RunConnectionSpinner("Connecting to relay...")
	err := client.Connect(ctx)
	stop()
	if err != nil {
		return transfer.NewError("connect to relay", err)
	}
	defer client.Close()

	handler := signaling.NewHandler(client.Incoming())
	go handler.Start(ctx)

	app := New(cfg, room, client)
	app.progress = true

	sp := ui.NewWaitingSpinner("Waiting for the relay...")
	sp.Start()
	defer sp.Stop()

	selfID, err := await[string](ctx, handler.Welcome, handler.Error)
	if err != nil {
		sp.Error("The relay did not welcome us")
		return transfer.NewError("wait for welcome", err)
	}
	app.selfID = selfID
	slog.Debug("connected to relay", "participant", selfID)

	sp.UpdateMessage(fmt.Sprintf("Joining %s...", room))
	if err := client.Join(room, cfg.DisplayName); err != nil {
		return transfer.NewError("join room", err)
	}
	state, err := await[*signaling.Message](ctx, handler.RoomState, handler.Error)
	if err != nil {
		sp.Error("Could not join " + room)
		return transfer.NewError("join room", err)
	}
	sp.Stop()
	app.rememberAll(state.Participants)

	fmt.Println(ui.Banner(room, cfg.DisplayName, len(state.Participants)+1))
	for _, p := range state.Participants {
		ui.PrintInfof("%s %s is here", ui.IconPeer, app.name(p.ID))
	}
	fmt.Println(ui.MutedStyle.Render("Type /help for commands"))

	factory := webrtc.NewFactory(cfg, app, app)
	app.manager = negotiation.NewManager(client, factory, negotiation.Options{
		LocalName:  cfg.DisplayName,
		ClientType: signaling.ClientTypeCLI,
		OnState:    app.onState,
		OnDeparted: app.onDeparted,
	})

	managerDone := make(chan error, 1)
	go func() { managerDone <- app.manager.Run(ctx, handler.Signal) }()
	go app.relayEvents(ctx, handler.Chat, handler.Error)

	lines := readLines(in)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case <-client.Done():
			runErr = ErrRelayClosed
			break loop

		case line, ok := <-lines:
			if !ok || app.HandleLine(ctx, line) {
				break loop
			}
		}
	}

	if runErr == nil {
		if err := client.Send(&signaling.Message{Type: signaling.MessageTypeLeave}); err != nil {
			slog.Debug("sending leave", "error", err)
		}
	}

	cancel()
	<-managerDone
	app.sends.Wait()
	app.closeEngines()

	return runErr
}

// await waits for the first value on ch, failing on a relay error.
func await[T any](ctx context.Context, ch <-chan T, errs <-chan string) (T, error) {
	var zero T
	timer := time.NewTimer(relayTimeout)
	defer timer.Stop()

	select {
	case v, ok := <-ch:
		if !ok {
			return zero, ErrRelayClosed
		}
		return v, nil
	case msg, ok := <-errs:
		if !ok {
			return zero, ErrRelayClosed
		}
		return zero, fmt.Errorf("%w: %s", ErrRelay, msg)
	case <-timer.C:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// relayEvents prints chat and errors that arrive through the relay.
func (a *App) relayEvents(ctx context.Context, chat <-chan *signaling.Message, errs <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-chat:
			if !ok {
				return
			}
			a.remember(msg.From, msg.DisplayName)
			ui.PrintChat(time.Now(), a.name(msg.From), msg.Text, "via relay")

		case msg, ok := <-errs:
			if !ok {
				return
			}
			ui.PrintWarningf("relay: %s", ui.CleanText(msg, ui.MaxTextRunes))
		}
	}
}

func (a *App) closeEngines() {
	a.mu.Lock()
	engines := a.engines
	a.engines = make(map[string]*datachannel.Engine)
	a.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}
}

func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
