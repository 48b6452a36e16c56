package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tayyab-Ali-786/Chattify/internal/config"
	"github.com/Tayyab-Ali-786/Chattify/internal/participant"
	"github.com/Tayyab-Ali-786/Chattify/internal/rooms"
	"github.com/Tayyab-Ali-786/Chattify/internal/transfer"
	"github.com/Tayyab-Ali-786/Chattify/internal/ui"
	"github.com/spf13/cobra"
)

var joinOpts config.Options

var joinCmd = &cobra.Command{
	Use:     "join [room]",
	Aliases: []string{"j"},
	Short:   "Join a room and talk to everyone in it",
	Long: `Join a room on the relay. Every participant already in the room is
connected to directly; anyone joining later connects to you. Without a
room name a fresh one is made up for you to share.

Examples:
  chattify join
  chattify join standup
  chattify join --name alice --server wss://relay.example.com/ws standup
  chattify join --relay --turn turn:turn.example.com:3478 standup`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(joinOpts)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		room, err := roomName(args)
		if err != nil {
			return err
		}

		err = participant.Run(ctx, cfg, room, os.Stdin)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func roomName(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	room, err := rooms.Generate(nil)
	if err != nil {
		return "", transfer.NewError("generate room name", err)
	}
	ui.PrintInfof("%s Share this room name: %s", ui.IconRoom, ui.BoldStyle.Render(room))
	return room, nil
}

// LoadConfig loads participant configuration and checks that the options
// make sense together.
func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, transfer.NewError("load config", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

func init() {
	rootCmd.AddCommand(joinCmd)

	f := joinCmd.Flags()
	f.StringVar(&joinOpts.ServerURL, "server", "", "Relay websocket URL")
	f.StringVarP(&joinOpts.DisplayName, "name", "n", "", "Display name shown to other participants")
	f.StringVarP(&joinOpts.STUNServer, "stun", "s", "", "Custom STUN server")
	f.StringVarP(&joinOpts.TURNServer, "turn", "t", "", "Custom TURN server")
	f.StringVarP(&joinOpts.TURNUser, "turn-user", "u", "", "TURN username")
	f.StringVarP(&joinOpts.TURNPass, "turn-pass", "p", "", "TURN password")
	f.BoolVarP(&joinOpts.ForceRelay, "relay", "r", false, "Force relay mode")
	f.StringVarP(&joinOpts.OutputDir, "dir", "d", "", "Directory to save received files")
	f.IntVar(&joinOpts.ChunkSize, "chunk-size", 0, "File chunk size in bytes")
	f.Int64Var(&joinOpts.MaxFileSize, "max-file-size", 0, "Largest incoming file accepted, in bytes (0 for no limit)")
	f.BoolVar(&joinOpts.NoEncrypt, "no-encrypt", false, "Skip the end-to-end key exchange")
}
