package cmd

import (
	"log/slog"
	"os"

	"github.com/Tayyab-Ali-786/Chattify/internal/logging"
	"github.com/Tayyab-Ali-786/Chattify/internal/ui"
	"github.com/Tayyab-Ali-786/Chattify/internal/version"
	"github.com/spf13/cobra"
)

var flagLogLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chattify",
	Short: "Peer-to-peer rooms for chat, files and a shared whiteboard over WebRTC",
	Long: `Chattify connects everyone in a room directly over WebRTC data channels.
A small relay introduces participants and forwards their offers, answers and
ICE candidates; chat, files and whiteboard strokes then travel peer to peer.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// the relay logs requests, the terminal client stays quiet
		fallback := slog.LevelError
		if cmd == serveCmd {
			fallback = slog.LevelInfo
		}
		logging.Init(flagLogLevel, fallback)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}
